package dialog

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/avasiliev/chatshop-system/internal/model"
	"github.com/avasiliev/chatshop-system/internal/repository"
	"github.com/avasiliev/chatshop-system/internal/service"
	"github.com/avasiliev/chatshop-system/internal/session"
	"github.com/avasiliev/chatshop-system/internal/validation"
)

// stepCategory обрабатывает текстовые шаги сценариев управления категориями.
func (d *Dispatcher) stepCategory(ctx context.Context, userID int64, st session.State, text string) (*View, error) {
	switch st.Step {
	case session.StepCategoryName:
		if strings.TrimSpace(text) == "" {
			return textView("Имя не может быть пустым. Введите имя категории:"), nil
		}
		d.sessions.Set(userID, session.StepCategoryParent, session.CategoryAdd{Name: strings.TrimSpace(text)})
		return d.renderCategoryPick(ctx, userID, nil, "Выберите родительскую категорию:")

	case session.StepCategoryRenameID:
		id, err := validation.ParseUserID(text)
		if err != nil {
			return textView("Введите числовой идентификатор категории:"), nil
		}
		d.sessions.Set(userID, session.StepCategoryRenameName, session.CategoryRename{CategoryID: id})
		return textView("Введите новое имя категории:"), nil

	case session.StepCategoryRenameName:
		data, _ := st.Payload.(session.CategoryRename)
		d.sessions.Clear(userID)
		if err := d.svc.RenameCategory(ctx, userID, data.CategoryID, text); err != nil {
			return d.failView(userID, "rename category", err)
		}
		return doneView("Категория переименована.", Action{Label: "В меню", Token: "admin:menu"}), nil

	case session.StepCategoryDelete:
		id, err := validation.ParseUserID(text)
		if err != nil {
			return textView("Введите числовой идентификатор категории:"), nil
		}
		d.sessions.Clear(userID)
		deleted, err := d.svc.DeleteCategory(ctx, userID, id)
		if err != nil {
			return d.failView(userID, "delete category", err)
		}
		return doneView(fmt.Sprintf("Удалено категорий: %d. Товары сохранены без категории.", deleted),
			Action{Label: "В меню", Token: "admin:menu"}), nil
	}

	d.sessions.Clear(userID)
	return d.mainMenu(ctx, userID, "Сценарий прерван.")
}

// renderCategoryPick показывает уровень дерева для выбора родителя новой
// категории: можно спуститься в подкатегорию или выбрать текущий уровень.
func (d *Dispatcher) renderCategoryPick(ctx context.Context, userID int64, at *int64, prompt string) (*View, error) {
	children, err := d.svc.BrowseCatalog(ctx, at)
	if err != nil {
		return d.failView(userID, "category pick", err)
	}

	arg := "root"
	title := prompt + "\nТекущий уровень: корень каталога."
	if at != nil {
		arg = fmt.Sprintf("%d", *at)
		path, err := d.svc.CategoryPath(ctx, *at)
		if err != nil {
			path = fmt.Sprintf("#%d", *at)
		}
		title = prompt + "\nТекущий уровень: " + path
	}

	actions := make([]Action, 0, len(children.Subcategories)+2)
	for _, c := range children.Subcategories {
		actions = append(actions, Action{
			Label: "📁 " + c.Name,
			Token: fmt.Sprintf("cpick:open:%d", c.ID),
		})
	}
	actions = append(actions,
		Action{Label: "✅ Выбрать этот уровень", Token: "cpick:use:" + arg},
		Action{Label: "Отмена", Token: "menu:cancel"},
	)
	return textViewWithActions(title, actions), nil
}

// handleCategoryPick обрабатывает обход дерева при добавлении категории:
// cpick:open:<id|root> спускается на уровень, cpick:use:<id|root> фиксирует
// родителя и создаёт категорию.
func (d *Dispatcher) handleCategoryPick(ctx context.Context, userID int64, parts []string) (*View, error) {
	st, ok := d.sessions.Get(userID)
	if !ok || st.Step != session.StepCategoryParent {
		return d.mainMenu(ctx, userID, "Сценарий прерван, начните заново.")
	}
	data, _ := st.Payload.(session.CategoryAdd)

	if len(parts) < 3 {
		return d.mainMenu(ctx, userID, "Неизвестное действие.")
	}
	target, err := parseIDArg(parts[2])
	if err != nil {
		return d.failView(userID, "category pick", err)
	}

	switch parts[1] {
	case "open":
		return d.renderCategoryPick(ctx, userID, target, "Выберите родительскую категорию:")

	case "use":
		id, err := d.svc.AddCategory(ctx, userID, data.Name, target)
		if errors.Is(err, repository.ErrDuplicateCategory) {
			// Имя сохраняется: администратор выбирает другого родителя,
			// не вводя его заново.
			return d.renderCategoryPick(ctx, userID, target,
				fmt.Sprintf("Категория «%s» уже есть на этом уровне. Выберите другого родителя:", data.Name))
		}
		if err != nil {
			return d.failView(userID, "add category", err)
		}
		d.sessions.Clear(userID)
		return doneView(fmt.Sprintf("Категория «%s» создана (#%d).", data.Name, id),
			Action{Label: "В меню", Token: "admin:menu"}), nil
	}
	return d.mainMenu(ctx, userID, "Неизвестное действие.")
}

// stepProduct обрабатывает текстовые шаги сценариев управления товарами.
func (d *Dispatcher) stepProduct(ctx context.Context, userID int64, st session.State, text string) (*View, error) {
	switch st.Step {
	case session.StepProductName:
		data, _ := st.Payload.(session.ProductAdd)
		if strings.TrimSpace(text) == "" {
			return textView("Имя не может быть пустым. Введите название товара:"), nil
		}
		data.Name = strings.TrimSpace(text)
		d.sessions.Set(userID, session.StepProductPrice, data)
		return textView("Введите цену, например 19.99:"), nil

	case session.StepProductPrice:
		data, _ := st.Payload.(session.ProductAdd)
		price, err := validation.ParsePriceCents(text)
		if err != nil {
			return textView("Неверный формат цены. Введите цену, например 19.99:"), nil
		}
		data.PriceCents = price
		d.sessions.Set(userID, session.StepProductStock, data)
		return textView("Введите количество на складе:"), nil

	case session.StepProductStock:
		data, _ := st.Payload.(session.ProductAdd)
		stock, err := validation.ParseStock(text)
		if err != nil {
			return textView("Введите неотрицательное целое число:"), nil
		}
		data.Stock = stock
		d.sessions.Set(userID, session.StepProductDescription, data)
		return textView("Введите описание (или «-», чтобы пропустить):"), nil

	case session.StepProductDescription:
		data, _ := st.Payload.(session.ProductAdd)
		if text != "-" {
			data.Description = text
		}
		d.sessions.Set(userID, session.StepProductContent, data)
		return textView("Введите ссылку на контент (или «-», если его нет):"), nil

	case session.StepProductContent:
		data, _ := st.Payload.(session.ProductAdd)
		if text != "-" {
			data.ContentRef = text
		}
		d.sessions.Set(userID, session.StepProductCategory, data)
		return d.renderProductCategoryPick(ctx, userID, nil, "Выберите категорию товара:")

	case session.StepProductAIText:
		return d.stepExtract(ctx, userID, text)

	case session.StepProductEditID:
		id, err := validation.ParseUserID(text)
		if err != nil {
			return textView("Введите числовой идентификатор товара:"), nil
		}
		p, err := d.svc.GetProduct(ctx, id)
		if err != nil {
			return d.failView(userID, "edit product", err)
		}
		d.sessions.Set(userID, session.StepProductEditID, session.ProductEdit{ProductID: p.ID})
		return textViewWithActions(
			fmt.Sprintf("Товар «%s». Что изменить?", p.Name),
			[]Action{
				{Label: "Название", Token: "pedit:field:name"},
				{Label: "Цена", Token: "pedit:field:price"},
				{Label: "Остаток", Token: "pedit:field:stock"},
				{Label: "Описание", Token: "pedit:field:description"},
				{Label: "Контент", Token: "pedit:field:content"},
				{Label: "Готово", Token: "pedit:done"},
			}), nil

	case session.StepProductEditValue:
		return d.stepProductEditValue(ctx, userID, st, text)

	case session.StepProductArchive:
		id, err := validation.ParseUserID(text)
		if err != nil {
			return textView("Введите числовой идентификатор товара:"), nil
		}
		d.sessions.Clear(userID)
		if err := d.svc.ArchiveProduct(ctx, userID, id); err != nil {
			return d.failView(userID, "archive product", err)
		}
		return doneView("Товар скрыт из каталога. История заказов сохранена.",
			Action{Label: "В меню", Token: "admin:menu"}), nil
	}

	d.sessions.Clear(userID)
	return d.mainMenu(ctx, userID, "Сценарий прерван.")
}

// handleProductEditPick выбирает редактируемое поле товара:
// pedit:field:<имя> или pedit:done.
func (d *Dispatcher) handleProductEditPick(ctx context.Context, userID int64, parts []string) (*View, error) {
	st, ok := d.sessions.Get(userID)
	if !ok {
		return d.mainMenu(ctx, userID, "Сценарий прерван, начните заново.")
	}
	data, ok := st.Payload.(session.ProductEdit)
	if !ok {
		d.sessions.Clear(userID)
		return d.mainMenu(ctx, userID, "Сценарий прерван, начните заново.")
	}

	if len(parts) >= 2 && parts[1] == "done" {
		d.sessions.Clear(userID)
		return doneView("Редактирование завершено.", Action{Label: "В меню", Token: "admin:menu"}), nil
	}
	if len(parts) < 3 || parts[1] != "field" {
		return d.mainMenu(ctx, userID, "Неизвестное действие.")
	}

	prompts := map[string]string{
		"name":        "Введите новое название:",
		"price":       "Введите новую цену, например 19.99:",
		"stock":       "Введите новый остаток:",
		"description": "Введите новое описание:",
		"content":     "Введите новую ссылку на контент:",
	}
	prompt, ok := prompts[parts[2]]
	if !ok {
		return d.mainMenu(ctx, userID, "Неизвестное действие.")
	}

	data.Field = parts[2]
	d.sessions.Set(userID, session.StepProductEditValue, data)
	return textView(prompt), nil
}

// stepProductEditValue применяет новое значение выбранного поля товара.
func (d *Dispatcher) stepProductEditValue(ctx context.Context, userID int64, st session.State, text string) (*View, error) {
	data, ok := st.Payload.(session.ProductEdit)
	if !ok {
		d.sessions.Clear(userID)
		return d.mainMenu(ctx, userID, "Сценарий прерван, начните заново.")
	}

	p, err := d.svc.GetProduct(ctx, data.ProductID)
	if err != nil {
		return d.failView(userID, "edit product", err)
	}

	in := model.ProductInput{
		Name:        p.Name,
		PriceCents:  p.PriceCents,
		Stock:       p.Stock,
		CategoryID:  p.CategoryID,
		Description: p.Description,
		ContentRef:  p.ContentRef,
	}

	switch data.Field {
	case "name":
		in.Name = strings.TrimSpace(text)
	case "price":
		price, err := validation.ParsePriceCents(text)
		if err != nil {
			return textView("Неверный формат цены. Введите цену, например 19.99:"), nil
		}
		in.PriceCents = price
	case "stock":
		stock, err := validation.ParseStock(text)
		if err != nil {
			return textView("Введите неотрицательное целое число:"), nil
		}
		in.Stock = stock
	case "description":
		in.Description = text
	case "content":
		in.ContentRef = text
	}

	if err := d.svc.UpdateProduct(ctx, userID, data.ProductID, in); err != nil {
		return d.failView(userID, "update product", err)
	}

	// Возврат к выбору поля: можно изменить несколько полей подряд.
	d.sessions.Set(userID, session.StepProductEditID, session.ProductEdit{ProductID: data.ProductID})
	return textViewWithActions("Сохранено. Что изменить ещё?", []Action{
		{Label: "Название", Token: "pedit:field:name"},
		{Label: "Цена", Token: "pedit:field:price"},
		{Label: "Остаток", Token: "pedit:field:stock"},
		{Label: "Описание", Token: "pedit:field:description"},
		{Label: "Контент", Token: "pedit:field:content"},
		{Label: "Готово", Token: "pedit:done"},
	}), nil
}

// stepExtract отправляет свободный текст в сервис извлечения и показывает
// черновик товара для подтверждения.
func (d *Dispatcher) stepExtract(ctx context.Context, userID int64, text string) (*View, error) {
	in, categoryName, err := d.svc.ExtractProductDraft(ctx, userID, text)
	if err != nil {
		if errors.Is(err, service.ErrExtractorUnavailable) {
			d.sessions.Clear(userID)
			return doneView("Распознавание описаний сейчас недоступно."), nil
		}
		if msg := friendlyError(err); msg != "" {
			return textView(msg + " Опишите товар ещё раз или напишите «отмена»."), nil
		}
		d.log.Errorw("extract product", "user_id", userID, "error", err)
		return textView("Не удалось разобрать описание. Попробуйте ещё раз или напишите «отмена»."), nil
	}

	data := session.ProductAdd{
		Name:        in.Name,
		PriceCents:  in.PriceCents,
		Stock:       in.Stock,
		Description: in.Description,
		ContentRef:  in.ContentRef,
		FromExtract: true,
	}
	if categoryName != "" {
		if cat, err := d.svc.MatchCategoryByName(ctx, categoryName); err == nil && cat != nil {
			data.CategoryID = &cat.ID
		}
	}
	d.sessions.Set(userID, session.StepProductAIConfirm, data)

	var b strings.Builder
	b.WriteString("Проверьте черновик товара:\n")
	fmt.Fprintf(&b, "Название: %s\n", data.Name)
	fmt.Fprintf(&b, "Цена: %s\n", formatCents(data.PriceCents))
	fmt.Fprintf(&b, "Остаток: %d\n", data.Stock)
	if data.Description != "" {
		fmt.Fprintf(&b, "Описание: %s\n", data.Description)
	}
	if data.CategoryID != nil {
		if path, err := d.svc.CategoryPath(ctx, *data.CategoryID); err == nil {
			fmt.Fprintf(&b, "Категория: %s\n", path)
		}
	}

	return textViewWithActions(b.String(), []Action{
		{Label: "✅ Создать", Token: "aiprod:ok"},
		{Label: "Выбрать категорию", Token: "aiprod:pickcat"},
		{Label: "Отмена", Token: "menu:cancel"},
	}), nil
}

// handleExtractConfirm завершает сценарий добавления товара по описанию:
// aiprod:ok создаёт товар, aiprod:pickcat открывает выбор категории.
func (d *Dispatcher) handleExtractConfirm(ctx context.Context, userID int64, parts []string) (*View, error) {
	st, ok := d.sessions.Get(userID)
	if !ok || st.Step != session.StepProductAIConfirm {
		return d.mainMenu(ctx, userID, "Сценарий прерван, начните заново.")
	}
	data, _ := st.Payload.(session.ProductAdd)

	if len(parts) < 2 {
		return d.mainMenu(ctx, userID, "Неизвестное действие.")
	}
	switch parts[1] {
	case "ok":
		return d.createProduct(ctx, userID, data)
	case "pickcat":
		d.sessions.Set(userID, session.StepProductCategory, data)
		return d.renderProductCategoryPick(ctx, userID, nil, "Выберите категорию товара:")
	}
	return d.mainMenu(ctx, userID, "Неизвестное действие.")
}

// renderProductCategoryPick показывает уровень дерева для выбора категории
// товара.
func (d *Dispatcher) renderProductCategoryPick(ctx context.Context, userID int64, at *int64, prompt string) (*View, error) {
	level, err := d.svc.BrowseCatalog(ctx, at)
	if err != nil {
		return d.failView(userID, "product category pick", err)
	}

	arg := "root"
	title := prompt + "\nТекущий уровень: корень каталога."
	if at != nil {
		arg = fmt.Sprintf("%d", *at)
		path, err := d.svc.CategoryPath(ctx, *at)
		if err != nil {
			path = fmt.Sprintf("#%d", *at)
		}
		title = prompt + "\nТекущий уровень: " + path
	}

	actions := make([]Action, 0, len(level.Subcategories)+3)
	for _, c := range level.Subcategories {
		actions = append(actions, Action{
			Label: "📁 " + c.Name,
			Token: fmt.Sprintf("ppick:open:%d", c.ID),
		})
	}
	if at != nil {
		actions = append(actions, Action{Label: "✅ Поместить сюда", Token: "ppick:use:" + arg})
	}
	actions = append(actions,
		Action{Label: "Без категории", Token: "ppick:use:root"},
		Action{Label: "Отмена", Token: "menu:cancel"},
	)
	return textViewWithActions(title, actions), nil
}

// handleProductCategoryPick обрабатывает обход дерева при выборе категории
// товара: ppick:open:<id> спускается, ppick:use:<id|root> создаёт товар.
func (d *Dispatcher) handleProductCategoryPick(ctx context.Context, userID int64, parts []string) (*View, error) {
	st, ok := d.sessions.Get(userID)
	if !ok || st.Step != session.StepProductCategory {
		return d.mainMenu(ctx, userID, "Сценарий прерван, начните заново.")
	}
	data, _ := st.Payload.(session.ProductAdd)

	if len(parts) < 3 {
		return d.mainMenu(ctx, userID, "Неизвестное действие.")
	}
	target, err := parseIDArg(parts[2])
	if err != nil {
		return d.failView(userID, "product category pick", err)
	}

	switch parts[1] {
	case "open":
		// Узел без детей завершает обход: спускаться дальше некуда.
		level, err := d.svc.BrowseCatalog(ctx, target)
		if err != nil {
			return d.failView(userID, "product category pick", err)
		}
		if len(level.Subcategories) == 0 {
			data.CategoryID = target
			return d.createProduct(ctx, userID, data)
		}
		data.WalkAt = target
		d.sessions.Set(userID, session.StepProductCategory, data)
		return d.renderProductCategoryPick(ctx, userID, target, "Выберите категорию товара:")
	case "use":
		data.CategoryID = target
		return d.createProduct(ctx, userID, data)
	}
	return d.mainMenu(ctx, userID, "Неизвестное действие.")
}

// createProduct завершает любой сценарий добавления товара.
func (d *Dispatcher) createProduct(ctx context.Context, userID int64, data session.ProductAdd) (*View, error) {
	d.sessions.Clear(userID)

	id, err := d.svc.AddProduct(ctx, userID, model.ProductInput{
		Name:        data.Name,
		PriceCents:  data.PriceCents,
		Stock:       data.Stock,
		CategoryID:  data.CategoryID,
		Description: data.Description,
		ContentRef:  data.ContentRef,
	})
	if err != nil {
		return d.failView(userID, "add product", err)
	}
	return doneView(fmt.Sprintf("Товар «%s» создан (#%d).", data.Name, id),
		Action{Label: "В меню", Token: "admin:menu"}), nil
}

package dialog

import (
	"context"
	"fmt"
	"strings"

	"github.com/avasiliev/chatshop-system/internal/model"
	"github.com/avasiliev/chatshop-system/internal/session"
)

// handleCatalog открывает уровень дерева каталога: cat:open:<id|root>.
func (d *Dispatcher) handleCatalog(ctx context.Context, userID int64, parts []string) (*View, error) {
	if len(parts) < 3 || parts[1] != "open" {
		return d.mainMenu(ctx, userID, "Неизвестное действие.")
	}
	categoryID, err := parseIDArg(parts[2])
	if err != nil {
		return d.failView(userID, "open catalog", err)
	}
	return d.renderLevel(ctx, userID, categoryID)
}

// renderLevel показывает узел дерева: подкатегории, товары и кнопку возврата
// на уровень родителя.
func (d *Dispatcher) renderLevel(ctx context.Context, userID int64, categoryID *int64) (*View, error) {
	level, err := d.svc.BrowseCatalog(ctx, categoryID)
	if err != nil {
		return d.failView(userID, "browse catalog", err)
	}

	title := "Каталог"
	if level.Category != nil {
		path, err := d.svc.CategoryPath(ctx, level.Category.ID)
		if err == nil && path != "" {
			title = path
		} else {
			title = level.Category.Name
		}
	}

	var actions []Action
	for _, c := range level.Subcategories {
		actions = append(actions, Action{
			Label: "📁 " + c.Name,
			Token: fmt.Sprintf("cat:open:%d", c.ID),
		})
	}
	for _, p := range level.Products {
		actions = append(actions, Action{
			Label: fmt.Sprintf("%s — %s", p.Name, formatCents(p.PriceCents)),
			Token: fmt.Sprintf("prod:show:%d", p.ID),
		})
	}

	if level.Category != nil {
		back := "cat:open:root"
		if level.Category.ParentID != nil {
			back = fmt.Sprintf("cat:open:%d", *level.Category.ParentID)
		}
		actions = append(actions, Action{Label: "⬅ Назад", Token: back})
	} else {
		actions = append(actions, Action{Label: "В меню", Token: "menu:main"})
	}

	if len(level.Subcategories) == 0 && len(level.Products) == 0 {
		title += "\nЗдесь пока пусто."
	}
	return doneView(title, actions...), nil
}

// handleProduct показывает карточку товара: prod:show:<id>.
func (d *Dispatcher) handleProduct(ctx context.Context, userID int64, parts []string) (*View, error) {
	if len(parts) < 3 || parts[1] != "show" {
		return d.mainMenu(ctx, userID, "Неизвестное действие.")
	}
	id, err := parseIDArg(parts[2])
	if err != nil || id == nil {
		return d.failView(userID, "show product", err)
	}

	p, err := d.svc.GetProduct(ctx, *id)
	if err != nil {
		return d.failView(userID, "show product", err)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%s\n", p.Name)
	if p.Description != "" {
		fmt.Fprintf(&b, "%s\n", p.Description)
	}
	fmt.Fprintf(&b, "Цена: %s\n", formatCents(p.PriceCents))
	if p.Stock > 0 {
		fmt.Fprintf(&b, "В наличии: %d", p.Stock)
	} else {
		b.WriteString("Нет в наличии")
	}

	back := "cat:open:root"
	if p.CategoryID != nil {
		back = fmt.Sprintf("cat:open:%d", *p.CategoryID)
	}

	actions := []Action{}
	if p.Active && p.Stock > 0 {
		actions = append(actions, Action{Label: "В корзину", Token: fmt.Sprintf("cart:add:%d", p.ID)})
	}
	actions = append(actions, Action{Label: "⬅ Назад", Token: back})
	return doneView(b.String(), actions...), nil
}

// handleSearchPick обрабатывает выбор сортировки: search:sort:<sort>.
func (d *Dispatcher) handleSearchPick(ctx context.Context, userID int64, parts []string) (*View, error) {
	if len(parts) < 3 || parts[1] != "sort" {
		return d.mainMenu(ctx, userID, "Неизвестное действие.")
	}
	d.sessions.Set(userID, session.StepSearchQuery, session.Search{Sort: parts[2]})
	return textView("Введите поисковый запрос:"), nil
}

// stepSearch выполняет поиск по введённому запросу.
func (d *Dispatcher) stepSearch(ctx context.Context, userID int64, st session.State, text string) (*View, error) {
	data, _ := st.Payload.(session.Search)
	d.sessions.Clear(userID)

	filter := model.SearchFilter{
		Query:       text,
		InStockOnly: true,
		Sort:        model.SearchSort(data.Sort),
	}
	products, err := d.svc.SearchProducts(ctx, filter)
	if err != nil {
		return d.failView(userID, "search products", err)
	}
	if len(products) == 0 {
		return doneView("Ничего не найдено.",
			Action{Label: "Искать снова", Token: "menu:search"},
			Action{Label: "В меню", Token: "menu:main"}), nil
	}

	actions := make([]Action, 0, len(products)+2)
	for _, p := range products {
		actions = append(actions, Action{
			Label: fmt.Sprintf("%s — %s", p.Name, formatCents(p.PriceCents)),
			Token: fmt.Sprintf("prod:show:%d", p.ID),
		})
	}
	actions = append(actions,
		Action{Label: "По цене ↑", Token: "search:sort:price_asc"},
		Action{Label: "В меню", Token: "menu:main"},
	)
	return doneView(fmt.Sprintf("Найдено: %d", len(products)), actions...), nil
}

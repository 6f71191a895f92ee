package dialog

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/avasiliev/chatshop-system/internal/model"
	"github.com/avasiliev/chatshop-system/internal/service"
	"github.com/avasiliev/chatshop-system/internal/session"
	"github.com/avasiliev/chatshop-system/internal/validation"
)

// scheduleLayout — формат времени отложенной рассылки.
const scheduleLayout = "2006-01-02 15:04"

// handleAdmin маршрутизирует административные действия. Право на вход
// проверяется здесь, право на каждую операцию — сервисом при выполнении.
func (d *Dispatcher) handleAdmin(ctx context.Context, userID int64, parts []string) (*View, error) {
	u, err := d.svc.GetUser(ctx, userID)
	if err != nil {
		return d.failView(userID, "admin access", err)
	}
	if !u.Role.IsStaff() {
		return d.failView(userID, "admin access", service.ErrPermissionDenied)
	}

	if len(parts) < 2 {
		return d.adminMenu(), nil
	}

	switch parts[1] {
	case "menu":
		d.sessions.Clear(userID)
		return d.adminMenu(), nil
	case "cat":
		return d.adminCategoryEntry(userID, parts)
	case "prod":
		return d.adminProductEntry(userID, parts)
	case "orders":
		return d.renderPendingOrders(ctx, userID)
	case "verify":
		d.sessions.Set(userID, session.StepVerifyPayment, nil)
		return textView("Введите код платежа:"), nil
	case "reject":
		if len(parts) < 3 {
			return d.adminMenu(), nil
		}
		id, err := parseIDArg(parts[2])
		if err != nil || id == nil {
			return d.failView(userID, "reject order", err)
		}
		if err := d.svc.RejectOrder(ctx, userID, *id); err != nil {
			return d.failView(userID, "reject order", err)
		}
		return doneView(fmt.Sprintf("Заказ #%d отклонён, остатки возвращены.", *id),
			Action{Label: "К заказам", Token: "admin:orders"}), nil
	case "points":
		if len(parts) < 3 {
			return d.adminMenu(), nil
		}
		deduct := parts[2] == "deduct"
		d.sessions.Set(userID, session.StepPointsUserID, session.PointsAdjust{Deduct: deduct})
		return textView("Введите идентификатор пользователя:"), nil
	case "role":
		d.sessions.Set(userID, session.StepRoleUserID, nil)
		return textView("Введите идентификатор пользователя:"), nil
	case "coupon":
		return d.adminCouponEntry(ctx, userID, parts)
	case "paym":
		return d.adminPayMethodEntry(ctx, userID, parts)
	case "notify":
		return d.renderSegmentChoice(), nil
	}
	return d.adminMenu(), nil
}

func (d *Dispatcher) adminMenu() *View {
	return doneView("Администрирование:",
		Action{Label: "➕ Категория", Token: "admin:cat:add"},
		Action{Label: "✏️ Переименовать категорию", Token: "admin:cat:rename"},
		Action{Label: "🗑 Удалить категорию", Token: "admin:cat:delete"},
		Action{Label: "➕ Товар", Token: "admin:prod:add"},
		Action{Label: "➕ Товар по описанию", Token: "admin:prod:ai"},
		Action{Label: "✏️ Изменить товар", Token: "admin:prod:edit"},
		Action{Label: "🗑 Скрыть товар", Token: "admin:prod:archive"},
		Action{Label: "Заказы на проверке", Token: "admin:orders"},
		Action{Label: "Подтвердить платёж", Token: "admin:verify"},
		Action{Label: "Начислить баллы", Token: "admin:points:add"},
		Action{Label: "Списать баллы", Token: "admin:points:deduct"},
		Action{Label: "Назначить роль", Token: "admin:role"},
		Action{Label: "➕ Купон", Token: "admin:coupon:add"},
		Action{Label: "🗑 Удалить купон", Token: "admin:coupon:del"},
		Action{Label: "Купоны", Token: "admin:coupon:list"},
		Action{Label: "➕ Реквизиты", Token: "admin:paym:add"},
		Action{Label: "🗑 Удалить реквизиты", Token: "admin:paym:del"},
		Action{Label: "Рассылка", Token: "admin:notify"},
		Action{Label: "В меню", Token: "menu:main"},
	)
}

func (d *Dispatcher) adminCategoryEntry(userID int64, parts []string) (*View, error) {
	if len(parts) < 3 {
		return d.adminMenu(), nil
	}
	switch parts[2] {
	case "add":
		d.sessions.Set(userID, session.StepCategoryName, session.CategoryAdd{})
		return textView("Введите имя новой категории:"), nil
	case "rename":
		d.sessions.Set(userID, session.StepCategoryRenameID, nil)
		return textView("Введите идентификатор категории:"), nil
	case "delete":
		d.sessions.Set(userID, session.StepCategoryDelete, nil)
		return textView("Введите идентификатор категории. Будет удалено всё поддерево:"), nil
	}
	return d.adminMenu(), nil
}

func (d *Dispatcher) adminProductEntry(userID int64, parts []string) (*View, error) {
	if len(parts) < 3 {
		return d.adminMenu(), nil
	}
	switch parts[2] {
	case "add":
		d.sessions.Set(userID, session.StepProductName, session.ProductAdd{})
		return textView("Введите название товара:"), nil
	case "ai":
		d.sessions.Set(userID, session.StepProductAIText, nil)
		return textView("Опишите товар свободным текстом, включая цену и количество:"), nil
	case "edit":
		d.sessions.Set(userID, session.StepProductEditID, nil)
		return textView("Введите идентификатор товара:"), nil
	case "archive":
		d.sessions.Set(userID, session.StepProductArchive, nil)
		return textView("Введите идентификатор товара:"), nil
	}
	return d.adminMenu(), nil
}

// renderPendingOrders показывает заказы, ожидающие подтверждения оплаты.
func (d *Dispatcher) renderPendingOrders(ctx context.Context, userID int64) (*View, error) {
	orders, err := d.svc.ListPendingOrders(ctx, userID)
	if err != nil {
		return d.failView(userID, "pending orders", err)
	}
	if len(orders) == 0 {
		return doneView("Нет заказов на проверке.",
			Action{Label: "В меню", Token: "admin:menu"}), nil
	}

	var b strings.Builder
	b.WriteString("Заказы на проверке:\n")
	actions := make([]Action, 0, len(orders)+2)
	for _, o := range orders {
		fmt.Fprintf(&b, "#%d — пользователь %d, сумма %s\n", o.ID, o.UserID, formatCents(o.TotalCents))
		actions = append(actions, Action{
			Label: fmt.Sprintf("Отклонить #%d", o.ID),
			Token: fmt.Sprintf("admin:reject:%d", o.ID),
		})
	}
	actions = append(actions,
		Action{Label: "Подтвердить платёж", Token: "admin:verify"},
		Action{Label: "В меню", Token: "admin:menu"},
	)
	return doneView(b.String(), actions...), nil
}

// stepVerifyPayment подтверждает ручной платёж по введённому коду. После
// подтверждения контент выдаётся покупателю.
func (d *Dispatcher) stepVerifyPayment(ctx context.Context, userID int64, text string) (*View, error) {
	res, err := d.svc.VerifyManualPayment(ctx, userID, strings.TrimSpace(text))
	if err != nil {
		if msg := friendlyError(err); msg != "" {
			return textView(msg + " Введите код ещё раз или напишите «отмена»."), nil
		}
		return d.failView(userID, "verify payment", err)
	}
	d.sessions.Clear(userID)

	text = fmt.Sprintf("Платёж подтверждён, заказ #%d оплачен.", res.OrderID)
	if res.ReferrerBonused {
		text += "\nПригласившему начислен бонус за первую покупку."
	}

	failures, err := d.svc.FulfillOrder(ctx, res.OrderID)
	if err != nil {
		d.log.Errorw("fulfill order", "order_id", res.OrderID, "error", err)
		text += "\nКонтент не отправлен, требуется повторная выдача."
	} else if len(failures) > 0 {
		for _, f := range failures {
			d.log.Errorw("deliver item", "order_id", res.OrderID, "product_id", f.ProductID, "error", f.Err)
		}
		text += fmt.Sprintf("\nНе отправлено позиций: %d.", len(failures))
	}

	return doneView(text, Action{Label: "К заказам", Token: "admin:orders"}), nil
}

// stepPoints обрабатывает ручную корректировку баллов: идентификатор
// пользователя, затем сумма.
func (d *Dispatcher) stepPoints(ctx context.Context, userID int64, st session.State, text string) (*View, error) {
	data, _ := st.Payload.(session.PointsAdjust)

	switch st.Step {
	case session.StepPointsUserID:
		id, err := validation.ParseUserID(text)
		if err != nil {
			return textView("Введите числовой идентификатор пользователя:"), nil
		}
		data.UserID = id
		d.sessions.Set(userID, session.StepPointsAmount, data)
		return textView("Введите количество баллов:"), nil

	case session.StepPointsAmount:
		points, err := validation.ParsePoints(text)
		if err != nil {
			return textView("Введите положительное целое число:"), nil
		}
		d.sessions.Clear(userID)
		if err := d.svc.AdjustPoints(ctx, userID, data.UserID, points, data.Deduct); err != nil {
			return d.failView(userID, "adjust points", err)
		}
		verb := "начислено"
		if data.Deduct {
			verb = "списано"
		}
		return doneView(fmt.Sprintf("Пользователю %d %s %d баллов.", data.UserID, verb, points),
			Action{Label: "В меню", Token: "admin:menu"}), nil
	}

	d.sessions.Clear(userID)
	return d.mainMenu(ctx, userID, "Сценарий прерван.")
}

// stepRoleUser принимает идентификатор пользователя и предлагает роли.
func (d *Dispatcher) stepRoleUser(ctx context.Context, userID int64, text string) (*View, error) {
	id, err := validation.ParseUserID(text)
	if err != nil {
		return textView("Введите числовой идентификатор пользователя:"), nil
	}
	d.sessions.Set(userID, session.StepRolePick, session.RoleChange{UserID: id})
	return textViewWithActions(fmt.Sprintf("Выберите роль для пользователя %d:", id), []Action{
		{Label: "Администратор", Token: "role:set:admin"},
		{Label: "Покупатель", Token: "role:set:user"},
		{Label: "Отмена", Token: "menu:cancel"},
	}), nil
}

// handleRolePick назначает выбранную роль: role:set:<admin|user>.
func (d *Dispatcher) handleRolePick(ctx context.Context, userID int64, parts []string) (*View, error) {
	st, ok := d.sessions.Get(userID)
	if !ok || st.Step != session.StepRolePick {
		return d.mainMenu(ctx, userID, "Сценарий прерван, начните заново.")
	}
	data, _ := st.Payload.(session.RoleChange)
	d.sessions.Clear(userID)

	if len(parts) < 3 || parts[1] != "set" {
		return d.mainMenu(ctx, userID, "Неизвестное действие.")
	}
	var role model.Role
	switch parts[2] {
	case "admin":
		role = model.RoleAdmin
	case "user":
		role = model.RoleUser
	default:
		return d.mainMenu(ctx, userID, "Неизвестное действие.")
	}

	if err := d.svc.SetRole(ctx, userID, data.UserID, role); err != nil {
		return d.failView(userID, "set role", err)
	}
	return doneView(fmt.Sprintf("Пользователю %d назначена роль «%s».", data.UserID, role),
		Action{Label: "В меню", Token: "admin:menu"}), nil
}

func (d *Dispatcher) adminCouponEntry(ctx context.Context, userID int64, parts []string) (*View, error) {
	if len(parts) < 3 {
		return d.adminMenu(), nil
	}
	switch parts[2] {
	case "add":
		d.sessions.Set(userID, session.StepCouponAddCode, session.CouponAdd{})
		return textView("Введите код купона:"), nil
	case "del":
		d.sessions.Set(userID, session.StepCouponDelete, nil)
		return textView("Введите код купона для удаления:"), nil
	case "list":
		coupons, err := d.svc.ListCoupons(ctx, userID)
		if err != nil {
			return d.failView(userID, "list coupons", err)
		}
		if len(coupons) == 0 {
			return doneView("Купонов нет.", Action{Label: "В меню", Token: "admin:menu"}), nil
		}
		var b strings.Builder
		b.WriteString("Купоны:\n")
		for _, c := range coupons {
			state := "действует"
			if !c.Active {
				state = "отключён"
			}
			fmt.Fprintf(&b, "%s — %d%% (%s)\n", c.Code, c.DiscountPercent, state)
		}
		return doneView(b.String(), Action{Label: "В меню", Token: "admin:menu"}), nil
	}
	return d.adminMenu(), nil
}

// stepCouponAdmin обрабатывает шаги создания и удаления купонов.
func (d *Dispatcher) stepCouponAdmin(ctx context.Context, userID int64, st session.State, text string) (*View, error) {
	switch st.Step {
	case session.StepCouponAddCode:
		code := validation.NormalizeCouponCode(text)
		if code == "" {
			return textView("Код не может быть пустым. Введите код купона:"), nil
		}
		d.sessions.Set(userID, session.StepCouponAddDiscount, session.CouponAdd{Code: code})
		return textView("Введите размер скидки в процентах (0–100):"), nil

	case session.StepCouponAddDiscount:
		data, _ := st.Payload.(session.CouponAdd)
		discount, err := validation.ParseDiscountPercent(text)
		if err != nil {
			return textView("Введите целое число от 0 до 100:"), nil
		}
		d.sessions.Clear(userID)
		if err := d.svc.AddCoupon(ctx, userID, data.Code, discount); err != nil {
			return d.failView(userID, "add coupon", err)
		}
		return doneView(fmt.Sprintf("Купон %s на %d%% создан.", data.Code, discount),
			Action{Label: "В меню", Token: "admin:menu"}), nil

	case session.StepCouponDelete:
		d.sessions.Clear(userID)
		if err := d.svc.DeleteCoupon(ctx, userID, text); err != nil {
			return d.failView(userID, "delete coupon", err)
		}
		return doneView("Купон деактивирован. Суммы оформленных заказов не изменились.",
			Action{Label: "В меню", Token: "admin:menu"}), nil
	}

	d.sessions.Clear(userID)
	return d.mainMenu(ctx, userID, "Сценарий прерван.")
}

func (d *Dispatcher) adminPayMethodEntry(ctx context.Context, userID int64, parts []string) (*View, error) {
	if len(parts) < 3 {
		return d.adminMenu(), nil
	}
	switch parts[2] {
	case "add":
		d.sessions.Set(userID, session.StepPayMethodName, session.PayMethodAdd{})
		return textView("Введите название способа оплаты:"), nil
	case "del":
		methods, err := d.svc.ListPaymentMethods(ctx)
		if err != nil {
			return d.failView(userID, "list payment methods", err)
		}
		if len(methods) == 0 {
			return doneView("Реквизитов нет.", Action{Label: "В меню", Token: "admin:menu"}), nil
		}
		var b strings.Builder
		b.WriteString("Текущие реквизиты:\n")
		for _, m := range methods {
			fmt.Fprintf(&b, "#%d %s: %s\n", m.ID, m.Name, m.Details)
		}
		d.sessions.Set(userID, session.StepPayMethodDelete, nil)
		return textView(b.String() + "Введите идентификатор для удаления:"), nil
	}
	return d.adminMenu(), nil
}

// stepPayMethod обрабатывает шаги управления реквизитами оплаты.
func (d *Dispatcher) stepPayMethod(ctx context.Context, userID int64, st session.State, text string) (*View, error) {
	switch st.Step {
	case session.StepPayMethodName:
		if strings.TrimSpace(text) == "" {
			return textView("Название не может быть пустым. Введите название:"), nil
		}
		d.sessions.Set(userID, session.StepPayMethodDetails, session.PayMethodAdd{Name: strings.TrimSpace(text)})
		return textView("Введите реквизиты (номер карты, кошелёк и т.п.):"), nil

	case session.StepPayMethodDetails:
		data, _ := st.Payload.(session.PayMethodAdd)
		d.sessions.Clear(userID)
		id, err := d.svc.AddPaymentMethod(ctx, userID, data.Name, strings.TrimSpace(text))
		if err != nil {
			return d.failView(userID, "add payment method", err)
		}
		return doneView(fmt.Sprintf("Реквизиты «%s» сохранены (#%d).", data.Name, id),
			Action{Label: "В меню", Token: "admin:menu"}), nil

	case session.StepPayMethodDelete:
		id, err := validation.ParseUserID(text)
		if err != nil {
			return textView("Введите числовой идентификатор:"), nil
		}
		d.sessions.Clear(userID)
		if err := d.svc.DeletePaymentMethod(ctx, userID, id); err != nil {
			return d.failView(userID, "delete payment method", err)
		}
		return doneView("Реквизиты удалены.", Action{Label: "В меню", Token: "admin:menu"}), nil
	}

	d.sessions.Clear(userID)
	return d.mainMenu(ctx, userID, "Сценарий прерван.")
}

// renderSegmentChoice предлагает сегмент получателей рассылки.
func (d *Dispatcher) renderSegmentChoice() *View {
	return textViewWithActions("Кому отправить рассылку?", []Action{
		{Label: "Всем", Token: "notify:seg:all"},
		{Label: "Недавно активным", Token: "notify:seg:recent"},
		{Label: "Покупателям", Token: "notify:seg:buyers"},
		{Label: "Неактивным", Token: "notify:seg:inactive"},
		{Label: "По списку", Token: "notify:seg:custom"},
		{Label: "Отмена", Token: "menu:cancel"},
	})
}

// handleNotifyPick фиксирует сегмент рассылки: notify:seg:<segment>.
func (d *Dispatcher) handleNotifyPick(ctx context.Context, userID int64, parts []string) (*View, error) {
	if len(parts) < 3 || parts[1] != "seg" {
		return d.mainMenu(ctx, userID, "Неизвестное действие.")
	}

	switch model.Segment(parts[2]) {
	case model.SegmentAll, model.SegmentRecent, model.SegmentBuyers, model.SegmentInactive:
		d.sessions.Set(userID, session.StepNotifySchedule, session.Notify{Segment: parts[2]})
		return textView("Когда отправить? Напишите «сейчас» или время в формате 2006-01-02 15:04:"), nil
	case model.SegmentCustom:
		d.sessions.Set(userID, session.StepNotifyCustom, session.Notify{Segment: parts[2]})
		return textView("Перечислите идентификаторы пользователей через пробел:"), nil
	}
	return d.mainMenu(ctx, userID, "Неизвестное действие.")
}

// stepNotify обрабатывает шаги подготовки рассылки: список получателей,
// время отправки, текст.
func (d *Dispatcher) stepNotify(ctx context.Context, userID int64, st session.State, text string) (*View, error) {
	data, _ := st.Payload.(session.Notify)

	switch st.Step {
	case session.StepNotifyCustom:
		var ids []int64
		for _, field := range strings.Fields(text) {
			id, err := validation.ParseUserID(field)
			if err != nil {
				return textView("Список должен состоять из числовых идентификаторов. Попробуйте ещё раз:"), nil
			}
			ids = append(ids, id)
		}
		if len(ids) == 0 {
			return textView("Список пуст. Перечислите идентификаторы через пробел:"), nil
		}
		data.CustomUserIDs = ids
		d.sessions.Set(userID, session.StepNotifySchedule, data)
		return textView("Когда отправить? Напишите «сейчас» или время в формате 2006-01-02 15:04:"), nil

	case session.StepNotifySchedule:
		if !strings.EqualFold(text, "сейчас") {
			if _, err := time.ParseInLocation(scheduleLayout, text, time.Local); err != nil {
				return textView("Неверный формат. Напишите «сейчас» или время в формате 2006-01-02 15:04:"), nil
			}
			data.ScheduleAtRaw = text
		}
		d.sessions.Set(userID, session.StepNotifyText, data)
		return textView("Введите текст рассылки:"), nil

	case session.StepNotifyText:
		if strings.TrimSpace(text) == "" {
			return textView("Текст не может быть пустым. Введите текст рассылки:"), nil
		}
		d.sessions.Clear(userID)

		var scheduleAt *time.Time
		if data.ScheduleAtRaw != "" {
			t, err := time.ParseInLocation(scheduleLayout, data.ScheduleAtRaw, time.Local)
			if err != nil {
				return d.failView(userID, "notify schedule", err)
			}
			scheduleAt = &t
		}

		id, err := d.svc.QueueNotification(ctx, userID, text, model.Segment(data.Segment), data.CustomUserIDs, scheduleAt)
		if err != nil {
			return d.failView(userID, "queue notification", err)
		}
		when := "и будет отправлена в ближайшее время"
		if scheduleAt != nil {
			when = "на " + scheduleAt.Format(scheduleLayout)
		}
		return doneView(fmt.Sprintf("Рассылка #%d запланирована %s.", id, when),
			Action{Label: "В меню", Token: "admin:menu"}), nil
	}

	d.sessions.Clear(userID)
	return d.mainMenu(ctx, userID, "Сценарий прерван.")
}

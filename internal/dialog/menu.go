package dialog

import (
	"context"
	"fmt"
	"strings"

	"github.com/avasiliev/chatshop-system/internal/session"
)

// mainMenu строит главное меню. Административный раздел показывается только
// персоналу; право на каждую операцию всё равно проверяется при выполнении.
func (d *Dispatcher) mainMenu(ctx context.Context, userID int64, text string) (*View, error) {
	actions := []Action{
		{Label: "Каталог", Token: "cat:open:root"},
		{Label: "Поиск", Token: "menu:search"},
		{Label: "Корзина", Token: "cart:show"},
		{Label: "Мои заказы", Token: "menu:orders"},
		{Label: "Профиль", Token: "menu:profile"},
		{Label: "Ежедневный бонус", Token: "menu:daily"},
	}

	u, err := d.svc.GetUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	if u.Role.IsStaff() {
		actions = append(actions, Action{Label: "Администрирование", Token: "admin:menu"})
	}

	return doneView(text, actions...), nil
}

func (d *Dispatcher) handleMenu(ctx context.Context, userID int64, parts []string) (*View, error) {
	if len(parts) < 2 {
		return d.mainMenu(ctx, userID, "Выберите действие:")
	}

	switch parts[1] {
	case "main":
		d.sessions.Clear(userID)
		return d.mainMenu(ctx, userID, "Выберите действие:")
	case "profile":
		return d.showProfile(ctx, userID)
	case "daily":
		return d.claimDaily(ctx, userID)
	case "orders":
		return d.showOrders(ctx, userID)
	case "search":
		d.sessions.Set(userID, session.StepSearchQuery, session.Search{})
		return textView("Введите поисковый запрос:"), nil
	case "cancel":
		d.sessions.Clear(userID)
		return d.mainMenu(ctx, userID, "Действие отменено.")
	}
	return d.mainMenu(ctx, userID, "Выберите действие:")
}

// showProfile показывает баллы, реферальную ссылку и статистику приглашений.
func (d *Dispatcher) showProfile(ctx context.Context, userID int64) (*View, error) {
	u, err := d.svc.GetUser(ctx, userID)
	if err != nil {
		return d.failView(userID, "show profile", err)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%s\n", u.FirstName)
	fmt.Fprintf(&b, "Баллы: %d\n", u.Points)
	fmt.Fprintf(&b, "Приглашено: %d\n", u.Referrals)
	fmt.Fprintf(&b, "Ваш код приглашения: %s", u.RefCode)

	return doneView(b.String(), Action{Label: "В меню", Token: "menu:main"}), nil
}

// claimDaily начисляет ежедневный бонус не чаще раза в сутки.
func (d *Dispatcher) claimDaily(ctx context.Context, userID int64) (*View, error) {
	ok, err := d.svc.ClaimDailyBonus(ctx, userID)
	if err != nil {
		return d.failView(userID, "claim daily bonus", err)
	}
	if !ok {
		return doneView("Бонус уже получен, возвращайтесь завтра.",
			Action{Label: "В меню", Token: "menu:main"}), nil
	}
	return doneView("Ежедневный бонус начислен!",
		Action{Label: "В меню", Token: "menu:main"}), nil
}

// showOrders выводит заказы пользователя с их статусами.
func (d *Dispatcher) showOrders(ctx context.Context, userID int64) (*View, error) {
	orders, err := d.svc.ListOrders(ctx, userID)
	if err != nil {
		return d.failView(userID, "list orders", err)
	}
	if len(orders) == 0 {
		return doneView("У вас пока нет заказов.",
			Action{Label: "В каталог", Token: "cat:open:root"}), nil
	}

	var b strings.Builder
	b.WriteString("Ваши заказы:\n")
	for _, o := range orders {
		fmt.Fprintf(&b, "#%d — %s, сумма %s\n", o.ID, orderStatusLabel(o.Status), formatCents(o.TotalCents))
	}
	return doneView(b.String(), Action{Label: "В меню", Token: "menu:main"}), nil
}

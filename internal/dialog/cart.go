package dialog

import (
	"context"
	"fmt"
	"strings"

	"github.com/avasiliev/chatshop-system/internal/model"
	"github.com/avasiliev/chatshop-system/internal/session"
)

// appliedCoupon возвращает код купона, применённого в текущей беседе.
func (d *Dispatcher) appliedCoupon(userID int64) string {
	st, ok := d.sessions.Get(userID)
	if !ok || st.Step != session.StepCheckoutDone {
		return ""
	}
	data, _ := st.Payload.(session.Checkout)
	return data.CouponCode
}

// handleCart обрабатывает действия корзины: cart:show, cart:add:<id>,
// cart:remove:<id>, cart:clear, cart:coupon, cart:checkout.
func (d *Dispatcher) handleCart(ctx context.Context, userID int64, parts []string) (*View, error) {
	if len(parts) < 2 {
		return d.mainMenu(ctx, userID, "Неизвестное действие.")
	}

	switch parts[1] {
	case "show":
		return d.renderCart(ctx, userID)
	case "add":
		if len(parts) < 3 {
			return d.mainMenu(ctx, userID, "Неизвестное действие.")
		}
		id, err := parseIDArg(parts[2])
		if err != nil || id == nil {
			return d.failView(userID, "cart add", err)
		}
		if err := d.svc.AddToCart(ctx, userID, *id, 1); err != nil {
			return d.failView(userID, "cart add", err)
		}
		return d.renderCart(ctx, userID)
	case "remove":
		if len(parts) < 3 {
			return d.mainMenu(ctx, userID, "Неизвестное действие.")
		}
		id, err := parseIDArg(parts[2])
		if err != nil || id == nil {
			return d.failView(userID, "cart remove", err)
		}
		if err := d.svc.RemoveFromCart(ctx, userID, *id, 1); err != nil {
			return d.failView(userID, "cart remove", err)
		}
		return d.renderCart(ctx, userID)
	case "clear":
		d.sessions.Clear(userID)
		if err := d.svc.ClearCart(ctx, userID); err != nil {
			return d.failView(userID, "cart clear", err)
		}
		return doneView("Корзина очищена.", Action{Label: "В каталог", Token: "cat:open:root"}), nil
	case "coupon":
		d.sessions.Set(userID, session.StepCouponCode, session.Checkout{CouponCode: d.appliedCoupon(userID)})
		return textView("Введите код купона:"), nil
	case "checkout":
		return d.renderPaymentChoice(ctx, userID)
	}
	return d.mainMenu(ctx, userID, "Неизвестное действие.")
}

// renderCart показывает содержимое корзины с итогами. Итоги пересчитываются
// при каждом показе по текущим данным.
func (d *Dispatcher) renderCart(ctx context.Context, userID int64) (*View, error) {
	view, err := d.svc.GetCart(ctx, userID, d.appliedCoupon(userID))
	if err != nil {
		return d.failView(userID, "render cart", err)
	}
	if len(view.Items) == 0 {
		return doneView("Корзина пуста.",
			Action{Label: "В каталог", Token: "cat:open:root"},
			Action{Label: "В меню", Token: "menu:main"}), nil
	}

	var b strings.Builder
	b.WriteString("Ваша корзина:\n")
	for _, it := range view.Items {
		fmt.Fprintf(&b, "%s × %d = %s\n", it.Name, it.Quantity, formatCents(it.PriceCents*it.Quantity))
	}
	if view.Coupon != nil {
		fmt.Fprintf(&b, "Купон %s: скидка %d%%\n", view.Coupon.Code, view.Coupon.DiscountPercent)
	}
	fmt.Fprintf(&b, "Итого: %s\n", formatCents(view.Totals.TotalCents))
	fmt.Fprintf(&b, "Или баллами: %d", view.Totals.PointsCost)

	actions := make([]Action, 0, len(view.Items)+4)
	for _, it := range view.Items {
		actions = append(actions, Action{
			Label: "− " + it.Name,
			Token: fmt.Sprintf("cart:remove:%d", it.ProductID),
		})
	}
	actions = append(actions,
		Action{Label: "Оформить заказ", Token: "cart:checkout"},
		Action{Label: "Применить купон", Token: "cart:coupon"},
		Action{Label: "Очистить", Token: "cart:clear"},
		Action{Label: "В меню", Token: "menu:main"},
	)
	return doneView(b.String(), actions...), nil
}

// stepCouponApply проверяет введённый код купона и запоминает его до
// оформления заказа.
func (d *Dispatcher) stepCouponApply(ctx context.Context, userID int64, text string) (*View, error) {
	coupon, err := d.svc.CheckCoupon(ctx, text)
	if err != nil {
		if msg := friendlyError(err); msg != "" {
			return textView(msg + " Введите другой код или напишите «отмена»."), nil
		}
		return d.failView(userID, "check coupon", err)
	}

	d.sessions.Set(userID, session.StepCheckoutDone, session.Checkout{CouponCode: coupon.Code})
	return d.renderCart(ctx, userID)
}

// renderPaymentChoice предлагает выбрать способ оплаты.
func (d *Dispatcher) renderPaymentChoice(ctx context.Context, userID int64) (*View, error) {
	view, err := d.svc.GetCart(ctx, userID, d.appliedCoupon(userID))
	if err != nil {
		return d.failView(userID, "payment choice", err)
	}
	if len(view.Items) == 0 {
		return doneView("Корзина пуста.", Action{Label: "В каталог", Token: "cat:open:root"}), nil
	}

	text := fmt.Sprintf("К оплате: %s или %d баллов.\nВыберите способ оплаты:",
		formatCents(view.Totals.TotalCents), view.Totals.PointsCost)
	return doneView(text,
		Action{Label: "Оплатить баллами", Token: "checkout:points"},
		Action{Label: "Оплатить переводом", Token: "checkout:manual"},
		Action{Label: "⬅ Назад", Token: "cart:show"},
	), nil
}

// handleCheckout оформляет заказ выбранным способом: checkout:points или
// checkout:manual. Применённый купон фиксируется в сумме заказа.
func (d *Dispatcher) handleCheckout(ctx context.Context, userID int64, parts []string) (*View, error) {
	if len(parts) < 2 {
		return d.mainMenu(ctx, userID, "Неизвестное действие.")
	}
	coupon := d.appliedCoupon(userID)
	d.sessions.Clear(userID)

	switch parts[1] {
	case "points":
		return d.checkoutWithPoints(ctx, userID, coupon)
	case "manual":
		return d.checkoutManual(ctx, userID, coupon)
	}
	return d.mainMenu(ctx, userID, "Неизвестное действие.")
}

// checkoutWithPoints оформляет и оплачивает заказ баллами одной операцией:
// при нехватке баллов заказ не создаётся и корзина не меняется. После оплаты
// выдаётся контент заказа.
func (d *Dispatcher) checkoutWithPoints(ctx context.Context, userID int64, coupon string) (*View, error) {
	res, err := d.svc.Checkout(ctx, userID, model.PaymentKindPoints, coupon)
	if err != nil {
		return d.failView(userID, "checkout points", err)
	}

	text := fmt.Sprintf("Заказ #%d оплачен, списано %d баллов. Спасибо за покупку!",
		res.OrderID, res.PointsCost)

	failures, err := d.svc.FulfillOrder(ctx, res.OrderID)
	if err != nil {
		d.log.Errorw("fulfill order", "order_id", res.OrderID, "error", err)
		text += "\nКонтент будет отправлен отдельно."
	} else if len(failures) > 0 {
		for _, f := range failures {
			d.log.Errorw("deliver item", "order_id", res.OrderID, "product_id", f.ProductID, "error", f.Err)
		}
		text += fmt.Sprintf("\nЧасть позиций (%d) будет отправлена отдельно.", len(failures))
	}

	return doneView(text, Action{Label: "В меню", Token: "menu:main"}), nil
}

// checkoutManual создаёт заказ с ручной оплатой и показывает код платежа
// вместе с реквизитами.
func (d *Dispatcher) checkoutManual(ctx context.Context, userID int64, coupon string) (*View, error) {
	res, err := d.svc.Checkout(ctx, userID, model.PaymentKindManual, coupon)
	if err != nil {
		return d.failView(userID, "checkout manual", err)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Заказ #%d оформлен, к оплате %s.\n", res.OrderID, formatCents(res.TotalCents))

	methods, err := d.svc.ListPaymentMethods(ctx)
	if err != nil {
		d.log.Errorw("list payment methods", "error", err)
	}
	if len(methods) > 0 {
		b.WriteString("Реквизиты для перевода:\n")
		for _, m := range methods {
			fmt.Fprintf(&b, "%s: %s\n", m.Name, m.Details)
		}
	}
	fmt.Fprintf(&b, "Укажите в комментарии к переводу код платежа:\n%s\n", res.PaymentCode)
	b.WriteString("После проверки перевода заказ будет подтверждён.")

	return doneView(b.String(), Action{Label: "В меню", Token: "menu:main"}), nil
}

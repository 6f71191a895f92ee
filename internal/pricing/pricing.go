// Package pricing содержит денежную арифметику магазина: применение скидок
// и пересчёт суммы заказа в бонусные баллы. Все вычисления целочисленные,
// округление всегда вверх, чтобы не занижать стоимость.
package pricing

// Totals содержит результат расчёта стоимости корзины.
type Totals struct {
	SubtotalCents   int64
	DiscountPercent int64
	TotalCents      int64
	PointsCost      int64
}

// Compute рассчитывает итоги корзины: скидка процентная, применяется один раз
// к промежуточной сумме. Стоимость в баллах считается из точного произведения
// subtotal*(100-d)*rate без промежуточного округления до центов.
func Compute(subtotalCents, discountPercent, pointsPerUnit int64) Totals {
	if discountPercent < 0 {
		discountPercent = 0
	}
	if discountPercent > 100 {
		discountPercent = 100
	}

	return Totals{
		SubtotalCents:   subtotalCents,
		DiscountPercent: discountPercent,
		TotalCents:      ApplyDiscount(subtotalCents, discountPercent),
		PointsCost:      PointsCost(subtotalCents, discountPercent, pointsPerUnit),
	}
}

// ApplyDiscount возвращает сумму после процентной скидки, округлённую вверх до цента.
func ApplyDiscount(subtotalCents, discountPercent int64) int64 {
	return ceilDiv(subtotalCents*(100-discountPercent), 100)
}

// PointsCost возвращает стоимость корзины в баллах по фиксированному курсу
// pointsPerUnit баллов за денежную единицу. Дробная часть всегда округляется вверх.
func PointsCost(subtotalCents, discountPercent, pointsPerUnit int64) int64 {
	// subtotalCents*(100-d) — сумма в сотых долях цента; делитель 100*100
	// переводит её в денежные единицы.
	return ceilDiv(subtotalCents*(100-discountPercent)*pointsPerUnit, 100*100)
}

func ceilDiv(a, b int64) int64 {
	if a <= 0 {
		return 0
	}
	return (a + b - 1) / b
}

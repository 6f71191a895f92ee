// Package validation содержит разбор свободного текстового ввода из чата.
package validation

import (
	"errors"
	"strconv"
	"strings"
)

// ErrBadInput возвращается при нечисловом или выходящем за допустимые пределы вводе.
var ErrBadInput = errors.New("invalid input")

// ParsePriceCents разбирает цену вида "19.99" и возвращает её в центах.
// Допускается не более двух знаков после точки, цена не может быть отрицательной.
func ParsePriceCents(s string) (int64, error) {
	s = strings.TrimSpace(s)
	if s == "" || strings.HasPrefix(s, "-") || strings.HasPrefix(s, "+") {
		return 0, ErrBadInput
	}

	whole := s
	frac := ""
	if i := strings.IndexByte(s, '.'); i >= 0 {
		whole, frac = s[:i], s[i+1:]
	}
	if whole == "" || len(frac) > 2 {
		return 0, ErrBadInput
	}
	for len(frac) < 2 {
		frac += "0"
	}

	w, err := strconv.ParseInt(whole, 10, 64)
	if err != nil {
		return 0, ErrBadInput
	}
	var f int64
	if frac != "00" {
		f, err = strconv.ParseInt(frac, 10, 64)
		if err != nil {
			return 0, ErrBadInput
		}
	}

	return w*100 + f, nil
}

// ParseQuantity разбирает положительное целое количество.
func ParseQuantity(s string) (int64, error) {
	v, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
	if err != nil || v <= 0 {
		return 0, ErrBadInput
	}
	return v, nil
}

// ParseStock разбирает неотрицательный остаток на складе.
func ParseStock(s string) (int64, error) {
	v, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
	if err != nil || v < 0 {
		return 0, ErrBadInput
	}
	return v, nil
}

// ParsePoints разбирает положительное число баллов.
func ParsePoints(s string) (int64, error) {
	return ParseQuantity(s)
}

// ParseUserID разбирает идентификатор пользователя чата.
func ParseUserID(s string) (int64, error) {
	return ParseQuantity(s)
}

// ParseDiscountPercent разбирает процент скидки в диапазоне 0..100.
func ParseDiscountPercent(s string) (int64, error) {
	v, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
	if err != nil || v < 0 || v > 100 {
		return 0, ErrBadInput
	}
	return v, nil
}

// IsValidPaymentCode проверяет форму кода ручной оплаты: UUID в каноничной записи.
func IsValidPaymentCode(code string) bool {
	if len(code) != 36 {
		return false
	}
	for i, ch := range code {
		switch i {
		case 8, 13, 18, 23:
			if ch != '-' {
				return false
			}
		default:
			isHex := (ch >= '0' && ch <= '9') || (ch >= 'a' && ch <= 'f')
			if !isHex {
				return false
			}
		}
	}
	return true
}

// NormalizeCouponCode приводит код купона к каноничному виду.
func NormalizeCouponCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

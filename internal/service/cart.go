package service

import (
	"context"
	"errors"

	"github.com/avasiliev/chatshop-system/internal/model"
	"github.com/avasiliev/chatshop-system/internal/pricing"
	"github.com/avasiliev/chatshop-system/internal/repository"
	"github.com/avasiliev/chatshop-system/internal/validation"
)

// CartView описывает корзину вместе с рассчитанными итогами. Итоги всегда
// вычисляются заново по текущему содержимому и купону.
type CartView struct {
	Items  []model.CartItem
	Coupon *model.Coupon
	Totals pricing.Totals
}

// AddToCart добавляет товар в корзину. Запрос сверх остатка отклоняется целиком.
func (s *Service) AddToCart(ctx context.Context, userID, productID, qty int64) error {
	if qty <= 0 {
		return validation.ErrBadInput
	}
	return s.repo.AddCartItem(ctx, userID, productID, qty)
}

// RemoveFromCart уменьшает количество товара в корзине. Позиция с нулевым
// остатком удаляется.
func (s *Service) RemoveFromCart(ctx context.Context, userID, productID, qty int64) error {
	if qty <= 0 {
		return validation.ErrBadInput
	}
	return s.repo.RemoveCartItem(ctx, userID, productID, qty)
}

// ClearCart очищает корзину пользователя.
func (s *Service) ClearCart(ctx context.Context, userID int64) error {
	return s.repo.ClearCart(ctx, userID)
}

// GetCart возвращает корзину с итогами. couponCode — применённый купон,
// пустая строка означает отсутствие скидки. Купон, деактивированный после
// применения, молча перестаёт действовать.
func (s *Service) GetCart(ctx context.Context, userID int64, couponCode string) (*CartView, error) {
	items, err := s.repo.GetCartItems(ctx, userID)
	if err != nil {
		return nil, err
	}

	view := &CartView{Items: items}

	var discount int64
	if couponCode != "" {
		coupon, err := s.repo.GetActiveCoupon(ctx, validation.NormalizeCouponCode(couponCode))
		switch {
		case err == nil:
			view.Coupon = coupon
			discount = coupon.DiscountPercent
		case !errors.Is(err, repository.ErrCouponNotFound):
			return nil, err
		}
	}

	var subtotal int64
	for _, it := range items {
		subtotal += it.PriceCents * it.Quantity
	}
	view.Totals = pricing.Compute(subtotal, discount, s.cfg.PointsPerUnit)
	return view, nil
}

// CheckCoupon проверяет код купона и возвращает его, если купон активен.
func (s *Service) CheckCoupon(ctx context.Context, code string) (*model.Coupon, error) {
	return s.repo.GetActiveCoupon(ctx, validation.NormalizeCouponCode(code))
}

// AddCoupon создаёт купон. Операция доступна только администраторам.
func (s *Service) AddCoupon(ctx context.Context, adminID int64, code string, discountPercent int64) error {
	if _, err := s.requireStaff(ctx, adminID); err != nil {
		return err
	}
	if discountPercent < 0 || discountPercent > 100 {
		return validation.ErrBadInput
	}
	code = validation.NormalizeCouponCode(code)
	if code == "" {
		return validation.ErrBadInput
	}
	return s.repo.CreateCoupon(ctx, code, discountPercent)
}

// DeleteCoupon деактивирует купон.
func (s *Service) DeleteCoupon(ctx context.Context, adminID int64, code string) error {
	if _, err := s.requireStaff(ctx, adminID); err != nil {
		return err
	}
	return s.repo.DeleteCoupon(ctx, validation.NormalizeCouponCode(code))
}

// ListCoupons возвращает все купоны магазина.
func (s *Service) ListCoupons(ctx context.Context, adminID int64) ([]model.Coupon, error) {
	if _, err := s.requireStaff(ctx, adminID); err != nil {
		return nil, err
	}
	return s.repo.ListCoupons(ctx)
}

// AddPaymentMethod создаёт реквизиты ручной оплаты.
func (s *Service) AddPaymentMethod(ctx context.Context, adminID int64, name, details string) (int64, error) {
	if _, err := s.requireStaff(ctx, adminID); err != nil {
		return 0, err
	}
	if name == "" || details == "" {
		return 0, validation.ErrBadInput
	}
	return s.repo.CreatePaymentMethod(ctx, name, details)
}

// DeletePaymentMethod удаляет реквизиты ручной оплаты.
func (s *Service) DeletePaymentMethod(ctx context.Context, adminID, id int64) error {
	if _, err := s.requireStaff(ctx, adminID); err != nil {
		return err
	}
	return s.repo.DeletePaymentMethod(ctx, id)
}

// ListPaymentMethods возвращает реквизиты ручной оплаты для показа покупателю.
func (s *Service) ListPaymentMethods(ctx context.Context) ([]model.PaymentMethod, error) {
	return s.repo.ListPaymentMethods(ctx)
}

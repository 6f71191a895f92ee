package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/avasiliev/chatshop-system/internal/model"
	"github.com/avasiliev/chatshop-system/internal/repository"
	"github.com/avasiliev/chatshop-system/internal/validation"
)

// ErrSenderUnavailable возвращается, когда чат-шлюз не настроен и выдача
// контента невозможна.
var ErrSenderUnavailable = errors.New("content sender is not configured")

// ErrOrderNotAccepted возвращается при попытке выдать контент заказа,
// оплата которого ещё не подтверждена.
var ErrOrderNotAccepted = errors.New("order is not accepted")

// CheckoutResult описывает оформленный заказ.
type CheckoutResult struct {
	OrderID    int64
	TotalCents int64
	PointsCost int64
	// PaymentCode заполняется только для ручной оплаты.
	PaymentCode string
}

// Checkout оформляет заказ из текущей корзины. Скидка купона фиксируется
// в сумме заказа; дальнейшая деактивация купона на заказ не влияет.
// Оплата баллами выполняется в одной транзакции с оформлением: проверка
// баланса, списание, создание заказа и очистка корзины фиксируются вместе,
// и при нехватке баллов корзина остаётся нетронутой. Для ручной оплаты
// создаётся ожидающий заказ с уникальным кодом платежа.
func (s *Service) Checkout(ctx context.Context, userID int64, kind model.PaymentKind, couponCode string) (*CheckoutResult, error) {
	var discount int64
	if couponCode != "" {
		coupon, err := s.repo.GetActiveCoupon(ctx, validation.NormalizeCouponCode(couponCode))
		switch {
		case err == nil:
			discount = coupon.DiscountPercent
		case !errors.Is(err, repository.ErrCouponNotFound):
			return nil, err
		}
	}

	if kind == model.PaymentKindPoints {
		res, err := s.repo.PayCartWithPoints(ctx, userID, discount, s.cfg.PointsPerUnit)
		if err != nil {
			return nil, err
		}
		return &CheckoutResult{
			OrderID:    res.OrderID,
			TotalCents: res.TotalCents,
			PointsCost: res.PointsCost,
		}, nil
	}

	code := uuid.NewString()
	res, err := s.repo.CreateOrderFromCart(ctx, userID, kind, &code, discount, s.cfg.PointsPerUnit)
	if err != nil {
		return nil, err
	}
	return &CheckoutResult{
		OrderID:     res.OrderID,
		TotalCents:  res.TotalCents,
		PointsCost:  res.PointsCost,
		PaymentCode: code,
	}, nil
}

// VerifyResult описывает итог подтверждения ручного платежа.
type VerifyResult struct {
	OrderID int64
	UserID  int64
	// ReferrerBonused отмечает, что пригласившему начислен бонус за первую
	// покупку приглашённого.
	ReferrerBonused bool
	ReferrerID      *int64
}

// VerifyManualPayment подтверждает ручной платёж по коду. Операция доступна
// только администраторам и идемпотентна: повторное подтверждение того же кода
// возвращает ошибку, а бонус пригласившему начисляется не больше одного раза.
func (s *Service) VerifyManualPayment(ctx context.Context, adminID int64, code string) (*VerifyResult, error) {
	if _, err := s.requireStaff(ctx, adminID); err != nil {
		return nil, err
	}
	if !validation.IsValidPaymentCode(code) {
		return nil, repository.ErrPaymentNotFound
	}

	vp, err := s.repo.VerifyManualPayment(ctx, code, s.cfg.ReferralPurchaseBonus)
	if err != nil {
		return nil, err
	}
	return &VerifyResult{
		OrderID:         vp.OrderID,
		UserID:          vp.UserID,
		ReferrerBonused: vp.ReferrerBonused,
		ReferrerID:      vp.ReferrerID,
	}, nil
}

// RejectOrder отклоняет ожидающий заказ и возвращает зарезервированные остатки
// товаров. Операция доступна только администраторам.
func (s *Service) RejectOrder(ctx context.Context, adminID, orderID int64) error {
	if _, err := s.requireStaff(ctx, adminID); err != nil {
		return err
	}
	return s.repo.RejectOrder(ctx, orderID)
}

// DeliveryFailure описывает позицию заказа, которую не удалось выдать.
type DeliveryFailure struct {
	ProductID int64
	Name      string
	Err       error
}

// FulfillOrder выдаёт покупателю контент подтверждённого заказа. Выдача
// выполняется после фиксации оплаты и идемпотентна на стороне получателя:
// повторная отправка того же контента допустима. Сбои отдельных позиций
// не прерывают выдачу остальных и возвращаются списком.
func (s *Service) FulfillOrder(ctx context.Context, orderID int64) ([]DeliveryFailure, error) {
	if s.sender == nil {
		return nil, ErrSenderUnavailable
	}

	order, err := s.repo.GetOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if order.Status != model.OrderStatusAccepted {
		return nil, ErrOrderNotAccepted
	}

	items, err := s.repo.GetOrderItems(ctx, orderID)
	if err != nil {
		return nil, err
	}

	var failures []DeliveryFailure
	for _, it := range items {
		if it.ContentRef == "" {
			continue
		}
		if err := s.sender.SendContent(ctx, order.UserID, it.Name, it.ContentRef); err != nil {
			failures = append(failures, DeliveryFailure{
				ProductID: it.ProductID,
				Name:      it.Name,
				Err:       fmt.Errorf("send content: %w", err),
			})
		}
	}
	return failures, nil
}

// GetOrder возвращает заказ по идентификатору.
func (s *Service) GetOrder(ctx context.Context, orderID int64) (*model.Order, error) {
	return s.repo.GetOrder(ctx, orderID)
}

// ListOrders возвращает заказы пользователя.
func (s *Service) ListOrders(ctx context.Context, userID int64) ([]model.Order, error) {
	return s.repo.ListOrdersByUser(ctx, userID)
}

// ListPendingOrders возвращает все ожидающие заказы. Операция доступна только
// администраторам.
func (s *Service) ListPendingOrders(ctx context.Context, adminID int64) ([]model.Order, error) {
	if _, err := s.requireStaff(ctx, adminID); err != nil {
		return nil, err
	}
	return s.repo.ListPendingOrders(ctx)
}

// Package service реализует бизнес-логику чат-магазина.
package service

import (
	"context"
	"errors"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/avasiliev/chatshop-system/internal/extract"
	"github.com/avasiliev/chatshop-system/internal/model"
	"github.com/avasiliev/chatshop-system/internal/repository"
)

// ErrPermissionDenied возвращается, когда у пользователя нет прав на операцию.
// Роль проверяется по базе на каждом шаге, а не по началу диалога: понижение
// роли вступает в силу немедленно.
var ErrPermissionDenied = errors.New("permission denied")

// Repository описывает контракт доступа к данным, используемый сервисом.
type Repository interface {
	Close() error

	RegisterUser(ctx context.Context, userID int64, firstName, refCode string,
		referredBy *int64, referrerBonus, refereeBonus int64) (bool, error)
	GetUserByID(ctx context.Context, userID int64) (*model.User, error)
	GetUserByRefCode(ctx context.Context, refCode string) (*model.User, error)
	AddPoints(ctx context.Context, userID, points int64) error
	DeductPoints(ctx context.Context, userID, points int64) error
	SetUserRole(ctx context.Context, userID int64, role model.Role) error
	TouchUserActivity(ctx context.Context, userID int64) error
	ClaimDailyBonus(ctx context.Context, userID, points int64, minInterval time.Duration) (bool, error)

	CreateCategory(ctx context.Context, name string, parentID *int64) (int64, error)
	GetCategory(ctx context.Context, id int64) (*model.Category, error)
	ListChildCategories(ctx context.Context, parentID *int64) ([]model.Category, error)
	ListAllCategories(ctx context.Context) ([]model.Category, error)
	RenameCategory(ctx context.Context, id int64, newName string) error
	DeleteCategoryCascade(ctx context.Context, id int64) (int64, error)

	CreateProduct(ctx context.Context, in model.ProductInput) (int64, error)
	UpdateProduct(ctx context.Context, id int64, in model.ProductInput) error
	ArchiveProduct(ctx context.Context, id int64) error
	GetProduct(ctx context.Context, id int64) (*model.Product, error)
	ListProducts(ctx context.Context, categoryID *int64, includeArchived bool) ([]model.Product, error)
	SearchProducts(ctx context.Context, f model.SearchFilter) ([]model.Product, error)

	AddCartItem(ctx context.Context, userID, productID, qty int64) error
	RemoveCartItem(ctx context.Context, userID, productID, qty int64) error
	GetCartItems(ctx context.Context, userID int64) ([]model.CartItem, error)
	ClearCart(ctx context.Context, userID int64) error

	CreateOrderFromCart(ctx context.Context, userID int64, kind model.PaymentKind,
		paymentCode *string, discountPercent, pointsPerUnit int64) (*repository.CheckoutResult, error)
	PayCartWithPoints(ctx context.Context, userID int64, discountPercent, pointsPerUnit int64) (*repository.CheckoutResult, error)
	VerifyManualPayment(ctx context.Context, code string, referrerBonus int64) (*repository.VerifiedPayment, error)
	RejectOrder(ctx context.Context, orderID int64) error
	GetOrder(ctx context.Context, orderID int64) (*model.Order, error)
	ListOrdersByUser(ctx context.Context, userID int64) ([]model.Order, error)
	ListPendingOrders(ctx context.Context) ([]model.Order, error)
	GetOrderItems(ctx context.Context, orderID int64) ([]model.OrderItem, error)

	CreateCoupon(ctx context.Context, code string, discountPercent int64) error
	GetActiveCoupon(ctx context.Context, code string) (*model.Coupon, error)
	DeleteCoupon(ctx context.Context, code string) error
	ListCoupons(ctx context.Context) ([]model.Coupon, error)

	CreatePaymentMethod(ctx context.Context, name, details string) (int64, error)
	DeletePaymentMethod(ctx context.Context, id int64) error
	ListPaymentMethods(ctx context.Context) ([]model.PaymentMethod, error)

	QueueNotification(ctx context.Context, text string, segment model.Segment,
		customUserIDs []int64, scheduleAt *time.Time) (int64, error)
}

// ContentSender отправляет пользователю сообщения и цифровой контент
// через чат-шлюз.
type ContentSender interface {
	SendMessage(ctx context.Context, userID int64, text string) error
	SendContent(ctx context.Context, userID int64, name, contentRef string) error
}

// Config содержит параметры начислений магазина.
type Config struct {
	// PointsPerUnit — баллов за единицу валюты при оплате баллами.
	PointsPerUnit int64
	// ReferralBonus начисляется пригласившему за регистрацию по его ссылке.
	ReferralBonus int64
	// RefereeBonus начисляется приглашённому при регистрации.
	RefereeBonus int64
	// ReferralPurchaseBonus начисляется пригласившему за первую подтверждённую
	// покупку приглашённого.
	ReferralPurchaseBonus int64
	// DailyBonus — размер ежедневного бонуса.
	DailyBonus int64
}

// Service содержит бизнес-логику чат-магазина.
type Service struct {
	repo      Repository
	extractor *extract.Client
	sender    ContentSender
	cfg       Config
	validate  *validator.Validate
}

// NewService создаёт новый сервис с указанным репозиторием, клиентом извлечения
// и отправителем контента. extractor и sender могут быть nil, тогда
// соответствующие операции возвращают ошибку.
func NewService(repo Repository, extractor *extract.Client, sender ContentSender, cfg Config) *Service {
	return &Service{
		repo:      repo,
		extractor: extractor,
		sender:    sender,
		cfg:       cfg,
		validate:  validator.New(),
	}
}

// Close закрывает ресурсы сервиса.
func (s *Service) Close() error {
	if s.repo != nil {
		return s.repo.Close()
	}
	return nil
}

// requireStaff проверяет, что пользователь имеет административные права.
// Проверка выполняется по текущему состоянию базы.
func (s *Service) requireStaff(ctx context.Context, userID int64) (*model.User, error) {
	u, err := s.repo.GetUserByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if !u.Role.IsStaff() {
		return nil, ErrPermissionDenied
	}
	return u, nil
}

// requireOwner проверяет, что пользователь является владельцем магазина.
func (s *Service) requireOwner(ctx context.Context, userID int64) (*model.User, error) {
	u, err := s.repo.GetUserByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if u.Role != model.RoleOwner {
		return nil, ErrPermissionDenied
	}
	return u, nil
}

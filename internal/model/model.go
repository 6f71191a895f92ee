// Package model содержит доменные сущности чат-магазина.
package model

import "time"

// Role описывает роль пользователя в магазине.
type Role string

const (
	RoleUser  Role = "user"
	RoleAdmin Role = "admin"
	RoleOwner Role = "owner"
)

// IsStaff сообщает, имеет ли роль административные права.
func (r Role) IsStaff() bool {
	return r == RoleAdmin || r == RoleOwner
}

// User представляет пользователя магазина и его бонусный счёт.
type User struct {
	ID             int64
	FirstName      string
	Points         int64
	Referrals      int64
	RefCode        string
	ReferredBy     *int64
	Role           Role
	LastDailyClaim *time.Time
	LastActive     time.Time
	CreatedAt      time.Time
}

// Category представляет узел дерева категорий. ParentID == nil означает корневой узел.
type Category struct {
	ID       int64
	Name     string
	ParentID *int64
}

// Product описывает товар магазина. Цена хранится в центах.
type Product struct {
	ID          int64
	Name        string
	PriceCents  int64
	Stock       int64
	CategoryID  *int64
	Description string
	ContentRef  string
	Active      bool
	CreatedAt   time.Time
}

// ProductInput содержит поля товара для создания или изменения.
type ProductInput struct {
	Name        string `validate:"required,max=255"`
	PriceCents  int64  `validate:"gte=0"`
	Stock       int64  `validate:"gte=0"`
	CategoryID  *int64
	Description string
	ContentRef  string
}

// CartItem описывает позицию корзины вместе с данными товара.
type CartItem struct {
	UserID     int64
	ProductID  int64
	Quantity   int64
	Name       string
	PriceCents int64
	ContentRef string
}

// OrderStatus описывает состояние заказа.
type OrderStatus string

const (
	OrderStatusPending  OrderStatus = "pending"
	OrderStatusAccepted OrderStatus = "accepted"
	OrderStatusRejected OrderStatus = "rejected"
)

// Order описывает заказ. Итоговая сумма фиксируется в момент оформления.
type Order struct {
	ID         int64
	UserID     int64
	Status     OrderStatus
	TotalCents int64
	PointsCost int64
	CreatedAt  time.Time
}

// OrderItem описывает позицию заказа — снимок корзины на момент оформления.
type OrderItem struct {
	OrderID    int64
	ProductID  int64
	Quantity   int64
	Name       string
	PriceCents int64
	ContentRef string
}

// PaymentKind описывает способ оплаты заказа.
type PaymentKind string

const (
	PaymentKindPoints PaymentKind = "points"
	PaymentKindManual PaymentKind = "manual"
)

// PaymentStatus описывает состояние платежа.
type PaymentStatus string

const (
	PaymentStatusPending   PaymentStatus = "pending"
	PaymentStatusCompleted PaymentStatus = "completed"
)

// Payment описывает платёж по заказу. Code заполняется только для ручной оплаты.
type Payment struct {
	ID        int64
	OrderID   int64
	Kind      PaymentKind
	Code      *string
	Status    PaymentStatus
	CreatedAt time.Time
}

// Coupon описывает купон с процентной скидкой.
type Coupon struct {
	Code            string
	DiscountPercent int64
	Active          bool
}

// PaymentMethod описывает реквизиты ручной оплаты, управляемые администратором.
type PaymentMethod struct {
	ID      int64
	Name    string
	Details string
}

// Segment описывает сегмент получателей уведомления.
type Segment string

const (
	SegmentAll      Segment = "all"
	SegmentRecent   Segment = "recent"
	SegmentBuyers   Segment = "buyers"
	SegmentInactive Segment = "inactive"
	SegmentCustom   Segment = "custom"
)

// NotificationStatus описывает состояние уведомления в очереди рассылки.
type NotificationStatus string

const (
	NotificationStatusQueued  NotificationStatus = "queued"
	NotificationStatusSent    NotificationStatus = "sent"
	NotificationStatusPartial NotificationStatus = "partial"
)

// Notification описывает отложенную рассылку по сегменту пользователей.
type Notification struct {
	ID            int64
	Text          string
	Segment       Segment
	CustomUserIDs []int64
	ScheduleAt    *time.Time
	Status        NotificationStatus
}

// SearchFilter задаёт условия поиска товаров.
type SearchFilter struct {
	Query         string
	PriceMinCents *int64
	PriceMaxCents *int64
	InStockOnly   bool
	CategoryID    *int64
	Sort          SearchSort
}

// SearchSort описывает порядок сортировки результатов поиска.
type SearchSort string

const (
	SortNewest    SearchSort = "newest"
	SortPriceAsc  SearchSort = "price_asc"
	SortPriceDesc SearchSort = "price_desc"
	SortStockDesc SearchSort = "stock_desc"
)

// Package session содержит контейнер состояний многошаговых диалогов.
// Каждому пользователю соответствует не больше одного активного шага;
// полезная нагрузка шага — типизированная, по одной структуре на сценарий,
// вместо свободного набора ключей.
package session

import "sync"

// Step идентифицирует шаг диалога.
type Step string

const (
	StepNone Step = ""

	// Добавление категории: имя вводится первым, запись создаётся только после
	// выбора родителя.
	StepCategoryName   Step = "category.name"
	StepCategoryParent Step = "category.parent"

	// Переименование категории: идентификатор, затем новое имя.
	StepCategoryRenameID   Step = "category.rename.id"
	StepCategoryRenameName Step = "category.rename.name"

	// Удаление категории: выбор узла.
	StepCategoryDelete Step = "category.delete"

	// Добавление товара.
	StepProductName        Step = "product.name"
	StepProductPrice       Step = "product.price"
	StepProductStock       Step = "product.stock"
	StepProductCategory    Step = "product.category"
	StepProductDescription Step = "product.description"
	StepProductContent     Step = "product.content"

	// Добавление товара по свободному тексту через сервис извлечения.
	StepProductAIText    Step = "product.ai.text"
	StepProductAIConfirm Step = "product.ai.confirm"

	// Редактирование и архивация товара.
	StepProductEditID    Step = "product.edit.id"
	StepProductEditValue Step = "product.edit.value"
	StepProductArchive   Step = "product.archive"

	// Корзина и оформление заказа.
	StepCouponCode    Step = "coupon.apply"
	StepCheckoutDone  Step = "checkout.done"
	StepVerifyPayment Step = "payment.verify"

	// Администрирование купонов.
	StepCouponAddCode     Step = "coupon.add.code"
	StepCouponAddDiscount Step = "coupon.add.discount"
	StepCouponDelete      Step = "coupon.delete"

	// Администрирование баллов и ролей.
	StepPointsUserID Step = "points.user"
	StepPointsAmount Step = "points.amount"
	StepRoleUserID   Step = "role.user"
	StepRolePick     Step = "role.pick"

	// Реквизиты оплаты.
	StepPayMethodName    Step = "paymethod.name"
	StepPayMethodDetails Step = "paymethod.details"
	StepPayMethodDelete  Step = "paymethod.delete"

	// Поиск по каталогу.
	StepSearchQuery Step = "search.query"

	// Рассылки.
	StepNotifySchedule Step = "notify.schedule"
	StepNotifyCustom   Step = "notify.custom"
	StepNotifyText     Step = "notify.text"
)

// Payload объединяет типизированные полезные нагрузки шагов. Тип-сумма
// закрыта: реализации перечислены в этом пакете.
type Payload interface {
	sessionPayload()
}

// CategoryAdd хранит промежуточные данные добавления категории. Имя сохраняется
// при конфликте, чтобы администратор не вводил его заново.
type CategoryAdd struct {
	Name string
}

// CategoryRename хранит идентификатор переименовываемого узла.
type CategoryRename struct {
	CategoryID int64
}

// ProductAdd хранит накопленные поля нового товара и позицию обхода дерева
// при выборе категории.
type ProductAdd struct {
	Name        string
	PriceCents  int64
	Stock       int64
	Description string
	ContentRef  string
	CategoryID  *int64
	// WalkAt — текущий узел обхода дерева категорий (nil — корень).
	WalkAt *int64
	// FromExtract отмечает, что поля получены из сервиса извлечения
	// и ожидают подтверждения.
	FromExtract bool
}

// ProductEdit хранит редактируемый товар и выбранное поле.
type ProductEdit struct {
	ProductID int64
	Field     string
}

// PointsAdjust хранит параметры ручной корректировки баллов.
type PointsAdjust struct {
	UserID int64
	Deduct bool
}

// RoleChange хранит пользователя, роль которого меняется.
type RoleChange struct {
	UserID int64
}

// CouponAdd хранит код создаваемого купона.
type CouponAdd struct {
	Code string
}

// PayMethodAdd хранит имя создаваемых реквизитов оплаты.
type PayMethodAdd struct {
	Name string
}

// Notify хранит параметры готовящейся рассылки.
type Notify struct {
	Segment       string
	CustomUserIDs []int64
	ScheduleAtRaw string
}

// Checkout хранит применённый купон до оформления заказа.
type Checkout struct {
	CouponCode string
}

// Search хранит параметры поиска между запросом и выбором сортировки.
type Search struct {
	Sort string
}

func (CategoryAdd) sessionPayload()    {}
func (CategoryRename) sessionPayload() {}
func (ProductAdd) sessionPayload()     {}
func (ProductEdit) sessionPayload()    {}
func (PointsAdjust) sessionPayload()   {}
func (RoleChange) sessionPayload()     {}
func (CouponAdd) sessionPayload()      {}
func (PayMethodAdd) sessionPayload()   {}
func (Notify) sessionPayload()         {}
func (Checkout) sessionPayload()       {}
func (Search) sessionPayload()         {}

// State описывает текущий шаг диалога пользователя.
type State struct {
	Step    Step
	Payload Payload
}

// Store хранит состояния диалогов в памяти процесса. Шаги одного пользователя
// обрабатываются строго последовательно, поэтому достаточно одного мьютекса.
type Store struct {
	mu     sync.Mutex
	states map[int64]State
}

// NewStore создаёт пустое хранилище состояний.
func NewStore() *Store {
	return &Store{states: make(map[int64]State)}
}

// Get возвращает текущее состояние диалога пользователя.
func (s *Store) Get(userID int64) (State, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.states[userID]
	return st, ok
}

// Set сохраняет состояние диалога пользователя.
func (s *Store) Set(userID int64, step Step, payload Payload) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.states[userID] = State{Step: step, Payload: payload}
}

// Clear сбрасывает диалог пользователя. Отмена беседы не требует компенсаций:
// до фиксации шага никакие общие ресурсы не удерживаются.
func (s *Store) Clear(userID int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.states, userID)
}

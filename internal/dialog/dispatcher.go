package dialog

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/avasiliev/chatshop-system/internal/model"
	"github.com/avasiliev/chatshop-system/internal/repository"
	"github.com/avasiliev/chatshop-system/internal/service"
	"github.com/avasiliev/chatshop-system/internal/session"
	"github.com/avasiliev/chatshop-system/internal/validation"
)

// Dispatcher маршрутизирует события пользователей: нажатия кнопок, текстовые
// ответы многошаговых сценариев и первое обращение к магазину.
type Dispatcher struct {
	svc      *service.Service
	sessions *session.Store
	log      *zap.SugaredLogger
}

// NewDispatcher создаёт диалоговый маршрутизатор.
func NewDispatcher(svc *service.Service, sessions *session.Store, log *zap.SugaredLogger) *Dispatcher {
	return &Dispatcher{svc: svc, sessions: sessions, log: log}
}

// Start регистрирует пользователя при первом обращении и возвращает
// приветственное меню. Повторный вызов идемпотентен.
func (d *Dispatcher) Start(ctx context.Context, userID int64, firstName, refCode string) (*View, error) {
	res, err := d.svc.Register(ctx, userID, firstName, refCode)
	if err != nil {
		return nil, err
	}

	text := fmt.Sprintf("Здравствуйте, %s! Добро пожаловать в магазин.", res.User.FirstName)
	if res.Referred {
		text += "\nВам начислен приветственный бонус за регистрацию по приглашению."
	}
	return d.mainMenu(ctx, userID, text)
}

// HandleEvent обрабатывает событие пользователя: нажатие кнопки (token) или
// текстовый ввод. Кнопка имеет приоритет и сбрасывает незавершённый сценарий,
// если начинает новый.
func (d *Dispatcher) HandleEvent(ctx context.Context, userID int64, text, token string) (*View, error) {
	if err := d.svc.TouchActivity(ctx, userID); err != nil {
		d.log.Warnw("touch activity", "user_id", userID, "error", err)
	}

	if token != "" {
		return d.handleAction(ctx, userID, token)
	}

	if st, ok := d.sessions.Get(userID); ok {
		return d.handleStep(ctx, userID, st, strings.TrimSpace(text))
	}

	return d.mainMenu(ctx, userID, "Выберите действие:")
}

// handleAction разбирает токен кнопки и выполняет действие. Грамматика
// токена: area:verb[:arg].
func (d *Dispatcher) handleAction(ctx context.Context, userID int64, token string) (*View, error) {
	parts := strings.Split(token, ":")

	switch parts[0] {
	case "menu":
		return d.handleMenu(ctx, userID, parts)
	case "cat":
		return d.handleCatalog(ctx, userID, parts)
	case "prod":
		return d.handleProduct(ctx, userID, parts)
	case "cart":
		return d.handleCart(ctx, userID, parts)
	case "checkout":
		return d.handleCheckout(ctx, userID, parts)
	case "admin":
		return d.handleAdmin(ctx, userID, parts)
	case "cpick":
		return d.handleCategoryPick(ctx, userID, parts)
	case "ppick":
		return d.handleProductCategoryPick(ctx, userID, parts)
	case "role":
		return d.handleRolePick(ctx, userID, parts)
	case "notify":
		return d.handleNotifyPick(ctx, userID, parts)
	case "aiprod":
		return d.handleExtractConfirm(ctx, userID, parts)
	case "pedit":
		return d.handleProductEditPick(ctx, userID, parts)
	case "search":
		return d.handleSearchPick(ctx, userID, parts)
	}

	d.log.Warnw("unknown action token", "user_id", userID, "token", token)
	return d.mainMenu(ctx, userID, "Неизвестное действие.")
}

// handleStep передаёт текстовый ввод активному сценарию.
func (d *Dispatcher) handleStep(ctx context.Context, userID int64, st session.State, text string) (*View, error) {
	if strings.EqualFold(text, "отмена") {
		d.sessions.Clear(userID)
		return doneView("Действие отменено."), nil
	}

	switch st.Step {
	case session.StepCategoryName, session.StepCategoryRenameID, session.StepCategoryRenameName,
		session.StepCategoryDelete:
		return d.stepCategory(ctx, userID, st, text)
	case session.StepProductName, session.StepProductPrice, session.StepProductStock,
		session.StepProductDescription, session.StepProductContent,
		session.StepProductAIText, session.StepProductEditID, session.StepProductArchive:
		return d.stepProduct(ctx, userID, st, text)
	case session.StepCouponCode:
		return d.stepCouponApply(ctx, userID, text)
	case session.StepCheckoutDone:
		// Купон уже применён, текстовый ввод не ожидается.
		return d.renderCart(ctx, userID)
	case session.StepCouponAddCode, session.StepCouponAddDiscount, session.StepCouponDelete:
		return d.stepCouponAdmin(ctx, userID, st, text)
	case session.StepPointsUserID, session.StepPointsAmount:
		return d.stepPoints(ctx, userID, st, text)
	case session.StepRoleUserID:
		return d.stepRoleUser(ctx, userID, text)
	case session.StepVerifyPayment:
		return d.stepVerifyPayment(ctx, userID, text)
	case session.StepPayMethodName, session.StepPayMethodDetails, session.StepPayMethodDelete:
		return d.stepPayMethod(ctx, userID, st, text)
	case session.StepNotifyCustom, session.StepNotifySchedule, session.StepNotifyText:
		return d.stepNotify(ctx, userID, st, text)
	case session.StepSearchQuery:
		return d.stepSearch(ctx, userID, st, text)
	case session.StepCategoryParent, session.StepProductCategory,
		session.StepProductAIConfirm, session.StepRolePick:
		// Шаг ожидает нажатия кнопки, а не текста.
		return textView("Воспользуйтесь кнопками выше или напишите «отмена»."), nil
	}

	d.sessions.Clear(userID)
	d.log.Warnw("unknown dialog step", "user_id", userID, "step", st.Step)
	return d.mainMenu(ctx, userID, "Сценарий прерван, начните заново.")
}

// parseIDArg разбирает аргумент токена: "root" означает отсутствие значения.
func parseIDArg(arg string) (*int64, error) {
	if arg == "root" {
		return nil, nil
	}
	id, err := strconv.ParseInt(arg, 10, 64)
	if err != nil || id <= 0 {
		return nil, validation.ErrBadInput
	}
	return &id, nil
}

// friendlyError переводит известные ошибки в текст для пользователя.
// Возвращает пустую строку для ошибок инфраструктуры: их показывать нельзя.
func friendlyError(err error) string {
	switch {
	case errors.Is(err, repository.ErrInsufficientPoints):
		return "Недостаточно баллов."
	case errors.Is(err, repository.ErrInsufficientStock):
		return "Товара нет в наличии в нужном количестве."
	case errors.Is(err, repository.ErrEmptyCart):
		return "Корзина пуста."
	case errors.Is(err, repository.ErrDuplicateCategory):
		return "Категория с таким именем уже есть на этом уровне."
	case errors.Is(err, repository.ErrCategoryNotFound):
		return "Категория не найдена."
	case errors.Is(err, repository.ErrProductNotFound):
		return "Товар не найден."
	case errors.Is(err, repository.ErrOrderNotFound):
		return "Заказ не найден."
	case errors.Is(err, repository.ErrOrderNotPending):
		return "Заказ уже обработан."
	case errors.Is(err, repository.ErrPaymentNotFound):
		return "Платёж с таким кодом не найден."
	case errors.Is(err, repository.ErrPaymentAlreadyCompleted):
		return "Платёж уже подтверждён."
	case errors.Is(err, repository.ErrCouponNotFound):
		return "Купон не найден или не действует."
	case errors.Is(err, repository.ErrCouponExists):
		return "Купон с таким кодом уже существует."
	case errors.Is(err, repository.ErrUserNotFound):
		return "Пользователь не найден."
	case errors.Is(err, service.ErrPermissionDenied):
		return "Недостаточно прав."
	case errors.Is(err, service.ErrOwnerImmutable):
		return "Роль владельца изменить нельзя."
	case errors.Is(err, validation.ErrBadInput):
		return "Неверный формат, попробуйте ещё раз."
	}
	return ""
}

// failView строит ответ на ошибку: известные ошибки показываются пользователю,
// остальные логируются и заменяются нейтральным сообщением.
func (d *Dispatcher) failView(userID int64, op string, err error) (*View, error) {
	if msg := friendlyError(err); msg != "" {
		return doneView(msg), nil
	}
	d.log.Errorw(op, "user_id", userID, "error", err)
	return doneView("Что-то пошло не так, попробуйте позже."), nil
}

func orderStatusLabel(s model.OrderStatus) string {
	switch s {
	case model.OrderStatusPending:
		return "ожидает оплаты"
	case model.OrderStatusAccepted:
		return "оплачен"
	case model.OrderStatusRejected:
		return "отклонён"
	}
	return string(s)
}

// formatCents печатает сумму в центах как десятичную величину.
func formatCents(c int64) string {
	sign := ""
	if c < 0 {
		sign = "-"
		c = -c
	}
	return fmt.Sprintf("%s%d.%02d", sign, c/100, c%100)
}

package service

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/avasiliev/chatshop-system/internal/model"
	"github.com/avasiliev/chatshop-system/internal/repository"
)

// dailyBonusInterval — минимальный интервал между ежедневными бонусами.
const dailyBonusInterval = 24 * time.Hour

// ErrOwnerImmutable возвращается при попытке изменить роль владельца.
var ErrOwnerImmutable = errors.New("owner role cannot be changed")

// RegisterResult описывает итог регистрации пользователя.
type RegisterResult struct {
	User    *model.User
	Created bool
	// Referred отмечает, что регистрация прошла по действующей реферальной
	// ссылке и бонусы начислены.
	Referred bool
}

// Register регистрирует пользователя при первом обращении. Повторный вызов
// идемпотентен: бонусы начисляются только при фактическом создании записи.
// Реферальный код самого пользователя игнорируется.
func (s *Service) Register(ctx context.Context, userID int64, firstName, refCode string) (*RegisterResult, error) {
	var referredBy *int64
	if refCode != "" {
		referrer, err := s.repo.GetUserByRefCode(ctx, refCode)
		switch {
		case err == nil && referrer.ID != userID:
			referredBy = &referrer.ID
		case err != nil && !errors.Is(err, repository.ErrUserNotFound):
			return nil, err
		}
	}

	created, err := s.repo.RegisterUser(ctx, userID, firstName, uuid.NewString(),
		referredBy, s.cfg.ReferralBonus, s.cfg.RefereeBonus)
	if err != nil {
		return nil, err
	}

	u, err := s.repo.GetUserByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	return &RegisterResult{
		User:     u,
		Created:  created,
		Referred: created && referredBy != nil,
	}, nil
}

// GetUser возвращает пользователя по идентификатору.
func (s *Service) GetUser(ctx context.Context, userID int64) (*model.User, error) {
	return s.repo.GetUserByID(ctx, userID)
}

// TouchActivity обновляет отметку последней активности пользователя.
func (s *Service) TouchActivity(ctx context.Context, userID int64) error {
	return s.repo.TouchUserActivity(ctx, userID)
}

// ClaimDailyBonus начисляет ежедневный бонус. Возвращает false, если с момента
// предыдущего начисления прошло меньше суток.
func (s *Service) ClaimDailyBonus(ctx context.Context, userID int64) (bool, error) {
	return s.repo.ClaimDailyBonus(ctx, userID, s.cfg.DailyBonus, dailyBonusInterval)
}

// AdjustPoints изменяет баллы пользователя вручную. Операция доступна только
// администраторам; списание больше остатка отклоняется.
func (s *Service) AdjustPoints(ctx context.Context, adminID, userID, points int64, deduct bool) error {
	if _, err := s.requireStaff(ctx, adminID); err != nil {
		return err
	}
	if _, err := s.repo.GetUserByID(ctx, userID); err != nil {
		return err
	}
	if deduct {
		return s.repo.DeductPoints(ctx, userID, points)
	}
	return s.repo.AddPoints(ctx, userID, points)
}

// SetRole назначает пользователю роль. Менять роли может только владелец,
// роль самого владельца неизменяема.
func (s *Service) SetRole(ctx context.Context, ownerID, userID int64, role model.Role) error {
	if _, err := s.requireOwner(ctx, ownerID); err != nil {
		return err
	}
	target, err := s.repo.GetUserByID(ctx, userID)
	if err != nil {
		return err
	}
	if target.Role == model.RoleOwner {
		return ErrOwnerImmutable
	}
	if role == model.RoleOwner {
		return ErrOwnerImmutable
	}
	return s.repo.SetUserRole(ctx, userID, role)
}

// QueueNotification ставит рассылку в очередь. Операция доступна только
// администраторам.
func (s *Service) QueueNotification(ctx context.Context, adminID int64, text string,
	segment model.Segment, customUserIDs []int64, scheduleAt *time.Time) (int64, error) {

	if _, err := s.requireStaff(ctx, adminID); err != nil {
		return 0, err
	}
	return s.repo.QueueNotification(ctx, text, segment, customUserIDs, scheduleAt)
}

package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/avasiliev/chatshop-system/internal/model"
)

// RegisterUser создаёт пользователя, если он ещё не зарегистрирован. Если указан
// referredBy, в той же транзакции начисляются бонусы обеим сторонам и
// увеличивается счётчик рефералов. Возвращает true, если пользователь создан.
func (r *PostgresRepository) RegisterUser(ctx context.Context, userID int64, firstName, refCode string,
	referredBy *int64, referrerBonus, refereeBonus int64) (bool, error) {

	var created bool
	err := r.inTx(ctx, func(tx pgx.Tx) error {
		points := int64(0)
		if referredBy != nil {
			points = refereeBonus
		}

		cmdTag, err := tx.Exec(ctx,
			`INSERT INTO users (id, first_name, ref_code, referred_by, points)
			 VALUES ($1, $2, $3, $4, $5)
			 ON CONFLICT (id) DO NOTHING`,
			userID, firstName, refCode, referredBy, points,
		)
		if err != nil {
			if isForeignKeyViolation(err) {
				return ErrUserNotFound
			}
			return fmt.Errorf("insert user: %w", err)
		}
		created = cmdTag.RowsAffected() == 1

		if created && referredBy != nil {
			if _, err := tx.Exec(ctx,
				`UPDATE users SET referrals = referrals + 1, points = points + $2 WHERE id = $1`,
				*referredBy, referrerBonus,
			); err != nil {
				return fmt.Errorf("credit referrer: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return false, err
	}
	return created, nil
}

// GetUserByID возвращает пользователя по идентификатору.
func (r *PostgresRepository) GetUserByID(ctx context.Context, userID int64) (*model.User, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT id, first_name, points, referrals, ref_code, referred_by, role, last_daily_claim, last_active, created_at
		 FROM users WHERE id = $1`,
		userID,
	)
	return scanUser(row)
}

// GetUserByRefCode возвращает пользователя по его реферальному коду.
func (r *PostgresRepository) GetUserByRefCode(ctx context.Context, refCode string) (*model.User, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT id, first_name, points, referrals, ref_code, referred_by, role, last_daily_claim, last_active, created_at
		 FROM users WHERE ref_code = $1`,
		refCode,
	)
	return scanUser(row)
}

// AddPoints начисляет пользователю баллы.
func (r *PostgresRepository) AddPoints(ctx context.Context, userID, points int64) error {
	cmdTag, err := r.pool.Exec(ctx,
		`UPDATE users SET points = points + $2 WHERE id = $1`,
		userID, points,
	)
	if err != nil {
		return fmt.Errorf("add points: %w", err)
	}
	if cmdTag.RowsAffected() == 0 {
		return ErrUserNotFound
	}
	return nil
}

// DeductPoints списывает баллы под блокировкой строки пользователя; списание
// ниже нуля запрещено.
func (r *PostgresRepository) DeductPoints(ctx context.Context, userID, points int64) error {
	return r.inTxRetry(ctx, func(tx pgx.Tx) error {
		var balance int64
		err := tx.QueryRow(ctx,
			`SELECT points FROM users WHERE id = $1 FOR UPDATE`,
			userID,
		).Scan(&balance)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return ErrUserNotFound
			}
			return fmt.Errorf("lock user: %w", err)
		}
		if balance < points {
			return ErrInsufficientPoints
		}
		if _, err := tx.Exec(ctx,
			`UPDATE users SET points = points - $2 WHERE id = $1`,
			userID, points,
		); err != nil {
			return fmt.Errorf("deduct points: %w", err)
		}
		return nil
	})
}

// SetUserRole изменяет роль пользователя.
func (r *PostgresRepository) SetUserRole(ctx context.Context, userID int64, role model.Role) error {
	cmdTag, err := r.pool.Exec(ctx,
		`UPDATE users SET role = $2 WHERE id = $1`,
		userID, string(role),
	)
	if err != nil {
		return fmt.Errorf("set role: %w", err)
	}
	if cmdTag.RowsAffected() == 0 {
		return ErrUserNotFound
	}
	return nil
}

// TouchUserActivity обновляет отметку последней активности пользователя.
func (r *PostgresRepository) TouchUserActivity(ctx context.Context, userID int64) error {
	if _, err := r.pool.Exec(ctx,
		`UPDATE users SET last_active = now() WHERE id = $1`,
		userID,
	); err != nil {
		return fmt.Errorf("touch activity: %w", err)
	}
	return nil
}

// ClaimDailyBonus начисляет ежедневный бонус, если с прошлого начисления прошло
// не меньше minInterval. Возвращает false без начисления, если ещё рано.
func (r *PostgresRepository) ClaimDailyBonus(ctx context.Context, userID, points int64, minInterval time.Duration) (bool, error) {
	var claimed bool
	err := r.inTx(ctx, func(tx pgx.Tx) error {
		var last *time.Time
		err := tx.QueryRow(ctx,
			`SELECT last_daily_claim FROM users WHERE id = $1 FOR UPDATE`,
			userID,
		).Scan(&last)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return ErrUserNotFound
			}
			return fmt.Errorf("lock user: %w", err)
		}

		if last != nil && time.Since(*last) < minInterval {
			claimed = false
			return nil
		}

		if _, err := tx.Exec(ctx,
			`UPDATE users SET points = points + $2, last_daily_claim = now() WHERE id = $1`,
			userID, points,
		); err != nil {
			return fmt.Errorf("claim daily bonus: %w", err)
		}
		claimed = true
		return nil
	})
	if err != nil {
		return false, err
	}
	return claimed, nil
}

func scanUser(row pgx.Row) (*model.User, error) {
	var u model.User
	var role string
	err := row.Scan(&u.ID, &u.FirstName, &u.Points, &u.Referrals, &u.RefCode,
		&u.ReferredBy, &role, &u.LastDailyClaim, &u.LastActive, &u.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("scan user: %w", err)
	}
	u.Role = model.Role(role)
	return &u, nil
}

package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/avasiliev/chatshop-system/internal/model"
)

// CreateCoupon сохраняет новый купон.
func (r *PostgresRepository) CreateCoupon(ctx context.Context, code string, discountPercent int64) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO coupons (code, discount_percent, active) VALUES ($1, $2, TRUE)`,
		code, discountPercent,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: %s", ErrCouponExists, code)
		}
		return fmt.Errorf("create coupon: %w", err)
	}
	return nil
}

// GetActiveCoupon возвращает активный купон по коду. Неизвестный или
// деактивированный код считается отсутствующим.
func (r *PostgresRepository) GetActiveCoupon(ctx context.Context, code string) (*model.Coupon, error) {
	var c model.Coupon
	err := r.pool.QueryRow(ctx,
		`SELECT code, discount_percent, active FROM coupons WHERE code = $1 AND active`,
		code,
	).Scan(&c.Code, &c.DiscountPercent, &c.Active)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrCouponNotFound
		}
		return nil, fmt.Errorf("get coupon: %w", err)
	}
	return &c, nil
}

// DeleteCoupon удаляет купон по коду.
func (r *PostgresRepository) DeleteCoupon(ctx context.Context, code string) error {
	cmdTag, err := r.pool.Exec(ctx, `DELETE FROM coupons WHERE code = $1`, code)
	if err != nil {
		return fmt.Errorf("delete coupon: %w", err)
	}
	if cmdTag.RowsAffected() == 0 {
		return ErrCouponNotFound
	}
	return nil
}

// ListCoupons возвращает все купоны.
func (r *PostgresRepository) ListCoupons(ctx context.Context) ([]model.Coupon, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT code, discount_percent, active FROM coupons ORDER BY code`)
	if err != nil {
		return nil, fmt.Errorf("select coupons: %w", err)
	}
	defer rows.Close()

	var res []model.Coupon
	for rows.Next() {
		var c model.Coupon
		if err := rows.Scan(&c.Code, &c.DiscountPercent, &c.Active); err != nil {
			return nil, fmt.Errorf("scan coupon: %w", err)
		}
		res = append(res, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}
	return res, nil
}

// CreatePaymentMethod сохраняет реквизиты ручной оплаты.
func (r *PostgresRepository) CreatePaymentMethod(ctx context.Context, name, details string) (int64, error) {
	var id int64
	err := r.pool.QueryRow(ctx,
		`INSERT INTO payment_methods (name, details) VALUES ($1, $2) RETURNING id`,
		name, details,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("create payment method: %w", err)
	}
	return id, nil
}

// DeletePaymentMethod удаляет реквизиты по идентификатору.
func (r *PostgresRepository) DeletePaymentMethod(ctx context.Context, id int64) error {
	cmdTag, err := r.pool.Exec(ctx, `DELETE FROM payment_methods WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete payment method: %w", err)
	}
	if cmdTag.RowsAffected() == 0 {
		return ErrPaymentNotFound
	}
	return nil
}

// ListPaymentMethods возвращает все реквизиты ручной оплаты.
func (r *PostgresRepository) ListPaymentMethods(ctx context.Context) ([]model.PaymentMethod, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, name, details FROM payment_methods ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("select payment methods: %w", err)
	}
	defer rows.Close()

	var res []model.PaymentMethod
	for rows.Next() {
		var m model.PaymentMethod
		if err := rows.Scan(&m.ID, &m.Name, &m.Details); err != nil {
			return nil, fmt.Errorf("scan payment method: %w", err)
		}
		res = append(res, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}
	return res, nil
}

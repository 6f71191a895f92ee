package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/avasiliev/chatshop-system/internal/model"
	"github.com/avasiliev/chatshop-system/internal/pricing"
)

// CheckoutResult описывает созданный заказ.
type CheckoutResult struct {
	OrderID    int64
	TotalCents int64
	PointsCost int64
}

// VerifiedPayment описывает подтверждённый ручной платёж.
type VerifiedPayment struct {
	OrderID         int64
	UserID          int64
	ReferrerID      *int64
	ReferrerBonused bool
}

// CreateOrderFromCart атомарно создаёт заказ из текущей корзины: снимок позиций
// переносится в order_items, остатки товаров резервируются, создаётся платёж,
// корзина очищается. При откате транзакции корзина остаётся нетронутой.
func (r *PostgresRepository) CreateOrderFromCart(ctx context.Context, userID int64,
	kind model.PaymentKind, paymentCode *string, discountPercent, pointsPerUnit int64) (*CheckoutResult, error) {

	var res CheckoutResult
	err := r.inTxRetry(ctx, func(tx pgx.Tx) error {
		lines, err := lockCartLines(ctx, tx, userID)
		if err != nil {
			return err
		}
		if len(lines) == 0 {
			return ErrEmptyCart
		}

		totals := pricing.Compute(cartSubtotal(lines), discountPercent, pointsPerUnit)

		err = tx.QueryRow(ctx,
			`INSERT INTO orders (user_id, status, total_cents, points_cost) VALUES ($1, $2, $3, $4) RETURNING id`,
			userID, string(model.OrderStatusPending), totals.TotalCents, totals.PointsCost,
		).Scan(&res.OrderID)
		if err != nil {
			return fmt.Errorf("insert order: %w", err)
		}

		if err := snapshotOrderItems(ctx, tx, res.OrderID, lines); err != nil {
			return err
		}

		if _, err := tx.Exec(ctx,
			`INSERT INTO payments (order_id, kind, code, status) VALUES ($1, $2, $3, $4)`,
			res.OrderID, string(kind), paymentCode, string(model.PaymentStatusPending),
		); err != nil {
			return fmt.Errorf("insert payment: %w", err)
		}

		if _, err := tx.Exec(ctx,
			`DELETE FROM cart_items WHERE user_id = $1`,
			userID,
		); err != nil {
			return fmt.Errorf("clear cart: %w", err)
		}

		res.TotalCents = totals.TotalCents
		res.PointsCost = totals.PointsCost
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &res, nil
}

// PayCartWithPoints атомарно оформляет заказ из корзины и оплачивает его
// баллами. Баланс проверяется под блокировкой строки пользователя до любых
// изменений: при нехватке баллов транзакция откатывается и корзина остаётся
// нетронутой. Создание заказа, резервирование остатков, списание баллов и
// очистка корзины фиксируются вместе.
func (r *PostgresRepository) PayCartWithPoints(ctx context.Context, userID int64,
	discountPercent, pointsPerUnit int64) (*CheckoutResult, error) {

	var res CheckoutResult
	err := r.inTxRetry(ctx, func(tx pgx.Tx) error {
		var points int64
		err := tx.QueryRow(ctx,
			`SELECT points FROM users WHERE id = $1 FOR UPDATE`,
			userID,
		).Scan(&points)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return ErrUserNotFound
			}
			return fmt.Errorf("lock user: %w", err)
		}

		lines, err := lockCartLines(ctx, tx, userID)
		if err != nil {
			return err
		}
		if len(lines) == 0 {
			return ErrEmptyCart
		}

		totals := pricing.Compute(cartSubtotal(lines), discountPercent, pointsPerUnit)
		if points < totals.PointsCost {
			return ErrInsufficientPoints
		}

		err = tx.QueryRow(ctx,
			`INSERT INTO orders (user_id, status, total_cents, points_cost) VALUES ($1, $2, $3, $4) RETURNING id`,
			userID, string(model.OrderStatusAccepted), totals.TotalCents, totals.PointsCost,
		).Scan(&res.OrderID)
		if err != nil {
			return fmt.Errorf("insert order: %w", err)
		}

		if err := snapshotOrderItems(ctx, tx, res.OrderID, lines); err != nil {
			return err
		}

		if _, err := tx.Exec(ctx,
			`INSERT INTO payments (order_id, kind, code, status) VALUES ($1, $2, NULL, $3)`,
			res.OrderID, string(model.PaymentKindPoints), string(model.PaymentStatusCompleted),
		); err != nil {
			return fmt.Errorf("insert payment: %w", err)
		}

		if _, err := tx.Exec(ctx,
			`UPDATE users SET points = points - $2 WHERE id = $1`,
			userID, totals.PointsCost,
		); err != nil {
			return fmt.Errorf("deduct points: %w", err)
		}

		if _, err := tx.Exec(ctx,
			`DELETE FROM cart_items WHERE user_id = $1`,
			userID,
		); err != nil {
			return fmt.Errorf("clear cart: %w", err)
		}

		res.TotalCents = totals.TotalCents
		res.PointsCost = totals.PointsCost
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &res, nil
}

type cartLine struct {
	productID int64
	quantity  int64
	price     int64
}

// lockCartLines читает корзину пользователя, блокируя строки товаров до конца
// транзакции.
func lockCartLines(ctx context.Context, tx pgx.Tx, userID int64) ([]cartLine, error) {
	rows, err := tx.Query(ctx,
		`SELECT c.product_id, c.quantity, p.price_cents
		 FROM cart_items c JOIN products p ON c.product_id = p.id
		 WHERE c.user_id = $1
		 ORDER BY c.product_id
		 FOR UPDATE OF p`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("select cart for checkout: %w", err)
	}
	defer rows.Close()

	var lines []cartLine
	for rows.Next() {
		var l cartLine
		if err := rows.Scan(&l.productID, &l.quantity, &l.price); err != nil {
			return nil, fmt.Errorf("scan cart line: %w", err)
		}
		lines = append(lines, l)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}
	return lines, nil
}

func cartSubtotal(lines []cartLine) int64 {
	var subtotal int64
	for _, l := range lines {
		subtotal += l.price * l.quantity
	}
	return subtotal
}

// snapshotOrderItems переносит позиции корзины в заказ и резервирует остатки.
func snapshotOrderItems(ctx context.Context, tx pgx.Tx, orderID int64, lines []cartLine) error {
	for _, l := range lines {
		if _, err := tx.Exec(ctx,
			`INSERT INTO order_items (order_id, product_id, quantity) VALUES ($1, $2, $3)`,
			orderID, l.productID, l.quantity,
		); err != nil {
			return fmt.Errorf("insert order item: %w", err)
		}

		// Резервируем остаток; CHECK (stock >= 0) страхует от гонки.
		if _, err := tx.Exec(ctx,
			`UPDATE products SET stock = stock - $2 WHERE id = $1`,
			l.productID, l.quantity,
		); err != nil {
			if isCheckViolation(err) {
				return ErrInsufficientStock
			}
			return fmt.Errorf("reserve stock: %w", err)
		}
	}
	return nil
}

// VerifyManualPayment подтверждает ручной платёж по коду. Переходы платежа
// pending -> completed и заказа pending -> accepted выполняются условными
// UPDATE, поэтому повторное подтверждение тем же кодом не принимает заказ
// второй раз, не начисляет реферальный бонус повторно и не оживляет
// отклонённый заказ.
func (r *PostgresRepository) VerifyManualPayment(ctx context.Context, code string, referrerBonus int64) (*VerifiedPayment, error) {
	var res VerifiedPayment
	err := r.inTxRetry(ctx, func(tx pgx.Tx) error {
		var orderID int64
		err := tx.QueryRow(ctx,
			`UPDATE payments SET status = $2 WHERE code = $1 AND status = $3 RETURNING order_id`,
			code, string(model.PaymentStatusCompleted), string(model.PaymentStatusPending),
		).Scan(&orderID)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				var exists bool
				if qErr := tx.QueryRow(ctx,
					`SELECT EXISTS (SELECT 1 FROM payments WHERE code = $1)`,
					code,
				).Scan(&exists); qErr != nil {
					return fmt.Errorf("check payment code: %w", qErr)
				}
				if exists {
					return ErrPaymentAlreadyCompleted
				}
				return ErrPaymentNotFound
			}
			return fmt.Errorf("complete payment: %w", err)
		}
		res.OrderID = orderID

		// Отклонённый заказ принять нельзя: откат транзакции вернёт платёж
		// в состояние pending.
		err = tx.QueryRow(ctx,
			`UPDATE orders SET status = $2 WHERE id = $1 AND status = $3 RETURNING user_id`,
			orderID, string(model.OrderStatusAccepted), string(model.OrderStatusPending),
		).Scan(&res.UserID)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return ErrOrderNotPending
			}
			return fmt.Errorf("accept order: %w", err)
		}

		var referredBy *int64
		if err := tx.QueryRow(ctx,
			`SELECT referred_by FROM users WHERE id = $1`,
			res.UserID,
		).Scan(&referredBy); err != nil {
			return fmt.Errorf("select buyer: %w", err)
		}

		if referredBy != nil && referrerBonus > 0 {
			if _, err := tx.Exec(ctx,
				`UPDATE users SET points = points + $2 WHERE id = $1`,
				*referredBy, referrerBonus,
			); err != nil {
				return fmt.Errorf("credit referrer: %w", err)
			}
			res.ReferrerID = referredBy
			res.ReferrerBonused = true
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &res, nil
}

// RejectOrder переводит ожидающий заказ в rejected и возвращает зарезервированные
// остатки на склад. Баллы не двигаются, доставка контента не выполняется.
func (r *PostgresRepository) RejectOrder(ctx context.Context, orderID int64) error {
	return r.inTxRetry(ctx, func(tx pgx.Tx) error {
		var status string
		err := tx.QueryRow(ctx,
			`SELECT status FROM orders WHERE id = $1 FOR UPDATE`,
			orderID,
		).Scan(&status)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return ErrOrderNotFound
			}
			return fmt.Errorf("lock order: %w", err)
		}
		if status != string(model.OrderStatusPending) {
			return ErrOrderNotPending
		}

		if _, err := tx.Exec(ctx,
			`UPDATE orders SET status = $2 WHERE id = $1`,
			orderID, string(model.OrderStatusRejected),
		); err != nil {
			return fmt.Errorf("reject order: %w", err)
		}

		if _, err := tx.Exec(ctx,
			`UPDATE products p SET stock = p.stock + oi.quantity
			 FROM order_items oi
			 WHERE oi.order_id = $1 AND oi.product_id = p.id`,
			orderID,
		); err != nil {
			return fmt.Errorf("restore stock: %w", err)
		}
		return nil
	})
}

// GetOrder возвращает заказ по идентификатору.
func (r *PostgresRepository) GetOrder(ctx context.Context, orderID int64) (*model.Order, error) {
	var o model.Order
	var status string
	err := r.pool.QueryRow(ctx,
		`SELECT id, user_id, status, total_cents, points_cost, created_at FROM orders WHERE id = $1`,
		orderID,
	).Scan(&o.ID, &o.UserID, &status, &o.TotalCents, &o.PointsCost, &o.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrOrderNotFound
		}
		return nil, fmt.Errorf("get order: %w", err)
	}
	o.Status = model.OrderStatus(status)
	return &o, nil
}

// ListOrdersByUser возвращает заказы пользователя от новых к старым.
func (r *PostgresRepository) ListOrdersByUser(ctx context.Context, userID int64) ([]model.Order, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, user_id, status, total_cents, points_cost, created_at
		 FROM orders WHERE user_id = $1 ORDER BY created_at DESC`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("select orders: %w", err)
	}
	defer rows.Close()

	return scanOrders(rows)
}

// ListPendingOrders возвращает заказы, ожидающие решения администратора.
func (r *PostgresRepository) ListPendingOrders(ctx context.Context) ([]model.Order, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, user_id, status, total_cents, points_cost, created_at
		 FROM orders WHERE status = $1 ORDER BY created_at DESC`,
		string(model.OrderStatusPending),
	)
	if err != nil {
		return nil, fmt.Errorf("select pending orders: %w", err)
	}
	defer rows.Close()

	return scanOrders(rows)
}

// GetOrderItems возвращает позиции заказа вместе с данными товаров для доставки.
func (r *PostgresRepository) GetOrderItems(ctx context.Context, orderID int64) ([]model.OrderItem, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT oi.order_id, oi.product_id, oi.quantity, p.name, p.price_cents, p.content_ref
		 FROM order_items oi JOIN products p ON oi.product_id = p.id
		 WHERE oi.order_id = $1
		 ORDER BY oi.product_id`,
		orderID,
	)
	if err != nil {
		return nil, fmt.Errorf("select order items: %w", err)
	}
	defer rows.Close()

	var res []model.OrderItem
	for rows.Next() {
		var it model.OrderItem
		if err := rows.Scan(&it.OrderID, &it.ProductID, &it.Quantity, &it.Name, &it.PriceCents, &it.ContentRef); err != nil {
			return nil, fmt.Errorf("scan order item: %w", err)
		}
		res = append(res, it)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}
	return res, nil
}

func scanOrders(rows pgx.Rows) ([]model.Order, error) {
	var res []model.Order
	for rows.Next() {
		var o model.Order
		var status string
		if err := rows.Scan(&o.ID, &o.UserID, &status, &o.TotalCents, &o.PointsCost, &o.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan order: %w", err)
		}
		o.Status = model.OrderStatus(status)
		res = append(res, o)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}
	return res, nil
}

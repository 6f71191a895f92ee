package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/avasiliev/chatshop-system/internal/model"
)

// AddCartItem добавляет товар в корзину или увеличивает количество существующей
// позиции. Запрошенное суммарное количество не может превышать остаток на складе.
func (r *PostgresRepository) AddCartItem(ctx context.Context, userID, productID, qty int64) error {
	return r.inTxRetry(ctx, func(tx pgx.Tx) error {
		var stock int64
		var active bool
		err := tx.QueryRow(ctx,
			`SELECT stock, active FROM products WHERE id = $1 FOR UPDATE`,
			productID,
		).Scan(&stock, &active)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return ErrProductNotFound
			}
			return fmt.Errorf("lock product: %w", err)
		}
		if !active {
			return ErrProductNotFound
		}

		var current int64
		err = tx.QueryRow(ctx,
			`SELECT quantity FROM cart_items WHERE user_id = $1 AND product_id = $2`,
			userID, productID,
		).Scan(&current)
		if err != nil && !errors.Is(err, pgx.ErrNoRows) {
			return fmt.Errorf("select cart item: %w", err)
		}

		if current+qty > stock {
			return ErrInsufficientStock
		}

		_, err = tx.Exec(ctx,
			`INSERT INTO cart_items (user_id, product_id, quantity) VALUES ($1, $2, $3)
			 ON CONFLICT (user_id, product_id) DO UPDATE SET quantity = cart_items.quantity + EXCLUDED.quantity`,
			userID, productID, qty,
		)
		if err != nil {
			return fmt.Errorf("upsert cart item: %w", err)
		}
		return nil
	})
}

// RemoveCartItem уменьшает количество позиции; при нуле позиция удаляется.
func (r *PostgresRepository) RemoveCartItem(ctx context.Context, userID, productID, qty int64) error {
	return r.inTx(ctx, func(tx pgx.Tx) error {
		var current int64
		err := tx.QueryRow(ctx,
			`SELECT quantity FROM cart_items WHERE user_id = $1 AND product_id = $2 FOR UPDATE`,
			userID, productID,
		).Scan(&current)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return ErrProductNotFound
			}
			return fmt.Errorf("select cart item: %w", err)
		}

		if current-qty <= 0 {
			_, err = tx.Exec(ctx,
				`DELETE FROM cart_items WHERE user_id = $1 AND product_id = $2`,
				userID, productID,
			)
		} else {
			_, err = tx.Exec(ctx,
				`UPDATE cart_items SET quantity = quantity - $3 WHERE user_id = $1 AND product_id = $2`,
				userID, productID, qty,
			)
		}
		if err != nil {
			return fmt.Errorf("update cart item: %w", err)
		}
		return nil
	})
}

// GetCartItems возвращает содержимое корзины вместе с данными товаров.
func (r *PostgresRepository) GetCartItems(ctx context.Context, userID int64) ([]model.CartItem, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT c.user_id, c.product_id, c.quantity, p.name, p.price_cents, p.content_ref
		 FROM cart_items c JOIN products p ON c.product_id = p.id
		 WHERE c.user_id = $1
		 ORDER BY c.product_id`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("select cart items: %w", err)
	}
	defer rows.Close()

	var res []model.CartItem
	for rows.Next() {
		var it model.CartItem
		if err := rows.Scan(&it.UserID, &it.ProductID, &it.Quantity, &it.Name, &it.PriceCents, &it.ContentRef); err != nil {
			return nil, fmt.Errorf("scan cart item: %w", err)
		}
		res = append(res, it)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}
	return res, nil
}

// ClearCart удаляет все позиции корзины пользователя.
func (r *PostgresRepository) ClearCart(ctx context.Context, userID int64) error {
	if _, err := r.pool.Exec(ctx, `DELETE FROM cart_items WHERE user_id = $1`, userID); err != nil {
		return fmt.Errorf("clear cart: %w", err)
	}
	return nil
}

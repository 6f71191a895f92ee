package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"

	"github.com/avasiliev/chatshop-system/internal/model"
)

// CreateProduct сохраняет новый товар и возвращает его идентификатор.
func (r *PostgresRepository) CreateProduct(ctx context.Context, in model.ProductInput) (int64, error) {
	var id int64
	err := r.pool.QueryRow(ctx,
		`INSERT INTO products (name, price_cents, stock, category_id, description, content_ref)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 RETURNING id`,
		in.Name, in.PriceCents, in.Stock, in.CategoryID, in.Description, in.ContentRef,
	).Scan(&id)
	if err != nil {
		if isForeignKeyViolation(err) {
			return 0, ErrCategoryNotFound
		}
		return 0, fmt.Errorf("create product: %w", err)
	}
	return id, nil
}

// UpdateProduct изменяет поля существующего товара.
func (r *PostgresRepository) UpdateProduct(ctx context.Context, id int64, in model.ProductInput) error {
	cmdTag, err := r.pool.Exec(ctx,
		`UPDATE products
		 SET name = $2, price_cents = $3, stock = $4, category_id = $5, description = $6, content_ref = $7
		 WHERE id = $1`,
		id, in.Name, in.PriceCents, in.Stock, in.CategoryID, in.Description, in.ContentRef,
	)
	if err != nil {
		if isForeignKeyViolation(err) {
			return ErrCategoryNotFound
		}
		return fmt.Errorf("update product: %w", err)
	}
	if cmdTag.RowsAffected() == 0 {
		return ErrProductNotFound
	}
	return nil
}

// ArchiveProduct снимает товар с витрины, не удаляя строку: исторические заказы
// продолжают ссылаться на него.
func (r *PostgresRepository) ArchiveProduct(ctx context.Context, id int64) error {
	cmdTag, err := r.pool.Exec(ctx,
		`UPDATE products SET active = FALSE WHERE id = $1`,
		id,
	)
	if err != nil {
		return fmt.Errorf("archive product: %w", err)
	}
	if cmdTag.RowsAffected() == 0 {
		return ErrProductNotFound
	}
	return nil
}

// GetProduct возвращает товар по идентификатору, включая архивные.
func (r *PostgresRepository) GetProduct(ctx context.Context, id int64) (*model.Product, error) {
	var p model.Product
	err := r.pool.QueryRow(ctx,
		`SELECT id, name, price_cents, stock, category_id, description, content_ref, active, created_at
		 FROM products WHERE id = $1`,
		id,
	).Scan(&p.ID, &p.Name, &p.PriceCents, &p.Stock, &p.CategoryID, &p.Description, &p.ContentRef, &p.Active, &p.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrProductNotFound
		}
		return nil, fmt.Errorf("get product: %w", err)
	}
	return &p, nil
}

// ListProducts возвращает товары узла каталога: nil означает товары без
// категории, а не весь каталог. Архивные товары попадают в выдачу только
// при includeArchived.
func (r *PostgresRepository) ListProducts(ctx context.Context, categoryID *int64, includeArchived bool) ([]model.Product, error) {
	q := `SELECT id, name, price_cents, stock, category_id, description, content_ref, active, created_at
	      FROM products`
	var clauses []string
	var args []any
	if categoryID != nil {
		args = append(args, *categoryID)
		clauses = append(clauses, fmt.Sprintf("category_id = $%d", len(args)))
	} else {
		clauses = append(clauses, "category_id IS NULL")
	}
	if !includeArchived {
		clauses = append(clauses, "active")
	}
	q += " WHERE " + strings.Join(clauses, " AND ")
	q += " ORDER BY id"

	rows, err := r.pool.Query(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("select products: %w", err)
	}
	defer rows.Close()

	return scanProducts(rows)
}

// SearchProducts выполняет поиск активных товаров по фильтру.
func (r *PostgresRepository) SearchProducts(ctx context.Context, f model.SearchFilter) ([]model.Product, error) {
	clauses := []string{"active"}
	var args []any

	if f.Query != "" {
		args = append(args, "%"+strings.ToLower(f.Query)+"%")
		n := len(args)
		clauses = append(clauses, fmt.Sprintf("(LOWER(name) LIKE $%d OR LOWER(description) LIKE $%d)", n, n))
	}
	if f.PriceMinCents != nil {
		args = append(args, *f.PriceMinCents)
		clauses = append(clauses, fmt.Sprintf("price_cents >= $%d", len(args)))
	}
	if f.PriceMaxCents != nil {
		args = append(args, *f.PriceMaxCents)
		clauses = append(clauses, fmt.Sprintf("price_cents <= $%d", len(args)))
	}
	if f.InStockOnly {
		clauses = append(clauses, "stock > 0")
	}
	if f.CategoryID != nil {
		args = append(args, *f.CategoryID)
		clauses = append(clauses, fmt.Sprintf("category_id = $%d", len(args)))
	}

	order := "id DESC"
	switch f.Sort {
	case model.SortPriceAsc:
		order = "price_cents ASC, id"
	case model.SortPriceDesc:
		order = "price_cents DESC, id"
	case model.SortStockDesc:
		order = "stock DESC, id"
	}

	q := fmt.Sprintf(
		`SELECT id, name, price_cents, stock, category_id, description, content_ref, active, created_at
		 FROM products WHERE %s ORDER BY %s`,
		strings.Join(clauses, " AND "), order,
	)

	rows, err := r.pool.Query(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("search products: %w", err)
	}
	defer rows.Close()

	return scanProducts(rows)
}

func scanProducts(rows pgx.Rows) ([]model.Product, error) {
	var res []model.Product
	for rows.Next() {
		var p model.Product
		if err := rows.Scan(&p.ID, &p.Name, &p.PriceCents, &p.Stock, &p.CategoryID,
			&p.Description, &p.ContentRef, &p.Active, &p.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan product: %w", err)
		}
		res = append(res, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}
	return res, nil
}

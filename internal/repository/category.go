package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/avasiliev/chatshop-system/internal/categorytree"
	"github.com/avasiliev/chatshop-system/internal/model"
)

// CreateCategory создаёт категорию с указанным родителем (nil — корень).
func (r *PostgresRepository) CreateCategory(ctx context.Context, name string, parentID *int64) (int64, error) {
	var id int64
	err := r.pool.QueryRow(ctx,
		`INSERT INTO categories (name, parent_id) VALUES ($1, $2) RETURNING id`,
		name, parentID,
	).Scan(&id)
	if err != nil {
		if isUniqueViolation(err) {
			return 0, fmt.Errorf("%w: %s", ErrDuplicateCategory, name)
		}
		if isForeignKeyViolation(err) {
			return 0, ErrCategoryNotFound
		}
		return 0, fmt.Errorf("create category: %w", err)
	}
	return id, nil
}

// GetCategory возвращает категорию по идентификатору.
func (r *PostgresRepository) GetCategory(ctx context.Context, id int64) (*model.Category, error) {
	var c model.Category
	err := r.pool.QueryRow(ctx,
		`SELECT id, name, parent_id FROM categories WHERE id = $1`,
		id,
	).Scan(&c.ID, &c.Name, &c.ParentID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrCategoryNotFound
		}
		return nil, fmt.Errorf("get category: %w", err)
	}
	return &c, nil
}

// ListChildCategories возвращает прямых потомков узла, упорядоченных по имени.
// parentID == nil возвращает корневой уровень.
func (r *PostgresRepository) ListChildCategories(ctx context.Context, parentID *int64) ([]model.Category, error) {
	var (
		rows pgx.Rows
		err  error
	)
	if parentID == nil {
		rows, err = r.pool.Query(ctx,
			`SELECT id, name, parent_id FROM categories WHERE parent_id IS NULL ORDER BY name, id`)
	} else {
		rows, err = r.pool.Query(ctx,
			`SELECT id, name, parent_id FROM categories WHERE parent_id = $1 ORDER BY name, id`,
			*parentID)
	}
	if err != nil {
		return nil, fmt.Errorf("select child categories: %w", err)
	}
	defer rows.Close()

	return scanCategories(rows)
}

// ListAllCategories возвращает все узлы дерева категорий.
func (r *PostgresRepository) ListAllCategories(ctx context.Context) ([]model.Category, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, name, parent_id FROM categories ORDER BY parent_id NULLS FIRST, name`)
	if err != nil {
		return nil, fmt.Errorf("select categories: %w", err)
	}
	defer rows.Close()

	return scanCategories(rows)
}

// RenameCategory переименовывает категорию, сохраняя её место в дереве.
func (r *PostgresRepository) RenameCategory(ctx context.Context, id int64, newName string) error {
	cmdTag, err := r.pool.Exec(ctx,
		`UPDATE categories SET name = $2 WHERE id = $1`,
		id, newName,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: %s", ErrDuplicateCategory, newName)
		}
		return fmt.Errorf("rename category: %w", err)
	}
	if cmdTag.RowsAffected() == 0 {
		return ErrCategoryNotFound
	}
	return nil
}

// DeleteCategoryCascade удаляет узел вместе со всем поддеревом в одной транзакции.
// Замыкание потомков вычисляется в приложении итеративным обходом; у товаров,
// ссылавшихся на удалённые узлы, ссылка на категорию очищается.
// Возвращает количество удалённых узлов.
func (r *PostgresRepository) DeleteCategoryCascade(ctx context.Context, id int64) (int64, error) {
	var deleted int64
	err := r.inTxRetry(ctx, func(tx pgx.Tx) error {
		rows, err := tx.Query(ctx,
			`SELECT id, name, parent_id FROM categories FOR UPDATE`)
		if err != nil {
			return fmt.Errorf("lock categories: %w", err)
		}
		all, err := scanCategories(rows)
		if err != nil {
			return err
		}

		ids, err := categorytree.Descendants(all, id)
		if err != nil {
			if errors.Is(err, categorytree.ErrNodeNotFound) {
				return ErrCategoryNotFound
			}
			return err
		}

		if _, err := tx.Exec(ctx,
			`UPDATE products SET category_id = NULL WHERE category_id = ANY($1)`,
			ids,
		); err != nil {
			return fmt.Errorf("clear product references: %w", err)
		}

		cmdTag, err := tx.Exec(ctx,
			`DELETE FROM categories WHERE id = ANY($1)`,
			ids,
		)
		if err != nil {
			return fmt.Errorf("delete category subtree: %w", err)
		}
		deleted = cmdTag.RowsAffected()
		return nil
	})
	if err != nil {
		return 0, err
	}
	return deleted, nil
}

func scanCategories(rows pgx.Rows) ([]model.Category, error) {
	var res []model.Category
	for rows.Next() {
		var c model.Category
		if err := rows.Scan(&c.ID, &c.Name, &c.ParentID); err != nil {
			return nil, fmt.Errorf("scan category: %w", err)
		}
		res = append(res, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}
	return res, nil
}

package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/avasiliev/chatshop-system/internal/categorytree"
	"github.com/avasiliev/chatshop-system/internal/model"
	"github.com/avasiliev/chatshop-system/internal/validation"
)

// ErrExtractorUnavailable возвращается, когда сервис извлечения не настроен.
var ErrExtractorUnavailable = errors.New("extractor is not configured")

// CatalogLevel описывает один уровень дерева каталога для навигации:
// подкатегории и товары текущего узла.
type CatalogLevel struct {
	Category      *model.Category
	Subcategories []model.Category
	Products      []model.Product
}

// BrowseCatalog возвращает содержимое узла дерева каталога. categoryID == nil
// означает корневой уровень. Архивные товары не показываются.
func (s *Service) BrowseCatalog(ctx context.Context, categoryID *int64) (*CatalogLevel, error) {
	level := &CatalogLevel{}

	if categoryID != nil {
		cat, err := s.repo.GetCategory(ctx, *categoryID)
		if err != nil {
			return nil, err
		}
		level.Category = cat
	}

	subs, err := s.repo.ListChildCategories(ctx, categoryID)
	if err != nil {
		return nil, err
	}
	level.Subcategories = subs

	products, err := s.repo.ListProducts(ctx, categoryID, false)
	if err != nil {
		return nil, err
	}
	level.Products = products
	return level, nil
}

// CategoryPath возвращает путь от узла к корню в виде "Корень / ... / Узел".
func (s *Service) CategoryPath(ctx context.Context, categoryID int64) (string, error) {
	all, err := s.repo.ListAllCategories(ctx)
	if err != nil {
		return "", err
	}
	path, err := categorytree.PathToRoot(all, categoryID)
	if err != nil {
		return "", err
	}
	names := make([]string, 0, len(path))
	for i := len(path) - 1; i >= 0; i-- {
		names = append(names, path[i].Name)
	}
	return strings.Join(names, " / "), nil
}

// AddCategory создаёт категорию. Имя должно быть уникальным среди детей
// одного родителя; конфликт возвращается наверх для повторного выбора родителя.
func (s *Service) AddCategory(ctx context.Context, adminID int64, name string, parentID *int64) (int64, error) {
	if _, err := s.requireStaff(ctx, adminID); err != nil {
		return 0, err
	}
	name = strings.TrimSpace(name)
	if name == "" || len(name) > 255 {
		return 0, validation.ErrBadInput
	}
	return s.repo.CreateCategory(ctx, name, parentID)
}

// RenameCategory переименовывает категорию.
func (s *Service) RenameCategory(ctx context.Context, adminID, categoryID int64, newName string) error {
	if _, err := s.requireStaff(ctx, adminID); err != nil {
		return err
	}
	newName = strings.TrimSpace(newName)
	if newName == "" || len(newName) > 255 {
		return validation.ErrBadInput
	}
	return s.repo.RenameCategory(ctx, categoryID, newName)
}

// DeleteCategory удаляет категорию вместе со всем поддеревом. Товары
// удалённых категорий остаются в каталоге без категории. Возвращает число
// удалённых узлов.
func (s *Service) DeleteCategory(ctx context.Context, adminID, categoryID int64) (int64, error) {
	if _, err := s.requireStaff(ctx, adminID); err != nil {
		return 0, err
	}
	return s.repo.DeleteCategoryCascade(ctx, categoryID)
}

// ListCategories возвращает все категории магазина.
func (s *Service) ListCategories(ctx context.Context) ([]model.Category, error) {
	return s.repo.ListAllCategories(ctx)
}

// AddProduct создаёт товар после валидации полей.
func (s *Service) AddProduct(ctx context.Context, adminID int64, in model.ProductInput) (int64, error) {
	if _, err := s.requireStaff(ctx, adminID); err != nil {
		return 0, err
	}
	if err := s.validate.Struct(in); err != nil {
		return 0, fmt.Errorf("%w: %s", validation.ErrBadInput, err)
	}
	return s.repo.CreateProduct(ctx, in)
}

// UpdateProduct изменяет товар после валидации полей.
func (s *Service) UpdateProduct(ctx context.Context, adminID, productID int64, in model.ProductInput) error {
	if _, err := s.requireStaff(ctx, adminID); err != nil {
		return err
	}
	if err := s.validate.Struct(in); err != nil {
		return fmt.Errorf("%w: %s", validation.ErrBadInput, err)
	}
	return s.repo.UpdateProduct(ctx, productID, in)
}

// ArchiveProduct скрывает товар из каталога. Запись и позиции прошлых заказов
// сохраняются.
func (s *Service) ArchiveProduct(ctx context.Context, adminID, productID int64) error {
	if _, err := s.requireStaff(ctx, adminID); err != nil {
		return err
	}
	return s.repo.ArchiveProduct(ctx, productID)
}

// GetProduct возвращает товар по идентификатору, включая архивные.
func (s *Service) GetProduct(ctx context.Context, productID int64) (*model.Product, error) {
	return s.repo.GetProduct(ctx, productID)
}

// SearchProducts ищет товары по фильтру. Пустой запрос допустим: фильтр
// может состоять только из ценового диапазона или категории.
func (s *Service) SearchProducts(ctx context.Context, f model.SearchFilter) ([]model.Product, error) {
	f.Query = strings.TrimSpace(f.Query)
	return s.repo.SearchProducts(ctx, f)
}

// ExtractProductDraft извлекает поля товара из свободного текста через внешний
// сервис. Цена в черновике разбирается здесь же, чтобы администратор увидел
// ошибку до подтверждения. Категорию сервис извлечения возвращает как текст;
// сопоставление с деревом выполняет диалоговый слой вместе с администратором,
// поэтому она возвращается отдельно.
func (s *Service) ExtractProductDraft(ctx context.Context, adminID int64, text string) (*model.ProductInput, string, error) {
	if _, err := s.requireStaff(ctx, adminID); err != nil {
		return nil, "", err
	}
	if s.extractor == nil {
		return nil, "", ErrExtractorUnavailable
	}

	draft, err := s.extractor.ExtractProduct(ctx, text)
	if err != nil {
		return nil, "", err
	}
	priceCents, err := validation.ParsePriceCents(draft.Price)
	if err != nil {
		return nil, "", fmt.Errorf("price from extractor: %w", err)
	}

	in := model.ProductInput{
		Name:        draft.Name,
		PriceCents:  priceCents,
		Stock:       draft.Stock,
		Description: draft.Description,
		ContentRef:  draft.ContentRef,
	}
	if err := s.validate.Struct(in); err != nil {
		return nil, "", fmt.Errorf("%w: %s", validation.ErrBadInput, err)
	}
	return &in, draft.Category, nil
}

// MatchCategoryByName ищет категорию по точному имени без учёта регистра.
// При нескольких совпадениях возвращается первая по порядку обхода.
func (s *Service) MatchCategoryByName(ctx context.Context, name string) (*model.Category, error) {
	all, err := s.repo.ListAllCategories(ctx)
	if err != nil {
		return nil, err
	}
	name = strings.ToLower(strings.TrimSpace(name))
	for i := range all {
		if strings.ToLower(all[i].Name) == name {
			return &all[i], nil
		}
	}
	return nil, nil
}

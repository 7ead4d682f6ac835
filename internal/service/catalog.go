package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/Skotchmaster/custom_stores/internal/logging"
	"github.com/Skotchmaster/custom_stores/internal/models"
	"github.com/Skotchmaster/custom_stores/internal/mykafka"
	"github.com/Skotchmaster/custom_stores/internal/repo"
	"github.com/Skotchmaster/custom_stores/internal/transport"
)

const highlightLimit = 5

// Searcher is the product index. Nil means search falls back to the
// database.
type Searcher interface {
	IndexProduct(ctx context.Context, p *models.Product) error
	DeleteProduct(ctx context.Context, id uuid.UUID) error
	Search(ctx context.Context, query string, from, size int) (int64, []uuid.UUID, error)
}

type CatalogService struct {
	Repo   *repo.GormRepo
	Index  Searcher
	Events mykafka.Publisher
}

func validateCategoryName(name string) error {
	if n := len([]rune(name)); n < 3 || n > 50 {
		return fmt.Errorf("%w: category name must be 3-50 characters", ErrValidation)
	}
	return nil
}

func (s *CatalogService) CreateCategory(ctx context.Context, req transport.CreateCategoryRequest) (*models.Category, error) {
	cat := &models.Category{
		Name:  strings.TrimSpace(req.Name),
		Image: strings.TrimSpace(req.Image),
	}
	if err := validateCategoryName(cat.Name); err != nil {
		return nil, err
	}
	if cat.Image == "" {
		return nil, fmt.Errorf("%w: category image required", ErrValidation)
	}
	if err := s.Repo.CreateCategory(ctx, cat); err != nil {
		if repo.IsDuplicate(err) {
			return nil, fmt.Errorf("%w: category already exists", ErrConflict)
		}
		return nil, err
	}
	return cat, nil
}

func (s *CatalogService) ListCategories(ctx context.Context) ([]models.Category, error) {
	return s.Repo.ListCategories(ctx)
}

func (s *CatalogService) GetCategory(ctx context.Context, id uuid.UUID) (*models.Category, error) {
	cat, err := s.Repo.GetCategory(ctx, id)
	if err != nil {
		if repo.IsNotFound(err) {
			return nil, fmt.Errorf("%w: category", ErrNotFound)
		}
		return nil, err
	}
	return cat, nil
}

func (s *CatalogService) UpdateCategory(ctx context.Context, id uuid.UUID, req transport.PatchCategoryRequest) (*models.Category, error) {
	cat, err := s.GetCategory(ctx, id)
	if err != nil {
		return nil, err
	}
	if req.Name != nil {
		name := strings.TrimSpace(*req.Name)
		if err := validateCategoryName(name); err != nil {
			return nil, err
		}
		cat.Name = name
	}
	if req.Image != nil {
		image := strings.TrimSpace(*req.Image)
		if image == "" {
			return nil, fmt.Errorf("%w: category image required", ErrValidation)
		}
		cat.Image = image
	}
	if err := s.Repo.SaveCategory(ctx, cat); err != nil {
		if repo.IsDuplicate(err) {
			return nil, fmt.Errorf("%w: category already exists", ErrConflict)
		}
		return nil, err
	}
	return cat, nil
}

func (s *CatalogService) DeleteCategory(ctx context.Context, id uuid.UUID) error {
	if err := s.Repo.DeleteCategory(ctx, id); err != nil {
		if repo.IsNotFound(err) {
			return fmt.Errorf("%w: category", ErrNotFound)
		}
		return err
	}
	return nil
}

func validateProduct(p *models.Product) error {
	switch {
	case strings.TrimSpace(p.Name) == "":
		return fmt.Errorf("%w: name required", ErrValidation)
	case strings.TrimSpace(p.Description) == "":
		return fmt.Errorf("%w: description required", ErrValidation)
	case p.ActualPrice.IsNegative() || p.DiscountPrice.IsNegative():
		return fmt.Errorf("%w: prices must not be negative", ErrValidation)
	case p.ActualPrice.IsZero():
		return fmt.Errorf("%w: actualPrice required", ErrValidation)
	case p.DiscountPrice.GreaterThan(p.ActualPrice):
		return fmt.Errorf("%w: discountPrice must not exceed actualPrice", ErrValidation)
	case p.Rating < 0 || p.Rating > 5:
		return fmt.Errorf("%w: rating must be between 0 and 5", ErrValidation)
	case len(p.Colors) == 0:
		return fmt.Errorf("%w: at least one color required", ErrValidation)
	case p.CategoryID == uuid.Nil:
		return fmt.Errorf("%w: categoryId required", ErrValidation)
	case !p.HasImage(p.PrimaryImage):
		return fmt.Errorf("%w: primaryImage must be one of the color images", ErrValidation)
	}
	for _, c := range p.Colors {
		if strings.TrimSpace(c.Name) == "" || len(c.Images) == 0 {
			return fmt.Errorf("%w: every color needs a name and images", ErrValidation)
		}
	}
	return nil
}

func (s *CatalogService) ensureCategory(ctx context.Context, id uuid.UUID) error {
	if _, err := s.Repo.GetCategory(ctx, id); err != nil {
		if repo.IsNotFound(err) {
			return fmt.Errorf("%w: category", ErrNotFound)
		}
		return err
	}
	return nil
}

func (s *CatalogService) CreateProduct(ctx context.Context, req transport.CreateProductRequest) (*models.Product, error) {
	prod := &models.Product{
		Name:          strings.TrimSpace(req.Name),
		Description:   strings.TrimSpace(req.Description),
		ActualPrice:   req.ActualPrice.Round(2),
		DiscountPrice: req.DiscountPrice.Round(2),
		Rating:        req.Rating,
		Colors:        req.Colors,
		PrimaryImage:  req.PrimaryImage,
		Features:      req.Features,
		CategoryID:    req.CategoryID,
		IsNewArrival:  req.IsNewArrival,
		IsFeatured:    req.IsFeatured,
		InStock:       true,
	}
	if req.InStock != nil {
		prod.InStock = *req.InStock
	}
	if prod.DiscountPrice.IsZero() {
		prod.DiscountPrice = prod.ActualPrice
	}
	if err := validateProduct(prod); err != nil {
		return nil, err
	}
	if err := s.ensureCategory(ctx, prod.CategoryID); err != nil {
		return nil, err
	}

	if err := s.Repo.CreateProduct(ctx, prod); err != nil {
		return nil, err
	}

	s.productChanged(ctx, "product_created", prod)
	return prod, nil
}

func (s *CatalogService) GetProduct(ctx context.Context, id uuid.UUID) (*models.Product, error) {
	prod, err := s.Repo.GetProduct(ctx, id)
	if err != nil {
		if repo.IsNotFound(err) {
			return nil, fmt.Errorf("%w: product", ErrNotFound)
		}
		return nil, err
	}
	return prod, nil
}

func (s *CatalogService) ListProducts(ctx context.Context, offset, limit int) (int64, []models.Product, error) {
	return s.Repo.ListProducts(ctx, nil, offset, limit)
}

func (s *CatalogService) ListByCategory(ctx context.Context, name string, offset, limit int) (int64, []models.Product, error) {
	cat, err := s.Repo.GetCategoryByName(ctx, strings.TrimSpace(name))
	if err != nil {
		if repo.IsNotFound(err) {
			return 0, nil, fmt.Errorf("%w: category", ErrNotFound)
		}
		return 0, nil, err
	}
	return s.Repo.ListProducts(ctx, &cat.ID, offset, limit)
}

func (s *CatalogService) Featured(ctx context.Context) ([]models.Product, error) {
	return s.Repo.ListFlagged(ctx, "is_featured", highlightLimit)
}

func (s *CatalogService) NewArrivals(ctx context.Context) ([]models.Product, error) {
	return s.Repo.ListFlagged(ctx, "is_new_arrival", highlightLimit)
}

func (s *CatalogService) UpdateProduct(ctx context.Context, id uuid.UUID, req transport.PatchProductRequest) (*models.Product, error) {
	prod, err := s.GetProduct(ctx, id)
	if err != nil {
		return nil, err
	}

	if req.Name != nil {
		prod.Name = strings.TrimSpace(*req.Name)
	}
	if req.Description != nil {
		prod.Description = strings.TrimSpace(*req.Description)
	}
	if req.ActualPrice != nil {
		prod.ActualPrice = req.ActualPrice.Round(2)
	}
	if req.DiscountPrice != nil {
		prod.DiscountPrice = req.DiscountPrice.Round(2)
	}
	if req.Rating != nil {
		prod.Rating = *req.Rating
	}
	if req.Colors != nil {
		prod.Colors = *req.Colors
	}
	if req.PrimaryImage != nil {
		prod.PrimaryImage = *req.PrimaryImage
	}
	if req.Features != nil {
		prod.Features = *req.Features
	}
	if req.CategoryID != nil && *req.CategoryID != prod.CategoryID {
		if err := s.ensureCategory(ctx, *req.CategoryID); err != nil {
			return nil, err
		}
		prod.CategoryID = *req.CategoryID
		prod.Category = nil
	}
	if req.IsNewArrival != nil {
		prod.IsNewArrival = *req.IsNewArrival
	}
	if req.IsFeatured != nil {
		prod.IsFeatured = *req.IsFeatured
	}
	if req.InStock != nil {
		prod.InStock = *req.InStock
	}

	if err := validateProduct(prod); err != nil {
		return nil, err
	}
	if err := s.Repo.SaveProduct(ctx, prod); err != nil {
		return nil, err
	}

	s.productChanged(ctx, "product_updated", prod)
	return prod, nil
}

func (s *CatalogService) DeleteProduct(ctx context.Context, id uuid.UUID) error {
	if err := s.Repo.DeleteProduct(ctx, id); err != nil {
		if repo.IsNotFound(err) {
			return fmt.Errorf("%w: product", ErrNotFound)
		}
		return err
	}

	if s.Index != nil {
		if err := s.Index.DeleteProduct(ctx, id); err != nil {
			logging.FromContext(ctx).Error("search_index_error", "op", "delete", "product_id", id, "error", err)
		}
	}
	publish(ctx, s.Events, mykafka.TopicProductEvents, id.String(), map[string]any{
		"type":      "product_deleted",
		"productID": id,
	})
	return nil
}

// SearchProducts prefers the search index and falls back to the database
// when the index is absent or failing.
func (s *CatalogService) SearchProducts(ctx context.Context, query string, offset, limit int) (int64, []models.Product, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return 0, nil, fmt.Errorf("%w: query required", ErrValidation)
	}

	if s.Index != nil {
		total, ids, err := s.Index.Search(ctx, query, offset, limit)
		if err == nil {
			items, err := s.Repo.GetProductsByIDs(ctx, ids)
			if err != nil {
				return 0, nil, err
			}
			return total, items, nil
		}
		logging.FromContext(ctx).Warn("search_index_error", "op", "search", "error", err)
	}
	return s.Repo.SearchProducts(ctx, query, offset, limit)
}

func (s *CatalogService) productChanged(ctx context.Context, kind string, prod *models.Product) {
	if s.Index != nil {
		if err := s.Index.IndexProduct(ctx, prod); err != nil {
			logging.FromContext(ctx).Error("search_index_error", "op", "index", "product_id", prod.ID, "error", err)
		}
	}
	publish(ctx, s.Events, mykafka.TopicProductEvents, prod.ID.String(), map[string]any{
		"type":          kind,
		"productID":     prod.ID,
		"name":          prod.Name,
		"discountPrice": prod.DiscountPrice.StringFixed(2),
		"inStock":       prod.InStock,
	})
}

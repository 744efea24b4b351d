package service

import (
	"context"
	"time"

	"github.com/segyhp/agriloan-engine/internal/domain"
	"github.com/segyhp/agriloan-engine/internal/repository"
	customError "github.com/segyhp/agriloan-engine/pkg/errors"

	"github.com/google/uuid"
)

type ProductService struct {
	ProductRepo repository.ProductRepository
	now         func() time.Time
}

func NewProductService(productRepo repository.ProductRepository) *ProductService {
	return &ProductService{
		ProductRepo: productRepo,
		now:         time.Now,
	}
}

// Create stores a new loan product template
func (s *ProductService) Create(ctx context.Context, request *domain.CreateProductRequest) (*domain.LoanProduct, error) {
	if request.InterestRate.IsNegative() {
		return nil, customError.WrapInvalidAmount("interest rate must not be negative")
	}
	if request.MinAmount.IsNegative() || request.MaxAmount.IsNegative() {
		return nil, customError.WrapInvalidAmount("amount limits must not be negative")
	}
	if request.MaxAmount.IsPositive() && request.MinAmount.GreaterThan(request.MaxAmount) {
		return nil, customError.WrapInvalidAmount("min amount must not exceed max amount")
	}
	if request.TermMonths <= 0 {
		return nil, customError.WrapInvalidTerm("term must be at least one month")
	}

	now := s.now().UTC()
	product := &domain.LoanProduct{
		ID:           uuid.New(),
		Name:         request.Name,
		Description:  request.Description,
		InterestRate: request.InterestRate,
		MinAmount:    request.MinAmount,
		MaxAmount:    request.MaxAmount,
		TermMonths:   request.TermMonths,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if err := s.ProductRepo.Create(ctx, product); err != nil {
		return nil, err
	}
	return product, nil
}

func (s *ProductService) Get(ctx context.Context, id uuid.UUID) (*domain.LoanProduct, error) {
	return s.ProductRepo.GetByID(ctx, id)
}

func (s *ProductService) List(ctx context.Context) ([]*domain.LoanProduct, error) {
	products, err := s.ProductRepo.List(ctx)
	if err != nil {
		return nil, err
	}
	if products == nil {
		products = []*domain.LoanProduct{}
	}
	return products, nil
}

func (s *ProductService) Delete(ctx context.Context, id uuid.UUID) error {
	return s.ProductRepo.Delete(ctx, id)
}

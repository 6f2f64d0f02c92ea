package catalog

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

var (
	ErrNotFound       = errors.New("product not found")
	ErrInvalidProduct = errors.New("invalid product")
)

type SizeStock struct {
	Size  string `json:"size"`
	Stock int    `json:"stock"`
}

type Product struct {
	ID            string           `json:"id"`
	Name          string           `json:"name"`
	Category      string           `json:"category"`
	Description   string           `json:"description,omitempty"`
	ImageURL      string           `json:"imageUrl,omitempty"`
	Price         decimal.Decimal  `json:"price"`
	DiscountPrice *decimal.Decimal `json:"discountPrice,omitempty"`
	IsNewArrival  bool             `json:"isNewArrival"`
	Sizes         []SizeStock      `json:"sizes"`
	CreatedAt     time.Time        `json:"createdAt"`
	UpdatedAt     time.Time        `json:"updatedAt"`
}

// SizeIndex returns the position of size in p.Sizes, or -1.
func (p *Product) SizeIndex(size string) int {
	for i, s := range p.Sizes {
		if s.Size == size {
			return i
		}
	}
	return -1
}

// Validate checks the invariants a committed product must hold.
func (p *Product) Validate() error {
	if strings.TrimSpace(p.Name) == "" {
		return fmt.Errorf("%w: name is required", ErrInvalidProduct)
	}
	if p.Price.IsNegative() {
		return fmt.Errorf("%w: price must not be negative", ErrInvalidProduct)
	}
	if p.DiscountPrice != nil && p.DiscountPrice.IsNegative() {
		return fmt.Errorf("%w: discount price must not be negative", ErrInvalidProduct)
	}
	seen := make(map[string]bool, len(p.Sizes))
	for _, s := range p.Sizes {
		if s.Size == "" {
			return fmt.Errorf("%w: size label is required", ErrInvalidProduct)
		}
		if seen[s.Size] {
			return fmt.Errorf("%w: duplicate size %q", ErrInvalidProduct, s.Size)
		}
		if s.Stock < 0 {
			return fmt.Errorf("%w: negative stock for size %q", ErrInvalidProduct, s.Size)
		}
		seen[s.Size] = true
	}
	return nil
}

// Filter narrows product listings. Category "all" or "" matches everything.
type Filter struct {
	Search       string
	Category     string
	NewArrivals  bool
	DiscountOnly bool
}

func (f Filter) HasCategory() bool {
	return f.Category != "" && f.Category != "all"
}

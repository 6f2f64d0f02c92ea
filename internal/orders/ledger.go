package orders

import (
	"fmt"

	"github.com/ariefcatur/go-storefront/internal/catalog"
)

// CheckAndReserve returns the stock left for line.Size after taking line.Quantity.
// It never touches storage.
func CheckAndReserve(p *catalog.Product, line Line) (int, error) {
	i := p.SizeIndex(line.Size)
	if i < 0 {
		return 0, fmt.Errorf("%w: %s has no size %q", ErrSizeNotFound, p.Name, line.Size)
	}
	stock := p.Sizes[i].Stock
	if stock < line.Quantity {
		return 0, fmt.Errorf("%w: %s (%s) has %d, requested %d",
			ErrInsufficientStock, p.Name, line.Size, stock, line.Quantity)
	}
	return stock - line.Quantity, nil
}

// Release returns the stock for line.Size after giving line.Quantity back.
// ok is false when the size no longer exists on the product.
func Release(p *catalog.Product, line Line) (stock int, ok bool) {
	i := p.SizeIndex(line.Size)
	if i < 0 {
		return 0, false
	}
	return p.Sizes[i].Stock + line.Quantity, true
}

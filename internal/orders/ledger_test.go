package orders

import (
	"testing"

	"github.com/ariefcatur/go-storefront/internal/catalog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func shirt() *catalog.Product {
	return &catalog.Product{
		ID:    "p-1",
		Name:  "Shirt",
		Sizes: []catalog.SizeStock{{Size: "S", Stock: 2}, {Size: "M", Stock: 5}},
	}
}

func TestCheckAndReserve(t *testing.T) {
	p := shirt()

	left, err := CheckAndReserve(p, Line{ProductID: p.ID, Size: "M", Quantity: 5})
	require.NoError(t, err)
	assert.Equal(t, 0, left)
	assert.Equal(t, 5, p.Sizes[1].Stock, "reserve must not mutate the product")

	_, err = CheckAndReserve(p, Line{ProductID: p.ID, Size: "S", Quantity: 3})
	assert.ErrorIs(t, err, ErrInsufficientStock)

	_, err = CheckAndReserve(p, Line{ProductID: p.ID, Size: "XL", Quantity: 1})
	assert.ErrorIs(t, err, ErrSizeNotFound)
}

func TestRelease(t *testing.T) {
	p := shirt()

	stock, ok := Release(p, Line{Size: "S", Quantity: 4})
	assert.True(t, ok)
	assert.Equal(t, 6, stock)
	assert.Equal(t, 2, p.Sizes[0].Stock)

	_, ok = Release(p, Line{Size: "XXL", Quantity: 1})
	assert.False(t, ok)
}

func TestReserveThenReleaseRoundTrip(t *testing.T) {
	for qty := 1; qty <= 5; qty++ {
		p := shirt()
		line := Line{Size: "M", Quantity: qty}
		left, err := CheckAndReserve(p, line)
		require.NoError(t, err)
		p.Sizes[1].Stock = left
		back, ok := Release(p, line)
		require.True(t, ok)
		assert.Equal(t, 5, back)
	}
}

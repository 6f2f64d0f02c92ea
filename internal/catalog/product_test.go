package catalog

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSizeIndex(t *testing.T) {
	p := Product{Sizes: []SizeStock{{Size: "S", Stock: 1}, {Size: "M", Stock: 2}}}
	assert.Equal(t, 1, p.SizeIndex("M"))
	assert.Equal(t, -1, p.SizeIndex("XL"))
}

func TestValidate(t *testing.T) {
	ok := Product{Name: "Tee", Price: decimal.NewFromInt(10), Sizes: []SizeStock{{Size: "M", Stock: 0}}}
	require.NoError(t, ok.Validate())

	cases := map[string]Product{
		"missing name":   {Price: decimal.NewFromInt(1)},
		"negative price": {Name: "x", Price: decimal.NewFromInt(-1)},
		"duplicate size": {Name: "x", Sizes: []SizeStock{{Size: "M"}, {Size: "M"}}},
		"negative stock": {Name: "x", Sizes: []SizeStock{{Size: "M", Stock: -1}}},
		"empty size":     {Name: "x", Sizes: []SizeStock{{Size: ""}}},
	}
	for name, p := range cases {
		t.Run(name, func(t *testing.T) {
			assert.ErrorIs(t, p.Validate(), ErrInvalidProduct)
		})
	}
}

func TestFilterHasCategory(t *testing.T) {
	assert.False(t, Filter{}.HasCategory())
	assert.False(t, Filter{Category: "all"}.HasCategory())
	assert.True(t, Filter{Category: "shirts"}.HasCategory())
}

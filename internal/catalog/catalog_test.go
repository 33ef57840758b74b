package catalog_test

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mohamedebada21/last-online-halal/internal/apperr"
	"github.com/mohamedebada21/last-online-halal/internal/catalog"
	"github.com/mohamedebada21/last-online-halal/internal/domain"
	"github.com/mohamedebada21/last-online-halal/internal/store/memory"
)

func watermelon() catalog.ProductInput {
	return catalog.ProductInput{
		Name:              "Organic Watermelon",
		Description:       "Fresh, seedless, and juicy.",
		Category:          "Fruits",
		Price:             "5.99",
		Stock:             "100",
		LowStockThreshold: "10",
		Taxable:           true,
	}
}

func TestUpsert_CreatesWithFreshID(t *testing.T) {
	ctx := context.Background()
	svc := catalog.NewService(memory.New("events"))

	p, err := svc.Upsert(ctx, watermelon())
	require.NoError(t, err)

	assert.NotEmpty(t, p.ID)
	assert.Equal(t, "each", p.Unit)
	assert.True(t, decimal.RequireFromString("5.99").Equal(p.Price))
	assert.Equal(t, 100, p.Stock)

	got, err := svc.Get(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, p.Name, got.Name)
}

func TestUpsert_UnknownIDCreatesNewRecord(t *testing.T) {
	svc := catalog.NewService(memory.New("events"))

	in := watermelon()
	in.ID = "does-not-exist"
	p, err := svc.Upsert(context.Background(), in)
	require.NoError(t, err)
	assert.NotEqual(t, domain.ProductID("does-not-exist"), p.ID)
}

func TestUpsert_OverwritesExistingInPlace(t *testing.T) {
	ctx := context.Background()
	svc := catalog.NewService(memory.New("events"))

	created, err := svc.Upsert(ctx, watermelon())
	require.NoError(t, err)

	edit := watermelon()
	edit.ID = string(created.ID)
	edit.Price = "6.49"
	edit.Stock = "3"
	edit.Description = "Now even juicier."
	updated, err := svc.Upsert(ctx, edit)
	require.NoError(t, err)

	assert.Equal(t, created.ID, updated.ID)
	assert.Equal(t, created.CreatedAt, updated.CreatedAt)

	all, err := svc.List(ctx, catalog.Filter{})
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.True(t, decimal.RequireFromString("6.49").Equal(all[0].Price))
	assert.Equal(t, 3, all[0].Stock)
	assert.Equal(t, "Now even juicier.", all[0].Description)
}

func TestUpsert_RejectsInvalidNumbers(t *testing.T) {
	tests := []struct {
		name  string
		patch func(*catalog.ProductInput)
	}{
		{"price not a number", func(in *catalog.ProductInput) { in.Price = "five" }},
		{"negative price", func(in *catalog.ProductInput) { in.Price = "-1.00" }},
		{"empty price", func(in *catalog.ProductInput) { in.Price = "" }},
		{"fractional stock", func(in *catalog.ProductInput) { in.Stock = "2.5" }},
		{"negative stock", func(in *catalog.ProductInput) { in.Stock = "-1" }},
		{"threshold not a number", func(in *catalog.ProductInput) { in.LowStockThreshold = "low" }},
		{"negative threshold", func(in *catalog.ProductInput) { in.LowStockThreshold = "-5" }},
		{"missing name", func(in *catalog.ProductInput) { in.Name = "  " }},
		{"price above column range", func(in *catalog.ProductInput) { in.Price = "1e10" }},
		{"price rounding past the limit", func(in *catalog.ProductInput) { in.Price = "9999999999.996" }},
		{"stock above int32", func(in *catalog.ProductInput) { in.Stock = "3000000000" }},
		{"threshold above int32", func(in *catalog.ProductInput) { in.LowStockThreshold = "2147483648" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := memory.New("events")
			svc := catalog.NewService(store)

			in := watermelon()
			tt.patch(&in)
			_, err := svc.Upsert(context.Background(), in)
			assert.ErrorIs(t, err, apperr.ErrInvalidProduct)

			all, _ := store.ListProducts(context.Background(), catalog.Filter{})
			assert.Empty(t, all)
		})
	}
}

func TestUpsert_ThresholdIsOptional(t *testing.T) {
	svc := catalog.NewService(memory.New("events"))
	in := watermelon()
	in.LowStockThreshold = " "

	p, err := svc.Upsert(context.Background(), in)
	require.NoError(t, err)
	assert.Equal(t, 0, p.LowStockThreshold)
}

func TestUpsert_AcceptsLimits(t *testing.T) {
	svc := catalog.NewService(memory.New("events"))
	in := watermelon()
	in.Price = "9999999999.99"
	in.Stock = "2147483647"
	in.LowStockThreshold = "2147483647"

	p, err := svc.Upsert(context.Background(), in)
	require.NoError(t, err)
	assert.True(t, catalog.MaxPrice.Equal(p.Price))
	assert.Equal(t, catalog.MaxCount, p.Stock)
}

func TestUpsert_InvalidEditLeavesProductUnchanged(t *testing.T) {
	ctx := context.Background()
	svc := catalog.NewService(memory.New("events"))

	created, err := svc.Upsert(ctx, watermelon())
	require.NoError(t, err)

	edit := watermelon()
	edit.ID = string(created.ID)
	edit.Stock = "-3"
	_, err = svc.Upsert(ctx, edit)
	require.ErrorIs(t, err, apperr.ErrInvalidProduct)

	got, err := svc.Get(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, 100, got.Stock)
}

func TestDelete(t *testing.T) {
	ctx := context.Background()
	svc := catalog.NewService(memory.New("events"))

	p, err := svc.Upsert(ctx, watermelon())
	require.NoError(t, err)

	require.NoError(t, svc.Delete(ctx, p.ID))
	_, err = svc.Get(ctx, p.ID)
	assert.ErrorIs(t, err, apperr.ErrNotFound)

	assert.ErrorIs(t, svc.Delete(ctx, p.ID), apperr.ErrNotFound)
}

func TestList_FiltersByCategory(t *testing.T) {
	ctx := context.Background()
	svc := catalog.NewService(memory.New("events"))

	_, err := svc.Upsert(ctx, watermelon())
	require.NoError(t, err)
	chicken := catalog.ProductInput{Name: "Halal Chicken Breast", Category: "Meats", Price: "12.50", Unit: "kg", Stock: "50", LowStockThreshold: "10"}
	_, err = svc.Upsert(ctx, chicken)
	require.NoError(t, err)

	meats, err := svc.List(ctx, catalog.Filter{Category: "meats"})
	require.NoError(t, err)
	require.Len(t, meats, 1)
	assert.Equal(t, "kg", meats[0].Unit)
}

func TestInventory_SortedByStockWithLevels(t *testing.T) {
	ctx := context.Background()
	svc := catalog.NewService(memory.New("events"))

	for _, in := range []catalog.ProductInput{
		{Name: "Plenty", Price: "1.00", Stock: "40", LowStockThreshold: "10"},
		{Name: "Gone", Price: "1.00", Stock: "0", LowStockThreshold: "10"},
		{Name: "Few", Price: "1.00", Stock: "4", LowStockThreshold: "10"},
	} {
		_, err := svc.Upsert(ctx, in)
		require.NoError(t, err)
	}

	rows, err := svc.Inventory(ctx)
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, "Gone", rows[0].Product.Name)
	assert.Equal(t, domain.OutOfStock, rows[0].Level)
	assert.Equal(t, "Few", rows[1].Product.Name)
	assert.Equal(t, domain.LowStock, rows[1].Level)
	assert.Equal(t, domain.InStock, rows[2].Level)
}

package ai

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mentora/internal/models"
)

// fakeData is an in-memory DataSource keyed by company id.
type fakeData struct {
	products map[int64][]models.Product
	// revenue is looked up by the start of the requested window.
	revenue map[time.Time]decimal.Decimal
	totals  map[int64][]models.ProductQuantity
	since   time.Time
	err     error
}

func (f *fakeData) CountProducts(_ context.Context, companyID int64) (int64, error) {
	if f.err != nil {
		return 0, f.err
	}
	return int64(len(f.products[companyID])), nil
}

func (f *fakeData) ListProducts(_ context.Context, companyID int64) ([]models.Product, error) {
	return f.products[companyID], f.err
}

func (f *fakeData) MostExpensiveProduct(_ context.Context, companyID int64) (*models.Product, error) {
	var best *models.Product
	for i, p := range f.products[companyID] {
		if best == nil || p.Price.GreaterThan(best.Price) {
			best = &f.products[companyID][i]
		}
	}
	if best == nil {
		return nil, sql.ErrNoRows
	}
	return best, nil
}

func (f *fakeData) RevenueBetween(_ context.Context, _ int64, from, _ time.Time) (decimal.Decimal, error) {
	return f.revenue[from], f.err
}

func (f *fakeData) QuantityByProduct(_ context.Context, companyID int64, since time.Time) ([]models.ProductQuantity, error) {
	f.since = since
	return f.totals[companyID], f.err
}

var testNow = time.Date(2024, 6, 15, 12, 0, 0, 0, time.UTC)

func trendData(current, previous string) *fakeData {
	return &fakeData{revenue: map[time.Time]decimal.Decimal{
		testNow.Add(-7 * 24 * time.Hour):  decimal.RequireFromString(current),
		testNow.Add(-14 * 24 * time.Hour): decimal.RequireFromString(previous),
	}}
}

func TestProductTools(t *testing.T) {
	data := &fakeData{products: map[int64][]models.Product{
		1: {
			{Name: "Kopi Susu", Price: decimal.NewFromInt(18000)},
			{Name: "Teh Manis", Price: decimal.NewFromInt(5000)},
		},
		2: {{Name: "Nasi Goreng", Price: decimal.NewFromInt(1250000)}},
	}}
	ctx := context.Background()

	count, err := ProductCount(ctx, data, 1)
	require.NoError(t, err)
	assert.Equal(t, "2", count)

	list, err := ProductList(ctx, data, 1)
	require.NoError(t, err)
	assert.Equal(t, "Kopi Susu, Teh Manis", list)

	list, err = ProductList(ctx, data, 3)
	require.NoError(t, err)
	assert.Equal(t, NoProductsMessage, list)

	top, err := MostExpensiveProduct(ctx, data, 2)
	require.NoError(t, err)
	assert.Equal(t, "The most expensive product is Nasi Goreng priced at Rp 1,250,000.", top)

	top, err = MostExpensiveProduct(ctx, data, 3)
	require.NoError(t, err)
	assert.Equal(t, NoPricesMessage, top)
}

func TestWeeklySalesTrend(t *testing.T) {
	ctx := context.Background()
	for _, tc := range []struct {
		name, current, previous, want string
	}{
		{"doubled", "1000", "500", "increased by +100.0%"},
		{"dropped", "375", "500", "decreased by -25.0%"},
		{"flat", "500", "500", "stable"},
		{"first week", "1000", "0", "Good start"},
		{"nothing", "0", "0", NoTrendMessage},
	} {
		t.Run(tc.name, func(t *testing.T) {
			got, err := WeeklySalesTrend(ctx, trendData(tc.current, tc.previous), 1, testNow)
			require.NoError(t, err)
			assert.Contains(t, got, tc.want)
		})
	}
}

func TestProactiveSuggestion(t *testing.T) {
	ctx := context.Background()
	data := &fakeData{totals: map[int64][]models.ProductQuantity{
		1: {
			{ProductID: 2, Name: "Teh Manis", Total: 1},
			{ProductID: 3, Name: "Air Mineral", Total: 1},
			{ProductID: 1, Name: "Kopi Susu", Total: 10},
		},
	}}

	got, err := ProactiveSuggestion(ctx, data, 1, testNow, func(int) int { return 0 })
	require.NoError(t, err)
	assert.Equal(t, SuggestionPrefix+"Product 'Air Mineral' seems less popular this month. Try a 'Buy 1 Get 1 Free' promo this weekend to boost its sales.", got)
	assert.Equal(t, testNow.Add(-30*24*time.Hour), data.since)

	got, err = ProactiveSuggestion(ctx, data, 2, testNow, nil)
	require.NoError(t, err)
	assert.Equal(t, NoSuggestionMessage, got)
}

func TestDispatchAllowList(t *testing.T) {
	data := &fakeData{products: map[int64][]models.Product{7: {{Name: "Kopi", Price: decimal.NewFromInt(1)}}}}
	ts := NewToolSet(data, 7)
	ctx := context.Background()

	out, err := ts.Dispatch(ctx, ToolProductList)
	require.NoError(t, err)
	assert.Equal(t, "Kopi", out)

	_, err = ts.Dispatch(ctx, "drop_database")
	assert.ErrorIs(t, err, ErrUnknownTool)

	assert.Equal(t, []string{
		ToolProductCount, ToolProductList, ToolMostExpensiveProduct, ToolWeeklySalesTrend, ToolProactiveSuggestion,
	}, ts.Names())

	failing := NewToolSet(&fakeData{err: errors.New("db down")}, 7)
	_, err = failing.Dispatch(ctx, ToolProductCount)
	assert.EqualError(t, err, "db down")
}

func TestFormatRupiah(t *testing.T) {
	assert.Equal(t, "Rp 18,000", FormatRupiah(decimal.RequireFromString("18000.00")))
	assert.Equal(t, "Rp 0", FormatRupiah(decimal.Zero))
	assert.Equal(t, "Rp 1,234,568", FormatRupiah(decimal.RequireFromString("1234567.5")))
}

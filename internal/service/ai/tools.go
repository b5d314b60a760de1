package ai

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math/rand/v2"
	"strconv"
	"strings"
	"time"

	"mentora/internal/models"

	"github.com/dustin/go-humanize"
	"github.com/shopspring/decimal"
)

// Tool names exposed to the model.
const (
	ToolProductCount         = "get_product_count"
	ToolProductList          = "get_product_list"
	ToolMostExpensiveProduct = "get_most_expensive_product"
	ToolWeeklySalesTrend     = "analyze_weekly_sales_trend"
	ToolProactiveSuggestion  = "get_proactive_suggestion"
)

const (
	trendWindow      = 7 * 24 * time.Hour
	suggestionWindow = 30 * 24 * time.Hour

	SuggestionPrefix    = "Proactive suggestion: "
	NoProductsMessage   = "No products found."
	NoPricesMessage     = "There are no products in the database."
	NoTrendMessage      = "There were no sales in the last two weeks, so there is no trend to analyze yet."
	NoSuggestionMessage = "There is not enough sales data from the last 30 days to make a suggestion yet."
)

var ErrUnknownTool = errors.New("unknown tool")

// DataSource is the tenant-scoped read model the tools query. Every method filters by companyID.
type DataSource interface {
	CountProducts(ctx context.Context, companyID int64) (int64, error)
	ListProducts(ctx context.Context, companyID int64) ([]models.Product, error)
	// MostExpensiveProduct returns sql.ErrNoRows when the company has no products.
	MostExpensiveProduct(ctx context.Context, companyID int64) (*models.Product, error)
	// RevenueBetween sums price × quantity of sales dated in [from, to).
	RevenueBetween(ctx context.Context, companyID int64, from, to time.Time) (decimal.Decimal, error)
	// QuantityByProduct lists units sold per product since the given time, lowest seller first.
	QuantityByProduct(ctx context.Context, companyID int64, since time.Time) ([]models.ProductQuantity, error)
}

var suggestionTemplates = []string{
	"Product '%s' seems less popular this month. Try a 'Buy 1 Get 1 Free' promo this weekend to boost its sales.",
	"'%s' is your slowest seller over the last 30 days. Consider bundling it with your best seller at a special price.",
	"Sales of '%s' are lagging. Feature it on your social media this week or offer a limited-time 10%% discount.",
}

// ProductCount returns the number of products the company owns.
func ProductCount(ctx context.Context, data DataSource, companyID int64) (string, error) {
	n, err := data.CountProducts(ctx, companyID)
	if err != nil {
		return "", err
	}
	return strconv.FormatInt(n, 10), nil
}

// ProductList returns the company's product names joined with commas.
func ProductList(ctx context.Context, data DataSource, companyID int64) (string, error) {
	products, err := data.ListProducts(ctx, companyID)
	if err != nil {
		return "", err
	}
	if len(products) == 0 {
		return NoProductsMessage, nil
	}
	names := make([]string, 0, len(products))
	for _, p := range products {
		names = append(names, p.Name)
	}
	return strings.Join(names, ", "), nil
}

// MostExpensiveProduct names the company's highest priced product.
func MostExpensiveProduct(ctx context.Context, data DataSource, companyID int64) (string, error) {
	product, err := data.MostExpensiveProduct(ctx, companyID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return NoPricesMessage, nil
		}
		return "", err
	}
	if product == nil {
		return NoPricesMessage, nil
	}
	return fmt.Sprintf("The most expensive product is %s priced at %s.", product.Name, FormatRupiah(product.Price)), nil
}

// WeeklySalesTrend compares revenue of [now-7d, now) with [now-14d, now-7d).
func WeeklySalesTrend(ctx context.Context, data DataSource, companyID int64, now time.Time) (string, error) {
	weekAgo := now.Add(-trendWindow)
	current, err := data.RevenueBetween(ctx, companyID, weekAgo, now)
	if err != nil {
		return "", err
	}
	previous, err := data.RevenueBetween(ctx, companyID, weekAgo.Add(-trendWindow), weekAgo)
	if err != nil {
		return "", err
	}

	switch {
	case current.IsZero() && previous.IsZero():
		return NoTrendMessage, nil
	case previous.IsZero():
		return fmt.Sprintf("Good start! Revenue this week is %s, and there were no sales the week before.", FormatRupiah(current)), nil
	}

	pct := current.Sub(previous).Div(previous).Mul(decimal.NewFromInt(100)).Round(1)
	comparison := fmt.Sprintf("(%s this week vs %s the week before)", FormatRupiah(current), FormatRupiah(previous))
	switch pct.Sign() {
	case 1:
		return fmt.Sprintf("Sales revenue increased by +%s%% compared to the previous week %s.", pct.StringFixed(1), comparison), nil
	case -1:
		return fmt.Sprintf("Sales revenue decreased by %s%% compared to the previous week %s.", pct.StringFixed(1), comparison), nil
	default:
		return fmt.Sprintf("Sales revenue is stable compared to the previous week %s.", comparison), nil
	}
}

// ProactiveSuggestion promotes the product that sold the fewest units over the last 30 days.
// pick returns an index in [0, n) and selects the template.
func ProactiveSuggestion(ctx context.Context, data DataSource, companyID int64, now time.Time, pick func(n int) int) (string, error) {
	totals, err := data.QuantityByProduct(ctx, companyID, now.Add(-suggestionWindow))
	if err != nil {
		return "", err
	}
	if len(totals) == 0 {
		return NoSuggestionMessage, nil
	}
	lowest := totals[0]
	for _, t := range totals[1:] {
		if t.Total < lowest.Total || (t.Total == lowest.Total && t.Name < lowest.Name) {
			lowest = t
		}
	}
	if pick == nil {
		pick = rand.IntN
	}
	idx := pick(len(suggestionTemplates))
	if idx < 0 || idx >= len(suggestionTemplates) {
		idx = 0
	}
	return SuggestionPrefix + fmt.Sprintf(suggestionTemplates[idx], lowest.Name), nil
}

// FormatRupiah renders an amount as "Rp 18,000", rounded to whole rupiah.
func FormatRupiah(amount decimal.Decimal) string {
	return "Rp " + humanize.Comma(amount.RoundBank(0).IntPart())
}

type toolHandler func(ctx context.Context, ts *ToolSet) (string, error)

type toolSpec struct {
	name        string
	description string
	handler     toolHandler
}

// toolTable is the allow-list. Order is the order declared to the model.
var toolTable = []toolSpec{
	{
		name:        ToolProductCount,
		description: "Returns the total number of products registered by the company.",
		handler: func(ctx context.Context, ts *ToolSet) (string, error) {
			return ProductCount(ctx, ts.data, ts.companyID)
		},
	},
	{
		name:        ToolProductList,
		description: "Returns the names of all of the company's products, separated by commas.",
		handler: func(ctx context.Context, ts *ToolSet) (string, error) {
			return ProductList(ctx, ts.data, ts.companyID)
		},
	},
	{
		name:        ToolMostExpensiveProduct,
		description: "Finds the company's product with the highest price and returns its name and price.",
		handler: func(ctx context.Context, ts *ToolSet) (string, error) {
			return MostExpensiveProduct(ctx, ts.data, ts.companyID)
		},
	},
	{
		name:        ToolWeeklySalesTrend,
		description: "Compares sales revenue of the last 7 days with the 7 days before and describes the trend as a percentage.",
		handler: func(ctx context.Context, ts *ToolSet) (string, error) {
			return WeeklySalesTrend(ctx, ts.data, ts.companyID, ts.now())
		},
	},
	{
		name:        ToolProactiveSuggestion,
		description: "Finds the product that sold the least over the last 30 days and suggests a promotion for it.",
		handler: func(ctx context.Context, ts *ToolSet) (string, error) {
			return ProactiveSuggestion(ctx, ts.data, ts.companyID, ts.now(), ts.pick)
		},
	},
}

var toolIndex = func() map[string]toolSpec {
	idx := make(map[string]toolSpec, len(toolTable))
	for _, spec := range toolTable {
		idx[spec.name] = spec
	}
	return idx
}()

// ToolSet binds the tools to one company for the duration of a request.
type ToolSet struct {
	data      DataSource
	companyID int64
	now       func() time.Time
	pick      func(n int) int
}

// NewToolSet binds data to companyID.
func NewToolSet(data DataSource, companyID int64) *ToolSet {
	return &ToolSet{
		data:      data,
		companyID: companyID,
		now:       func() time.Time { return time.Now().UTC() },
		pick:      rand.IntN,
	}
}

// CompanyID returns the tenant the set is bound to.
func (ts *ToolSet) CompanyID() int64 {
	return ts.companyID
}

// Names lists the allowed tool names in declaration order.
func (ts *ToolSet) Names() []string {
	names := make([]string, 0, len(toolTable))
	for _, spec := range toolTable {
		names = append(names, spec.name)
	}
	return names
}

// Dispatch runs the named tool. Names outside the allow-list return ErrUnknownTool.
func (ts *ToolSet) Dispatch(ctx context.Context, name string) (string, error) {
	spec, ok := toolIndex[name]
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownTool, name)
	}
	return spec.handler(ctx, ts)
}

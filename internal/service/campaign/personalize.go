package campaign

import (
	"math"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/acme/crm-pro/internal/domain"
)

// Template placeholders, substituted in this order.
const (
	PlaceholderName  = "{name}"
	PlaceholderCity  = "{city}"
	PlaceholderItem  = "{item}"
	PlaceholderPrice = "{price}"
)

// Personalize fills the placeholders of template from r. Only the first
// occurrence of each placeholder is replaced; later ones stay literal.
func Personalize(template string, r domain.Recipient) string {
	out := strings.Replace(template, PlaceholderName, r.Name, 1)
	out = strings.Replace(out, PlaceholderCity, r.City, 1)
	out = strings.Replace(out, PlaceholderItem, r.Item, 1)
	out = strings.Replace(out, PlaceholderPrice, r.Price, 1)
	return out
}

// DefaultCostPerMessage is the display rate used for cost estimates.
var DefaultCostPerMessage = decimal.RequireFromString("0.001")

// EstimateCost returns n times the default per-message rate.
func EstimateCost(n int) decimal.Decimal {
	return EstimateCostAt(n, DefaultCostPerMessage)
}

// EstimateCostAt returns n times rate.
func EstimateCostAt(n int, rate decimal.Decimal) decimal.Decimal {
	if n <= 0 {
		return decimal.Zero
	}
	return rate.Mul(decimal.NewFromInt(int64(n)))
}

// EstimateDuration assumes two messages per minute, rounded up.
func EstimateDuration(n int) time.Duration {
	if n <= 0 {
		return 0
	}
	return time.Duration((n+1)/2) * time.Minute
}

// ExpectedOpens assumes 85% of recipients read the message.
func ExpectedOpens(n int) int {
	if n <= 0 {
		return 0
	}
	return int(math.Round(float64(n) * 0.85))
}

// Estimate summarizes a prospective run for display.
type Estimate struct {
	Recipients      int             `json:"recipients"`
	Cost            decimal.Decimal `json:"cost"`
	CostDisplay     string          `json:"cost_display"`
	DurationMinutes int             `json:"duration_minutes"`
	ExpectedOpens   int             `json:"expected_opens"`
}

// NewEstimate computes every estimate for n recipients at rate.
func NewEstimate(n int, rate decimal.Decimal) Estimate {
	cost := EstimateCostAt(n, rate)
	return Estimate{
		Recipients:      n,
		Cost:            cost,
		CostDisplay:     cost.StringFixed(2),
		DurationMinutes: int(EstimateDuration(n) / time.Minute),
		ExpectedOpens:   ExpectedOpens(n),
	}
}

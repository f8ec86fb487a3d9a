package campaign

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"github.com/acme/crm-pro/internal/domain"
)

func TestPersonalize(t *testing.T) {
	r := domain.Recipient{Name: "Ahmed", City: "Casablanca", Item: "Phone", Price: "500"}

	tests := []struct {
		name     string
		template string
		want     string
	}{
		{"all placeholders", "Hi {name}, your {item} ({price} MAD) ships to {city}", "Hi Ahmed, your Phone (500 MAD) ships to Casablanca"},
		{"first occurrence only", "{name} {name}", "Ahmed {name}"},
		{"no placeholders", "Hello there", "Hello there"},
		{"unknown placeholder", "Hi {surname}", "Hi {surname}"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Personalize(tt.template, r))
		})
	}
}

func TestPersonalizeMissingFields(t *testing.T) {
	got := Personalize("Hi {name} in {city}", domain.Recipient{Name: "Sara"})
	assert.Equal(t, "Hi Sara in ", got)
}

func TestEstimates(t *testing.T) {
	assert.True(t, EstimateCost(100).Equal(decimal.RequireFromString("0.1")))
	assert.True(t, EstimateCost(0).IsZero())

	assert.Equal(t, 0*time.Minute, EstimateDuration(0))
	assert.Equal(t, 1*time.Minute, EstimateDuration(1))
	assert.Equal(t, 2*time.Minute, EstimateDuration(3))
	assert.Equal(t, 5*time.Minute, EstimateDuration(10))

	assert.Equal(t, 9, ExpectedOpens(11))
	assert.Equal(t, 85, ExpectedOpens(100))
	assert.Equal(t, 0, ExpectedOpens(0))
}

func TestNewEstimate(t *testing.T) {
	e := NewEstimate(11, DefaultCostPerMessage)
	assert.Equal(t, 11, e.Recipients)
	assert.Equal(t, "0.01", e.CostDisplay)
	assert.Equal(t, 6, e.DurationMinutes)
	assert.Equal(t, 9, e.ExpectedOpens)

	e = NewEstimate(2500, decimal.RequireFromString("0.002"))
	assert.Equal(t, "5.00", e.CostDisplay)
}

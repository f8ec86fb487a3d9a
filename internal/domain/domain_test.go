package domain

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/acme/crm-pro/pkg/errors"
)

func TestParseOrderStatus(t *testing.T) {
	st, ok := ParseOrderStatus(" delivered ")
	require.True(t, ok)
	assert.Equal(t, OrderStatusDelivered, st)

	_, ok = ParseOrderStatus("lost")
	assert.False(t, ok)

	assert.True(t, OrderStatusReturned.Valid())
	assert.False(t, OrderStatus("confirmed").Valid())
}

func TestCommissionDisplay(t *testing.T) {
	tests := []struct {
		name string
		c    Commission
		want string
	}{
		{"fixed", Commission{Value: decimal.NewFromInt(10), Type: CommissionFixed, Set: true}, "10 fixed"},
		{"amount", Commission{Value: decimal.NewFromInt(5), Type: CommissionAmount, Set: true}, "$5"},
		{"plain", Commission{Value: decimal.RequireFromString("2.5"), Set: true}, "2.5"},
		{"blank", Commission{}, "N/A"},
		{"zero without type", Commission{Value: decimal.Zero, Set: true}, "N/A"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.c.Display())
		})
	}
}

func TestUserPublicDropsPassword(t *testing.T) {
	u := User{Username: "admin", Password: "secret"}
	assert.Empty(t, u.Public().Password)
	assert.Equal(t, "secret", u.Password)
}

func TestWhatsAppCredentialsValidate(t *testing.T) {
	creds := Credentials{KeyWhatsAppPhoneID: "123"}
	err := creds.WhatsApp().Validate()
	require.Error(t, err)
	assert.True(t, apperrors.Is(err, apperrors.ErrConfiguration))
	assert.Contains(t, err.Error(), KeyWhatsAppAccessToken)

	creds[KeyWhatsAppAccessToken] = " token "
	require.NoError(t, creds.WhatsApp().Validate())
	assert.Equal(t, "token", creds.WhatsApp().AccessToken)

	creds[KeyWhatsAppPhoneID] = "   "
	err = creds.WhatsApp().Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), KeyWhatsAppPhoneID)
}

func TestSegmentMatch(t *testing.T) {
	clients := []Client{
		{Name: "Noureddine", City: "Marrakech", Status: OrderStatusConfirmed, Price: decimal.NewFromInt(299)},
		{Name: "Hicham", City: "Casablanca", Status: OrderStatusDelivered, Price: decimal.NewFromInt(150)},
		{Name: "Salma", City: "marrakech", Status: OrderStatusCancelled, Price: decimal.NewFromInt(450)},
	}

	assert.Len(t, Segment{Kind: SegmentAll}.Filter(clients), 3)
	assert.Equal(t, "Hicham", Segment{Kind: SegmentDelivered}.Filter(clients)[0].Name)
	assert.Equal(t, "Salma", Segment{Kind: SegmentCancelled}.Filter(clients)[0].Name)

	min := decimal.NewFromInt(300)
	custom := Segment{Kind: SegmentCustom, City: "MARRA", MinPrice: &min}
	got := custom.Filter(clients)
	require.Len(t, got, 1)
	assert.Equal(t, "Salma", got[0].Name)

	custom = Segment{Kind: SegmentCustom, City: "marra", Status: OrderStatusConfirmed}
	got = custom.Filter(clients)
	require.Len(t, got, 1)
	assert.Equal(t, "Noureddine", got[0].Name)

	assert.Len(t, Segment{Kind: SegmentCustom}.Filter(clients), 3)
}

func TestSegmentValidate(t *testing.T) {
	assert.NoError(t, Segment{Kind: SegmentAll}.Validate())
	assert.Error(t, Segment{}.Validate())
	assert.Error(t, Segment{Kind: "vip"}.Validate())
	assert.Error(t, Segment{Kind: SegmentCustom, Status: "Lost"}.Validate())
}

func TestClientMatchesAndRecipient(t *testing.T) {
	c := Client{Name: "Noureddine", City: "Marrakech", Phone: "212679752339", Items: "Watch", Price: decimal.RequireFromString("299.50")}

	assert.True(t, c.Matches("noure"))
	assert.True(t, c.Matches("MARRAKECH"))
	assert.True(t, c.Matches("6797"))
	assert.False(t, c.Matches("rabat"))
	assert.True(t, c.Matches(""))

	r := c.Recipient()
	assert.Equal(t, "Watch", r.Item)
	assert.Equal(t, "299.5", r.Price)
}

func TestRunStateTerminal(t *testing.T) {
	assert.False(t, RunStateQueued.Terminal())
	assert.False(t, RunStateRunning.Terminal())
	assert.True(t, RunStateCompleted.Terminal())
	assert.True(t, RunStateCancelled.Terminal())
	assert.True(t, RunStateFailed.Terminal())
}

package phone

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
)

func TestNormalize(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want string
	}{
		{name: "national with leading zero", raw: "0679752339", want: "212679752339"},
		{name: "plus prefix", raw: "+212679752339", want: "212679752339"},
		{name: "double zero prefix", raw: "00212679752339", want: "212679752339"},
		{name: "nine digits", raw: "679752339", want: "212679752339"},
		{name: "empty", raw: "", want: ""},
		{name: "blank", raw: "   ", want: ""},
		{name: "separators", raw: " +212 (679) 75-23-39 ", want: "212679752339"},
		{name: "tabs and newlines", raw: "06\t79\n752339", want: "212679752339"},
		{name: "already normalized", raw: "212679752339", want: "212679752339"},
		{name: "eleven digits pass through", raw: "06797523391", want: "06797523391"},
		{name: "eight digits pass through", raw: "67975233", want: "67975233"},
		{name: "nine digits already prefixed", raw: "212679752", want: "212679752"},
		{name: "letters survive", raw: "abc", want: "abc"},
		{name: "dots are kept", raw: "067.975.2339", want: "067.975.2339"},
		{name: "only one plus removed", raw: "++212679752339", want: "+212679752339"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Normalize(tt.raw, "212"))
		})
	}
}

func TestNormalizeOtherCountryCode(t *testing.T) {
	assert.Equal(t, "33612345678", Normalize("0612345678", "33"))
	assert.Equal(t, "33612345678", Normalize("612345678", "33"))
}

func TestIsValidWhatsAppPhone(t *testing.T) {
	assert.True(t, IsValidWhatsAppPhone("212679752339"))
	assert.True(t, IsValidWhatsAppPhone("0679752339"))
	assert.False(t, IsValidWhatsAppPhone("abc"))
	assert.False(t, IsValidWhatsAppPhone(""))
	assert.False(t, IsValidWhatsAppPhone("12345"))
	assert.False(t, IsValidWhatsAppPhone("1234567890123456"))
	assert.False(t, IsValidWhatsAppPhone("21267975233x"))
}

func TestFormatDisplay(t *testing.T) {
	assert.Equal(t, "+212 679752339", FormatDisplay("0679752339"))
	assert.Equal(t, "+12345", FormatDisplay("12345"))
	assert.Equal(t, "", FormatDisplay(""))
}

func TestDigitsOnly(t *testing.T) {
	assert.Equal(t, "212679752339", DigitsOnly("+212 679-752 339"))
	assert.Equal(t, "", DigitsOnly("abc"))
}

func TestRegion(t *testing.T) {
	assert.Equal(t, "MA", Region("212679752339"))
	assert.Equal(t, "", Region(""))
	assert.Equal(t, "", Region("abc"))
}

func TestNormalizeBatch(t *testing.T) {
	input := []Row{
		{"Client": "Noureddine", "Phone": "0679752339", "City": "Marrakech"},
		{"Client": "Hicham", "Phone": float64(679752339)},
		{"Client": "Salma"},
	}
	before := []Row{
		{"Client": "Noureddine", "Phone": "0679752339", "City": "Marrakech"},
		{"Client": "Hicham", "Phone": float64(679752339)},
		{"Client": "Salma"},
	}

	got := NormalizeBatch(input, "Phone", "212")

	want := []Row{
		{"Client": "Noureddine", "Phone": "212679752339", "City": "Marrakech"},
		{"Client": "Hicham", "Phone": "212679752339"},
		{"Client": "Salma", "Phone": ""},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("NormalizeBatch mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff(before, input); diff != "" {
		t.Fatalf("input mutated (-want +got):\n%s", diff)
	}
}

func TestNormalizeBatchEmpty(t *testing.T) {
	got := NormalizeBatch(nil, "Phone", "212")
	assert.NotNil(t, got)
	assert.Len(t, got, 0)
}

func TestNormalizedHelpersKeepCountryCode(t *testing.T) {
	// 9 digits with the 33 prefix would gain a 212 prefix if normalized again.
	normalized := Normalize("336123456", "33")
	assert.Equal(t, "336123456", normalized)
	assert.Equal(t, "+336123456", DisplayNormalized(normalized))
	assert.False(t, IsValidNormalized(normalized))
	assert.Equal(t, "+212 336123456", FormatDisplay(normalized))
	assert.True(t, IsValidWhatsAppPhone(normalized))

	assert.True(t, IsValidNormalized("33612345678"))
	assert.Equal(t, "", DisplayNormalized(""))
}

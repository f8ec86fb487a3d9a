package common

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/acme/crm-pro/pkg/errors"
)

func TestPageTokenRoundTrip(t *testing.T) {
	state := []byte{0x00, 0x10, 0xff, 'r', 'u', 'n'}
	token := EncodePageToken(state)
	assert.NotContains(t, token, "=")

	got, err := DecodePageToken(token)
	require.NoError(t, err)
	assert.Equal(t, state, got)
}

func TestPageTokenEmpty(t *testing.T) {
	assert.Empty(t, EncodePageToken(nil))
	got, err := DecodePageToken("")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestDecodePageTokenRejectsGarbage(t *testing.T) {
	_, err := DecodePageToken("%%%")
	assert.ErrorIs(t, err, apperrors.ErrValidation)
}

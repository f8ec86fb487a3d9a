package common

import (
	"encoding/base64"
	"fmt"

	apperrors "github.com/acme/crm-pro/pkg/errors"
)

// EncodePageToken turns a driver paging state into an opaque URL-safe token.
// An empty state yields an empty token.
func EncodePageToken(state []byte) string {
	if len(state) == 0 {
		return ""
	}
	return base64.RawURLEncoding.EncodeToString(state)
}

// DecodePageToken reverses EncodePageToken. Malformed tokens are validation
// errors since they come straight from the query string.
func DecodePageToken(token string) ([]byte, error) {
	if token == "" {
		return nil, nil
	}
	data, err := base64.RawURLEncoding.DecodeString(token)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid page token", apperrors.ErrValidation)
	}
	return data, nil
}

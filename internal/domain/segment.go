package domain

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	apperrors "github.com/acme/crm-pro/pkg/errors"
)

// SegmentKind selects which clients a campaign targets.
type SegmentKind string

const (
	SegmentAll       SegmentKind = "all"
	SegmentConfirmed SegmentKind = "confirmed"
	SegmentDelivered SegmentKind = "delivered"
	SegmentCancelled SegmentKind = "cancelled"
	SegmentCustom    SegmentKind = "custom"
)

// Segment is a client filter. City, Status and MinPrice only apply to the
// custom kind; an empty criterion matches everything.
type Segment struct {
	Kind     SegmentKind      `json:"kind"`
	City     string           `json:"city,omitempty"`
	Status   OrderStatus      `json:"status,omitempty"`
	MinPrice *decimal.Decimal `json:"min_price,omitempty"`
}

// Validate checks the kind and custom criteria.
func (s Segment) Validate() error {
	switch s.Kind {
	case SegmentAll, SegmentConfirmed, SegmentDelivered, SegmentCancelled:
		return nil
	case SegmentCustom:
		if s.Status != "" && !s.Status.Valid() {
			return fmt.Errorf("%w: unknown status %q", apperrors.ErrValidation, s.Status)
		}
		return nil
	case "":
		return fmt.Errorf("%w: segment kind is required", apperrors.ErrValidation)
	default:
		return fmt.Errorf("%w: unknown segment %q", apperrors.ErrValidation, s.Kind)
	}
}

// Match reports whether the client belongs to the segment.
func (s Segment) Match(c Client) bool {
	switch s.Kind {
	case SegmentConfirmed:
		return c.Status == OrderStatusConfirmed
	case SegmentDelivered:
		return c.Status == OrderStatusDelivered
	case SegmentCancelled:
		return c.Status == OrderStatusCancelled
	case SegmentCustom:
		if s.City != "" && !strings.Contains(strings.ToLower(c.City), strings.ToLower(s.City)) {
			return false
		}
		if s.Status != "" && c.Status != s.Status {
			return false
		}
		if s.MinPrice != nil && c.Price.LessThan(*s.MinPrice) {
			return false
		}
		return true
	default:
		return true
	}
}

// Filter returns the clients in the segment, preserving order.
func (s Segment) Filter(clients []Client) []Client {
	out := make([]Client, 0, len(clients))
	for _, c := range clients {
		if s.Match(c) {
			out = append(out, c)
		}
	}
	return out
}

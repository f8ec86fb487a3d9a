package client

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/acme/crm-pro/internal/domain"
	"github.com/acme/crm-pro/internal/repository"
	apperrors "github.com/acme/crm-pro/pkg/errors"
	"github.com/acme/crm-pro/pkg/logger"
	"github.com/acme/crm-pro/pkg/phone"
)

// Service manages the client list.
type Service struct {
	clients     repository.ClientRepository
	countryCode string
	log         *logger.Logger
}

// NewService constructs a client service. countryCode is prepended to
// national phone numbers on write.
func NewService(clients repository.ClientRepository, countryCode string, log *logger.Logger) *Service {
	if countryCode == "" {
		countryCode = phone.DefaultCountryCode
	}
	if log == nil {
		log = logger.Nop()
	}
	return &Service{clients: clients, countryCode: countryCode, log: log}
}

// List returns the clients matching query, in sheet order.
func (s *Service) List(ctx context.Context, query string) ([]domain.Client, error) {
	clients, err := s.clients.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("client service: list: %w", err)
	}
	query = strings.TrimSpace(query)
	if query == "" {
		return clients, nil
	}
	out := make([]domain.Client, 0, len(clients))
	for _, c := range clients {
		if c.Matches(query) {
			out = append(out, c)
		}
	}
	return out, nil
}

// Create appends a client.
func (s *Service) Create(ctx context.Context, c domain.Client) (domain.Client, error) {
	if err := s.prepare(&c); err != nil {
		return domain.Client{}, err
	}
	created, err := s.clients.Create(ctx, c)
	if err != nil {
		return domain.Client{}, fmt.Errorf("client service: create: %w", err)
	}
	s.log.WithContext(ctx).Info("client service: created",
		zap.String("name", c.Name),
		zap.String("phone", logger.RedactPhone(c.Phone)),
	)
	return created, nil
}

// Update replaces the client at index.
func (s *Service) Update(ctx context.Context, index int, c domain.Client) (domain.Client, error) {
	if index < 0 {
		return domain.Client{}, fmt.Errorf("%w: client index must not be negative", apperrors.ErrValidation)
	}
	if err := s.prepare(&c); err != nil {
		return domain.Client{}, err
	}
	updated, err := s.clients.Update(ctx, index, c)
	if err != nil {
		return domain.Client{}, fmt.Errorf("client service: update %d: %w", index, err)
	}
	return updated, nil
}

// UpdateStatus changes only the order status of the client at index.
func (s *Service) UpdateStatus(ctx context.Context, index int, status string) (domain.Client, error) {
	parsed, ok := domain.ParseOrderStatus(status)
	if !ok {
		return domain.Client{}, fmt.Errorf("%w: unknown status %q", apperrors.ErrValidation, status)
	}

	clients, err := s.clients.List(ctx)
	if err != nil {
		return domain.Client{}, fmt.Errorf("client service: list: %w", err)
	}
	if index < 0 || index >= len(clients) {
		return domain.Client{}, fmt.Errorf("%w: client %d", apperrors.ErrNotFound, index)
	}

	c := clients[index]
	c.Status = parsed
	updated, err := s.clients.Update(ctx, index, c)
	if err != nil {
		return domain.Client{}, fmt.Errorf("client service: update status %d: %w", index, err)
	}
	return updated, nil
}

// Delete removes the client at index.
func (s *Service) Delete(ctx context.Context, index int) error {
	if index < 0 {
		return fmt.Errorf("%w: client %d", apperrors.ErrNotFound, index)
	}
	if err := s.clients.Delete(ctx, index); err != nil {
		return fmt.Errorf("client service: delete %d: %w", index, err)
	}
	return nil
}

func (s *Service) prepare(c *domain.Client) error {
	c.Name = strings.TrimSpace(c.Name)
	c.City = strings.TrimSpace(c.City)

	var missing []string
	if c.Name == "" {
		missing = append(missing, "name")
	}
	if strings.TrimSpace(c.Phone) == "" {
		missing = append(missing, "phone")
	}
	if c.City == "" {
		missing = append(missing, "city")
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: missing %s", apperrors.ErrValidation, strings.Join(missing, ", "))
	}
	if c.Qty < 0 {
		return fmt.Errorf("%w: quantity must not be negative", apperrors.ErrValidation)
	}
	if c.Price.IsNegative() {
		return fmt.Errorf("%w: price must not be negative", apperrors.ErrValidation)
	}

	if c.Status == "" {
		c.Status = domain.OrderStatusConfirmed
	} else {
		parsed, ok := domain.ParseOrderStatus(string(c.Status))
		if !ok {
			return fmt.Errorf("%w: unknown status %q", apperrors.ErrValidation, c.Status)
		}
		c.Status = parsed
	}

	c.Phone = phone.Normalize(c.Phone, s.countryCode)
	return nil
}

package team

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/acme/crm-pro/internal/domain"
	"github.com/acme/crm-pro/internal/repository"
)

// Member is a team table row.
type Member struct {
	Username       string                `json:"username"`
	Name           string                `json:"name"`
	Role           domain.Role           `json:"role"`
	CommissionType domain.CommissionType `json:"commission_type"`
	Commission     string                `json:"commission"`
}

// Overview is the team page: members plus the sum of fixed commissions.
type Overview struct {
	Members          []Member        `json:"members"`
	TotalCommissions decimal.Decimal `json:"total_commissions"`
}

// Service reads the team from the Users sheet.
type Service struct {
	users repository.UserRepository
}

// NewService constructs a team service.
func NewService(users repository.UserRepository) *Service {
	return &Service{users: users}
}

// Overview lists the members. Passwords never leave the repository layer.
func (s *Service) Overview(ctx context.Context) (*Overview, error) {
	users, err := s.users.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("team service: list users: %w", err)
	}

	out := &Overview{Members: make([]Member, 0, len(users)), TotalCommissions: decimal.Zero}
	for _, u := range users {
		out.Members = append(out.Members, Member{
			Username:       u.Username,
			Name:           u.Name,
			Role:           u.Role,
			CommissionType: u.Commission.Type,
			Commission:     u.Commission.Display(),
		})
		if u.Commission.Type == domain.CommissionFixed {
			out.TotalCommissions = out.TotalCommissions.Add(u.Commission.Value)
		}
	}
	return out, nil
}

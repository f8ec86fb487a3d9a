// Package auth signs team members in against the Users sheet and keeps
// their sessions in Redis.
package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	redis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/acme/crm-pro/internal/domain"
	"github.com/acme/crm-pro/internal/repository"
	apperrors "github.com/acme/crm-pro/pkg/errors"
	"github.com/acme/crm-pro/pkg/logger"
)

// Session is an authenticated user with an opaque bearer token.
type Session struct {
	Token     string      `json:"token"`
	User      domain.User `json:"user"`
	ExpiresAt time.Time   `json:"expires_at"`
}

// Service authenticates users.
type Service struct {
	users  repository.UserRepository
	client *redis.Client
	ttl    time.Duration
	log    *logger.Logger
	now    func() time.Time
}

// NewService constructs an auth service. Sessions expire ttl after login.
func NewService(users repository.UserRepository, client *redis.Client, ttl time.Duration, log *logger.Logger) *Service {
	if ttl <= 0 {
		ttl = 12 * time.Hour
	}
	if log == nil {
		log = logger.Nop()
	}
	return &Service{users: users, client: client, ttl: ttl, log: log, now: time.Now}
}

// Login matches username and password against the Users sheet. Empty
// passwords never match.
func (s *Service) Login(ctx context.Context, username, password string) (*Session, error) {
	if username == "" || password == "" {
		return nil, fmt.Errorf("%w: invalid username or password", apperrors.ErrUnauthorized)
	}

	users, err := s.users.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("auth: list users: %w", err)
	}

	var found *domain.User
	for i := range users {
		if users[i].Username == username && users[i].Password == password {
			found = &users[i]
			break
		}
	}
	if found == nil {
		s.log.WithContext(ctx).Info("auth: login rejected", zap.String("username", username))
		return nil, fmt.Errorf("%w: invalid username or password", apperrors.ErrUnauthorized)
	}

	session := &Session{
		Token:     uuid.NewString(),
		User:      found.Public(),
		ExpiresAt: s.now().Add(s.ttl).UTC(),
	}
	payload, err := json.Marshal(session.User)
	if err != nil {
		return nil, fmt.Errorf("auth: encode session: %w", err)
	}
	if err := s.client.Set(ctx, sessionKey(session.Token), payload, s.ttl).Err(); err != nil {
		return nil, fmt.Errorf("%w: auth: store session: %v", apperrors.ErrUnavailable, err)
	}
	return session, nil
}

// Authenticate resolves a bearer token to its user.
func (s *Service) Authenticate(ctx context.Context, token string) (*domain.User, error) {
	if token == "" {
		return nil, apperrors.ErrUnauthorized
	}
	payload, err := s.client.Get(ctx, sessionKey(token)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, fmt.Errorf("%w: session expired", apperrors.ErrUnauthorized)
		}
		return nil, fmt.Errorf("%w: auth: load session: %v", apperrors.ErrUnavailable, err)
	}
	var user domain.User
	if err := json.Unmarshal(payload, &user); err != nil {
		return nil, fmt.Errorf("auth: decode session: %w", err)
	}
	return &user, nil
}

// Logout drops the session. Unknown tokens are ignored.
func (s *Service) Logout(ctx context.Context, token string) error {
	if token == "" {
		return nil
	}
	if err := s.client.Del(ctx, sessionKey(token)).Err(); err != nil {
		return fmt.Errorf("auth: delete session: %w", err)
	}
	return nil
}

func sessionKey(token string) string {
	return "crm:session:" + token
}

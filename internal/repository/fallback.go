package repository

import (
	"context"

	"go.uber.org/zap"

	"github.com/acme/crm-pro/internal/domain"
	"github.com/acme/crm-pro/pkg/logger"
)

// WithFallback combines a remote primary store with a local secondary.
//
// Reads try the primary and fall back to the secondary on error. Writes go
// to the primary and are always mirrored into the secondary; a primary write
// failure is logged and the mirrored result is returned, so the local copy
// keeps serving while the remote is down.
func WithFallback(primary, secondary Store, log *logger.Logger) Store {
	return &fallbackStore{primary: primary, secondary: secondary, log: log}
}

type fallbackStore struct {
	primary   Store
	secondary Store
	log       *logger.Logger
}

func (s *fallbackStore) Clients() ClientRepository {
	return &fallbackClients{p: s.primary.Clients(), s: s.secondary.Clients(), log: s.log}
}

func (s *fallbackStore) Users() UserRepository {
	return &fallbackUsers{p: s.primary.Users(), s: s.secondary.Users(), log: s.log}
}

func (s *fallbackStore) Credentials() CredentialRepository {
	return &fallbackCredentials{p: s.primary.Credentials(), s: s.secondary.Credentials(), log: s.log}
}

type fallbackClients struct {
	p, s ClientRepository
	log  *logger.Logger
}

func (r *fallbackClients) List(ctx context.Context) ([]domain.Client, error) {
	clients, err := r.p.List(ctx)
	if err == nil {
		return clients, nil
	}
	r.log.WithContext(ctx).Warn("store: clients read fell back", zap.Error(err))
	return r.s.List(ctx)
}

func (r *fallbackClients) Create(ctx context.Context, client domain.Client) (domain.Client, error) {
	if _, err := r.p.Create(ctx, client); err != nil {
		r.log.WithContext(ctx).Error("store: create client on primary", zap.Error(err))
	}
	return r.s.Create(ctx, client)
}

func (r *fallbackClients) Update(ctx context.Context, index int, client domain.Client) (domain.Client, error) {
	if _, err := r.p.Update(ctx, index, client); err != nil {
		r.log.WithContext(ctx).Error("store: update client on primary", zap.Int("index", index), zap.Error(err))
	}
	return r.s.Update(ctx, index, client)
}

func (r *fallbackClients) Delete(ctx context.Context, index int) error {
	if err := r.p.Delete(ctx, index); err != nil {
		r.log.WithContext(ctx).Error("store: delete client on primary", zap.Int("index", index), zap.Error(err))
	}
	return r.s.Delete(ctx, index)
}

type fallbackUsers struct {
	p, s UserRepository
	log  *logger.Logger
}

func (r *fallbackUsers) List(ctx context.Context) ([]domain.User, error) {
	users, err := r.p.List(ctx)
	if err == nil {
		return users, nil
	}
	r.log.WithContext(ctx).Warn("store: users read fell back", zap.Error(err))
	return r.s.List(ctx)
}

type fallbackCredentials struct {
	p, s CredentialRepository
	log  *logger.Logger
}

func (r *fallbackCredentials) All(ctx context.Context) (domain.Credentials, error) {
	creds, err := r.p.All(ctx)
	if err == nil {
		return creds, nil
	}
	r.log.WithContext(ctx).Warn("store: credentials read fell back", zap.Error(err))
	return r.s.All(ctx)
}

func (r *fallbackCredentials) Save(ctx context.Context, key, value string) error {
	if err := r.p.Save(ctx, key, value); err != nil {
		r.log.WithContext(ctx).Error("store: save credential on primary", zap.String("key", key), zap.Error(err))
	}
	return r.s.Save(ctx, key, value)
}

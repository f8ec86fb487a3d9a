// Package memory is an in-process Store used when no spreadsheet is
// configured and as the mirror behind the remote one.
package memory

import (
	"context"
	_ "embed"
	"fmt"
	"sync"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"

	"github.com/acme/crm-pro/internal/domain"
	"github.com/acme/crm-pro/internal/repository"
	"github.com/acme/crm-pro/pkg/phone"
)

//go:embed seed.yaml
var defaultSeed []byte

type seedFile struct {
	Clients []seedClient `yaml:"clients"`
	Users   []seedUser   `yaml:"users"`
	Keys    []seedKey    `yaml:"keys"`
}

type seedClient struct {
	Name    string `yaml:"name"`
	Phone   string `yaml:"phone"`
	City    string `yaml:"city"`
	Address string `yaml:"address"`
	Items   string `yaml:"items"`
	Qty     int    `yaml:"qty"`
	Price   string `yaml:"price"`
	Status  string `yaml:"status"`
	Note    string `yaml:"note"`
	Date    string `yaml:"date"`
}

type seedUser struct {
	Username        string `yaml:"username"`
	Password        string `yaml:"password"`
	Role            string `yaml:"role"`
	Name            string `yaml:"name"`
	CommissionValue string `yaml:"commission_value"`
	CommissionType  string `yaml:"commission_type"`
}

type seedKey struct {
	Key   string `yaml:"key"`
	Value string `yaml:"value"`
}

// Store keeps clients, users and keys in memory. Callers always receive
// copies.
type Store struct {
	mu          sync.RWMutex
	clients     []domain.Client
	users       []domain.User
	keys        []seedKey
	countryCode string
}

var _ repository.Store = (*Store)(nil)

// New returns an empty store. Phone numbers are normalized with
// countryCode when read.
func New(countryCode string) *Store {
	if countryCode == "" {
		countryCode = phone.DefaultCountryCode
	}
	return &Store{countryCode: countryCode}
}

// NewSeeded returns a store loaded with the bundled demo dataset.
func NewSeeded(countryCode string) (*Store, error) {
	s := New(countryCode)
	if err := s.Load(defaultSeed); err != nil {
		return nil, err
	}
	return s, nil
}

// Load replaces the content of the store with a YAML document.
func (s *Store) Load(data []byte) error {
	var seed seedFile
	if err := yaml.Unmarshal(data, &seed); err != nil {
		return fmt.Errorf("memory store: decode seed: %w", err)
	}

	clients := make([]domain.Client, 0, len(seed.Clients))
	for i, c := range seed.Clients {
		price, err := parseDecimal(c.Price)
		if err != nil {
			return fmt.Errorf("memory store: client %d price: %w", i, err)
		}
		status, _ := domain.ParseOrderStatus(c.Status)
		clients = append(clients, domain.Client{
			Name: c.Name, Phone: c.Phone, City: c.City, Address: c.Address,
			Items: c.Items, Qty: c.Qty, Price: price, Status: status,
			Note: c.Note, Date: c.Date,
		})
	}

	users := make([]domain.User, 0, len(seed.Users))
	for i, u := range seed.Users {
		value, err := parseDecimal(u.CommissionValue)
		if err != nil {
			return fmt.Errorf("memory store: user %d commission: %w", i, err)
		}
		users = append(users, domain.User{
			Username: u.Username,
			Password: u.Password,
			Role:     domain.Role(u.Role),
			Name:     u.Name,
			Commission: domain.Commission{
				Value: value,
				Type:  domain.CommissionType(u.CommissionType),
				Set:   u.CommissionValue != "",
			},
		})
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.clients = clients
	s.users = users
	s.keys = append([]seedKey(nil), seed.Keys...)
	return nil
}

func (s *Store) Clients() repository.ClientRepository         { return clientRepo{s} }
func (s *Store) Users() repository.UserRepository             { return userRepo{s} }
func (s *Store) Credentials() repository.CredentialRepository { return credentialRepo{s} }

type clientRepo struct{ s *Store }

func (r clientRepo) List(ctx context.Context) ([]domain.Client, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	out := make([]domain.Client, len(r.s.clients))
	for i, c := range r.s.clients {
		c.Index = i
		c.Phone = phone.Normalize(c.Phone, r.s.countryCode)
		out[i] = c
	}
	return out, nil
}

func (r clientRepo) Create(ctx context.Context, client domain.Client) (domain.Client, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	client.Index = len(r.s.clients)
	r.s.clients = append(r.s.clients, client)
	return client, nil
}

func (r clientRepo) Update(ctx context.Context, index int, client domain.Client) (domain.Client, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if index < 0 || index >= len(r.s.clients) {
		return domain.Client{}, fmt.Errorf("%w: client %d", repository.ErrNotFound, index)
	}
	client.Index = index
	r.s.clients[index] = client
	return client, nil
}

func (r clientRepo) Delete(ctx context.Context, index int) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if index < 0 || index >= len(r.s.clients) {
		return fmt.Errorf("%w: client %d", repository.ErrNotFound, index)
	}
	r.s.clients = append(r.s.clients[:index], r.s.clients[index+1:]...)
	return nil
}

type userRepo struct{ s *Store }

func (r userRepo) List(ctx context.Context) ([]domain.User, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	out := make([]domain.User, len(r.s.users))
	copy(out, r.s.users)
	return out, nil
}

type credentialRepo struct{ s *Store }

func (r credentialRepo) All(ctx context.Context) (domain.Credentials, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	out := make(domain.Credentials, len(r.s.keys))
	for _, kv := range r.s.keys {
		out[kv.Key] = kv.Value
	}
	return out, nil
}

func (r credentialRepo) Save(ctx context.Context, key, value string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	for i := range r.s.keys {
		if r.s.keys[i].Key == key {
			r.s.keys[i].Value = value
			return nil
		}
	}
	r.s.keys = append(r.s.keys, seedKey{Key: key, Value: value})
	return nil
}

func parseDecimal(s string) (decimal.Decimal, error) {
	if s == "" {
		return decimal.Zero, nil
	}
	return decimal.NewFromString(s)
}

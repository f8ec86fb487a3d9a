package appscript

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/mitchellh/mapstructure"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/acme/crm-pro/internal/domain"
	"github.com/acme/crm-pro/internal/repository"
	"github.com/acme/crm-pro/pkg/phone"
)

// Sheet cells come back loosely typed: numbers for prices and phone ids,
// strings elsewhere, blanks as "". Rows are decoded with weak typing.
type clientRow struct {
	Name    string `mapstructure:"Client"`
	Phone   string `mapstructure:"Phone"`
	City    string `mapstructure:"City"`
	Address string `mapstructure:"Address"`
	Items   string `mapstructure:"Items"`
	Qty     string `mapstructure:"Qty"`
	Price   string `mapstructure:"Price"`
	Status  string `mapstructure:"Statuses"`
	Note    string `mapstructure:"Note"`
	Date    string `mapstructure:"Date"`
}

type userRow struct {
	Username        string `mapstructure:"Username"`
	Password        string `mapstructure:"Password"`
	Role            string `mapstructure:"Role"`
	Name            string `mapstructure:"Name"`
	CommissionValue string `mapstructure:"Commission Value"`
	CommissionType  string `mapstructure:"Commission Type"`
}

type keyRow struct {
	Key   string `mapstructure:"Key"`
	Value string `mapstructure:"Value"`
}

// Store exposes the three sheets as repositories.
type Store struct {
	client *Client
}

var _ repository.Store = (*Store)(nil)

// NewStore wraps a client.
func NewStore(client *Client) *Store {
	return &Store{client: client}
}

func (s *Store) Clients() repository.ClientRepository         { return &ClientRepository{c: s.client} }
func (s *Store) Users() repository.UserRepository             { return &UserRepository{c: s.client} }
func (s *Store) Credentials() repository.CredentialRepository { return &CredentialRepository{c: s.client} }

// ClientRepository implements repository.ClientRepository on the Clients sheet.
type ClientRepository struct {
	c *Client
}

// List fetches every client with phone numbers normalized.
func (r *ClientRepository) List(ctx context.Context) ([]domain.Client, error) {
	rows, err := r.c.fetch(ctx, SheetClients)
	if err != nil {
		return nil, err
	}
	rows = phone.NormalizeBatch(rows, "Phone", r.c.countryCode)

	clients := make([]domain.Client, 0, len(rows))
	for i, row := range rows {
		var rec clientRow
		if err := decodeRow(row, &rec); err != nil {
			return nil, fmt.Errorf("appscript: client row %d: %w", i, err)
		}
		price, err := parsePrice(rec.Price)
		if err != nil {
			r.c.log.Warn("appscript: unreadable client price, using 0",
				zap.Int("row", i), zap.String("price", rec.Price), zap.Error(err))
			price = decimal.Zero
		}
		qty, err := parseQty(rec.Qty)
		if err != nil {
			r.c.log.Warn("appscript: unreadable client qty, using 0",
				zap.Int("row", i), zap.String("qty", rec.Qty), zap.Error(err))
			qty = 0
		}
		status, _ := domain.ParseOrderStatus(rec.Status)
		clients = append(clients, domain.Client{
			Index:   i,
			Name:    rec.Name,
			Phone:   rec.Phone,
			City:    rec.City,
			Address: rec.Address,
			Items:   rec.Items,
			Qty:     qty,
			Price:   price,
			Status:  status,
			Note:    rec.Note,
			Date:    rec.Date,
		})
	}
	return clients, nil
}

// Create appends a row. The sheet does not report the new row position, so
// the returned client carries Index -1.
func (r *ClientRepository) Create(ctx context.Context, client domain.Client) (domain.Client, error) {
	if err := r.c.write(ctx, writeRequest{Action: "create", Sheet: SheetClients, Data: clientToRow(client)}); err != nil {
		return domain.Client{}, err
	}
	client.Index = -1
	return client, nil
}

// Update overwrites the row at index.
func (r *ClientRepository) Update(ctx context.Context, index int, client domain.Client) (domain.Client, error) {
	if err := r.c.write(ctx, writeRequest{Action: "update", Sheet: SheetClients, Index: &index, Data: clientToRow(client)}); err != nil {
		return domain.Client{}, err
	}
	client.Index = index
	return client, nil
}

// Delete removes the row at index.
func (r *ClientRepository) Delete(ctx context.Context, index int) error {
	return r.c.write(ctx, writeRequest{Action: "delete", Sheet: SheetClients, Index: &index})
}

// UserRepository implements repository.UserRepository on the Users sheet.
type UserRepository struct {
	c *Client
}

func (r *UserRepository) List(ctx context.Context) ([]domain.User, error) {
	rows, err := r.c.fetch(ctx, SheetUsers)
	if err != nil {
		return nil, err
	}

	users := make([]domain.User, 0, len(rows))
	for i, row := range rows {
		var rec userRow
		if err := decodeRow(row, &rec); err != nil {
			return nil, fmt.Errorf("appscript: user row %d: %w", i, err)
		}
		value, err := parsePrice(rec.CommissionValue)
		if err != nil {
			return nil, fmt.Errorf("appscript: user row %d commission: %w", i, err)
		}
		users = append(users, domain.User{
			Username: rec.Username,
			Password: rec.Password,
			Role:     domain.Role(rec.Role),
			Name:     rec.Name,
			Commission: domain.Commission{
				Value: value,
				Type:  domain.CommissionType(rec.CommissionType),
				Set:   rec.CommissionValue != "",
			},
		})
	}
	return users, nil
}

// CredentialRepository implements repository.CredentialRepository on the
// Keys sheet.
type CredentialRepository struct {
	c *Client
}

func (r *CredentialRepository) All(ctx context.Context) (domain.Credentials, error) {
	rows, err := r.c.fetch(ctx, SheetKeys)
	if err != nil {
		return nil, err
	}

	creds := make(domain.Credentials, len(rows))
	for i, row := range rows {
		var rec keyRow
		if err := decodeRow(row, &rec); err != nil {
			return nil, fmt.Errorf("appscript: key row %d: %w", i, err)
		}
		if rec.Key == "" {
			continue
		}
		creds[rec.Key] = rec.Value
	}
	return creds, nil
}

func (r *CredentialRepository) Save(ctx context.Context, key, value string) error {
	return r.c.write(ctx, writeRequest{Action: "updateKey", Sheet: SheetKeys, Key: key, Value: value})
}

func decodeRow(row phone.Row, out any) error {
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		WeaklyTypedInput: true,
		Result:           out,
	})
	if err != nil {
		return err
	}
	return dec.Decode(map[string]any(row))
}

func parsePrice(s string) (decimal.Decimal, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return decimal.Zero, nil
	}
	return decimal.NewFromString(s)
}

// Qty cells may hold a float such as "2.0" when the sheet formats them.
func parseQty(s string) (int, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, nil
	}
	if n, err := strconv.Atoi(s); err == nil {
		return n, nil
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return 0, err
	}
	return int(d.IntPart()), nil
}

func clientToRow(c domain.Client) map[string]any {
	return map[string]any{
		"Client":   c.Name,
		"Phone":    c.Phone,
		"City":     c.City,
		"Address":  c.Address,
		"Items":    c.Items,
		"Qty":      c.Qty,
		"Price":    c.Price.InexactFloat64(),
		"Statuses": string(c.Status),
		"Note":     c.Note,
		"Date":     c.Date,
	}
}

package team

import (
	"context"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/acme/crm-pro/internal/domain"
	"github.com/acme/crm-pro/internal/repository/memory"
)

func TestOverview(t *testing.T) {
	store, err := memory.NewSeeded("212")
	require.NoError(t, err)

	got, err := NewService(store.Users()).Overview(context.Background())
	require.NoError(t, err)

	want := []Member{
		{Username: "admin", Name: "Super Admin", Role: domain.RoleAdmin, CommissionType: domain.CommissionNone, Commission: "N/A"},
		{Username: "agent1", Name: "Amina Call Center 1", Role: domain.RoleAgent, CommissionType: domain.CommissionFixed, Commission: "10 fixed"},
		{Username: "agent2", Name: "Souad Call Center 1", Role: domain.RoleAgent, CommissionType: domain.CommissionAmount, Commission: "$5"},
		{Username: "manager1", Name: "Karim", Role: domain.RoleManager, CommissionType: domain.CommissionFixed, Commission: "10 fixed"},
		{Username: "manager2", Name: "Ashraf", Role: domain.RoleManager, CommissionType: domain.CommissionAmount, Commission: "$5"},
	}
	if diff := cmp.Diff(want, got.Members); diff != "" {
		t.Fatalf("members mismatch (-want +got):\n%s", diff)
	}
	assert.Equal(t, "20", got.TotalCommissions.String())
}

package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestUser_DeriveAdmin(t *testing.T) {
	tests := []struct {
		name    string
		isAdmin bool
		role    string
		want    bool
	}{
		{"role admin, flag absent", false, "admin", true},
		{"flag set, role user", true, "user", true},
		{"plain user", false, "user", false},
		{"no role at all", false, "", false},
		{"role is case sensitive", false, "Admin", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			u := User{IsAdmin: tt.isAdmin, Role: tt.role}
			u.DeriveAdmin()
			assert.Equal(t, tt.want, u.IsAdmin)
		})
	}
}

func TestUser_MergeKeepsToken(t *testing.T) {
	u := User{ID: "u1", Name: "A", Email: "a@b.com", Role: "user", Token: "tok123", Points: 10}
	u.Merge(User{Name: "Alice", Token: "ignored", Tier: "gold"})

	assert.Equal(t, "Alice", u.Name)
	assert.Equal(t, "a@b.com", u.Email)
	assert.Equal(t, "tok123", u.Token)
	assert.Equal(t, "gold", u.Tier)
	assert.Equal(t, 10, u.Points)
	assert.False(t, u.IsAdmin)
}

func TestItemsTotal(t *testing.T) {
	items := []OrderItem{{Qty: 2, Price: 10.10}, {Qty: 1, Price: 0.333}}
	assert.Equal(t, 20.53, ItemsTotal(items))
	assert.True(t, OrderShipped.Valid())
	assert.False(t, OrderStatus("lost").Valid())
}

// Package session keeps the identity of the person using a client between
// requests. A session is created at sign-in, looked up by an opaque token on
// every request, and cleared at sign-out.
package session

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/text/cases"
)

// Role is the marketplace role a user signs in with.
type Role string

const (
	RoleFarmer     Role = "Farmer/Supplier"
	RoleStoreOwner Role = "Store Owner"
	RoleConsumer   Role = "Consumer"
)

// Roles lists every accepted role in display order.
var Roles = []Role{RoleFarmer, RoleStoreOwner, RoleConsumer}

// ParseRole matches s case-insensitively against Roles and returns the
// canonical spelling.
func ParseRole(s string) (Role, bool) {
	fold := cases.Fold()
	want := fold.String(strings.TrimSpace(s))
	for _, r := range Roles {
		if fold.String(string(r)) == want {
			return r, true
		}
	}
	return "", false
}

// UserSession is the signed-in user's context.
type UserSession struct {
	ID          string    `json:"id"`
	DisplayName string    `json:"display_name"`
	Role        Role      `json:"role"`
	CreatedAt   time.Time `json:"created_at"`
}

// ErrNotFound is returned when a token is unknown or its session expired.
var ErrNotFound = errors.New("session not found")

// Store persists sessions by token.
type Store interface {
	Save(ctx context.Context, token string, s UserSession) error
	Load(ctx context.Context, token string) (UserSession, error)
	Clear(ctx context.Context, token string) error
}

// NewToken returns a fresh opaque session token.
func NewToken() string { return uuid.NewString() }

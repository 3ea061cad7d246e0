// Package services – SessionService
//
// SessionService signs users in and out and resolves session tokens. It
// replaces the client-side "current user" global with an explicit
// load/save/clear lifecycle over a session.Store.
package services

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/agrihub-davao/chat-backend/internal/session"
)

// SignIn is the data a client provides to start a session.
type SignIn struct {
	ID          string `json:"id"           validate:"required,max=160,excludes=_"  example:"farmerA@agrihub.ph"`
	DisplayName string `json:"display_name" validate:"required,max=120"  example:"Juan dela Cruz"`
	Role        string `json:"role"         validate:"required,marketrole" example:"Farmer/Supplier"`
}

// SessionUpdate changes the mutable fields of a session. Nil fields are kept.
type SessionUpdate struct {
	DisplayName *string `json:"display_name,omitempty" validate:"omitempty,min=1,max=120"`
	Role        *string `json:"role,omitempty"         validate:"omitempty,marketrole"`
}

// SessionService manages user sessions.
type SessionService struct {
	Store session.Store
	Now   func() time.Time

	validate *validator.Validate
}

// NewSessionService constructs a SessionService with the marketplace role
// validator registered.
func NewSessionService(store session.Store) *SessionService {
	v := validator.New(validator.WithRequiredStructEnabled())
	_ = v.RegisterValidation("marketrole", func(fl validator.FieldLevel) bool {
		_, ok := session.ParseRole(fl.Field().String())
		return ok
	})
	return &SessionService{Store: store, Now: time.Now, validate: v}
}

var spaceRunRE = regexp.MustCompile(`\s+`)

func normalizeName(s string) string {
	return spaceRunRE.ReplaceAllString(strings.TrimSpace(s), " ")
}

// check maps validator failures to service errors.
func (s *SessionService) check(v any) error {
	err := s.validate.Struct(v)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		for _, fe := range verrs {
			if fe.Tag() == "marketrole" {
				return ErrInvalidRole
			}
		}
		fe := verrs[0]
		return fmt.Errorf("%w: %s failed %s", ErrInvalidSession, strings.ToLower(fe.Field()), fe.Tag())
	}
	return fmt.Errorf("%w: %v", ErrInvalidSession, err)
}

// Login validates in, stores a new session and returns its token.
func (s *SessionService) Login(ctx context.Context, in SignIn) (string, session.UserSession, error) {
	in.ID = strings.TrimSpace(in.ID)
	in.DisplayName = normalizeName(in.DisplayName)
	if err := s.check(in); err != nil {
		return "", session.UserSession{}, err
	}
	role, _ := session.ParseRole(in.Role)

	now := time.Now
	if s.Now != nil {
		now = s.Now
	}
	us := session.UserSession{
		ID:          in.ID,
		DisplayName: in.DisplayName,
		Role:        role,
		CreatedAt:   now().UTC(),
	}
	token := session.NewToken()
	if err := s.Store.Save(ctx, token, us); err != nil {
		return "", session.UserSession{}, storeErr("save session", err)
	}
	return token, us, nil
}

// Current loads the session of token.
func (s *SessionService) Current(ctx context.Context, token string) (session.UserSession, error) {
	us, err := s.Store.Load(ctx, token)
	if errors.Is(err, session.ErrNotFound) {
		return session.UserSession{}, ErrSessionNotFound
	}
	if err != nil {
		return session.UserSession{}, storeErr("load session", err)
	}
	return us, nil
}

// Update applies upd to the session of token and stores the result.
func (s *SessionService) Update(ctx context.Context, token string, upd SessionUpdate) (session.UserSession, error) {
	if upd.DisplayName != nil {
		n := normalizeName(*upd.DisplayName)
		upd.DisplayName = &n
	}
	if err := s.check(upd); err != nil {
		return session.UserSession{}, err
	}
	us, err := s.Current(ctx, token)
	if err != nil {
		return session.UserSession{}, err
	}
	if upd.DisplayName != nil {
		us.DisplayName = *upd.DisplayName
	}
	if upd.Role != nil {
		us.Role, _ = session.ParseRole(*upd.Role)
	}
	if err := s.Store.Save(ctx, token, us); err != nil {
		return session.UserSession{}, storeErr("save session", err)
	}
	return us, nil
}

// Logout clears the session of token.
func (s *SessionService) Logout(ctx context.Context, token string) error {
	return storeErr("clear session", s.Store.Clear(ctx, token))
}

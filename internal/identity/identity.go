// Package identity registers users, checks credentials and maps opaque
// session tokens back to users.
package identity

import (
	"context"
	"net/mail"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/mohamedebada21/last-online-halal/internal/apperr"
	"github.com/mohamedebada21/last-online-halal/internal/domain"
	"github.com/mohamedebada21/last-online-halal/pkg/logging"
)

const (
	service           = "identity"
	MinPasswordLength = 6
)

type Users interface {
	CreateUser(ctx context.Context, u domain.User) error
	GetUser(ctx context.Context, id domain.UserID) (domain.User, error)
	GetUserByEmail(ctx context.Context, email string) (domain.User, error)
}

type Sessions interface {
	Put(ctx context.Context, token string, userID domain.UserID, ttl time.Duration) error
	// Get fails with ErrNotFound for unknown or expired tokens.
	Get(ctx context.Context, token string) (domain.UserID, error)
	Delete(ctx context.Context, token string) error
}

type Service struct {
	users      Users
	sessions   Sessions
	sessionTTL time.Duration

	// Cost is the bcrypt work factor for new credentials.
	Cost int

	now func() time.Time
}

func NewService(users Users, sessions Sessions, sessionTTL time.Duration) *Service {
	return &Service{
		users:      users,
		sessions:   sessions,
		sessionTTL: sessionTTL,
		Cost:       bcrypt.DefaultCost,
		now:        time.Now,
	}
}

type Registration struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type Session struct {
	Token string      `json:"token"`
	User  domain.User `json:"user"`
}

func (s *Service) Register(ctx context.Context, r Registration) (domain.User, error) {
	return s.create(ctx, r, false)
}

func (s *Service) create(ctx context.Context, r Registration, admin bool) (domain.User, error) {
	const op = "identity.Register"
	name := strings.TrimSpace(r.Name)
	email := normalizeEmail(r.Email)
	if name == "" {
		return domain.User{}, apperr.New(op, apperr.ErrInvalidInput).WithDetail("name is required")
	}
	if _, err := mail.ParseAddress(email); err != nil || email == "" {
		return domain.User{}, apperr.New(op, apperr.ErrInvalidInput).WithDetail("invalid email %q", r.Email)
	}
	if len(r.Password) < MinPasswordLength {
		return domain.User{}, apperr.New(op, apperr.ErrInvalidInput).WithDetail("password must be at least %d characters", MinPasswordLength)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(r.Password), s.Cost)
	if err != nil {
		return domain.User{}, apperr.New(op, apperr.ErrInvalidInput).WithDetail("%v", err)
	}
	u := domain.User{
		ID:           domain.UserID(uuid.NewString()),
		Name:         name,
		Email:        email,
		PasswordHash: hash,
		IsAdmin:      admin,
		CreatedAt:    s.now().UTC(),
	}
	if err := s.users.CreateUser(ctx, u); err != nil {
		return domain.User{}, err
	}
	logging.Log(logging.Fields{Service: service, UserID: string(u.ID), Step: "register", Message: "user registered"})
	return u, nil
}

// Login never reveals whether the email or the password was wrong.
func (s *Service) Login(ctx context.Context, email, password string) (Session, error) {
	const op = "identity.Login"
	u, err := s.users.GetUserByEmail(ctx, normalizeEmail(email))
	if apperr.Kind(err) == apperr.ErrNotFound {
		return Session{}, apperr.New(op, apperr.ErrAuthFailed)
	}
	if err != nil {
		return Session{}, err
	}
	if bcrypt.CompareHashAndPassword(u.PasswordHash, []byte(password)) != nil {
		return Session{}, apperr.New(op, apperr.ErrAuthFailed)
	}

	token := uuid.NewString()
	if err := s.sessions.Put(ctx, token, u.ID, s.sessionTTL); err != nil {
		return Session{}, err
	}
	return Session{Token: token, User: u}, nil
}

func (s *Service) Logout(ctx context.Context, token string) error {
	if token == "" {
		return nil
	}
	return s.sessions.Delete(ctx, token)
}

func (s *Service) Authenticate(ctx context.Context, token string) (domain.User, error) {
	const op = "identity.Authenticate"
	if token == "" {
		return domain.User{}, apperr.New(op, apperr.ErrAuthFailed)
	}
	id, err := s.sessions.Get(ctx, token)
	if apperr.Kind(err) == apperr.ErrNotFound {
		return domain.User{}, apperr.New(op, apperr.ErrAuthFailed)
	}
	if err != nil {
		return domain.User{}, err
	}
	u, err := s.users.GetUser(ctx, id)
	if apperr.Kind(err) == apperr.ErrNotFound {
		_ = s.sessions.Delete(ctx, token)
		return domain.User{}, apperr.New(op, apperr.ErrAuthFailed)
	}
	return u, err
}

// RequireAdmin fails with ErrUnauthorized for authenticated non-admins.
func RequireAdmin(u domain.User) error {
	if !u.IsAdmin {
		return apperr.New("identity.RequireAdmin", apperr.ErrUnauthorized).WithID(string(u.ID))
	}
	return nil
}

// EnsureAdmin creates the bootstrap administrator unless the email is
// already registered.
func (s *Service) EnsureAdmin(ctx context.Context, r Registration) (domain.User, error) {
	existing, err := s.users.GetUserByEmail(ctx, normalizeEmail(r.Email))
	if err == nil {
		if !existing.IsAdmin {
			logging.Log(logging.Fields{
				Service: service,
				UserID:  string(existing.ID),
				Step:    "ensure_admin",
				Message: "bootstrap email belongs to a non-admin user",
			})
		}
		return existing, nil
	}
	if apperr.Kind(err) != apperr.ErrNotFound {
		return domain.User{}, err
	}
	return s.create(ctx, r, true)
}

func normalizeEmail(v string) string {
	return strings.ToLower(strings.TrimSpace(v))
}

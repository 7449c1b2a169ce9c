package services

import (
	"context"
	"errors"
	"net/mail"
	"strings"
	"time"

	"github.com/taskhub/apiserver/config"
	"github.com/taskhub/apiserver/internal/auth"
	"github.com/taskhub/apiserver/internal/store"
	"github.com/taskhub/apiserver/types"
	"golang.org/x/crypto/bcrypt"
)

// UserRepository defines persistence operations for users.
type UserRepository interface {
	GetByID(ctx context.Context, id int) (types.User, error)
	GetByEmail(ctx context.Context, email string) (types.User, error)
	Create(ctx context.Context, user types.User) (types.User, error)
	Update(ctx context.Context, user types.User) (types.User, error)
	DeleteWithTasks(ctx context.Context, id int) error
}

// SessionRepository defines the registry of live tokens.
type SessionRepository interface {
	Add(ctx context.Context, userID int, token string) error
	Revoke(ctx context.Context, userID int, token string) error
	RevokeAll(ctx context.Context, userID int) error
	Live(ctx context.Context, userID int, token string) (bool, error)
}

// Notifier queues best-effort email notifications. Implementations
// must never fail the calling operation.
type Notifier interface {
	Welcome(ctx context.Context, user types.User)
	Cancellation(ctx context.Context, user types.User)
}

// RegisterInput is the validated-on-entry payload for registration.
type RegisterInput struct {
	Name     string
	Email    string
	Age      int
	Password string
}

// ProfileUpdate carries the mutable profile fields. Nil means the field
// is untouched; in particular a nil Password leaves the stored hash
// exactly as it is, so an already-hashed value is never re-hashed.
type ProfileUpdate struct {
	Name     *string
	Email    *string
	Age      *int
	Password *string
}

// UserService encapsulates account use-cases: registration, credential
// validation, session lifecycle, profile mutation, and deletion.
type UserService struct {
	users    UserRepository
	sessions SessionRepository
	notifier Notifier
	secret   []byte
	tokenTTL time.Duration
}

func NewUserService(users UserRepository, sessions SessionRepository, notifier Notifier, cfg config.JWTConfig) *UserService {
	return &UserService{
		users:    users,
		sessions: sessions,
		notifier: notifier,
		secret:   []byte(cfg.Secret),
		tokenTTL: cfg.TokenTTL,
	}
}

// Register validates the input, stores the new account with a hashed
// password, opens the first session, and queues the welcome email.
func (s *UserService) Register(ctx context.Context, in RegisterInput) (types.User, string, error) {
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return types.User{}, "", &ValidationError{Field: "name", Reason: "is required"}
	}
	email, err := normalizeEmail(in.Email)
	if err != nil {
		return types.User{}, "", err
	}
	if in.Age < 0 {
		return types.User{}, "", &ValidationError{Field: "age", Reason: "must not be negative"}
	}
	hash, err := hashPassword(in.Password)
	if err != nil {
		return types.User{}, "", err
	}

	user, err := s.users.Create(ctx, types.User{
		Name:         name,
		Email:        email,
		Age:          in.Age,
		PasswordHash: hash,
	})
	if err != nil {
		return types.User{}, "", err
	}

	token, err := s.openSession(ctx, user.ID)
	if err != nil {
		return types.User{}, "", err
	}

	s.notifier.Welcome(ctx, user)
	return user, token, nil
}

// Login validates credentials and opens a new session. An unknown email
// and a wrong password both return ErrInvalidCredentials.
func (s *UserService) Login(ctx context.Context, email, password string) (types.User, string, error) {
	normalized, err := normalizeEmail(email)
	if err != nil {
		return types.User{}, "", ErrInvalidCredentials
	}

	user, err := s.users.GetByEmail(ctx, normalized)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return types.User{}, "", ErrInvalidCredentials
		}
		return types.User{}, "", err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return types.User{}, "", ErrInvalidCredentials
	}

	token, err := s.openSession(ctx, user.ID)
	if err != nil {
		return types.User{}, "", err
	}
	return user, token, nil
}

// Authenticate resolves a raw bearer token to a live user+session pair.
// A token is accepted only if it verifies cryptographically AND is
// still present in the owner's session registry; every failure mode
// collapses to ErrInvalidToken.
func (s *UserService) Authenticate(ctx context.Context, rawToken string) (types.User, string, error) {
	userID, err := auth.Verify(rawToken, s.secret)
	if err != nil {
		return types.User{}, "", ErrInvalidToken
	}

	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return types.User{}, "", ErrInvalidToken
		}
		return types.User{}, "", err
	}

	live, err := s.sessions.Live(ctx, user.ID, rawToken)
	if err != nil {
		return types.User{}, "", err
	}
	if !live {
		return types.User{}, "", ErrInvalidToken
	}

	return user, rawToken, nil
}

// Logout revokes the presented token. The token stays cryptographically
// valid but the gate will reject it from now on.
func (s *UserService) Logout(ctx context.Context, userID int, token string) error {
	return s.sessions.Revoke(ctx, userID, token)
}

// LogoutAll revokes every session the user holds.
func (s *UserService) LogoutAll(ctx context.Context, userID int) error {
	return s.sessions.RevokeAll(ctx, userID)
}

// Update applies the provided profile fields and persists. The password
// hash is recomputed only when a new password is supplied.
func (s *UserService) Update(ctx context.Context, user types.User, update ProfileUpdate) (types.User, error) {
	if update.Name != nil {
		name := strings.TrimSpace(*update.Name)
		if name == "" {
			return types.User{}, &ValidationError{Field: "name", Reason: "is required"}
		}
		user.Name = name
	}
	if update.Email != nil {
		email, err := normalizeEmail(*update.Email)
		if err != nil {
			return types.User{}, err
		}
		user.Email = email
	}
	if update.Age != nil {
		if *update.Age < 0 {
			return types.User{}, &ValidationError{Field: "age", Reason: "must not be negative"}
		}
		user.Age = *update.Age
	}
	if update.Password != nil {
		hash, err := hashPassword(*update.Password)
		if err != nil {
			return types.User{}, err
		}
		user.PasswordHash = hash
	}

	return s.users.Update(ctx, user)
}

// Delete removes the account, all owned tasks, and all sessions as one
// unit, then queues the cancellation email.
func (s *UserService) Delete(ctx context.Context, user types.User) error {
	if err := s.users.DeleteWithTasks(ctx, user.ID); err != nil {
		return err
	}
	s.notifier.Cancellation(ctx, user)
	return nil
}

// GetByID loads a user by id.
func (s *UserService) GetByID(ctx context.Context, id int) (types.User, error) {
	return s.users.GetByID(ctx, id)
}

func (s *UserService) openSession(ctx context.Context, userID int) (string, error) {
	token, err := auth.Issue(userID, s.secret, s.tokenTTL)
	if err != nil {
		return "", err
	}
	if err := s.sessions.Add(ctx, userID, token); err != nil {
		return "", err
	}
	return token, nil
}

func normalizeEmail(email string) (string, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" {
		return "", &ValidationError{Field: "email", Reason: "is required"}
	}
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return "", &ValidationError{Field: "email", Reason: "is invalid"}
	}
	return email, nil
}

func hashPassword(password string) (string, error) {
	if len(password) < 6 {
		return "", &ValidationError{Field: "password", Reason: "is too short"}
	}
	if strings.Contains(strings.ToLower(password), "password") {
		return "", &ValidationError{Field: "password", Reason: `must not contain the word "password"`}
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

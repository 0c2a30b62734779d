package auth

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"net/url"
	"strings"
	"time"

	"github.com/abduss/filestore/internal/config"
	"github.com/abduss/filestore/internal/session"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

const (
	minPasswordLength = 8
	maxPasswordLength = 72 // bcrypt limit
	activationPurpose = "activate"
	tokenIssuer       = "filestore"
)

// userStore abstracts the persistence layer.
type userStore interface {
	CreateUser(ctx context.Context, email, passwordHash string) (User, error)
	FindUserByEmail(ctx context.Context, email string) (User, error)
	FindUserByID(ctx context.Context, id uuid.UUID) (User, error)
}

// Service encapsulates authentication use cases.
type Service struct {
	users      userStore
	sessions   session.Store
	pending    *PendingStore
	mailer     Mailer
	cfg        config.AuthConfig
	sessionTTL time.Duration
	log        *zap.Logger
	nowFunc    func() time.Time
	parser     *jwt.Parser
}

// NewService creates a Service with dependencies.
func NewService(users userStore, sessions session.Store, mailer Mailer, cfg config.AuthConfig, sessionTTL time.Duration, log *zap.Logger) *Service {
	if log == nil {
		log = zap.NewNop()
	}
	s := &Service{
		users:      users,
		sessions:   sessions,
		pending:    NewPendingStore(),
		mailer:     mailer,
		cfg:        cfg,
		sessionTTL: sessionTTL,
		log:        log,
		nowFunc:    time.Now,
	}
	s.parser = jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Name}),
		jwt.WithIssuer(tokenIssuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(func() time.Time { return s.nowFunc() }),
	)
	s.pending.now = func() time.Time { return s.nowFunc() }
	return s
}

// RegisterInput carries data for user registration.
type RegisterInput struct {
	Email    string
	Password string
}

// LoginInput carries login credentials.
type LoginInput struct {
	Email    string
	Password string
}

// LoginResult is returned by a successful login.
type LoginResult struct {
	User    User
	Session session.Session
}

// Register parks a new account as pending and mails its activation link.
func (s *Service) Register(ctx context.Context, input RegisterInput) error {
	email, err := validateCredentials(input.Email, input.Password)
	if err != nil {
		return err
	}

	if s.pending.Has(email) {
		return ErrEmailAlreadyExists
	}
	if _, err := s.users.FindUserByEmail(ctx, email); err == nil {
		return ErrEmailAlreadyExists
	} else if !errors.Is(err, ErrUserNotFound) {
		return fmt.Errorf("find user: %w", err)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(input.Password), s.cfg.BcryptCost)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}

	now := s.nowFunc()
	expiresAt := now.Add(s.cfg.ActivationTTL)
	token, err := s.activationToken(email, now, expiresAt)
	if err != nil {
		return fmt.Errorf("sign activation token: %w", err)
	}

	entry := Pending{Email: email, PasswordHash: string(hash), ExpiresAt: expiresAt}
	if !s.pending.PutIfAbsent(entry) {
		return ErrEmailAlreadyExists
	}

	link := s.cfg.PublicBaseURL + "/activate?token=" + url.QueryEscape(token)
	if err := s.mailer.SendActivation(ctx, email, link); err != nil {
		s.pending.Discard(entry)
		return fmt.Errorf("send activation: %w", err)
	}
	return nil
}

// Activate turns the pending registration named by token into an active user.
func (s *Service) Activate(ctx context.Context, token string) (User, error) {
	email, err := s.parseActivationToken(token)
	if err != nil {
		return User{}, err
	}

	pending, ok := s.pending.Take(email)
	if !ok {
		return User{}, ErrInvalidActivationToken
	}

	user, err := s.users.CreateUser(ctx, pending.Email, pending.PasswordHash)
	if err != nil {
		if errors.Is(err, ErrEmailAlreadyExists) {
			return User{}, ErrEmailAlreadyExists
		}
		// keep the registration so the link can be retried
		s.pending.PutIfAbsent(pending)
		return User{}, fmt.Errorf("create user: %w", err)
	}

	s.log.Info("user activated", zap.String("user_id", user.ID.String()))
	return user.SafeUser(), nil
}

// Login authenticates credentials and opens a session.
func (s *Service) Login(ctx context.Context, input LoginInput) (LoginResult, error) {
	email, err := validateCredentials(input.Email, input.Password)
	if err != nil {
		return LoginResult{}, ErrInvalidCredentials
	}

	if s.pending.Has(email) {
		return LoginResult{}, ErrActivationPending
	}

	user, err := s.users.FindUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return LoginResult{}, ErrInvalidCredentials
		}
		return LoginResult{}, fmt.Errorf("find user: %w", err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(input.Password)); err != nil {
		return LoginResult{}, ErrInvalidCredentials
	}
	if !user.IsActive {
		return LoginResult{}, ErrInactiveUser
	}

	id, err := session.NewID()
	if err != nil {
		return LoginResult{}, err
	}
	now := s.nowFunc()
	sess := session.Session{
		ID:        id,
		OwnerID:   user.ID,
		Email:     user.Email,
		CreatedAt: now,
		ExpiresAt: now.Add(s.sessionTTL),
	}
	if err := s.sessions.Set(ctx, sess); err != nil {
		return LoginResult{}, fmt.Errorf("store session: %w", err)
	}

	return LoginResult{User: user.SafeUser(), Session: sess}, nil
}

// Logout destroys the session. Unknown ids are not an error.
func (s *Service) Logout(ctx context.Context, sessionID string) error {
	if sessionID == "" {
		return nil
	}
	if err := s.sessions.Destroy(ctx, sessionID); err != nil {
		return fmt.Errorf("destroy session: %w", err)
	}
	return nil
}

// Resolve maps a session id to the active user behind it. Unknown, expired and
// deactivated sessions all yield ErrUnauthorized.
func (s *Service) Resolve(ctx context.Context, sessionID string) (Principal, error) {
	if sessionID == "" {
		return Principal{}, ErrUnauthorized
	}

	sess, ok, err := s.sessions.Get(ctx, sessionID)
	if err != nil {
		return Principal{}, fmt.Errorf("get session: %w", err)
	}
	if !ok {
		return Principal{}, ErrUnauthorized
	}

	user, err := s.users.FindUserByID(ctx, sess.OwnerID)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return Principal{}, ErrUnauthorized
		}
		return Principal{}, fmt.Errorf("find user: %w", err)
	}
	if !user.IsActive {
		return Principal{}, ErrUnauthorized
	}

	return Principal{SessionID: sess.ID, UserID: user.ID, Email: user.Email}, nil
}

// SweepPending drops expired registrations and reports how many went away.
func (s *Service) SweepPending(context.Context) (int, error) {
	return s.pending.Sweep(), nil
}

func (s *Service) activationToken(email string, now, expiresAt time.Time) (string, error) {
	claims := jwt.MapClaims{
		"sub":     email,
		"iss":     tokenIssuer,
		"iat":     now.Unix(),
		"exp":     expiresAt.Unix(),
		"purpose": activationPurpose,
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(s.cfg.ActivationSecret))
}

func (s *Service) parseActivationToken(token string) (string, error) {
	if strings.TrimSpace(token) == "" {
		return "", ErrInvalidActivationToken
	}

	parsed, err := s.parser.Parse(token, func(*jwt.Token) (interface{}, error) {
		return []byte(s.cfg.ActivationSecret), nil
	})
	if err != nil || !parsed.Valid {
		return "", ErrInvalidActivationToken
	}

	claims, ok := parsed.Claims.(jwt.MapClaims)
	if !ok {
		return "", ErrInvalidActivationToken
	}
	if purpose, _ := claims["purpose"].(string); purpose != activationPurpose {
		return "", ErrInvalidActivationToken
	}
	email, err := claims.GetSubject()
	if err != nil || email == "" {
		return "", ErrInvalidActivationToken
	}
	return email, nil
}

func validateCredentials(email, password string) (string, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" || strings.TrimSpace(password) == "" {
		return "", ErrInvalidCredentials
	}
	if _, err := mail.ParseAddress(email); err != nil {
		return "", ErrInvalidCredentials
	}
	if len(password) < minPasswordLength || len(password) > maxPasswordLength {
		return "", ErrInvalidCredentials
	}
	return email, nil
}

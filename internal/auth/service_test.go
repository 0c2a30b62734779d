package auth

import (
	"context"
	"errors"
	"net/url"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/abduss/filestore/internal/config"
	"github.com/abduss/filestore/internal/session"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

func testAuthConfig() config.AuthConfig {
	return config.AuthConfig{
		ActivationSecret: "activation-secret",
		ActivationTTL:    24 * time.Hour,
		PublicBaseURL:    "http://files.test",
		LoginPath:        "/",
		BcryptCost:       4,
	}
}

func newTestService(t *testing.T) (*Service, *memoryStore, *captureMailer, *session.MemoryStore) {
	t.Helper()
	users := newMemoryStore()
	mailer := &captureMailer{}
	sessions := session.NewMemoryStore()
	return NewService(users, sessions, mailer, testAuthConfig(), time.Hour, nil), users, mailer, sessions
}

// registerAndActivate walks a user through the full sign-up flow.
func registerAndActivate(t *testing.T, service *Service, mailer *captureMailer, email, password string) User {
	t.Helper()
	if err := service.Register(context.Background(), RegisterInput{Email: email, Password: password}); err != nil {
		t.Fatalf("register returned error: %v", err)
	}
	user, err := service.Activate(context.Background(), mailer.token(t))
	if err != nil {
		t.Fatalf("activate returned error: %v", err)
	}
	return user
}

func TestRegisterSendsActivationLink(t *testing.T) {
	service, users, mailer, _ := newTestService(t)

	err := service.Register(context.Background(), RegisterInput{
		Email:    "User@Example.com",
		Password: "StrongPass1!",
	})
	if err != nil {
		t.Fatalf("register returned error: %v", err)
	}

	if len(users.users) != 0 {
		t.Fatalf("expected no user before activation; got %d", len(users.users))
	}
	if mailer.email != "user@example.com" {
		t.Fatalf("expected mail to normalized address, got %q", mailer.email)
	}
	if !strings.HasPrefix(mailer.link, "http://files.test/activate?token=") {
		t.Fatalf("unexpected activation link %q", mailer.link)
	}
}

func TestRegisterDuplicateEmail(t *testing.T) {
	service, _, mailer, _ := newTestService(t)

	if err := service.Register(context.Background(), RegisterInput{Email: "user@example.com", Password: "StrongPass1!"}); err != nil {
		t.Fatalf("initial registration returned error: %v", err)
	}

	err := service.Register(context.Background(), RegisterInput{Email: "user@example.com", Password: "AnotherPass2!"})
	if !errors.Is(err, ErrEmailAlreadyExists) {
		t.Fatalf("expected ErrEmailAlreadyExists for pending email, got %v", err)
	}

	if _, err := service.Activate(context.Background(), mailer.token(t)); err != nil {
		t.Fatalf("activate returned error: %v", err)
	}

	err = service.Register(context.Background(), RegisterInput{Email: "user@example.com", Password: "AnotherPass2!"})
	if !errors.Is(err, ErrEmailAlreadyExists) {
		t.Fatalf("expected ErrEmailAlreadyExists for active email, got %v", err)
	}
}

func TestRegisterConcurrentSameEmail(t *testing.T) {
	mailer := &countingMailer{}
	service := NewService(newMemoryStore(), session.NewMemoryStore(), mailer, testAuthConfig(), time.Hour, nil)

	const attempts = 8
	errs := make(chan error, attempts)
	var wg sync.WaitGroup
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs <- service.Register(context.Background(), RegisterInput{Email: "race@example.com", Password: "StrongPass1!"})
		}()
	}
	wg.Wait()
	close(errs)

	succeeded := 0
	for err := range errs {
		switch {
		case err == nil:
			succeeded++
		case !errors.Is(err, ErrEmailAlreadyExists):
			t.Fatalf("unexpected register error: %v", err)
		}
	}
	if succeeded != 1 {
		t.Fatalf("expected exactly one registration to win, got %d", succeeded)
	}
	if sent := mailer.sent.Load(); sent != 1 {
		t.Fatalf("expected one activation mail, got %d", sent)
	}
}

func TestRegisterMailFailureReleasesEmail(t *testing.T) {
	mailer := &countingMailer{err: errors.New("smtp down")}
	service := NewService(newMemoryStore(), session.NewMemoryStore(), mailer, testAuthConfig(), time.Hour, nil)

	err := service.Register(context.Background(), RegisterInput{Email: "user@example.com", Password: "StrongPass1!"})
	if err == nil || errors.Is(err, ErrEmailAlreadyExists) {
		t.Fatalf("expected mail error, got %v", err)
	}
	if service.pending.Has("user@example.com") {
		t.Fatalf("failed registration left a pending entry")
	}

	mailer.err = nil
	if err := service.Register(context.Background(), RegisterInput{Email: "user@example.com", Password: "StrongPass1!"}); err != nil {
		t.Fatalf("retry after mail failure returned error: %v", err)
	}
}

func TestRegisterRejectsWeakInput(t *testing.T) {
	service, _, _, _ := newTestService(t)

	cases := []RegisterInput{
		{Email: "", Password: "StrongPass1!"},
		{Email: "not-an-email", Password: "StrongPass1!"},
		{Email: "user@example.com", Password: "short"},
	}
	for _, in := range cases {
		if err := service.Register(context.Background(), in); !errors.Is(err, ErrInvalidCredentials) {
			t.Fatalf("expected ErrInvalidCredentials for %+v, got %v", in, err)
		}
	}
}

func TestActivateIsSingleUse(t *testing.T) {
	service, users, mailer, _ := newTestService(t)

	user := registerAndActivate(t, service, mailer, "user@example.com", "StrongPass1!")
	if user.PasswordHash != "" {
		t.Fatalf("expected password hash to be stripped from result")
	}
	if len(users.users) != 1 {
		t.Fatalf("expected one user stored; got %d", len(users.users))
	}

	if _, err := service.Activate(context.Background(), mailer.token(t)); !errors.Is(err, ErrInvalidActivationToken) {
		t.Fatalf("expected reused token to be rejected, got %v", err)
	}
}

func TestActivateRejectsExpiredAndForgedTokens(t *testing.T) {
	service, _, mailer, _ := newTestService(t)
	now := time.Now()
	service.nowFunc = func() time.Time { return now }

	if err := service.Register(context.Background(), RegisterInput{Email: "user@example.com", Password: "StrongPass1!"}); err != nil {
		t.Fatalf("register returned error: %v", err)
	}
	token := mailer.token(t)

	if _, err := service.Activate(context.Background(), token+"x"); !errors.Is(err, ErrInvalidActivationToken) {
		t.Fatalf("expected tampered token to be rejected, got %v", err)
	}

	now = now.Add(25 * time.Hour)
	if _, err := service.Activate(context.Background(), token); !errors.Is(err, ErrInvalidActivationToken) {
		t.Fatalf("expected expired token to be rejected, got %v", err)
	}
}

func TestLogin(t *testing.T) {
	service, _, mailer, sessions := newTestService(t)
	registerAndActivate(t, service, mailer, "user@example.com", "StrongPass1!")

	result, err := service.Login(context.Background(), LoginInput{
		Email:    "user@example.com",
		Password: "StrongPass1!",
	})
	if err != nil {
		t.Fatalf("login returned error: %v", err)
	}

	if result.Session.ID == "" {
		t.Fatalf("expected session id")
	}
	if _, ok, _ := sessions.Get(context.Background(), result.Session.ID); !ok {
		t.Fatalf("expected session to be stored")
	}
	if result.User.PasswordHash != "" {
		t.Fatalf("expected password hash to be stripped")
	}
}

func TestLoginInvalidPassword(t *testing.T) {
	service, _, mailer, _ := newTestService(t)
	registerAndActivate(t, service, mailer, "user@example.com", "StrongPass1!")

	_, err := service.Login(context.Background(), LoginInput{
		Email:    "user@example.com",
		Password: "WrongPass1",
	})
	if !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials, got %v", err)
	}
}

func TestLoginRejectsPendingAndInactiveUsers(t *testing.T) {
	service, users, _, _ := newTestService(t)

	if err := service.Register(context.Background(), RegisterInput{Email: "pending@example.com", Password: "StrongPass1!"}); err != nil {
		t.Fatalf("register returned error: %v", err)
	}
	_, err := service.Login(context.Background(), LoginInput{Email: "pending@example.com", Password: "StrongPass1!"})
	if !errors.Is(err, ErrActivationPending) {
		t.Fatalf("expected ErrActivationPending, got %v", err)
	}

	users.add(t, "off@example.com", "StrongPass1!", false)
	_, err = service.Login(context.Background(), LoginInput{Email: "off@example.com", Password: "StrongPass1!"})
	if !errors.Is(err, ErrInactiveUser) {
		t.Fatalf("expected ErrInactiveUser, got %v", err)
	}
}

func TestResolveTreatsExpiredDestroyedAndUnknownAlike(t *testing.T) {
	service, users, mailer, _ := newTestService(t)
	registerAndActivate(t, service, mailer, "user@example.com", "StrongPass1!")

	result, err := service.Login(context.Background(), LoginInput{Email: "user@example.com", Password: "StrongPass1!"})
	if err != nil {
		t.Fatalf("login returned error: %v", err)
	}

	principal, err := service.Resolve(context.Background(), result.Session.ID)
	if err != nil {
		t.Fatalf("resolve returned error: %v", err)
	}
	if principal.Email != "user@example.com" {
		t.Fatalf("unexpected principal %+v", principal)
	}

	if _, err := service.Resolve(context.Background(), "never-issued"); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized for unknown id, got %v", err)
	}

	users.setActive(principal.UserID, false)
	if _, err := service.Resolve(context.Background(), result.Session.ID); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized for deactivated user, got %v", err)
	}
	users.setActive(principal.UserID, true)

	if err := service.Logout(context.Background(), result.Session.ID); err != nil {
		t.Fatalf("logout returned error: %v", err)
	}
	if _, err := service.Resolve(context.Background(), result.Session.ID); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized after logout, got %v", err)
	}
}

func TestResolveExpiredSession(t *testing.T) {
	users := newMemoryStore()
	sessions := session.NewMemoryStore()
	service := NewService(users, sessions, &captureMailer{}, testAuthConfig(), time.Hour, nil)
	user := users.add(t, "user@example.com", "StrongPass1!", true)

	_ = sessions.Set(context.Background(), session.Session{
		ID:        "stale",
		OwnerID:   user.ID,
		Email:     user.Email,
		ExpiresAt: time.Now().Add(-time.Minute),
	})

	if _, err := service.Resolve(context.Background(), "stale"); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized for expired session, got %v", err)
	}
}

// memoryStore implements userStore for tests.
type memoryStore struct {
	mu    sync.Mutex
	users map[string]User
}

func newMemoryStore() *memoryStore {
	return &memoryStore{users: make(map[string]User)}
}

func (m *memoryStore) CreateUser(_ context.Context, email, passwordHash string) (User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.users[email]; ok {
		return User{}, ErrEmailAlreadyExists
	}
	user := User{
		ID:           uuid.New(),
		Email:        email,
		PasswordHash: passwordHash,
		IsActive:     true,
		CreatedAt:    time.Now(),
		UpdatedAt:    time.Now(),
	}
	m.users[email] = user
	return user, nil
}

func (m *memoryStore) FindUserByEmail(_ context.Context, email string) (User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	user, ok := m.users[email]
	if !ok {
		return User{}, ErrUserNotFound
	}
	return user, nil
}

func (m *memoryStore) FindUserByID(_ context.Context, id uuid.UUID) (User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, user := range m.users {
		if user.ID == id {
			return user, nil
		}
	}
	return User{}, ErrUserNotFound
}

func (m *memoryStore) add(t *testing.T, email, password string, active bool) User {
	t.Helper()
	hash, err := hashForTest(password)
	if err != nil {
		t.Fatalf("hash password: %v", err)
	}
	user, _ := m.CreateUser(context.Background(), email, hash)
	m.setActive(user.ID, active)
	user.IsActive = active
	return user
}

func (m *memoryStore) setActive(id uuid.UUID, active bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for email, user := range m.users {
		if user.ID == id {
			user.IsActive = active
			m.users[email] = user
		}
	}
}

// captureMailer records the last activation link instead of sending it.
type captureMailer struct {
	email string
	link  string
}

func (m *captureMailer) SendActivation(_ context.Context, email, link string) error {
	m.email = email
	m.link = link
	return nil
}

func (m *captureMailer) token(t *testing.T) string {
	t.Helper()
	parsed, err := url.Parse(m.link)
	if err != nil {
		t.Fatalf("parse activation link: %v", err)
	}
	return parsed.Query().Get("token")
}

type countingMailer struct {
	sent atomic.Int32
	err  error
}

func (m *countingMailer) SendActivation(context.Context, string, string) error {
	if m.err != nil {
		return m.err
	}
	m.sent.Add(1)
	return nil
}

func hashForTest(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	return string(hash), err
}

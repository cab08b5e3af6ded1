package services

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/ryom080502-dev/audioGIJI6/internal/config"
	"github.com/ryom080502-dev/audioGIJI6/internal/domain"
	"github.com/ryom080502-dev/audioGIJI6/internal/logger"
)

type memUserStore struct {
	users map[string]domain.User
}

func newMemUserStore() *memUserStore {
	return &memUserStore{users: make(map[string]domain.User)}
}

func (m *memUserStore) GetUser(username string) (domain.User, error) {
	user, ok := m.users[username]
	if !ok {
		return domain.User{}, errors.New("user not found")
	}
	return user, nil
}

func (m *memUserStore) UpsertUser(user domain.User) error {
	m.users[user.Username] = user
	return nil
}

func newTestAuthService(t *testing.T, ttl time.Duration) *AuthService {
	t.Helper()

	svc := NewAuthService(config.Config{
		JWTSecret: "test-secret",
		TokenTTL:  ttl,
	}, newMemUserStore(), logger.New())

	if err := svc.EnsureDemoUsers(); err != nil {
		t.Fatalf("EnsureDemoUsers: %v", err)
	}
	return svc
}

func TestAuthenticate(t *testing.T) {
	svc := newTestAuthService(t, time.Hour)

	if _, err := svc.Authenticate("demo", "demo123"); err != nil {
		t.Fatalf("Authenticate(demo) returned error: %v", err)
	}

	if _, err := svc.Authenticate("demo", "wrong"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("wrong password error = %v, want ErrInvalidCredentials", err)
	}

	if _, err := svc.Authenticate("nobody", "demo123"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("unknown user error = %v, want ErrInvalidCredentials", err)
	}
}

func TestTokenRoundTrip(t *testing.T) {
	svc := newTestAuthService(t, time.Hour)

	token, expiresAt, err := svc.CreateToken("demo")
	if err != nil {
		t.Fatalf("CreateToken: %v", err)
	}
	if !expiresAt.After(time.Now()) {
		t.Fatalf("expiry %v is not in the future", expiresAt)
	}

	subject, err := svc.VerifyToken(token)
	if err != nil {
		t.Fatalf("VerifyToken: %v", err)
	}
	if subject != "demo" {
		t.Fatalf("subject = %q, want demo", subject)
	}
}

func TestVerifyTokenRejectsBadTokens(t *testing.T) {
	svc := newTestAuthService(t, time.Hour)

	if _, err := svc.VerifyToken("not-a-token"); err == nil {
		t.Fatal("expected error for malformed token")
	}

	other := NewAuthService(config.Config{JWTSecret: "other-secret", TokenTTL: time.Hour}, newMemUserStore(), logger.New())
	foreign, _, err := other.CreateToken("demo")
	if err != nil {
		t.Fatalf("CreateToken: %v", err)
	}
	if _, err := svc.VerifyToken(foreign); err == nil {
		t.Fatal("expected error for token signed with another secret")
	}
}

func TestVerifyTokenRejectsExpired(t *testing.T) {
	svc := newTestAuthService(t, -time.Minute)

	token, _, err := svc.CreateToken("demo")
	if err != nil {
		t.Fatalf("CreateToken: %v", err)
	}
	if _, err := svc.VerifyToken(token); err == nil {
		t.Fatal("expected error for expired token")
	}
}

func TestChangePassword(t *testing.T) {
	svc := newTestAuthService(t, time.Hour)

	if err := svc.ChangePassword("demo", "wrong", "newpass"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("wrong current password error = %v, want ErrInvalidCredentials", err)
	}

	if err := svc.ChangePassword("demo", "demo123", "   "); !errors.Is(err, domain.ErrInvalidInput) {
		t.Fatalf("blank new password error = %v, want ErrInvalidInput", err)
	}

	if err := svc.ChangePassword("demo", "demo123", "newpass"); err != nil {
		t.Fatalf("ChangePassword: %v", err)
	}

	if _, err := svc.Authenticate("demo", "newpass"); err != nil {
		t.Fatalf("Authenticate with new password: %v", err)
	}
	if _, err := svc.Authenticate("demo", "demo123"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("old password still accepted: %v", err)
	}
}

func TestUploadLinkRoundTrip(t *testing.T) {
	svc := NewUploadLinkService(config.Config{
		BaseURL:          "http://localhost:8085",
		UploadLinkSecret: "link-secret",
		UploadLinkTTL:    15 * time.Minute,
	})

	url, expiresAt := svc.Generate("abc123")
	if !expiresAt.After(time.Now()) {
		t.Fatalf("expiry %v is not in the future", expiresAt)
	}

	path := "/api/uploads/raw/abc123"
	if want := "http://localhost:8085" + path + "?exp="; !strings.HasPrefix(url, want) {
		t.Fatalf("url = %q, want prefix %q", url, want)
	}

	sig := url[strings.Index(url, "&sig=")+len("&sig="):]

	if !svc.Validate(path, expiresAt.Unix(), sig) {
		t.Fatal("valid signature rejected")
	}
	if svc.Validate("/api/uploads/raw/other", expiresAt.Unix(), sig) {
		t.Fatal("signature accepted for a different path")
	}
	if svc.Validate(path, expiresAt.Unix()+1, sig) {
		t.Fatal("signature accepted for a different expiry")
	}
}

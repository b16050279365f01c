package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stemsi/exstem-proctor/internal/config"
)

func testConfig() *config.Config {
	return &config.Config{
		JWTSecret:  "unit-test-secret",
		SessionTTL: time.Hour,
		BcryptCost: 4,
	}
}

func TestIssueAndValidateToken(t *testing.T) {
	svc := NewAuthService(testConfig(), NewStaticCredentials(nil))

	token, err := svc.IssueToken("sess-1", "kavi")
	if err != nil {
		t.Fatalf("IssueToken: %v", err)
	}

	claims, err := svc.ValidateToken(token)
	if err != nil {
		t.Fatalf("ValidateToken: %v", err)
	}
	if claims.ID != "sess-1" || claims.Username != "kavi" {
		t.Fatalf("claims = %+v", claims)
	}
}

func TestValidateTokenRejects(t *testing.T) {
	cfg := testConfig()
	svc := NewAuthService(cfg, NewStaticCredentials(nil))

	other := NewAuthService(&config.Config{JWTSecret: "another-secret", SessionTTL: time.Hour}, nil)
	foreign, _ := other.IssueToken("sess-1", "kavi")

	expired, _ := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        "sess-1",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Minute)),
		},
	}).SignedString([]byte(cfg.JWTSecret))

	noID, _ := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		RegisteredClaims: jwt.RegisteredClaims{ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Minute))},
	}).SignedString([]byte(cfg.JWTSecret))

	none, _ := jwt.NewWithClaims(jwt.SigningMethodNone, Claims{
		RegisteredClaims: jwt.RegisteredClaims{ID: "sess-1"},
	}).SignedString(jwt.UnsafeAllowNoneSignatureType)

	tests := []struct {
		name  string
		token string
	}{
		{"garbage", "not-a-token"},
		{"wrong secret", foreign},
		{"expired", expired},
		{"missing session id", noID},
		{"alg none", none},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := svc.ValidateToken(tt.token); !errors.Is(err, ErrInvalidToken) {
				t.Fatalf("err = %v, want ErrInvalidToken", err)
			}
		})
	}
}

func TestStaticCredentials(t *testing.T) {
	creds := NewStaticCredentials(map[string]string{"student1": "pass123", "kavi": "kavi123"})

	tests := []struct {
		username, password string
		want               bool
	}{
		{"student1", "pass123", true},
		{"kavi", "kavi123", true},
		{"kavi", "KAVI123", false},
		{"Kavi", "kavi123", false},
		{"kavi", "", false},
		{"nobody", "pass123", false},
	}

	for _, tt := range tests {
		ok, err := creds.Verify(context.Background(), tt.username, tt.password)
		if err != nil {
			t.Fatalf("Verify: %v", err)
		}
		if ok != tt.want {
			t.Errorf("Verify(%q, %q) = %v, want %v", tt.username, tt.password, ok, tt.want)
		}
	}
}

func TestAuthenticate(t *testing.T) {
	svc := NewAuthService(testConfig(), NewStaticCredentials(map[string]string{"kavi": "kavi123"}))

	if err := svc.Authenticate(context.Background(), "kavi", "kavi123"); err != nil {
		t.Fatalf("Authenticate: %v", err)
	}
	if err := svc.Authenticate(context.Background(), "kavi", "nope"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("err = %v, want ErrInvalidCredentials", err)
	}
}

func TestPasswordHashing(t *testing.T) {
	svc := NewAuthService(testConfig(), nil)

	hash, err := svc.HashPassword("kushi456")
	if err != nil {
		t.Fatalf("HashPassword: %v", err)
	}
	if err := svc.CheckPassword(hash, "kushi456"); err != nil {
		t.Fatalf("CheckPassword: %v", err)
	}
	if err := svc.CheckPassword(hash, "kushi457"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("err = %v, want ErrInvalidCredentials", err)
	}
}

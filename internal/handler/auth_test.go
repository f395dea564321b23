package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/pedefacil/api/internal/auth"
	"github.com/pedefacil/api/internal/database"
	"github.com/pedefacil/api/internal/enum"
	"golang.org/x/crypto/bcrypt"
)

const testSecret = "test-secret"

type mockAuthStore struct {
	byEmailFn func(ctx context.Context, email string) (database.Profile, error)
	byIDFn    func(ctx context.Context, id uuid.UUID) (database.Profile, error)
}

func (m *mockAuthStore) GetProfileByEmail(ctx context.Context, email string) (database.Profile, error) {
	return m.byEmailFn(ctx, email)
}

func (m *mockAuthStore) GetProfile(ctx context.Context, id uuid.UUID) (database.Profile, error) {
	return m.byIDFn(ctx, id)
}

func testProfile(t *testing.T, password string) database.Profile {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("bcrypt: %v", err)
	}
	return database.Profile{
		ID:             uuid.New(),
		TenantID:       uuid.New(),
		Email:          "dono@lanchonete.com",
		HashedPassword: string(hash),
		FullName:       "Dono da Loja",
		Role:           enum.UserRoleAdmin,
	}
}

func TestLoginIssuesTokens(t *testing.T) {
	profile := testProfile(t, "s3nha-forte")
	h := NewAuthHandler(&mockAuthStore{
		byEmailFn: func(ctx context.Context, email string) (database.Profile, error) {
			if email != profile.Email {
				return database.Profile{}, pgx.ErrNoRows
			}
			return profile, nil
		},
	}, testSecret)

	req := httptest.NewRequest(http.MethodPost, "/auth/login",
		strings.NewReader(`{"email": "dono@lanchonete.com", "password": "s3nha-forte"}`))
	rec := httptest.NewRecorder()
	h.Login(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", rec.Code, rec.Body.String())
	}

	var resp tokenResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}

	claims, err := auth.ValidateToken(testSecret, resp.AccessToken)
	if err != nil {
		t.Fatalf("access token does not validate: %v", err)
	}
	if claims.TenantID != profile.TenantID {
		t.Errorf("claims tenant = %s, want %s", claims.TenantID, profile.TenantID)
	}
	if claims.Role != enum.UserRoleAdmin {
		t.Errorf("claims role = %s, want ADMIN", claims.Role)
	}
	if resp.User.Email != profile.Email {
		t.Errorf("user email = %s", resp.User.Email)
	}
}

func TestLoginWrongPassword(t *testing.T) {
	profile := testProfile(t, "certa")
	h := NewAuthHandler(&mockAuthStore{
		byEmailFn: func(ctx context.Context, email string) (database.Profile, error) {
			return profile, nil
		},
	}, testSecret)

	req := httptest.NewRequest(http.MethodPost, "/auth/login",
		strings.NewReader(`{"email": "dono@lanchonete.com", "password": "errada"}`))
	rec := httptest.NewRecorder()
	h.Login(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", rec.Code)
	}
}

func TestLoginUnknownEmail(t *testing.T) {
	h := NewAuthHandler(&mockAuthStore{
		byEmailFn: func(ctx context.Context, email string) (database.Profile, error) {
			return database.Profile{}, pgx.ErrNoRows
		},
	}, testSecret)

	req := httptest.NewRequest(http.MethodPost, "/auth/login",
		strings.NewReader(`{"email": "ninguem@x.com", "password": "x"}`))
	rec := httptest.NewRecorder()
	h.Login(rec, req)

	// Same answer as a wrong password; no account enumeration.
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", rec.Code)
	}
}

func TestRefreshRoundTrip(t *testing.T) {
	profile := testProfile(t, "s3nha")
	h := NewAuthHandler(&mockAuthStore{
		byIDFn: func(ctx context.Context, id uuid.UUID) (database.Profile, error) {
			if id != profile.ID {
				return database.Profile{}, pgx.ErrNoRows
			}
			return profile, nil
		},
	}, testSecret)

	refresh, err := auth.GenerateRefreshToken(testSecret, profile.ID)
	if err != nil {
		t.Fatalf("generate refresh: %v", err)
	}

	req := httptest.NewRequest(http.MethodPost, "/auth/refresh",
		strings.NewReader(`{"refresh_token": "`+refresh+`"}`))
	rec := httptest.NewRecorder()
	h.Refresh(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", rec.Code, rec.Body.String())
	}

	var resp tokenResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if _, err := auth.ValidateToken(testSecret, resp.AccessToken); err != nil {
		t.Errorf("new access token does not validate: %v", err)
	}
}

func TestRefreshRejectsAccessToken(t *testing.T) {
	profile := testProfile(t, "s3nha")
	h := NewAuthHandler(&mockAuthStore{
		byIDFn: func(ctx context.Context, id uuid.UUID) (database.Profile, error) {
			return profile, nil
		},
	}, testSecret)

	access, err := auth.GenerateToken(testSecret, profile.ID, profile.TenantID, profile.Role)
	if err != nil {
		t.Fatalf("generate access: %v", err)
	}

	req := httptest.NewRequest(http.MethodPost, "/auth/refresh",
		strings.NewReader(`{"refresh_token": "`+access+`"}`))
	rec := httptest.NewRecorder()
	h.Refresh(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", rec.Code)
	}
}

package http

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"

	"github.com/key2key/server/internal/common"
	"github.com/key2key/server/internal/models"
)

// withURLParams injects chi route parameters so handlers can be called
// directly, without mounting the full router. Pairs alternate key, value.
func withURLParams(r *http.Request, pairs ...string) *http.Request {
	rctx := chi.NewRouteContext()
	for i := 0; i+1 < len(pairs); i += 2 {
		rctx.URLParams.Add(pairs[i], pairs[i+1])
	}
	return r.WithContext(context.WithValue(r.Context(), chi.RouteCtxKey, rctx))
}

// fakeAuthService implements AuthService for testing.
type fakeAuthService struct {
	signUpFn    func(ctx context.Context, email, authKey string) (*models.User, string, error)
	signInFn    func(ctx context.Context, email, authKey string) (*models.User, string, error)
	vaultSaltFn func(ctx context.Context, email string) (string, error)
}

func (f *fakeAuthService) SignUp(ctx context.Context, email, authKey string) (*models.User, string, error) {
	return f.signUpFn(ctx, email, authKey)
}

func (f *fakeAuthService) SignIn(ctx context.Context, email, authKey string) (*models.User, string, error) {
	return f.signInFn(ctx, email, authKey)
}

func (f *fakeAuthService) VaultSalt(ctx context.Context, email string) (string, error) {
	return f.vaultSaltFn(ctx, email)
}

const validAuthKey = "aaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa"

func TestAuthHandler_SignUp(t *testing.T) {
	okUser := &models.User{ID: "u1", Email: "a@x.com", VaultKeySalt: "00ff"}

	tests := []struct {
		name           string
		body           string
		service        *fakeAuthService
		expectedCode   int
		expectedSubstr string
	}{
		{
			name:           "invalid JSON",
			body:           `not a json`,
			service:        &fakeAuthService{},
			expectedCode:   http.StatusBadRequest,
			expectedSubstr: "invalid request body",
		},
		{
			name:           "missing email",
			body:           `{"authKey":"` + validAuthKey + `"}`,
			service:        &fakeAuthService{},
			expectedCode:   http.StatusBadRequest,
			expectedSubstr: "validation",
		},
		{
			name:           "auth key too short",
			body:           `{"email":"a@x.com","authKey":"abcd"}`,
			service:        &fakeAuthService{},
			expectedCode:   http.StatusBadRequest,
			expectedSubstr: "validation",
		},
		{
			name: "duplicate email",
			body: `{"email":"a@x.com","authKey":"` + validAuthKey + `"}`,
			service: &fakeAuthService{
				signUpFn: func(ctx context.Context, email, authKey string) (*models.User, string, error) {
					return nil, "", common.ErrAlreadyExists
				},
			},
			expectedCode:   http.StatusConflict,
			expectedSubstr: "already exists",
		},
		{
			name: "key generation failure",
			body: `{"email":"a@x.com","authKey":"` + validAuthKey + `"}`,
			service: &fakeAuthService{
				signUpFn: func(ctx context.Context, email, authKey string) (*models.User, string, error) {
					return nil, "", common.ErrKeyGeneration
				},
			},
			expectedCode:   http.StatusInternalServerError,
			expectedSubstr: "internal server error",
		},
		{
			name: "success",
			body: `{"email":"a@x.com","authKey":"` + validAuthKey + `"}`,
			service: &fakeAuthService{
				signUpFn: func(ctx context.Context, email, authKey string) (*models.User, string, error) {
					return okUser, "tok-123", nil
				},
			},
			expectedCode:   http.StatusCreated,
			expectedSubstr: "tok-123",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			req := httptest.NewRequest("POST", "/api/auth/sign-up", bytes.NewBufferString(tt.body))
			h := &AuthHandler{AuthService: tt.service}
			h.SignUp(rec, req)
			res := rec.Result()
			defer res.Body.Close()

			if res.StatusCode != tt.expectedCode {
				t.Fatalf("expected status %d, got %d", tt.expectedCode, res.StatusCode)
			}

			buf := new(bytes.Buffer)
			if _, err := buf.ReadFrom(res.Body); err != nil {
				t.Fatalf("failed to read body: %v", err)
			}
			if !bytes.Contains(buf.Bytes(), []byte(tt.expectedSubstr)) {
				t.Errorf("expected body to contain %q, got %q", tt.expectedSubstr, buf.String())
			}
		})
	}
}

func TestAuthHandler_SignIn(t *testing.T) {
	tests := []struct {
		name           string
		body           string
		service        *fakeAuthService
		expectedCode   int
		expectedSubstr string
	}{
		{
			name: "unknown email",
			body: `{"email":"nobody@x.com","authKey":"` + validAuthKey + `"}`,
			service: &fakeAuthService{
				signInFn: func(ctx context.Context, email, authKey string) (*models.User, string, error) {
					return nil, "", common.ErrInvalidCredentials
				},
			},
			expectedCode:   http.StatusUnauthorized,
			expectedSubstr: "invalid email or password",
		},
		{
			name: "wrong auth key",
			body: `{"email":"a@x.com","authKey":"` + validAuthKey + `"}`,
			service: &fakeAuthService{
				signInFn: func(ctx context.Context, email, authKey string) (*models.User, string, error) {
					return nil, "", common.ErrInvalidCredentials
				},
			},
			expectedCode:   http.StatusUnauthorized,
			expectedSubstr: "invalid email or password",
		},
		{
			name: "success returns key material",
			body: `{"email":"a@x.com","authKey":"` + validAuthKey + `"}`,
			service: &fakeAuthService{
				signInFn: func(ctx context.Context, email, authKey string) (*models.User, string, error) {
					return &models.User{
						ID:                "u1",
						Email:             "a@x.com",
						VaultKeySalt:      "00ff",
						PublicKey:         "-----BEGIN PUBLIC KEY-----",
						WrappedPrivateKey: "aa:bb:cc",
					}, "tok-123", nil
				},
			},
			expectedCode:   http.StatusOK,
			expectedSubstr: "wrappedPrivateKey",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			req := httptest.NewRequest("POST", "/api/auth/sign-in", bytes.NewBufferString(tt.body))
			h := &AuthHandler{AuthService: tt.service}
			h.SignIn(rec, req)
			res := rec.Result()
			defer res.Body.Close()

			if res.StatusCode != tt.expectedCode {
				t.Fatalf("expected status %d, got %d", tt.expectedCode, res.StatusCode)
			}

			buf := new(bytes.Buffer)
			if _, err := buf.ReadFrom(res.Body); err != nil {
				t.Fatalf("failed to read body: %v", err)
			}
			if !bytes.Contains(buf.Bytes(), []byte(tt.expectedSubstr)) {
				t.Errorf("expected body to contain %q, got %q", tt.expectedSubstr, buf.String())
			}
		})
	}
}

func TestAuthHandler_SignIn_NeverLeaksVerifier(t *testing.T) {
	service := &fakeAuthService{
		signInFn: func(ctx context.Context, email, authKey string) (*models.User, string, error) {
			return &models.User{
				ID:            "u1",
				Email:         "a@x.com",
				LoginVerifier: []byte("bcrypt-hash-bytes"),
				VaultKeySalt:  "00ff",
			}, "tok-123", nil
		},
	}

	rec := httptest.NewRecorder()
	req := httptest.NewRequest("POST", "/api/auth/sign-in", bytes.NewBufferString(`{"email":"a@x.com","authKey":"`+validAuthKey+`"}`))
	h := &AuthHandler{AuthService: service}
	h.SignIn(rec, req)
	res := rec.Result()
	defer res.Body.Close()

	buf := new(bytes.Buffer)
	if _, err := buf.ReadFrom(res.Body); err != nil {
		t.Fatalf("failed to read body: %v", err)
	}
	if bytes.Contains(buf.Bytes(), []byte("bcrypt-hash")) {
		t.Errorf("login verifier leaked in response body: %s", buf.String())
	}
	if bytes.Contains(buf.Bytes(), []byte("loginVerifier")) {
		t.Errorf("login verifier field present in response body: %s", buf.String())
	}
}

func TestAuthHandler_VaultSalt(t *testing.T) {
	tests := []struct {
		name           string
		email          string
		service        *fakeAuthService
		expectedCode   int
		expectedSubstr string
	}{
		{
			name:  "unknown email",
			email: "nobody@x.com",
			service: &fakeAuthService{
				vaultSaltFn: func(ctx context.Context, email string) (string, error) {
					return "", common.ErrNotFound
				},
			},
			expectedCode:   http.StatusNotFound,
			expectedSubstr: "not found",
		},
		{
			name:  "known email returns salt",
			email: "a@x.com",
			service: &fakeAuthService{
				vaultSaltFn: func(ctx context.Context, email string) (string, error) {
					if email != "a@x.com" {
						t.Errorf("expected email a@x.com, got %s", email)
					}
					return "00112233445566778899aabbccddeeff", nil
				},
			},
			expectedCode:   http.StatusOK,
			expectedSubstr: "00112233445566778899aabbccddeeff",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			req := httptest.NewRequest("GET", "/api/auth/salt/"+tt.email, nil)
			req = withURLParams(req, "email", tt.email)
			h := &AuthHandler{AuthService: tt.service}
			h.VaultSalt(rec, req)
			res := rec.Result()
			defer res.Body.Close()

			if res.StatusCode != tt.expectedCode {
				t.Fatalf("expected status %d, got %d", tt.expectedCode, res.StatusCode)
			}

			buf := new(bytes.Buffer)
			if _, err := buf.ReadFrom(res.Body); err != nil {
				t.Fatalf("failed to read body: %v", err)
			}
			if !bytes.Contains(buf.Bytes(), []byte(tt.expectedSubstr)) {
				t.Errorf("expected body to contain %q, got %q", tt.expectedSubstr, buf.String())
			}
		})
	}
}

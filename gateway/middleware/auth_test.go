package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	jwt "github.com/golang-jwt/jwt/v5"

	"yieldpool/crypto"
)

const testSecret = "test-secret"

func signToken(t *testing.T, claims jwt.MapClaims) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(testSecret))
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return signed
}

func callerEcho(t *testing.T, got *crypto.Address) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if addr, ok := CallerFromContext(r.Context()); ok {
			*got = addr
		}
		w.WriteHeader(http.StatusOK)
	})
}

func TestAuthenticatorResolvesCaller(t *testing.T) {
	caller := crypto.BytesToAddress([]byte{0x42})
	auth := NewAuthenticator(AuthConfig{
		Enabled:    true,
		HMACSecret: testSecret,
		Issuer:     "yieldpool",
		Audience:   "gateway",
	}, nil)

	var got crypto.Address
	handler := auth.Middleware()(callerEcho(t, &got))
	token := signToken(t, jwt.MapClaims{
		"sub": caller.String(),
		"iss": "yieldpool",
		"aud": []interface{}{"gateway"},
		"exp": time.Now().Add(time.Hour).Unix(),
	})
	req := httptest.NewRequest(http.MethodPost, "/v1/pool/deposit", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)
	if res.Code != http.StatusOK {
		t.Fatalf("expected success, got %d", res.Code)
	}
	if got != caller {
		t.Fatalf("expected caller %s, got %s", caller, got)
	}
}

func TestAuthenticatorRejectsBadTokens(t *testing.T) {
	auth := NewAuthenticator(AuthConfig{Enabled: true, HMACSecret: testSecret, Issuer: "yieldpool"}, nil)
	var got crypto.Address
	handler := auth.Middleware()(callerEcho(t, &got))
	caller := crypto.BytesToAddress([]byte{0x42}).Hex()

	cases := map[string]struct {
		header string
		want   int
	}{
		"missing":     {"", http.StatusUnauthorized},
		"not bearer":  {"Basic abc", http.StatusUnauthorized},
		"bad issuer":  {"Bearer " + signToken(t, jwt.MapClaims{"sub": caller, "iss": "other"}), http.StatusUnauthorized},
		"expired":     {"Bearer " + signToken(t, jwt.MapClaims{"sub": caller, "iss": "yieldpool", "exp": time.Now().Add(-time.Hour).Unix()}), http.StatusUnauthorized},
		"bad address": {"Bearer " + signToken(t, jwt.MapClaims{"sub": "alice", "iss": "yieldpool"}), http.StatusUnauthorized},
	}
	for name, tc := range cases {
		req := httptest.NewRequest(http.MethodPost, "/v1/pool/deposit", nil)
		if tc.header != "" {
			req.Header.Set("Authorization", tc.header)
		}
		res := httptest.NewRecorder()
		handler.ServeHTTP(res, req)
		if res.Code != tc.want {
			t.Fatalf("%s: expected %d, got %d", name, tc.want, res.Code)
		}
	}
}

func TestAuthenticatorScopes(t *testing.T) {
	auth := NewAuthenticator(AuthConfig{Enabled: true, HMACSecret: testSecret}, nil)
	var got crypto.Address
	handler := auth.Middleware("audit")(callerEcho(t, &got))
	caller := crypto.BytesToAddress([]byte{0x42}).Hex()

	for _, tc := range []struct {
		scope interface{}
		want  int
	}{
		{"read", http.StatusForbidden},
		{"read audit", http.StatusOK},
		{[]interface{}{"audit"}, http.StatusOK},
	} {
		req := httptest.NewRequest(http.MethodGet, "/v1/audit/receipts", nil)
		req.Header.Set("Authorization", "Bearer "+signToken(t, jwt.MapClaims{"sub": caller, "scope": tc.scope}))
		res := httptest.NewRecorder()
		handler.ServeHTTP(res, req)
		if res.Code != tc.want {
			t.Fatalf("scope %v: expected %d, got %d", tc.scope, tc.want, res.Code)
		}
	}
}

func TestAuthenticatorAnonymousReads(t *testing.T) {
	auth := NewAuthenticator(AuthConfig{Enabled: true, HMACSecret: testSecret, AllowAnonymous: true}, nil)
	var got crypto.Address
	handler := auth.Middleware()(callerEcho(t, &got))

	res := httptest.NewRecorder()
	handler.ServeHTTP(res, httptest.NewRequest(http.MethodGet, "/v1/pool", nil))
	if res.Code != http.StatusOK {
		t.Fatalf("expected anonymous read, got %d", res.Code)
	}
	res = httptest.NewRecorder()
	handler.ServeHTTP(res, httptest.NewRequest(http.MethodPost, "/v1/pool/deposit", nil))
	if res.Code != http.StatusUnauthorized {
		t.Fatalf("expected anonymous write to be rejected, got %d", res.Code)
	}
}

func TestAuthenticatorDisabledUsesHeader(t *testing.T) {
	auth := NewAuthenticator(AuthConfig{Enabled: false}, nil)
	var got crypto.Address
	handler := auth.Middleware()(callerEcho(t, &got))
	caller := crypto.BytesToAddress([]byte{0x07})

	req := httptest.NewRequest(http.MethodPost, "/v1/pool/deposit", nil)
	req.Header.Set(CallerHeader, caller.Hex())
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)
	if res.Code != http.StatusOK || got != caller {
		t.Fatalf("expected header caller, got %d %s", res.Code, got)
	}

	req = httptest.NewRequest(http.MethodPost, "/v1/pool/deposit", nil)
	req.Header.Set(CallerHeader, "nope")
	res = httptest.NewRecorder()
	handler.ServeHTTP(res, req)
	if res.Code != http.StatusBadRequest {
		t.Fatalf("expected bad caller header to be rejected, got %d", res.Code)
	}
}

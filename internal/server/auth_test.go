package server

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

func signToken(t *testing.T, secret string, method jwt.SigningMethod, claims IdentityClaims) string {
	t.Helper()
	raw, err := jwt.NewWithClaims(method, claims).SignedString([]byte(secret))
	if err != nil {
		t.Fatalf("signing token: %v", err)
	}
	return raw
}

func TestIdentifyWithoutSecret(t *testing.T) {
	auth := newAuthenticator("")

	req := httptest.NewRequest(http.MethodGet, "/ws?name=Ana&key=device-1", nil)
	who, err := auth.identify(req)
	if err != nil {
		t.Fatalf("identify: %v", err)
	}
	if who.Name != "Ana" || who.Key != "device-1" || who.SessionID == "" {
		t.Errorf("who = %+v", who)
	}

	anon, err := auth.identify(httptest.NewRequest(http.MethodGet, "/ws", nil))
	if err != nil {
		t.Fatalf("identify: %v", err)
	}
	if anon.Key != anon.SessionID {
		t.Errorf("key = %q, want session id %q", anon.Key, anon.SessionID)
	}
}

func TestIdentifyWithSecret(t *testing.T) {
	const secret = "s3cret"
	auth := newAuthenticator(secret)

	valid := IdentityClaims{
		Name: "Beto",
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "user-42",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}
	expired := valid
	expired.ExpiresAt = jwt.NewNumericDate(time.Now().Add(-time.Hour))
	noSubject := valid
	noSubject.Subject = ""

	tests := []struct {
		name    string
		token   string
		header  bool
		wantErr bool
	}{
		{name: "query token", token: signToken(t, secret, jwt.SigningMethodHS256, valid)},
		{name: "bearer header", token: signToken(t, secret, jwt.SigningMethodHS256, valid), header: true},
		{name: "missing", token: "", wantErr: true},
		{name: "wrong secret", token: signToken(t, "other", jwt.SigningMethodHS256, valid), wantErr: true},
		{name: "wrong method", token: signToken(t, secret, jwt.SigningMethodHS512, valid), wantErr: true},
		{name: "expired", token: signToken(t, secret, jwt.SigningMethodHS256, expired), wantErr: true},
		{name: "no subject", token: signToken(t, secret, jwt.SigningMethodHS256, noSubject), wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			target := "/ws?name=Impostor"
			if !tt.header && tt.token != "" {
				target += "&token=" + tt.token
			}
			req := httptest.NewRequest(http.MethodGet, target, nil)
			if tt.header {
				req.Header.Set("Authorization", "Bearer "+tt.token)
			}

			who, err := auth.identify(req)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("identify = %+v, want error", who)
				}
				return
			}
			if err != nil {
				t.Fatalf("identify: %v", err)
			}
			if who.Key != "user-42" || who.Name != "Beto" {
				t.Errorf("who = %+v", who)
			}
		})
	}
}

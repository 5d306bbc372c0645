package server

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/playperu/tuttifrutti/internal/stopgame"
)

var errNoIdentity = errors.New("no valid identity")

// IdentityClaims is the token a trusted front end issues for a player. The
// subject is the player's stable key.
type IdentityClaims struct {
	Name string `json:"name"`
	jwt.RegisteredClaims
}

// authenticator resolves who is opening a websocket. Without a secret the
// client names itself through the name and key query parameters.
type authenticator struct {
	secret []byte
}

func newAuthenticator(secret string) *authenticator {
	if secret == "" {
		return &authenticator{}
	}
	return &authenticator{secret: []byte(secret)}
}

func (a *authenticator) identify(r *http.Request) (stopgame.Identity, error) {
	q := r.URL.Query()
	who := stopgame.Identity{
		SessionID: uuid.NewString(),
		Key:       q.Get("key"),
		Name:      q.Get("name"),
	}

	if a.secret == nil {
		if who.Key == "" {
			who.Key = who.SessionID
		}
		return who, nil
	}

	raw := q.Get("token")
	if raw == "" {
		raw, _ = strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
	}
	if raw == "" {
		return stopgame.Identity{}, errNoIdentity
	}

	var claims IdentityClaims
	_, err := jwt.ParseWithClaims(raw, &claims, func(*jwt.Token) (any, error) {
		return a.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return stopgame.Identity{}, fmt.Errorf("%w: %w", errNoIdentity, err)
	}
	if claims.Subject == "" {
		return stopgame.Identity{}, fmt.Errorf("%w: token has no subject", errNoIdentity)
	}

	who.Key = claims.Subject
	if claims.Name != "" {
		who.Name = claims.Name
	}
	return who, nil
}

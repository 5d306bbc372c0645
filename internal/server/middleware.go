package server

import (
	"context"
	"net/http"

	"github.com/playperu/tuttifrutti/internal/stopgame"
)

type ctxKey int

const ctxKeyIdentity ctxKey = iota

func identityMiddleware(auth *authenticator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			who, err := auth.identify(r)
			if err != nil {
				writeError(w, http.StatusUnauthorized, "not authenticated")
				return
			}

			ctx := context.WithValue(r.Context(), ctxKeyIdentity, who)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func identityFrom(r *http.Request) stopgame.Identity {
	return r.Context().Value(ctxKeyIdentity).(stopgame.Identity)
}

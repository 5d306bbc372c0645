package server

import (
	"errors"
	"net/http"
	"net/url"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/skip2/go-qrcode"

	"github.com/playperu/tuttifrutti/internal/room"
)

const qrSize = 256

func handleRoomSnapshot(engine *room.Engine) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		snap, err := engine.Snapshot(chi.URLParam(r, "code"))
		if errors.Is(err, room.ErrRoomNotFound) {
			writeError(w, http.StatusNotFound, "room not found")
			return
		}
		if err != nil {
			writeError(w, http.StatusInternalServerError, "internal error")
			return
		}
		writeJSON(w, http.StatusOK, snap)
	}
}

// handleRoomQR serves a PNG QR code that opens the client on the room.
func handleRoomQR(engine *room.Engine, publicURL string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		code := chi.URLParam(r, "code")
		if _, err := engine.Snapshot(code); err != nil {
			writeError(w, http.StatusNotFound, "room not found")
			return
		}

		png, err := qrcode.Encode(joinURL(publicURL, r, code), qrcode.Medium, qrSize)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "internal error")
			return
		}

		w.Header().Set("Content-Type", "image/png")
		w.Header().Set("Cache-Control", "no-store")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(png)
	}
}

// joinURL builds the link a phone lands on after scanning. Without a
// configured public URL it falls back to the request's host.
func joinURL(publicURL string, r *http.Request, code string) string {
	base := strings.TrimSuffix(publicURL, "/")
	if base == "" {
		scheme := "http"
		if r.TLS != nil {
			scheme = "https"
		}
		base = scheme + "://" + r.Host
	}
	return base + "/?room=" + url.QueryEscape(code)
}

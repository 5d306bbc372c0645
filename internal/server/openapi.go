package server

import (
	"encoding/json"
	"net/http"

	openapi "github.com/swaggest/openapi-go"
	"github.com/swaggest/openapi-go/openapi3"

	"github.com/playperu/tuttifrutti/internal/room"
)

// ErrorResponse is returned for all error responses.
type ErrorResponse struct {
	Error string `json:"error"`
}

type roomCodePath struct {
	Code string `path:"code" description:"Four-digit room code."`
}

type wsQuery struct {
	Name  string `query:"name" description:"Display name. Ignored when the token carries one."`
	Key   string `query:"key" description:"Stable player key used to rejoin after a reconnect."`
	Token string `query:"token" description:"Signed identity token, required when the server has a JWT secret."`
}

type healthResponse map[string]struct {
	Status string `json:"status"`
}

func newOpenAPISpec() *openapi3.Spec {
	r := openapi3.NewReflector()
	r.Spec.Info.Title = "Tutti Frutti API"
	r.Spec.Info.Version = "0.1.0"
	r.Spec.Info.WithDescription("Backend API for the Tutti Frutti word game. Gameplay runs over the /ws socket.")

	// GET /healthz
	getHealthz, _ := r.NewOperationContext(http.MethodGet, "/healthz")
	getHealthz.SetSummary("Health check")
	getHealthz.SetDescription("Returns the health status of backend dependencies.")
	getHealthz.AddRespStructure(healthResponse{}, openapi.WithHTTPStatus(http.StatusOK))
	getHealthz.AddRespStructure(healthResponse{}, openapi.WithHTTPStatus(http.StatusServiceUnavailable))
	_ = r.AddOperation(getHealthz)

	// GET /ws
	getWS, _ := r.NewOperationContext(http.MethodGet, "/ws")
	getWS.SetSummary("Game socket")
	getWS.SetDescription("Upgrades to a WebSocket. Clients send {type, payload} requests " +
		"(create_room, join_room, toggle_ready, configure_round, submit_answers, stop_round, " +
		"reset_game, dismiss_results, leave_room) and receive {type, data} events.")
	getWS.AddReqStructure(wsQuery{})
	getWS.AddRespStructure(nil, openapi.WithHTTPStatus(http.StatusSwitchingProtocols))
	getWS.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(http.StatusUnauthorized))
	_ = r.AddOperation(getWS)

	// GET /api/rooms/{code}
	getRoom, _ := r.NewOperationContext(http.MethodGet, "/api/rooms/{code}")
	getRoom.SetSummary("Room snapshot")
	getRoom.SetDescription("Returns the current state of a room.")
	getRoom.AddReqStructure(roomCodePath{})
	getRoom.AddRespStructure(room.Snapshot{}, openapi.WithHTTPStatus(http.StatusOK))
	getRoom.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(http.StatusNotFound))
	_ = r.AddOperation(getRoom)

	// GET /api/rooms/{code}/qr
	getQR, _ := r.NewOperationContext(http.MethodGet, "/api/rooms/{code}/qr")
	getQR.SetSummary("Room QR code")
	getQR.SetDescription("PNG QR code linking to the client with the room pre-filled.")
	getQR.AddReqStructure(roomCodePath{})
	getQR.AddRespStructure(nil, openapi.WithHTTPStatus(http.StatusOK), openapi.WithContentType("image/png"))
	getQR.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(http.StatusNotFound))
	_ = r.AddOperation(getQR)

	return r.Spec
}

func handleOpenAPI() http.HandlerFunc {
	spec := newOpenAPISpec()
	data, _ := json.MarshalIndent(spec, "", "  ")

	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(data)
	}
}

package server

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"golang.org/x/time/rate"
	"nhooyr.io/websocket"

	"github.com/playperu/tuttifrutti/internal/room"
	"github.com/playperu/tuttifrutti/internal/stopgame"
)

// Client request types.
const (
	reqCreateRoom     = "create_room"
	reqJoinRoom       = "join_room"
	reqToggleReady    = "toggle_ready"
	reqConfigureRound = "configure_round"
	reqSubmitAnswers  = "submit_answers"
	reqStopRound      = "stop_round"
	reqResetGame      = "reset_game"
	reqDismissResults = "dismiss_results"
	reqLeaveRoom      = "leave_room"
)

const (
	sessionBuffer = 64
	readLimit     = 16 << 10
	writeTimeout  = 5 * time.Second
	pingInterval  = 30 * time.Second
)

type request struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

type roomRequest struct {
	RoomCode string `json:"roomCode"`
}

type configureRequest struct {
	RoomCode    string `json:"roomCode"`
	TotalRounds int    `json:"totalRounds"`
}

type answersRequest struct {
	RoomCode string           `json:"roomCode"`
	Answers  stopgame.Answers `json:"answers"`
}

type RoomCreated struct {
	Code string `json:"code"`
}

type wsLimits struct {
	rate  rate.Limit
	burst int
}

func handleWS(engine *room.Engine, broker *Broker, limits wsLimits, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		who := identityFrom(r)

		conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
			InsecureSkipVerify: true,
		})
		if err != nil {
			logger.Error("websocket accept failed", "error", err)
			return
		}
		defer conn.CloseNow()
		conn.SetReadLimit(readLimit)

		ctx, cancel := context.WithCancel(r.Context())
		defer cancel()

		s := &session{
			who:     who,
			conn:    conn,
			engine:  engine,
			broker:  broker,
			limiter: rate.NewLimiter(limits.rate, limits.burst),
			out:     make(chan []byte, sessionBuffer),
			done:    make(chan struct{}),
			logger:  logger.With("session", who.SessionID),
		}
		s.logger.Debug("websocket connected", "key", who.Key)

		go s.writeLoop(ctx)
		go s.keepalive(ctx)
		s.readLoop(ctx)
		s.detach(false)

		conn.Close(websocket.StatusNormalClosure, "")
	}
}

// session is one websocket connection. Everything but out and done is owned
// by the read loop goroutine. done is closed when the write loop exits.
type session struct {
	who     stopgame.Identity
	conn    *websocket.Conn
	engine  *room.Engine
	broker  *Broker
	limiter *rate.Limiter
	out     chan []byte
	done    chan struct{}
	logger  *slog.Logger

	code string
}

func (s *session) readLoop(ctx context.Context) {
	for {
		_, data, err := s.conn.Read(ctx)
		if err != nil {
			s.logger.Debug("websocket read ended", "error", err)
			return
		}
		if !s.limiter.Allow() {
			s.sendError(ctx, "too many messages")
			continue
		}
		s.dispatch(ctx, data)
	}
}

func (s *session) writeLoop(ctx context.Context) {
	defer close(s.done)
	for {
		select {
		case <-ctx.Done():
			return
		case msg := <-s.out:
			wctx, cancel := context.WithTimeout(ctx, writeTimeout)
			err := s.conn.Write(wctx, websocket.MessageText, msg)
			cancel()
			if err != nil {
				s.logger.Debug("websocket write failed", "error", err)
				s.conn.CloseNow()
				return
			}
		}
	}
}

func (s *session) keepalive(ctx context.Context) {
	t := time.NewTicker(pingInterval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			pctx, cancel := context.WithTimeout(ctx, writeTimeout)
			err := s.conn.Ping(pctx)
			cancel()
			if err != nil {
				s.logger.Debug("websocket ping failed", "error", err)
				s.conn.CloseNow()
				return
			}
		}
	}
}

func (s *session) dispatch(ctx context.Context, data []byte) {
	var req request
	if err := json.Unmarshal(data, &req); err != nil {
		s.sendError(ctx, "malformed message")
		return
	}

	var err error
	switch req.Type {
	case reqCreateRoom:
		err = s.createRoom(ctx)
	case reqJoinRoom:
		var p roomRequest
		if err := decodePayload(req.Payload, &p); err != nil {
			s.sendError(ctx, "malformed join_room payload")
			return
		}
		s.joinRoom(ctx, p.RoomCode)
		return
	case reqToggleReady:
		err = s.inRoom(req.Payload, func(code string) error {
			return s.engine.ToggleReady(code, s.who.SessionID)
		})
	case reqConfigureRound:
		var p configureRequest
		if err := decodePayload(req.Payload, &p); err != nil {
			s.sendError(ctx, "malformed configure_round payload")
			return
		}
		err = s.checkRoom(p.RoomCode, func(code string) error {
			return s.engine.ConfigureRound(code, s.who.SessionID, p.TotalRounds)
		})
	case reqSubmitAnswers, reqStopRound:
		var p answersRequest
		if err := decodePayload(req.Payload, &p); err != nil {
			s.sendError(ctx, "malformed answers payload")
			return
		}
		stop := req.Type == reqStopRound
		err = s.checkRoom(p.RoomCode, func(code string) error {
			return s.engine.SubmitAnswers(code, s.who.SessionID, p.Answers, stop)
		})
	case reqResetGame:
		err = s.inRoom(req.Payload, func(code string) error {
			return s.engine.ResetGame(code, s.who.SessionID)
		})
	case reqDismissResults:
		err = s.inRoom(req.Payload, func(code string) error {
			return s.engine.DismissResults(code, s.who.SessionID)
		})
	case reqLeaveRoom:
		err = s.inRoom(req.Payload, func(string) error {
			s.detach(true)
			return nil
		})
	default:
		s.sendError(ctx, "unknown message type "+req.Type)
		return
	}

	if err != nil {
		s.logger.Debug("request rejected", "type", req.Type, "error", err)
		s.sendError(ctx, errorMessage(err))
	}
}

func (s *session) createRoom(ctx context.Context) error {
	code, err := s.engine.CreateRoom(s.who)
	if err != nil {
		return err
	}
	s.send(ctx, room.Event{Type: room.EventRoomCreated, Data: RoomCreated{Code: code}})
	s.joinRoom(ctx, code)
	return nil
}

func (s *session) joinRoom(ctx context.Context, code string) {
	if code != s.code {
		s.detach(false)
	}
	s.broker.Subscribe(code, s.out)

	snap, err := s.engine.JoinRoom(code, s.who)
	if err != nil {
		if code != s.code {
			s.broker.Unsubscribe(code, s.out)
		}
		s.send(ctx, room.Event{Type: room.EventErrorJoining, Data: room.ErrorMessage{Message: errorMessage(err)}})
		return
	}
	s.code = code
	s.send(ctx, room.Event{Type: room.EventJoinedRoom, Data: snap})
}

// detach unsubscribes from the current room and tells the engine the player
// is gone, for good when leave is set.
func (s *session) detach(leave bool) {
	if s.code == "" {
		return
	}
	code := s.code
	s.code = ""
	s.broker.Unsubscribe(code, s.out)

	var err error
	if leave {
		err = s.engine.LeaveRoom(code, s.who.SessionID)
	} else {
		err = s.engine.Disconnect(code, s.who.SessionID)
	}
	if err != nil && !errors.Is(err, room.ErrRoomNotFound) && !errors.Is(err, room.ErrPlayerNotFound) {
		s.logger.Error("detaching from room", "room", code, "error", err)
	}
}

// inRoom decodes a payload that only names a room and runs fn for it.
func (s *session) inRoom(payload json.RawMessage, fn func(code string) error) error {
	var p roomRequest
	if err := decodePayload(payload, &p); err != nil {
		return errMalformed
	}
	return s.checkRoom(p.RoomCode, fn)
}

// checkRoom runs fn for the session's room. A request naming a different
// room is refused.
func (s *session) checkRoom(code string, fn func(code string) error) error {
	if s.code == "" || (code != "" && code != s.code) {
		return room.ErrPlayerNotFound
	}
	return fn(s.code)
}

var errMalformed = errors.New("malformed payload")

func (s *session) send(ctx context.Context, ev room.Event) {
	data, err := json.Marshal(ev)
	if err != nil {
		s.logger.Error("encoding reply", "type", ev.Type, "error", err)
		return
	}
	select {
	case s.out <- data:
	case <-s.done:
	case <-ctx.Done():
	}
}

func (s *session) sendError(ctx context.Context, msg string) {
	s.send(ctx, room.Event{Type: room.EventError, Data: room.ErrorMessage{Message: msg}})
}

func errorMessage(err error) string {
	switch {
	case errors.Is(err, room.ErrRoomNotFound):
		return "room not found"
	case errors.Is(err, room.ErrPlayerNotFound):
		return "you are not in this room"
	case errors.Is(err, room.ErrNotOwner):
		return "only the room owner can do that"
	case errors.Is(err, room.ErrInvalidRounds):
		return err.Error()
	case errors.Is(err, room.ErrInvalidName):
		return "pick a name first"
	case errors.Is(err, errMalformed):
		return "malformed payload"
	case errors.Is(err, room.ErrNoFreeCode):
		return "no rooms available, try again later"
	}
	return "internal error"
}

package relayserver

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/coder/websocket"

	"roomseal/internal/codec"
	"roomseal/internal/domain"
)

const maxBodyBytes = 1 << 20

// Server serves the relay HTTP API over a Store and publishes change-feed
// events through a Broker.
type Server struct {
	store        *Store
	feed         *Broker
	logger       *slog.Logger
	writeTimeout time.Duration
}

// NewServer wires a Server. A nil logger discards output.
func NewServer(store *Store, cfg Config, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	writeTimeout := cfg.WriteTimeout
	if writeTimeout <= 0 {
		writeTimeout = 10 * time.Second
	}
	return &Server{
		store:        store,
		feed:         NewBroker(cfg.FeedBuffer, logger),
		logger:       logger,
		writeTimeout: writeTimeout,
	}
}

// Handler returns the HTTP handler for the relay API.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /rooms", s.handleCreateRoom)
	mux.HandleFunc("GET /rooms", s.handleFindRooms)
	mux.HandleFunc("GET /rooms/{id}/members", s.handleListMembers)
	mux.HandleFunc("POST /rooms/{id}/members", s.handleJoin)
	mux.HandleFunc("PUT /rooms/{id}/members/{user}", s.handlePublishMember)
	mux.HandleFunc("DELETE /rooms/{id}/members/{user}", s.handleLeave)
	mux.HandleFunc("GET /rooms/{id}/messages", s.handleListMessages)
	mux.HandleFunc("POST /rooms/{id}/messages", s.handleInsertMessage)
	mux.HandleFunc("GET /rooms/{id}/feed", s.handleFeed)
	return s.accessLog(mux)
}

type createRoomRequest struct {
	Name      string          `json:"name"`
	Code      domain.RoomCode `json:"code"`
	CreatedBy domain.UserID   `json:"created_by"`
}

func (s *Server) handleCreateRoom(w http.ResponseWriter, r *http.Request) {
	var req createRoomRequest
	if !s.decode(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.Name) == "" || req.Code == "" || req.CreatedBy == "" {
		writeError(w, http.StatusBadRequest, "name, code and created_by are required")
		return
	}
	room, err := s.store.CreateRoom(r.Context(), strings.TrimSpace(req.Name), req.Code, req.CreatedBy)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.logger.Info("room created", "room_id", room.ID.String(), "room_code", room.Code.String())
	writeJSON(w, http.StatusCreated, room)
}

func (s *Server) handleFindRooms(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	switch {
	case q.Get("code") != "":
		room, err := s.store.RoomByCode(r.Context(), domain.RoomCode(q.Get("code")))
		if err != nil {
			s.fail(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, room)
	case q.Get("user") != "":
		rooms, err := s.store.RoomsForUser(r.Context(), domain.UserID(q.Get("user")))
		if err != nil {
			s.fail(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, rooms)
	default:
		writeError(w, http.StatusBadRequest, "one of code or user is required")
	}
}

func (s *Server) handleListMembers(w http.ResponseWriter, r *http.Request) {
	room := domain.RoomID(r.PathValue("id"))
	if _, err := s.store.RoomByID(r.Context(), room); err != nil {
		s.fail(w, r, err)
		return
	}
	members, err := s.store.ListMembers(r.Context(), room)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, members)
}

func (s *Server) handleJoin(w http.ResponseWriter, r *http.Request) {
	var m domain.RoomMembership
	if !s.decode(w, r, &m) {
		return
	}
	m.RoomID = domain.RoomID(r.PathValue("id"))
	if m.UserID == "" || m.PublicKey == "" {
		writeError(w, http.StatusBadRequest, "user_id and public_key are required")
		return
	}
	out, err := s.store.InsertMember(r.Context(), m)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.feed.Publish(domain.FeedEvent{Kind: domain.FeedMemberUpsert, RoomID: out.RoomID, Member: &out})
	writeJSON(w, http.StatusCreated, out)
}

func (s *Server) handlePublishMember(w http.ResponseWriter, r *http.Request) {
	var m domain.RoomMembership
	if !s.decode(w, r, &m) {
		return
	}
	m.RoomID = domain.RoomID(r.PathValue("id"))
	m.UserID = domain.UserID(r.PathValue("user"))
	if m.PublicKey == "" {
		writeError(w, http.StatusBadRequest, "public_key is required")
		return
	}
	out, err := s.store.UpsertMember(r.Context(), m)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.feed.Publish(domain.FeedEvent{Kind: domain.FeedMemberUpsert, RoomID: out.RoomID, Member: &out})
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleLeave(w http.ResponseWriter, r *http.Request) {
	gone := domain.RoomMembership{
		RoomID: domain.RoomID(r.PathValue("id")),
		UserID: domain.UserID(r.PathValue("user")),
	}
	removed, err := s.store.DeleteMember(r.Context(), gone.RoomID, gone.UserID)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if removed {
		s.logger.Info("member left", "room_id", gone.RoomID.String(), "user_id", gone.UserID.String())
		s.feed.Publish(domain.FeedEvent{Kind: domain.FeedMemberLeave, RoomID: gone.RoomID, Member: &gone})
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleListMessages(w http.ResponseWriter, r *http.Request) {
	room := domain.RoomID(r.PathValue("id"))
	if _, err := s.store.RoomByID(r.Context(), room); err != nil {
		s.fail(w, r, err)
		return
	}
	msgs, err := s.store.ListMessages(r.Context(), room)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, msgs)
}

func (s *Server) handleInsertMessage(w http.ResponseWriter, r *http.Request) {
	var msg domain.OutgoingMessage
	if !s.decode(w, r, &msg) {
		return
	}
	msg.RoomID = domain.RoomID(r.PathValue("id"))
	if err := validateOutgoing(msg); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	out, err := s.store.InsertMessage(r.Context(), msg)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.logger.Debug("message stored",
		"room_id", out.RoomID.String(), "message_id", out.ID.String(), "copies", len(out.Ciphertexts))
	s.feed.Publish(domain.FeedEvent{Kind: domain.FeedMessageInsert, RoomID: out.RoomID, Message: &out})
	writeJSON(w, http.StatusCreated, out)
}

func validateOutgoing(msg domain.OutgoingMessage) error {
	if msg.SenderUserID == "" {
		return errors.New("sender_user_id is required")
	}
	if len(msg.Ciphertexts) == 0 {
		return errors.New("at least one ciphertext is required")
	}
	seen := make(map[domain.UserID]bool, len(msg.Ciphertexts))
	for _, c := range msg.Ciphertexts {
		if c.RecipientUserID == "" || c.Ciphertext == "" || c.Nonce == "" {
			return errors.New("every ciphertext needs recipient_user_id, encrypted_content and nonce")
		}
		if seen[c.RecipientUserID] {
			return fmt.Errorf("duplicate ciphertext for %s", c.RecipientUserID)
		}
		seen[c.RecipientUserID] = true
	}
	return nil
}

// handleFeed upgrades to WebSocket and streams CBOR FeedEvents for one room.
// The subscription is registered before the upgrade completes so nothing
// published after the client's dial returns is missed.
func (s *Server) handleFeed(w http.ResponseWriter, r *http.Request) {
	room := domain.RoomID(r.PathValue("id"))
	if _, err := s.store.RoomByID(r.Context(), room); err != nil {
		s.fail(w, r, err)
		return
	}

	sub := s.feed.Subscribe(room)
	defer s.feed.Unsubscribe(sub)

	ws, err := websocket.Accept(w, r, nil)
	if err != nil {
		s.logger.Warn("feed upgrade failed", "room_id", room.String(), "error", err)
		return
	}
	defer ws.CloseNow()

	// The client never sends; CloseRead handles its close frame and cancels
	// ctx when the connection goes away.
	ctx := ws.CloseRead(r.Context())
	s.logger.Debug("feed subscriber connected",
		"room_id", room.String(), "subscribers", s.feed.Subscribers(room))

	for {
		select {
		case <-ctx.Done():
			return
		case <-sub.evicted:
			ws.Close(websocket.StatusPolicyViolation, "subscriber too slow")
			return
		case ev := <-sub.events:
			data, err := codec.Marshal(ev)
			if err != nil {
				s.logger.Error("encode feed event", "room_id", room.String(), "error", err)
				continue
			}
			if err := s.writeFrame(ctx, ws, data); err != nil {
				s.logger.Debug("feed write failed", "room_id", room.String(), "error", err)
				return
			}
		}
	}
}

func (s *Server) writeFrame(ctx context.Context, ws *websocket.Conn, data []byte) error {
	ctx, cancel := context.WithTimeout(ctx, s.writeTimeout)
	defer cancel()
	return ws.Write(ctx, websocket.MessageBinary, data)
}

func (s *Server) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	defer r.Body.Close()
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body: "+err.Error())
		return false
	}
	return true
}

func (s *Server) fail(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, domain.ErrRoomNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, domain.ErrRoomCodeTaken), errors.Is(err, domain.ErrMembershipConflict):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, context.Canceled):
		// Client went away; nothing useful to write.
	default:
		s.logger.Error("request failed", "method", r.Method, "path", r.URL.Path, "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// accessLog records method, path, status, bytes and duration per request.
func (s *Server) accessLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		s.logger.Info("http request",
			"method", r.Method,
			"path", r.URL.Path,
			"remote", r.RemoteAddr,
			"status", rec.status,
			"bytes", rec.bytes,
			"duration", time.Since(start),
		)
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
	bytes  int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func (r *statusRecorder) Write(b []byte) (int, error) {
	n, err := r.ResponseWriter.Write(b)
	r.bytes += n
	return n, err
}

// Hijack lets the WebSocket upgrade take over the connection.
func (r *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	hj, ok := r.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, errors.New("response writer does not support hijacking")
	}
	r.status = http.StatusSwitchingProtocols
	return hj.Hijack()
}

func (r *statusRecorder) Unwrap() http.ResponseWriter { return r.ResponseWriter }

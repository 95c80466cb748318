package relay

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"roomseal/internal/domain"
)

type HTTP struct {
	Base string
	HTTP *http.Client
}

func NewHTTP(base string) *HTTP {
	return &HTTP{Base: strings.TrimRight(base, "/"), HTTP: http.DefaultClient}
}

// statusMap translates specific response statuses of one call to errors.
type statusMap map[int]error

var notFound = statusMap{http.StatusNotFound: domain.ErrRoomNotFound}

func (c *HTTP) CreateRoom(
	ctx context.Context,
	name string,
	code domain.RoomCode,
	createdBy domain.UserID,
) (domain.Room, error) {
	in := struct {
		Name      string          `json:"name"`
		Code      domain.RoomCode `json:"code"`
		CreatedBy domain.UserID   `json:"created_by"`
	}{name, code, createdBy}

	var out domain.Room
	err := c.send(ctx, http.MethodPost, "/rooms", in, &out, statusMap{
		http.StatusConflict: domain.ErrRoomCodeTaken,
	})
	return out, err
}

func (c *HTTP) FetchRoomByCode(ctx context.Context, code domain.RoomCode) (domain.Room, error) {
	var out domain.Room
	err := c.getJSON(ctx, "/rooms?code="+url.QueryEscape(string(code)), &out, notFound)
	return out, err
}

func (c *HTTP) ListRooms(ctx context.Context, user domain.UserID) ([]domain.RoomSummary, error) {
	var out []domain.RoomSummary
	err := c.getJSON(ctx, "/rooms?user="+url.QueryEscape(string(user)), &out, nil)
	return out, err
}

func (c *HTTP) ListMembers(ctx context.Context, room domain.RoomID) ([]domain.RoomMembership, error) {
	var out []domain.RoomMembership
	err := c.getJSON(ctx, roomPath(room, "members"), &out, notFound)
	return out, err
}

func (c *HTTP) JoinRoom(ctx context.Context, member domain.RoomMembership) (domain.RoomMembership, error) {
	var out domain.RoomMembership
	err := c.send(ctx, http.MethodPost, roomPath(member.RoomID, "members"), member, &out, statusMap{
		http.StatusNotFound: domain.ErrRoomNotFound,
		http.StatusConflict: domain.ErrMembershipConflict,
	})
	return out, err
}

func (c *HTTP) LeaveRoom(ctx context.Context, room domain.RoomID, user domain.UserID) error {
	path := roomPath(room, "members") + "/" + url.PathEscape(string(user))
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, c.Base+path, nil)
	if err != nil {
		return err
	}
	return c.do(req, nil, notFound)
}

func (c *HTTP) PublishMember(ctx context.Context, member domain.RoomMembership) (domain.RoomMembership, error) {
	var out domain.RoomMembership
	path := roomPath(member.RoomID, "members") + "/" + url.PathEscape(string(member.UserID))
	err := c.send(ctx, http.MethodPut, path, member, &out, notFound)
	return out, err
}

func (c *HTTP) ListMessages(ctx context.Context, room domain.RoomID) ([]domain.Message, error) {
	var out []domain.Message
	err := c.getJSON(ctx, roomPath(room, "messages"), &out, notFound)
	return out, err
}

func (c *HTTP) InsertMessage(ctx context.Context, msg domain.OutgoingMessage) (domain.Message, error) {
	var out domain.Message
	err := c.send(ctx, http.MethodPost, roomPath(msg.RoomID, "messages"), msg, &out, notFound)
	return out, err
}

func roomPath(room domain.RoomID, sub string) string {
	return "/rooms/" + url.PathEscape(string(room)) + "/" + sub
}

func (c *HTTP) send(ctx context.Context, method, path string, in any, out any, codes statusMap) error {
	buf := new(bytes.Buffer)
	if err := json.NewEncoder(buf).Encode(in); err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, method, c.Base+path, buf)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(req, out, codes)
}

func (c *HTTP) getJSON(ctx context.Context, path string, out any, codes statusMap) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.Base+path, nil)
	if err != nil {
		return err
	}
	return c.do(req, out, codes)
}

func (c *HTTP) do(req *http.Request, out any, codes statusMap) error {
	resp, err := c.HTTP.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %s %s: %v", domain.ErrUnreachable, req.Method, req.URL.Path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode/100 != 2 {
		if mapped, ok := codes[resp.StatusCode]; ok {
			return mapped
		}
		return fmt.Errorf("relay %s %s: %s%s",
			strings.ToLower(req.Method), req.URL.Path, resp.Status, errorDetail(resp.Body))
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
			return fmt.Errorf("%w: %v", domain.ErrUnreachable, err)
		}
		return fmt.Errorf("relay %s %s: decode response: %w", strings.ToLower(req.Method), req.URL.Path, err)
	}
	return nil
}

// errorDetail extracts the {"error": ...} message of a failed response.
func errorDetail(body io.Reader) string {
	var e struct {
		Error string `json:"error"`
	}
	if err := json.NewDecoder(io.LimitReader(body, 4096)).Decode(&e); err != nil || e.Error == "" {
		return ""
	}
	return ": " + e.Error
}

var _ domain.RelayClient = (*HTTP)(nil)

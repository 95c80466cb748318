package room

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"roomseal/internal/domain"
	"roomseal/internal/invite"
)

// maxCodeAttempts bounds how many fresh codes Create tries before giving up.
const maxCodeAttempts = 5

// Service runs room flows for one local user.
type Service struct {
	relay   domain.RelayClient
	keys    domain.RoomKeyService
	members domain.MembershipService
	self    domain.Profile
	logger  *slog.Logger

	newCode func() (domain.RoomCode, error)
}

// New returns a room Service. A nil logger discards output.
func New(
	relay domain.RelayClient,
	keys domain.RoomKeyService,
	members domain.MembershipService,
	self domain.Profile,
	logger *slog.Logger,
) *Service {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Service{
		relay:   relay,
		keys:    keys,
		members: members,
		self:    self,
		logger:  logger,
		newCode: invite.GenerateCode,
	}
}

// WithCodeGenerator replaces the room code generator.
func (s *Service) WithCodeGenerator(gen func() (domain.RoomCode, error)) *Service {
	s.newCode = gen
	return s
}

// Create makes a room named name under a fresh code and joins it with a new
// room keypair. A code collision is retried with another code.
func (s *Service) Create(ctx context.Context, name string) (domain.Room, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return domain.Room{}, errors.New("room name is required")
	}

	var (
		room domain.Room
		err  error
	)
	for attempt := 1; attempt <= maxCodeAttempts; attempt++ {
		var code domain.RoomCode
		if code, err = s.newCode(); err != nil {
			return domain.Room{}, err
		}
		room, err = s.relay.CreateRoom(ctx, name, code, s.self.UserID)
		if !errors.Is(err, domain.ErrRoomCodeTaken) {
			break
		}
		s.logger.Debug("room code taken, retrying", "room_code", code.String(), "attempt", attempt)
	}
	if err != nil {
		return domain.Room{}, fmt.Errorf("create room: %w", err)
	}

	keyPair, err := s.keys.GetOrCreate(room.Code)
	if err != nil {
		return domain.Room{}, fmt.Errorf("create room: %w", err)
	}
	if _, err := s.relay.JoinRoom(ctx, s.membership(room.ID, keyPair)); err != nil {
		return domain.Room{}, fmt.Errorf("create room: join: %w", err)
	}
	s.logger.Info("room created", "room_id", room.ID.String(), "room_code", room.Code.String())
	return room, nil
}

// Join resolves input (a room code or an invite link), then joins the room
// with this device's keypair for it. Joining a room twice fails with
// domain.ErrMembershipConflict; the roster entry is still brought up to date
// with the local key so the caller can proceed to open the room.
func (s *Service) Join(ctx context.Context, input string) (domain.Room, error) {
	inv, err := invite.Resolve(input)
	if err != nil {
		return domain.Room{}, err
	}
	room, err := s.relay.FetchRoomByCode(ctx, inv.Code)
	if err != nil {
		return domain.Room{}, fmt.Errorf("join %s: %w", inv.Code, err)
	}
	keyPair, err := s.keys.GetOrCreate(room.Code)
	if err != nil {
		return domain.Room{}, fmt.Errorf("join %s: %w", room.Code, err)
	}

	_, err = s.relay.JoinRoom(ctx, s.membership(room.ID, keyPair))
	if errors.Is(err, domain.ErrMembershipConflict) {
		members, listErr := s.members.ListMembers(ctx, room.ID)
		if listErr == nil {
			_, listErr = s.members.EnsurePublished(ctx, room.ID, s.self, keyPair, members)
		}
		if listErr != nil {
			s.logger.Warn("refresh of existing membership failed", "room_id", room.ID.String(), "error", listErr)
		}
		return room, domain.ErrMembershipConflict
	}
	if err != nil {
		return domain.Room{}, fmt.Errorf("join %s: %w", room.Code, err)
	}
	s.logger.Info("joined room", "room_id", room.ID.String(), "room_code", room.Code.String())
	return room, nil
}

// Find looks a room up by code (case-insensitive).
func (s *Service) Find(ctx context.Context, input string) (domain.Room, error) {
	inv, err := invite.Resolve(input)
	if err != nil {
		return domain.Room{}, err
	}
	return s.relay.FetchRoomByCode(ctx, inv.Code)
}

// List returns the rooms the local user belongs to.
func (s *Service) List(ctx context.Context) ([]domain.RoomSummary, error) {
	rooms, err := s.relay.ListRooms(ctx, s.self.UserID)
	if err != nil {
		return nil, fmt.Errorf("list rooms: %w", err)
	}
	return rooms, nil
}

// Leave removes the local user from the room and deletes the local keypair
// for it. Rejoining later generates a new keypair.
func (s *Service) Leave(ctx context.Context, input string) (domain.Room, error) {
	room, err := s.Find(ctx, input)
	if err != nil {
		return domain.Room{}, fmt.Errorf("leave: %w", err)
	}
	if err := s.relay.LeaveRoom(ctx, room.ID, s.self.UserID); err != nil {
		return domain.Room{}, fmt.Errorf("leave %s: %w", room.Code, err)
	}
	if err := s.keys.Forget(room.Code); err != nil {
		return room, fmt.Errorf("leave %s: %w", room.Code, err)
	}
	s.logger.Info("left room", "room_id", room.ID.String(), "room_code", room.Code.String())
	return room, nil
}

// Rekey replaces the local keypair for the room and publishes the new public
// key. Messages sealed to the old key become undecryptable for this device.
func (s *Service) Rekey(ctx context.Context, input string) (domain.Room, domain.KeyPair, error) {
	room, err := s.Find(ctx, input)
	if err != nil {
		return domain.Room{}, domain.KeyPair{}, fmt.Errorf("rekey: %w", err)
	}
	keyPair, err := s.keys.Regenerate(room.Code)
	if err != nil {
		return domain.Room{}, domain.KeyPair{}, fmt.Errorf("rekey %s: %w", room.Code, err)
	}
	err = s.members.PublishSelf(ctx, room.ID, s.self.UserID, s.self.DisplayName, keyPair.PublicKey)
	if err != nil {
		return room, keyPair, fmt.Errorf("rekey %s: publish: %w", room.Code, err)
	}
	return room, keyPair, nil
}

// InviteLink returns the shareable join link for room.
func (s *Service) InviteLink(origin string, room domain.Room) string {
	return invite.Encode(origin, room.Code, room.Name)
}

func (s *Service) membership(room domain.RoomID, keyPair domain.KeyPair) domain.RoomMembership {
	return domain.RoomMembership{
		RoomID:      room,
		UserID:      s.self.UserID,
		DisplayName: s.self.DisplayName,
		PublicKey:   keyPair.PublicKey,
	}
}

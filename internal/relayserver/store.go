package relayserver

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"zombiezen.com/go/sqlite"
	"zombiezen.com/go/sqlite/sqlitex"

	"roomseal/internal/domain"
)

const schema = `
	CREATE TABLE IF NOT EXISTS rooms (
		id         TEXT PRIMARY KEY,
		name       TEXT NOT NULL,
		room_code  TEXT NOT NULL UNIQUE,
		created_by TEXT NOT NULL,
		created_at INTEGER NOT NULL
	);

	CREATE TABLE IF NOT EXISTS room_members (
		room_id    TEXT NOT NULL,
		user_id    TEXT NOT NULL,
		user_name  TEXT NOT NULL DEFAULT '',
		public_key TEXT NOT NULL,
		joined_at  INTEGER NOT NULL,
		PRIMARY KEY (room_id, user_id)
	);
	CREATE INDEX IF NOT EXISTS idx_room_members_user ON room_members(user_id);

	CREATE TABLE IF NOT EXISTS messages (
		id             TEXT PRIMARY KEY,
		room_id        TEXT NOT NULL,
		sender_user_id TEXT NOT NULL,
		sender_name    TEXT NOT NULL DEFAULT '',
		created_at     INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_messages_room_time ON messages(room_id, created_at);

	CREATE TABLE IF NOT EXISTS message_ciphertexts (
		message_id        TEXT NOT NULL,
		recipient_user_id TEXT NOT NULL,
		encrypted_content TEXT NOT NULL,
		nonce             TEXT NOT NULL,
		PRIMARY KEY (message_id, recipient_user_id)
	);
`

// Store persists rooms, memberships and messages in SQLite. Timestamps are
// stored as Unix nanoseconds so ordering by created_at is exact.
type Store struct {
	pool   *sqlitex.Pool
	logger *slog.Logger
	now    func() time.Time
}

// StoreConfig holds the parameters for opening a Store.
type StoreConfig struct {
	// Path is the SQLite database file. It is created if missing.
	Path string

	// PoolSize is the number of connections. Defaults to 4.
	PoolSize int

	// Logger receives operational messages. Nil discards them.
	Logger *slog.Logger

	// Now overrides the clock used for created_at and joined_at.
	Now func() time.Time
}

// OpenStore opens (and if needed creates) the relay database.
func OpenStore(cfg StoreConfig) (*Store, error) {
	if cfg.Path == "" {
		return nil, fmt.Errorf("relay store: Path is required")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	poolSize := cfg.PoolSize
	if poolSize <= 0 {
		poolSize = 4
	}

	pool, err := sqlitex.NewPool(cfg.Path, sqlitex.PoolOptions{
		PoolSize:    poolSize,
		PrepareConn: prepareConnection,
	})
	if err != nil {
		return nil, fmt.Errorf("relay store: opening %s: %w", cfg.Path, err)
	}

	s := &Store{pool: pool, logger: logger, now: now}
	if err := s.migrate(); err != nil {
		pool.Close()
		return nil, err
	}
	logger.Info("relay store opened", "path", cfg.Path, "pool_size", poolSize)
	return s, nil
}

func prepareConnection(conn *sqlite.Conn) error {
	// WAL mode: concurrent readers, single writer, no reader blocking.
	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA temp_store=MEMORY",
	}
	for _, pragma := range pragmas {
		if err := sqlitex.ExecuteTransient(conn, pragma, nil); err != nil {
			return fmt.Errorf("relay store: %s: %w", pragma, err)
		}
	}
	return nil
}

func (s *Store) migrate() error {
	conn, err := s.pool.Take(context.Background())
	if err != nil {
		return fmt.Errorf("relay store: migrate: %w", err)
	}
	defer s.pool.Put(conn)
	if err := sqlitex.ExecuteScript(conn, schema, nil); err != nil {
		return fmt.Errorf("relay store: creating schema: %w", err)
	}
	return nil
}

// Close closes the connection pool.
func (s *Store) Close() error {
	if err := s.pool.Close(); err != nil {
		return fmt.Errorf("relay store: close: %w", err)
	}
	return nil
}

func (s *Store) take(ctx context.Context) (*sqlite.Conn, error) {
	conn, err := s.pool.Take(ctx)
	if err != nil {
		return nil, fmt.Errorf("relay store: take: %w", err)
	}
	return conn, nil
}

// CreateRoom inserts a room with a fresh id. The code is stored upper-case;
// a code already in use fails with domain.ErrRoomCodeTaken.
func (s *Store) CreateRoom(ctx context.Context, name string, code domain.RoomCode, createdBy domain.UserID) (domain.Room, error) {
	conn, err := s.take(ctx)
	if err != nil {
		return domain.Room{}, err
	}
	defer s.pool.Put(conn)

	room := domain.Room{
		ID:        domain.RoomID(uuid.NewString()),
		Name:      name,
		Code:      domain.RoomCode(strings.ToUpper(string(code))),
		CreatedBy: createdBy,
		CreatedAt: s.now().UTC(),
	}
	err = sqlitex.Execute(conn,
		"INSERT INTO rooms (id, name, room_code, created_by, created_at) VALUES (?, ?, ?, ?, ?)",
		&sqlitex.ExecOptions{Args: []any{
			string(room.ID), room.Name, string(room.Code), string(room.CreatedBy), room.CreatedAt.UnixNano(),
		}})
	if isConstraint(err) {
		return domain.Room{}, domain.ErrRoomCodeTaken
	}
	if err != nil {
		return domain.Room{}, fmt.Errorf("relay store: insert room: %w", err)
	}
	return room, nil
}

// RoomByCode looks a room up by code, case-insensitively.
func (s *Store) RoomByCode(ctx context.Context, code domain.RoomCode) (domain.Room, error) {
	return s.findRoom(ctx, "room_code = ?", strings.ToUpper(string(code)))
}

// RoomByID looks a room up by id.
func (s *Store) RoomByID(ctx context.Context, id domain.RoomID) (domain.Room, error) {
	return s.findRoom(ctx, "id = ?", string(id))
}

func (s *Store) findRoom(ctx context.Context, where string, arg string) (domain.Room, error) {
	conn, err := s.take(ctx)
	if err != nil {
		return domain.Room{}, err
	}
	defer s.pool.Put(conn)

	var (
		room  domain.Room
		found bool
	)
	err = sqlitex.Execute(conn,
		"SELECT id, name, room_code, created_by, created_at FROM rooms WHERE "+where,
		&sqlitex.ExecOptions{
			Args: []any{arg},
			ResultFunc: func(stmt *sqlite.Stmt) error {
				room = scanRoom(stmt)
				found = true
				return nil
			},
		})
	if err != nil {
		return domain.Room{}, fmt.Errorf("relay store: select room: %w", err)
	}
	if !found {
		return domain.Room{}, domain.ErrRoomNotFound
	}
	return room, nil
}

// RoomsForUser lists the rooms user belongs to, most recently joined first.
func (s *Store) RoomsForUser(ctx context.Context, user domain.UserID) ([]domain.RoomSummary, error) {
	conn, err := s.take(ctx)
	if err != nil {
		return nil, err
	}
	defer s.pool.Put(conn)

	out := []domain.RoomSummary{}
	err = sqlitex.Execute(conn, `
		SELECT r.id, r.name, r.room_code, r.created_by, r.created_at, m.joined_at
		FROM rooms r JOIN room_members m ON m.room_id = r.id
		WHERE m.user_id = ?
		ORDER BY m.joined_at DESC, r.rowid DESC`,
		&sqlitex.ExecOptions{
			Args: []any{string(user)},
			ResultFunc: func(stmt *sqlite.Stmt) error {
				room := scanRoom(stmt)
				out = append(out, domain.RoomSummary{
					Room:      room,
					JoinedAt:  fromNanos(stmt.ColumnInt64(5)),
					IsCreator: room.CreatedBy == user,
				})
				return nil
			},
		})
	if err != nil {
		return nil, fmt.Errorf("relay store: list rooms: %w", err)
	}
	return out, nil
}

// ListMembers returns the roster of room ordered by join time.
func (s *Store) ListMembers(ctx context.Context, room domain.RoomID) ([]domain.RoomMembership, error) {
	conn, err := s.take(ctx)
	if err != nil {
		return nil, err
	}
	defer s.pool.Put(conn)

	out := []domain.RoomMembership{}
	err = sqlitex.Execute(conn, `
		SELECT room_id, user_id, user_name, public_key, joined_at
		FROM room_members WHERE room_id = ?
		ORDER BY joined_at, rowid`,
		&sqlitex.ExecOptions{
			Args: []any{string(room)},
			ResultFunc: func(stmt *sqlite.Stmt) error {
				out = append(out, scanMember(stmt))
				return nil
			},
		})
	if err != nil {
		return nil, fmt.Errorf("relay store: list members: %w", err)
	}
	return out, nil
}

// InsertMember adds a membership. An existing (room, user) row fails with
// domain.ErrMembershipConflict and a missing room with domain.ErrRoomNotFound.
func (s *Store) InsertMember(ctx context.Context, m domain.RoomMembership) (_ domain.RoomMembership, err error) {
	conn, err := s.take(ctx)
	if err != nil {
		return domain.RoomMembership{}, err
	}
	defer s.pool.Put(conn)

	endTransaction, err := sqlitex.ImmediateTransaction(conn)
	if err != nil {
		return domain.RoomMembership{}, fmt.Errorf("relay store: begin transaction: %w", err)
	}
	defer endTransaction(&err)

	if err := roomExists(conn, m.RoomID); err != nil {
		return domain.RoomMembership{}, err
	}
	m.JoinedAt = s.now().UTC()
	err = sqlitex.Execute(conn, `
		INSERT INTO room_members (room_id, user_id, user_name, public_key, joined_at)
		VALUES (?, ?, ?, ?, ?)`,
		&sqlitex.ExecOptions{Args: []any{
			string(m.RoomID), string(m.UserID), m.DisplayName, m.PublicKey, m.JoinedAt.UnixNano(),
		}})
	if isConstraint(err) {
		return domain.RoomMembership{}, domain.ErrMembershipConflict
	}
	if err != nil {
		return domain.RoomMembership{}, fmt.Errorf("relay store: insert member: %w", err)
	}
	return m, nil
}

// DeleteMember removes the (room, user) membership and reports whether it
// existed. Messages the user sent are kept.
func (s *Store) DeleteMember(ctx context.Context, room domain.RoomID, user domain.UserID) (_ bool, err error) {
	conn, err := s.take(ctx)
	if err != nil {
		return false, err
	}
	defer s.pool.Put(conn)

	endTransaction, err := sqlitex.ImmediateTransaction(conn)
	if err != nil {
		return false, fmt.Errorf("relay store: begin transaction: %w", err)
	}
	defer endTransaction(&err)

	if err := roomExists(conn, room); err != nil {
		return false, err
	}
	err = sqlitex.Execute(conn, "DELETE FROM room_members WHERE room_id = ? AND user_id = ?",
		&sqlitex.ExecOptions{Args: []any{string(room), string(user)}})
	if err != nil {
		return false, fmt.Errorf("relay store: delete member: %w", err)
	}
	return conn.Changes() > 0, nil
}

// UpsertMember inserts the membership or replaces the public key and display
// name of the existing row. The original join time is kept.
func (s *Store) UpsertMember(ctx context.Context, m domain.RoomMembership) (_ domain.RoomMembership, err error) {
	conn, err := s.take(ctx)
	if err != nil {
		return domain.RoomMembership{}, err
	}
	defer s.pool.Put(conn)

	endTransaction, err := sqlitex.ImmediateTransaction(conn)
	if err != nil {
		return domain.RoomMembership{}, fmt.Errorf("relay store: begin transaction: %w", err)
	}
	defer endTransaction(&err)

	if err := roomExists(conn, m.RoomID); err != nil {
		return domain.RoomMembership{}, err
	}
	err = sqlitex.Execute(conn, `
		INSERT INTO room_members (room_id, user_id, user_name, public_key, joined_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (room_id, user_id) DO UPDATE SET
			public_key = excluded.public_key,
			user_name = CASE WHEN excluded.user_name = '' THEN user_name ELSE excluded.user_name END`,
		&sqlitex.ExecOptions{Args: []any{
			string(m.RoomID), string(m.UserID), m.DisplayName, m.PublicKey, s.now().UTC().UnixNano(),
		}})
	if err != nil {
		return domain.RoomMembership{}, fmt.Errorf("relay store: upsert member: %w", err)
	}

	var (
		out   domain.RoomMembership
		found bool
	)
	err = sqlitex.Execute(conn, `
		SELECT room_id, user_id, user_name, public_key, joined_at
		FROM room_members WHERE room_id = ? AND user_id = ?`,
		&sqlitex.ExecOptions{
			Args: []any{string(m.RoomID), string(m.UserID)},
			ResultFunc: func(stmt *sqlite.Stmt) error {
				out = scanMember(stmt)
				found = true
				return nil
			},
		})
	if err != nil {
		return domain.RoomMembership{}, fmt.Errorf("relay store: select member: %w", err)
	}
	if !found {
		return domain.RoomMembership{}, errors.New("relay store: upserted member vanished")
	}
	return out, nil
}

// InsertMessage stores msg with every recipient copy in one transaction and
// returns it with its assigned id and created_at.
func (s *Store) InsertMessage(ctx context.Context, msg domain.OutgoingMessage) (_ domain.Message, err error) {
	conn, err := s.take(ctx)
	if err != nil {
		return domain.Message{}, err
	}
	defer s.pool.Put(conn)

	endTransaction, err := sqlitex.ImmediateTransaction(conn)
	if err != nil {
		return domain.Message{}, fmt.Errorf("relay store: begin transaction: %w", err)
	}
	defer endTransaction(&err)

	if err := roomExists(conn, msg.RoomID); err != nil {
		return domain.Message{}, err
	}

	out := domain.Message{
		ID:           domain.MessageID(uuid.NewString()),
		RoomID:       msg.RoomID,
		SenderUserID: msg.SenderUserID,
		SenderName:   msg.SenderName,
		Ciphertexts:  msg.Ciphertexts,
		CreatedAt:    s.now().UTC(),
	}
	err = sqlitex.Execute(conn, `
		INSERT INTO messages (id, room_id, sender_user_id, sender_name, created_at)
		VALUES (?, ?, ?, ?, ?)`,
		&sqlitex.ExecOptions{Args: []any{
			string(out.ID), string(out.RoomID), string(out.SenderUserID), out.SenderName, out.CreatedAt.UnixNano(),
		}})
	if err != nil {
		return domain.Message{}, fmt.Errorf("relay store: insert message: %w", err)
	}
	for _, c := range msg.Ciphertexts {
		err = sqlitex.Execute(conn, `
			INSERT INTO message_ciphertexts (message_id, recipient_user_id, encrypted_content, nonce)
			VALUES (?, ?, ?, ?)`,
			&sqlitex.ExecOptions{Args: []any{
				string(out.ID), string(c.RecipientUserID), c.Ciphertext, c.Nonce,
			}})
		if err != nil {
			return domain.Message{}, fmt.Errorf("relay store: insert ciphertext for %s: %w", c.RecipientUserID, err)
		}
	}
	return out, nil
}

// ListMessages returns every message of room ascending by created_at, each
// with all of its recipient copies.
func (s *Store) ListMessages(ctx context.Context, room domain.RoomID) ([]domain.Message, error) {
	conn, err := s.take(ctx)
	if err != nil {
		return nil, err
	}
	defer s.pool.Put(conn)

	out := []domain.Message{}
	index := make(map[domain.MessageID]int)
	err = sqlitex.Execute(conn, `
		SELECT id, room_id, sender_user_id, sender_name, created_at
		FROM messages WHERE room_id = ?
		ORDER BY created_at, rowid`,
		&sqlitex.ExecOptions{
			Args: []any{string(room)},
			ResultFunc: func(stmt *sqlite.Stmt) error {
				m := domain.Message{
					ID:           domain.MessageID(stmt.ColumnText(0)),
					RoomID:       domain.RoomID(stmt.ColumnText(1)),
					SenderUserID: domain.UserID(stmt.ColumnText(2)),
					SenderName:   stmt.ColumnText(3),
					CreatedAt:    fromNanos(stmt.ColumnInt64(4)),
				}
				index[m.ID] = len(out)
				out = append(out, m)
				return nil
			},
		})
	if err != nil {
		return nil, fmt.Errorf("relay store: list messages: %w", err)
	}

	err = sqlitex.Execute(conn, `
		SELECT c.message_id, c.recipient_user_id, c.encrypted_content, c.nonce
		FROM message_ciphertexts c JOIN messages m ON m.id = c.message_id
		WHERE m.room_id = ?
		ORDER BY c.rowid`,
		&sqlitex.ExecOptions{
			Args: []any{string(room)},
			ResultFunc: func(stmt *sqlite.Stmt) error {
				i, ok := index[domain.MessageID(stmt.ColumnText(0))]
				if !ok {
					return nil
				}
				out[i].Ciphertexts = append(out[i].Ciphertexts, domain.RecipientCiphertext{
					RecipientUserID: domain.UserID(stmt.ColumnText(1)),
					Sealed: domain.Sealed{
						Ciphertext: stmt.ColumnText(2),
						Nonce:      stmt.ColumnText(3),
					},
				})
				return nil
			},
		})
	if err != nil {
		return nil, fmt.Errorf("relay store: list ciphertexts: %w", err)
	}
	return out, nil
}

func roomExists(conn *sqlite.Conn, id domain.RoomID) error {
	found := false
	err := sqlitex.Execute(conn, "SELECT 1 FROM rooms WHERE id = ?", &sqlitex.ExecOptions{
		Args: []any{string(id)},
		ResultFunc: func(*sqlite.Stmt) error {
			found = true
			return nil
		},
	})
	if err != nil {
		return fmt.Errorf("relay store: select room: %w", err)
	}
	if !found {
		return domain.ErrRoomNotFound
	}
	return nil
}

func scanRoom(stmt *sqlite.Stmt) domain.Room {
	return domain.Room{
		ID:        domain.RoomID(stmt.ColumnText(0)),
		Name:      stmt.ColumnText(1),
		Code:      domain.RoomCode(stmt.ColumnText(2)),
		CreatedBy: domain.UserID(stmt.ColumnText(3)),
		CreatedAt: fromNanos(stmt.ColumnInt64(4)),
	}
}

func scanMember(stmt *sqlite.Stmt) domain.RoomMembership {
	return domain.RoomMembership{
		RoomID:      domain.RoomID(stmt.ColumnText(0)),
		UserID:      domain.UserID(stmt.ColumnText(1)),
		DisplayName: stmt.ColumnText(2),
		PublicKey:   stmt.ColumnText(3),
		JoinedAt:    fromNanos(stmt.ColumnInt64(4)),
	}
}

func fromNanos(n int64) time.Time { return time.Unix(0, n).UTC() }

func isConstraint(err error) bool {
	return err != nil && sqlite.ErrCode(err).ToPrimary() == sqlite.ResultConstraint
}

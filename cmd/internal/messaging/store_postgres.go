package messaging

import (
	"context"
	"encoding/json"
	"errors"
	"regexp"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresStore is a Store backed by PostgreSQL.
//
// Ownership model:
// - PostgresStore does NOT own the pgx pool. The caller must close the pool.
// - Close() is therefore a no-op.
//
// Concurrency model:
//   - CreateMessage takes a per-conversation transactional advisory lock so
//     message insertion order matches call-arrival order as serialized here.
//   - Per-user history writes are plain last-write-wins updates; a lost
//     eviction under a rare race only biases the advisory recency window.
type PostgresStore struct {
	pool   *pgxpool.Pool
	schema string
}

// PostgresOption configures PostgresStore behavior.
type PostgresOption func(*PostgresStore) error

// WithSchema sets the DB schema used by this store (default: "relay").
// The schema name is validated and safely quoted in queries.
func WithSchema(schema string) PostgresOption {
	return func(s *PostgresStore) error {
		schema = strings.TrimSpace(schema)
		if schema == "" {
			return errors.New("messaging: empty schema")
		}
		if !isValidPGIdent(schema) {
			return errors.New("messaging: invalid schema identifier")
		}
		s.schema = schema
		return nil
	}
}

// NewPostgresStore constructs a Postgres-backed Store.
func NewPostgresStore(pool *pgxpool.Pool, opts ...PostgresOption) (*PostgresStore, error) {
	st := &PostgresStore{
		pool:   pool,
		schema: "relay",
	}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		if err := opt(st); err != nil {
			return nil, err
		}
	}
	if st.pool == nil {
		return nil, errors.New("messaging: nil pool")
	}
	return st, nil
}

// Close is a no-op because the pool is owned by the caller.
func (s *PostgresStore) Close() error { return nil }

const userColumns = `id, name, email,
       COALESCE(seen_message_ids, '{}'), COALESCE(conversation_ids, '{}'),
       COALESCE(push_subscriptions, '[]'::jsonb)`

// GetUser returns the user record for id.
func (s *PostgresStore) GetUser(ctx context.Context, id string) (User, error) {
	const op = "store.GetUser"

	row := s.pool.QueryRow(ctx,
		`SELECT `+userColumns+` FROM `+pgIdent(s.schema, "users")+` WHERE id = $1`, id)

	u, err := scanUser(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return User{}, NotFoundError{Op: op, Resource: "user", ID: id}
	}
	if err != nil {
		return User{}, StoreError{Op: op, Err: err}
	}
	return u, nil
}

// GetUsers returns the records for the given ids, in argument order.
// Unknown ids are skipped rather than failing the whole read.
func (s *PostgresStore) GetUsers(ctx context.Context, ids []string) ([]User, error) {
	const op = "store.GetUsers"

	if len(ids) == 0 {
		return nil, nil
	}

	rows, err := s.pool.Query(ctx,
		`SELECT `+userColumns+` FROM `+pgIdent(s.schema, "users")+` WHERE id = ANY($1)`, ids)
	if err != nil {
		return nil, StoreError{Op: op, Err: err}
	}
	defer rows.Close()

	byID := make(map[string]User, len(ids))
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, StoreError{Op: op, Err: err}
		}
		byID[u.ID] = u
	}
	if err := rows.Err(); err != nil {
		return nil, StoreError{Op: op, Err: err}
	}

	out := make([]User, 0, len(ids))
	for _, id := range ids {
		if u, ok := byID[id]; ok {
			out = append(out, u)
		}
	}
	return out, nil
}

const conversationColumns = `id, COALESCE(name, ''), is_group,
       COALESCE(participant_ids, '{}'), COALESCE(message_ids, '{}'),
       last_message_at, created_at`

// GetConversation returns the conversation record for id.
func (s *PostgresStore) GetConversation(ctx context.Context, id string) (Conversation, error) {
	const op = "store.GetConversation"

	row := s.pool.QueryRow(ctx,
		`SELECT `+conversationColumns+` FROM `+pgIdent(s.schema, "conversations")+` WHERE id = $1`, id)

	c, err := scanConversation(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return Conversation{}, NotFoundError{Op: op, Resource: "conversation", ID: id}
	}
	if err != nil {
		return Conversation{}, StoreError{Op: op, Err: err}
	}
	return c, nil
}

// FindDirectConversation looks up an existing 1:1 conversation by comparing
// the stored participant list against both orderings of the pair.
func (s *PostgresStore) FindDirectConversation(ctx context.Context, userA, userB string) (Conversation, bool, error) {
	const op = "store.FindDirectConversation"

	row := s.pool.QueryRow(ctx,
		`SELECT `+conversationColumns+`
		   FROM `+pgIdent(s.schema, "conversations")+`
		  WHERE NOT is_group
		    AND (participant_ids = $1::text[] OR participant_ids = $2::text[])
		  LIMIT 1`,
		[]string{userA, userB}, []string{userB, userA},
	)

	c, err := scanConversation(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return Conversation{}, false, nil
	}
	if err != nil {
		return Conversation{}, false, StoreError{Op: op, Err: err}
	}
	return c, true, nil
}

// CreateConversation creates a conversation record.
func (s *PostgresStore) CreateConversation(ctx context.Context, in CreateConversationInput) (Conversation, error) {
	const op = "store.CreateConversation"

	now := in.Now
	if now.IsZero() {
		now = time.Now().UTC()
	}

	id, err := NewID(now)
	if err != nil {
		return Conversation{}, StoreError{Op: op, Err: err}
	}

	if _, err := s.pool.Exec(ctx,
		`INSERT INTO `+pgIdent(s.schema, "conversations")+`
		     (id, name, is_group, participant_ids, message_ids, last_message_at, created_at)
		 VALUES ($1, NULLIF($2, ''), $3, $4, '{}', $5, $5)`,
		id, in.Name, in.IsGroup, in.ParticipantIDs, now,
	); err != nil {
		return Conversation{}, StoreError{Op: op, Err: err}
	}

	return Conversation{
		ID:             id,
		Name:           in.Name,
		IsGroup:        in.IsGroup,
		ParticipantIDs: in.ParticipantIDs,
		LastMessageAt:  now,
		CreatedAt:      now,
	}, nil
}

const messageColumns = `id, conversation_id, sender_id,
       COALESCE(body, ''), COALESCE(image_url, ''), message_order,
       COALESCE(seen_by, '{}'), created_at`

// GetMessage returns the message record for id.
func (s *PostgresStore) GetMessage(ctx context.Context, id string) (Message, error) {
	const op = "store.GetMessage"

	row := s.pool.QueryRow(ctx,
		`SELECT `+messageColumns+` FROM `+pgIdent(s.schema, "messages")+` WHERE id = $1`, id)

	m, err := scanMessage(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return Message{}, NotFoundError{Op: op, Resource: "message", ID: id}
	}
	if err != nil {
		return Message{}, StoreError{Op: op, Err: err}
	}
	return m, nil
}

// CreateMessage inserts a message and appends it to the parent conversation's
// message sequence inside one transaction, serialized per conversation.
func (s *PostgresStore) CreateMessage(ctx context.Context, in CreateMessageInput) (Message, error) {
	const op = "store.CreateMessage"

	now := in.Now
	if now.IsZero() {
		now = time.Now().UTC()
	}

	id, err := NewID(now)
	if err != nil {
		return Message{}, StoreError{Op: op, Err: err}
	}

	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{
		IsoLevel:   pgx.ReadCommitted,
		AccessMode: pgx.ReadWrite,
	})
	if err != nil {
		return Message{}, StoreError{Op: op, Err: err}
	}
	defer func() { _ = tx.Rollback(ctx) }()

	// Serialize all message appends per conversation so insertion order
	// reflects call-arrival order as observed here.
	if _, err := tx.Exec(ctx,
		`SELECT pg_advisory_xact_lock(hashtextextended($1, 0))`, in.ConversationID); err != nil {
		return Message{}, StoreError{Op: op, Err: err}
	}

	var one int
	err = tx.QueryRow(ctx,
		`SELECT 1 FROM `+pgIdent(s.schema, "conversations")+` WHERE id = $1`, in.ConversationID,
	).Scan(&one)
	if errors.Is(err, pgx.ErrNoRows) {
		return Message{}, NotFoundError{Op: op, Resource: "conversation", ID: in.ConversationID}
	}
	if err != nil {
		return Message{}, StoreError{Op: op, Err: err}
	}

	if _, err := tx.Exec(ctx,
		`INSERT INTO `+pgIdent(s.schema, "messages")+`
		     (id, conversation_id, sender_id, body, image_url, message_order, seen_by, created_at)
		 VALUES ($1, $2, $3, NULLIF($4, ''), NULLIF($5, ''), $6, $7, $8)`,
		id, in.ConversationID, in.SenderID, in.Body, in.ImageURL, in.MessageOrder,
		[]string{in.SenderID}, now,
	); err != nil {
		return Message{}, StoreError{Op: op, Err: err}
	}

	if _, err := tx.Exec(ctx,
		`UPDATE `+pgIdent(s.schema, "conversations")+`
		    SET message_ids = array_append(COALESCE(message_ids, '{}'), $2)
		  WHERE id = $1`,
		in.ConversationID, id,
	); err != nil {
		return Message{}, StoreError{Op: op, Err: err}
	}

	if err := tx.Commit(ctx); err != nil {
		return Message{}, StoreError{Op: op, Err: err}
	}

	return Message{
		ID:             id,
		ConversationID: in.ConversationID,
		SenderID:       in.SenderID,
		Body:           in.Body,
		ImageURL:       in.ImageURL,
		MessageOrder:   in.MessageOrder,
		SeenBy:         []string{in.SenderID},
		CreatedAt:      now,
	}, nil
}

// UpdateMessageSeenBy unions userID into the message's seen set.
// The union happens in SQL so concurrent acks cannot lose entries.
func (s *PostgresStore) UpdateMessageSeenBy(ctx context.Context, messageID, userID string) (Message, error) {
	const op = "store.UpdateMessageSeenBy"

	row := s.pool.QueryRow(ctx,
		`UPDATE `+pgIdent(s.schema, "messages")+`
		    SET seen_by = CASE
		                    WHEN COALESCE(seen_by, '{}') @> ARRAY[$2] THEN seen_by
		                    ELSE array_append(COALESCE(seen_by, '{}'), $2)
		                  END
		  WHERE id = $1
		RETURNING `+messageColumns,
		messageID, userID,
	)

	m, err := scanMessage(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return Message{}, NotFoundError{Op: op, Resource: "message", ID: messageID}
	}
	if err != nil {
		return Message{}, StoreError{Op: op, Err: err}
	}
	return m, nil
}

// UpdateUserHistory replaces one of the user's bounded recency lists.
func (s *PostgresStore) UpdateUserHistory(ctx context.Context, userID string, field HistoryField, list []string) error {
	const op = "store.UpdateUserHistory"

	var column string
	switch field {
	case HistorySeenMessages:
		column = "seen_message_ids"
	case HistoryConversations:
		column = "conversation_ids"
	default:
		return ValidationError{Op: op, Field: "field", Msg: "unknown history field"}
	}

	tag, err := s.pool.Exec(ctx,
		`UPDATE `+pgIdent(s.schema, "users")+` SET `+column+` = $2 WHERE id = $1`,
		userID, list,
	)
	if err != nil {
		return StoreError{Op: op, Err: err}
	}
	if tag.RowsAffected() == 0 {
		return NotFoundError{Op: op, Resource: "user", ID: userID}
	}
	return nil
}

// UpdateConversationLastMessageAt stamps the conversation's last activity.
func (s *PostgresStore) UpdateConversationLastMessageAt(ctx context.Context, id string, ts time.Time) error {
	const op = "store.UpdateConversationLastMessageAt"

	tag, err := s.pool.Exec(ctx,
		`UPDATE `+pgIdent(s.schema, "conversations")+` SET last_message_at = $2 WHERE id = $1`,
		id, ts,
	)
	if err != nil {
		return StoreError{Op: op, Err: err}
	}
	if tag.RowsAffected() == 0 {
		return NotFoundError{Op: op, Resource: "conversation", ID: id}
	}
	return nil
}

func scanUser(row pgx.Row) (User, error) {
	var (
		u    User
		subs []byte
	)
	if err := row.Scan(&u.ID, &u.Name, &u.Email, &u.SeenMessageIDs, &u.ConversationIDs, &subs); err != nil {
		return User{}, err
	}
	if len(subs) > 0 {
		if err := json.Unmarshal(subs, &u.PushSubscriptions); err != nil {
			return User{}, err
		}
	}
	return u, nil
}

func scanConversation(row pgx.Row) (Conversation, error) {
	var c Conversation
	if err := row.Scan(&c.ID, &c.Name, &c.IsGroup, &c.ParticipantIDs, &c.MessageIDs, &c.LastMessageAt, &c.CreatedAt); err != nil {
		return Conversation{}, err
	}
	return c, nil
}

func scanMessage(row pgx.Row) (Message, error) {
	var m Message
	if err := row.Scan(&m.ID, &m.ConversationID, &m.SenderID, &m.Body, &m.ImageURL, &m.MessageOrder, &m.SeenBy, &m.CreatedAt); err != nil {
		return Message{}, err
	}
	return m, nil
}

var pgIdentRE = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

func isValidPGIdent(s string) bool {
	return pgIdentRE.MatchString(s)
}

func pgIdent(schema, table string) string {
	// pgx.Identifier safely quotes identifiers, preventing SQL injection.
	return pgx.Identifier{schema, table}.Sanitize()
}

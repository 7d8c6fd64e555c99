package conversation

import (
	"context"
	"database/sql"
	"errors"

	"mijob/internal/db"

	"github.com/jmoiron/sqlx"
)

var ErrConversationNotFound = errors.New("conversation not found")

const (
	convColumns    = `id, initiator_id, participant_id, mission_id, created_at, last_message_at`
	messageColumns = `id, conversation_id, sender_id, body, read_at, created_at`

	defaultMessagePage = 50
	maxMessagePage     = 200
)

type repository struct {
	db *sqlx.DB
}

func NewRepository(db *sqlx.DB) Repository {
	return &repository{db: db}
}

func (r *repository) Find(ctx context.Context, initiatorID, participantID int, missionID *int) (*Conversation, error) {
	query := `SELECT ` + convColumns + ` FROM conversations
		WHERE initiator_id = $1 AND participant_id = $2 AND COALESCE(mission_id, 0) = COALESCE($3, 0)`

	return r.one(ctx, query, initiatorID, participantID, missionID)
}

func (r *repository) Create(ctx context.Context, initiatorID, participantID int, missionID *int) (*Conversation, bool, error) {
	query := `
		INSERT INTO conversations (initiator_id, participant_id, mission_id)
		VALUES ($1, $2, $3)
		ON CONFLICT (initiator_id, participant_id, COALESCE(mission_id, 0)) DO NOTHING
		RETURNING ` + convColumns

	var conv Conversation
	err := r.db.GetContext(ctx, &conv, query, initiatorID, participantID, missionID)
	if err == nil {
		return &conv, true, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, false, err
	}

	// Another request created it first.
	existing, err := r.Find(ctx, initiatorID, participantID, missionID)
	if err != nil {
		return nil, false, err
	}
	return existing, false, nil
}

func (r *repository) GetByID(ctx context.Context, id int) (*Conversation, error) {
	return r.one(ctx, `SELECT `+convColumns+` FROM conversations WHERE id = $1`, id)
}

func (r *repository) one(ctx context.Context, query string, args ...any) (*Conversation, error) {
	var conv Conversation
	if err := r.db.GetContext(ctx, &conv, query, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrConversationNotFound
		}
		return nil, err
	}
	return &conv, nil
}

func (r *repository) ListForUser(ctx context.Context, userID int) ([]Summary, error) {
	query := `
		SELECT c.id, c.initiator_id, c.participant_id, c.mission_id, c.created_at, c.last_message_at,
			(SELECT COUNT(*) FROM messages m
			 WHERE m.conversation_id = c.id AND m.sender_id <> $1 AND m.read_at IS NULL) AS unread
		FROM conversations c
		WHERE c.initiator_id = $1 OR c.participant_id = $1
		ORDER BY COALESCE(c.last_message_at, c.created_at) DESC
	`

	summaries := []Summary{}
	if err := r.db.SelectContext(ctx, &summaries, query, userID); err != nil {
		return nil, err
	}
	return summaries, nil
}

func (r *repository) Counterparts(ctx context.Context, userID int) ([]int, error) {
	query := `
		SELECT DISTINCT CASE WHEN initiator_id = $1 THEN participant_id ELSE initiator_id END
		FROM conversations
		WHERE initiator_id = $1 OR participant_id = $1
	`

	var ids []int
	if err := r.db.SelectContext(ctx, &ids, query, userID); err != nil {
		return nil, err
	}
	return ids, nil
}

// AddMessage stores the message and bumps the conversation's activity time
// in one transaction.
func (r *repository) AddMessage(ctx context.Context, conversationID, senderID int, body string) (*Message, error) {
	var msg Message
	err := db.WithTx(ctx, r.db, func(tx *sqlx.Tx) error {
		insert := `
			INSERT INTO messages (conversation_id, sender_id, body)
			VALUES ($1, $2, $3)
			RETURNING ` + messageColumns
		if err := tx.GetContext(ctx, &msg, insert, conversationID, senderID, body); err != nil {
			return err
		}

		_, err := tx.ExecContext(ctx,
			`UPDATE conversations SET last_message_at = $2 WHERE id = $1`,
			conversationID, msg.CreatedAt)
		return err
	})
	if err != nil {
		return nil, err
	}
	return &msg, nil
}

// Messages pages backwards from beforeID (exclusive); zero starts at the
// newest message. Results are newest first.
func (r *repository) Messages(ctx context.Context, conversationID int, limit int, beforeID int64) ([]Message, error) {
	if limit <= 0 {
		limit = defaultMessagePage
	}
	if limit > maxMessagePage {
		limit = maxMessagePage
	}

	query := `SELECT ` + messageColumns + ` FROM messages
		WHERE conversation_id = $1 AND ($2 = 0 OR id < $2)
		ORDER BY id DESC
		LIMIT $3`

	msgs := []Message{}
	if err := r.db.SelectContext(ctx, &msgs, query, conversationID, beforeID, limit); err != nil {
		return nil, err
	}
	return msgs, nil
}

func (r *repository) MarkRead(ctx context.Context, conversationID, readerID int) (int64, error) {
	result, err := r.db.ExecContext(ctx, `
		UPDATE messages SET read_at = NOW()
		WHERE conversation_id = $1 AND sender_id <> $2 AND read_at IS NULL
	`, conversationID, readerID)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

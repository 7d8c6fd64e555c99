package conversation

import (
	"time"

	"mijob/internal/gate"
	"mijob/internal/ledger"
)

type Conversation struct {
	ID            int        `db:"id" json:"id"`
	InitiatorID   int        `db:"initiator_id" json:"initiator_id"`
	ParticipantID int        `db:"participant_id" json:"participant_id"`
	MissionID     *int       `db:"mission_id" json:"mission_id,omitempty"`
	CreatedAt     time.Time  `db:"created_at" json:"created_at"`
	LastMessageAt *time.Time `db:"last_message_at" json:"last_message_at,omitempty"`
}

// Has reports whether userID takes part in the conversation.
func (c *Conversation) Has(userID int) bool {
	return c.InitiatorID == userID || c.ParticipantID == userID
}

// Other returns the participant that is not userID.
func (c *Conversation) Other(userID int) int {
	if c.InitiatorID == userID {
		return c.ParticipantID
	}
	return c.InitiatorID
}

// Summary is a conversation as listed for one of its participants.
type Summary struct {
	Conversation
	Unread      int          `db:"unread" json:"unread"`
	Counterpart *Counterpart `db:"-" json:"counterpart,omitempty"`
}

type Counterpart struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
	Role string `json:"role"`
}

type Message struct {
	ID             int64      `db:"id" json:"id"`
	ConversationID int        `db:"conversation_id" json:"conversation_id"`
	SenderID       int        `db:"sender_id" json:"sender_id"`
	Body           string     `db:"body" json:"body"`
	ReadAt         *time.Time `db:"read_at" json:"read_at,omitempty"`
	CreatedAt      time.Time  `db:"created_at" json:"created_at"`
}

type StartRequest struct {
	ParticipantID int    `json:"participant_id" validate:"required,gt=0"`
	MissionID     *int   `json:"mission_id" validate:"omitempty,gt=0"`
	Message       string `json:"message" validate:"omitempty,max=2000"`
}

type SendRequest struct {
	Body string `json:"body" validate:"required,min=1,max=2000"`
}

// StartResponse carries Entitlement and Transaction only when the
// conversation was created by this request.
type StartResponse struct {
	Conversation *Conversation       `json:"conversation"`
	Created      bool                `json:"created"`
	Entitlement  *gate.Decision      `json:"entitlement,omitempty"`
	Transaction  *ledger.Transaction `json:"transaction,omitempty"`
	Message      *Message            `json:"message,omitempty"`
	Warning      string              `json:"warning,omitempty"`
}

package conversation

import "context"

type Repository interface {
	Find(ctx context.Context, initiatorID, participantID int, missionID *int) (*Conversation, error)
	// Create reports created=false when the triple already existed.
	Create(ctx context.Context, initiatorID, participantID int, missionID *int) (conv *Conversation, created bool, err error)
	GetByID(ctx context.Context, id int) (*Conversation, error)
	ListForUser(ctx context.Context, userID int) ([]Summary, error)
	Counterparts(ctx context.Context, userID int) ([]int, error)
	AddMessage(ctx context.Context, conversationID, senderID int, body string) (*Message, error)
	Messages(ctx context.Context, conversationID int, limit int, beforeID int64) ([]Message, error)
	MarkRead(ctx context.Context, conversationID, readerID int) (int64, error)
}

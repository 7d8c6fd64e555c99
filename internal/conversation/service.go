package conversation

import (
	"context"
	"errors"
	"fmt"
	"time"
	"unicode/utf8"

	"mijob/internal/gate"
	"mijob/internal/logger"
	"mijob/internal/metrics"
	"mijob/internal/presence"
	"mijob/internal/quota"
	"mijob/internal/settlement"
	"mijob/internal/user"
)

var (
	ErrSelfContact         = errors.New("cannot start a conversation with yourself")
	ErrParticipantNotFound = errors.New("participant not found")
	ErrNotWorker           = errors.New("conversations can only be started with workers")
	ErrNotParticipant      = errors.New("not a participant of this conversation")
)

const previewLength = 120

// Gate is satisfied by *gate.Gate.
type Gate interface {
	Check(ctx context.Context, req gate.Request) (*gate.Decision, error)
}

// Settler is satisfied by *settlement.Settler.
type Settler interface {
	Settle(ctx context.Context, d *gate.Decision, ref settlement.Ref) settlement.Result
}

// Accounts is satisfied by user.Repository.
type Accounts interface {
	FindByID(ctx context.Context, id int) (*user.User, error)
	FindByIDs(ctx context.Context, ids []int) ([]user.User, error)
}

// Pusher is satisfied by *presence.Hub.
type Pusher interface {
	IsOnline(ctx context.Context, userID int) (bool, error)
	Send(ctx context.Context, userID int, ev presence.Event) error
}

// Mailer is satisfied by *email.Service.
type Mailer interface {
	SendNewMessage(ctx context.Context, to, name, from, preview string) error
}

type Service interface {
	Start(ctx context.Context, account *user.User, req StartRequest) (*StartResponse, error)
	Send(ctx context.Context, senderID, conversationID int, body string) (*Message, error)
	List(ctx context.Context, userID int) ([]Summary, error)
	Messages(ctx context.Context, userID, conversationID, limit int, beforeID int64) ([]Message, error)
	MarkRead(ctx context.Context, userID, conversationID int) (int64, error)
	NotifyPresence(userID int, online bool)
}

type service struct {
	repo     Repository
	gate     Gate
	settler  Settler
	accounts Accounts
	push     Pusher
	mail     Mailer
}

func NewService(repo Repository, g Gate, settler Settler, accounts Accounts, push Pusher, mail Mailer) Service {
	return &service{repo: repo, gate: g, settler: settler, accounts: accounts, push: push, mail: mail}
}

// Start opens a conversation with a worker. Contacting the same worker about
// the same mission again returns the existing conversation without going
// through the gate, so it is never charged twice.
func (s *service) Start(ctx context.Context, account *user.User, req StartRequest) (*StartResponse, error) {
	if account.ID == req.ParticipantID {
		return nil, ErrSelfContact
	}

	participant, err := s.accounts.FindByID(ctx, req.ParticipantID)
	if err != nil {
		if errors.Is(err, user.ErrUserNotFound) {
			return nil, ErrParticipantNotFound
		}
		return nil, fmt.Errorf("load participant: %w", err)
	}
	if participant.Role != user.RoleWorker {
		return nil, ErrNotWorker
	}

	existing, err := s.repo.Find(ctx, account.ID, req.ParticipantID, req.MissionID)
	switch {
	case err == nil:
		return s.resume(ctx, account, existing, req.Message)
	case !errors.Is(err, ErrConversationNotFound):
		return nil, fmt.Errorf("find conversation: %w", err)
	}

	d, err := s.gate.Check(ctx, gate.Request{Account: account, Action: quota.ActionContact})
	if err != nil {
		return nil, err
	}

	conv, created, err := s.repo.Create(ctx, account.ID, req.ParticipantID, req.MissionID)
	if err != nil {
		return nil, fmt.Errorf("create conversation: %w", err)
	}
	if !created {
		return s.resume(ctx, account, conv, req.Message)
	}
	metrics.RecordConversationStarted()

	res := s.settler.Settle(ctx, d, settlement.Ref{ConversationID: &conv.ID})
	resp := &StartResponse{
		Conversation: conv,
		Created:      true,
		Entitlement:  d,
		Transaction:  res.Transaction,
		Warning:      res.Warning,
	}

	if req.Message != "" {
		msg, err := s.send(ctx, account, conv, req.Message)
		if err != nil {
			return nil, err
		}
		resp.Message = msg
	}
	return resp, nil
}

func (s *service) resume(ctx context.Context, account *user.User, conv *Conversation, body string) (*StartResponse, error) {
	resp := &StartResponse{Conversation: conv}
	if body != "" {
		msg, err := s.send(ctx, account, conv, body)
		if err != nil {
			return nil, err
		}
		resp.Message = msg
	}
	return resp, nil
}

func (s *service) Send(ctx context.Context, senderID, conversationID int, body string) (*Message, error) {
	conv, err := s.participantOf(ctx, senderID, conversationID)
	if err != nil {
		return nil, err
	}

	sender, err := s.accounts.FindByID(ctx, senderID)
	if err != nil {
		return nil, fmt.Errorf("load sender: %w", err)
	}
	return s.send(ctx, sender, conv, body)
}

func (s *service) send(ctx context.Context, sender *user.User, conv *Conversation, body string) (*Message, error) {
	msg, err := s.repo.AddMessage(ctx, conv.ID, sender.ID, body)
	if err != nil {
		return nil, fmt.Errorf("add message: %w", err)
	}
	metrics.RecordMessage()

	s.deliver(ctx, sender, conv.Other(sender.ID), msg)
	return msg, nil
}

// deliver pushes the message to an online recipient and emails an offline
// one. Failures are logged; the message is already stored.
func (s *service) deliver(ctx context.Context, sender *user.User, recipientID int, msg *Message) {
	online, err := s.push.IsOnline(ctx, recipientID)
	if err != nil {
		logger.Warn("presence lookup failed", "user_id", recipientID, "error", err.Error())
	}

	if online {
		if err := s.push.Send(ctx, recipientID, presence.Event{Type: presence.EventMessageNew, Data: msg}); err != nil {
			logger.Warn("message push failed", "user_id", recipientID, "error", err.Error())
		}
		return
	}

	if s.mail == nil {
		return
	}
	recipient, err := s.accounts.FindByID(ctx, recipientID)
	if err != nil {
		logger.Warn("message email skipped", "user_id", recipientID, "error", err.Error())
		return
	}
	if err := s.mail.SendNewMessage(ctx, recipient.Email, recipient.Name, sender.Name, preview(msg.Body)); err != nil {
		logger.Warn("message email not queued", "user_id", recipientID, "error", err.Error())
	}
}

func (s *service) List(ctx context.Context, userID int) ([]Summary, error) {
	summaries, err := s.repo.ListForUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	if len(summaries) == 0 {
		return summaries, nil
	}

	ids := make([]int, 0, len(summaries))
	for _, sm := range summaries {
		ids = append(ids, sm.Other(userID))
	}
	users, err := s.accounts.FindByIDs(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("load counterparts: %w", err)
	}

	byID := make(map[int]user.User, len(users))
	for _, u := range users {
		byID[u.ID] = u
	}
	for i := range summaries {
		if u, ok := byID[summaries[i].Other(userID)]; ok {
			summaries[i].Counterpart = &Counterpart{ID: u.ID, Name: u.Name, Role: string(u.Role)}
		}
	}
	return summaries, nil
}

func (s *service) Messages(ctx context.Context, userID, conversationID, limit int, beforeID int64) ([]Message, error) {
	if _, err := s.participantOf(ctx, userID, conversationID); err != nil {
		return nil, err
	}
	return s.repo.Messages(ctx, conversationID, limit, beforeID)
}

func (s *service) MarkRead(ctx context.Context, userID, conversationID int) (int64, error) {
	if _, err := s.participantOf(ctx, userID, conversationID); err != nil {
		return 0, err
	}
	return s.repo.MarkRead(ctx, conversationID, userID)
}

// NotifyPresence tells everyone userID has talked to that userID came online
// or went offline.
func (s *service) NotifyPresence(userID int, online bool) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	ids, err := s.repo.Counterparts(ctx, userID)
	if err != nil {
		logger.Warn("presence fan-out skipped", "user_id", userID, "error", err.Error())
		return
	}

	ev := presence.Event{Type: presence.EventPresence, Data: presence.PresenceChange{UserID: userID, Online: online}}
	for _, id := range ids {
		if err := s.push.Send(ctx, id, ev); err != nil {
			logger.Warn("presence push failed", "user_id", id, "error", err.Error())
		}
	}
}

func (s *service) participantOf(ctx context.Context, userID, conversationID int) (*Conversation, error) {
	conv, err := s.repo.GetByID(ctx, conversationID)
	if err != nil {
		return nil, err
	}
	if !conv.Has(userID) {
		return nil, ErrNotParticipant
	}
	return conv, nil
}

func preview(body string) string {
	if utf8.RuneCountInString(body) <= previewLength {
		return body
	}
	r := []rune(body)
	return string(r[:previewLength]) + "..."
}

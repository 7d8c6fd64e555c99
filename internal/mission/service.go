package mission

import (
	"context"
	"errors"
	"fmt"
	"time"

	"mijob/internal/gate"
	"mijob/internal/metrics"
	"mijob/internal/settlement"
)

var (
	ErrNotOwner      = errors.New("only the owner can change this mission")
	ErrStartsInPast  = errors.New("mission cannot start in the past")
	ErrInvalidWindow = errors.New("mission must end after it starts")
	ErrNoDecision    = errors.New("mission creation was not admitted")
)

// Settler is satisfied by settlement.Settler.
type Settler interface {
	Settle(ctx context.Context, d *gate.Decision, ref settlement.Ref) settlement.Result
}

type Service interface {
	Create(ctx context.Context, ownerID int, d *gate.Decision, req CreateRequest) (*CreateResponse, error)
	Get(ctx context.Context, id int) (*Mission, error)
	ListOpen(ctx context.Context, f ListFilter) ([]Mission, error)
	ListMine(ctx context.Context, ownerID int) ([]Mission, error)
	Update(ctx context.Context, ownerID, id int, req UpdateRequest) (*Mission, error)
	Close(ctx context.Context, ownerID, id int) error
	Cancel(ctx context.Context, ownerID, id int) error
	Delete(ctx context.Context, ownerID, id int) error
}

type service struct {
	repo    Repository
	settler Settler
	now     func() time.Time
}

func NewService(repo Repository, settler Settler) Service {
	return &service{repo: repo, settler: settler, now: time.Now}
}

// Create inserts the mission and then settles the admission. A settlement
// failure does not undo the mission; it is reported as a warning.
func (s *service) Create(ctx context.Context, ownerID int, d *gate.Decision, req CreateRequest) (*CreateResponse, error) {
	if d == nil {
		return nil, ErrNoDecision
	}
	if req.StartsAt.Before(s.now().Add(-time.Minute)) {
		return nil, ErrStartsInPast
	}
	if !req.EndsAt.After(req.StartsAt) {
		return nil, ErrInvalidWindow
	}

	m, err := s.repo.Create(ctx, ownerID, req)
	if err != nil {
		return nil, fmt.Errorf("create mission: %w", err)
	}
	metrics.RecordMission("created")

	res := s.settler.Settle(ctx, d, settlement.Ref{MissionID: &m.ID})
	return &CreateResponse{
		Mission:     m,
		Entitlement: d,
		Transaction: res.Transaction,
		Warning:     res.Warning,
	}, nil
}

func (s *service) Get(ctx context.Context, id int) (*Mission, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *service) ListOpen(ctx context.Context, f ListFilter) ([]Mission, error) {
	return s.repo.ListOpen(ctx, f)
}

func (s *service) ListMine(ctx context.Context, ownerID int) ([]Mission, error) {
	return s.repo.ListByOwner(ctx, ownerID)
}

func (s *service) Update(ctx context.Context, ownerID, id int, req UpdateRequest) (*Mission, error) {
	m, err := s.owned(ctx, ownerID, id)
	if err != nil {
		return nil, err
	}

	starts, ends := m.StartsAt, m.EndsAt
	if req.StartsAt != nil {
		starts = *req.StartsAt
	}
	if req.EndsAt != nil {
		ends = *req.EndsAt
	}
	if !ends.After(starts) {
		return nil, ErrInvalidWindow
	}

	return s.repo.Update(ctx, id, req)
}

func (s *service) Close(ctx context.Context, ownerID, id int) error {
	return s.transition(ctx, ownerID, id, StatusClosed)
}

func (s *service) Cancel(ctx context.Context, ownerID, id int) error {
	return s.transition(ctx, ownerID, id, StatusCancelled)
}

func (s *service) Delete(ctx context.Context, ownerID, id int) error {
	if _, err := s.owned(ctx, ownerID, id); err != nil {
		return err
	}
	if err := s.repo.SoftDelete(ctx, id); err != nil {
		return err
	}
	metrics.RecordMission("deleted")
	return nil
}

func (s *service) transition(ctx context.Context, ownerID, id int, to Status) error {
	m, err := s.owned(ctx, ownerID, id)
	if err != nil {
		return err
	}
	if m.Status != StatusOpen {
		return ErrMissionNotOpen
	}
	if err := s.repo.SetStatus(ctx, id, to); err != nil {
		return err
	}
	metrics.RecordMission(string(to))
	return nil
}

func (s *service) owned(ctx context.Context, ownerID, id int) (*Mission, error) {
	m, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if m.OwnerID != ownerID {
		return nil, ErrNotOwner
	}
	return m, nil
}

package mission

import "context"

type Repository interface {
	Create(ctx context.Context, ownerID int, req CreateRequest) (*Mission, error)
	GetByID(ctx context.Context, id int) (*Mission, error)
	ListOpen(ctx context.Context, f ListFilter) ([]Mission, error)
	ListByOwner(ctx context.Context, ownerID int) ([]Mission, error)
	Update(ctx context.Context, id int, req UpdateRequest) (*Mission, error)
	SetStatus(ctx context.Context, id int, status Status) error
	SoftDelete(ctx context.Context, id int) error
}

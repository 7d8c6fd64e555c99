package user

import "context"

type Repository interface {
	Create(ctx context.Context, name, email, passwordHash string, role Role) (*User, error)
	FindByEmail(ctx context.Context, email string) (*User, error)
	FindByID(ctx context.Context, id int) (*User, error)
	FindByIDs(ctx context.Context, ids []int) ([]User, error)
	EmailExists(ctx context.Context, email string) (bool, error)
}

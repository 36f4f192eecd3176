package owner

import (
	"context"

	"github.com/xraph/condoledger/id"
)

type Store interface {
	CreateOwner(ctx context.Context, o *Owner) error
	GetOwner(ctx context.Context, ownerID id.OwnerID) (*Owner, error)
	ListOwners(ctx context.Context, opts ListOpts) ([]*Owner, error)
	UpdateOwner(ctx context.Context, o *Owner) error
}

type ListOpts struct {
	Limit  int
	Offset int
}

package owner

import (
	"github.com/xraph/condoledger/id"
	"github.com/xraph/condoledger/types"
)

type Owner struct {
	types.Entity
	ID       id.OwnerID        `json:"id"`
	Name     string            `json:"name"`
	Email    string            `json:"email,omitempty"`
	Phone    string            `json:"phone,omitempty"`
	TaxID    string            `json:"tax_id,omitempty"`
	Address  string            `json:"address,omitempty"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

package postgres

import (
	"time"

	"github.com/shopspring/decimal"
	"github.com/xraph/grove"

	"github.com/xraph/condoledger/account"
	"github.com/xraph/condoledger/audit"
	"github.com/xraph/condoledger/id"
	"github.com/xraph/condoledger/owner"
	"github.com/xraph/condoledger/payment"
	"github.com/xraph/condoledger/types"
)

// optionalID parses a weak reference column, where "" means unset.
func optionalID(s string) (id.ID, error) {
	if s == "" {
		return id.Nil, nil
	}
	return id.Parse(s)
}

func idString(i id.ID) string {
	if i.IsNil() {
		return ""
	}
	return i.String()
}

// ==================== Owner models ====================

type ownerModel struct {
	grove.BaseModel `grove:"table:condo_owners"`

	ID        string            `grove:"id,pk"`
	Name      string            `grove:"name"`
	Email     string            `grove:"email"`
	Phone     string            `grove:"phone"`
	TaxID     string            `grove:"tax_id"`
	Address   string            `grove:"address"`
	Metadata  map[string]string `grove:"metadata,type:jsonb"`
	CreatedAt time.Time         `grove:"created_at"`
	UpdatedAt time.Time         `grove:"updated_at"`
}

func toOwnerModel(o *owner.Owner) *ownerModel {
	metadata := o.Metadata
	if metadata == nil {
		metadata = map[string]string{}
	}
	return &ownerModel{
		ID:        o.ID.String(),
		Name:      o.Name,
		Email:     o.Email,
		Phone:     o.Phone,
		TaxID:     o.TaxID,
		Address:   o.Address,
		Metadata:  metadata,
		CreatedAt: o.CreatedAt,
		UpdatedAt: o.UpdatedAt,
	}
}

func fromOwnerModel(m *ownerModel) (*owner.Owner, error) {
	ownerID, err := id.ParseOwnerID(m.ID)
	if err != nil {
		return nil, err
	}
	metadata := m.Metadata
	if len(metadata) == 0 {
		metadata = nil
	}
	return &owner.Owner{
		Entity:   types.Entity{CreatedAt: m.CreatedAt, UpdatedAt: m.UpdatedAt},
		ID:       ownerID,
		Name:     m.Name,
		Email:    m.Email,
		Phone:    m.Phone,
		TaxID:    m.TaxID,
		Address:  m.Address,
		Metadata: metadata,
	}, nil
}

// ==================== Account models ====================

type accountModel struct {
	grove.BaseModel `grove:"table:condo_accounts"`

	ID             string          `grove:"id,pk"`
	OwnerID        string          `grove:"owner_id"`
	InitialBalance decimal.Decimal `grove:"initial_balance,type:numeric"`
	CurrentBalance decimal.Decimal `grove:"current_balance,type:numeric"`
	CreatedAt      time.Time       `grove:"created_at"`
	UpdatedAt      time.Time       `grove:"updated_at"`
}

func toAccountModel(a *account.Account) *accountModel {
	return &accountModel{
		ID:             a.ID.String(),
		OwnerID:        a.OwnerID.String(),
		InitialBalance: a.InitialBalance,
		CurrentBalance: a.CurrentBalance,
		CreatedAt:      a.CreatedAt,
		UpdatedAt:      a.UpdatedAt,
	}
}

func fromAccountModel(m *accountModel) (*account.Account, error) {
	accountID, err := id.ParseAccountID(m.ID)
	if err != nil {
		return nil, err
	}
	ownerID, err := id.ParseOwnerID(m.OwnerID)
	if err != nil {
		return nil, err
	}
	return &account.Account{
		Entity:         types.Entity{CreatedAt: m.CreatedAt, UpdatedAt: m.UpdatedAt},
		ID:             accountID,
		OwnerID:        ownerID,
		InitialBalance: m.InitialBalance,
		CurrentBalance: m.CurrentBalance,
	}, nil
}

type postingModel struct {
	grove.BaseModel `grove:"table:condo_postings"`

	ID          string          `grove:"id,pk"`
	AccountID   string          `grove:"account_id"`
	Kind        string          `grove:"kind"`
	Amount      decimal.Decimal `grove:"amount,type:numeric"`
	Description string          `grove:"description"`
	OccurredAt  time.Time       `grove:"occurred_at"`
	CreatedAt   time.Time       `grove:"created_at"`
}

func toPostingModel(p *account.Posting) *postingModel {
	return &postingModel{
		ID:          p.ID.String(),
		AccountID:   p.AccountID.String(),
		Kind:        string(p.Kind),
		Amount:      p.Amount,
		Description: p.Description,
		OccurredAt:  p.OccurredAt,
		CreatedAt:   p.CreatedAt,
	}
}

func fromPostingModel(m *postingModel) (*account.Posting, error) {
	p := &account.Posting{
		Kind:        account.Kind(m.Kind),
		Amount:      m.Amount,
		Description: m.Description,
		OccurredAt:  m.OccurredAt,
		CreatedAt:   m.CreatedAt,
	}

	var err error
	if p.ID, err = id.ParsePostingID(m.ID); err != nil {
		return nil, err
	}
	if p.AccountID, err = id.ParseAccountID(m.AccountID); err != nil {
		return nil, err
	}
	return p, nil
}

// ==================== Payment models ====================

type paymentModel struct {
	grove.BaseModel `grove:"table:condo_payments"`

	ID          string          `grove:"id,pk"`
	Amount      decimal.Decimal `grove:"amount,type:numeric"`
	Description string          `grove:"description"`
	State       string          `grove:"state"`
	IssuedAt    time.Time       `grove:"issued_at"`
	DueAt       *time.Time      `grove:"due_at"`
	Active      bool            `grove:"active"`
	UnitID      string          `grove:"unit_id"`
	OwnerID     string          `grove:"owner_id"`
	TenantID    string          `grove:"tenant_id"`
	UserID      string          `grove:"user_id"`
	CreatedAt   time.Time       `grove:"created_at"`
	UpdatedAt   time.Time       `grove:"updated_at"`
}

func toPaymentModel(p *payment.Payment) *paymentModel {
	return &paymentModel{
		ID:          p.ID.String(),
		Amount:      p.Amount,
		Description: p.Description,
		State:       string(p.State),
		IssuedAt:    p.IssuedAt,
		DueAt:       p.DueAt,
		Active:      p.Active,
		UnitID:      idString(p.UnitID),
		OwnerID:     idString(p.OwnerID),
		TenantID:    idString(p.TenantID),
		UserID:      idString(p.UserID),
		CreatedAt:   p.CreatedAt,
		UpdatedAt:   p.UpdatedAt,
	}
}

func fromPaymentModel(m *paymentModel) (*payment.Payment, error) {
	p := &payment.Payment{
		Entity:      types.Entity{CreatedAt: m.CreatedAt, UpdatedAt: m.UpdatedAt},
		Amount:      m.Amount,
		Description: m.Description,
		State:       payment.State(m.State),
		IssuedAt:    m.IssuedAt,
		DueAt:       m.DueAt,
		Active:      m.Active,
	}

	var err error
	if p.ID, err = id.ParsePaymentID(m.ID); err != nil {
		return nil, err
	}
	if p.UnitID, err = optionalID(m.UnitID); err != nil {
		return nil, err
	}
	if p.OwnerID, err = optionalID(m.OwnerID); err != nil {
		return nil, err
	}
	if p.TenantID, err = optionalID(m.TenantID); err != nil {
		return nil, err
	}
	if p.UserID, err = optionalID(m.UserID); err != nil {
		return nil, err
	}
	return p, nil
}

// ==================== Audit models ====================

type auditModel struct {
	grove.BaseModel `grove:"table:condo_payment_audit"`

	ID           string    `grove:"id,pk"`
	PaymentID    string    `grove:"payment_id"`
	Action       string    `grove:"action"`
	Detail       string    `grove:"detail"`
	ActingUserID string    `grove:"acting_user_id"`
	RecordedAt   time.Time `grove:"recorded_at"`
}

func toAuditModel(e *audit.Entry) *auditModel {
	return &auditModel{
		ID:           e.ID.String(),
		PaymentID:    e.PaymentID.String(),
		Action:       string(e.Action),
		Detail:       e.Detail,
		ActingUserID: idString(e.ActingUserID),
		RecordedAt:   e.RecordedAt,
	}
}

func fromAuditModel(m *auditModel) (*audit.Entry, error) {
	e := &audit.Entry{
		Action:     audit.Action(m.Action),
		Detail:     m.Detail,
		RecordedAt: m.RecordedAt,
	}

	var err error
	if e.ID, err = id.ParseAuditEntryID(m.ID); err != nil {
		return nil, err
	}
	if e.PaymentID, err = id.ParsePaymentID(m.PaymentID); err != nil {
		return nil, err
	}
	if e.ActingUserID, err = optionalID(m.ActingUserID); err != nil {
		return nil, err
	}
	return e, nil
}

func convert[M, T any](models []M, from func(*M) (*T, error)) ([]*T, error) {
	result := make([]*T, 0, len(models))
	for i := range models {
		item, err := from(&models[i])
		if err != nil {
			return nil, err
		}
		result = append(result, item)
	}
	return result, nil
}

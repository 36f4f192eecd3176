package mongo

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"github.com/xraph/grove"
	"go.mongodb.org/mongo-driver/v2/bson"

	"github.com/xraph/condoledger/account"
	"github.com/xraph/condoledger/audit"
	"github.com/xraph/condoledger/id"
	"github.com/xraph/condoledger/owner"
	"github.com/xraph/condoledger/payment"
	"github.com/xraph/condoledger/types"
)

// ==================== Decimal128 ====================

func toDecimal128(d decimal.Decimal) (bson.Decimal128, error) {
	v, err := bson.ParseDecimal128(d.String())
	if err != nil {
		return bson.Decimal128{}, fmt.Errorf("encode amount %s: %w", d, err)
	}
	return v, nil
}

func fromDecimal128(v bson.Decimal128) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(v.String())
	if err != nil {
		return decimal.Zero, fmt.Errorf("decode amount %s: %w", v, err)
	}
	return d, nil
}

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

	ID        string            `grove:"id,pk" bson:"_id"`
	Name      string            `grove:"name" bson:"name"`
	Email     string            `grove:"email" bson:"email"`
	Phone     string            `grove:"phone" bson:"phone"`
	TaxID     string            `grove:"tax_id" bson:"tax_id"`
	Address   string            `grove:"address" bson:"address"`
	Metadata  map[string]string `grove:"metadata" bson:"metadata,omitempty"`
	CreatedAt time.Time         `grove:"created_at" bson:"created_at"`
	UpdatedAt time.Time         `grove:"updated_at" bson:"updated_at"`
}

func toOwnerModel(o *owner.Owner) *ownerModel {
	return &ownerModel{
		ID:        o.ID.String(),
		Name:      o.Name,
		Email:     o.Email,
		Phone:     o.Phone,
		TaxID:     o.TaxID,
		Address:   o.Address,
		Metadata:  o.Metadata,
		CreatedAt: o.CreatedAt,
		UpdatedAt: o.UpdatedAt,
	}
}

func fromOwnerModel(m *ownerModel) (*owner.Owner, error) {
	ownerID, err := id.ParseOwnerID(m.ID)
	if err != nil {
		return nil, err
	}
	return &owner.Owner{
		Entity:   types.Entity{CreatedAt: m.CreatedAt, UpdatedAt: m.UpdatedAt},
		ID:       ownerID,
		Name:     m.Name,
		Email:    m.Email,
		Phone:    m.Phone,
		TaxID:    m.TaxID,
		Address:  m.Address,
		Metadata: m.Metadata,
	}, nil
}

// ==================== Account models ====================

type accountModel struct {
	grove.BaseModel `grove:"table:condo_accounts"`

	ID             string          `grove:"id,pk" bson:"_id"`
	OwnerID        string          `grove:"owner_id" bson:"owner_id"`
	InitialBalance bson.Decimal128 `grove:"initial_balance" bson:"initial_balance"`
	CurrentBalance bson.Decimal128 `grove:"current_balance" bson:"current_balance"`
	CreatedAt      time.Time       `grove:"created_at" bson:"created_at"`
	UpdatedAt      time.Time       `grove:"updated_at" bson:"updated_at"`
}

func toAccountModel(a *account.Account) (*accountModel, error) {
	initial, err := toDecimal128(a.InitialBalance)
	if err != nil {
		return nil, err
	}
	current, err := toDecimal128(a.CurrentBalance)
	if err != nil {
		return nil, err
	}
	return &accountModel{
		ID:             a.ID.String(),
		OwnerID:        a.OwnerID.String(),
		InitialBalance: initial,
		CurrentBalance: current,
		CreatedAt:      a.CreatedAt,
		UpdatedAt:      a.UpdatedAt,
	}, nil
}

func fromAccountModel(m *accountModel) (*account.Account, error) {
	a := &account.Account{Entity: types.Entity{CreatedAt: m.CreatedAt, UpdatedAt: m.UpdatedAt}}

	var err error
	if a.ID, err = id.ParseAccountID(m.ID); err != nil {
		return nil, err
	}
	if a.OwnerID, err = id.ParseOwnerID(m.OwnerID); err != nil {
		return nil, err
	}
	if a.InitialBalance, err = fromDecimal128(m.InitialBalance); err != nil {
		return nil, err
	}
	if a.CurrentBalance, err = fromDecimal128(m.CurrentBalance); err != nil {
		return nil, err
	}
	return a, nil
}

type postingModel struct {
	grove.BaseModel `grove:"table:condo_postings"`

	ID          string          `grove:"id,pk" bson:"_id"`
	AccountID   string          `grove:"account_id" bson:"account_id"`
	Kind        string          `grove:"kind" bson:"kind"`
	Amount      bson.Decimal128 `grove:"amount" bson:"amount"`
	Description string          `grove:"description" bson:"description"`
	OccurredAt  time.Time       `grove:"occurred_at" bson:"occurred_at"`
	CreatedAt   time.Time       `grove:"created_at" bson:"created_at"`
}

func toPostingModel(p *account.Posting) (*postingModel, error) {
	amount, err := toDecimal128(p.Amount)
	if err != nil {
		return nil, err
	}
	return &postingModel{
		ID:          p.ID.String(),
		AccountID:   p.AccountID.String(),
		Kind:        string(p.Kind),
		Amount:      amount,
		Description: p.Description,
		OccurredAt:  p.OccurredAt,
		CreatedAt:   p.CreatedAt,
	}, nil
}

func fromPostingModel(m *postingModel) (*account.Posting, error) {
	p := &account.Posting{
		Kind:        account.Kind(m.Kind),
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
	if p.Amount, err = fromDecimal128(m.Amount); err != nil {
		return nil, err
	}
	return p, nil
}

// ==================== Payment models ====================

type paymentModel struct {
	grove.BaseModel `grove:"table:condo_payments"`

	ID          string          `grove:"id,pk" bson:"_id"`
	Amount      bson.Decimal128 `grove:"amount" bson:"amount"`
	Description string          `grove:"description" bson:"description"`
	State       string          `grove:"state" bson:"state"`
	IssuedAt    time.Time       `grove:"issued_at" bson:"issued_at"`
	DueAt       *time.Time      `grove:"due_at" bson:"due_at"`
	Active      bool            `grove:"active" bson:"active"`
	UnitID      string          `grove:"unit_id" bson:"unit_id"`
	OwnerID     string          `grove:"owner_id" bson:"owner_id"`
	TenantID    string          `grove:"tenant_id" bson:"tenant_id"`
	UserID      string          `grove:"user_id" bson:"user_id"`
	CreatedAt   time.Time       `grove:"created_at" bson:"created_at"`
	UpdatedAt   time.Time       `grove:"updated_at" bson:"updated_at"`
}

func toPaymentModel(p *payment.Payment) (*paymentModel, error) {
	amount, err := toDecimal128(p.Amount)
	if err != nil {
		return nil, err
	}
	return &paymentModel{
		ID:          p.ID.String(),
		Amount:      amount,
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
	}, nil
}

func fromPaymentModel(m *paymentModel) (*payment.Payment, error) {
	p := &payment.Payment{
		Entity:      types.Entity{CreatedAt: m.CreatedAt, UpdatedAt: m.UpdatedAt},
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
	if p.Amount, err = fromDecimal128(m.Amount); err != nil {
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

	ID           string    `grove:"id,pk" bson:"_id"`
	PaymentID    string    `grove:"payment_id" bson:"payment_id"`
	Action       string    `grove:"action" bson:"action"`
	Detail       string    `grove:"detail" bson:"detail"`
	ActingUserID string    `grove:"acting_user_id" bson:"acting_user_id"`
	RecordedAt   time.Time `grove:"recorded_at" bson:"recorded_at"`
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

package sqlite

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"github.com/xraph/grove"

	"github.com/xraph/condoledger/account"
	"github.com/xraph/condoledger/audit"
	"github.com/xraph/condoledger/id"
	"github.com/xraph/condoledger/owner"
	"github.com/xraph/condoledger/payment"
)

// timeLayout is fixed-width so stored timestamps order lexically.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) (time.Time, error) {
	t, err := time.Parse(timeLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("decode time %q: %w", s, err)
	}
	return t, nil
}

func formatOptionalTime(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := formatTime(*t)
	return &s
}

func parseOptionalTime(s *string) (*time.Time, error) {
	if s == nil {
		return nil, nil
	}
	t, err := parseTime(*s)
	if err != nil {
		return nil, err
	}
	return &t, nil
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

	ID        string `grove:"id,pk"`
	Name      string `grove:"name"`
	Email     string `grove:"email"`
	Phone     string `grove:"phone"`
	TaxID     string `grove:"tax_id"`
	Address   string `grove:"address"`
	Metadata  string `grove:"metadata"`
	CreatedAt string `grove:"created_at"`
	UpdatedAt string `grove:"updated_at"`
}

func toOwnerModel(o *owner.Owner) (*ownerModel, error) {
	metadata := "{}"
	if o.Metadata != nil {
		b, err := json.Marshal(o.Metadata)
		if err != nil {
			return nil, fmt.Errorf("encode owner metadata: %w", err)
		}
		metadata = string(b)
	}
	return &ownerModel{
		ID:        o.ID.String(),
		Name:      o.Name,
		Email:     o.Email,
		Phone:     o.Phone,
		TaxID:     o.TaxID,
		Address:   o.Address,
		Metadata:  metadata,
		CreatedAt: formatTime(o.CreatedAt),
		UpdatedAt: formatTime(o.UpdatedAt),
	}, nil
}

func fromOwnerModel(m *ownerModel) (*owner.Owner, error) {
	o := &owner.Owner{
		Name:    m.Name,
		Email:   m.Email,
		Phone:   m.Phone,
		TaxID:   m.TaxID,
		Address: m.Address,
	}

	var err error
	if o.ID, err = id.ParseOwnerID(m.ID); err != nil {
		return nil, err
	}
	if m.Metadata != "" && m.Metadata != "{}" {
		if err := json.Unmarshal([]byte(m.Metadata), &o.Metadata); err != nil {
			return nil, fmt.Errorf("decode owner metadata: %w", err)
		}
	}
	if o.CreatedAt, err = parseTime(m.CreatedAt); err != nil {
		return nil, err
	}
	if o.UpdatedAt, err = parseTime(m.UpdatedAt); err != nil {
		return nil, err
	}
	return o, nil
}

// ==================== Account models ====================

type accountModel struct {
	grove.BaseModel `grove:"table:condo_accounts"`

	ID             string          `grove:"id,pk"`
	OwnerID        string          `grove:"owner_id"`
	InitialBalance decimal.Decimal `grove:"initial_balance"`
	CurrentBalance decimal.Decimal `grove:"current_balance"`
	CreatedAt      string          `grove:"created_at"`
	UpdatedAt      string          `grove:"updated_at"`
}

func toAccountModel(a *account.Account) *accountModel {
	return &accountModel{
		ID:             a.ID.String(),
		OwnerID:        a.OwnerID.String(),
		InitialBalance: a.InitialBalance,
		CurrentBalance: a.CurrentBalance,
		CreatedAt:      formatTime(a.CreatedAt),
		UpdatedAt:      formatTime(a.UpdatedAt),
	}
}

func fromAccountModel(m *accountModel) (*account.Account, error) {
	a := &account.Account{
		InitialBalance: m.InitialBalance,
		CurrentBalance: m.CurrentBalance,
	}

	var err error
	if a.ID, err = id.ParseAccountID(m.ID); err != nil {
		return nil, err
	}
	if a.OwnerID, err = id.ParseOwnerID(m.OwnerID); err != nil {
		return nil, err
	}
	if a.CreatedAt, err = parseTime(m.CreatedAt); err != nil {
		return nil, err
	}
	if a.UpdatedAt, err = parseTime(m.UpdatedAt); err != nil {
		return nil, err
	}
	return a, nil
}

type postingModel struct {
	grove.BaseModel `grove:"table:condo_postings"`

	ID          string          `grove:"id,pk"`
	AccountID   string          `grove:"account_id"`
	Kind        string          `grove:"kind"`
	Amount      decimal.Decimal `grove:"amount"`
	Description string          `grove:"description"`
	OccurredAt  string          `grove:"occurred_at"`
	CreatedAt   string          `grove:"created_at"`
}

func toPostingModel(p *account.Posting) *postingModel {
	return &postingModel{
		ID:          p.ID.String(),
		AccountID:   p.AccountID.String(),
		Kind:        string(p.Kind),
		Amount:      p.Amount,
		Description: p.Description,
		OccurredAt:  formatTime(p.OccurredAt),
		CreatedAt:   formatTime(p.CreatedAt),
	}
}

func fromPostingModel(m *postingModel) (*account.Posting, error) {
	p := &account.Posting{
		Kind:        account.Kind(m.Kind),
		Amount:      m.Amount,
		Description: m.Description,
	}

	var err error
	if p.ID, err = id.ParsePostingID(m.ID); err != nil {
		return nil, err
	}
	if p.AccountID, err = id.ParseAccountID(m.AccountID); err != nil {
		return nil, err
	}
	if p.OccurredAt, err = parseTime(m.OccurredAt); err != nil {
		return nil, err
	}
	if p.CreatedAt, err = parseTime(m.CreatedAt); err != nil {
		return nil, err
	}
	return p, nil
}

// ==================== Payment models ====================

type paymentModel struct {
	grove.BaseModel `grove:"table:condo_payments"`

	ID          string          `grove:"id,pk"`
	Amount      decimal.Decimal `grove:"amount"`
	Description string          `grove:"description"`
	State       string          `grove:"state"`
	IssuedAt    string          `grove:"issued_at"`
	DueAt       *string         `grove:"due_at"`
	Active      bool            `grove:"active"`
	UnitID      string          `grove:"unit_id"`
	OwnerID     string          `grove:"owner_id"`
	TenantID    string          `grove:"tenant_id"`
	UserID      string          `grove:"user_id"`
	CreatedAt   string          `grove:"created_at"`
	UpdatedAt   string          `grove:"updated_at"`
}

func toPaymentModel(p *payment.Payment) *paymentModel {
	return &paymentModel{
		ID:          p.ID.String(),
		Amount:      p.Amount,
		Description: p.Description,
		State:       string(p.State),
		IssuedAt:    formatTime(p.IssuedAt),
		DueAt:       formatOptionalTime(p.DueAt),
		Active:      p.Active,
		UnitID:      idString(p.UnitID),
		OwnerID:     idString(p.OwnerID),
		TenantID:    idString(p.TenantID),
		UserID:      idString(p.UserID),
		CreatedAt:   formatTime(p.CreatedAt),
		UpdatedAt:   formatTime(p.UpdatedAt),
	}
}

func fromPaymentModel(m *paymentModel) (*payment.Payment, error) {
	p := &payment.Payment{
		Amount:      m.Amount,
		Description: m.Description,
		State:       payment.State(m.State),
		Active:      m.Active,
	}

	var err error
	if p.ID, err = id.ParsePaymentID(m.ID); err != nil {
		return nil, err
	}
	if p.IssuedAt, err = parseTime(m.IssuedAt); err != nil {
		return nil, err
	}
	if p.DueAt, err = parseOptionalTime(m.DueAt); err != nil {
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
	if p.CreatedAt, err = parseTime(m.CreatedAt); err != nil {
		return nil, err
	}
	if p.UpdatedAt, err = parseTime(m.UpdatedAt); err != nil {
		return nil, err
	}
	return p, nil
}

// ==================== Audit models ====================

type auditModel struct {
	grove.BaseModel `grove:"table:condo_payment_audit"`

	ID           string `grove:"id,pk"`
	PaymentID    string `grove:"payment_id"`
	Action       string `grove:"action"`
	Detail       string `grove:"detail"`
	ActingUserID string `grove:"acting_user_id"`
	RecordedAt   string `grove:"recorded_at"`
}

func toAuditModel(e *audit.Entry) *auditModel {
	return &auditModel{
		ID:           e.ID.String(),
		PaymentID:    e.PaymentID.String(),
		Action:       string(e.Action),
		Detail:       e.Detail,
		ActingUserID: idString(e.ActingUserID),
		RecordedAt:   formatTime(e.RecordedAt),
	}
}

func fromAuditModel(m *auditModel) (*audit.Entry, error) {
	e := &audit.Entry{
		Action: audit.Action(m.Action),
		Detail: m.Detail,
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
	if e.RecordedAt, err = parseTime(m.RecordedAt); err != nil {
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

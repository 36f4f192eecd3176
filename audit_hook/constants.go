package audithook

// Action constants for audit events.
const (
	// Account actions
	ActionAccountOpened   = "account.opened"
	ActionAccountClosed   = "account.closed"
	ActionPostingRecorded = "posting.recorded"
	ActionPostingsPurged  = "postings.purged"

	// Payment actions
	ActionPaymentCreated     = "payment.created"
	ActionPaymentUpdated     = "payment.updated"
	ActionPaymentDeactivated = "payment.deactivated"
	ActionPaymentPurged      = "payment.purged"
)

// Resource constants for audit events.
const (
	ResourceAccount = "account"
	ResourcePosting = "posting"
	ResourcePayment = "payment"
)

// Category constants for audit events.
const (
	CategoryAccount = "account"
	CategoryPayment = "payment"
)

// Severity levels for audit events.
const (
	SeverityInfo     = "info"
	SeverityWarning  = "warning"
	SeverityCritical = "critical"
)

// Outcome values for audit events.
const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
)

package audithook

// Action constants for audit events.
const (
	// Issuance actions
	ActionIssued      = "supply.issued"
	ActionBatchIssued = "supply.batch_issued"
	ActionRetired     = "supply.retired"

	// Movement actions
	ActionTransferred = "balance.transferred"

	// Whitelist actions
	ActionWhitelistAdded   = "whitelist.added"
	ActionWhitelistRemoved = "whitelist.removed"

	// Sale actions
	ActionRoundStarted   = "round.started"
	ActionRoundFinalized = "round.finalized"
	ActionPurchase       = "round.purchase"
)

// Resource constants for audit events.
const (
	ResourceSupply    = "supply"
	ResourceBalance   = "balance"
	ResourceWhitelist = "whitelist"
	ResourceRound     = "round"
	ResourcePurchase  = "purchase"
)

// Category constants for audit events.
const (
	CategoryIssuance = "issuance"
	CategoryMovement = "movement"
	CategoryAccess   = "access"
	CategorySale     = "sale"
)

// Severity levels for audit events.
const (
	SeverityInfo     = "info"
	SeverityWarning  = "warning"
	SeverityError    = "error"
	SeverityCritical = "critical"
)

// Outcome values for audit events.
const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
	OutcomePartial = "partial"
)

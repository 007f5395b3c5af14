package logging

const (
	// FieldComponent is the standardized structured logging key for component names.
	FieldComponent = "component"
	// FieldEventType names the event a log line records (e.g. "contact_added").
	FieldEventType = "event_type"
	// FieldErrorHint suggests the next step an operator should take.
	FieldErrorHint = "error_hint"
	// FieldImpact is the standardized key for user-facing consequence of a warning.
	FieldImpact = "impact"
	// FieldRunID identifies one process lifetime.
	FieldRunID = "run_id"
	// FieldCampaignID identifies one connection campaign within a run.
	FieldCampaignID = "campaign_id"
	// FieldAttempt is the 1-based connection attempt within a campaign.
	FieldAttempt = "attempt"
	// FieldMaxAttempts is the configured attempt ceiling.
	FieldMaxAttempts = "max_attempts"
	// FieldMode is the connection mode (qrcode or pairing).
	FieldMode = "mode"
	// FieldContactID is the sender JID recorded in the ledger.
	FieldContactID = "contact_id"
	// FieldState is the supervisor state name.
	FieldState = "state"
	// FieldErrorKind is the classification reported by services.Kind.
	FieldErrorKind = "error_kind"
)

package logging

const (
	// FieldComponent is the standardized structured logging key for component names.
	FieldComponent = "component"
	// FieldChannelID is the standardized structured logging key for channel identifiers.
	FieldChannelID = "channel_id"
	// FieldCampaignID is the standardized structured logging key for campaign identifiers.
	FieldCampaignID = "campaign_id"
	// FieldJobID is the standardized structured logging key for production job identifiers.
	FieldJobID = "job_id"
	// FieldStage is the standardized structured logging key for pipeline stage names.
	FieldStage = "stage"
	// FieldPlatform is the standardized structured logging key for target platforms.
	FieldPlatform = "platform"
	// FieldEventType tags log records with a machine-readable event name.
	FieldEventType = "event_type"
	// FieldErrorHint carries a suggested operator next step alongside errors.
	FieldErrorHint = "error_hint"
	// FieldCostCents records spend amounts in integer cents.
	FieldCostCents = "cost_cents"
)

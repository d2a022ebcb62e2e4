package observability

// Metric name prefixes
const (
	MetricPrefix = "herald"
)

// Metric names
const (
	// Discord metrics
	DiscordEventsTotal = MetricPrefix + ".discord.events_total"

	// Campaign metrics
	GiveawaysResolvedTotal = MetricPrefix + ".giveaways.resolved_total"
	RoleMutationsTotal     = MetricPrefix + ".roles.mutations_total"
	ReconciledTotal        = MetricPrefix + ".reconcile.records_total"
	TimersPending          = MetricPrefix + ".scheduler.timers_pending"
	ListenersAttached      = MetricPrefix + ".listeners.attached"

	// NATS metrics
	NATSMessagesPublishedTotal = MetricPrefix + ".nats.messages_published_total"
)

// Label keys
const (
	// Common labels
	LabelType      = "type"
	LabelEventType = "event_type"
	LabelOutcome   = "outcome"
	LabelSuccess   = "success"

	// Campaign labels
	LabelCampaign = "campaign"
	LabelAction   = "action"
)

// Event types for Discord
const (
	EventTypeCommand   = "command"
	EventTypeReaction  = "reaction"
	EventTypeComponent = "component"
	EventTypeMessage   = "message"
)

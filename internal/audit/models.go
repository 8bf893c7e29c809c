package audit

import "time"

// Category classifies audit events so sinks can route or sample them.
type Category string

const (
	// CategoryFinancial covers events that move a client's revenue figures.
	CategoryFinancial Category = "financial"
	// CategorySecurity covers authentication failures and access changes.
	CategorySecurity Category = "security"
	// CategoryOperations covers routine activity.
	CategoryOperations Category = "operations"
)

// Action names a committed mutation or notable rejection.
type Action string

const (
	ActionClientRegistered  Action = "client_registered"
	ActionClientSuspended   Action = "client_suspended"
	ActionClientReactivated Action = "client_reactivated"
	ActionClientTierChanged Action = "client_tier_changed"

	ActionSaleRecorded  Action = "sale_recorded"
	ActionSaleReplayed  Action = "sale_replayed"
	ActionScansRecorded Action = "scans_recorded"

	ActionIngestRejected Action = "ingest_rejected"

	ActionDisputeFiled        Action = "dispute_filed"
	ActionDisputeTransitioned Action = "dispute_transitioned"
)

var actionCategories = map[Action]Category{
	ActionSaleRecorded:      CategoryFinancial,
	ActionClientTierChanged: CategoryFinancial,

	ActionIngestRejected:    CategorySecurity,
	ActionClientSuspended:   CategorySecurity,
	ActionClientReactivated: CategorySecurity,
}

// Category returns the category of a, defaulting to CategoryOperations.
func (a Action) Category() Category {
	if c, ok := actionCategories[a]; ok {
		return c
	}
	return CategoryOperations
}

// Event is emitted from domain logic to capture key actions. Keep it
// transport-agnostic so stores and sinks can fan out.
type Event struct {
	Category   Category          `json:"category"`
	Timestamp  time.Time         `json:"timestamp"`
	Action     Action            `json:"action"`
	ClientID   string            `json:"client_id,omitempty"`
	Subject    string            `json:"subject,omitempty"`
	RequestID  string            `json:"request_id,omitempty"`
	Attributes map[string]string `json:"attributes,omitempty"`
}

// Attrs builds an attribute map from alternating key/value pairs. A trailing
// key without a value is dropped.
func Attrs(kv ...string) map[string]string {
	if len(kv) < 2 {
		return nil
	}
	out := make(map[string]string, len(kv)/2)
	for i := 0; i+1 < len(kv); i += 2 {
		out[kv[i]] = kv[i+1]
	}
	return out
}

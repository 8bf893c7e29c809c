package ports

import (
	"context"

	"nexushq/internal/audit"
	"nexushq/internal/commission"
	id "nexushq/pkg/domain"
)

// ClientLookup answers the one question the ledger asks about a client:
// which tier to price its sales under. It is defined here so the ledger does
// not depend on the registry's service or storage.
type ClientLookup interface {
	// ClientTier returns the client's current tier, or an error coded
	// CodeUnknownClient when no such client is registered.
	ClientTier(ctx context.Context, clientID id.ClientID) (commission.Tier, error)
}

// AuditPort emits audit events for committed ledger writes.
type AuditPort interface {
	Emit(ctx context.Context, event audit.Event) error
}

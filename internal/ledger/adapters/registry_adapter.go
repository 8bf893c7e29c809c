package adapters

import (
	"context"

	"nexushq/internal/commission"
	"nexushq/internal/ledger/ports"
	registryModels "nexushq/internal/registry/models"
	id "nexushq/pkg/domain"
	dErrors "nexushq/pkg/domain-errors"
)

// ClientGetter is the part of the registry service the adapter needs.
type ClientGetter interface {
	Get(ctx context.Context, clientID id.ClientID) (*registryModels.Client, error)
}

// RegistryAdapter implements ports.ClientLookup by calling the registry
// service in process.
type RegistryAdapter struct {
	registry ClientGetter
}

func NewRegistryAdapter(registry ClientGetter) *RegistryAdapter {
	return &RegistryAdapter{registry: registry}
}

var _ ports.ClientLookup = (*RegistryAdapter)(nil)

func (a *RegistryAdapter) ClientTier(ctx context.Context, clientID id.ClientID) (commission.Tier, error) {
	client, err := a.registry.Get(ctx, clientID)
	if err != nil {
		if dErrors.HasCode(err, dErrors.CodeNotFound) {
			return 0, dErrors.New(dErrors.CodeUnknownClient, "unknown client")
		}
		return 0, err
	}
	return client.Tier, nil
}

// Exists reports whether the client is registered. It matches the memory
// ledger's ClientChecker signature.
func (a *RegistryAdapter) Exists(ctx context.Context, clientID id.ClientID) bool {
	_, err := a.registry.Get(ctx, clientID)
	return err == nil
}

package commands

import (
	"context"
	"fmt"
	"io"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"nexushq/internal/app"
	ledgerModels "nexushq/internal/ledger/models"
	registryModels "nexushq/internal/registry/models"
	dErrors "nexushq/pkg/domain-errors"
)

var demoClients = []registryModels.RegisterRequest{
	{Name: "CardVault NYC", Email: "tom@cardvault.com", Location: "New York, NY", Tier: "enterprise"},
	{Name: "Jersey Cards", Email: "mike@jerseycards.com", Location: "East Rutherford, NJ", Tier: "professional"},
	{Name: "Mike's MTG Emporium", Email: "mike@mikesmtg.com", Location: "Newark, NJ", Tier: "starter"},
	{Name: "Collectors Haven", Email: "sarah@collectorshaven.com", Location: "Hoboken, NJ", Tier: "founders"},
}

var demoSales = []ledgerModels.SalePayload{
	{DeckName: "Gruul Aggro", Format: "Commander", CardCount: 100, SaleValue: decimal.RequireFromString("45.67")},
	{DeckName: "Mono Blue Control", Format: "Commander", CardCount: 100, SaleValue: decimal.RequireFromString("12.34")},
	{DeckName: "Burn", Format: "Modern", CardCount: 60, SaleValue: decimal.RequireFromString("89.00")},
	{DeckName: "Elves", Format: "Legacy", CardCount: 60, SaleValue: decimal.RequireFromString("234.50")},
	{DeckName: "Goblins", Format: "Pauper", CardCount: 60, SaleValue: decimal.RequireFromString("8.99")},
}

func seedCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "seed",
		Short: "Register demo clients and record sample sales",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd)
			if err != nil {
				return err
			}
			defer a.Close()
			return seed(cmd.Context(), a, cmd.OutOrStdout())
		},
	}
}

// seed is safe to rerun: clients that already exist are skipped, and only
// newly registered clients receive sales.
func seed(ctx context.Context, a *app.App, out io.Writer) error {
	var registered []*registryModels.Registration
	for _, req := range demoClients {
		reg, err := a.Registry.Register(ctx, &req)
		if dErrors.HasCode(err, dErrors.CodeDuplicateRegistration) {
			fmt.Fprintf(out, "[!] %s already registered\n", req.Name)
			continue
		}
		if err != nil {
			return fmt.Errorf("register %s: %w", req.Name, err)
		}
		fmt.Fprintf(out, "[OK] %s (%s) api_key=%s\n", req.Name, reg.Client.Tier, reg.APIKey)
		registered = append(registered, reg)
	}
	if len(registered) == 0 {
		return nil
	}

	for i, payload := range demoSales {
		client := registered[i%len(registered)].Client
		sale, _, err := a.Ledger.RecordSale(ctx, client.ID, payload, fmt.Sprintf("seed-%d", i))
		if err != nil {
			return fmt.Errorf("record sale %s: %w", payload.DeckName, err)
		}
		fmt.Fprintf(out, "     %s: $%s -> fee $%s\n", sale.DeckName, sale.SaleValue.StringFixed(2), sale.NexusFee.StringFixed(2))
	}

	stats, err := a.Aggregator.NetworkStats(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "\nActive clients: %d\nMRR:            $%s\nTotal fees:     $%s\nTotal sales:    %d\n",
		stats.ActiveClients, stats.MRR.StringFixed(2), stats.Fees.Total.StringFixed(2), stats.Sales.Total)
	return nil
}

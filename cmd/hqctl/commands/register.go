package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"nexushq/internal/registry/models"
)

func registerCmd() *cobra.Command {
	var req models.RegisterRequest
	cmd := &cobra.Command{
		Use:   "register [name]",
		Short: "Register a client and print its API key",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			req.Name = args[0]
			reg, err := a.Registry.Register(cmd.Context(), &req)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "client_id:  %s\n", reg.Client.ID)
			fmt.Fprintf(out, "tier:       %s (%s%%)\n", reg.Client.Tier, reg.Client.Tier.RatePercent())
			fmt.Fprintf(out, "api_key:    %s\n", reg.APIKey)
			fmt.Fprintln(out, "Store the API key now; it cannot be shown again.")
			return nil
		},
	}
	cmd.Flags().StringVar(&req.Tier, "tier", "starter", "subscription tier")
	cmd.Flags().StringVar(&req.Email, "email", "", "contact email")
	cmd.Flags().StringVar(&req.Location, "location", "", "shop location")
	return cmd
}

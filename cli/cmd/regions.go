package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/GEMDevEng/GradientLab/cli/style"
)

var regionsCmd = &cobra.Command{
	Use:   "regions [provider]",
	Short: "List regions for a provider, or all providers",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		providers := args
		if len(providers) == 0 {
			var err error
			providers, err = client.ListProviders()
			if err != nil {
				return err
			}
		}

		for _, p := range providers {
			regions, err := client.ListRegions(p)
			if err != nil {
				return err
			}
			fmt.Println(style.ProviderBadge.Render(p))
			for _, r := range regions {
				dot := style.DotHealthy
				if !r.Available {
					dot = style.DotDim
				}
				fmt.Printf("  %s %-20s %s\n", dot, r.ID, style.DimText.Render(r.Name))
			}
			fmt.Println()
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(regionsCmd)
}

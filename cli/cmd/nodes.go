package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/GEMDevEng/GradientLab/cli/style"
)

var nodesCmd = &cobra.Command{
	Use:   "nodes",
	Short: "List every Sentry Node with its health numbers",
	RunE: func(cmd *cobra.Command, args []string) error {
		nodes, err := client.ListNodes()
		if err != nil {
			return err
		}
		if len(nodes) == 0 {
			fmt.Println(style.DimText.Render("No nodes yet."))
			return nil
		}

		header := fmt.Sprintf("  %-2s  %-24s %-12s %-8s %-8s %s",
			"", "NAME", "STATUS", "UPTIME", "POC", "LAST CHECK")
		fmt.Println(style.TableHeader.Render(header))

		for _, n := range nodes {
			last := n.LastCheckedAt
			if last == "" {
				last = "never"
			}
			fmt.Printf("  %s  %s %-12s %-8s %-8s %s\n",
				style.NodeDot(n.Status),
				style.Bold.Render(padRight(n.Name, 24)),
				n.Status,
				fmt.Sprintf("%.1f%%", n.UptimePercentage),
				fmt.Sprintf("%.1f%%", n.PocSuccessRate),
				style.DimText.Render(last))
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(nodesCmd)
}

package cmd

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/GEMDevEng/GradientLab/cli/api"
	"github.com/GEMDevEng/GradientLab/cli/style"
)

var statusCmd = &cobra.Command{
	Use:     "status [vm-id]",
	Short:   "Show the fleet, or one VM with its nodes",
	Aliases: []string{"s", "ls"},
	Args:    cobra.MaximumNArgs(1),
	RunE:    runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, args []string) error {
	if len(args) == 1 {
		return showVMDetail(args[0])
	}
	return showFleet()
}

func showFleet() error {
	stats, err := client.Stats()
	if err != nil {
		return fmt.Errorf("failed to fetch stats: %w", err)
	}
	vms, err := client.ListVMs()
	if err != nil {
		return fmt.Errorf("failed to fetch vms: %w", err)
	}

	fmt.Println(style.Banner.Render("◢ GRADIENTLAB") +
		style.Subtitle.Render(fmt.Sprintf("  %d/%d vms running, %d/%d nodes up, avg uptime %.1f%%",
			stats.RunningVMs, stats.TotalVMs, stats.RunningNodes, stats.TotalNodes, stats.AvgUptime)))
	fmt.Println()

	if len(vms) == 0 {
		fmt.Println(style.DimText.Render("No VMs yet. Provision one with: gradctl vm create"))
		return nil
	}

	header := fmt.Sprintf(
		"  %-2s  %-20s %-10s %-16s %-14s %-15s %s",
		"", "NAME", "PROVIDER", "REGION", "TYPE", "IP", "STATUS",
	)
	fmt.Println(style.TableHeader.Render(header))

	for _, vm := range vms {
		printVMRow(vm)
	}
	fmt.Println()
	return nil
}

func printVMRow(vm api.VM) {
	dot := style.StatusDot(vm.Status == "running")
	name := style.Bold.Render(padRight(vm.Name, 20))
	provider := style.ProviderBadge.Render(padRight(vm.Provider, 10))
	ip := vm.IPAddress
	if ip == "" {
		ip = style.DimText.Render("—")
	}

	statusStyle := style.DimText
	switch vm.Status {
	case "running":
		statusStyle = style.Healthy
	case "stopped":
		statusStyle = style.Warning
	case "provisioning":
		statusStyle = style.Warning
	}

	fmt.Printf("  %s  %s %s %-16s %-14s %-15s %s\n",
		dot, name, provider, vm.Region, vm.InstanceType, ip, statusStyle.Render(vm.Status))
}

func showVMDetail(id string) error {
	vm, err := client.GetVM(id)
	if err != nil {
		return fmt.Errorf("failed to fetch vm: %w", err)
	}
	nodes, err := client.ListVMNodes(id)
	if err != nil {
		return fmt.Errorf("failed to fetch nodes: %w", err)
	}

	cardStyle := style.CardHealthy
	if vm.Status != "running" {
		cardStyle = style.CardUnhealthy
	}

	var b strings.Builder
	b.WriteString(style.Bold.Render(vm.Name))
	b.WriteString("  ")
	b.WriteString(style.ProviderBadge.Render(vm.Provider))
	b.WriteString("  " + lipgloss.NewStyle().Foreground(style.Cyan).Render(vm.Status))
	b.WriteString("\n\n")

	kvLine := func(k, v string) {
		b.WriteString(style.Key.Render(k))
		b.WriteString(style.Val.Render(v))
		b.WriteString("\n")
	}
	kvLine("Region", vm.Region)
	kvLine("Type", vm.InstanceType)
	if vm.IPAddress != "" {
		kvLine("IP", vm.IPAddress)
	}
	if vm.ProviderNativeID != "" {
		kvLine("Native ID", vm.ProviderNativeID)
	}
	kvLine("Created", vm.CreatedAt)

	if len(nodes) > 0 {
		b.WriteString("\n")
		b.WriteString(style.TableHeader.Render("  Sentry Nodes"))
		b.WriteString("\n")
		for _, n := range nodes {
			b.WriteString(fmt.Sprintf("  %s %s  %s  uptime %.1f%%  poc %.1f%%\n",
				style.NodeDot(n.Status), n.Name, style.DimText.Render(n.Status),
				n.UptimePercentage, n.PocSuccessRate))
		}
	}

	fmt.Println(cardStyle.Render(b.String()))
	return nil
}

func padRight(s string, n int) string {
	if len(s) >= n {
		return s
	}
	return s + strings.Repeat(" ", n-len(s))
}

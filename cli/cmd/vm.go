package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/GEMDevEng/GradientLab/cli/api"
	"github.com/GEMDevEng/GradientLab/cli/style"
)

var (
	createProvider string
	createRegion   string
	createSize     string
)

var vmCmd = &cobra.Command{
	Use:   "vm",
	Short: "Manage fleet VMs",
}

var vmCreateCmd = &cobra.Command{
	Use:   "create <name>",
	Short: "Provision a VM and deploy a Sentry Node on it",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		fmt.Println(style.DimText.Render("Provisioning (this can take a minute)..."))
		vm, err := client.CreateVM(api.CreateVMRequest{
			Name:     args[0],
			Provider: createProvider,
			Region:   createRegion,
			Size:     createSize,
		})
		if err != nil {
			return err
		}
		fmt.Printf("%s %s on %s/%s (%s)\n",
			style.Healthy.Render("created"), style.Bold.Render(vm.Name),
			vm.Provider, vm.Region, vm.IPAddress)
		return nil
	},
}

var vmStartCmd = &cobra.Command{
	Use:   "start <vm-id>",
	Short: "Start a stopped VM",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		vm, err := client.StartVM(args[0])
		if err != nil {
			return err
		}
		fmt.Printf("%s %s\n", style.Healthy.Render("running"), vm.Name)
		return nil
	},
}

var vmStopCmd = &cobra.Command{
	Use:   "stop <vm-id>",
	Short: "Stop a running VM",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		vm, err := client.StopVM(args[0])
		if err != nil {
			return err
		}
		fmt.Printf("%s %s\n", style.Warning.Render("stopped"), vm.Name)
		return nil
	},
}

var vmDeleteCmd = &cobra.Command{
	Use:   "delete <vm-id>",
	Short: "Delete a VM and its nodes",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := client.DeleteVM(args[0]); err != nil {
			return err
		}
		fmt.Println(style.Unhealthy.Render("deleted ") + args[0])
		return nil
	},
}

func init() {
	vmCreateCmd.Flags().StringVar(&createProvider, "provider", "oracle", "cloud provider (oracle|google|azure)")
	vmCreateCmd.Flags().StringVar(&createRegion, "region", "", "provider region (required)")
	vmCreateCmd.Flags().StringVar(&createSize, "size", "small", "instance size (small|medium|large)")
	vmCreateCmd.MarkFlagRequired("region")

	vmCmd.AddCommand(vmCreateCmd, vmStartCmd, vmStopCmd, vmDeleteCmd)
	rootCmd.AddCommand(vmCmd)
}

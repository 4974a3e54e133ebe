package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"devdash/internal/config"
	"devdash/internal/ports"
)

var portsCmd = &cobra.Command{
	Use:   "ports",
	Short: "Find and check dev server ports",
	RunE: func(cmd *cobra.Command, args []string) error {
		return cmd.Help()
	},
}

var portsAllocateCmd = &cobra.Command{
	Use:   "allocate <category>",
	Short: "Print the first free port in a category's range",
	Long: `Print the first free port in the range configured for a project type
(nextjs, vite, express, node). Unknown types use 8000-8100.

EXAMPLES:
  devdash ports allocate vite
  devdash ports allocate nextjs --config ~/dev/devdash.yaml`,
	Args: cobra.ExactArgs(1),
	RunE: runPortsAllocate,
}

var portsCheckCmd = &cobra.Command{
	Use:   "check <port>",
	Short: "Report whether a port can be bound",
	Args:  cobra.ExactArgs(1),
	RunE:  runPortsCheck,
}

func init() {
	portsCmd.AddCommand(portsAllocateCmd)
	portsCmd.AddCommand(portsCheckCmd)
}

func runPortsAllocate(cmd *cobra.Command, args []string) error {
	store, err := config.NewStore(loadConfig().Projects.Path)
	if err != nil {
		return err
	}

	alloc := ports.NewAllocator(store.PortRanges(), ports.Probe{})
	port, err := alloc.Allocate(args[0])
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), port)
	return nil
}

func runPortsCheck(cmd *cobra.Command, args []string) error {
	port, err := strconv.Atoi(args[0])
	if err != nil || port < 1 || port > 65535 {
		return fmt.Errorf("invalid port %q", args[0])
	}
	if !(ports.Probe{}).IsAvailable(port) {
		return fmt.Errorf("port %d is in use", port)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "port %d is available\n", port)
	return nil
}

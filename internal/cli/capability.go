package cli

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// NewCapabilityCmd создаёт группу команд для управления capabilities.
func NewCapabilityCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "capability",
		Short: "Manage capabilities",
	}

	cmd.AddCommand(
		newCapabilityListCmd(clientFn, outputFn),
		newCapabilityRegisterCmd(clientFn, outputFn),
		newCapabilityShowCmd(clientFn, outputFn),
		newCapabilityStatsCmd(clientFn, outputFn),
	)

	return cmd
}

func newCapabilityListCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	var category string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List capabilities",
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			capabilities, err := client.ListCapabilities(category)
			if err != nil {
				return err
			}

			out.Capabilities(capabilities)
			return nil
		},
	}

	cmd.Flags().StringVar(&category, "category", "", "Filter by category")

	return cmd
}

func newCapabilityRegisterCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	var file string

	cmd := &cobra.Command{
		Use:   "register",
		Short: "Register a capability from a descriptor file (JSON)",
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			data, err := os.ReadFile(file)
			if err != nil {
				return fmt.Errorf("failed to read descriptor file: %w", err)
			}
			if !json.Valid(data) {
				return fmt.Errorf("descriptor file is not valid JSON")
			}

			d, err := client.RegisterCapability(json.RawMessage(data))
			if err != nil {
				return err
			}

			out.Success(fmt.Sprintf("Capability registered: %s", d.ID))
			out.Capability(d)
			return nil
		},
	}

	cmd.Flags().StringVarP(&file, "file", "f", "", "Path to descriptor JSON file (required)")
	cmd.MarkFlagRequired("file")

	return cmd
}

func newCapabilityShowCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "show ID",
		Short: "Show capability details",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			d, err := client.GetCapability(args[0])
			if err != nil {
				return err
			}

			out.Capability(d)
			return nil
		},
	}
}

func newCapabilityStatsCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "stats ID",
		Short: "Show capability invocation metrics",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			stats, err := client.CapabilityStats(args[0])
			if err != nil {
				return err
			}

			out.JSON(stats)
			return nil
		},
	}
}

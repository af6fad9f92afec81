package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// NewResourceCmd создаёт группу команд для управления resources.
func NewResourceCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "resource",
		Short: "Manage shared resources",
	}

	cmd.AddCommand(
		newResourceSearchCmd(clientFn, outputFn),
		newResourceRegisterCmd(clientFn, outputFn),
		newResourceShowCmd(clientFn, outputFn),
		newResourceUpdateCmd(clientFn, outputFn),
		newResourceDeleteCmd(clientFn, outputFn),
		newResourceShareCmd(clientFn, outputFn),
		newResourceLockCmd(clientFn, outputFn),
		newResourceUnlockCmd(clientFn, outputFn),
		newResourceStatsCmd(clientFn, outputFn),
	)

	return cmd
}

func newResourceSearchCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	var resType, owner, from, to string
	var tags []string

	cmd := &cobra.Command{
		Use:   "search [QUERY]",
		Short: "Search resources",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			opts := SearchResourcesOpts{Type: resType, OwnerID: owner, Tags: tags, From: from, To: to}
			if len(args) > 0 {
				opts.Query = args[0]
			}

			resources, err := client.SearchResources(opts)
			if err != nil {
				return err
			}

			out.Resources(resources)
			return nil
		},
	}

	cmd.Flags().StringVar(&resType, "type", "", "Filter by resource type")
	cmd.Flags().StringVar(&owner, "owner", "", "Filter by owner")
	cmd.Flags().StringArrayVar(&tags, "tag", nil, "Filter by tag (repeatable)")
	cmd.Flags().StringVar(&from, "from", "", "Updated at or after this RFC 3339 time")
	cmd.Flags().StringVar(&to, "to", "", "Updated at or before this RFC 3339 time")

	return cmd
}

func newResourceRegisterCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	var name, resType, file, access string
	var tags []string

	cmd := &cobra.Command{
		Use:   "register",
		Short: "Register a new resource from a file",
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			content, err := os.ReadFile(file)
			if err != nil {
				return fmt.Errorf("failed to read content file: %w", err)
			}

			res, err := client.RegisterResource(RegisterResourceRequest{
				Name:        name,
				Type:        resType,
				Content:     content,
				AccessLevel: access,
				Tags:        tags,
			})
			if err != nil {
				return err
			}

			out.Success(fmt.Sprintf("Resource registered: %s", res.ID))
			out.Resource(res)
			return nil
		},
	}

	cmd.Flags().StringVar(&name, "name", "", "Resource name (required)")
	cmd.Flags().StringVar(&resType, "type", "", "Resource type (required)")
	cmd.Flags().StringVarP(&file, "file", "f", "", "Path to content file (required)")
	cmd.Flags().StringVar(&access, "access", "", "Access level (public/private)")
	cmd.Flags().StringArrayVar(&tags, "tag", nil, "Resource tag (repeatable)")
	cmd.MarkFlagRequired("name")
	cmd.MarkFlagRequired("type")
	cmd.MarkFlagRequired("file")

	return cmd
}

func newResourceShowCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	var showContent bool

	cmd := &cobra.Command{
		Use:   "show ID",
		Short: "Show resource details",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			res, err := client.GetResource(args[0])
			if err != nil {
				return err
			}

			out.Resource(res)

			if showContent && !out.jsonMode {
				fmt.Println(string(res.Content))
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&showContent, "content", false, "Print resource content to stdout")

	return cmd
}

func newResourceUpdateCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	var file string

	cmd := &cobra.Command{
		Use:   "update ID",
		Short: "Update resource content",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			content, err := os.ReadFile(file)
			if err != nil {
				return fmt.Errorf("failed to read content file: %w", err)
			}

			res, err := client.UpdateResource(args[0], content)
			if err != nil {
				return err
			}

			out.Success(fmt.Sprintf("Resource updated to version %d", res.Version))
			out.Resource(res)
			return nil
		},
	}

	cmd.Flags().StringVarP(&file, "file", "f", "", "Path to new content file (required)")
	cmd.MarkFlagRequired("file")

	return cmd
}

func newResourceDeleteCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "delete ID",
		Short: "Delete a resource and its version archive",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			if err := client.DeleteResource(args[0]); err != nil {
				return err
			}

			out.Success(fmt.Sprintf("Resource deleted: %s", args[0]))
			return nil
		},
	}
}

func newResourceShareCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	var grantee, level string

	cmd := &cobra.Command{
		Use:   "share ID",
		Short: "Grant another holder access to a resource",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			res, err := client.ShareResource(args[0], ShareResourceRequest{
				GranteeID: grantee,
				Level:     level,
			})
			if err != nil {
				return err
			}

			out.Success(fmt.Sprintf("Resource %s shared with %s", res.ID, grantee))
			return nil
		},
	}

	cmd.Flags().StringVar(&grantee, "grantee", "", "Grantee holder ID (required)")
	cmd.Flags().StringVar(&level, "level", "read", "Grant level (read/write)")
	cmd.MarkFlagRequired("grantee")

	return cmd
}

func newResourceLockCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	var timeoutSec int

	cmd := &cobra.Command{
		Use:   "lock ID",
		Short: "Acquire an advisory lock on a resource",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			lock, err := client.LockResource(args[0], timeoutSec)
			if err != nil {
				return err
			}

			out.Success(fmt.Sprintf("Resource locked: %s", args[0]))
			out.JSON(lock)
			return nil
		},
	}

	cmd.Flags().IntVar(&timeoutSec, "timeout", 0, "Lock TTL in seconds (default: server-side)")

	return cmd
}

func newResourceUnlockCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "unlock ID",
		Short: "Release an advisory lock",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			if err := client.UnlockResource(args[0]); err != nil {
				return err
			}

			out.Success(fmt.Sprintf("Resource unlocked: %s", args[0]))
			return nil
		},
	}
}

func newResourceStatsCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show aggregated resource statistics",
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			stats, err := client.ResourceStats()
			if err != nil {
				return err
			}

			out.JSON(stats)
			return nil
		},
	}
}

package cli

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/shaiso/Dirigent/internal/catalog"
	"github.com/spf13/cobra"
)

// NewTemplateCmd создаёт группу команд для управления templates.
func NewTemplateCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "template",
		Short: "Manage workflow templates",
	}

	cmd.AddCommand(
		newTemplateListCmd(clientFn, outputFn),
		newTemplateShowCmd(clientFn, outputFn),
		newTemplateLatestCmd(clientFn, outputFn),
		newTemplateApplyCmd(clientFn, outputFn),
		newTemplateDeactivateCmd(clientFn, outputFn),
	)

	return cmd
}

func newTemplateListCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List all templates",
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			templates, err := client.ListTemplates()
			if err != nil {
				return err
			}

			out.Templates(templates)
			return nil
		},
	}
}

func newTemplateShowCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "show ID",
		Short: "Show template details",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			tpl, err := client.GetTemplate(args[0])
			if err != nil {
				return err
			}

			out.Template(tpl)
			return nil
		},
	}
}

func newTemplateLatestCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "latest LINEAGE",
		Short: "Show the latest template version in a lineage",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			tpl, err := client.LatestTemplate(args[0])
			if err != nil {
				return err
			}

			out.Template(tpl)
			return nil
		},
	}
}

func newTemplateApplyCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	var file string

	cmd := &cobra.Command{
		Use:   "apply",
		Short: "Publish a template from a definition file (JSON or YAML)",
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			data, err := os.ReadFile(file)
			if err != nil {
				return fmt.Errorf("failed to read definition file: %w", err)
			}

			// Парсим локально: YAML конвертируется в JSON для API,
			// ошибки формата ловятся до запроса
			def, err := catalog.ParseDefinition(data, file)
			if err != nil {
				return err
			}

			body, err := json.Marshal(def)
			if err != nil {
				return fmt.Errorf("failed to encode definition: %w", err)
			}

			tpl, err := client.PublishTemplate(body)
			if err != nil {
				return err
			}

			out.Success(fmt.Sprintf("Template published: %s (version %d)", tpl.ID, tpl.Version))
			out.Template(tpl)
			return nil
		},
	}

	cmd.Flags().StringVarP(&file, "file", "f", "", "Path to template definition (required)")
	cmd.MarkFlagRequired("file")

	return cmd
}

func newTemplateDeactivateCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "deactivate ID",
		Short: "Deactivate a template",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			if err := client.DeactivateTemplate(args[0]); err != nil {
				return err
			}

			out.Success(fmt.Sprintf("Template deactivated: %s", args[0]))
			return nil
		},
	}
}

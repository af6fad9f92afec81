// Dirigent CLI — инструмент командной строки для управления
// templates, tasks, resources, capabilities и schedules через HTTP API.
//
// Использование:
//
//	dirigent [--api-url URL] [--requester ID] [--json] <command> <subcommand> [flags]
//
// Команды:
//
//	template    Управление workflow templates
//	task        Управление tasks
//	resource    Управление shared resources
//	capability  Управление capabilities
//	schedule    Управление schedules
//	events      Наблюдение за событиями системы
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/shaiso/Dirigent/internal/cli"
)

// version задаётся через ldflags при сборке.
var version = "dev"

func main() {
	var apiURL string
	var requester string
	var jsonOutput bool

	rootCmd := &cobra.Command{
		Use:           "dirigent",
		Short:         "Dirigent CLI — workflow orchestration tool",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().StringVar(&apiURL, "api-url", "http://localhost:8080", "API server URL")
	rootCmd.PersistentFlags().StringVar(&requester, "requester", "cli", "Requester ID sent with every request")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "Output in JSON format")

	clientFn := func() *cli.Client { return cli.NewClient(apiURL, requester) }
	outputFn := func() *cli.Output { return cli.NewOutput(jsonOutput) }

	rootCmd.AddCommand(
		cli.NewTemplateCmd(clientFn, outputFn),
		cli.NewTaskCmd(clientFn, outputFn),
		cli.NewResourceCmd(clientFn, outputFn),
		cli.NewCapabilityCmd(clientFn, outputFn),
		cli.NewScheduleCmd(clientFn, outputFn),
		cli.NewEventsCmd(outputFn),
	)

	// Ctrl+C останавливает долгоживущие команды (events watch) через контекст
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

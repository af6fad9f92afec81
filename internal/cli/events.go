package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/shaiso/Dirigent/internal/events"
	"github.com/shaiso/Dirigent/internal/mq"
)

// NewEventsCmd создаёт группу команд для наблюдения за событиями.
//
// Единственная группа, работающая не через HTTP API: watch подключается
// к fanout-обменнику событий напрямую по AMQP.
func NewEventsCmd(outputFn func() *Output) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "events",
		Short: "Observe system events",
	}

	cmd.AddCommand(newEventsWatchCmd(outputFn))

	return cmd
}

func newEventsWatchCmd(outputFn func() *Output) *cobra.Command {
	var mqURL string

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Stream system events until interrupted",
		RunE: func(cmd *cobra.Command, args []string) error {
			out := outputFn()

			if mqURL == "" {
				mqURL = os.Getenv("RABBITMQ_URL")
			}
			if mqURL == "" {
				mqURL = mq.DefaultURL()
			}

			// Инфраструктурные логи mq не должны мешать потоку событий
			logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
				Level: slog.LevelWarn,
			}))

			conn, err := mq.NewConnection(mqURL, "dirigent-cli", logger)
			if err != nil {
				return fmt.Errorf("failed to connect to RabbitMQ: %w", err)
			}
			defer conn.Close()

			ctx := cmd.Context()

			// Эксклюзивная очередь с серверным именем: живёт, пока жив watch
			queue, err := mq.DeclareEventQueue(ctx, conn, "")
			if err != nil {
				return err
			}

			out.Success("Watching events (Ctrl+C to stop)")

			consumer := mq.NewEventConsumer(conn, logger, queue, func(_ context.Context, e events.Event) {
				out.Event(e)
			})

			if err := consumer.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
				return err
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&mqURL, "mq-url", "", "RabbitMQ URL (default: $RABBITMQ_URL or local broker)")

	return cmd
}

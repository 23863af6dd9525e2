package cli

import (
	"context"
	"errors"
	"io"
	"os"
	"os/signal"
	"syscall"

	"taskmanager/internal/events"
	"taskmanager/pkg/mq"

	"github.com/spf13/cobra"
)

func newEventsCommand(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "events",
		Short: "Inspect task activity events published to RabbitMQ",
	}
	cmd.AddCommand(newEventsWatchCommand(opts))
	return cmd
}

func newEventsWatchCommand(opts *rootOptions) *cobra.Command {
	var bindingKey, queue string

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Print activity events as they are published",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, opts, func(ctx context.Context, a *app, out io.Writer) error {
				if a.cfg.Events.URL == "" {
					return errors.New("events.url is not configured, set it in config or MQ_URL")
				}

				consumer, err := mq.NewConsumer(a.cfg.Events.URL, a.cfg.Events.Exchange, queue, bindingKey, a.logger)
				if err != nil {
					return err
				}
				defer consumer.Close()
				consumer.SetHandler(events.PrintHandler(out))

				ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
				defer stop()
				return consumer.StartConsuming(ctx)
			})
		},
	}

	cmd.Flags().StringVarP(&bindingKey, "key", "k", events.WatchBindingKey, "Routing key pattern to bind, e.g. task.*")
	cmd.Flags().StringVarP(&queue, "queue", "q", "", "Durable queue name; empty uses a temporary queue")
	return cmd
}

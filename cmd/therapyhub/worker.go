package main

import (
	"errors"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"therapyhub/internal/adapters/email"
	"therapyhub/internal/adapters/queue"
	"therapyhub/internal/services"
	"therapyhub/internal/worker"
)

func newWorkerCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "worker",
		Args:  cobra.NoArgs,
		Short: "Consume registration events and send notification emails",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			a, err := newApp()
			if err != nil {
				return err
			}
			defer a.close()
			if a.cfg.RabbitMQ.URL == "" {
				return errors.New("RABBITMQ_URL is required for the worker")
			}
			client, err := queue.Dial(a.queueConfig(), a.logger)
			if err != nil {
				return err
			}
			a.closers = append(a.closers, client.Close)

			mailer, err := a.mailer()
			if err != nil {
				return err
			}
			emails := services.NewEmailService(mailer, email.NewTemplateRenderer(), a.logger)

			notifier := worker.NewNotifier(client, emails, a.logger)
			notifier.Start(ctx)
			select {
			case <-ctx.Done():
			case <-notifier.Done():
			}
			return notifier.Stop()
		},
	}
}

package main

import (
	"context"
	"fmt"
	"io"
	"ms-checkout/internal/kafka"
	"os"
	"os/signal"
	"syscall"

	kafkago "github.com/segmentio/kafka-go"
	"github.com/spf13/cobra"
)

func eventsCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "events",
		Short: "Inspect published checkout events",
	}

	var group string
	tail := &cobra.Command{
		Use:   "tail [topic]",
		Short: "Print checkout events as they are published (defaults to the status topic)",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			topic := a.cfg.Kafka.Topics.CheckoutStatusChanged
			if len(args) == 1 {
				topic = args[0]
			}

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			consumer := kafka.NewConsumer(a.cfg.Kafka.Brokers, topic, group, a.log)
			defer consumer.Close()

			a.log.Info("KAFKA", fmt.Sprintf("Tailing %s on %v", topic, a.cfg.Kafka.Brokers))
			return consumer.Start(ctx, printMessage(cmd.OutOrStdout()))
		},
	}
	tail.Flags().StringVar(&group, "group", "checkoutctl", "consumer group id")
	cmd.AddCommand(tail)

	return cmd
}

func printMessage(w io.Writer) func(kafkago.Message) error {
	return func(msg kafkago.Message) error {
		_, err := fmt.Fprintf(w, "%s [%d@%d] key=%s %s\n", msg.Topic, msg.Partition, msg.Offset, msg.Key, msg.Value)
		return err
	}
}

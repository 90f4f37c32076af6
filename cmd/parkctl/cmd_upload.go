package main

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/iliyamo/parksavvy/internal/config"
	"github.com/iliyamo/parksavvy/internal/queue"
	queue_publisher "github.com/iliyamo/parksavvy/internal/service"
)

func newUploadCompletedCmd() *cobra.Command {
	var (
		userID   uint64
		uploadID uint64
		eventID  string
		amqpURL  string
	)
	cmd := &cobra.Command{
		Use:   "upload-completed",
		Short: "Publish an upload.completed event",
		Long: `Publish the event the image pipeline sends after processing a photo.
The consumer credits the upload reward once per event id, so re-running
with the same --event-id is safe.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if eventID == "" {
				eventID = uuid.NewString()
			}
			ev := queue.UploadCompletedEvent{
				EventID:     eventID,
				UserID:      userID,
				UploadID:    uploadID,
				CompletedAt: time.Now().UTC().Format(time.RFC3339),
			}
			if err := ev.Validate(); err != nil {
				return err
			}
			if amqpURL == "" {
				amqpURL = config.AMQPURL()
			}
			if err := queue_publisher.New(amqpURL, log).PublishUploadCompleted(cmd.Context(), ev); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "published %s (user %d, upload %d)\n", ev.EventID, ev.UserID, ev.UploadID)
			return nil
		},
	}
	cmd.Flags().Uint64Var(&userID, "user", 0, "user id")
	cmd.Flags().Uint64Var(&uploadID, "upload", 0, "upload id")
	cmd.Flags().StringVar(&eventID, "event-id", "", "event id (default: random uuid)")
	cmd.Flags().StringVar(&amqpURL, "amqp-url", "", "broker URL (default $RABBITMQ_URL)")
	return cmd
}

package client

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/rzbill/feedsub/internal/feed"
	"github.com/spf13/cobra"
)

// newPublishCommand constructs the `publish` command. Only the development
// feed server accepts publishes.
func newPublishCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "publish",
		Short: "Publish one event to a development feed server",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			typeName, _ := cmd.Flags().GetString("type")
			data, _ := cmd.Flags().GetString("data")
			dataFile, _ := cmd.Flags().GetString("data-file")

			et, err := feed.ParseEventType(typeName)
			if err != nil {
				return err
			}
			payload := []byte(data)
			if dataFile != "" {
				if data != "" {
					return errors.New("use either --data or --data-file")
				}
				if payload, err = os.ReadFile(dataFile); err != nil {
					return err
				}
			}

			c, err := dialFeed(cfg)
			if err != nil {
				return err
			}
			defer func() { _ = c.Close() }()
			id, err := c.Publish(cmd.Context(), et, payload)
			if err != nil {
				return fmt.Errorf("publish: %w", err)
			}
			return json.NewEncoder(cmd.OutOrStdout()).Encode(map[string]any{"id": id, "type": et.String()})
		},
	}
	addCommonFlags(cmd)
	cmd.Flags().String("type", feed.EventTypeMergeMessage.String(), "Event type")
	cmd.Flags().String("data", "", "Payload")
	cmd.Flags().String("data-file", "", "Read the payload from a file")
	return cmd
}

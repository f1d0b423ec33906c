package client

import (
	"github.com/spf13/cobra"
)

// AddCommands registers the client commands on root.
func AddCommands(root *cobra.Command) {
	root.AddCommand(newSubscribeCommand(), newPublishCommand())
}

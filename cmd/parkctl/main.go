// Command parkctl is the operator tool of the parksavvy backend: it inspects
// live availability, reads and adjusts point balances and replays upload
// events.
package main

import (
	"os"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/iliyamo/parksavvy/internal/logger"
)

var (
	envFile  string
	logLevel string
	log      *logrus.Logger
)

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "parkctl",
		Short: "Operate the parksavvy backend",
		Long: `parkctl talks to the same stores as the API server.

Available subcommands:
  groups            - Print the live availability of every area group
  balance           - Show a user's points and history
  grant             - Credit points to a user out of band
  upload-completed  - Publish an upload.completed event`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if envFile != "" {
				if err := godotenv.Load(envFile); err != nil && !os.IsNotExist(err) {
					return err
				}
			}
			log = logger.NewWithWriter(cmd.ErrOrStderr(), logLevel, "text")
			return nil
		},
	}
	root.PersistentFlags().StringVar(&envFile, "env-file", ".env", "dotenv file to load (missing file is ignored)")
	root.PersistentFlags().StringVar(&logLevel, "log-level", "warn", "log level")

	root.AddCommand(newGroupsCmd(), newBalanceCmd(), newGrantCmd(), newUploadCompletedCmd())
	return root
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

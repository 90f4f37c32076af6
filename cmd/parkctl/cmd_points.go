package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/iliyamo/parksavvy/internal/config"
	"github.com/iliyamo/parksavvy/internal/database"
	"github.com/iliyamo/parksavvy/internal/ledger"
	"github.com/iliyamo/parksavvy/internal/model"
	"github.com/iliyamo/parksavvy/internal/repository"
)

// openLedger opens the configured store.  Notifications are not sent from
// the CLI.
func openLedger() (*ledger.Service, func(), error) {
	cfg := config.LoadStore()
	db, err := database.OpenConfig(cfg)
	if err != nil {
		return nil, nil, fmt.Errorf("open %s: %w", cfg.DBDriver, err)
	}
	svc := ledger.New(repository.NewPointsRepo(db), nil, log, config.LoadUploadReward())
	return svc, func() { _ = db.Close() }, nil
}

func newBalanceCmd() *cobra.Command {
	var userID uint64
	cmd := &cobra.Command{
		Use:   "balance",
		Short: "Show a user's points and history",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if userID == 0 {
				return fmt.Errorf("--user is required")
			}
			svc, closeFn, err := openLedger()
			if err != nil {
				return err
			}
			defer closeFn()

			bal, err := svc.GetBalance(cmd.Context(), userID)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "user %d: %d points\n", userID, bal.CurrentPoints)
			if len(bal.History) == 0 {
				return nil
			}
			tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
			fmt.Fprintln(tw, "WHEN\tTYPE\tCHANGE\tDESCRIPTION")
			for _, h := range bal.History {
				fmt.Fprintf(tw, "%s\t%s\t%+d\t%s\n", h.CreatedAt.UTC().Format("2006-01-02 15:04:05"), h.Type, h.Change, h.Description)
			}
			return tw.Flush()
		},
	}
	cmd.Flags().Uint64Var(&userID, "user", 0, "user id")
	return cmd
}

func newGrantCmd() *cobra.Command {
	var (
		userID      uint64
		amount      int
		description string
		ref         string
	)
	cmd := &cobra.Command{
		Use:   "grant",
		Short: "Credit points to a user out of band",
		Long: `Credit points as an upload entry.  The balance change and the history
row are written in one transaction.  With --ref the grant is applied at
most once.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if userID == 0 {
				return fmt.Errorf("--user is required")
			}
			if amount <= 0 {
				return fmt.Errorf("--amount must be positive")
			}
			svc, closeFn, err := openLedger()
			if err != nil {
				return err
			}
			defer closeFn()

			points, err := svc.Credit(cmd.Context(), userID, model.PointsTypeUpload, amount, description, ref)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "granted %d points to user %d, balance %d\n", amount, userID, points)
			return nil
		},
	}
	cmd.Flags().Uint64Var(&userID, "user", 0, "user id")
	cmd.Flags().IntVar(&amount, "amount", 0, "points to credit")
	cmd.Flags().StringVar(&description, "description", ledger.UploadDescription, "history description")
	cmd.Flags().StringVar(&ref, "ref", "", "idempotency key")
	return cmd
}

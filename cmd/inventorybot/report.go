package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/aeranixia/Inventory-Bot/internal/jobs"
)

func newReportCmd(a *app) *cobra.Command {
	var (
		guildID  int64
		markDone bool
	)
	cmd := &cobra.Command{
		Use:       "report daily|monthly",
		Short:     "Send a report now",
		Args:      cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
		ValidArgs: []string{"daily", "monthly"},
		RunE: func(cmd *cobra.Command, args []string) error {
			if guildID <= 0 {
				return errors.New("--guild is required")
			}
			ctx := cmd.Context()
			database, err := a.openDatabase(ctx)
			if err != nil {
				return err
			}
			defer database.Close()

			svc, err := a.buildServices(ctx, database, nil)
			if err != nil {
				return err
			}

			switch args[0] {
			case "daily":
				err = svc.engine.ForceDailyReport(ctx, guildID, markDone)
			case "monthly":
				err = svc.engine.ForceMonthlyReport(ctx, guildID, markDone)
			}
			if errors.Is(err, jobs.ErrNoChannel) {
				return fmt.Errorf("guild %d has no report or alert channel", guildID)
			}
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s report sent for guild %d\n", args[0], guildID)
			return nil
		},
	}
	cmd.Flags().Int64VarP(&guildID, "guild", "g", 0, "guild id")
	cmd.Flags().BoolVar(&markDone, "mark-done", false, "record the report so the scheduler skips it")
	return cmd
}

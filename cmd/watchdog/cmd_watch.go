package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/run-bigpig/watchdog/internal/services"
)

var (
	watchUsers       []string
	watchInterval    time.Duration
	watchPrompt      string
	watchMarketHours bool
)

// watchCmd runs periodic check-ups until interrupted
var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Periodically check portfolios and alert on risk",
	Long: `Runs a check-up turn for every --user on a fixed interval. The agent
reviews portfolio health and recent news and sends an alert when something
needs attention. Stop with Ctrl-C.`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()
		a, err := newApp(ctx)
		if err != nil {
			return err
		}
		defer a.Close()
		for _, u := range watchUsers {
			if err := requireUser(ctx, a.store, u); err != nil {
				return err
			}
		}

		out := cmd.OutOrStdout()
		w := services.NewWatcher(a.session, services.WatcherConfig{
			Users:            watchUsers,
			Interval:         watchInterval,
			Prompt:           watchPrompt,
			SkipMarketClosed: watchMarketHours,
			Progress:         printProgress(out),
			OnResult: func(r services.CheckResult) {
				promptColor.Fprintf(out, "\n[%s] %s\n", r.At.Format(time.DateTime), r.User)
				switch {
				case r.Err != nil:
					errorColor.Fprintf(out, "Error: %v\n", r.Err)
				case r.Result.FinalAnswer != "":
					answerColor.Fprintln(out, r.Result.FinalAnswer)
				}
			},
		})
		if err := w.Start(ctx); err != nil {
			return err
		}
		fmt.Fprintf(out, "watching %v every %s\n", watchUsers, watchInterval)

		<-ctx.Done()
		w.Stop()
		return nil
	},
}

func init() {
	watchCmd.Flags().StringSliceVarP(&watchUsers, "user", "u", nil, "users to watch (repeatable)")
	watchCmd.Flags().DurationVar(&watchInterval, "interval", services.DefaultWatchInterval, "time between check-ups")
	watchCmd.Flags().StringVar(&watchPrompt, "prompt", services.DefaultWatchPrompt, "check-up request sent on each user's behalf")
	watchCmd.Flags().BoolVar(&watchMarketHours, "market-hours", false, "only run while US markets are open")
	_ = watchCmd.MarkFlagRequired("user")
	rootCmd.AddCommand(watchCmd)
}

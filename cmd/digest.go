package cmd

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/matheuskafuri/intelfeed/internal/briefing"
	"github.com/matheuskafuri/intelfeed/internal/notify"
	"github.com/matheuskafuri/intelfeed/internal/ratelimit"
)

var digestCmd = &cobra.Command{
	Use:   "digest <user-id>...",
	Short: "Send each user a digest of their cached topics",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var users []int64
		for _, arg := range args {
			id, err := parseUserID(arg)
			if err != nil {
				return err
			}
			users = append(users, id)
		}

		return withApp(cmd.Context(), func(a *app) error {
			limiter := ratelimit.New("notify", cfg.Notify.MessagesPerMinute,
				ratelimit.WithLogger(a.log),
				ratelimit.OnWait(observeWait),
			)
			sender := notify.NewLimited(notify.NewWriterSender(cmd.OutOrStdout()), limiter, a.log)
			builder := briefing.NewBuilder(a.svc, briefing.WithPerTopic(cfg.GetBriefSize()))

			for _, id := range users {
				d, err := builder.Build(cmd.Context(), id)
				if err != nil {
					return fmt.Errorf("user %d: %w", id, err)
				}
				if err := sender.Send(cmd.Context(), id, briefing.Render(d)); err != nil {
					a.log.Warn("digest not delivered", slog.Int64("user_id", id), slog.Any("error", err))
				}
			}
			return nil
		})
	},
}

package cmd

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/matheuskafuri/intelfeed/internal/subscription"
)

var subscribeCmd = &cobra.Command{
	Use:   "subscribe <user-id> <topic...>",
	Short: "Follow a topic and fetch its first items",
	Args:  cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		userID, err := parseUserID(args[0])
		if err != nil {
			return err
		}
		raw := strings.Join(args[1:], " ")
		out := cmd.OutOrStdout()

		return withApp(cmd.Context(), func(a *app) error {
			outcome, err := a.svc.Subscribe(cmd.Context(), userID, raw)
			switch {
			case err != nil && outcome.OK():
				fmt.Fprintf(out, "Subscribed to %q, but the first refresh failed.\n", raw)
				return err
			case err != nil:
				return err
			}
			fmt.Fprintln(out, outcomeMessage(outcome, raw))
			return nil
		})
	},
}

var unsubscribeCmd = &cobra.Command{
	Use:   "unsubscribe <user-id> <topic...>",
	Short: "Stop following a topic",
	Args:  cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		userID, err := parseUserID(args[0])
		if err != nil {
			return err
		}
		raw := strings.Join(args[1:], " ")
		out := cmd.OutOrStdout()

		return withApp(cmd.Context(), func(a *app) error {
			removed, err := a.svc.Unsubscribe(cmd.Context(), userID, raw)
			if err != nil {
				return err
			}
			if removed {
				fmt.Fprintf(out, "Unsubscribed from %q.\n", raw)
			} else {
				fmt.Fprintf(out, "Not subscribed to %q.\n", raw)
			}
			return nil
		})
	},
}

var subscriptionsCmd = &cobra.Command{
	Use:   "subscriptions <user-id>",
	Short: "List a user's topics",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		userID, err := parseUserID(args[0])
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()

		return withApp(cmd.Context(), func(a *app) error {
			topics, err := a.svc.ListSubscriptions(cmd.Context(), userID)
			if err != nil {
				return err
			}
			if len(topics) == 0 {
				fmt.Fprintln(out, "No subscriptions.")
				return nil
			}
			for _, t := range topics {
				fmt.Fprintln(out, t)
			}
			return nil
		})
	},
}

func outcomeMessage(o subscription.Outcome, raw string) string {
	switch o {
	case subscription.OutcomeSuccess:
		return fmt.Sprintf("Subscribed to %q.", raw)
	case subscription.OutcomeAlreadySubscribed:
		return fmt.Sprintf("Already subscribed to %q.", raw)
	case subscription.OutcomeInvalidDomain:
		return fmt.Sprintf("%q is outside the supported topics.", raw)
	default:
		return string(o)
	}
}

func parseUserID(s string) (int64, error) {
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid user id %q", s)
	}
	return id, nil
}

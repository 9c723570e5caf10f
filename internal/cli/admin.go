package cli

import (
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/spf13/cobra"

	"github.com/mcoot/rosterbot/internal/api/request"
	"github.com/mcoot/rosterbot/internal/api/response"
	"github.com/mcoot/rosterbot/internal/services/auth"
)

func newAdminCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "admin",
		Short: "Administrator commands",
	}

	cmd.AddCommand(newAdminCreateCmd())
	cmd.AddCommand(newAdminAddCmd())
	cmd.AddCommand(newAdminRemoveCmd())
	cmd.AddCommand(newAdminToggleCmd())
	cmd.AddCommand(newAdminStatsCmd())
	cmd.AddCommand(newAdminScheduleCmd())

	return cmd
}

func newAdminCreateCmd() *cobra.Command {
	var req request.CreateSessionRequest

	cmd := &cobra.Command{
		Use:   "create <HH:MM-HH:MM>",
		Short: "Create a session",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			req.Time = args[0]

			var result response.Session
			if err := client.Post("/api/v1/sessions", req, &result); err != nil {
				return err
			}

			NewOutput(cfg.Output, cmd.OutOrStdout()).Print(result)
			return nil
		},
	}

	cmd.Flags().StringVar(&req.Date, "date", "today", "Session date (YYYY-MM-DD, today or tomorrow)")
	cmd.Flags().IntVar(&req.Capacity, "capacity", 6, "Main list capacity")
	cmd.Flags().StringVar(&req.ChatID, "post-to", "", "Chat to post the roster to (default: --chat)")

	return cmd
}

func newAdminAddCmd() *cobra.Command {
	var ref sessionRef

	cmd := &cobra.Command{
		Use:   "add [session-id] <names>",
		Short: "Register players by name",
		Long: `Register players by name, in order, on behalf of the caller.

Names are separated by commas, so "Alice Smith, Bob" registers two players.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			names := args
			if ref.start == "" {
				if len(args) < 2 {
					return errors.New("a session ID and at least one name are required")
				}
				names = args[1:]
			}
			id, err := ref.resolve(args)
			if err != nil {
				return err
			}

			req := request.AddPlayersRequest{Text: strings.Join(names, " ")}
			var result response.AddPlayersResponse
			if err := client.Post(fmt.Sprintf("/api/v1/sessions/%d/players", id), req, &result); err != nil {
				return err
			}

			NewOutput(cfg.Output, cmd.OutOrStdout()).Print(result)
			return nil
		},
	}

	ref.addFlags(cmd)

	return cmd
}

func newAdminRemoveCmd() *cobra.Command {
	var (
		ref      sessionRef
		playerID int64
		name     string
	)

	cmd := &cobra.Command{
		Use:   "remove [session-id]",
		Short: "Remove a player from a session",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if (playerID == 0) == (name == "") {
				return errors.New("exactly one of --player or --full-name is required")
			}
			id, err := ref.resolve(args)
			if err != nil {
				return err
			}

			path := fmt.Sprintf("/api/v1/sessions/%d/players/%d", id, playerID)
			if name != "" {
				path = fmt.Sprintf("/api/v1/sessions/%d/players?name=%s", id, url.QueryEscape(name))
			}

			var result response.LeaveResponse
			if err := client.Delete(path, &result); err != nil {
				return err
			}

			NewOutput(cfg.Output, cmd.OutOrStdout()).Print(result)
			return nil
		},
	}

	ref.addFlags(cmd)
	cmd.Flags().Int64Var(&playerID, "player", 0, "Player ID to remove")
	cmd.Flags().StringVar(&name, "full-name", "", "Full name to remove (most recent registration)")

	return cmd
}

func newAdminToggleCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "toggle [on|off]",
		Short: "Show or switch the bot on or off",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var result response.SettingsResponse

			if len(args) == 0 {
				if err := client.Get("/api/v1/settings/enabled", &result); err != nil {
					return err
				}
			} else {
				req := request.SetEnabledRequest{State: args[0]}
				if err := client.Put("/api/v1/settings/enabled", req, &result); err != nil {
					return err
				}
			}

			NewOutput(cfg.Output, cmd.OutOrStdout()).Print(result)
			return nil
		},
	}
}

func newAdminStatsCmd() *cobra.Command {
	var player string

	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show participation statistics",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := NewOutput(cfg.Output, cmd.OutOrStdout())

			if player != "" {
				var result response.PlayerStats
				if err := client.Get("/api/v1/stats/players?name="+url.QueryEscape(player), &result); err != nil {
					return err
				}
				out.Print(result)
				return nil
			}

			var result response.Stats
			if err := client.Get("/api/v1/stats", &result); err != nil {
				return err
			}
			out.Print(result)
			return nil
		},
	}

	cmd.Flags().StringVar(&player, "player", "", "Show one player's statistics by full name")

	return cmd
}

func newAdminScheduleCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "schedule [date]",
		Short: "Create a date's default sessions if it has none",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			date := "tomorrow"
			if len(args) == 1 {
				date = args[0]
			}

			var result response.ScheduleResponse
			if err := client.Post("/api/v1/schedule/"+url.PathEscape(date), nil, &result); err != nil {
				return err
			}

			NewOutput(cfg.Output, cmd.OutOrStdout()).Print(result)
			return nil
		},
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "policy",
		Short: "Show the default sessions for weekdays and weekends",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			var result response.PolicyResponse

			if err := client.Get("/api/v1/schedule", &result); err != nil {
				return err
			}

			NewOutput(cfg.Output, cmd.OutOrStdout()).Print(result)
			return nil
		},
	})

	return cmd
}

func newHashTokenCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "hash-token <token>",
		Short: "Print the bcrypt hash to configure as ROSTER_GATEWAY_TOKEN_HASH",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			hash, err := auth.HashToken(args[0])
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), hash)
			return err
		},
	}
}

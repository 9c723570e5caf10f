package cli

import (
	"errors"
	"fmt"
	"net/url"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/mcoot/rosterbot/internal/api/response"
)

// sessionRef picks a session either by ID or by its date and start time
type sessionRef struct {
	date  string
	start string
}

func (s *sessionRef) addFlags(cmd *cobra.Command) {
	cmd.Flags().StringVar(&s.date, "date", "today", "Session date (YYYY-MM-DD, today or tomorrow)")
	cmd.Flags().StringVar(&s.start, "at", "", "Session start time (HH:MM), instead of an ID")
}

// resolve returns the session ID from args, looking it up by start time when --at is set
func (s *sessionRef) resolve(args []string) (int64, error) {
	if s.start != "" {
		var roster response.Roster
		path := fmt.Sprintf("/api/v1/sessions/at/%s/%s", url.PathEscape(s.date), url.PathEscape(s.start))
		if err := client.Get(path, &roster); err != nil {
			return 0, err
		}
		return roster.Session.ID, nil
	}
	if len(args) == 0 {
		return 0, errors.New("a session ID or --at is required")
	}
	id, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid session ID %q", args[0])
	}
	return id, nil
}

func newSessionsCmd() *cobra.Command {
	var date string

	cmd := &cobra.Command{
		Use:   "sessions",
		Short: "List the sessions of a date with their rosters",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			var result response.SessionsResponse

			if err := client.Get("/api/v1/sessions?date="+url.QueryEscape(date), &result); err != nil {
				return err
			}

			NewOutput(cfg.Output, cmd.OutOrStdout()).Print(result)
			return nil
		},
	}

	cmd.Flags().StringVar(&date, "date", "today", "Date (YYYY-MM-DD, today or tomorrow)")

	return cmd
}

func newShowCmd() *cobra.Command {
	var ref sessionRef

	cmd := &cobra.Command{
		Use:   "show [session-id]",
		Short: "Show one session's roster",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := ref.resolve(args)
			if err != nil {
				return err
			}

			var result response.Roster
			if err := client.Get(fmt.Sprintf("/api/v1/sessions/%d", id), &result); err != nil {
				return err
			}

			NewOutput(cfg.Output, cmd.OutOrStdout()).Print(result)
			return nil
		},
	}

	ref.addFlags(cmd)

	return cmd
}

func newJoinCmd() *cobra.Command {
	var ref sessionRef

	cmd := &cobra.Command{
		Use:   "join [session-id]",
		Short: "Sign up the caller for a session",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := ref.resolve(args)
			if err != nil {
				return err
			}

			var result response.JoinResponse
			if err := client.Post(fmt.Sprintf("/api/v1/sessions/%d/join", id), nil, &result); err != nil {
				return err
			}

			NewOutput(cfg.Output, cmd.OutOrStdout()).Print(result)
			return nil
		},
	}

	ref.addFlags(cmd)

	return cmd
}

func newLeaveCmd() *cobra.Command {
	var ref sessionRef

	cmd := &cobra.Command{
		Use:   "leave [session-id]",
		Short: "Withdraw the caller from a session",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := ref.resolve(args)
			if err != nil {
				return err
			}

			var result response.LeaveResponse
			if err := client.Post(fmt.Sprintf("/api/v1/sessions/%d/leave", id), nil, &result); err != nil {
				return err
			}

			NewOutput(cfg.Output, cmd.OutOrStdout()).Print(result)
			return nil
		},
	}

	ref.addFlags(cmd)

	return cmd
}

func newUsageCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "usage",
		Short: "Show the chat command reference from the server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			var result response.HelpResponse

			if err := client.Get("/api/v1/help", &result); err != nil {
				return err
			}

			NewOutput(cfg.Output, cmd.OutOrStdout()).Print(result)
			return nil
		},
	}
}

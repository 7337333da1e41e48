package cli

import (
	"encoding/json"

	"github.com/spf13/cobra"

	"github.com/roach88/corpusgraph/internal/session"
	"github.com/roach88/corpusgraph/internal/store"
)

// NewSessionCommand groups commands that manage the active research
// session: start, resume, note, export.
func NewSessionCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "session",
		Short: "manage the active research session",
	}
	cmd.AddCommand(newSessionStartCommand(rootOpts))
	cmd.AddCommand(newSessionResumeCommand(rootOpts))
	cmd.AddCommand(newSessionNoteCommand(rootOpts))
	cmd.AddCommand(newSessionExportCommand(rootOpts))
	return cmd
}

func newSessionStartCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "start <name>",
		Short:         "create a new session and mark it active",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			formatter := outputFormatterFor(rootOpts, cmd)
			a, err := newApp(rootOpts, 0)
			if err != nil {
				return err
			}
			defer a.Close()

			sess, err := a.store.CreateSession(cmd.Context(), args[0])
			if err != nil {
				return WrapExitError(ExitFailure, "creating session", err)
			}
			if err := (session.Marker{}).SetActive(sess.ID); err != nil {
				return WrapExitError(ExitCommandError, "writing session marker", err)
			}
			return formatter.Success(sess)
		},
	}
}

func newSessionResumeCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "resume <session-id>",
		Short:         "mark an existing session as active",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			formatter := outputFormatterFor(rootOpts, cmd)
			a, err := newApp(rootOpts, 0)
			if err != nil {
				return err
			}
			defer a.Close()

			sess, err := a.store.ReadSession(cmd.Context(), args[0])
			if err != nil {
				return WrapExitError(ExitCommandError, "reading session", err)
			}
			if err := (session.Marker{}).SetActive(sess.ID); err != nil {
				return WrapExitError(ExitCommandError, "writing session marker", err)
			}
			return formatter.Success(sess)
		},
	}
}

func newSessionNoteCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "note <text>",
		Short:         "append a note event to the active session",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			formatter := outputFormatterFor(rootOpts, cmd)

			sessionID, ok := (session.Marker{}).Active()
			if !ok {
				return NewExitError(ExitCommandError, "no active session; run `corpusgraph session start <name>` first")
			}

			a, err := newApp(rootOpts, 0)
			if err != nil {
				return err
			}
			defer a.Close()

			payload, err := json.Marshal(map[string]string{"text": args[0]})
			if err != nil {
				return WrapExitError(ExitFailure, "encoding note payload", err)
			}

			eventID, err := a.store.AppendEvent(cmd.Context(), sessionID, store.EventNote, string(payload))
			if err != nil {
				return WrapExitError(ExitFailure, "appending note event", err)
			}
			return formatter.Success(map[string]any{"session_id": sessionID, "event_id": eventID})
		},
	}
}

func newSessionExportCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "export [session-id]",
		Short:         "export a session's append-only event log",
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			formatter := outputFormatterFor(rootOpts, cmd)

			sessionID := ""
			if len(args) == 1 {
				sessionID = args[0]
			} else if id, ok := (session.Marker{}).Active(); ok {
				sessionID = id
			} else {
				return NewExitError(ExitCommandError, "no session id given and no active session set")
			}

			a, err := newApp(rootOpts, 0)
			if err != nil {
				return err
			}
			defer a.Close()

			events, err := a.store.ListEvents(cmd.Context(), sessionID)
			if err != nil {
				return WrapExitError(ExitFailure, "listing session events", err)
			}
			return formatter.Success(events)
		},
	}
}

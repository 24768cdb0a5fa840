package main

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/normanking/zira/internal/session"
)

// ═══════════════════════════════════════════════════════════════════════════════
// SESSION COMMANDS
// ═══════════════════════════════════════════════════════════════════════════════

func sessionCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "session",
		Short: "Inspect checkpointed sessions",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List checkpointed sessions",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withCheckpointer(func(cp *session.SQLiteCheckpointer) error {
				summaries, err := cp.List(cmd.Context())
				if err != nil {
					return err
				}
				if len(summaries) == 0 {
					fmt.Println("No sessions saved yet.")
					return nil
				}
				for _, s := range summaries {
					fmt.Printf("%-36s  %3d messages  %-20s  %s\n",
						s.ID, s.MessageCount, outcomeLabel(s.LastOutcome), s.UpdatedAt.Local().Format("2006-01-02 15:04"))
				}
				return nil
			})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "show <id>",
		Short: "Print a session's history",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withCheckpointer(func(cp *session.SQLiteCheckpointer) error {
				snap, err := cp.Load(cmd.Context(), args[0])
				if errors.Is(err, session.ErrNotFound) {
					return fmt.Errorf("no session %q", args[0])
				}
				if err != nil {
					return err
				}
				for _, m := range snap.Messages {
					switch {
					case len(m.ToolCalls) > 0:
						names := make([]string, 0, len(m.ToolCalls))
						for _, call := range m.ToolCalls {
							names = append(names, call.Name)
						}
						fmt.Printf("[%s] requested %s\n", m.Role, strings.Join(names, ", "))
					case m.Name != "":
						fmt.Printf("[%s:%s] %s\n", m.Role, m.Name, m.Content)
					default:
						fmt.Printf("[%s] %s\n", m.Role, m.Content)
					}
				}
				return nil
			})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "reset <id>",
		Short: "Delete a session's checkpoint",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withCheckpointer(func(cp *session.SQLiteCheckpointer) error {
				store := session.NewStore(session.Options{Checkpointer: cp})
				if err := store.Forget(cmd.Context(), args[0]); err != nil {
					return err
				}
				fmt.Printf("Session %s reset.\n", args[0])
				return nil
			})
		},
	})

	return cmd
}

func withCheckpointer(fn func(cp *session.SQLiteCheckpointer) error) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if !cfg.Session.Checkpoint.Enabled {
		return fmt.Errorf("session checkpoints are disabled in %s", getConfigPath())
	}
	if err := cfg.EnsureDirectories(); err != nil {
		return err
	}

	cp, err := session.OpenSQLiteCheckpointer(cfg.Session.Checkpoint.DBPath)
	if err != nil {
		return err
	}
	defer cp.Close()
	return fn(cp)
}

func outcomeLabel(o session.Outcome) string {
	if o == session.OutcomeNone {
		return "-"
	}
	return string(o)
}


package cli

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/g960059/ttguide/internal/config"
	"github.com/g960059/ttguide/internal/model"
	"github.com/g960059/ttguide/internal/prefs"
)

func (r *Runner) newChannelsCommand(cfg config.Config, g *globalFlags) *cobra.Command {
	parent := &cobra.Command{
		Use:   "channels",
		Short: "Inspect the terminals bound to each channel",
	}

	var jsonOut bool
	list := &cobra.Command{
		Use:   "list",
		Short: "List channels and their sessions",
		Args:  exactArgs(0, "ttguide channels list [--json]"),
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := r.openApp(cmd.Context(), cfg, g)
			if err != nil {
				return err
			}
			defer a.Close() //nolint:errcheck

			statuses, err := a.Channels(cmd.Context())
			if err != nil {
				return err
			}
			if jsonOut {
				type channelJSON struct {
					Channel     model.ChannelID `json:"channel"`
					DisplayName string          `json:"display_name"`
					SessionID   string          `json:"session_id,omitempty"`
					Live        bool            `json:"live"`
					Attached    bool            `json:"attached"`
					CreatedAt   *time.Time      `json:"created_at,omitempty"`
				}
				out := make([]channelJSON, 0, len(statuses))
				for _, st := range statuses {
					c := channelJSON{
						Channel:     st.Binding.Channel,
						DisplayName: cfg.Channel(st.Binding.Channel).DisplayName,
						Live:        st.Live,
						Attached:    st.Attached,
					}
					if st.Bound {
						created := st.Binding.CreatedAt
						c.SessionID = st.Binding.SessionID
						c.CreatedAt = &created
					}
					out = append(out, c)
				}
				return writeJSON(r.out, map[string]any{"channels": out})
			}
			for _, st := range statuses {
				name := cfg.Channel(st.Binding.Channel).DisplayName
				if !st.Bound {
					_, _ = fmt.Fprintf(r.out, "%s\t%s\tunbound\n", st.Binding.Channel, name)
					continue
				}
				state := "dead"
				switch {
				case st.Attached:
					state = "attached"
				case st.Live:
					state = "live"
				}
				_, _ = fmt.Fprintf(r.out, "%s\t%s\t%s\t%s\t%s\n",
					st.Binding.Channel, name, st.Binding.SessionID, state, humanize.Time(st.Binding.CreatedAt))
			}
			return nil
		},
	}
	list.Flags().BoolVar(&jsonOut, "json", false, "output JSON")

	forget := &cobra.Command{
		Use:   "forget <channel>",
		Short: "Drop a channel's binding so the next dispatch opens a new terminal",
		Args:  exactArgs(1, "ttguide channels forget <channel>"),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := r.openApp(cmd.Context(), cfg, g)
			if err != nil {
				return err
			}
			defer a.Close() //nolint:errcheck

			if err := a.Forget(cmd.Context(), model.ChannelID(args[0])); err != nil {
				return err
			}
			_, _ = fmt.Fprintf(r.out, "forgot channel %s\n", args[0])
			return nil
		},
	}

	parent.AddCommand(list, forget)
	return parent
}

func (r *Runner) newPrefsCommand(cfg config.Config, g *globalFlags) *cobra.Command {
	parent := &cobra.Command{
		Use:   "prefs",
		Short: "Read or change the device monitor preferences",
	}

	get := &cobra.Command{
		Use:   "get",
		Short: "Print the monitor preferences",
		Args:  exactArgs(0, "ttguide prefs get"),
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := r.openApp(cmd.Context(), cfg, g)
			if err != nil {
				return err
			}
			defer a.Close() //nolint:errcheck

			interval, err := a.Prefs.GetInterval(cmd.Context())
			if err != nil {
				return err
			}
			enabled, err := a.Prefs.IsEnabled(cmd.Context())
			if err != nil {
				return err
			}
			_, _ = fmt.Fprintf(r.out, "interval\t%d\n", interval)
			_, _ = fmt.Fprintf(r.out, "enabled\t%t\n", enabled)
			return nil
		},
	}

	set := &cobra.Command{
		Use:   "set <interval|enabled> <value>",
		Short: "Change a monitor preference",
		Args:  exactArgs(2, "ttguide prefs set <interval|enabled> <value>"),
		RunE: func(cmd *cobra.Command, args []string) error {
			key, raw := strings.ToLower(args[0]), args[1]
			var apply func(*prefs.Store) error
			switch key {
			case "interval":
				seconds, err := strconv.Atoi(raw)
				if err != nil {
					return usagef("interval must be a number of seconds: %q", raw)
				}
				apply = func(s *prefs.Store) error { return s.SetInterval(cmd.Context(), seconds) }
			case "enabled":
				enabled, err := strconv.ParseBool(raw)
				if err != nil {
					return usagef("enabled must be true or false: %q", raw)
				}
				apply = func(s *prefs.Store) error { return s.SetEnabled(cmd.Context(), enabled) }
			default:
				return usagef("unknown preference %q (want interval or enabled)", args[0])
			}

			a, err := r.openApp(cmd.Context(), cfg, g)
			if err != nil {
				return err
			}
			defer a.Close() //nolint:errcheck
			if err := apply(a.Prefs); err != nil {
				return err
			}
			_, _ = fmt.Fprintf(r.out, "%s\t%s\n", key, raw)
			return nil
		},
	}

	parent.AddCommand(get, set)
	return parent
}

func (r *Runner) newHistoryCommand(cfg config.Config, g *globalFlags) *cobra.Command {
	var limit int
	var jsonOut bool
	cmd := &cobra.Command{
		Use:   "history",
		Short: "List recently dispatched commands",
		Args:  exactArgs(0, "ttguide history [--limit N] [--json]"),
		RunE: func(cmd *cobra.Command, _ []string) error {
			if limit < 0 {
				return usagef("--limit must not be negative")
			}
			a, err := r.openApp(cmd.Context(), cfg, g)
			if err != nil {
				return err
			}
			defer a.Close() //nolint:errcheck

			records, err := a.History(cmd.Context(), limit)
			if err != nil {
				return err
			}
			if jsonOut {
				return writeJSON(r.out, map[string]any{"dispatches": records})
			}
			for _, rec := range records {
				_, _ = fmt.Fprintf(r.out, "%s\t%s\t%s\t%s\n",
					humanize.Time(rec.DispatchedAt), rec.Operation, rec.Channel, rec.Command)
			}
			return nil
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "number of entries to show")
	cmd.Flags().BoolVar(&jsonOut, "json", false, "output JSON")
	return cmd
}

package cli

import (
	"fmt"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/g960059/ttguide/internal/config"
	"github.com/g960059/ttguide/internal/doctor"
	"github.com/g960059/ttguide/internal/model"
	"github.com/g960059/ttguide/internal/monitor"
	"github.com/g960059/ttguide/internal/probe"
)

func (r *Runner) newServerCommand(cfg config.Config) *cobra.Command {
	parent := &cobra.Command{
		Use:   "server",
		Short: "Check the model servers started from the server terminal",
	}

	var assignments []string
	var jsonOut bool
	status := &cobra.Command{
		Use:       "status [api|vllm]",
		Short:     "Probe the API and vLLM servers",
		ValidArgs: []string{string(probe.KindAPI), string(probe.KindVLLM)},
		Args: func(_ *cobra.Command, args []string) error {
			if len(args) > 1 {
				return usagef("usage: ttguide server status [api|vllm]")
			}
			if len(args) == 1 && args[0] != string(probe.KindAPI) && args[0] != string(probe.KindVLLM) {
				return usagef("unknown server %q (want api or vllm)", args[0])
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			kinds := []probe.Kind{probe.KindAPI, probe.KindVLLM}
			if len(args) == 1 {
				kinds = []probe.Kind{probe.Kind(args[0])}
			}
			overrides, err := parseVarFlags(assignments)
			if err != nil {
				return err
			}
			ctxVars, err := r.buildVars(cfg, overrides)
			if err != nil {
				return err
			}

			prober := probe.New(cfg.ProbeTimeout)
			var results []probe.Status
			down := 0
			for _, kind := range kinds {
				key := "apiPort"
				if kind == probe.KindVLLM {
					key = "vllmPort"
				}
				st := prober.Check(cmd.Context(), probe.Endpoint{Kind: kind, Host: cfg.ServerHost, Port: ctxVars[key]})
				if !st.Up {
					down++
				}
				results = append(results, st)
			}

			if jsonOut {
				type statusJSON struct {
					Server    probe.Kind `json:"server"`
					URL       string     `json:"url"`
					Up        bool       `json:"up"`
					Detail    string     `json:"detail,omitempty"`
					LatencyMS int64      `json:"latency_ms"`
					Error     string     `json:"error,omitempty"`
				}
				out := make([]statusJSON, 0, len(results))
				for _, st := range results {
					s := statusJSON{Server: st.Endpoint.Kind, URL: st.URL, Up: st.Up, Detail: st.Detail, LatencyMS: st.Latency.Milliseconds()}
					if st.Err != nil {
						s.Error = st.Err.Error()
					}
					out = append(out, s)
				}
				if err := writeJSON(r.out, map[string]any{"servers": out}); err != nil {
					return err
				}
			} else {
				for _, st := range results {
					if st.Up {
						_, _ = fmt.Fprintf(r.out, "%s\tup\t%s\t%s\n", st.Endpoint.Kind, st.URL, st.Detail)
						continue
					}
					_, _ = fmt.Fprintf(r.out, "%s\tdown\t%s\t%v\n", st.Endpoint.Kind, st.URL, st.Err)
				}
			}
			if down > 0 {
				return fmt.Errorf("%s: %d of %d servers not answering", model.ErrTargetUnreachable, down, len(results))
			}
			return nil
		},
	}
	status.Flags().StringArrayVar(&assignments, "var", nil, "set a variable (name=value), repeatable")
	status.Flags().BoolVar(&jsonOut, "json", false, "output JSON")

	parent.AddCommand(status)
	return parent
}

func (r *Runner) newMonitorCommand(cfg config.Config, g *globalFlags) *cobra.Command {
	var once bool
	cmd := &cobra.Command{
		Use:   "monitor",
		Short: "Poll tt-smi and report device health",
		Long: `monitor runs the configured snapshot command (tt-smi -s by default) every
"interval" seconds while the "enabled" preference is on. Use --once for a single
probe regardless of the preference.`,
		Args: exactArgs(0, "ttguide monitor [--once]"),
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := r.openApp(cmd.Context(), cfg, g)
			if err != nil {
				return err
			}
			defer a.Close() //nolint:errcheck

			m := monitor.New(a.Exec, a.Prefs, cfg, a.Log)
			if once {
				s := m.Poll(cmd.Context())
				r.printSample(s)
				if s.Err != nil {
					return s.Err
				}
				return nil
			}
			enabled, err := a.Prefs.IsEnabled(cmd.Context())
			if err != nil {
				return err
			}
			if !enabled {
				a.Log.Warn().Msg("monitoring is disabled; waiting for 'ttguide prefs set enabled true'")
			}
			return m.Run(cmd.Context(), r.printSample)
		},
	}
	cmd.Flags().BoolVar(&once, "once", false, "probe once and exit")
	return cmd
}

func (r *Runner) printSample(s monitor.Sample) {
	ts := s.At.Format("15:04:05")
	if s.Err != nil {
		_, _ = fmt.Fprintf(r.out, "%s\t%s\t%v\n", ts, s.Health, s.Err)
		return
	}
	hottest := 0.0
	for _, b := range s.Snapshot.Boards {
		hottest = max(hottest, b.Temperature)
	}
	_, _ = fmt.Fprintf(r.out, "%s\t%s\t%s\t%d boards\t%s°C\n",
		ts, s.Health, strings.Join(s.Snapshot.BoardTypes(), ","),
		len(s.Snapshot.Boards), humanize.FtoaWithDigits(hottest, 1))
}

func (r *Runner) newDoctorCommand(cfg config.Config, g *globalFlags) *cobra.Command {
	var jsonOut bool
	cmd := &cobra.Command{
		Use:   "doctor",
		Short: "Check tmux, tt-smi, python and the walkthrough paths",
		Args:  exactArgs(0, "ttguide doctor [--json]"),
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := r.openApp(cmd.Context(), cfg, g)
			if err != nil {
				return err
			}
			defer a.Close() //nolint:errcheck

			ctxVars, err := a.Vars(nil)
			if err != nil {
				return err
			}
			res := doctor.Run(cmd.Context(), a.Exec, doctor.Options{TmuxBinary: cfg.TmuxBinary, Vars: ctxVars})
			if jsonOut {
				if err := writeJSON(r.out, res); err != nil {
					return err
				}
			} else {
				for _, c := range res.Checks {
					_, _ = fmt.Fprintf(r.out, "%s\t%s\t%s\n", c.Status, c.Name, c.Message)
				}
			}
			if !res.OK {
				return fmt.Errorf("%s: required tools are missing on %s target", model.ErrTargetUnreachable, a.Exec.Target().Kind)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&jsonOut, "json", false, "output JSON")
	return cmd
}

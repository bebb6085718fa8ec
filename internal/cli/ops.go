package cli

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/g960059/ttguide/internal/app"
	"github.com/g960059/ttguide/internal/config"
	"github.com/g960059/ttguide/internal/dispatch"
	"github.com/g960059/ttguide/internal/model"
	"github.com/g960059/ttguide/internal/probe"
	"github.com/g960059/ttguide/internal/template"
	"github.com/g960059/ttguide/internal/vars"
)

type dispatchFlags struct {
	vars    []string
	notify  bool
	noFocus bool
	force   bool
	jsonOut bool
}

func (f *dispatchFlags) bind(cmd *cobra.Command) {
	cmd.Flags().StringArrayVar(&f.vars, "var", nil, "set a variable (name=value), repeatable")
	cmd.Flags().BoolVar(&f.notify, "notify", false, "show a notification after sending")
	cmd.Flags().BoolVar(&f.noFocus, "no-focus", false, "do not switch the tmux client to the terminal")
	cmd.Flags().BoolVar(&f.force, "force", false, "skip the server check before test operations")
	cmd.Flags().BoolVar(&f.jsonOut, "json", false, "output JSON")
}

func (f *dispatchFlags) options() []dispatch.Option {
	var opts []dispatch.Option
	if f.notify {
		opts = append(opts, dispatch.WithNotify())
	}
	if f.noFocus {
		opts = append(opts, dispatch.WithoutFocus())
	}
	return opts
}

func (r *Runner) newRunCommand(cfg config.Config, g *globalFlags) *cobra.Command {
	f := &dispatchFlags{}
	cmd := &cobra.Command{
		Use:   "run <operation>",
		Short: "Send an operation's command to its terminal",
		Example: `  ttguide run detect-hardware
  ttguide run download-model --var modelRepo=meta-llama/Llama-3.2-1B-Instruct
  ttguide run start-vllm-server --no-focus --notify`,
		Args: exactArgs(1, "ttguide run <operation> [--var name=value]..."),
		RunE: func(cmd *cobra.Command, args []string) error {
			return r.dispatch(cmd.Context(), cfg, g, args[0], f)
		},
	}
	f.bind(cmd)
	return cmd
}

// newOpCommand exposes every registered operation as its own subcommand.
func (r *Runner) newOpCommand(cfg config.Config, g *globalFlags, registry *template.Registry) *cobra.Command {
	parent := &cobra.Command{
		Use:   "op",
		Short: "Run a registered operation by name",
	}
	for _, t := range registry.List() {
		name := t.Name
		f := &dispatchFlags{}
		sub := &cobra.Command{
			Use:   name,
			Short: t.Description,
			Args:  exactArgs(0, "ttguide op "+name+" [--var name=value]..."),
			RunE: func(cmd *cobra.Command, _ []string) error {
				return r.dispatch(cmd.Context(), cfg, g, name, f)
			},
		}
		f.bind(sub)
		parent.AddCommand(sub)
	}
	return parent
}

func (r *Runner) dispatch(ctx context.Context, cfg config.Config, g *globalFlags, name string, f *dispatchFlags) error {
	overrides, err := parseVarFlags(f.vars)
	if err != nil {
		return err
	}
	a, err := r.openApp(ctx, cfg, g)
	if err != nil {
		return err
	}
	defer a.Close() //nolint:errcheck

	ctxVars, err := a.Vars(overrides)
	if err != nil {
		return err
	}
	if kind, ok := app.ProbeFor(name); ok && !f.force && !g.dryRun {
		endpoint, err := a.ServerEndpoint(kind, ctxVars)
		if err != nil {
			return err
		}
		if st := probe.New(cfg.ProbeTimeout).Check(ctx, endpoint); !st.Up {
			return fmt.Errorf("%s: %s server at %s is not answering (%v); start it first or pass --force",
				model.ErrTargetUnreachable, kind, st.URL, st.Err)
		}
	}

	res, err := a.Dispatch(ctx, name, ctxVars, f.options()...)
	if err != nil {
		if tmpl, lookupErr := a.Registry.Get(name); lookupErr == nil {
			if env, ok := app.IsSecretUnset(err, tmpl); ok && env != "" {
				return fmt.Errorf("%w (set %s or pass --var)", err, env)
			}
		}
		return err
	}

	if f.jsonOut {
		return writeJSON(r.out, map[string]any{
			"operation":  res.Operation,
			"channel":    res.Channel,
			"session_id": res.SessionID,
			"command":    res.Redacted,
		})
	}
	if !g.dryRun {
		_, _ = fmt.Fprintf(r.out, "%s\t%s\t%s\n", res.Operation, res.Channel, res.SessionID)
	}
	return nil
}

type operationJSON struct {
	Name        string          `json:"name"`
	Channel     model.ChannelID `json:"channel"`
	Description string          `json:"description,omitempty"`
	Command     string          `json:"command"`
	Variables   []string        `json:"variables"`
	Secrets     []string        `json:"secrets,omitempty"`
}

func toOperationJSON(t template.Template) operationJSON {
	return operationJSON{
		Name:        t.Name,
		Channel:     t.Channel,
		Description: t.Description,
		Command:     t.Command,
		Variables:   t.Variables(),
		Secrets:     t.Secrets,
	}
}

func (r *Runner) newOpsCommand(cfg config.Config, registry *template.Registry) *cobra.Command {
	parent := &cobra.Command{
		Use:   "ops",
		Short: "Inspect registered operations",
	}

	var listJSON bool
	list := &cobra.Command{
		Use:   "list",
		Short: "List operations",
		Args:  exactArgs(0, "ttguide ops list [--json]"),
		RunE: func(*cobra.Command, []string) error {
			if listJSON {
				out := make([]operationJSON, 0)
				for _, t := range registry.List() {
					out = append(out, toOperationJSON(t))
				}
				return writeJSON(r.out, map[string]any{"operations": out})
			}
			for _, t := range registry.List() {
				_, _ = fmt.Fprintf(r.out, "%s\t%s\t%s\n", t.Name, t.Channel, t.Description)
			}
			return nil
		},
	}
	list.Flags().BoolVar(&listJSON, "json", false, "output JSON")

	var showVars []string
	show := &cobra.Command{
		Use:   "show <operation>",
		Short: "Show an operation and its resolved command",
		Args:  exactArgs(1, "ttguide ops show <operation> [--var name=value]..."),
		RunE: func(_ *cobra.Command, args []string) error {
			t, err := registry.Get(args[0])
			if err != nil {
				return err
			}
			overrides, err := parseVarFlags(showVars)
			if err != nil {
				return err
			}
			ctxVars, err := r.buildVars(cfg, overrides)
			if err != nil {
				return err
			}
			ch := cfg.Channel(t.Channel)
			_, _ = fmt.Fprintf(r.out, "name:        %s\n", t.Name)
			_, _ = fmt.Fprintf(r.out, "description: %s\n", t.Description)
			_, _ = fmt.Fprintf(r.out, "channel:     %s (%s)\n", t.Channel, ch.DisplayName)
			_, _ = fmt.Fprintf(r.out, "template:    %s\n", t.Command)
			if v := t.Variables(); len(v) > 0 {
				_, _ = fmt.Fprintf(r.out, "variables:   %s\n", strings.Join(v, ", "))
			}
			if len(t.Secrets) > 0 {
				_, _ = fmt.Fprintf(r.out, "secrets:     %s\n", strings.Join(t.Secrets, ", "))
			}
			preview, err := t.Redacted(withSecretPlaceholders(t, ctxVars))
			if err != nil {
				_, _ = fmt.Fprintf(r.out, "command:     (unresolved: %v)\n", err)
				return nil
			}
			_, _ = fmt.Fprintf(r.out, "command:     %s\n", preview)
			return nil
		},
	}
	show.Flags().StringArrayVar(&showVars, "var", nil, "set a variable (name=value), repeatable")

	parent.AddCommand(list, show)
	return parent
}

// withSecretPlaceholders fills unset secrets so a preview can render; the
// values are masked by Redacted anyway.
func withSecretPlaceholders(t template.Template, ctxVars template.Vars) template.Vars {
	out := make(template.Vars, len(ctxVars)+len(t.Secrets))
	for k, v := range ctxVars {
		out[k] = v
	}
	for _, s := range t.Secrets {
		if _, ok := out[s]; !ok {
			out[s] = ""
		}
	}
	return out
}

func (r *Runner) newVarsCommand(cfg config.Config) *cobra.Command {
	var assignments []string
	var jsonOut bool
	cmd := &cobra.Command{
		Use:   "vars",
		Short: "Print the variables operations are resolved against",
		Args:  exactArgs(0, "ttguide vars [--var name=value]... [--json]"),
		RunE: func(*cobra.Command, []string) error {
			overrides, err := parseVarFlags(assignments)
			if err != nil {
				return err
			}
			ctxVars, err := r.buildVars(cfg, overrides)
			if err != nil {
				return err
			}
			if jsonOut {
				return writeJSON(r.out, ctxVars)
			}
			for _, name := range vars.Names(ctxVars) {
				_, _ = fmt.Fprintf(r.out, "%s=%s\n", name, ctxVars[name])
			}
			return nil
		},
	}
	cmd.Flags().StringArrayVar(&assignments, "var", nil, "set a variable (name=value), repeatable")
	cmd.Flags().BoolVar(&jsonOut, "json", false, "output JSON")
	return cmd
}

func parseVarFlags(assignments []string) (map[string]string, error) {
	overrides, err := vars.ParseAssignments(assignments)
	if err != nil {
		return nil, &usageError{err: err}
	}
	return overrides, nil
}

func (r *Runner) buildVars(cfg config.Config, overrides map[string]string) (template.Vars, error) {
	return vars.Build(r.fs, vars.Sources{
		Home:      r.homeDir(),
		Config:    cfg.Variables,
		EnvFile:   cfg.EnvFile,
		Overrides: overrides,
	})
}

func (r *Runner) homeDir() string {
	if r.home != "" {
		return r.home
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return home
}

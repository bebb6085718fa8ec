// Package doctor checks that the tools and paths the walkthrough relies on
// are present on the target machine.
package doctor

import (
	"context"
	"fmt"
	"strings"

	"github.com/g960059/ttguide/internal/target"
	"github.com/g960059/ttguide/internal/template"
)

type Status string

const (
	StatusPass Status = "pass"
	StatusWarn Status = "warn"
	StatusFail Status = "fail"
)

type Check struct {
	Name    string `json:"name"`
	Status  Status `json:"status"`
	Message string `json:"message"`
	Path    string `json:"path,omitempty"`
}

type Result struct {
	OK       bool     `json:"ok"`
	Checks   []Check  `json:"checks"`
	Warnings []string `json:"warnings,omitempty"`
}

type CommandRunner interface {
	Run(ctx context.Context, command []string) (target.RunResult, error)
}

type tool struct {
	name     string
	command  []string
	required bool
}

// Options selects what to check. TmuxBinary defaults to "tmux".
type Options struct {
	TmuxBinary string
	Vars       template.Vars
}

var tools = []tool{
	{name: "tt_smi", command: []string{"tt-smi", "--version"}},
	{name: "python3", command: []string{"python3", "--version"}, required: true},
	{name: "git", command: []string{"git", "--version"}},
	{name: "huggingface_cli", command: []string{"huggingface-cli", "version"}},
}

var paths = []struct {
	name string
	vars string
	test string
	hint string
}{
	{name: "tt_metal", vars: "ttMetalPath", test: "-d", hint: "build tt-metal there or set ttMetalPath"},
	{name: "vllm", vars: "vllmPath", test: "-d", hint: "run the clone-vllm operation"},
	{name: "model", vars: "modelPath", test: "-d", hint: "run the download-model operation"},
	{name: "api_server_script", vars: "scriptsDir", test: "-f", hint: "copy tt-api-server.py into scriptsDir"},
}

// Run executes every check once on the executor's target. Only a missing
// tmux or python3 fails the result; everything else is a warning because
// later walkthrough steps create it.
func Run(ctx context.Context, runner CommandRunner, opts Options) Result {
	binary := opts.TmuxBinary
	if binary == "" {
		binary = "tmux"
	}
	out := Result{OK: true}
	add := func(c Check) {
		out.Checks = append(out.Checks, c)
		switch c.Status {
		case StatusWarn:
			out.Warnings = append(out.Warnings, fmt.Sprintf("%s: %s", c.Name, c.Message))
		case StatusFail:
			out.OK = false
		}
	}

	add(checkTool(ctx, runner, tool{name: "tmux", command: []string{binary, "-V"}, required: true}))
	for _, t := range tools {
		add(checkTool(ctx, runner, t))
	}
	for _, p := range paths {
		path := opts.Vars[p.vars]
		if p.name == "api_server_script" && path != "" {
			path = strings.TrimRight(path, "/") + "/tt-api-server.py"
		}
		if path == "" {
			add(Check{Name: p.name, Status: StatusWarn, Message: fmt.Sprintf("variable %s is not set", p.vars)})
			continue
		}
		add(checkPath(ctx, runner, p.name, p.test, path, p.hint))
	}
	return out
}

func checkTool(ctx context.Context, runner CommandRunner, t tool) Check {
	res, err := runner.Run(ctx, t.command)
	if err != nil {
		status := StatusWarn
		if t.required {
			status = StatusFail
		}
		return Check{Name: t.name, Status: status, Message: fmt.Sprintf("%s not runnable", t.command[0])}
	}
	version := firstLine(res.Output)
	if version == "" {
		version = "available"
	}
	return Check{Name: t.name, Status: StatusPass, Message: version}
}

func checkPath(ctx context.Context, runner CommandRunner, name, test, path, hint string) Check {
	if _, err := runner.Run(ctx, []string{"test", test, path}); err != nil {
		return Check{Name: name, Status: StatusWarn, Message: "not found; " + hint, Path: path}
	}
	return Check{Name: name, Status: StatusPass, Message: "present", Path: path}
}

func firstLine(s string) string {
	line, _, _ := strings.Cut(strings.TrimSpace(s), "\n")
	return strings.TrimSpace(line)
}

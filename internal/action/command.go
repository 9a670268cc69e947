package action

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"strings"
	"time"

	"github.com/pimonitor/pimonitor/internal/component"
	"github.com/pimonitor/pimonitor/internal/config"
)

// maxOutputBytes caps how much command output is kept for the error message.
const maxOutputBytes = 4 << 10

type commandOptions struct {
	// Command is the program followed by its arguments. No shell is involved.
	Command []string      `yaml:"command"`
	Dir     string        `yaml:"dir"`
	Timeout time.Duration `yaml:"timeout"`
}

// commandAction runs a local program once per event. Event data is passed in
// PIMONITOR_EVENT_* environment variables. A non-zero exit is an error.
type commandAction struct {
	name string
	opts commandOptions
	log  *slog.Logger
}

func newCommandAction(spec config.ComponentSpec, log *slog.Logger) (component.Action, error) {
	opts := commandOptions{Timeout: 30 * time.Second}
	if err := spec.Decode(&opts); err != nil {
		return nil, err
	}
	if len(opts.Command) == 0 || opts.Command[0] == "" {
		return nil, fmt.Errorf("command is required")
	}
	return &commandAction{name: spec.Name, opts: opts, log: log}, nil
}

func (a *commandAction) Act(ctx context.Context, ev component.Event) error {
	if a.opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, a.opts.Timeout)
		defer cancel()
	}

	cmd := exec.CommandContext(ctx, a.opts.Command[0], a.opts.Command[1:]...)
	cmd.Dir = a.opts.Dir
	env, err := eventEnv(ev)
	if err != nil {
		return err
	}
	cmd.Env = append(os.Environ(), env...)

	var out bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &out
	cmd.WaitDelay = time.Second

	start := time.Now()
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("run %s: %w: %s", a.opts.Command[0], err, tail(out.String()))
	}
	a.log.Debug("action: command finished",
		"command", a.opts.Command[0],
		"duration", time.Since(start).String(),
	)
	return nil
}

func eventEnv(ev component.Event) ([]string, error) {
	fields, err := json.Marshal(ev.Fields)
	if err != nil {
		return nil, fmt.Errorf("encode fields: %w", err)
	}
	return []string{
		"PIMONITOR_EVENT_ID=" + ev.ID,
		"PIMONITOR_EVENT_MONITOR=" + ev.Monitor,
		"PIMONITOR_EVENT_SEVERITY=" + ev.Severity,
		"PIMONITOR_EVENT_MESSAGE=" + ev.Message,
		"PIMONITOR_EVENT_TIME=" + ev.Time.Format(time.RFC3339),
		"PIMONITOR_EVENT_FIELDS=" + string(fields),
	}, nil
}

func tail(s string) string {
	s = strings.TrimSpace(s)
	if len(s) > maxOutputBytes {
		s = s[len(s)-maxOutputBytes:]
	}
	return s
}

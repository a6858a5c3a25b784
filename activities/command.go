// Package activities holds the activity types tempo ships with: Command,
// which runs a configured program, and Housekeeping, which enforces job
// retention.
package activities

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"regexp"
	"strings"
	"time"

	"github.com/kballard/go-shellquote"

	"github.com/teranos/tempo/errors"
	"github.com/teranos/tempo/pulse/activity"
	"github.com/teranos/tempo/pulse/params"
)

// ArgsField is accepted by every command activity; its value is appended
// to the configured argv.
const ArgsField = "args"

// EnvPrefix prefixes the environment variable each field is exported as.
const EnvPrefix = "TEMPO_PARAM_"

var (
	typeNamePattern  = regexp.MustCompile(`^[a-z][a-z0-9_.-]*$`)
	fieldNamePattern = regexp.MustCompile(`^[a-z][a-z0-9_]*$`)
)

// CommandSpec describes one configured command activity.
type CommandSpec struct {
	Name     string   // activity type
	Schedule string   // cron expression, "" for ad-hoc only
	Command  string   // program and arguments, shell-quoted
	Dir      string   // working directory, "" for the process cwd
	Fields   []string // parameter names exported to the environment
}

// Validate checks the name, field names and that the command line splits
// into at least a program.
func (s CommandSpec) Validate() error {
	if !typeNamePattern.MatchString(s.Name) {
		return errors.WithHint(
			errors.Newf("invalid command name %q", s.Name),
			"use lowercase letters, digits, '.', '-' or '_', starting with a letter")
	}
	argv, err := shellquote.Split(s.Command)
	if err != nil {
		return errors.Wrapf(err, "command %s: parse %q", s.Name, s.Command)
	}
	if len(argv) == 0 {
		return errors.Newf("command %s: empty command line", s.Name)
	}
	for _, f := range s.Fields {
		if f == ArgsField {
			return errors.Newf("command %s: field %q is reserved", s.Name, ArgsField)
		}
		if !fieldNamePattern.MatchString(f) {
			return errors.Newf("command %s: invalid field name %q", s.Name, f)
		}
	}
	return nil
}

// Command runs an external program with no shell in between. Output and
// errors go to the job's output; a non-zero exit fails the job.
type Command struct {
	activity.Base
	spec CommandSpec
	argv []string
}

// NewCommand validates spec and returns a factory for it.
func NewCommand(spec CommandSpec) (activity.Factory, error) {
	if err := spec.Validate(); err != nil {
		return nil, err
	}
	argv, _ := shellquote.Split(spec.Command)
	fields := append(append([]string(nil), spec.Fields...), ArgsField)

	return activity.Build(func(activity.Handle) activity.Activity {
		return &Command{
			Base: activity.NewBase(fields...),
			spec: spec,
			argv: argv,
		}
	}), nil
}

func (c *Command) Type() string       { return c.spec.Name }
func (c *Command) Recurrence() string { return c.spec.Schedule }

// Argv returns the full argument vector the command will run with.
func (c *Command) Argv() ([]string, error) {
	argv := append([]string(nil), c.argv...)

	v := c.Get(ArgsField)
	if !v.Valid() {
		return argv, nil
	}
	if s, ok := v.Str(); ok {
		extra, err := shellquote.Split(s)
		if err != nil {
			return nil, errors.Wrapf(err, "parse %s %q", ArgsField, s)
		}
		return append(argv, extra...), nil
	}
	items, ok := v.List()
	if !ok {
		return nil, errors.Newf("%s must be a string or a list, got %s", ArgsField, v.Kind())
	}
	for _, item := range items {
		argv = append(argv, envValue(item))
	}
	return argv, nil
}

// Env returns the TEMPO_PARAM_* variables for the parameters set.
func (c *Command) Env() []string {
	var env []string
	for _, name := range c.spec.Fields {
		v := c.Get(name)
		if !v.Valid() {
			continue
		}
		env = append(env, EnvPrefix+strings.ToUpper(name)+"="+envValue(v))
	}
	return env
}

func (c *Command) Run(ctx context.Context, out io.Writer) error {
	argv, err := c.Argv()
	if err != nil {
		return err
	}

	cmd := exec.CommandContext(ctx, argv[0], argv[1:]...)
	cmd.Dir = c.spec.Dir
	cmd.Env = append(os.Environ(), c.Env()...)
	cmd.Stdout = out
	cmd.Stderr = out

	if err := cmd.Run(); err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return errors.WithDetailf(
				errors.Newf("%s exited with status %d", c.spec.Name, exitErr.ExitCode()),
				"argv: %s", shellquote.Join(argv...))
		}
		return errors.Wrapf(err, "start %s", c.spec.Name)
	}
	return nil
}

// envValue renders a parameter the way a program expects it on the
// command line: strings raw, times in RFC 3339.
func envValue(v params.Value) string {
	if s, ok := v.Str(); ok {
		return s
	}
	if t, ok := v.Time(); ok {
		return t.Format(time.RFC3339)
	}
	return fmt.Sprint(v.Interface())
}

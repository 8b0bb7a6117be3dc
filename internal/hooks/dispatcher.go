// Package hooks runs the external programs that react to a new reading.
package hooks

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/speedwagon-io/co2hook/internal/lib/logger/sl"
	"github.com/speedwagon-io/co2hook/internal/model"
)

const waitDelay = time.Second

type Dispatcher struct {
	log     *slog.Logger
	dir     string
	timeout time.Duration
}

// NewDispatcher returns a dispatcher for the hooks in dir. A zero timeout
// lets each hook run until it exits on its own.
func NewDispatcher(log *slog.Logger, dir string, timeout time.Duration) *Dispatcher {
	return &Dispatcher{
		log:     log.With(slog.String("component", "hooks"), slog.String("dir", dir)),
		dir:     dir,
		timeout: timeout,
	}
}

// Hooks lists the regular files in the hook directory, sorted by name.
// A missing directory yields no hooks.
func (d *Dispatcher) Hooks() ([]string, error) {
	entries, err := os.ReadDir(d.dir)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read hook directory: %w", err)
	}

	names := make([]string, 0, len(entries))
	for _, entry := range entries {
		path := filepath.Join(d.dir, entry.Name())
		// Stat follows symlinks so a link to a script still counts.
		info, err := os.Stat(path)
		if err != nil {
			d.log.Warn("skipping unreadable hook entry", slog.String("hook", entry.Name()), sl.Err(err))
			continue
		}
		if info.Mode().IsRegular() {
			names = append(names, entry.Name())
		}
	}
	slices.Sort(names)

	return names, nil
}

// Run invokes every hook with reading as its only argument, one at a time.
// A failing hook is recorded in its HookInvocation and does not stop the
// remaining hooks. The returned error only reports a hook directory that
// exists but cannot be listed.
func (d *Dispatcher) Run(ctx context.Context, reading model.Reading) ([]model.HookInvocation, error) {
	names, err := d.Hooks()
	if err != nil {
		return nil, err
	}

	arg := reading.String()
	results := make([]model.HookInvocation, 0, len(names))

	for _, name := range names {
		inv := d.invoke(ctx, name, arg)
		if inv.Err != nil {
			d.log.Error("hook failed",
				slog.String("hook", name),
				slog.String("output", inv.Output),
				slog.Duration("duration", inv.Duration),
				sl.Err(inv.Err),
			)
		} else {
			d.log.Info("hook executed",
				slog.String("hook", name),
				slog.String("output", inv.Output),
				slog.Duration("duration", inv.Duration),
			)
		}
		results = append(results, inv)
	}

	return results, nil
}

func (d *Dispatcher) invoke(ctx context.Context, name, arg string) model.HookInvocation {
	inv := model.HookInvocation{Hook: name, Arg: arg}

	runCtx := ctx
	if d.timeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, d.timeout)
		defer cancel()
	}

	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(runCtx, hookPath(d.dir, name), arg)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	cmd.WaitDelay = waitDelay
	configureCommand(cmd)

	start := time.Now()
	if err := cmd.Start(); err != nil {
		inv.Duration = time.Since(start)
		inv.Err = model.NewError(model.CategoryHook, model.ErrHookSpawn, err)
		return inv
	}

	err := cmd.Wait()
	inv.Duration = time.Since(start)
	inv.Output = stdout.String()

	if err != nil {
		if runCtx.Err() != nil {
			err = fmt.Errorf("%w: %w", runCtx.Err(), err)
		}
		if msg := bytes.TrimSpace(stderr.Bytes()); len(msg) > 0 {
			err = fmt.Errorf("%w: %s", err, msg)
		}
		inv.Err = model.NewError(model.CategoryHook, model.ErrHookExit, err)
	}

	return inv
}

// hookPath joins dir and name so that exec never searches PATH: with an empty
// or "." dir the result would otherwise be a bare command name.
func hookPath(dir, name string) string {
	path := filepath.Join(dir, name)
	if !strings.ContainsRune(path, filepath.Separator) {
		path = "." + string(filepath.Separator) + path
	}
	return path
}

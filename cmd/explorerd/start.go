package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/explorerd/explorerd/internal/engine"
	"github.com/explorerd/explorerd/internal/session"
	"github.com/spf13/cobra"
)

var (
	startDepth string
	startPaths []string
	startModel string
	startFocus string
)

var startCmd = &cobra.Command{
	Use:   "start [prompt]",
	Short: "Start exploring the current directory with a fresh agent session",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runStart,
}

func init() {
	startCmd.Flags().StringVar(&startDepth, "depth", string(session.DepthMedium), "exploration depth: shallow|medium|deep")
	startCmd.Flags().StringArrayVar(&startPaths, "path", nil, "restrict exploration to this path (repeatable)")
	startCmd.Flags().StringVar(&startModel, "model", "", "model id (auto-selects the registry default if omitted)")
	startCmd.Flags().StringVar(&startFocus, "focus", "", "a specific question or area to focus the exploration on")
}

func runStart(cmd *cobra.Command, args []string) error {
	depth := session.Depth(startDepth)
	switch depth {
	case session.DepthShallow, session.DepthMedium, session.DepthDeep:
	default:
		return fmt.Errorf("invalid --depth %q: must be shallow, medium, or deep", startDepth)
	}

	cwd, err := os.Getwd()
	if err != nil {
		return fmt.Errorf("resolving working directory: %w", err)
	}

	// spec.md §8: `start` after `start` with the same cwd returns the
	// existing URL/token instead of launching a second session.
	if pf, err := session.ReadPidFile(cwd); err == nil && processAlive(pf.PID) {
		existing, err := session.List(cwd)
		if err == nil && len(existing) > 0 {
			m := existing[0]
			fmt.Printf("already running: http://127.0.0.1:%d/?token=%s\n", pf.Port, m.Secret)
			return nil
		}
	}

	prompt := ""
	if len(args) == 1 {
		prompt = args[0]
	}

	eng, resolvedModel, err := buildEngine(startModel)
	if err != nil {
		return fmt.Errorf("auth failure: %w", err)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	ready := make(chan session.Meta, 1)
	_, err = eng.Start(ctx, engine.StartParams{
		Cwd:      cwd,
		Prompt:   prompt,
		Focus:    startFocus,
		Scope:    startPaths,
		Depth:    depth,
		Model:    resolvedModel,
		OnReady:  func(m session.Meta) { ready <- m },
	})
	if err != nil {
		return fmt.Errorf("starting session: %w", err)
	}

	select {
	case m := <-ready:
		fmt.Printf("session %s ready: http://127.0.0.1:%d/?token=%s\n", m.ID, m.Port, m.Secret)
	case <-ctx.Done():
		eng.StopAll()
		return nil
	}

	<-ctx.Done()
	eng.StopAll()
	return nil
}

// processAlive reports whether pid refers to a live process, by sending
// the null signal (no-op on Unix, doesn't actually signal anything).
func processAlive(pid int) bool {
	proc, err := os.FindProcess(pid)
	if err != nil {
		return false
	}
	return proc.Signal(syscall.Signal(0)) == nil
}

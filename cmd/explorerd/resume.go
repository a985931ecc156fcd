package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/explorerd/explorerd/internal/session"
	"github.com/spf13/cobra"
)

var resumeModel string

var resumeCmd = &cobra.Command{
	Use:   "resume [id]",
	Short: "Reattach to a previously persisted session in the current directory",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runResume,
}

func init() {
	resumeCmd.Flags().StringVar(&resumeModel, "model", "", "model id to reattach with (defaults to the session's saved model)")
}

func runResume(cmd *cobra.Command, args []string) error {
	cwd, err := os.Getwd()
	if err != nil {
		return fmt.Errorf("resolving working directory: %w", err)
	}

	id := ""
	if len(args) == 1 {
		id = args[0]
	} else {
		sessions, err := session.List(cwd)
		if err != nil {
			return fmt.Errorf("listing sessions: %w", err)
		}
		if len(sessions) == 0 {
			return fmt.Errorf("no session found under %s", cwd)
		}
		id = sessions[0].ID
	}

	wantModel := resumeModel
	if wantModel == "" {
		if saved, err := session.Load(cwd, id); err == nil {
			wantModel = saved.Model
		}
	}

	eng, _, err := buildEngine(wantModel)
	if err != nil {
		return fmt.Errorf("auth failure: %w", err)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	ready := make(chan session.Meta, 1)
	_, err = eng.Resume(ctx, cwd, id, func(m session.Meta) { ready <- m })
	if err != nil {
		return fmt.Errorf("resuming session %s: %w", id, err)
	}

	select {
	case m := <-ready:
		fmt.Printf("session %s resumed: http://127.0.0.1:%d/?token=%s\n", m.ID, m.Port, m.Secret)
	case <-ctx.Done():
		eng.StopAll()
		return nil
	}

	<-ctx.Done()
	eng.StopAll()
	return nil
}

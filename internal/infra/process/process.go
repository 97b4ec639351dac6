// Package process wraps child-process supervision and target-process
// inspection.
package process

import (
	"context"
	"errors"
	"os/exec"
	"sync/atomic"
)

// Child is a command running in its own process group. Only an exit caused
// by Kill is treated as a clean stop; any other signal death is an error.
type Child struct {
	cmd    *exec.Cmd
	killed atomic.Bool
}

// Setup prepares cmd to run in its own process group. Call it before
// cmd.Start.
func Setup(cmd *exec.Cmd) *Child {
	prepare(cmd)
	return &Child{cmd: cmd}
}

// Kill takes down the child's whole process group. It is safe to call
// before Start and more than once.
func (c *Child) Kill() {
	if c == nil || c.cmd.Process == nil {
		return
	}
	c.killed.Store(true)
	_ = killGroup(c.cmd.Process)
}

// Wait reaps the child. When ctx ends first the group is killed, the child
// is reaped and ctx.Err() is returned.
func (c *Child) Wait(ctx context.Context) error {
	if c == nil || c.cmd.Process == nil {
		return nil
	}
	if ctx == nil {
		ctx = context.Background()
	}
	exited := make(chan error, 1)
	go func() {
		exited <- c.cmd.Wait()
	}()

	select {
	case err := <-exited:
		return c.exitStatus(err)
	case <-ctx.Done():
	}

	c.Kill()
	<-exited
	return ctx.Err()
}

func (c *Child) exitStatus(err error) error {
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) && !exitErr.Exited() && c.killed.Load() {
		return nil
	}
	return err
}

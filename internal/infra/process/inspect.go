package process

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shirou/gopsutil/v3/process"

	"tracetap/internal/domain"
)

// Info describes a target process for logs and the validate command.
type Info struct {
	PID       int
	Name      string
	Cmdline   string
	StartedAt time.Time
}

// Exists reports whether a process with pid is running.
func Exists(ctx context.Context, pid int) (bool, error) {
	if pid <= 0 || pid > 1<<31-1 {
		return false, nil
	}
	return process.PidExistsWithContext(ctx, int32(pid))
}

// Describe collects what the OS will tell us about pid. Fields that cannot
// be read are left empty.
func Describe(ctx context.Context, pid int) (Info, error) {
	ok, err := Exists(ctx, pid)
	if err != nil {
		return Info{}, fmt.Errorf("inspect process %d: %w", pid, err)
	}
	if !ok {
		return Info{}, domain.E(domain.CodeNotFound, "process.Describe", fmt.Sprintf("no process with pid %d", pid), domain.ErrProcessNotFound)
	}
	proc, err := process.NewProcessWithContext(ctx, int32(pid))
	if err != nil {
		if errors.Is(err, process.ErrorProcessNotRunning) {
			return Info{}, domain.E(domain.CodeNotFound, "process.Describe", "", domain.ErrProcessNotFound)
		}
		return Info{}, fmt.Errorf("inspect process %d: %w", pid, err)
	}

	info := Info{PID: pid}
	if name, err := proc.NameWithContext(ctx); err == nil {
		info.Name = name
	}
	if cmdline, err := proc.CmdlineWithContext(ctx); err == nil {
		info.Cmdline = cmdline
	}
	if created, err := proc.CreateTimeWithContext(ctx); err == nil && created > 0 {
		info.StartedAt = time.UnixMilli(created)
	}
	return info, nil
}

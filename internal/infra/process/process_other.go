//go:build !linux && !darwin

package process

import (
	"os"
	"os/exec"
)

func prepare(*exec.Cmd) {}

func killGroup(proc *os.Process) error {
	return proc.Kill()
}

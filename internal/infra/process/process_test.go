package process

import (
	"context"
	"os"
	"os/exec"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tracetap/internal/domain"
)

func TestExistsSelf(t *testing.T) {
	ok, err := Exists(context.Background(), os.Getpid())
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestExistsRejectsInvalidPID(t *testing.T) {
	for _, pid := range []int{0, -1} {
		ok, err := Exists(context.Background(), pid)
		require.NoError(t, err)
		assert.False(t, ok, "pid %d", pid)
	}
}

func TestDescribeSelf(t *testing.T) {
	info, err := Describe(context.Background(), os.Getpid())
	require.NoError(t, err)
	assert.Equal(t, os.Getpid(), info.PID)
	assert.NotEmpty(t, info.Name)
}

func TestDescribeMissingProcess(t *testing.T) {
	_, err := Describe(context.Background(), -5)
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrProcessNotFound)
}

func TestWaitNotStarted(t *testing.T) {
	var nilChild *Child
	assert.NoError(t, nilChild.Wait(context.Background()))
	child := Setup(exec.Command("true"))
	child.Kill()
	assert.NoError(t, child.Wait(context.Background()))
}

func TestWaitReturnsOnContextCancel(t *testing.T) {
	cmd := exec.Command("sleep", "5")
	child := Setup(cmd)
	require.NoError(t, cmd.Start())
	defer child.Kill()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	start := time.Now()
	assert.ErrorIs(t, child.Wait(ctx), context.DeadlineExceeded)
	assert.Less(t, time.Since(start), 4*time.Second)
	assert.NotNil(t, cmd.ProcessState, "child must be reaped")
}

func TestWaitIgnoresKill(t *testing.T) {
	cmd := exec.Command("sleep", "5")
	child := Setup(cmd)
	require.NoError(t, cmd.Start())
	child.Kill()
	assert.NoError(t, child.Wait(context.Background()))
}

func TestWaitReportsCrash(t *testing.T) {
	cmd := exec.Command("sh", "-c", "kill -SEGV $$")
	child := Setup(cmd)
	require.NoError(t, cmd.Start())

	err := child.Wait(context.Background())
	require.Error(t, err)
	var exitErr *exec.ExitError
	require.ErrorAs(t, err, &exitErr)
	assert.False(t, exitErr.Exited())
}

func TestWaitReportsExitStatus(t *testing.T) {
	cmd := exec.Command("sh", "-c", "exit 3")
	child := Setup(cmd)
	require.NoError(t, cmd.Start())
	err := child.Wait(context.Background())
	require.Error(t, err)
	var exitErr *exec.ExitError
	require.ErrorAs(t, err, &exitErr)
	assert.Equal(t, 3, exitErr.ExitCode())
}

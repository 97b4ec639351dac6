package ipc

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"tracetap/internal/domain"
)

const socketPrefix = "dotnet-diagnostic-"

// TempDir returns the directory the runtime creates its diagnostic sockets
// in: $TMPDIR, falling back to /tmp.
func TempDir() string {
	if dir := os.Getenv("TMPDIR"); dir != "" {
		return dir
	}
	return "/tmp"
}

// FindSocket returns the newest diagnostic socket for pid in dir. Stale
// sockets left by a previous process with a recycled pid lose to the
// fresher one.
func FindSocket(dir string, pid int) (string, error) {
	pattern := filepath.Join(dir, socketPrefix+strconv.Itoa(pid)+"-*-socket")
	matches, err := filepath.Glob(pattern)
	if err != nil {
		return "", domain.E(domain.CodeInternal, "ipc.FindSocket", "", err)
	}

	var newest string
	var newestMod int64
	for _, match := range matches {
		info, err := os.Stat(match)
		if err != nil {
			continue
		}
		if info.Mode()&os.ModeSocket == 0 {
			continue
		}
		mod := info.ModTime().UnixNano()
		if newest == "" || mod > newestMod {
			newest = match
			newestMod = mod
		}
	}
	if newest == "" {
		return "", domain.E(
			domain.CodeUnavailable,
			"ipc.FindSocket",
			fmt.Sprintf("no diagnostic socket for pid %d in %s", pid, dir),
			domain.ErrNoDiagnosticEndpoint,
		)
	}
	return newest, nil
}

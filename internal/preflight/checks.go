package preflight

import (
	"context"
	"fmt"
	"net"
	"os"
	"path/filepath"

	"golang.org/x/sys/unix"

	"markad/internal/config"
	"markad/internal/deps"
)

// CheckDirectoryAccess verifies that the directory exists and is readable/writable.
func CheckDirectoryAccess(name, path string) Result {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Result{Name: name, Detail: fmt.Sprintf("%s (error: does not exist)", path)}
		}
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: stat: %v)", path, err)}
	}
	if !info.IsDir() {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: is not a directory)", path)}
	}
	if err := unix.Access(path, unix.R_OK|unix.W_OK|unix.X_OK); err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: insufficient permissions: %v)", path, err)}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (read/write ok)", path)}
}

// CheckRecording verifies that the recording is readable and that the marks
// file can be written next to it.
func CheckRecording(path string) Result {
	const name = "Recording"

	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Result{Name: name, Detail: fmt.Sprintf("%s (error: does not exist)", path)}
		}
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: stat: %v)", path, err)}
	}
	marksDir := filepath.Dir(path)
	if info.IsDir() {
		marksDir = path
	}
	if err := unix.Access(path, unix.R_OK); err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: not readable: %v)", path, err)}
	}
	if err := unix.Access(marksDir, unix.W_OK|unix.X_OK); err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: marks directory not writable: %v)", marksDir, err)}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (readable, marks writable)", path)}
}

// CheckListen verifies that addr can be bound.
func CheckListen(ctx context.Context, name, addr string) Result {
	var lc net.ListenConfig
	ln, err := lc.Listen(ctx, "tcp", addr)
	if err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: %v)", addr, err)}
	}
	ln.Close()
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (available)", addr)}
}

// CheckSystemDeps evaluates the external binaries for the given config.
// Both "analyze" and "check" use this to avoid duplicating the
// requirements list.
func CheckSystemDeps(ctx context.Context, cfg *config.Config) []deps.Status {
	statuses := deps.CheckBinaries(deps.Requirements(cfg.Decoder.FFmpegBinary, cfg.Decoder.FFprobeBinary))
	if cfg.Passes.Refine && statuses[0].Available {
		statuses = append(statuses, deps.CheckFFmpegFilters(ctx, cfg.Decoder.FFmpegBinary, "silencedetect"))
	}
	return statuses
}

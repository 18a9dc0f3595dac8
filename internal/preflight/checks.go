package preflight

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"golang.org/x/sys/unix"

	"scanmatch/internal/config"
	"scanmatch/internal/matcher"
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

// CheckSocketDirectory verifies the daemon can create its socket.
func CheckSocketDirectory(path string) Result {
	return CheckDirectoryAccess("Socket directory", filepath.Dir(path))
}

// CheckMatcherEngine verifies the configured engine loads and answers.
func CheckMatcherEngine(ctx context.Context, name string) Result {
	const label = "Matcher engine"
	engine, err := matcher.NewEngine(name)
	if err != nil {
		return Result{Name: label, Detail: err.Error()}
	}
	checkCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	svc := matcher.NewService(engine, nil)
	version, err := svc.SDKVersion(checkCtx)
	if err != nil {
		return Result{Name: label, Detail: fmt.Sprintf("%s (error: %v)", name, err)}
	}
	return Result{Name: label, Passed: true, Detail: fmt.Sprintf("%s %s", version.Product, version.File)}
}

func dirResults(cfg *config.Config) []Result {
	return []Result{
		CheckDirectoryAccess("Data directory", cfg.Paths.DataDir),
		CheckDirectoryAccess("Export directory", cfg.Paths.ExportDir),
		CheckDirectoryAccess("Spool directory", cfg.Scanner.SpoolDir),
		CheckSocketDirectory(cfg.Paths.Socket),
	}
}

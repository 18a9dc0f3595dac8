package daemonctl

import (
	"context"
	"errors"
	"time"

	"scanmatch/internal/config"
	"scanmatch/internal/ipc"
	"scanmatch/internal/preflight"
	"scanmatch/internal/records"
)

// StatusSnapshot combines daemon status with local environment checks.
type StatusSnapshot struct {
	Reachable bool
	Status    *ipc.StatusResponse
	Checks    []preflight.Result
}

// BuildStatusSnapshot queries the daemon and falls back to the enrollment
// database for record counts when the daemon is offline.
func BuildStatusSnapshot(ctx context.Context, socketPath string, cfg *config.Config) (*StatusSnapshot, error) {
	if cfg == nil {
		return nil, errors.New("configuration not available")
	}
	snapshot := &StatusSnapshot{Status: &ipc.StatusResponse{}}

	client, err := ipc.Dial(socketPath)
	if err == nil {
		defer client.Close()
		if resp, statusErr := client.Status(); statusErr == nil && resp != nil {
			snapshot.Reachable = true
			snapshot.Status = resp
		}
	}

	if !snapshot.Reachable {
		queryCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
		defer cancel()
		snapshot.Status.DatabasePath = cfg.DatabasePath()
		snapshot.Status.LockPath = cfg.LockPath()
		snapshot.Status.ExportDir = cfg.Paths.ExportDir
		snapshot.Status.Engine = cfg.Matcher.Engine
		snapshot.Status.MatchingLevel = cfg.Matcher.MatchingLevel
		if store, openErr := records.Open(cfg); openErr == nil {
			if n, countErr := store.Count(queryCtx); countErr == nil {
				snapshot.Status.Enrolled = n
			}
			if size, sizeErr := store.Size(queryCtx); sizeErr == nil {
				snapshot.Status.DatabaseBytes = size
			}
			_ = store.Close()
		}
	}

	snapshot.Checks = preflight.RunAll(ctx, cfg)
	return snapshot, nil
}

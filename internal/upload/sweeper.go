package upload

import (
	"context"
	"log"
	"os"
	"path/filepath"
	"time"
)

const (
	DefaultStagingTTL    = time.Hour
	DefaultSweepInterval = 30 * time.Minute
)

// StartSweeper removes staged files that outlived ttl, which only happens
// when the process died mid-request.
func (g *Gate) StartSweeper(ctx context.Context, interval, ttl time.Duration) {
	if interval <= 0 {
		interval = DefaultSweepInterval
	}
	if ttl <= 0 {
		ttl = DefaultStagingTTL
	}
	go g.sweepLoop(ctx, interval, ttl)
}

func (g *Gate) sweepLoop(ctx context.Context, interval, ttl time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n, err := g.sweep(ttl); err != nil {
				log.Printf("sweep staged files error: %v", err)
			} else if n > 0 {
				log.Printf("swept %d stale staged files", n)
			}
		}
	}
}

func (g *Gate) sweep(ttl time.Duration) (int, error) {
	entries, err := os.ReadDir(g.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, nil
		}
		return 0, err
	}
	cutoff := g.now().Add(-ttl)
	removed := 0
	for _, entry := range entries {
		if !entry.Type().IsRegular() {
			continue
		}
		info, err := entry.Info()
		if err != nil || info.ModTime().After(cutoff) {
			continue
		}
		path := filepath.Join(g.dir, entry.Name())
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			log.Printf("remove stale staged file %s failed: %v", path, err)
			continue
		}
		removed++
	}
	return removed, nil
}

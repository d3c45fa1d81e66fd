package replay

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"driftpursuit/intercept/internal/logging"
)

// RetentionPolicy bounds how many bundles stay on disk and for how long.
type RetentionPolicy struct {
	MaxBundles int
	MaxAge     time.Duration
}

// StorageStats summarises the disk footprint of retained bundles.
type StorageStats struct {
	Bundles   int       `json:"bundles"`
	Bytes     int64     `json:"bytes"`
	Removed   int       `json:"removed"`
	LastSweep time.Time `json:"last_sweep"`
}

// Cleaner periodically prunes bundle directories according to a retention policy.
type Cleaner struct {
	mu     sync.RWMutex
	dir    string
	policy RetentionPolicy
	log    *logging.Logger
	now    func() time.Time
	stats  StorageStats
}

// NewCleaner constructs a cleaner for the provided replay directory.
func NewCleaner(dir string, policy RetentionPolicy, logger *logging.Logger) *Cleaner {
	if logger == nil {
		logger = logging.L()
	}
	return &Cleaner{dir: dir, policy: policy, log: logger, now: time.Now}
}

// Run executes retention sweeps until the context is cancelled.
func (c *Cleaner) Run(ctx context.Context, interval time.Duration) {
	if c == nil || ctx == nil {
		return
	}
	if interval <= 0 {
		interval = time.Hour
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	//1.- Sweep eagerly so retention applies on startup.
	c.sweep()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.sweep()
		}
	}
}

// RunOnce performs a single retention sweep.
func (c *Cleaner) RunOnce() {
	if c == nil {
		return
	}
	c.sweep()
}

// Stats returns the last recorded storage statistics.
func (c *Cleaner) Stats() StorageStats {
	if c == nil {
		return StorageStats{}
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.stats
}

type bundleDir struct {
	name    string
	path    string
	size    int64
	modTime time.Time
}

func (c *Cleaner) sweep() {
	if c == nil || strings.TrimSpace(c.dir) == "" {
		return
	}
	entries, err := os.ReadDir(c.dir)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			c.log.Warn("replay retention scan failed", logging.Error(err), logging.String("directory", c.dir))
		}
		return
	}
	bundles := c.collect(entries)
	now := c.now()
	stats := StorageStats{LastSweep: now}
	for _, bundle := range bundles {
		//1.- Bundles are sorted newest first so the count limit keeps recent campaigns.
		if remove, reason := c.shouldRemove(bundle, now, stats.Bundles); remove {
			if err := os.RemoveAll(bundle.path); err != nil {
				c.log.Warn("replay retention removal failed", logging.Error(err), logging.String("bundle", bundle.name))
			} else {
				c.log.Info("replay retention removed bundle", logging.String("bundle", bundle.name), logging.String("reason", reason))
				stats.Removed++
				continue
			}
		}
		stats.Bundles++
		stats.Bytes += bundle.size
	}
	c.mu.Lock()
	c.stats = stats
	c.mu.Unlock()
}

// collect lists bundle directories. Loose files are never touched.
func (c *Cleaner) collect(entries []os.DirEntry) []bundleDir {
	bundles := make([]bundleDir, 0, len(entries))
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		path := filepath.Join(c.dir, entry.Name())
		size, modTime, err := directoryFootprint(path)
		if err != nil {
			c.log.Warn("replay retention size failed", logging.Error(err), logging.String("path", path))
			continue
		}
		bundles = append(bundles, bundleDir{name: entry.Name(), path: path, size: size, modTime: modTime})
	}
	sort.Slice(bundles, func(i, j int) bool {
		if bundles[i].modTime.Equal(bundles[j].modTime) {
			return bundles[i].name > bundles[j].name
		}
		return bundles[i].modTime.After(bundles[j].modTime)
	})
	return bundles
}

func (c *Cleaner) shouldRemove(bundle bundleDir, now time.Time, kept int) (bool, string) {
	reasons := make([]string, 0, 2)
	if c.policy.MaxAge > 0 && now.Sub(bundle.modTime) > c.policy.MaxAge {
		reasons = append(reasons, fmt.Sprintf("age>%s", c.policy.MaxAge))
	}
	if c.policy.MaxBundles > 0 && kept >= c.policy.MaxBundles {
		reasons = append(reasons, fmt.Sprintf(">=%d bundles", c.policy.MaxBundles))
	}
	return len(reasons) > 0, strings.Join(reasons, ", ")
}

// directoryFootprint sums file sizes and returns the newest modification time in the tree.
func directoryFootprint(root string) (int64, time.Time, error) {
	var (
		total  int64
		newest time.Time
	)
	walkErr := filepath.WalkDir(root, func(_ string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		if info.ModTime().After(newest) {
			newest = info.ModTime()
		}
		if !d.IsDir() {
			total += info.Size()
		}
		return nil
	})
	return total, newest, walkErr
}

package registry

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/huanfeng/entwine-cli/pkg/models"
	"github.com/huanfeng/entwine-cli/pkg/utils"
)

const catalogKey = "catalog"

// CacheManager stores JSON snapshots of remote responses with a TTL.
type CacheManager struct {
	cacheDir   string
	defaultTTL time.Duration
}

// CacheEntry represents a cached item with metadata
type CacheEntry struct {
	Key         string          `json:"key"`
	Data        json.RawMessage `json:"data"`
	CreatedAt   time.Time       `json:"created_at"`
	ExpiresAt   time.Time       `json:"expires_at"`
	AccessCount int             `json:"access_count"`
	LastAccess  time.Time       `json:"last_access"`
}

// CacheStats contains cache statistics
type CacheStats struct {
	TotalEntries   int           `json:"total_entries"`
	TotalSize      int64         `json:"total_size"`
	HitRate        float64       `json:"hit_rate"`
	OldestEntry    time.Time     `json:"oldest_entry"`
	NewestEntry    time.Time     `json:"newest_entry"`
	ExpiredEntries int           `json:"expired_entries"`
	CacheDir       string        `json:"cache_dir"`
	DefaultTTL     time.Duration `json:"default_ttl"`
}

// NewCacheManager creates a cache rooted at cacheDir. A non-positive ttl
// defaults to 24 hours.
func NewCacheManager(cacheDir string, ttl time.Duration) *CacheManager {
	if cacheDir == "" {
		cacheDir = filepath.Join(os.TempDir(), "entwine-cache")
	}
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &CacheManager{cacheDir: cacheDir, defaultTTL: ttl}
}

// Dir returns the cache directory.
func (c *CacheManager) Dir() string {
	return c.cacheDir
}

// Get loads a fresh entry into target. Expired entries are reported as missing
// unless allowStale is set. stale reports whether an expired entry was used.
func (c *CacheManager) Get(key string, target interface{}, allowStale bool) (found, stale bool, err error) {
	cachePath := c.getCachePath(key)

	entry, err := c.loadCacheEntry(cachePath)
	if errors.Is(err, fs.ErrNotExist) {
		return false, false, nil
	}
	if err != nil {
		return false, false, err
	}

	stale = time.Now().After(entry.ExpiresAt)
	if stale && !allowStale {
		return false, false, nil
	}

	if err := json.Unmarshal(entry.Data, target); err != nil {
		return false, false, fmt.Errorf("decode cache entry %s: %w", key, err)
	}

	entry.AccessCount++
	entry.LastAccess = time.Now()
	_ = c.saveCacheEntry(cachePath, entry) // access statistics are best effort

	return true, stale, nil
}

// Set stores an item in cache
func (c *CacheManager) Set(key string, data interface{}, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = c.defaultTTL
	}

	raw, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("encode cache entry %s: %w", key, err)
	}

	now := time.Now()
	entry := &CacheEntry{
		Key:        key,
		Data:       raw,
		CreatedAt:  now,
		ExpiresAt:  now.Add(ttl),
		LastAccess: now,
	}

	return c.saveCacheEntry(c.getCachePath(key), entry)
}

// Delete removes an item from cache
func (c *CacheManager) Delete(key string) error {
	err := os.Remove(c.getCachePath(key))
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	return err
}

// Clear removes all cache entries
func (c *CacheManager) Clear() error {
	entries, err := os.ReadDir(c.cacheDir)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err != nil {
		return err
	}

	var failed []string
	for _, entry := range entries {
		if !entry.IsDir() && strings.HasSuffix(entry.Name(), ".cache") {
			if err := os.Remove(filepath.Join(c.cacheDir, entry.Name())); err != nil {
				failed = append(failed, err.Error())
			}
		}
	}

	if len(failed) > 0 {
		return fmt.Errorf("failed to remove some cache files: %s", strings.Join(failed, ", "))
	}
	return nil
}

// CleanExpired removes expired and unreadable cache entries
func (c *CacheManager) CleanExpired() (int, error) {
	entries, err := os.ReadDir(c.cacheDir)
	if errors.Is(err, fs.ErrNotExist) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}

	removed := 0
	now := time.Now()

	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".cache") {
			continue
		}
		cachePath := filepath.Join(c.cacheDir, entry.Name())

		cacheEntry, err := c.loadCacheEntry(cachePath)
		if err != nil || now.After(cacheEntry.ExpiresAt) {
			if os.Remove(cachePath) == nil {
				removed++
			}
		}
	}

	return removed, nil
}

// GetStats returns cache statistics
func (c *CacheManager) GetStats() (*CacheStats, error) {
	stats := &CacheStats{
		CacheDir:   c.cacheDir,
		DefaultTTL: c.defaultTTL,
	}

	entries, err := os.ReadDir(c.cacheDir)
	if errors.Is(err, fs.ErrNotExist) {
		return stats, nil
	}
	if err != nil {
		return nil, err
	}

	now := time.Now()
	totalHits := 0
	totalAccess := 0

	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".cache") {
			continue
		}

		cacheEntry, err := c.loadCacheEntry(filepath.Join(c.cacheDir, entry.Name()))
		if err != nil {
			continue
		}

		stats.TotalEntries++
		if info, err := entry.Info(); err == nil {
			stats.TotalSize += info.Size()
		}
		if now.After(cacheEntry.ExpiresAt) {
			stats.ExpiredEntries++
		}
		if stats.OldestEntry.IsZero() || cacheEntry.CreatedAt.Before(stats.OldestEntry) {
			stats.OldestEntry = cacheEntry.CreatedAt
		}
		if stats.NewestEntry.IsZero() || cacheEntry.CreatedAt.After(stats.NewestEntry) {
			stats.NewestEntry = cacheEntry.CreatedAt
		}

		totalHits += cacheEntry.AccessCount
		totalAccess += cacheEntry.AccessCount + 1 // +1 for initial creation
	}

	if totalAccess > 0 {
		stats.HitRate = float64(totalHits) / float64(totalAccess)
	}

	return stats, nil
}

// CachedCatalog is a catalog snapshot read back from the cache.
type CachedCatalog struct {
	Mods      []models.Mod
	FetchedAt time.Time
	Stale     bool
}

// GetCatalog reads the last successfully fetched catalog, expired or not.
// It returns nil when nothing was ever cached.
func (c *CacheManager) GetCatalog() (*CachedCatalog, error) {
	entry, err := c.loadCacheEntry(c.getCachePath(catalogKey))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var mods []models.Mod
	if err := json.Unmarshal(entry.Data, &mods); err != nil {
		return nil, fmt.Errorf("decode cached catalog: %w", err)
	}

	return &CachedCatalog{
		Mods:      mods,
		FetchedAt: entry.CreatedAt,
		Stale:     time.Now().After(entry.ExpiresAt),
	}, nil
}

// SetCatalog stores a catalog snapshot.
func (c *CacheManager) SetCatalog(mods []models.Mod) error {
	return c.Set(catalogKey, mods, 0)
}

// getCachePath generates cache file path for a key
func (c *CacheManager) getCachePath(key string) string {
	safeKey := strings.NewReplacer("/", "_", "\\", "_", ":", "_").Replace(key)
	return filepath.Join(c.cacheDir, safeKey+".cache")
}

func (c *CacheManager) loadCacheEntry(cachePath string) (*CacheEntry, error) {
	data, err := os.ReadFile(cachePath)
	if err != nil {
		return nil, err
	}

	var entry CacheEntry
	if err := json.Unmarshal(data, &entry); err != nil {
		return nil, err
	}
	return &entry, nil
}

func (c *CacheManager) saveCacheEntry(cachePath string, entry *CacheEntry) error {
	data, err := json.MarshalIndent(entry, "", "  ")
	if err != nil {
		return err
	}
	return utils.WriteFileAtomic(cachePath, data, 0644)
}

// PrintStats writes formatted cache statistics to w.
func (c *CacheManager) PrintStats(w io.Writer) error {
	stats, err := c.GetStats()
	if err != nil {
		return err
	}

	fmt.Fprintln(w, "Cache Statistics:")
	fmt.Fprintln(w, strings.Repeat("=", 40))
	fmt.Fprintf(w, "   Directory: %s\n", stats.CacheDir)
	fmt.Fprintf(w, "   Total entries: %d\n", stats.TotalEntries)
	fmt.Fprintf(w, "   Total size: %s\n", utils.FormatBytes(stats.TotalSize))
	fmt.Fprintf(w, "   Default TTL: %v\n", stats.DefaultTTL)

	if stats.TotalEntries > 0 {
		fmt.Fprintf(w, "   Hit rate: %.1f%%\n", stats.HitRate*100)
		fmt.Fprintf(w, "   Expired entries: %d\n", stats.ExpiredEntries)
		fmt.Fprintf(w, "   Oldest entry: %s\n", stats.OldestEntry.Format("2006-01-02 15:04:05"))
		fmt.Fprintf(w, "   Newest entry: %s\n", stats.NewestEntry.Format("2006-01-02 15:04:05"))
	}

	return nil
}

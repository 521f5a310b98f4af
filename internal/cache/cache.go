// Package cache implements the staged, content-addressed artifact store
// described in spec §3/§4.1: one directory per pid, one file per pipeline
// stage, every write atomic via temp-file-then-rename.
package cache

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync/atomic"

	"github.com/luminis/luminis/internal/domain"
)

// ErrCacheMiss is returned by the Load* methods when the requested artifact
// does not exist yet.
var ErrCacheMiss = errors.New("cache: artifact not present")

const (
	metaFileName    = "meta.json"
	docFileName     = "doc.bin"
	contentFileName = "content.md"
	summaryFileName = "summary.txt"
)

// Cache is the single writer of all on-disk pipeline artifacts, rooted at
// dir. It is safe for concurrent reads; writers must serialize per pid
// themselves (the Worker subsystem guarantees this by processing items
// sequentially, per spec §4.1).
type Cache struct {
	dir     string
	tmpSeq  atomic.Uint64
}

// New opens (creating if necessary) a cache rooted at dir.
func New(dir string) (*Cache, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("cache: create root %s: %w", dir, err)
	}
	return &Cache{dir: dir}, nil
}

// Dir returns the cache root directory.
func (c *Cache) Dir() string { return c.dir }

func (c *Cache) entryDir(pid string) string {
	return filepath.Join(c.dir, pid)
}

func (c *Cache) path(pid, name string) string {
	return filepath.Join(c.entryDir(pid), name)
}

func (c *Cache) channelSummaryName(channel string) string {
	return fmt.Sprintf("summary.%s.txt", channel)
}

func (c *Cache) channelPostName(channel string) string {
	return fmt.Sprintf("post.%s.txt", channel)
}

// writeAtomic writes data to path via a temp file in the same directory
// followed by an atomic rename, guaranteeing that any reader either sees
// the previous complete file or the new one, never a partial write.
func (c *Cache) writeAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("cache: mkdir %s: %w", dir, err)
	}

	seq := c.tmpSeq.Add(1)
	tmp := fmt.Sprintf("%s.tmp.%d", path, seq)

	f, err := os.OpenFile(tmp, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return fmt.Errorf("cache: open temp %s: %w", tmp, err)
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		os.Remove(tmp)
		return fmt.Errorf("cache: write temp %s: %w", tmp, err)
	}
	if err := f.Sync(); err != nil {
		f.Close()
		os.Remove(tmp)
		return fmt.Errorf("cache: sync temp %s: %w", tmp, err)
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("cache: close temp %s: %w", tmp, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("cache: rename %s -> %s: %w", tmp, path, err)
	}
	return nil
}

func readFile(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrCacheMiss
		}
		return nil, fmt.Errorf("cache: read %s: %w", path, err)
	}
	return data, nil
}

func exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// HasData reports whether content.md has been written for pid.
func (c *Cache) HasData(pid string) bool {
	return exists(c.path(pid, contentFileName))
}

// LoadMarkdown loads the previously-fetched markdown for pid, or
// ErrCacheMiss if absent.
func (c *Cache) LoadMarkdown(pid string) (string, error) {
	data, err := readFile(c.path(pid, contentFileName))
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// HasSummary reports whether the channel-agnostic summary exists.
func (c *Cache) HasSummary(pid string) bool {
	return exists(c.path(pid, summaryFileName))
}

// LoadSummary loads the channel-agnostic summary.
func (c *Cache) LoadSummary(pid string) (string, error) {
	data, err := readFile(c.path(pid, summaryFileName))
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// HasChannelSummary reports whether a per-channel summary override exists.
func (c *Cache) HasChannelSummary(pid, channel string) bool {
	return exists(c.path(pid, c.channelSummaryName(channel)))
}

// LoadChannelSummary loads the per-channel summary override.
func (c *Cache) LoadChannelSummary(pid, channel string) (string, error) {
	data, err := readFile(c.path(pid, c.channelSummaryName(channel)))
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// HasChannelPost reports whether a rendered post exists for channel.
func (c *Cache) HasChannelPost(pid, channel string) bool {
	return exists(c.path(pid, c.channelPostName(channel)))
}

// LoadChannelPost loads the rendered post for channel.
func (c *Cache) LoadChannelPost(pid, channel string) (string, error) {
	data, err := readFile(c.path(pid, c.channelPostName(channel)))
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// IsPublished reports whether channel is already recorded as published for
// pid.
func (c *Cache) IsPublished(pid, channel string) bool {
	meta, err := c.loadMeta(pid)
	if err != nil {
		return false
	}
	return meta.HasChannel(channel)
}

// AddPublished appends channel to pid's published_channels set. Idempotent
// and append-only, per spec §3's CacheEntry invariants.
func (c *Cache) AddPublished(pid, channel string) error {
	meta, err := c.loadMeta(pid)
	if err != nil && !errors.Is(err, ErrCacheMiss) {
		return err
	}
	if meta.PID == "" {
		meta.PID = pid
	}
	if meta.HasChannel(channel) {
		return nil
	}
	meta.PublishedChannels = append(meta.PublishedChannels, channel)
	return c.saveMeta(pid, meta)
}

func (c *Cache) loadMeta(pid string) (domain.Meta, error) {
	data, err := readFile(c.path(pid, metaFileName))
	if err != nil {
		return domain.Meta{}, err
	}
	var meta domain.Meta
	if err := json.Unmarshal(data, &meta); err != nil {
		return domain.Meta{}, fmt.Errorf("cache: decode meta for %s: %w", pid, err)
	}
	return meta, nil
}

func (c *Cache) saveMeta(pid string, meta domain.Meta) error {
	data, err := json.MarshalIndent(meta, "", "  ")
	if err != nil {
		return fmt.Errorf("cache: encode meta for %s: %w", pid, err)
	}
	return c.writeAtomic(c.path(pid, metaFileName), data)
}

// SaveArtifacts writes any subset of the listed artifacts atomically per
// file, per spec §4.1. A zero-value field in Artifacts means "don't touch
// that artifact"; use the Present flags embedded in each optional field to
// distinguish "empty string" from "not provided".
type Artifacts struct {
	DocBytes       []byte
	HasDocBytes    bool
	Markdown       string
	HasMarkdown    bool
	Summary        string
	HasSummary     bool
	Channel        string // required when HasChannelSum or HasPost is set
	ChannelSummary string
	HasChannelSum  bool
	Post           string
	HasPost        bool
	Title          string
	URL            string
}

// SaveArtifacts persists the subset of artifacts present in a, updating
// meta.json's title/url fields when provided. Each file is written
// independently and atomically; a failure partway through leaves the
// already-written files intact and valid (spec §4.1 crash-safety).
func (c *Cache) SaveArtifacts(pid string, a Artifacts) error {
	if err := os.MkdirAll(c.entryDir(pid), 0o755); err != nil {
		return fmt.Errorf("cache: mkdir entry %s: %w", pid, err)
	}

	if a.HasDocBytes {
		if err := c.writeAtomic(c.path(pid, docFileName), a.DocBytes); err != nil {
			return err
		}
	}
	if a.HasMarkdown {
		if err := c.writeAtomic(c.path(pid, contentFileName), []byte(a.Markdown)); err != nil {
			return err
		}
	}
	if a.HasSummary {
		if err := c.writeAtomic(c.path(pid, summaryFileName), []byte(a.Summary)); err != nil {
			return err
		}
	}
	if a.HasChannelSum {
		if err := c.writeAtomic(c.path(pid, c.channelSummaryName(a.Channel)), []byte(a.ChannelSummary)); err != nil {
			return err
		}
	}
	if a.HasPost {
		if err := c.writeAtomic(c.path(pid, c.channelPostName(a.Channel)), []byte(a.Post)); err != nil {
			return err
		}
	}

	if a.Title != "" || a.URL != "" {
		meta, err := c.loadMeta(pid)
		if err != nil && !errors.Is(err, ErrCacheMiss) {
			return err
		}
		if meta.PID == "" {
			meta.PID = pid
		}
		if a.Title != "" {
			meta.Title = a.Title
		}
		if a.URL != "" {
			meta.URL = a.URL
		}
		if err := c.saveMeta(pid, meta); err != nil {
			return err
		}
	}

	return nil
}

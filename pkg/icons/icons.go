// Package icons resolves catalog icon URLs and keeps a local cache of
// normalized thumbnails.
package icons

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	"image/png"
	"os"
	"path/filepath"
	"strings"

	"github.com/nfnt/resize"
	"golang.org/x/image/webp"

	"github.com/huanfeng/entwine-cli/pkg/utils"
)

const (
	// StandardIconSize is the edge length of cached thumbnails.
	StandardIconSize = 144

	// DefaultIconPath is served by the catalog for mods without an icon.
	DefaultIconPath = "/default-mod.png"
)

// ResolveURL turns a catalog icon path into an absolute URL. Empty paths map to
// the catalog's default icon.
func ResolveURL(baseURL, iconPath string) string {
	iconPath = strings.TrimSpace(iconPath)
	if iconPath == "" {
		iconPath = DefaultIconPath
	}
	if strings.HasPrefix(iconPath, "http://") || strings.HasPrefix(iconPath, "https://") {
		return iconPath
	}
	if !strings.HasPrefix(iconPath, "/") {
		iconPath = "/" + iconPath
	}
	return strings.TrimRight(baseURL, "/") + iconPath
}

// Downloader fetches a URL into a temp file inside dir.
type Downloader interface {
	Download(ctx context.Context, url, dir string) (string, error)
}

// Cache stores PNG thumbnails keyed by source URL.
type Cache struct {
	dir        string
	source     Downloader
	targetSize uint
	logger     utils.Logger
}

// NewCache creates a thumbnail cache in dir.
func NewCache(dir string, source Downloader, logger utils.Logger) *Cache {
	return &Cache{
		dir:        dir,
		source:     source,
		targetSize: StandardIconSize,
		logger:     utils.OrGlobal(logger),
	}
}

// Path returns where the thumbnail for url is stored.
func (c *Cache) Path(url string) string {
	sum := sha256.Sum256([]byte(url))
	return filepath.Join(c.dir, hex.EncodeToString(sum[:12])+".png")
}

// Thumbnail returns the cached thumbnail for url, downloading and converting
// it on first use.
func (c *Cache) Thumbnail(ctx context.Context, url string) (string, error) {
	target := c.Path(url)
	if utils.IsFile(target) {
		return target, nil
	}

	if err := os.MkdirAll(c.dir, 0755); err != nil {
		return "", fmt.Errorf("create icon cache: %w", err)
	}
	tmp, err := c.source.Download(ctx, url, c.dir)
	if err != nil {
		return "", err
	}
	defer os.Remove(tmp)

	data, err := os.ReadFile(tmp)
	if err != nil {
		return "", fmt.Errorf("read icon: %w", err)
	}
	thumb, err := Process(data, c.targetSize)
	if err != nil {
		return "", fmt.Errorf("icon %s: %w", url, err)
	}
	if err := utils.WriteFileAtomic(target, thumb, 0644); err != nil {
		return "", fmt.Errorf("store icon: %w", err)
	}

	c.logger.Debug("Cached icon %s -> %s", url, target)
	return target, nil
}

// Process decodes a PNG, JPEG, GIF or WebP image and re-encodes it as a
// size x size PNG.
func Process(data []byte, size uint) ([]byte, error) {
	var img image.Image
	var err error

	if isWebP(data) {
		img, err = webp.Decode(bytes.NewReader(data))
		if err != nil {
			return nil, fmt.Errorf("failed to decode webp: %w", err)
		}
	} else {
		img, _, err = image.Decode(bytes.NewReader(data))
		if err != nil {
			return nil, fmt.Errorf("failed to decode image: %w", err)
		}
	}

	resized := resize.Resize(size, size, img, resize.Lanczos3)

	var buf bytes.Buffer
	if err := png.Encode(&buf, resized); err != nil {
		return nil, fmt.Errorf("failed to encode PNG: %w", err)
	}
	return buf.Bytes(), nil
}

func isWebP(data []byte) bool {
	return len(data) >= 12 && string(data[0:4]) == "RIFF" && string(data[8:12]) == "WEBP"
}

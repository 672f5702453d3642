// Package archive extracts zip and rar payloads into a directory with path
// traversal, symlink and size guards.
package archive

import (
	"archive/zip"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/nwaples/rardecode/v2"
)

const (
	maxFileSize         = 500 * 1024 * 1024      // 500 MB per file
	maxTotalExtractSize = 2 * 1024 * 1024 * 1024 // 2 GB cumulative extraction limit
	maxFileCount        = 10000
)

// Format identifies an archive container.
type Format string

const (
	FormatUnknown Format = ""
	FormatZip     Format = "zip"
	FormatRar     Format = "rar"
)

var (
	// ErrUnsupportedFormat is returned when the payload is neither zip nor rar.
	ErrUnsupportedFormat = errors.New("unsupported archive format")
	// ErrUnsafePath is returned for entries escaping the destination or using links.
	ErrUnsafePath = errors.New("unsafe path in archive")
)

var (
	zipMagic      = []byte("PK\x03\x04")
	emptyZipMagic = []byte("PK\x05\x06")
	rarMagic      = []byte("Rar!\x1a\x07")
)

// Filter maps a slash-separated entry name to its destination relative path.
// Returning false skips the entry.
type Filter func(name string) (string, bool)

// Options tunes an extraction.
type Options struct {
	Filter Filter
}

// Result summarizes what was written.
type Result struct {
	Files int
	Bytes int64
}

// DetectFormat sniffs the container type from the first bytes of the file.
func DetectFormat(archivePath string) Format {
	f, err := os.Open(archivePath)
	if err != nil {
		return FormatUnknown
	}
	defer f.Close()

	header := make([]byte, 8)
	n, _ := io.ReadFull(f, header)
	header = header[:n]

	switch {
	case bytes.HasPrefix(header, zipMagic), bytes.HasPrefix(header, emptyZipMagic):
		return FormatZip
	case bytes.HasPrefix(header, rarMagic):
		return FormatRar
	default:
		return FormatUnknown
	}
}

// IsArchiveName reports whether fileName carries an extension handled by Extract.
func IsArchiveName(fileName string) bool {
	return ArchiveExt(fileName) != ""
}

// ArchiveExt returns the archive extension of fileName (".zip", ".silkmod" or
// ".rar"), or "" when the name is not an archive.
func ArchiveExt(fileName string) string {
	lower := strings.ToLower(fileName)
	for _, ext := range []string{".zip", ".silkmod", ".rar"} {
		if strings.HasSuffix(lower, ext) {
			return fileName[len(fileName)-len(ext):]
		}
	}
	return ""
}

// Extract unpacks archivePath into destDir, which must already exist.
func Extract(ctx context.Context, archivePath, destDir string, opts Options) (Result, error) {
	switch DetectFormat(archivePath) {
	case FormatZip:
		return extractZip(ctx, archivePath, destDir, opts)
	case FormatRar:
		return extractRar(ctx, archivePath, destDir, opts)
	default:
		return Result{}, fmt.Errorf("%w: %s", ErrUnsupportedFormat, filepath.Base(archivePath))
	}
}

// RootFilter keeps entries under one of roots (slash-separated, relative to the
// archive root) and drops everything else.
func RootFilter(roots ...string) Filter {
	return func(name string) (string, bool) {
		for _, root := range roots {
			if name == root || strings.HasPrefix(name, root+"/") {
				return name, true
			}
		}
		return "", false
	}
}

type extractor struct {
	destDir string
	filter  Filter
	count   int
	result  Result
}

func newExtractor(destDir string, opts Options) *extractor {
	return &extractor{destDir: filepath.Clean(destDir), filter: opts.Filter}
}

// target resolves an entry name to its destination, or "" when filtered out.
func (e *extractor) target(rawName string) (string, error) {
	e.count++
	if e.count > maxFileCount {
		return "", fmt.Errorf("archive contains too many files (max %d)", maxFileCount)
	}

	name := strings.ReplaceAll(rawName, `\`, "/")
	name = strings.TrimPrefix(name, "./")
	name = strings.TrimSuffix(name, "/")
	if name == "" || name == "." {
		return "", nil
	}
	if strings.HasPrefix(name, "/") || !filepath.IsLocal(filepath.FromSlash(path.Clean(name))) {
		return "", fmt.Errorf("%w: %s", ErrUnsafePath, rawName)
	}
	name = path.Clean(name)

	if e.filter != nil {
		mapped, ok := e.filter(name)
		if !ok {
			return "", nil
		}
		name = mapped
	}

	target := filepath.Join(e.destDir, filepath.FromSlash(name))
	if !strings.HasPrefix(target, e.destDir+string(os.PathSeparator)) {
		return "", fmt.Errorf("%w: %s", ErrUnsafePath, rawName)
	}
	return target, nil
}

func (e *extractor) writeFile(target string, r io.Reader, mode os.FileMode) error {
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return err
	}

	out, err := os.OpenFile(target, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, mode&0o777|0o600)
	if err != nil {
		return err
	}

	written, copyErr := io.Copy(out, io.LimitReader(r, maxFileSize+1))
	closeErr := out.Close()
	if copyErr != nil {
		return copyErr
	}
	if closeErr != nil {
		return fmt.Errorf("close extracted file %s: %w", filepath.Base(target), closeErr)
	}
	if written > maxFileSize {
		return fmt.Errorf("file %s exceeds maximum size (%d bytes)", filepath.Base(target), maxFileSize)
	}

	e.result.Files++
	e.result.Bytes += written
	if e.result.Bytes > maxTotalExtractSize {
		return fmt.Errorf("archive exceeds total extraction limit (%d bytes)", maxTotalExtractSize)
	}
	return nil
}

func extractZip(ctx context.Context, archivePath, destDir string, opts Options) (Result, error) {
	r, err := zip.OpenReader(archivePath)
	if errors.Is(err, zip.ErrInsecurePath) {
		if r != nil {
			r.Close()
		}
		return Result{}, fmt.Errorf("%w: %v", ErrUnsafePath, err)
	}
	if err != nil {
		return Result{}, fmt.Errorf("open zip: %w", err)
	}
	defer r.Close()

	e := newExtractor(destDir, opts)
	for _, f := range r.File {
		if err := ctx.Err(); err != nil {
			return e.result, fmt.Errorf("extraction cancelled: %w", err)
		}

		if f.FileInfo().Mode()&os.ModeSymlink != 0 {
			return e.result, fmt.Errorf("%w: symlink %s", ErrUnsafePath, f.Name)
		}

		target, err := e.target(f.Name)
		if err != nil {
			return e.result, err
		}
		if target == "" {
			continue
		}

		if f.FileInfo().IsDir() {
			if err := os.MkdirAll(target, 0o755); err != nil {
				return e.result, fmt.Errorf("create directory %s: %w", f.Name, err)
			}
			continue
		}

		rc, err := f.Open()
		if err != nil {
			return e.result, fmt.Errorf("open %s: %w", f.Name, err)
		}
		err = e.writeFile(target, rc, f.Mode())
		rc.Close()
		if err != nil {
			return e.result, fmt.Errorf("extract %s: %w", f.Name, err)
		}
	}
	return e.result, nil
}

func extractRar(ctx context.Context, archivePath, destDir string, opts Options) (Result, error) {
	file, err := os.Open(archivePath)
	if err != nil {
		return Result{}, fmt.Errorf("open rar: %w", err)
	}
	defer file.Close()

	reader, err := rardecode.NewReader(file)
	if err != nil {
		return Result{}, fmt.Errorf("read rar: %w", err)
	}

	e := newExtractor(destDir, opts)
	for {
		if err := ctx.Err(); err != nil {
			return e.result, fmt.Errorf("extraction cancelled: %w", err)
		}

		header, err := reader.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return e.result, fmt.Errorf("read rar header: %w", err)
		}

		if header.Mode()&os.ModeSymlink != 0 {
			return e.result, fmt.Errorf("%w: symlink %s", ErrUnsafePath, header.Name)
		}

		target, err := e.target(header.Name)
		if err != nil {
			return e.result, err
		}
		if target == "" {
			continue
		}

		if header.IsDir {
			if err := os.MkdirAll(target, 0o755); err != nil {
				return e.result, fmt.Errorf("create directory %s: %w", header.Name, err)
			}
			continue
		}

		if err := e.writeFile(target, reader, 0o644); err != nil {
			return e.result, fmt.Errorf("extract %s: %w", header.Name, err)
		}
		if !header.ModificationTime.IsZero() {
			_ = os.Chtimes(target, header.ModificationTime, header.ModificationTime)
		}
	}
	return e.result, nil
}

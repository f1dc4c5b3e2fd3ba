package strategy

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/zip"
	"github.com/klauspost/compress/zstd"
)

// zip method id for zstd-compressed entries, per the zip appnote registry.
const zstdMethod = 93

// extractZip unpacks an archive into dest, rejecting entries that would
// escape the destination directory.
func extractZip(archivePath, dest string) error {
	r, err := zip.OpenReader(archivePath)
	if err != nil {
		return fmt.Errorf("failed to open archive: %w", err)
	}

	defer r.Close()

	r.RegisterDecompressor(zstdMethod, func(in io.Reader) io.ReadCloser {
		dec, err := zstd.NewReader(in)
		if err != nil {
			return io.NopCloser(in)
		}

		return dec.IOReadCloser()
	})

	if err := os.MkdirAll(dest, 0755); err != nil {
		return fmt.Errorf("failed to create extraction directory: %w", err)
	}

	for _, f := range r.File {
		if err := extractEntry(f, dest); err != nil {
			return err
		}
	}

	return nil
}

func extractEntry(f *zip.File, dest string) error {
	path, err := entryPath(dest, f.Name)
	if err != nil {
		return err
	}

	if f.FileInfo().IsDir() {
		if err := os.MkdirAll(path, 0755); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", f.Name, err)
		}

		return nil
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create directory for %s: %w", f.Name, err)
	}

	in, err := f.Open()
	if err != nil {
		return fmt.Errorf("failed to open archive entry %s: %w", f.Name, err)
	}

	defer in.Close()

	out, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0644)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}

	defer out.Close()

	if _, err := io.Copy(out, in); err != nil {
		return fmt.Errorf("failed to extract %s: %w", f.Name, err)
	}

	return nil
}

// entryPath resolves an archive entry name under dest, guarding against
// zip-slip traversal.
func entryPath(dest, name string) (string, error) {
	path := filepath.Join(dest, name)

	cleanDest := filepath.Clean(dest)
	if path != cleanDest && !strings.HasPrefix(path, cleanDest+string(os.PathSeparator)) {
		return "", fmt.Errorf("archive entry %q escapes extraction directory", name)
	}

	return path, nil
}

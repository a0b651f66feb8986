package compressor

import (
	"archive/tar"
	"compress/gzip"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// TarGzip bundles export artifacts into one .tar.gz. Entries are stored
// under their base names.
type TarGzip struct {
	level int
}

func NewTarGzip() *TarGzip {
	return &TarGzip{level: gzip.DefaultCompression}
}

// Bundle writes to a temporary name and renames it into place, so a failed
// run never leaves a truncated archive at destPath.
func (t *TarGzip) Bundle(destPath string, files []string) error {
	if len(files) == 0 {
		return fmt.Errorf("nothing to archive")
	}

	tmpPath := destPath + ".part"
	destFile, err := os.OpenFile(tmpPath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0640)
	if err != nil {
		return fmt.Errorf("failed to create dest file: %w", err)
	}

	if err := t.write(destFile, files); err != nil {
		destFile.Close()
		os.Remove(tmpPath)
		return err
	}
	if err := destFile.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to close dest file: %w", err)
	}
	if err := os.Rename(tmpPath, destPath); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to rename archive: %w", err)
	}
	return nil
}

func (t *TarGzip) write(w io.Writer, files []string) error {
	gzipWriter, err := gzip.NewWriterLevel(w, t.level)
	if err != nil {
		return fmt.Errorf("failed to create gzip writer: %w", err)
	}
	tarWriter := tar.NewWriter(gzipWriter)

	for _, path := range files {
		if err := addFile(tarWriter, path); err != nil {
			return err
		}
	}

	if err := tarWriter.Close(); err != nil {
		return fmt.Errorf("failed to finish tar stream: %w", err)
	}
	if err := gzipWriter.Close(); err != nil {
		return fmt.Errorf("failed to finish gzip stream: %w", err)
	}
	return nil
}

func addFile(tw *tar.Writer, path string) error {
	sourceFile, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open source file: %w", err)
	}
	defer sourceFile.Close()

	info, err := sourceFile.Stat()
	if err != nil {
		return fmt.Errorf("failed to stat %s: %w", path, err)
	}
	header, err := tar.FileInfoHeader(info, "")
	if err != nil {
		return fmt.Errorf("failed to build header for %s: %w", path, err)
	}
	header.Name = filepath.Base(path)

	if err := tw.WriteHeader(header); err != nil {
		return fmt.Errorf("failed to write header for %s: %w", path, err)
	}
	if _, err := io.Copy(tw, sourceFile); err != nil {
		return fmt.Errorf("failed to compress %s: %w", path, err)
	}
	return nil
}

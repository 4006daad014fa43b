package exporter

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"licenseadmin/internal/config"
)

// Write encodes t to w in the given format.
func Write(w io.Writer, format Format, t Table) error {
	switch format {
	case FormatCSV:
		return writeCSV(w, t)
	case FormatXLSX:
		return writeXLSX(w, t)
	default:
		return fmt.Errorf("unsupported export format %q", format)
	}
}

// WriteFile writes t to path, adding the format extension when missing. The
// file is written to a temporary sibling and renamed into place. It returns
// the final path.
func WriteFile(path string, format Format, t Table) (string, error) {
	if !strings.EqualFold(filepath.Ext(path), format.Extension()) {
		path += format.Extension()
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, config.DataDirMode); err != nil {
		return "", fmt.Errorf("failed to create directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".export-*")
	if err != nil {
		return "", fmt.Errorf("failed to create file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if err := Write(tmp, format, t); err != nil {
		tmp.Close()
		return "", err
	}
	if err := tmp.Close(); err != nil {
		return "", err
	}
	if err := os.Chmod(tmp.Name(), config.ExportFileMode); err != nil {
		return "", err
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return "", fmt.Errorf("failed to move export into place: %w", err)
	}
	return path, nil
}

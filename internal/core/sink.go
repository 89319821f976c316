package core

// sink.go delivers an exported workbook to its destination. The workbook is
// serialized to memory first, so a failure before the first write leaves the
// destination untouched.

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"path/filepath"

	"github.com/JonMunkholm/tabmap/internal/logging"
)

// ContentTypeOctetStream is the content type of downloaded workbooks.
const ContentTypeOctetStream = "application/octet-stream"

// WriteResponse sends the workbook as an attachment named filename.
// The body is written in a single call and then flushed. Failures are
// logged through the logger carried by ctx and returned.
func WriteResponse(ctx context.Context, w http.ResponseWriter, filename string, wb *Workbook) error {
	log := logging.WithFields(ctx, "file", filename)

	data, err := wb.Bytes()
	if err != nil {
		log.Error("export response failed", "error", err)
		return err
	}

	w.Header().Set("Content-Type", ContentTypeOctetStream)
	w.Header().Set("Content-Disposition", "attachment;filename="+url.QueryEscape(filename))
	if _, err := w.Write(data); err != nil {
		log.Error("export response failed", "error", err)
		return fmt.Errorf("write response: %w", err)
	}

	if err := http.NewResponseController(w).Flush(); err != nil && !errors.Is(err, http.ErrNotSupported) {
		log.Error("export response flush failed", "error", err)
		return fmt.Errorf("flush response: %w", err)
	}
	return nil
}

// WriteFile stores the workbook at path, replacing any existing file.
// The content is always xlsx regardless of the extension of path.
func WriteFile(ctx context.Context, path string, wb *Workbook) (err error) {
	defer func() {
		if err != nil {
			logging.FromContext(ctx).Error("export file failed", "path", path, "error", err)
		}
	}()

	data, err := wb.Bytes()
	if err != nil {
		return err
	}

	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer func() {
		if err != nil {
			os.Remove(tmpName)
		}
	}()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close %s: %w", path, err)
	}
	if err := os.Chmod(tmpName, 0o644); err != nil {
		return fmt.Errorf("chmod %s: %w", path, err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("replace %s: %w", path, err)
	}
	return nil
}

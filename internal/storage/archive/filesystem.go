// Package archive keeps the raw text of model responses that could not be parsed, one directory
// per report, so they can be inspected after the report has completed with default values.
package archive

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/sirupsen/logrus"

	"videosafety-worker/internal/config"
)

// FileSystemArchive writes <basePath>/<reportID>/segment-<n>.txt.
type FileSystemArchive struct {
	basePath string
	logger   logrus.FieldLogger
}

// NewFileSystemArchive creates the base directory if needed. An empty path disables the archive
// and returns nil, nil.
func NewFileSystemArchive(cfg config.ArchiveConfig, logger logrus.FieldLogger) (*FileSystemArchive, error) {
	if cfg.Path == "" {
		return nil, nil
	}
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	absBasePath, err := filepath.Abs(cfg.Path)
	if err != nil {
		return nil, fmt.Errorf("resolve archive path %q: %w", cfg.Path, err)
	}
	if err := os.MkdirAll(absBasePath, 0o755); err != nil {
		return nil, fmt.Errorf("create archive directory %q: %w", absBasePath, err)
	}
	logger.WithField("path", absBasePath).Info("[Archive] raw response archive enabled")
	return &FileSystemArchive{basePath: absBasePath, logger: logger}, nil
}

func (fs *FileSystemArchive) reportDir(reportID string) (string, error) {
	if reportID == "" || reportID == "." || reportID == ".." || filepath.Base(reportID) != reportID {
		return "", fmt.Errorf("invalid report id %q", reportID)
	}
	return filepath.Join(fs.basePath, reportID), nil
}

// Save stores text for one segment of a report, replacing an earlier copy.
func (fs *FileSystemArchive) Save(_ context.Context, reportID string, segment int, text string) error {
	dir, err := fs.reportDir(reportID)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create report archive directory %q: %w", dir, err)
	}
	target := filepath.Join(dir, fmt.Sprintf("segment-%d.txt", segment))
	if err := os.WriteFile(target, []byte(text), 0o644); err != nil {
		return fmt.Errorf("write raw response to %q: %w", target, err)
	}
	fs.logger.WithFields(logrus.Fields{"report_id": reportID, "segment": segment, "bytes": len(text)}).
		Debug("[Archive] raw response saved")
	return nil
}

// Entry is one archived response.
type Entry struct {
	Segment int    `json:"segment"`
	Text    string `json:"text"`
}

// Load returns every archived response of a report ordered by segment. A report with nothing
// archived yields an empty slice.
func (fs *FileSystemArchive) Load(_ context.Context, reportID string) ([]Entry, error) {
	dir, err := fs.reportDir(reportID)
	if err != nil {
		return nil, err
	}
	files, err := os.ReadDir(dir)
	if os.IsNotExist(err) {
		return []Entry{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read report archive %q: %w", dir, err)
	}

	entries := make([]Entry, 0, len(files))
	for _, f := range files {
		name := f.Name()
		if f.IsDir() || !strings.HasPrefix(name, "segment-") || !strings.HasSuffix(name, ".txt") {
			continue
		}
		n, err := strconv.Atoi(strings.TrimSuffix(strings.TrimPrefix(name, "segment-"), ".txt"))
		if err != nil {
			continue
		}
		data, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			return nil, fmt.Errorf("read archived response %q: %w", name, err)
		}
		entries = append(entries, Entry{Segment: n, Text: string(data)})
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Segment < entries[j].Segment })
	return entries, nil
}

// Delete removes everything archived for a report.
func (fs *FileSystemArchive) Delete(_ context.Context, reportID string) error {
	dir, err := fs.reportDir(reportID)
	if err != nil {
		return err
	}
	if err := os.RemoveAll(dir); err != nil {
		return fmt.Errorf("delete report archive %q: %w", dir, err)
	}
	return nil
}

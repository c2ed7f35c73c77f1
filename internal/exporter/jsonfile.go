package exporter

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"go.uber.org/zap"

	"github.com/sanket-telunagi/k8sfs/internal/model"
	"github.com/sanket-telunagi/k8sfs/internal/report"
)

// DefaultJSONFilename is the file written in the output directory
const DefaultJSONFilename = "filesystem_data.json"

// Document is the JSON file layout
type Document struct {
	Cycle
	Summary report.Summary `json:"summary"`
}

// JSONFile writes each cycle to a JSON file, replacing the previous one
type JSONFile struct {
	dir      string
	filename string
	logger   *zap.Logger
	mu       sync.Mutex
}

// NewJSONFile creates a JSON file exporter. An empty filename uses DefaultJSONFilename.
func NewJSONFile(logger *zap.Logger, dir, filename string) *JSONFile {
	if filename == "" {
		filename = DefaultJSONFilename
	}
	return &JSONFile{
		dir:      dir,
		filename: filename,
		logger:   logger,
	}
}

// Name returns the exporter name
func (j *JSONFile) Name() string {
	return "json"
}

// Path returns the file the exporter writes
func (j *JSONFile) Path() string {
	return filepath.Join(j.dir, j.filename)
}

// Export writes the cycle. The file is written to a temporary name and renamed so
// readers never observe a partial document.
func (j *JSONFile) Export(_ context.Context, cycle Cycle) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	if err := os.MkdirAll(j.dir, 0755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	snapshot := cycle.Snapshot
	if snapshot == nil {
		snapshot = model.Snapshot{}
	}
	doc := Document{
		Cycle:   cycle,
		Summary: report.SummarizeByNamespace(snapshot),
	}
	doc.Snapshot = snapshot

	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal snapshot: %w", err)
	}

	tmp, err := os.CreateTemp(j.dir, j.filename+".*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temporary file: %w", err)
	}
	tmpPath := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("failed to write snapshot file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to close snapshot file: %w", err)
	}
	if err := os.Chmod(tmpPath, 0644); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to set snapshot file mode: %w", err)
	}
	if err := os.Rename(tmpPath, j.Path()); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to move snapshot file into place: %w", err)
	}

	j.logger.Info("Exported snapshot to file",
		zap.String("cycleId", cycle.ID),
		zap.String("filePath", j.Path()),
		zap.Int("bytes", len(data)))

	return nil
}

// Load reads the last written document
func (j *JSONFile) Load() (*Document, error) {
	j.mu.Lock()
	defer j.mu.Unlock()

	data, err := os.ReadFile(j.Path())
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}

	var doc Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to unmarshal snapshot: %w", err)
	}
	return &doc, nil
}

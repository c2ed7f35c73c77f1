package exporter

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/sanket-telunagi/k8sfs/internal/model"
)

// Cycle is the output of one collection cycle
type Cycle struct {
	ID          string         `json:"cycleId"`
	StartedAt   time.Time      `json:"startedAt"`
	CompletedAt time.Time      `json:"completedAt"`
	Snapshot    model.Snapshot `json:"data"`
}

// NewCycle wraps a snapshot with a fresh cycle ID
func NewCycle(snapshot model.Snapshot, startedAt, completedAt time.Time) Cycle {
	return Cycle{
		ID:          uuid.NewString(),
		StartedAt:   startedAt.UTC(),
		CompletedAt: completedAt.UTC(),
		Snapshot:    snapshot,
	}
}

// Exporter publishes a collection cycle somewhere
type Exporter interface {
	Name() string
	Export(ctx context.Context, cycle Cycle) error
}

// Multi fans a cycle out to several exporters
type Multi struct {
	logger    *zap.Logger
	exporters []Exporter
}

// NewMulti creates an exporter that runs every given exporter in order
func NewMulti(logger *zap.Logger, exporters ...Exporter) *Multi {
	return &Multi{logger: logger, exporters: exporters}
}

// Name returns the exporter name
func (m *Multi) Name() string {
	return "multi"
}

// Export runs every exporter. One failing exporter does not stop the others;
// all failures are returned joined.
func (m *Multi) Export(ctx context.Context, cycle Cycle) error {
	var errs []error
	for _, e := range m.exporters {
		if err := e.Export(ctx, cycle); err != nil {
			m.logger.Error("Export failed",
				zap.String("exporter", e.Name()),
				zap.String("cycleId", cycle.ID),
				zap.Error(err))
			errs = append(errs, fmt.Errorf("%s: %w", e.Name(), err))
			continue
		}
		m.logger.Debug("Exported cycle", zap.String("exporter", e.Name()), zap.String("cycleId", cycle.ID))
	}
	return errors.Join(errs...)
}

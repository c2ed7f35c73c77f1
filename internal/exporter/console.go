package exporter

import (
	"context"
	"fmt"
	"io"

	"github.com/sanket-telunagi/k8sfs/internal/report"
)

// Console writes a table and a summary for each cycle
type Console struct {
	w io.Writer
}

// NewConsole creates a console exporter writing to w
func NewConsole(w io.Writer) *Console {
	return &Console{w: w}
}

// Name returns the exporter name
func (c *Console) Name() string {
	return "console"
}

// Export writes the cycle
func (c *Console) Export(_ context.Context, cycle Cycle) error {
	if _, err := fmt.Fprintf(c.w, "Collection cycle %s completed at %s\n\n",
		cycle.ID, cycle.CompletedAt.Format("2006-01-02 15:04:05 MST")); err != nil {
		return err
	}
	if err := report.WriteTable(c.w, cycle.Snapshot); err != nil {
		return fmt.Errorf("failed to write table: %w", err)
	}
	if _, err := fmt.Fprintln(c.w); err != nil {
		return err
	}
	return report.WriteSummary(c.w, report.SummarizeByNamespace(cycle.Snapshot))
}

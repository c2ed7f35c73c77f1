package report

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"
	"text/tabwriter"

	"github.com/sanket-telunagi/k8sfs/internal/model"
)

const notAvailable = "N/A"

// FormatJSON renders a snapshot as JSON, indented when pretty is set
func FormatJSON(snapshot model.Snapshot, pretty bool) ([]byte, error) {
	if snapshot == nil {
		snapshot = model.Snapshot{}
	}
	if pretty {
		return json.MarshalIndent(snapshot, "", "  ")
	}
	return json.Marshal(snapshot)
}

// WriteTable writes one row per namespace and node, sorted by namespace then node
func WriteTable(w io.Writer, snapshot model.Snapshot) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)

	fmt.Fprintln(tw, "NAMESPACE\tNODE\tPODS\tCAPACITY\tALLOCATABLE")
	for _, namespace := range Namespaces(snapshot) {
		nodes := append([]model.NodeRecord(nil), snapshot[namespace]...)
		sort.Slice(nodes, func(i, j int) bool { return nodes[i].NodeName < nodes[j].NodeName })

		for _, node := range nodes {
			fmt.Fprintf(tw, "%s\t%s\t%d\t%s\t%s\n",
				namespace,
				node.NodeName,
				node.PodCount(),
				model.Deref(node.TotalCapacity, notAvailable),
				model.Deref(node.TotalAllocatable, notAvailable))
		}
	}
	return tw.Flush()
}

// FormatTable renders WriteTable into a string
func FormatTable(snapshot model.Snapshot) string {
	var b strings.Builder
	_ = WriteTable(&b, snapshot)
	return b.String()
}

// WriteSummary writes the snapshot totals in a short human-readable form
func WriteSummary(w io.Writer, summary Summary) error {
	_, err := fmt.Fprintf(w, "Summary: %d namespaces, %d nodes, %d pods\n",
		summary.TotalNamespaces, summary.TotalNodes, summary.TotalPods)
	return err
}

package export

import (
	"fmt"
	"sort"
	"strings"

	"github.com/dusk-indust/graphogm/internal/graph"
)

// Mermaid produces a Mermaid "graph LR" diagram of the snapshot. Vertices are
// grouped by label; edges become labelled arrows.
func Mermaid(snap *Snapshot) string {
	// Build element ID -> Mermaid ID mapping (alphanumeric only).
	nodeIDs := make(map[string]string)
	getID := func(id graph.ID) string {
		key := graph.ToString(id)
		if n, ok := nodeIDs[key]; ok {
			return n
		}
		n := fmt.Sprintf("N%d", len(nodeIDs))
		nodeIDs[key] = n
		return n
	}

	byLabel := make(map[string][]graph.Element)
	for _, v := range snap.Vertices {
		byLabel[v.Label] = append(byLabel[v.Label], v)
	}
	labels := make([]string, 0, len(byLabel))
	for l := range byLabel {
		labels = append(labels, l)
	}
	sort.Strings(labels)

	var sb strings.Builder
	sb.WriteString("graph LR\n")
	for i, label := range labels {
		fmt.Fprintf(&sb, "  subgraph G%d[\"%s\"]\n", i, escape(label))
		for _, v := range byLabel[label] {
			fmt.Fprintf(&sb, "    %s[\"%s\"]\n", getID(v.ID), escape(caption(v)))
		}
		sb.WriteString("  end\n")
	}
	for _, e := range snap.Edges {
		fmt.Fprintf(&sb, "  %s -->|%s| %s\n", getID(e.OutV), escape(e.Label), getID(e.InV))
	}
	return sb.String()
}

// caption prefers a name property and falls back to the identity.
func caption(v graph.Element) string {
	for _, key := range []string{"name", "title"} {
		if s, ok := v.Props[key].(string); ok && s != "" {
			return s
		}
	}
	return fmt.Sprintf("%s %s", v.Label, graph.ToString(v.ID))
}

// escape keeps quotes and pipes from breaking the diagram syntax.
func escape(s string) string {
	return strings.NewReplacer(`"`, "#quot;", "|", "#124;").Replace(s)
}

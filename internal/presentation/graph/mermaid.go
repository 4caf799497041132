// Package graph renders dependency-graph introspection views as Mermaid
// flowcharts, for the CLI and for embedding in docs.
package graph

import (
	"fmt"
	"strings"

	"github.com/arborlabs/arbor/pkg/domain"
)

// Overlay contains dynamic pass data to visualize on the graph.
type Overlay struct {
	// Recomputed names bindings recomputed in the most recent cycle.
	Recomputed []string
}

// GenerateMermaid produces Mermaid flowchart syntax from a graph snapshot.
// Shapes are semantic:
//   - arg: [/Parallelogram/]
//   - state: [Rectangle]
//   - computed: [[Subroutine]]
//   - render: ((Circle))
//
// Edges run from a binding to each binding that reads it. Deferred bindings
// are annotated on the label.
func GenerateMermaid(info domain.GraphInfo, overlay *Overlay) string {
	var sb strings.Builder
	sb.WriteString("graph TD\n")

	for _, node := range info.Nodes {
		safeID := sanitizeMermaidID(node.Name)

		opener, closer := "[", "]"
		switch node.Kind {
		case "arg":
			opener, closer = "[/", "/]"
		case "computed":
			opener, closer = "[[", "]]"
		case "render":
			opener, closer = "((", "))"
		}

		label := node.Name
		if node.Deferred {
			label += " (deferred)"
		}
		sb.WriteString(fmt.Sprintf("    %s%s\"%s\"%s\n", safeID, opener, label, closer))

		for _, read := range node.Reads {
			sb.WriteString(fmt.Sprintf("    %s --> %s\n", sanitizeMermaidID(read), safeID))
		}
	}

	if overlay != nil && len(overlay.Recomputed) > 0 {
		sb.WriteString("\n    %% Overlay Styles\n")
		sb.WriteString("    classDef recomputed fill:#ffeb3b,stroke:#fbc02d,stroke-width:2px,color:#000;\n")

		seen := make(map[string]bool)
		for _, name := range overlay.Recomputed {
			safeID := sanitizeMermaidID(name)
			if safeID == "" || seen[safeID] {
				continue
			}
			seen[safeID] = true
			sb.WriteString(fmt.Sprintf("    class %s recomputed;\n", safeID))
		}
	}

	return sb.String()
}

func sanitizeMermaidID(id string) string {
	r := strings.NewReplacer(".", "_", "-", "_", "/", "_", "\\", "_", "(", "_", ")", "_", " ", "_")
	return r.Replace(id)
}

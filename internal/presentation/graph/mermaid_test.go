package graph

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/arborlabs/arbor/pkg/domain"
)

func sampleInfo() domain.GraphInfo {
	return domain.GraphInfo{
		Definition: "counter",
		Nodes: []domain.GraphNodeInfo{
			{Name: "arg0", Kind: "arg"},
			{Name: "count", Kind: "state"},
			{Name: "double", Kind: "computed", Reads: []string{"count"}},
			{Name: "(render)", Kind: "render", Reads: []string{"double", "arg0"}},
		},
	}
}

func TestGenerateMermaidShapes(t *testing.T) {
	out := GenerateMermaid(sampleInfo(), nil)

	assert.True(t, strings.HasPrefix(out, "graph TD\n"))
	assert.Contains(t, out, `arg0[/"arg0"/]`)
	assert.Contains(t, out, `count["count"]`)
	assert.Contains(t, out, `double[["double"]]`)
	assert.Contains(t, out, `_render_(("(render)"))`)
}

func TestGenerateMermaidEdges(t *testing.T) {
	out := GenerateMermaid(sampleInfo(), nil)

	assert.Contains(t, out, "count --> double")
	assert.Contains(t, out, "double --> _render_")
	assert.Contains(t, out, "arg0 --> _render_")
}

func TestGenerateMermaidDeferredAnnotation(t *testing.T) {
	info := domain.GraphInfo{
		Nodes: []domain.GraphNodeInfo{
			{Name: "fetch", Kind: "computed", Deferred: true},
		},
	}
	out := GenerateMermaid(info, nil)
	assert.Contains(t, out, `fetch[["fetch (deferred)"]]`)
}

func TestGenerateMermaidOverlay(t *testing.T) {
	out := GenerateMermaid(sampleInfo(), &Overlay{Recomputed: []string{"double", "double", ""}})

	assert.Contains(t, out, "classDef recomputed")
	assert.Equal(t, 1, strings.Count(out, "class double recomputed;"))
}

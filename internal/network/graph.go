package network

import (
	"encoding/json"
	"io"
	"strings"
	"time"

	"github.com/sydlexius/confluence/internal/fusion"
)

// Node is one artist in the assembled graph.
type Node struct {
	Name      string `json:"name"`
	Listeners int64  `json:"listeners,omitempty"`
}

// Edge is the serialized form of a fused edge. Similarity is exported
// under the conventional "weight" name.
type Edge struct {
	Source            string   `json:"source"`
	Target            string   `json:"target"`
	Weight            float64  `json:"weight"`
	Distance          float64  `json:"distance"`
	Confidence        float64  `json:"confidence"`
	IsFactual         bool     `json:"is_factual"`
	Sources           []string `json:"sources"`
	RelationshipTypes []string `json:"relationship_types,omitempty"`
	FusionMethod      string   `json:"fusion_method"`
}

// Document is the exportable form of a completed build run.
type Document struct {
	RunID       string    `json:"run_id"`
	GeneratedAt time.Time `json:"generated_at"`
	Nodes       []Node    `json:"nodes"`
	Edges       []Edge    `json:"edges"`
}

// Graph accumulates the nodes and fused edges of one build run. Nodes
// are keyed case-insensitively by canonical name; edges are
// undirected, one per artist pair.
type Graph struct {
	runID       string
	generatedAt time.Time
	nodeOrder   []string
	nodes       map[string]*Node
	edges       []*fusion.WeightedEdge
	edgeKeys    map[string]bool
}

// NewGraph creates an empty graph for the given run.
func NewGraph(runID string) *Graph {
	return &Graph{
		runID:       runID,
		generatedAt: time.Now().UTC(),
		nodes:       make(map[string]*Node),
		edgeKeys:    make(map[string]bool),
	}
}

// AddNode records an artist. It returns true when the node is new; a
// repeated name (any casing) leaves the first entry in place.
func (g *Graph) AddNode(name string, listeners int64) bool {
	key := nodeKey(name)
	if _, ok := g.nodes[key]; ok {
		return false
	}
	g.nodes[key] = &Node{Name: name, Listeners: listeners}
	g.nodeOrder = append(g.nodeOrder, key)
	return true
}

// HasNode reports whether an artist is already in the graph.
func (g *Graph) HasNode(name string) bool {
	_, ok := g.nodes[nodeKey(name)]
	return ok
}

// NodeCount returns the number of artists in the graph.
func (g *Graph) NodeCount() int { return len(g.nodes) }

// AddEdge records a fused edge. Duplicate pairs, in either direction,
// are rejected.
func (g *Graph) AddEdge(edge *fusion.WeightedEdge) bool {
	key := pairKey(edge.SourceArtist, edge.TargetArtist)
	if g.edgeKeys[key] {
		return false
	}
	g.edgeKeys[key] = true
	g.edges = append(g.edges, edge)
	return true
}

// HasEdge reports whether the pair, in either direction, already has
// an edge.
func (g *Graph) HasEdge(a, b string) bool {
	return g.edgeKeys[pairKey(a, b)]
}

// EdgeCount returns the number of edges in the graph.
func (g *Graph) EdgeCount() int { return len(g.edges) }

// Nodes returns the graph's nodes in insertion order.
func (g *Graph) Nodes() []Node {
	out := make([]Node, 0, len(g.nodeOrder))
	for _, key := range g.nodeOrder {
		out = append(out, *g.nodes[key])
	}
	return out
}

// Edges returns the fused edges in insertion order.
func (g *Graph) Edges() []*fusion.WeightedEdge {
	out := make([]*fusion.WeightedEdge, len(g.edges))
	copy(out, g.edges)
	return out
}

// RunID returns the identifier of the build run that produced the
// graph.
func (g *Graph) RunID() string { return g.runID }

// Document converts the graph to its exportable form.
func (g *Graph) Document() *Document {
	doc := &Document{
		RunID:       g.runID,
		GeneratedAt: g.generatedAt,
		Nodes:       g.Nodes(),
		Edges:       make([]Edge, 0, len(g.edges)),
	}
	for _, e := range g.edges {
		doc.Edges = append(doc.Edges, ExportEdge(e))
	}
	return doc
}

// WriteJSON serializes the graph document to w with indentation.
func (g *Graph) WriteJSON(w io.Writer) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(g.Document())
}

// ExportEdge flattens a fused edge into its serializable form.
func ExportEdge(e *fusion.WeightedEdge) Edge {
	sources := e.Sources()
	names := make([]string, 0, len(sources))
	for _, s := range sources {
		names = append(names, string(s))
	}
	return Edge{
		Source:            e.SourceArtist,
		Target:            e.TargetArtist,
		Weight:            e.Similarity,
		Distance:          e.Distance,
		Confidence:        e.Confidence,
		IsFactual:         e.IsFactual,
		Sources:           names,
		RelationshipTypes: e.RelationshipTypes(),
		FusionMethod:      e.FusionMethod,
	}
}

func nodeKey(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

// pairKey builds an order-independent key for an artist pair.
func pairKey(a, b string) string {
	ka, kb := nodeKey(a), nodeKey(b)
	if ka > kb {
		ka, kb = kb, ka
	}
	return ka + "\x00" + kb
}

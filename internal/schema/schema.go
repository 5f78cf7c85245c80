package schema

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sort"
)

// Property is a typed attribute of a node or an edge.
type Property struct {
	Name string `json:"name"`
	Type string `json:"type"`
}

// Node is an entity label with its properties.
type Node struct {
	Label      string     `json:"label"`
	Properties []Property `json:"properties,omitempty"`
}

// Edge is a relationship label with its endpoint labels and properties.
type Edge struct {
	Label      string     `json:"label"`
	From       string     `json:"from"`
	To         string     `json:"to"`
	Properties []Property `json:"properties,omitempty"`
}

// Graph describes a property graph: the full schema of the store, or a
// reduced subset relevant to one question.
type Graph struct {
	Nodes []Node `json:"nodes"`
	Edges []Edge `json:"edges"`
}

// Reducer narrows a full schema to the subset relevant to a question.
type Reducer interface {
	Reduce(ctx context.Context, question string, full Graph) (Graph, error)
}

// Source provides the full schema of the backing store.
type Source interface {
	Schema(ctx context.Context) (Graph, error)
}

// StaticSource serves a fixed schema, typically loaded from a file at
// startup.
type StaticSource struct {
	Graph Graph
}

func (s StaticSource) Schema(_ context.Context) (Graph, error) {
	return s.Graph, nil
}

// Canonical serializes the graph deterministically: nodes and edges sorted
// by label, properties sorted by name, compact JSON. Two graphs that differ
// only in declaration order produce identical bytes.
func (g Graph) Canonical() ([]byte, error) {
	nodes := make([]Node, len(g.Nodes))
	for i, node := range g.Nodes {
		nodes[i] = Node{Label: node.Label, Properties: sortedProperties(node.Properties)}
	}
	sort.Slice(nodes, func(i, j int) bool { return nodes[i].Label < nodes[j].Label })

	edges := make([]Edge, len(g.Edges))
	for i, edge := range g.Edges {
		edges[i] = Edge{Label: edge.Label, From: edge.From, To: edge.To, Properties: sortedProperties(edge.Properties)}
	}
	sort.Slice(edges, func(i, j int) bool {
		if edges[i].Label != edges[j].Label {
			return edges[i].Label < edges[j].Label
		}
		if edges[i].From != edges[j].From {
			return edges[i].From < edges[j].From
		}
		return edges[i].To < edges[j].To
	})

	buf := bytes.NewBuffer(nil)
	encoder := json.NewEncoder(buf)
	encoder.SetEscapeHTML(false)
	if err := encoder.Encode(Graph{Nodes: nodes, Edges: edges}); err != nil {
		return nil, fmt.Errorf("encode canonical schema: %w", err)
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}

// JSON renders the graph as indented JSON for prompt embedding.
func (g Graph) JSON() (string, error) {
	data, err := json.MarshalIndent(g, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal schema: %w", err)
	}
	return string(data), nil
}

// IsEmpty reports whether the graph has no nodes and no edges.
func (g Graph) IsEmpty() bool {
	return len(g.Nodes) == 0 && len(g.Edges) == 0
}

// LoadFile reads a schema from a JSON file.
func LoadFile(path string) (Graph, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Graph{}, fmt.Errorf("read schema file: %w", err)
	}
	var graph Graph
	if err := json.Unmarshal(data, &graph); err != nil {
		return Graph{}, fmt.Errorf("parse schema file %q: %w", path, err)
	}
	return graph, nil
}

func sortedProperties(props []Property) []Property {
	if len(props) == 0 {
		return nil
	}
	sorted := make([]Property, len(props))
	copy(sorted, props)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Name < sorted[j].Name })
	return sorted
}

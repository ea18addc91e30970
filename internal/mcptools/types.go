package mcptools

import "github.com/dusk-indust/graphogm/internal/graph"

// --- MCP Tool Input Types ---
// These structs define the JSON schema for each MCP tool's input.
// The MCP Go SDK auto-generates JSON schemas from struct tags.

// Vertex is a vertex as returned by the tools.
type Vertex struct {
	ID    string      `json:"id"`
	Label string      `json:"label"`
	Props graph.Props `json:"props,omitempty"`
}

// GraphStatsInput is the input for the graph_stats MCP tool.
type GraphStatsInput struct{}

// GraphStatsOutput is the result of the graph_stats MCP tool.
type GraphStatsOutput struct {
	Backend string      `json:"backend"`
	Stats   graph.Stats `json:"stats"`
}

// FindVerticesInput is the input for the find_vertices MCP tool.
type FindVerticesInput struct {
	Label  string         `json:"label" jsonschema:"vertex label to list"`
	Filter map[string]any `json:"filter,omitempty" jsonschema:"property values the vertices must equal"`
	Limit  int            `json:"limit,omitempty" jsonschema:"maximum number of results (default: 50)"`
	Offset int            `json:"offset,omitempty" jsonschema:"number of results to skip"`
}

// FindVerticesOutput is the result of the find_vertices MCP tool.
type FindVerticesOutput struct {
	Vertices []Vertex `json:"vertices"`
	Total    int      `json:"total"`
}

// GetVertexInput is the input for the get_vertex MCP tool.
type GetVertexInput struct {
	ID string `json:"id" jsonschema:"vertex identity"`
}

// GetVertexOutput is the result of the get_vertex MCP tool.
type GetVertexOutput struct {
	Found  bool    `json:"found"`
	Vertex *Vertex `json:"vertex,omitempty"`
}

// CreateVertexInput is the input for the create_vertex MCP tool.
type CreateVertexInput struct {
	Label string         `json:"label" jsonschema:"vertex label"`
	Props map[string]any `json:"props,omitempty" jsonschema:"vertex properties"`
}

// UpdateVertexInput is the input for the update_vertex MCP tool.
type UpdateVertexInput struct {
	ID    string         `json:"id" jsonschema:"vertex identity"`
	Props map[string]any `json:"props" jsonschema:"properties to set; null removes a property"`
}

// UpdateVertexOutput is the result of the update_vertex MCP tool.
type UpdateVertexOutput struct {
	Updated bool `json:"updated"`
}

// IDOutput is the result of tools that create an element.
type IDOutput struct {
	ID string `json:"id"`
}

// AddEdgeInput is the input for the add_edge MCP tool.
type AddEdgeInput struct {
	From      string         `json:"from" jsonschema:"source vertex identity"`
	To        string         `json:"to" jsonschema:"target vertex identity"`
	Label     string         `json:"label" jsonschema:"edge label"`
	Direction string         `json:"direction,omitempty" jsonschema:"out, in or both (default: out)"`
	Props     map[string]any `json:"props,omitempty" jsonschema:"edge properties"`
}

// LinkInput is the input for the link MCP tool.
type LinkInput struct {
	From  graph.VertexMatch `json:"from" jsonschema:"source vertex, matched by label and properties or created"`
	To    graph.VertexMatch `json:"to" jsonschema:"target vertex, matched by label and properties or created"`
	Label string            `json:"label" jsonschema:"edge label"`
	Props map[string]any    `json:"props,omitempty" jsonschema:"edge properties"`
}

// TraverseInput is the input for the traverse MCP tool.
type TraverseInput struct {
	ID        string `json:"id" jsonschema:"start vertex identity"`
	EdgeLabel string `json:"edgeLabel,omitempty" jsonschema:"edge label to follow (default: any)"`
	Direction string `json:"direction,omitempty" jsonschema:"out, in or both (default: out)"`
	Depth     int    `json:"depth,omitempty" jsonschema:"follow 1..depth outgoing hops instead of one hop"`
}

// TraverseOutput is the result of the traverse MCP tool.
type TraverseOutput struct {
	Vertices []Vertex `json:"vertices"`
}

// FindPathInput is the input for the find_path MCP tool.
type FindPathInput struct {
	From      string `json:"from" jsonschema:"start vertex identity"`
	To        string `json:"to" jsonschema:"end vertex identity"`
	EdgeLabel string `json:"edgeLabel,omitempty" jsonschema:"edge label to follow (default: any)"`
	MaxDepth  int    `json:"maxDepth,omitempty" jsonschema:"maximum hops (default: 5)"`
}

// FindPathOutput is the result of the find_path MCP tool.
type FindPathOutput struct {
	Paths []graph.Path `json:"paths"`
}

// DeleteVertexInput is the input for the delete_vertex MCP tool.
type DeleteVertexInput struct {
	ID string `json:"id" jsonschema:"vertex identity"`
}

// DeleteVertexOutput is the result of the delete_vertex MCP tool.
type DeleteVertexOutput struct {
	Deleted bool `json:"deleted"`
}

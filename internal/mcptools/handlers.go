package mcptools

import (
	"context"
	"fmt"
	"math"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"go.uber.org/zap"

	"github.com/dusk-indust/graphogm/internal/graph"
	"github.com/dusk-indust/graphogm/internal/repository"
)

const (
	defaultLimit    = 50
	defaultMaxDepth = 5
)

// GraphService holds the repository used by MCP tool handlers.
type GraphService struct {
	repo   repository.Repository
	logger *zap.Logger
}

// NewGraphService creates a GraphService over repo. A nil logger discards
// output.
func NewGraphService(repo repository.Repository, logger *zap.Logger) *GraphService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &GraphService{repo: repo, logger: logger}
}

// GraphStats counts all vertices and those of each registered label.
func (s *GraphService) GraphStats(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	_ GraphStatsInput,
) (*mcp.CallToolResult, GraphStatsOutput, error) {
	st, err := repository.Stats(ctx, s.repo)
	if err != nil {
		return nil, GraphStatsOutput{}, fmt.Errorf("stats: %w", err)
	}
	return nil, GraphStatsOutput{Backend: s.repo.Name(), Stats: st}, nil
}

// FindVertices lists vertices of a label, optionally filtered by property
// equality.
func (s *GraphService) FindVertices(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input FindVerticesInput,
) (*mcp.CallToolResult, FindVerticesOutput, error) {
	if input.Label == "" {
		return nil, FindVerticesOutput{}, fmt.Errorf("label is required")
	}
	limit := input.Limit
	if limit <= 0 {
		limit = defaultLimit
	}

	var (
		found []graph.Props
		err   error
	)
	if len(input.Filter) == 0 {
		found, err = s.repo.FindVertices(ctx, input.Label, repository.Page{Limit: limit, Offset: input.Offset})
	} else {
		found, err = s.repo.FindVerticesByProperties(ctx, input.Label, jsonProps(input.Filter))
		found = window(found, limit, input.Offset)
	}
	if err != nil {
		return nil, FindVerticesOutput{}, fmt.Errorf("find vertices: %w", err)
	}
	out := vertices(found)
	return nil, FindVerticesOutput{Vertices: out, Total: len(out)}, nil
}

// GetVertex reads one vertex by identity.
func (s *GraphService) GetVertex(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input GetVertexInput,
) (*mcp.CallToolResult, GetVertexOutput, error) {
	m, ok, err := s.repo.FindVertex(ctx, input.ID)
	if err != nil {
		return nil, GetVertexOutput{}, fmt.Errorf("get vertex: %w", err)
	}
	if !ok {
		return nil, GetVertexOutput{}, nil
	}
	v := vertex(m)
	return nil, GetVertexOutput{Found: true, Vertex: &v}, nil
}

// CreateVertex adds a vertex and returns its identity.
func (s *GraphService) CreateVertex(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input CreateVertexInput,
) (*mcp.CallToolResult, IDOutput, error) {
	if input.Label == "" {
		return nil, IDOutput{}, fmt.Errorf("label is required")
	}
	id, err := s.repo.CreateVertex(ctx, input.Label, jsonProps(input.Props))
	if err != nil {
		return nil, IDOutput{}, fmt.Errorf("create vertex: %w", err)
	}
	s.logger.Info("vertex created via MCP", zap.String("label", input.Label), zap.Any("id", id))
	return nil, IDOutput{ID: graph.ToString(id)}, nil
}

// UpdateVertex merges properties into a vertex.
func (s *GraphService) UpdateVertex(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input UpdateVertexInput,
) (*mcp.CallToolResult, UpdateVertexOutput, error) {
	ok, err := s.repo.UpdateVertex(ctx, input.ID, jsonProps(input.Props))
	if err != nil {
		return nil, UpdateVertexOutput{}, fmt.Errorf("update vertex: %w", err)
	}
	return nil, UpdateVertexOutput{Updated: ok}, nil
}

// AddEdge connects two existing vertices.
func (s *GraphService) AddEdge(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input AddEdgeInput,
) (*mcp.CallToolResult, UpdateVertexOutput, error) {
	dir, err := graph.ParseDirection(input.Direction)
	if err != nil {
		return nil, UpdateVertexOutput{}, err
	}
	if err := s.repo.AddEdge(ctx, input.From, input.To, input.Label, dir, jsonProps(input.Props)); err != nil {
		return nil, UpdateVertexOutput{}, fmt.Errorf("add edge: %w", err)
	}
	return nil, UpdateVertexOutput{Updated: true}, nil
}

// Link get-or-creates both endpoints and adds an edge between them.
func (s *GraphService) Link(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input LinkInput,
) (*mcp.CallToolResult, IDOutput, error) {
	from := graph.VertexMatch{Label: input.From.Label, Props: jsonProps(input.From.Props)}
	to := graph.VertexMatch{Label: input.To.Label, Props: jsonProps(input.To.Props)}
	id, err := s.repo.LinkOrCreate(ctx, from, to, input.Label, jsonProps(input.Props))
	if err != nil {
		return nil, IDOutput{}, fmt.Errorf("link: %w", err)
	}
	return nil, IDOutput{ID: graph.ToString(id)}, nil
}

// Traverse follows one hop in a direction, or 1..depth outgoing hops.
func (s *GraphService) Traverse(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input TraverseInput,
) (*mcp.CallToolResult, TraverseOutput, error) {
	var (
		found []graph.Props
		err   error
	)
	if input.Depth > 0 {
		found, err = s.repo.TraverseVerticesWithDepth(ctx, input.ID, input.EdgeLabel, input.Depth)
	} else {
		dir, perr := graph.ParseDirection(input.Direction)
		if perr != nil {
			return nil, TraverseOutput{}, perr
		}
		found, err = s.repo.TraverseVertices(ctx, input.ID, input.EdgeLabel, dir)
	}
	if err != nil {
		return nil, TraverseOutput{}, fmt.Errorf("traverse: %w", err)
	}
	return nil, TraverseOutput{Vertices: vertices(found)}, nil
}

// FindPath enumerates the simple outgoing paths between two vertices.
func (s *GraphService) FindPath(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input FindPathInput,
) (*mcp.CallToolResult, FindPathOutput, error) {
	depth := input.MaxDepth
	if depth <= 0 {
		depth = defaultMaxDepth
	}
	paths, err := s.repo.GetPath(ctx, input.From, input.To, input.EdgeLabel, depth)
	if err != nil {
		return nil, FindPathOutput{}, fmt.Errorf("find path: %w", err)
	}
	if paths == nil {
		paths = []graph.Path{}
	}
	return nil, FindPathOutput{Paths: paths}, nil
}

// DeleteVertex removes a vertex and its edges.
func (s *GraphService) DeleteVertex(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input DeleteVertexInput,
) (*mcp.CallToolResult, DeleteVertexOutput, error) {
	ok, err := s.repo.Exists(ctx, input.ID)
	if err != nil {
		return nil, DeleteVertexOutput{}, fmt.Errorf("delete vertex: %w", err)
	}
	if !ok {
		return nil, DeleteVertexOutput{}, nil
	}
	if err := s.repo.Delete(ctx, input.ID); err != nil {
		return nil, DeleteVertexOutput{}, fmt.Errorf("delete vertex: %w", err)
	}
	s.logger.Info("vertex deleted via MCP", zap.String("id", input.ID))
	return nil, DeleteVertexOutput{Deleted: true}, nil
}

// ---------- helpers ----------

func vertex(m graph.Props) Vertex {
	return Vertex{ID: graph.ToString(m.ID()), Label: m.Label(), Props: m.WithoutReserved()}
}

func vertices(ms []graph.Props) []Vertex {
	out := make([]Vertex, 0, len(ms))
	for _, m := range ms {
		out = append(out, vertex(m))
	}
	return out
}

// jsonProps turns decoded JSON numbers that are whole back into integers, so
// an age of 30 is stored as 30 and not 30.0.
func jsonProps(in map[string]any) graph.Props {
	if in == nil {
		return nil
	}
	out := make(graph.Props, len(in))
	for k, v := range in {
		if f, ok := v.(float64); ok && f == math.Trunc(f) && math.Abs(f) < 1<<53 {
			out[k] = int64(f)
			continue
		}
		out[k] = v
	}
	return out
}

func window(ms []graph.Props, limit, offset int) []graph.Props {
	if offset >= len(ms) {
		return []graph.Props{}
	}
	if offset > 0 {
		ms = ms[offset:]
	}
	if limit > 0 && limit < len(ms) {
		ms = ms[:limit]
	}
	return ms
}

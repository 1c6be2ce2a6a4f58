package server

import (
	"context"

	"github.com/abramin/proftree/internal/store"
)

// TreeFilter specifies filters for subtree expansion.
type TreeFilter struct {
	MaxDepth   int     `json:"maxDepth"`
	MinPercent float64 `json:"minPercent"` // Children below this share of total are dropped
}

// DefaultTreeFilter returns sensible defaults for subtree expansion.
func DefaultTreeFilter() TreeFilter {
	return TreeFilter{
		MaxDepth:   8,
		MinPercent: 0,
	}
}

// TreeNode represents a function in the tree response.
type TreeNode struct {
	ID            store.FunctionID `json:"id"`
	Name          string           `json:"name"`
	FullSignature string           `json:"full_signature"`
	TotalTime     float64          `json:"total_time"`
	SelfTime      float64          `json:"self_time"`
	Percentage    float64          `json:"percentage"`
	Expanded      bool             `json:"expanded"`
	Depth         int              `json:"depth"`
}

// TreeEdge represents a caller to callee edge in the tree response.
type TreeEdge struct {
	SourceID store.FunctionID `json:"source_id"`
	TargetID store.FunctionID `json:"target_id"`
}

// TreeResponse is the response format for the tree endpoint.
type TreeResponse struct {
	Nodes    []TreeNode       `json:"nodes"`
	Edges    []TreeEdge       `json:"edges"`
	RootID   store.FunctionID `json:"root_id"`
	MaxDepth int              `json:"max_depth"`
	Filtered int              `json:"filtered_count"`
}

// TreeBuilder expands a function's subtree through the children cache.
type TreeBuilder struct {
	store    *store.Store
	filter   TreeFilter
	nodes    map[store.FunctionID]*TreeNode
	order    []store.FunctionID
	edges    []TreeEdge
	visited  map[store.FunctionID]bool
	filtered int
}

// NewTreeBuilder creates a new tree builder.
func NewTreeBuilder(s *store.Store, filter TreeFilter) *TreeBuilder {
	return &TreeBuilder{
		store:   s,
		filter:  filter,
		nodes:   make(map[store.FunctionID]*TreeNode),
		edges:   []TreeEdge{},
		visited: make(map[store.FunctionID]bool),
	}
}

// BuildFromRoot builds the subtree below rootID, depth levels deep.
// Nodes are returned in depth-first, heaviest-child-first order.
func (tb *TreeBuilder) BuildFromRoot(ctx context.Context, rootID store.FunctionID, depth int) (*TreeResponse, error) {
	// Clamp depth to maxDepth
	if tb.filter.MaxDepth > 0 && depth > tb.filter.MaxDepth {
		depth = tb.filter.MaxDepth
	}

	root, err := tb.store.GetFunction(ctx, rootID)
	if err != nil {
		return nil, err
	}
	tb.addNode(TreeNode{
		ID:            root.ID,
		Name:          root.ShortName,
		FullSignature: root.FullSignature,
		TotalTime:     root.TotalTime,
		SelfTime:      root.SelfTime,
		Percentage:    root.Percentage,
	})

	if err := tb.expand(ctx, rootID, depth, 0); err != nil {
		return nil, err
	}

	return tb.buildResponse(rootID, depth), nil
}

func (tb *TreeBuilder) addNode(n TreeNode) {
	if _, exists := tb.nodes[n.ID]; exists {
		return
	}
	tb.nodes[n.ID] = &n
	tb.order = append(tb.order, n.ID)
}

// expand recursively walks the cached children of id.
// Recursive profiles can revisit a function; each is expanded once.
func (tb *TreeBuilder) expand(ctx context.Context, id store.FunctionID, maxDepth, currentDepth int) error {
	if currentDepth >= maxDepth {
		return nil
	}
	if tb.visited[id] {
		return nil
	}
	tb.visited[id] = true

	children, err := tb.store.GetChildren(ctx, id)
	if err != nil {
		return err
	}

	for _, c := range children {
		if c.Percentage < tb.filter.MinPercent {
			tb.filtered++
			continue
		}
		tb.edges = append(tb.edges, TreeEdge{SourceID: id, TargetID: c.ID})
		tb.addNode(TreeNode{
			ID:            c.ID,
			Name:          c.ShortName,
			FullSignature: c.FullSignature,
			TotalTime:     c.TotalTime,
			SelfTime:      c.SelfTime,
			Percentage:    c.Percentage,
			Depth:         currentDepth + 1,
		})
		if err := tb.expand(ctx, c.ID, maxDepth, currentDepth+1); err != nil {
			return err
		}
	}

	if node, ok := tb.nodes[id]; ok {
		node.Expanded = true
	}
	return nil
}

func (tb *TreeBuilder) buildResponse(rootID store.FunctionID, maxDepth int) *TreeResponse {
	nodes := make([]TreeNode, 0, len(tb.order))
	for _, id := range tb.order {
		nodes = append(nodes, *tb.nodes[id])
	}

	return &TreeResponse{
		Nodes:    nodes,
		Edges:    tb.edges,
		RootID:   rootID,
		MaxDepth: maxDepth,
		Filtered: tb.filtered,
	}
}

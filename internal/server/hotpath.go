package server

import (
	"context"

	"github.com/abramin/proftree/internal/store"
)

const maxBadgeLabels = 5

// HotPathNode is one step of the hot path.
type HotPathNode struct {
	ID         store.FunctionID `json:"id"`
	Name       string           `json:"name"`
	TotalTime  float64          `json:"total_time"`
	SelfTime   float64          `json:"self_time"`
	Percentage float64          `json:"percentage"`
	Depth      int              `json:"depth"`
	Badge      *BranchBadge     `json:"branch_badge,omitempty"`
}

// BranchBadge summarizes the siblings left off the hot path below a node.
type BranchBadge struct {
	CallCount    int                `json:"call_count"`    // Number of collapsed children ("+4 calls")
	CollapsedIDs []store.FunctionID `json:"collapsed_ids"` // For expansion
	Labels       []string           `json:"labels"`        // Brief labels for tooltip
}

// HotPathResponse is the response for the hot path endpoint.
type HotPathResponse struct {
	Nodes          []HotPathNode      `json:"nodes"`
	MainPath       []store.FunctionID `json:"main_path"`
	TotalNodes     int                `json:"total_nodes"` // Including collapsed
	CollapsedCount int                `json:"collapsed_count"`
}

// HotPathBuilder follows the heaviest child from a function downwards.
type HotPathBuilder struct {
	store *store.Store
}

// NewHotPathBuilder creates a new hot path builder.
func NewHotPathBuilder(st *store.Store) *HotPathBuilder {
	return &HotPathBuilder{store: st}
}

// Build walks from rootID, at each step taking the child with the highest
// total time, until a leaf, a repeated function or maxDepth steps.
func (hb *HotPathBuilder) Build(ctx context.Context, rootID store.FunctionID, maxDepth int) (*HotPathResponse, error) {
	if maxDepth <= 0 {
		maxDepth = 10
	}

	root, err := hb.store.GetFunction(ctx, rootID)
	if err != nil {
		return nil, err
	}

	resp := &HotPathResponse{}
	current := HotPathNode{
		ID:         root.ID,
		Name:       root.ShortName,
		TotalTime:  root.TotalTime,
		SelfTime:   root.SelfTime,
		Percentage: root.Percentage,
	}
	seen := map[store.FunctionID]bool{}

	for {
		seen[current.ID] = true
		resp.TotalNodes++

		var children []store.Child
		if current.Depth < maxDepth {
			children, err = hb.store.GetChildren(ctx, current.ID)
			if err != nil {
				return nil, err
			}
		}

		// Children arrive heaviest first.
		if len(children) > 1 {
			badge := &BranchBadge{CallCount: len(children) - 1}
			for _, c := range children[1:] {
				badge.CollapsedIDs = append(badge.CollapsedIDs, c.ID)
				if len(badge.Labels) < maxBadgeLabels {
					badge.Labels = append(badge.Labels, c.ShortName)
				}
			}
			current.Badge = badge
			resp.TotalNodes += badge.CallCount
			resp.CollapsedCount += badge.CallCount
		}

		resp.Nodes = append(resp.Nodes, current)
		resp.MainPath = append(resp.MainPath, current.ID)

		if len(children) == 0 || seen[children[0].ID] {
			break
		}
		next := children[0]
		current = HotPathNode{
			ID:         next.ID,
			Name:       next.ShortName,
			TotalTime:  next.TotalTime,
			SelfTime:   next.SelfTime,
			Percentage: next.Percentage,
			Depth:      current.Depth + 1,
		}
	}

	return resp, nil
}

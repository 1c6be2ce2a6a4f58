package store

// FunctionID is the text key of a function row.
type FunctionID string

// SortKey selects the ordering of the function list.
type SortKey string

const (
	SortTotal SortKey = "total" // total_time DESC
	SortSelf  SortKey = "self"  // self_time DESC
	SortName  SortKey = "name"  // short_name ASC
)

// ParseSortKey maps a request value onto a known key. Unknown values sort by total time.
func ParseSortKey(s string) SortKey {
	switch SortKey(s) {
	case SortSelf:
		return SortSelf
	case SortName:
		return SortName
	default:
		return SortTotal
	}
}

// Title returns the human-readable label of the sort key.
func (k SortKey) Title() string {
	switch k {
	case SortSelf:
		return "Self Time"
	case SortName:
		return "Function Name"
	default:
		return "Total Time"
	}
}

func (k SortKey) orderBy() string {
	switch k {
	case SortSelf:
		return "self_time DESC"
	case SortName:
		return "short_name ASC"
	default:
		return "total_time DESC"
	}
}

// Function is one entry of the top-down profile.
type Function struct {
	ID            FunctionID `json:"id"`
	FunctionStack string     `json:"function_stack,omitempty"` // Raw indented stack cell
	ShortName     string     `json:"short_name"`
	FullSignature string     `json:"full_signature"`
	TotalTime     float64    `json:"total_time"` // Seconds, including callees
	SelfTime      float64    `json:"self_time"`  // Seconds, excluding callees
	Percentage    float64    `json:"percentage"` // Share of overall CPU time, 0-100
	IndentLevel   int        `json:"indent_level"`
	LineNumber    int        `json:"line_number"`
}

// Relationship links a caller to a callee. A nil ParentID marks a root.
type Relationship struct {
	ParentID *FunctionID `json:"parent_id"`
	ChildID  FunctionID  `json:"child_id"`
}

// Child is a row of the children cache.
type Child struct {
	ParentID      FunctionID `json:"parent_id"`
	ID            FunctionID `json:"id"`
	ShortName     string     `json:"short_name"`
	FullSignature string     `json:"full_signature"`
	TotalTime     float64    `json:"total_time"`
	SelfTime      float64    `json:"self_time"`
	Percentage    float64    `json:"percentage"`
	IndentLevel   int        `json:"indent_level"`
}

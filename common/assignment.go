package common

// Assignment is the per-frame result of bipartite matching: QueryIndices[k]
// is the query slot paired with the object at TargetIndices[k] in the same
// frame's target group. Both slices always have equal length; pairing order
// is significant.
type Assignment struct {
	QueryIndices  []int
	TargetIndices []int
}

// Len returns the number of matched pairs.
func (a Assignment) Len() int { return len(a.QueryIndices) }

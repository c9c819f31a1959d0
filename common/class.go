package common

// TargetClass is the class assigned to a query slot during loss computation:
// either a real class index or the background sentinel for unmatched slots.
// Keeping background as an explicit variant avoids the off-by-one arithmetic
// of reserving the class count as a sentinel index.
type TargetClass int

// Background marks a query slot matched to no ground-truth object.
const Background TargetClass = -1

// RealClass wraps a ground-truth class index.
func RealClass(id int) TargetClass { return TargetClass(id) }

// IsBackground reports whether the slot is matched to no object.
func (c TargetClass) IsBackground() bool { return c == Background }

// OneHotIndex converts the class to its column in a (classes+1)-wide one-hot
// layout, with background occupying the trailing column that the focal loss
// drops. Conversion to the numeric layout happens only at the
// loss-computation boundary.
func (c TargetClass) OneHotIndex(classes int) int {
	if c.IsBackground() {
		return classes
	}
	return int(c)
}

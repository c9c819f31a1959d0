// Package lap - Rectangular minimum-cost linear assignment.
//
// Solve runs the O(n³) Hungarian algorithm in its shortest-augmenting-path
// form with row/column potentials, so the returned matching is exactly
// optimal. Rectangular matrices are handled by solving in the orientation
// with fewer rows than columns and flipping the pairs back.
package lap

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/mat"
)

// Solve computes the minimum-cost one-to-one assignment of rows to columns.
//
// Arguments:
// - costs: Rectangular cost matrix; entry (i, j) is the cost of pairing row i
//   with column j. Entries may be negative.
//
// Returns:
// - rows, cols: Equal-length index slices sorted by row index; pair k assigns
//   row rows[k] to column cols[k]. Exactly min(r, c) pairs are produced, so
//   the smaller side of the matrix is always fully assigned.
func Solve(costs mat.Matrix) (rows, cols []int) {
	r, c := costs.Dims()
	if r == 0 || c == 0 {
		return []int{}, []int{}
	}

	if r <= c {
		colOf := assign(costs.At, r, c)
		rows = make([]int, r)
		cols = make([]int, r)
		for i, j := range colOf {
			rows[i] = i
			cols[i] = j
		}
		return rows, cols
	}

	// More rows than columns: solve the transposed problem so every column
	// is matched, then flip the pairs back and restore row order.
	rowOf := assign(func(i, j int) float64 { return costs.At(j, i) }, c, r)
	type pair struct{ row, col int }
	pairs := make([]pair, c)
	for j, i := range rowOf {
		pairs[j] = pair{row: i, col: j}
	}
	sort.Slice(pairs, func(a, b int) bool { return pairs[a].row < pairs[b].row })
	rows = make([]int, c)
	cols = make([]int, c)
	for k, p := range pairs {
		rows[k] = p.row
		cols[k] = p.col
	}
	return rows, cols
}

// assign solves the n×m (n ≤ m) minimization problem exactly and returns
// the column matched to each row. Rows and columns carry dual potentials;
// each row is inserted by growing a shortest augmenting path over reduced
// costs, with 1-based indexing internally so slot 0 can act as the path
// root.
func assign(at func(i, j int) float64, n, m int) []int {
	u := make([]float64, n+1)
	v := make([]float64, m+1)
	p := make([]int, m+1)   // p[j] is the row currently matched to column j.
	way := make([]int, m+1) // way[j] is the previous column on the path to j.
	minv := make([]float64, m+1)
	used := make([]bool, m+1)

	for i := 1; i <= n; i++ {
		p[0] = i
		j0 := 0
		for j := 0; j <= m; j++ {
			minv[j] = math.Inf(1)
			used[j] = false
		}
		for {
			used[j0] = true
			i0 := p[j0]
			delta := math.Inf(1)
			j1 := 0
			for j := 1; j <= m; j++ {
				if used[j] {
					continue
				}
				cur := at(i0-1, j-1) - u[i0] - v[j]
				if cur < minv[j] {
					minv[j] = cur
					way[j] = j0
				}
				if minv[j] < delta {
					delta = minv[j]
					j1 = j
				}
			}
			for j := 0; j <= m; j++ {
				if used[j] {
					u[p[j]] += delta
					v[j] -= delta
				} else {
					minv[j] -= delta
				}
			}
			j0 = j1
			if p[j0] == 0 {
				break
			}
		}
		// Walk the augmenting path backwards, rotating matches onto it.
		for j0 != 0 {
			j1 := way[j0]
			p[j0] = p[j1]
			j0 = j1
		}
	}

	colOf := make([]int, n)
	for j := 1; j <= m; j++ {
		if p[j] > 0 {
			colOf[p[j]-1] = j - 1
		}
	}
	return colOf
}

// internal/domain/cart/reducer.go
package cart

import "strings"

// The reducer functions never mutate their input; they return a new slice.

func cloneLines(src []Line) []Line {
	out := make([]Line, len(src))
	copy(out, src)
	return out
}

func findLine(lines []Line, productID string) int {
	for i := range lines {
		if lines[i].ProductID == productID {
			return i
		}
	}
	return -1
}

// addLine increments an existing line or appends a new one
func addLine(lines []Line, p Product, quantity int) ([]Line, Line) {
	out := cloneLines(lines)
	id := strings.TrimSpace(p.ProductID)

	if idx := findLine(out, id); idx >= 0 {
		out[idx].Quantity += quantity
		return out, out[idx]
	}

	line := Line{
		ProductID: id,
		Name:      p.Name,
		Price:     p.Price,
		ImageURL:  p.ImageURL,
		Quantity:  quantity,
	}
	return append(out, line), line
}

// removeLine drops a line, reporting whether it existed
func removeLine(lines []Line, productID string) ([]Line, bool) {
	idx := findLine(lines, productID)
	if idx < 0 {
		return cloneLines(lines), false
	}
	out := make([]Line, 0, len(lines)-1)
	out = append(out, lines[:idx]...)
	return append(out, lines[idx+1:]...), true
}

// setQuantity sets an absolute quantity on an existing line
func setQuantity(lines []Line, productID string, quantity int) ([]Line, Line, bool) {
	idx := findLine(lines, productID)
	if idx < 0 {
		return cloneLines(lines), Line{}, false
	}
	out := cloneLines(lines)
	out[idx].Quantity = quantity
	return out, out[idx], true
}

// Merge folds guest lines into user lines. A product present on both sides keeps the
// user line's snapshot with the quantities added; guest-only lines are appended.
// affected lists every resulting line that differs from the user side.
func Merge(user, guest []Line) (merged []Line, affected []Line) {
	merged = cloneLines(user)
	touched := make(map[string]struct{}, len(guest))
	var order []string

	for _, g := range normalizeLines(guest) {
		if idx := findLine(merged, g.ProductID); idx >= 0 {
			merged[idx].Quantity += g.Quantity
		} else {
			merged = append(merged, g)
		}
		if _, seen := touched[g.ProductID]; !seen {
			touched[g.ProductID] = struct{}{}
			order = append(order, g.ProductID)
		}
	}

	affected = make([]Line, 0, len(order))
	for _, id := range order {
		affected = append(affected, merged[findLine(merged, id)])
	}
	return merged, affected
}

// normalizeLines drops unusable lines and folds duplicate product ids together,
// keeping first-seen order. Stored data is not trusted to hold the uniqueness invariant.
func normalizeLines(src []Line) []Line {
	out := make([]Line, 0, len(src))
	for _, l := range src {
		l.ProductID = strings.TrimSpace(l.ProductID)
		if l.ProductID == "" || l.Quantity <= 0 {
			continue
		}
		if idx := findLine(out, l.ProductID); idx >= 0 {
			out[idx].Quantity += l.Quantity
			continue
		}
		out = append(out, l)
	}
	return out
}

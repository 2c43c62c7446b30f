package cart

import "race-kart/internal/model"

// Merge folds src into dst: lines with a key already in dst add their
// quantity, the rest are appended in src order. Neither input is modified.
func Merge(dst, src []model.CartItem) []model.CartItem {
	out := make([]model.CartItem, len(dst), len(dst)+len(src))
	copy(out, dst)
	for _, item := range src {
		out = addLine(out, item)
	}
	return out
}

func addLine(items []model.CartItem, line model.CartItem) []model.CartItem {
	key := line.Key()
	for i := range items {
		if items[i].Key() == key {
			items[i].Quantity += line.Quantity
			return items
		}
	}
	return append(items, line)
}

func removeLine(items []model.CartItem, key model.LineKey) ([]model.CartItem, bool) {
	for i := range items {
		if items[i].Key() == key {
			return append(items[:i:i], items[i+1:]...), true
		}
	}
	return items, false
}

package blocks

import "sort"

// Less orders blocks by position, then creation time, then id. Ties on
// position are legal and resolved deterministically.
func Less(a, b *Block) bool {
	if a.Position != b.Position {
		return a.Position < b.Position
	}
	if !a.CreatedAt.Equal(b.CreatedAt) {
		return a.CreatedAt.Before(b.CreatedAt)
	}
	return a.ID < b.ID
}

// Sorted returns a copy of bs in display order, inactive blocks included.
func Sorted(bs []Block) []Block {
	out := make([]Block, len(bs))
	copy(out, bs)
	sort.SliceStable(out, func(i, j int) bool { return Less(&out[i], &out[j]) })
	return out
}

// Arrange returns the active blocks of bs in display order. The input is
// not modified.
func Arrange(bs []Block) []Block {
	out := make([]Block, 0, len(bs))
	for _, b := range bs {
		if b.Active {
			out = append(out, b)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return Less(&out[i], &out[j]) })
	return out
}

// Find returns the index of the block with id, or -1.
func Find(bs []Block, id string) int {
	for i := range bs {
		if bs[i].ID == id {
			return i
		}
	}
	return -1
}

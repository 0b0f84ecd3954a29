// Package preview provides the projection of an edit session onto the
// committed blocks of a page: exactly what the page will show once the
// draft is saved.
package preview

import (
	"sort"

	"github.com/hazyhaar/blockpage/pkg/blocks"
	"github.com/hazyhaar/blockpage/pkg/session"
)

// Project merges the draft into the committed blocks and returns the
// arranged list to render. It is pure: inputs are never modified and the
// same inputs always give the same output.
//
// The block being edited is always shown, even while inactive, so the
// author sees what they are working on.
func Project(committed []blocks.Block, d session.Draft) []blocks.Block {
	arranged := blocks.Arrange(committed)

	switch d.Mode {
	case session.Creating:
		pos := 0
		if n := len(arranged); n > 0 {
			pos = arranged[n-1].Position + 1
		}
		return append(arranged, blocks.Block{
			ID:       blocks.DraftID,
			Page:     d.Page,
			Type:     d.Type,
			Position: pos,
			Active:   d.Active,
			Content:  d.Content,
		})

	case session.Editing:
		if i := blocks.Find(arranged, d.TargetID); i >= 0 {
			arranged[i] = withDraft(arranged[i], d)
			return arranged
		}
		// The target is inactive: slot it in at its own position.
		i := blocks.Find(committed, d.TargetID)
		if i < 0 {
			return arranged
		}
		edited := withDraft(committed[i], d)
		at := sort.Search(len(arranged), func(j int) bool {
			return blocks.Less(&edited, &arranged[j])
		})
		arranged = append(arranged, blocks.Block{})
		copy(arranged[at+1:], arranged[at:])
		arranged[at] = edited
		return arranged
	}

	return arranged
}

func withDraft(b blocks.Block, d session.Draft) blocks.Block {
	b.Type = d.Type
	b.Content = d.Content
	b.Active = d.Active
	return b
}

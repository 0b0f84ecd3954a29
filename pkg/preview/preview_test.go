package preview

import (
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"

	"github.com/hazyhaar/blockpage/pkg/blocks"
	"github.com/hazyhaar/blockpage/pkg/session"
)

var t0 = time.Date(2024, 2, 2, 0, 0, 0, 0, time.UTC)

func text(id string, pos int, active bool, body string) blocks.Block {
	return blocks.Block{ID: id, Page: "home", Type: blocks.TypeText, Position: pos, Active: active,
		Content: &blocks.TextContent{Body: body}, CreatedAt: t0}
}

func page() []blocks.Block {
	return []blocks.Block{
		text("c", 2, true, "C"),
		text("a", 0, true, "A"),
		text("hidden", 1, false, "H"),
		text("b", 1, true, "B"),
	}
}

func ids(bs []blocks.Block) []string {
	out := make([]string, len(bs))
	for i, b := range bs {
		out[i] = b.ID
	}
	return out
}

func TestIdleIsArrange(t *testing.T) {
	committed := page()
	got := Project(committed, session.Draft{Mode: session.Idle, Page: "home"})
	if diff := cmp.Diff(blocks.Arrange(committed), got); diff != "" {
		t.Fatalf("idle projection mismatch (-want +got):\n%s", diff)
	}
}

func TestCreatingAppendsDraft(t *testing.T) {
	draft := session.Draft{Mode: session.Creating, Page: "home", Type: blocks.TypeHero,
		Content: &blocks.HeroContent{Title: "New"}, Active: true}

	got := Project(page(), draft)

	assert.Equal(t, []string{"a", "b", "c", blocks.DraftID}, ids(got))
	last := got[len(got)-1]
	assert.Equal(t, 3, last.Position)
	assert.Equal(t, blocks.TypeHero, last.Type)
	assert.Equal(t, draft.Content, last.Content)
}

func TestCreatingOnEmptyPage(t *testing.T) {
	got := Project(nil, session.Draft{Mode: session.Creating, Page: "home", Type: blocks.TypeText,
		Content: &blocks.TextContent{}})
	assert.Equal(t, []string{blocks.DraftID}, ids(got))
	assert.Equal(t, 0, got[0].Position)
}

func TestEditingReplacesInPlace(t *testing.T) {
	draft := session.Draft{Mode: session.Editing, Page: "home", TargetID: "b", Type: blocks.TypeText,
		Content: &blocks.TextContent{Body: "B2"}, Active: true}

	got := Project(page(), draft)

	assert.Equal(t, []string{"a", "b", "c"}, ids(got))
	assert.Equal(t, "B2", got[1].Content.(*blocks.TextContent).Body)
	assert.Equal(t, 1, got[1].Position)
}

func TestEditingInactiveTargetIsShown(t *testing.T) {
	draft := session.Draft{Mode: session.Editing, Page: "home", TargetID: "hidden", Type: blocks.TypeText,
		Content: &blocks.TextContent{Body: "H2"}, Active: false}

	got := Project(page(), draft)

	assert.Equal(t, []string{"a", "b", "hidden", "c"}, ids(got))
	assert.Equal(t, "H2", got[2].Content.(*blocks.TextContent).Body)
}

func TestEditingMissingTarget(t *testing.T) {
	got := Project(page(), session.Draft{Mode: session.Editing, TargetID: "gone", Type: blocks.TypeText,
		Content: &blocks.TextContent{}})
	assert.Equal(t, []string{"a", "b", "c"}, ids(got))
}

func TestProjectDoesNotMutateInputs(t *testing.T) {
	committed := page()
	before := page()
	draft := session.Draft{Mode: session.Editing, Page: "home", TargetID: "a", Type: blocks.TypeText,
		Content: &blocks.TextContent{Body: "changed"}, Active: true}

	first := Project(committed, draft)
	second := Project(committed, draft)

	if diff := cmp.Diff(before, committed); diff != "" {
		t.Fatalf("committed blocks changed (-before +after):\n%s", diff)
	}
	assert.Equal(t, first, second)
}

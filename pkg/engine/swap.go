package engine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/hazyhaar/blockpage/pkg/blocks"
	"github.com/hazyhaar/blockpage/pkg/store"
)

// Swap exchanges the positions of two blocks of the same page.
//
// Stores implementing store.Swapper swap atomically. Otherwise the swap is
// two updates; when the second fails the first is reverted. Either way a
// failed swap returns a *blocks.PersistenceError with Resync set: the
// caller's view of positions may be stale and must be re-fetched.
func (e *Engine) Swap(ctx context.Context, a, b string) (err error) {
	defer e.observe("swap", time.Now(), &err)

	// The first read only names the page; positions are read under the guard.
	peek, err := e.store.Get(ctx, a)
	if err != nil {
		return e.fault("swap", a, true, err)
	}
	release, err := e.acquire(peek.Page)
	if err != nil {
		return err
	}
	defer release()

	first, err := e.store.Get(ctx, a)
	if err != nil {
		return e.fault("swap", a, true, err)
	}
	second, err := e.store.Get(ctx, b)
	if err != nil {
		return e.fault("swap", b, true, err)
	}
	if first.Page != second.Page {
		return fmt.Errorf("swap %s and %s: %w", a, b, ErrCrossPage)
	}
	return e.swap(ctx, first, second)
}

// swap runs with the page guard held.
func (e *Engine) swap(ctx context.Context, first, second *blocks.Block) error {
	if first.ID == second.ID {
		return nil
	}

	if sw, ok := e.store.(store.Swapper); ok {
		if err := sw.SwapPositions(ctx, first.ID, second.ID); err != nil {
			return e.fault("swap", first.ID, true, err)
		}
	} else if err := e.swapInTwoSteps(ctx, first, second); err != nil {
		return err
	}

	e.logger.Info("blocks swapped", "page", first.Page, "a", first.ID, "b", second.ID)
	e.notify("swap", first.Page, first.ID, second.ID)
	return nil
}

func (e *Engine) swapInTwoSteps(ctx context.Context, first, second *blocks.Block) error {
	posFirst, posSecond := first.Position, second.Position

	if _, err := e.store.Update(ctx, first.ID, blocks.Patch{Position: &posSecond}); err != nil {
		return e.fault("swap", first.ID, true, err)
	}
	if _, err := e.store.Update(ctx, second.ID, blocks.Patch{Position: &posFirst}); err != nil {
		// Revert the first half even if the request was cancelled.
		_, rerr := e.store.Update(context.WithoutCancel(ctx), first.ID, blocks.Patch{Position: &posFirst})
		if rerr != nil {
			e.logger.Error("swap rollback failed", "page", first.Page, "block", first.ID, "error", rerr)
			err = errors.Join(err, fmt.Errorf("rollback %s: %w", first.ID, rerr))
		}
		return &blocks.PersistenceError{Op: "swap", BlockID: second.ID, Resync: true, Err: err}
	}
	return nil
}

// MoveUp swaps a block with the visible block right before it. The first
// block does not move.
func (e *Engine) MoveUp(ctx context.Context, id string) error {
	return e.move(ctx, id, -1)
}

// MoveDown swaps a block with the visible block right after it. The last
// block does not move.
func (e *Engine) MoveDown(ctx context.Context, id string) error {
	return e.move(ctx, id, 1)
}

func (e *Engine) move(ctx context.Context, id string, step int) (err error) {
	op := "move_down"
	if step < 0 {
		op = "move_up"
	}
	defer e.observe(op, time.Now(), &err)

	target, err := e.store.Get(ctx, id)
	if err != nil {
		return e.fault(op, id, true, err)
	}
	release, err := e.acquire(target.Page)
	if err != nil {
		return err
	}
	defer release()

	all, err := e.store.List(ctx, target.Page)
	if err != nil {
		return e.fault(op, id, true, err)
	}

	// Active blocks move among what visitors see; hidden ones among all.
	order := blocks.Sorted(all)
	if target.Active {
		order = blocks.Arrange(all)
	}
	i := blocks.Find(order, id)
	j := i + step
	if i < 0 || j < 0 || j >= len(order) {
		return nil
	}
	if order[i].Position == order[j].Position {
		e.logger.Warn("neighbours share a position, move has no effect",
			"page", target.Page, "block", id, "position", order[i].Position)
	}
	return e.swap(ctx, &order[i], &order[j])
}

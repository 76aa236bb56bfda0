package model

import (
	"encoding/json"
	"testing"
)

// TestBoard tests container bookkeeping.
func TestBoard(t *testing.T) {
	t.Parallel()

	t.Run("keeps first-touched order", func(t *testing.T) {
		t.Parallel()

		b := NewBoard()
		b.Append("#archived-threads", "a")
		b.Declare("#active-threads")
		b.Append("#archived-threads", "b")

		containers := b.Containers()
		if len(containers) != 2 {
			t.Fatalf("expected 2 containers, got %d", len(containers))
		}
		if containers[0].Name != "#archived-threads" || containers[1].Name != "#active-threads" {
			t.Errorf("unexpected order: %q, %q", containers[0].Name, containers[1].Name)
		}
		if b.Count("#archived-threads") != 2 {
			t.Errorf("expected 2 fragments, got %d", b.Count("#archived-threads"))
		}
	})

	t.Run("count of unknown container is zero", func(t *testing.T) {
		t.Parallel()

		if NewBoard().Count("#missing") != 0 {
			t.Error("expected zero")
		}
	})

	t.Run("backfill only fills empty containers", func(t *testing.T) {
		t.Parallel()

		b := NewBoard()
		b.Append("#active-threads", "thread")

		if b.Backfill("#active-threads", "None") {
			t.Error("expected no backfill for a filled container")
		}
		if !b.Backfill("#archived-threads", "None") {
			t.Error("expected backfill for an empty container")
		}

		c, ok := b.Container("#archived-threads")
		if !ok {
			t.Fatal("expected container to exist")
		}
		if !c.Placeholder || len(c.Fragments) != 1 {
			t.Errorf("expected one placeholder fragment, got %+v", c)
		}
	})

	t.Run("containers returns copies", func(t *testing.T) {
		t.Parallel()

		b := NewBoard()
		b.Append("#active-threads", "one")
		containers := b.Containers()
		containers[0].Fragments[0] = "changed"

		c, _ := b.Container("#active-threads")
		if c.Fragments[0] != "one" {
			t.Error("board was modified through a returned copy")
		}
	})

	t.Run("survives a JSON round trip", func(t *testing.T) {
		t.Parallel()

		b := NewBoard()
		b.Append("#active-threads", "<div>x</div>")
		b.Backfill("#archived-threads", "None")

		data, err := json.Marshal(b)
		if err != nil {
			t.Fatalf("marshal failed: %v", err)
		}

		restored := NewBoard()
		if err := json.Unmarshal(data, restored); err != nil {
			t.Fatalf("unmarshal failed: %v", err)
		}

		c, ok := restored.Container("#archived-threads")
		if !ok || !c.Placeholder {
			t.Errorf("expected placeholder container after round trip, got %+v", c)
		}
		if restored.Count("#active-threads") != 1 {
			t.Errorf("expected 1 fragment, got %d", restored.Count("#active-threads"))
		}
	})
}

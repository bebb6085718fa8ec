package db

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/g960059/ttguide/internal/model"
)

func openTestStore(t *testing.T) (*Store, context.Context) {
	t.Helper()
	ctx := context.Background()
	store, err := Open(ctx, filepath.Join(t.TempDir(), "nested", "state.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() {
		_ = store.Close()
	})
	if err := ApplyMigrations(ctx, store.DB()); err != nil {
		t.Fatalf("apply migrations: %v", err)
	}
	return store, ctx
}

func TestPreferenceRoundTrip(t *testing.T) {
	store, ctx := openTestStore(t)

	if _, err := store.GetPreference(ctx, "statusbar.interval"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if err := store.SetPreference(ctx, "statusbar.interval", "10"); err != nil {
		t.Fatalf("set preference: %v", err)
	}
	if err := store.SetPreference(ctx, "statusbar.interval", "30"); err != nil {
		t.Fatalf("overwrite preference: %v", err)
	}
	v, err := store.GetPreference(ctx, "statusbar.interval")
	if err != nil {
		t.Fatalf("get preference: %v", err)
	}
	if v != "30" {
		t.Fatalf("expected overwritten value 30, got %q", v)
	}
	if err := store.SetPreference(ctx, "  ", "x"); err == nil {
		t.Fatalf("expected blank key rejection")
	}
}

func TestChannelBindingLifecycle(t *testing.T) {
	store, ctx := openTestStore(t)
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	if _, err := store.GetChannelBinding(ctx, model.ChannelMain); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	b := model.ChannelBinding{
		Channel:     model.ChannelMain,
		SessionID:   "ttguide-main-1a2b3c4d",
		DisplayName: "Tenstorrent",
		Cwd:         "/home/dev",
		CreatedAt:   now,
	}
	if err := store.UpsertChannelBinding(ctx, b); err != nil {
		t.Fatalf("upsert binding: %v", err)
	}
	b.SessionID = "ttguide-main-9f8e7d6c"
	if err := store.UpsertChannelBinding(ctx, b); err != nil {
		t.Fatalf("replace binding: %v", err)
	}
	if err := store.UpsertChannelBinding(ctx, model.ChannelBinding{Channel: model.ChannelServer, SessionID: "ttguide-server-0000", CreatedAt: now}); err != nil {
		t.Fatalf("upsert server binding: %v", err)
	}

	got, err := store.GetChannelBinding(ctx, model.ChannelMain)
	if err != nil {
		t.Fatalf("get binding: %v", err)
	}
	if got.SessionID != "ttguide-main-9f8e7d6c" || !got.CreatedAt.Equal(now) {
		t.Fatalf("unexpected binding: %+v", got)
	}

	all, err := store.ListChannelBindings(ctx)
	if err != nil {
		t.Fatalf("list bindings: %v", err)
	}
	if len(all) != 2 || all[0].Channel != model.ChannelMain || all[1].Channel != model.ChannelServer {
		t.Fatalf("unexpected bindings: %+v", all)
	}

	if err := store.DeleteChannelBinding(ctx, model.ChannelMain); err != nil {
		t.Fatalf("delete binding: %v", err)
	}
	if _, err := store.GetChannelBinding(ctx, model.ChannelMain); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound after delete, got %v", err)
	}
	if err := store.UpsertChannelBinding(ctx, model.ChannelBinding{Channel: model.ChannelMain}); err == nil {
		t.Fatalf("expected missing session_id rejection")
	}
}

func TestDispatchHistoryOrderingAndPrune(t *testing.T) {
	store, ctx := openTestStore(t)
	base := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	for i, op := range []string{"detect-hardware", "download-model", "start-vllm-server"} {
		rec := model.DispatchRecord{
			DispatchID:   op,
			Operation:    op,
			Channel:      model.ChannelMain,
			SessionID:    "s1",
			Command:      "echo " + op,
			DispatchedAt: base.Add(time.Duration(i) * time.Minute).Add(500 * time.Millisecond * time.Duration(i%2)),
		}
		if err := store.InsertDispatch(ctx, rec); err != nil {
			t.Fatalf("insert dispatch %s: %v", op, err)
		}
	}

	recent, err := store.ListDispatches(ctx, 2)
	if err != nil {
		t.Fatalf("list dispatches: %v", err)
	}
	if len(recent) != 2 || recent[0].Operation != "start-vllm-server" || recent[1].Operation != "download-model" {
		t.Fatalf("unexpected order: %+v", recent)
	}

	n, err := store.PruneDispatches(ctx, base.Add(90*time.Second))
	if err != nil {
		t.Fatalf("prune: %v", err)
	}
	if n != 2 {
		t.Fatalf("expected 2 pruned rows, got %d", n)
	}
	left, err := store.ListDispatches(ctx, 0)
	if err != nil {
		t.Fatalf("list after prune: %v", err)
	}
	if len(left) != 1 || left[0].Operation != "start-vllm-server" {
		t.Fatalf("unexpected remaining dispatches: %+v", left)
	}
}

package history_test

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"markad/internal/history"
	"markad/internal/logging"
	"markad/internal/marks"
	"markad/internal/testsupport"
)

func TestRunLifecycle(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenHistory(t, cfg)
	ctx := context.Background()

	run, err := store.Begin(ctx, "/video/show.ts", "Das Erste")
	if err != nil {
		t.Fatalf("Begin failed: %v", err)
	}
	if run.ID == "" || run.Status != history.StatusRunning {
		t.Fatalf("unexpected run: %#v", run)
	}

	ms := marks.NewStore(logging.NewNop())
	start := &marks.Mark{Type: marks.Type{Class: marks.ClassAudioChannel, Kind: marks.Start}, Position: 250, Comment: "start channel"}
	stop := &marks.Mark{Type: marks.Type{Class: marks.ClassLogo, Kind: marks.Stop}, Position: 2700}
	ms.Add(start)
	ms.Add(stop)
	if err := ms.Move(stop, 2750, marks.ClassBlack, "snap"); err != nil {
		t.Fatal(err)
	}

	run.Status = history.StatusCompleted
	run.FrameRate = 25
	run.Frames = 3000
	run.Passes = []history.PassTiming{{Name: "detect", Duration: 2 * time.Second, Marks: 2}, {Name: "overlap", Skipped: true}}
	run.Marks = history.FromMarks(ms.Marks())
	if err := store.Finish(ctx, run); err != nil {
		t.Fatalf("Finish failed: %v", err)
	}

	got, err := store.Get(ctx, run.ID[:8])
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got == nil || got.Status != history.StatusCompleted || got.Channel != "Das Erste" {
		t.Fatalf("unexpected run: %#v", got)
	}
	if len(got.Passes) != 2 || got.Passes[0].Duration != 2*time.Second || !got.Passes[1].Skipped {
		t.Fatalf("passes = %#v", got.Passes)
	}
	if len(got.Marks) != 2 {
		t.Fatalf("marks = %#v", got.Marks)
	}
	if m := got.Marks[1]; !m.Moved() || m.OldPosition != 2700 || m.OldClass != "logo" || m.Class != "black" {
		t.Fatalf("moved mark = %#v", m)
	}
	if got.Marks[0].Moved() {
		t.Fatal("unmoved mark reports a move")
	}
	if got.Duration() < 0 {
		t.Fatalf("duration %s", got.Duration())
	}
}

func TestGetMissingRun(t *testing.T) {
	store := testsupport.MustOpenHistory(t, testsupport.NewConfig(t))
	got, err := store.Get(context.Background(), "does-not-exist")
	if err != nil || got != nil {
		t.Fatalf("got %#v, %v", got, err)
	}
}

func TestListAndPrune(t *testing.T) {
	store := testsupport.MustOpenHistory(t, testsupport.NewConfig(t))
	ctx := context.Background()
	for _, rec := range []string{"/a.ts", "/b.ts", "/a.ts"} {
		run, err := store.Begin(ctx, rec, "")
		if err != nil {
			t.Fatal(err)
		}
		run.Status = history.StatusFailed
		run.ErrorMessage = "decoder exited"
		if err := store.Finish(ctx, run); err != nil {
			t.Fatal(err)
		}
	}

	all, err := store.List(ctx, "", 0)
	if err != nil || len(all) != 3 {
		t.Fatalf("list all: %d, %v", len(all), err)
	}
	if !all[0].StartedAt.After(all[2].StartedAt) && !all[0].StartedAt.Equal(all[2].StartedAt) {
		t.Fatal("runs not newest first")
	}
	onlyA, err := store.List(ctx, "/a.ts", 10)
	if err != nil || len(onlyA) != 2 {
		t.Fatalf("list /a.ts: %d, %v", len(onlyA), err)
	}

	removed, err := store.Prune(ctx, time.Now().Add(time.Hour))
	if err != nil || removed != 3 {
		t.Fatalf("pruned %d, %v", removed, err)
	}
}

func TestReopenKeepsSchema(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	first, err := history.Open(cfg.Paths.HistoryDB)
	if err != nil {
		t.Fatal(err)
	}
	first.Close()
	second, err := history.Open(cfg.Paths.HistoryDB)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	second.Close()
}

func TestOpenRejectsNewerSchema(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	db, err := sql.Open("sqlite", cfg.Paths.HistoryDB)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := db.Exec("PRAGMA user_version = 99"); err != nil {
		t.Fatal(err)
	}
	db.Close()

	if _, err := history.Open(cfg.Paths.HistoryDB); !errors.Is(err, history.ErrSchemaMismatch) {
		t.Fatalf("expected schema mismatch, got %v", err)
	}
}

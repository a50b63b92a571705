package preflight

import (
	"context"
	"net"
	"os"
	"path/filepath"
	"testing"

	"markad/internal/config"
	"markad/internal/testsupport"
)

func TestCheckDirectoryAccess_OK(t *testing.T) {
	dir := t.TempDir()
	result := CheckDirectoryAccess("test", dir)
	if !result.Passed {
		t.Fatalf("expected pass for temp dir, got: %s", result.Detail)
	}
}

func TestCheckDirectoryAccess_NotExist(t *testing.T) {
	result := CheckDirectoryAccess("test", filepath.Join(t.TempDir(), "nope"))
	if result.Passed {
		t.Fatal("expected failure for missing dir")
	}
	if result.Detail == "" {
		t.Fatal("expected non-empty detail")
	}
}

func TestCheckDirectoryAccess_NotDir(t *testing.T) {
	f := filepath.Join(t.TempDir(), "file.txt")
	if err := os.WriteFile(f, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	result := CheckDirectoryAccess("test", f)
	if result.Passed {
		t.Fatal("expected failure for file path")
	}
}

func TestCheckRecording(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "show.ts")
	if err := os.WriteFile(file, []byte("ts"), 0o644); err != nil {
		t.Fatal(err)
	}
	if r := CheckRecording(file); !r.Passed {
		t.Fatalf("recording file: %s", r.Detail)
	}
	if r := CheckRecording(dir); !r.Passed {
		t.Fatalf("recording directory: %s", r.Detail)
	}
	if r := CheckRecording(filepath.Join(dir, "missing.ts")); r.Passed {
		t.Fatal("expected failure for missing recording")
	}
}

func TestCheckListen(t *testing.T) {
	if r := CheckListen(context.Background(), "metrics", "127.0.0.1:0"); !r.Passed {
		t.Fatalf("ephemeral port: %s", r.Detail)
	}

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	defer ln.Close()
	if r := CheckListen(context.Background(), "metrics", ln.Addr().String()); r.Passed {
		t.Fatal("expected failure for a bound port")
	}
}

func TestRunAll_NilConfig(t *testing.T) {
	results := RunAll(context.Background(), nil, "")
	if results != nil {
		t.Fatal("expected nil results for nil config")
	}
}

func TestRunAll_MinimalConfig(t *testing.T) {
	cfg := config.Default()
	cfg.Paths.LogoDir = t.TempDir()
	recording := filepath.Join(t.TempDir(), "show.ts")
	testsupport.WriteRecording(t, recording, 4)

	results := RunAll(context.Background(), &cfg, recording)
	// Recording + logo directory checks
	if len(results) != 2 {
		t.Fatalf("expected 2 results, got %d", len(results))
	}
	if failed := Failed(results); len(failed) != 0 {
		t.Fatalf("unexpected failures %+v", failed)
	}
}

func TestRunAll_SkipsLogoDirWhenDisabled(t *testing.T) {
	cfg := config.Default()
	cfg.Logo.Enabled = false
	cfg.Metrics.Listen = "127.0.0.1:0"
	results := RunAll(context.Background(), &cfg, "")
	if len(results) != 1 || results[0].Name != "Metrics endpoint" {
		t.Fatalf("unexpected results %+v", results)
	}
}

func TestCheckSystemDeps(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithStubbedBinaries())
	statuses := CheckSystemDeps(context.Background(), cfg)
	// The stub prints no filter table, so the optional filter check fails.
	if len(statuses) != 3 {
		t.Fatalf("expected 3 statuses, got %+v", statuses)
	}
	if !statuses[0].Available || !statuses[1].Available {
		t.Fatalf("stubbed binaries not found: %+v", statuses)
	}
	if statuses[2].Available || !statuses[2].Optional {
		t.Fatalf("unexpected filter status %+v", statuses[2])
	}

	cfg.Passes.Refine = false
	if statuses := CheckSystemDeps(context.Background(), cfg); len(statuses) != 2 {
		t.Fatalf("filter check ran without refinement: %+v", statuses)
	}
}

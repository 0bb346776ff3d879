package config

import (
	"os"
	"path/filepath"
	"testing"
)

func writeTemp(t *testing.T, content string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "cluster.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write temp config: %v", err)
	}
	return path
}

func TestLoad_Valid(t *testing.T) {
	path := writeTemp(t, `
self_id: 1
peers:
  - id: 2
    address: "localhost:9002"
  - id: 3
    address: "localhost:9003"
heartbeat_interval: 2s
election_timeout: 500ms
storage_driver: memory
`)
	f, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if f.SelfID != 1 || len(f.Peers) != 2 {
		t.Fatalf("unexpected parse: %+v", f)
	}

	cfg, err := f.ClusterConfig()
	if err != nil {
		t.Fatalf("ClusterConfig: %v", err)
	}
	if cfg.Peers[2] != "localhost:9002" || cfg.Peers[3] != "localhost:9003" {
		t.Fatalf("unexpected peer map: %+v", cfg.Peers)
	}
}

func TestLoad_MissingSelfID(t *testing.T) {
	path := writeTemp(t, `
peers:
  - id: 2
    address: "localhost:9002"
`)
	if _, err := Load(path); err == nil {
		t.Fatal("expected error for missing self_id")
	}
}

func TestLoad_DuplicatePeerID(t *testing.T) {
	path := writeTemp(t, `
self_id: 1
peers:
  - id: 2
    address: "localhost:9002"
  - id: 2
    address: "localhost:9003"
`)
	if _, err := Load(path); err == nil {
		t.Fatal("expected error for duplicate peer id")
	}
}

func TestLoad_PeerMatchesSelf(t *testing.T) {
	path := writeTemp(t, `
self_id: 1
peers:
  - id: 1
    address: "localhost:9001"
`)
	if _, err := Load(path); err == nil {
		t.Fatal("expected error for peer id matching self_id")
	}
}

func TestLoad_FileNotFound(t *testing.T) {
	if _, err := Load("/nonexistent/cluster.yaml"); err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestPeerIDs_SortedAscending(t *testing.T) {
	path := writeTemp(t, `
self_id: 1
peers:
  - id: 5
    address: "a:1"
  - id: 2
    address: "b:2"
  - id: 3
    address: "c:3"
`)
	f, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	got := f.PeerIDs()
	want := []int{2, 3, 5}
	if len(got) != len(want) {
		t.Fatalf("got %v want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("got %v want %v", got, want)
		}
	}
}

// Package config loads the static cluster membership file every chatmesh
// node reads identically at startup: the server_id -> address map, and the
// heartbeat/election timing overrides.
package config

import (
	"fmt"
	"os"
	"sort"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/chatmesh/chatmesh/internal/cluster"
)

// Peer is one member of cluster.yaml's peers list.
type Peer struct {
	ID      int    `yaml:"id"`
	Address string `yaml:"address"`
}

// File is the on-disk shape of cluster.yaml.
type File struct {
	SelfID            int    `yaml:"self_id"`
	Peers             []Peer `yaml:"peers"`
	HeartbeatInterval string `yaml:"heartbeat_interval,omitempty"`
	ElectionTimeout   string `yaml:"election_timeout,omitempty"`
	StorageDriver     string `yaml:"storage_driver,omitempty"` // "memory" or "duckdb"
	StoragePath       string `yaml:"storage_path,omitempty"`
	ListenAddress     string `yaml:"listen_address,omitempty"`
	ClusterSecret     string `yaml:"cluster_secret,omitempty"`
}

// Load reads and parses a cluster.yaml file at path.
func Load(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}
	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}
	if err := f.validate(); err != nil {
		return nil, fmt.Errorf("config: %s: %w", path, err)
	}
	return &f, nil
}

func (f *File) validate() error {
	if f.SelfID == 0 {
		return fmt.Errorf("self_id is required and must be nonzero")
	}
	seen := make(map[int]struct{}, len(f.Peers))
	for _, p := range f.Peers {
		if p.ID == f.SelfID {
			return fmt.Errorf("peer id %d duplicates self_id", p.ID)
		}
		if p.Address == "" {
			return fmt.Errorf("peer %d: address is required", p.ID)
		}
		if _, dup := seen[p.ID]; dup {
			return fmt.Errorf("peer id %d listed more than once", p.ID)
		}
		seen[p.ID] = struct{}{}
	}
	return nil
}

// ClusterConfig builds a cluster.Config from the parsed file, parsing the
// duration overrides if present.
func (f *File) ClusterConfig() (cluster.Config, error) {
	cfg := cluster.Config{
		SelfID: f.SelfID,
		Peers:  make(map[int]string, len(f.Peers)),
	}
	for _, p := range f.Peers {
		cfg.Peers[p.ID] = p.Address
	}
	if f.HeartbeatInterval != "" {
		d, err := time.ParseDuration(f.HeartbeatInterval)
		if err != nil {
			return cluster.Config{}, fmt.Errorf("config: heartbeat_interval: %w", err)
		}
		cfg.HeartbeatInterval = d
	}
	if f.ElectionTimeout != "" {
		d, err := time.ParseDuration(f.ElectionTimeout)
		if err != nil {
			return cluster.Config{}, fmt.Errorf("config: election_timeout: %w", err)
		}
		cfg.ElectionTimeout = d
	}
	return cfg, nil
}

// PeerIDs returns every peer id in ascending order, for stable log output.
func (f *File) PeerIDs() []int {
	ids := make([]int, 0, len(f.Peers))
	for _, p := range f.Peers {
		ids = append(ids, p.ID)
	}
	sort.Ints(ids)
	return ids
}

package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/whimxiqal/journey-sub005/internal/model"
	"github.com/whimxiqal/journey-sub005/internal/trial"
)

func TestLoadEmptyPathUsesDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("defaults invalid: %v", err)
	}
	if cfg.Search.HeuristicValue() != trial.Euclidean {
		t.Fatalf("heuristic: %v", cfg.Search.Heuristic)
	}
	if len(cfg.Domains) != 2 || cfg.Cache.Backend != "memory" {
		t.Fatalf("unexpected defaults: %+v", cfg)
	}
	w, err := cfg.World()
	if err != nil {
		t.Fatalf("World: %v", err)
	}
	if got := w.Domains(); len(got) != 2 {
		t.Fatalf("domains: %v", got)
	}
}

func TestLoadFileOverridesAndPorts(t *testing.T) {
	dir := t.TempDir()
	p := filepath.Join(dir, "journey.yaml")
	doc := `
search:
  heuristic: planar
  steps_per_tick: 64
  max_duration: 250ms
cache:
  backend: redis
  redis_addr: 127.0.0.1:6379
  ttl: 1h
domains:
  - id: overworld
    height: 32
    layers:
      - {block: BEDROCK, thickness: 1}
      - {block: STONE, thickness: 3}
  - id: nether
    height: 16
ports:
  - origin: {domain: overworld, x: 3, y: 4, z: 0}
    destination: {domain: nether, x: 10, y: 1, z: 0}
    mode: Nether_Portal
    cost: 4
`
	if err := os.WriteFile(p, []byte(doc), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	cfg, err := Load(p)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Search.HeuristicValue() != trial.Planar || cfg.Search.StepsPerTick != 64 {
		t.Fatalf("search: %+v", cfg.Search)
	}
	if cfg.Search.Budget().MaxDuration != 250*time.Millisecond {
		t.Fatalf("budget: %+v", cfg.Search.Budget())
	}
	if cfg.Cache.TTL != time.Hour {
		t.Fatalf("ttl: %v", cfg.Cache.TTL)
	}
	if len(cfg.Domains) != 2 || cfg.Domains[1].Height != 16 {
		t.Fatalf("domains: %+v", cfg.Domains)
	}
	ports, err := cfg.PortList()
	if err != nil {
		t.Fatalf("PortList: %v", err)
	}
	if len(ports) != 1 || ports[0].Mode != model.ModeNetherPortal || ports[0].Destination != model.C("nether", 10, 1, 0) {
		t.Fatalf("ports: %+v", ports)
	}
}

func TestParseRejects(t *testing.T) {
	cases := map[string]struct {
		doc  string
		want string
	}{
		"unknown key": {
			doc:  "search:\n  heuristics: planar\n",
			want: "heuristics",
		},
		"bad heuristic": {
			doc:  "search:\n  heuristic: manhattan\n",
			want: "heuristic",
		},
		"duplicate domain": {
			doc:  "domains:\n  - id: a\n  - id: a\n",
			want: "duplicate domain id",
		},
		"unknown port domain": {
			doc: `
domains:
  - id: a
ports:
  - origin: {domain: a, x: 0, y: 1, z: 0}
    destination: {domain: b, x: 0, y: 1, z: 0}
    mode: teleport
`,
			want: `destination domain "b"`,
		},
		"same domain port": {
			doc: `
domains:
  - id: a
ports:
  - origin: {domain: a, x: 0, y: 1, z: 0}
    destination: {domain: a, x: 5, y: 1, z: 0}
    mode: teleport
`,
			want: "ports[0]",
		},
		"redis without addr": {
			doc:  "cache:\n  backend: redis\n",
			want: "redis_addr",
		},
		"layers too tall": {
			doc:  "domains:\n  - id: a\n    height: 2\n    layers:\n      - {block: STONE, thickness: 2}\n",
			want: "must be below height",
		},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Parse([]byte(tc.doc))
			if err == nil {
				t.Fatal("expected error")
			}
			if !strings.Contains(err.Error(), tc.want) {
				t.Fatalf("error %q does not mention %q", err, tc.want)
			}
		})
	}
}

func TestShippedConfigLoads(t *testing.T) {
	cfg, err := Load(filepath.Join("..", "..", "configs", "journey.yaml"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(cfg.Domains) != 2 || cfg.Search.MaxDuration != 5*time.Second || !cfg.Server.Journal {
		t.Fatalf("cfg: %+v", cfg)
	}
	ps, err := cfg.PortList()
	if err != nil || len(ps) != 2 {
		t.Fatalf("ports=%v err=%v", ps, err)
	}
	if _, err := cfg.World(); err != nil {
		t.Fatalf("World: %v", err)
	}
}

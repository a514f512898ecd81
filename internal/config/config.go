// Package config loads the server's yaml configuration.
package config

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/santhosh-tekuri/jsonschema/v5"
	"gopkg.in/yaml.v3"

	"github.com/whimxiqal/journey-sub005/internal/journey"
	"github.com/whimxiqal/journey-sub005/internal/model"
	"github.com/whimxiqal/journey-sub005/internal/terrain"
	"github.com/whimxiqal/journey-sub005/internal/trial"
)

//go:embed config.schema.json
var schemaJSON []byte

const schemaURL = "https://journey.local/config.schema.json"

var (
	schemaOnce sync.Once
	schema     *jsonschema.Schema
	schemaErr  error
)

func compiled() (*jsonschema.Schema, error) {
	schemaOnce.Do(func() {
		c := jsonschema.NewCompiler()
		if err := c.AddResource(schemaURL, bytes.NewReader(schemaJSON)); err != nil {
			schemaErr = err
			return
		}
		schema, schemaErr = c.Compile(schemaURL)
	})
	return schema, schemaErr
}

type Config struct {
	Server  ServerConfig   `yaml:"server"`
	Search  SearchConfig   `yaml:"search"`
	Journey JourneyConfig  `yaml:"journey"`
	Cache   CacheConfig    `yaml:"cache"`
	Index   IndexConfig    `yaml:"index"`
	Domains []DomainConfig `yaml:"domains"`
	Ports   []PortConfig   `yaml:"ports,omitempty"`
}

type ServerConfig struct {
	Addr           string `yaml:"addr"`
	DataDir        string `yaml:"data_dir"`
	TickRateHz     int    `yaml:"tick_rate_hz"`
	ObserverBuffer int    `yaml:"observer_buffer"`
	// AllowRemoteObservers opens the event stream to non-loopback clients.
	AllowRemoteObservers bool `yaml:"allow_remote_observers"`
	// Journal writes every event to hourly zstd files under DataDir.
	Journal bool `yaml:"journal"`
	// StepEvents adds per-step events to metrics, journal and observers.
	StepEvents bool `yaml:"step_events"`
}

type SearchConfig struct {
	Heuristic    string        `yaml:"heuristic"`
	StepsPerTick int           `yaml:"steps_per_tick"`
	MaxSteps     int           `yaml:"max_steps"`
	MaxDuration  time.Duration `yaml:"max_duration"`
	// CompletionDistance is the default for exact-destination goals.
	CompletionDistance float64 `yaml:"completion_distance"`
	Async              bool    `yaml:"async"`
}

type JourneyConfig struct {
	CompletionDistance float64 `yaml:"completion_distance"`
	WindowLength       float64 `yaml:"window_length"`
	Spacing            float64 `yaml:"spacing"`
	AnimatePeriodTicks int     `yaml:"animate_period_ticks"`
}

type CacheConfig struct {
	Backend      string        `yaml:"backend"`
	RedisAddr    string        `yaml:"redis_addr"`
	Prefix       string        `yaml:"prefix"`
	TTL          time.Duration `yaml:"ttl"`
	SnapshotPath string        `yaml:"snapshot_path"`
	// ArchiveKeep is how many archived snapshots to retain; 0 disables
	// archiving.
	ArchiveKeep int `yaml:"archive_keep"`
}

type IndexConfig struct {
	Path     string `yaml:"path"`
	Disabled bool   `yaml:"disabled"`
	// RemoteEndpoint, when set, also ships path records over HTTP.
	RemoteEndpoint string `yaml:"remote_endpoint"`
	RemoteToken    string `yaml:"remote_token"`
	RemoteSource   string `yaml:"remote_source"`
}

type LayerConfig struct {
	Block     string `yaml:"block"`
	Thickness int    `yaml:"thickness"`
}

type DomainConfig struct {
	ID               string        `yaml:"id"`
	Height           int           `yaml:"height"`
	Seed             int64         `yaml:"seed"`
	Layers           []LayerConfig `yaml:"layers"`
	PillarPermille   int           `yaml:"pillar_permille"`
	PillarBlock      string        `yaml:"pillar_block"`
	PillarHeight     int           `yaml:"pillar_height"`
	SpawnClearRadius int           `yaml:"spawn_clear_radius"`
}

type CellConfig struct {
	Domain string `yaml:"domain"`
	X      int64  `yaml:"x"`
	Y      int64  `yaml:"y"`
	Z      int64  `yaml:"z"`
}

func (c CellConfig) Cell() model.Cell { return model.C(model.DomainID(c.Domain), c.X, c.Y, c.Z) }

type PortConfig struct {
	Origin      CellConfig `yaml:"origin"`
	Destination CellConfig `yaml:"destination"`
	Mode        string     `yaml:"mode"`
	Cost        float64    `yaml:"cost"`
}

func Load(path string) (Config, error) {
	cfg := defaults()
	if strings.TrimSpace(path) == "" {
		cfg.Normalize()
		return cfg, nil
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	return Parse(b)
}

// Parse decodes a yaml document over the defaults, checks it against the
// embedded schema and validates the result.
func Parse(b []byte) (Config, error) {
	cfg := defaults()
	if err := validateSchema(b); err != nil {
		return cfg, fmt.Errorf("config: %w", err)
	}
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return cfg, fmt.Errorf("config: %w", err)
	}
	cfg.Normalize()
	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("config: %w", err)
	}
	return cfg, nil
}

func validateSchema(b []byte) error {
	var doc any
	if err := yaml.Unmarshal(b, &doc); err != nil {
		return err
	}
	if doc == nil {
		return nil
	}
	raw, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("schema: %w", err)
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return fmt.Errorf("schema: %w", err)
	}
	s, err := compiled()
	if err != nil {
		return fmt.Errorf("schema: %w", err)
	}
	return s.Validate(v)
}

func defaults() Config {
	return Config{
		Server: ServerConfig{Addr: ":8080", DataDir: "data", TickRateHz: 20, ObserverBuffer: 256},
		Search: SearchConfig{
			Heuristic:    "euclidean",
			StepsPerTick: 256,
			MaxSteps:     200000,
			MaxDuration:  5 * time.Second,
		},
		Journey: JourneyConfig{
			CompletionDistance: journey.DefaultCompletionDistance,
			WindowLength:       journey.DefaultWindowLength,
			Spacing:            journey.DefaultSpacing,
			AnimatePeriodTicks: 2,
		},
		Cache: CacheConfig{Backend: "memory", Prefix: "journey:leg:", SnapshotPath: "data/snapshots/latest.snap.zst", ArchiveKeep: 5},
		Index: IndexConfig{Path: "data/index/journey.sqlite"},
		Domains: []DomainConfig{
			{
				ID:     "overworld",
				Height: 64,
				Layers: []LayerConfig{{Block: "BEDROCK", Thickness: 1}, {Block: "STONE", Thickness: 3}, {Block: "DIRT", Thickness: 2}, {Block: "GRASS", Thickness: 1}},
			},
			{
				ID:     "nether",
				Height: 32,
				Layers: []LayerConfig{{Block: "BEDROCK", Thickness: 1}, {Block: "STONE", Thickness: 4}},
			},
		},
	}
}

func (c *Config) Normalize() {
	if c == nil {
		return
	}
	c.Search.Heuristic = strings.ToLower(strings.TrimSpace(c.Search.Heuristic))
	if c.Search.Heuristic == "" {
		c.Search.Heuristic = "euclidean"
	}
	if c.Search.StepsPerTick <= 0 {
		c.Search.StepsPerTick = 1
	}
	c.Cache.Backend = strings.ToLower(strings.TrimSpace(c.Cache.Backend))
	if c.Cache.Backend == "" {
		c.Cache.Backend = "memory"
	}
	for i := range c.Domains {
		c.Domains[i].ID = strings.TrimSpace(c.Domains[i].ID)
		if c.Domains[i].Height <= 0 {
			c.Domains[i].Height = 64
		}
	}
	for i := range c.Ports {
		c.Ports[i].Mode = strings.ToLower(strings.TrimSpace(c.Ports[i].Mode))
	}
}

func (c Config) Validate() error {
	c.Normalize()
	if _, err := trial.ParseHeuristic(c.Search.Heuristic); err != nil {
		return err
	}
	if c.Search.MaxSteps < 0 {
		return fmt.Errorf("search max_steps must be >= 0")
	}
	if c.Cache.Backend == "redis" && strings.TrimSpace(c.Cache.RedisAddr) == "" {
		return fmt.Errorf("cache redis_addr must be set for the redis backend")
	}
	if len(c.Domains) == 0 {
		return fmt.Errorf("domains must not be empty")
	}
	seen := map[string]bool{}
	for _, d := range c.Domains {
		if d.ID == "" {
			return fmt.Errorf("domain id must not be empty")
		}
		if seen[d.ID] {
			return fmt.Errorf("duplicate domain id: %s", d.ID)
		}
		seen[d.ID] = true
		total := 0
		for _, l := range d.Layers {
			total += l.Thickness
		}
		if total >= d.Height {
			return fmt.Errorf("domain %s layers (%d) must be below height %d", d.ID, total, d.Height)
		}
	}
	for i, p := range c.Ports {
		if !seen[p.Origin.Domain] {
			return fmt.Errorf("ports[%d] origin domain %q not found", i, p.Origin.Domain)
		}
		if !seen[p.Destination.Domain] {
			return fmt.Errorf("ports[%d] destination domain %q not found", i, p.Destination.Domain)
		}
		if _, err := p.Port(); err != nil {
			return fmt.Errorf("ports[%d]: %w", i, err)
		}
	}
	return nil
}

func (p PortConfig) Port() (model.Port, error) {
	m, err := model.ParseModeType(p.Mode)
	if err != nil {
		return model.Port{}, err
	}
	port := model.Port{Origin: p.Origin.Cell(), Destination: p.Destination.Cell(), Mode: m, Cost: p.Cost}
	return port, port.Validate()
}

// PortList converts the configured ports. Call it on a validated config.
func (c Config) PortList() ([]model.Port, error) {
	out := make([]model.Port, 0, len(c.Ports))
	for i, pc := range c.Ports {
		p, err := pc.Port()
		if err != nil {
			return nil, fmt.Errorf("ports[%d]: %w", i, err)
		}
		out = append(out, p)
	}
	return out, nil
}

func (c Config) DomainSpecs() []terrain.DomainSpec {
	out := make([]terrain.DomainSpec, 0, len(c.Domains))
	for _, d := range c.Domains {
		spec := terrain.DomainSpec{
			ID:               model.DomainID(d.ID),
			Height:           d.Height,
			Seed:             d.Seed,
			PillarPermille:   d.PillarPermille,
			PillarBlock:      d.PillarBlock,
			PillarHeight:     d.PillarHeight,
			SpawnClearRadius: d.SpawnClearRadius,
		}
		for _, l := range d.Layers {
			spec.Layers = append(spec.Layers, terrain.Layer{Block: l.Block, Thickness: l.Thickness})
		}
		out = append(out, spec)
	}
	return out
}

// World builds a chunk store with every configured domain.
func (c Config) World() (*terrain.World, error) {
	w := terrain.NewWorld(nil)
	for _, spec := range c.DomainSpecs() {
		if err := w.AddDomain(spec); err != nil {
			return nil, fmt.Errorf("domain %s: %w", spec.ID, err)
		}
	}
	return w, nil
}

func (s SearchConfig) HeuristicValue() trial.Heuristic {
	h, _ := trial.ParseHeuristic(s.Heuristic)
	return h
}

func (s SearchConfig) Budget() trial.Budget {
	return trial.Budget{MaxSteps: s.MaxSteps, MaxDuration: s.MaxDuration}
}

func (j JourneyConfig) Options() journey.Options {
	return journey.Options{
		CompletionDistance: j.CompletionDistance,
		WindowLength:       j.WindowLength,
		Spacing:            j.Spacing,
	}
}

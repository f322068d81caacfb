package uci

import (
	"fmt"
	"sort"
	"sync"
)

// EngineOptions are the knobs programmed right after the uciok handshake.
type EngineOptions struct {
	Threads    int
	HashMB     int
	SkillLevel int
	Ponder     bool
}

// DefaultEngineOptions mirrors the values cairo-board has always sent to
// a freshly spawned engine.
func DefaultEngineOptions() EngineOptions {
	return EngineOptions{Threads: 1, HashMB: 512, SkillLevel: 0, Ponder: true}
}

func validateEngineOptions(opt EngineOptions) error {
	if opt.Threads <= 0 {
		return fmt.Errorf("threads must be > 0: %d", opt.Threads)
	}
	if opt.HashMB <= 0 {
		return fmt.Errorf("hash size must be > 0: %d", opt.HashMB)
	}
	if opt.SkillLevel < 0 || opt.SkillLevel > 20 {
		return fmt.Errorf("skill level %d out of range 0-20", opt.SkillLevel)
	}
	return nil
}

func (o EngineOptions) commands() []string {
	return []string{
		fmt.Sprintf("setoption name Threads value %d\n", o.Threads),
		fmt.Sprintf("setoption name Hash value %d\n", o.HashMB),
		fmt.Sprintf("setoption name Ponder value %t\n", o.Ponder),
		fmt.Sprintf("setoption name Skill Level value %d\n", o.SkillLevel),
	}
}

// OptionValue is one extra setoption pair, typically loaded from the
// engine options YAML file.
type OptionValue struct {
	Name  string `yaml:"name"`
	Value string `yaml:"value"`
}

func (v OptionValue) command() string {
	return fmt.Sprintf("setoption name %s value %s\n", v.Name, v.Value)
}

// OptionInfo is one capability the engine announced during the handshake.
type OptionInfo struct {
	Name string
	Type string
}

// optionRegistry collects the engine's announced options so callers can
// inspect what the engine actually supports.
type optionRegistry struct {
	mu sync.Mutex
	m  map[string]OptionInfo
}

func newOptionRegistry() *optionRegistry {
	return &optionRegistry{m: make(map[string]OptionInfo)}
}

func (r *optionRegistry) put(name, typ string) {
	r.mu.Lock()
	r.m[name] = OptionInfo{Name: name, Type: typ}
	r.mu.Unlock()
}

func (r *optionRegistry) list() []OptionInfo {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]OptionInfo, 0, len(r.m))
	for _, info := range r.m {
		out = append(out, info)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

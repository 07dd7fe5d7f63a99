package casebook

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"
	"sync/atomic"

	"gopkg.in/yaml.v3"
)

var (
	ErrUnknownSubject = errors.New("unknown subject")
	ErrUnknownCase    = fmt.Errorf("case: %w", ErrUnknownSubject)
	ErrUnknownNPC     = fmt.Errorf("npc: %w", ErrUnknownSubject)
)

//go:embed cases.yaml
var defaultCases []byte

type Evidence struct {
	ID          string  `yaml:"id" json:"id"`
	Title       string  `yaml:"title" json:"title"`
	Reliability float64 `yaml:"reliability" json:"reliability"`
	Note        string  `yaml:"note,omitempty" json:"note,omitempty"`
}

type NPC struct {
	Name    string `yaml:"name"`
	Role    string `yaml:"role"`
	Persona string `yaml:"persona"`
	// Start is the entry node of the NPC's dialogue graph.
	Start string `yaml:"start"`
}

type Case struct {
	Title    string         `yaml:"title"`
	Summary  string         `yaml:"summary"`
	Timeline []string       `yaml:"timeline"`
	Evidence []Evidence     `yaml:"evidence"`
	NPCs     map[string]NPC `yaml:"npcs"`
}

// Catalog is an immutable set of case definitions.
type Catalog struct {
	Cases map[string]Case `yaml:"cases"`
}

// Parse decodes and checks a YAML catalog.
func Parse(data []byte) (*Catalog, error) {
	var c Catalog
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("casebook: parse: %w", err)
	}
	if len(c.Cases) == 0 {
		return nil, errors.New("casebook: catalog has no cases")
	}
	for id, cs := range c.Cases {
		if len(cs.NPCs) == 0 {
			return nil, fmt.Errorf("casebook: case %q has no npcs", id)
		}
		for npcID, npc := range cs.NPCs {
			if strings.TrimSpace(npc.Name) == "" {
				return nil, fmt.Errorf("casebook: npc %q in case %q has no name", npcID, id)
			}
			if strings.TrimSpace(npc.Start) == "" {
				npc.Start = "start"
				cs.NPCs[npcID] = npc
			}
		}
	}
	return &c, nil
}

func Default() *Catalog {
	c, err := Parse(defaultCases)
	if err != nil {
		panic(err)
	}
	return c
}

func LoadFile(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("casebook: read %s: %w", path, err)
	}
	return Parse(data)
}

// Lookup resolves a case and one of its NPCs.
func (c *Catalog) Lookup(caseID, npcID string) (Case, NPC, error) {
	cs, ok := c.Cases[caseID]
	if !ok {
		return Case{}, NPC{}, fmt.Errorf("%w: %s", ErrUnknownCase, caseID)
	}
	npc, ok := cs.NPCs[npcID]
	if !ok {
		return Case{}, NPC{}, fmt.Errorf("%w: %s", ErrUnknownNPC, npcID)
	}
	return cs, npc, nil
}

// IDs lists case ids with their npc ids, sorted.
func (c *Catalog) IDs() map[string][]string {
	out := make(map[string][]string, len(c.Cases))
	for id, cs := range c.Cases {
		npcs := make([]string, 0, len(cs.NPCs))
		for npcID := range cs.NPCs {
			npcs = append(npcs, npcID)
		}
		sort.Strings(npcs)
		out[id] = npcs
	}
	return out
}

// Book holds the current catalog; Swap replaces it atomically on reload.
type Book struct {
	cur atomic.Pointer[Catalog]
}

func NewBook(c *Catalog) *Book {
	b := &Book{}
	b.cur.Store(c)
	return b
}

func (b *Book) Catalog() *Catalog {
	return b.cur.Load()
}

func (b *Book) Swap(c *Catalog) {
	b.cur.Store(c)
}

package cache

import (
	"regexp"
	"sort"
	"strings"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/Vovarama1992/npc-dialogue/internal/reply"
)

const DefaultCapacity = 200

// Replies is a fixed-capacity LRU of validated replies keyed by fingerprint.
// Entries never expire by time. The underlying cache serializes Get/Add under one lock.
type Replies struct {
	lru *lru.Cache[string, reply.Reply]
}

func New(capacity int) *Replies {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	c, err := lru.New[string, reply.Reply](capacity)
	if err != nil {
		// only returned for non-positive sizes
		panic(err)
	}
	return &Replies{lru: c}
}

// Get returns a copy of the cached reply and marks it most recently used.
func (c *Replies) Get(fingerprint string) (reply.Reply, bool) {
	r, ok := c.lru.Get(fingerprint)
	if !ok {
		return reply.Reply{}, false
	}
	return r.Clone(), true
}

// Set inserts or overwrites the entry as most recently used, evicting the least
// recently used entry when over capacity.
func (c *Replies) Set(fingerprint string, r reply.Reply) {
	c.lru.Add(fingerprint, r.Clone())
}

func (c *Replies) Len() int {
	return c.lru.Len()
}

// Keys lists fingerprints from least to most recently used.
func (c *Replies) Keys() []string {
	return c.lru.Keys()
}

// Key is the input to Fingerprint.
type Key struct {
	CaseID string
	NPCID  string
	Node   string
	Flags  []string
	Text   string
}

var spaces = regexp.MustCompile(`\s+`)

// Fingerprint derives the cache key. Player text is trimmed, lower-cased and
// whitespace-collapsed; flags are sorted so their order does not matter.
func Fingerprint(k Key) string {
	flags := append([]string{}, k.Flags...)
	sort.Strings(flags)
	q := spaces.ReplaceAllString(strings.ToLower(strings.TrimSpace(k.Text)), " ")
	return strings.Join([]string{k.CaseID, k.NPCID, k.Node, strings.Join(flags, ","), q}, "|")
}

package interpreter

import (
	"container/list"
	"sync"

	"github.com/zapfy/botflow/pkg/graph"
)

// maxCachedGraphs caps how many compiled flow versions a long-lived
// worker keeps in memory. Evicted versions are recompiled on demand.
const maxCachedGraphs = 256

// graphCache is a small LRU over compiled graphs, keyed by
// "flowID@version". Safe for concurrent use.
type graphCache struct {
	mu      sync.Mutex
	max     int
	order   *list.List
	entries map[string]*list.Element
}

type graphEntry struct {
	key   string
	graph *graph.Graph
}

func newGraphCache(max int) *graphCache {
	return &graphCache{
		max:     max,
		order:   list.New(),
		entries: make(map[string]*list.Element),
	}
}

func (c *graphCache) get(key string) (*graph.Graph, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	element, ok := c.entries[key]
	if !ok {
		return nil, false
	}

	c.order.MoveToFront(element)

	return element.Value.(*graphEntry).graph, true
}

func (c *graphCache) put(key string, g *graph.Graph) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if element, ok := c.entries[key]; ok {
		element.Value.(*graphEntry).graph = g
		c.order.MoveToFront(element)

		return
	}

	c.entries[key] = c.order.PushFront(&graphEntry{key: key, graph: g})

	for c.order.Len() > c.max {
		oldest := c.order.Back()
		c.order.Remove(oldest)
		delete(c.entries, oldest.Value.(*graphEntry).key)
	}
}

func (c *graphCache) len() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.order.Len()
}

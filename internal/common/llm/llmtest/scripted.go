// Package llmtest provides scripted llm.Gateway implementations for tests.
package llmtest

import (
	"context"
	"strings"
	"sync"
)

// Gateway answers prompts from a script. A rule whose marker appears in the
// prompt wins; otherwise queued responses are returned in order, and Default
// once the queue is empty. Every prompt is recorded.
type Gateway struct {
	Default string

	mu      sync.Mutex
	rules   []rule
	queue   []string
	prompts []string
}

type rule struct {
	marker   string
	response string
}

// New queues responses in order.
func New(responses ...string) *Gateway {
	return &Gateway{queue: responses}
}

// On answers any prompt containing marker with response. Rules are checked
// in the order they were added.
func (g *Gateway) On(marker, response string) *Gateway {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.rules = append(g.rules, rule{marker: marker, response: response})
	return g
}

func (g *Gateway) Generate(ctx context.Context, prompt string) string {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.prompts = append(g.prompts, prompt)

	for _, r := range g.rules {
		if strings.Contains(prompt, r.marker) {
			return r.response
		}
	}
	if len(g.queue) > 0 {
		next := g.queue[0]
		g.queue = g.queue[1:]
		return next
	}
	return g.Default
}

// Prompts returns the prompts received so far.
func (g *Gateway) Prompts() []string {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]string(nil), g.prompts...)
}

// Calls is the number of prompts received.
func (g *Gateway) Calls() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.prompts)
}

// CallsContaining counts prompts that contain marker.
func (g *Gateway) CallsContaining(marker string) int {
	g.mu.Lock()
	defer g.mu.Unlock()
	n := 0
	for _, p := range g.prompts {
		if strings.Contains(p, marker) {
			n++
		}
	}
	return n
}

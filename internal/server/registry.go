// Package server owns the process-wide graph registry and ServerState
// (spec §3 "Server state"): a graph-id -> *graph.Graph map, created on
// first open and cleared on server stop.
package server

import (
	"context"
	"sync"

	"github.com/kittclouds/graphcore/internal/apperr"
	"github.com/kittclouds/graphcore/internal/graph"
	"github.com/kittclouds/graphcore/internal/state"
)

// Registry owns every open graph for the process's lifetime.
type Registry struct {
	mu     sync.RWMutex
	graphs map[string]*graph.Graph
	State  *state.ServerState
}

func NewRegistry() *Registry {
	return &Registry{
		graphs: make(map[string]*graph.Graph),
		State:  state.New(),
	}
}

// CreateOrOpen opens graphID if already registered, otherwise creates it
// with opts and registers it.
func (r *Registry) CreateOrOpen(ctx context.Context, graphID string, opts graph.Options) (*graph.Graph, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if g, ok := r.graphs[graphID]; ok {
		return g, nil
	}
	g, err := graph.Open(ctx, opts)
	if err != nil {
		return nil, err
	}
	r.graphs[graphID] = g
	return g, nil
}

// Get returns a registered graph, or a graph-not-found error.
func (r *Registry) Get(graphID string) (*graph.Graph, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	g, ok := r.graphs[graphID]
	if !ok {
		return nil, apperr.GraphNotFoundf(graphID)
	}
	return g, nil
}

// Exists reports whether graphID is registered (the `db-exists` op).
func (r *Registry) Exists(graphID string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.graphs[graphID]
	return ok
}

// List returns every registered graph id (the `list-db` op).
func (r *Registry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ids := make([]string, 0, len(r.graphs))
	for id := range r.graphs {
		ids = append(ids, id)
	}
	return ids
}

// Close closes and deregisters a single graph.
func (r *Registry) Close(graphID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	g, ok := r.graphs[graphID]
	if !ok {
		return nil
	}
	delete(r.graphs, graphID)
	return g.Close()
}

// CloseAll closes every graph and clears the mirror state, as done on
// server stop.
func (r *Registry) CloseAll() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	var firstErr error
	for id, g := range r.graphs {
		if err := g.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
		delete(r.graphs, id)
	}
	r.State.Clear()
	return firstErr
}

// Package state implements the server's process-wide mirror state
// (spec §3 "Server state", REDESIGN FLAGS): a ServerState struct owned
// by the server, not a set of package-level globals. Merge semantics
// follow the RWMutex-guarded map pattern this repo's teacher used for
// its in-memory document store.
package state

import (
	"strings"
	"sync"

	"github.com/kittclouds/graphcore/internal/apperr"
)

// ServerState holds the four process-wide mutable cells plus the
// graph-id -> Graph registry's bookkeeping (the registry itself lives
// in the server package; ServerState only tracks the mirror state).
type ServerState struct {
	mu sync.RWMutex

	appState    map[string]any
	context     map[string]any
	threadAtoms map[string]any
	rtcWSURL    string
}

// New returns an empty ServerState, as created with the graph registry.
func New() *ServerState {
	return &ServerState{
		appState:    make(map[string]any),
		context:     make(map[string]any),
		threadAtoms: make(map[string]any),
	}
}

// Clear resets every cell, as done on server stop.
func (s *ServerState) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.appState = make(map[string]any)
	s.context = make(map[string]any)
	s.threadAtoms = make(map[string]any)
	s.rtcWSURL = ""
}

// MergeAppState shallow-merges patch into the app-state cell.
func (s *ServerState) MergeAppState(patch map[string]any) map[string]any {
	s.mu.Lock()
	defer s.mu.Unlock()
	mergeInto(s.appState, patch)
	return cloneMap(s.appState)
}

// SetContext shallow-merges patch into the context cell.
func (s *ServerState) SetContext(patch map[string]any) map[string]any {
	s.mu.Lock()
	defer s.mu.Unlock()
	mergeInto(s.context, patch)
	return cloneMap(s.context)
}

// UpdateThreadAtom merges a single key/value into the thread-atoms
// cell. Keys outside the "thread-atom" namespace are rejected (spec
// §4.7's dispatcher table).
func (s *ServerState) UpdateThreadAtom(key string, value any) error {
	if !strings.HasPrefix(key, "thread-atom/") {
		return apperr.Wrap(apperr.Malformed, "update-thread-atom", "key %q is not in the thread-atom namespace", key)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.threadAtoms[key] = value
	return nil
}

// ThreadAtoms returns a snapshot of every thread atom.
func (s *ServerState) ThreadAtoms() map[string]any {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return cloneMap(s.threadAtoms)
}

// AppState returns a snapshot of the app-state cell.
func (s *ServerState) AppState() map[string]any {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return cloneMap(s.appState)
}

// Context returns a snapshot of the context cell.
func (s *ServerState) Context() map[string]any {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return cloneMap(s.context)
}

// SetRTCWSURL records the sidecar's RTC signalling URL.
func (s *ServerState) SetRTCWSURL(url string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rtcWSURL = url
}

// RTCWSURL returns the sidecar's RTC signalling URL, if any.
func (s *ServerState) RTCWSURL() (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.rtcWSURL, s.rtcWSURL != ""
}

func mergeInto(dst, patch map[string]any) {
	for k, v := range patch {
		dst[k] = v
	}
}

func cloneMap(m map[string]any) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

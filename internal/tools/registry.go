// Package tools holds the explicit registry of tools agent nodes may invoke.
package tools

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"maps"
	"slices"
	"sync"
)

var (
	ErrEmptyName = errors.New("tool name is required")
	ErrNilTool   = errors.New("tool executor is required")
	ErrDuplicate = errors.New("tool already registered")
	ErrNotFound  = errors.New("tool not registered")
)

// Func executes a tool with JSON arguments and returns its textual result.
type Func func(ctx context.Context, args json.RawMessage) (string, error)

// Tool is a named executor with a human-readable description.
type Tool struct {
	Name        string
	Description string
	Run         Func
}

// Registry maps tool names to tools. It is built once at startup and passed
// to the workflow runtime.
type Registry struct {
	mu    sync.RWMutex
	tools map[string]Tool
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{tools: make(map[string]Tool)}
}

// Register adds t to the registry.
func (r *Registry) Register(t Tool) error {
	if t.Name == "" {
		return ErrEmptyName
	}
	if t.Run == nil {
		return fmt.Errorf("%w: %s", ErrNilTool, t.Name)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.tools[t.Name]; exists {
		return fmt.Errorf("%w: %s", ErrDuplicate, t.Name)
	}
	r.tools[t.Name] = t
	return nil
}

// Lookup returns the tool registered under name.
func (r *Registry) Lookup(name string) (Tool, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.tools[name]
	return t, ok
}

// Names returns the registered tool names in sorted order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return slices.Sorted(maps.Keys(r.tools))
}

// Invoke runs the named tool.
func (r *Registry) Invoke(ctx context.Context, name string, args json.RawMessage) (string, error) {
	if name == "" {
		return "", ErrEmptyName
	}
	t, ok := r.Lookup(name)
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrNotFound, name)
	}
	return t.Run(ctx, args)
}

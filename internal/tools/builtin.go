package tools

import (
	"context"
	"encoding/json"
)

const (
	Nothingizer       = "nothingizer"
	NothingizerResult = "You've used the nothingizer"
)

// Builtins returns a registry holding the tools shipped with the service.
func Builtins() *Registry {
	r := NewRegistry()
	if err := r.Register(Tool{
		Name:        Nothingizer,
		Description: "Placeholder tool for ambiguity detection. Does nothing.",
		Run: func(context.Context, json.RawMessage) (string, error) {
			return NothingizerResult, nil
		},
	}); err != nil {
		panic(err)
	}
	return r
}

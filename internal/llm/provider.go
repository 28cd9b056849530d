// internal/llm/provider.go

// Package llm wraps the hosted chat completion providers behind one interface.
package llm

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/rkhurana000/skillstrong-pro-sub000/internal/models"
)

const (
	ProviderOpenAI = "openai"
	ProviderGemini = "gemini"
)

var ErrUnknownProvider = errors.New("UNKNOWN_PROVIDER")

// Request is one completion call.
type Request struct {
	Messages    []models.Message
	Temperature float32
	MaxTokens   int
	// JSON asks the provider for a JSON object response.
	JSON bool
}

type Provider interface {
	Name() string
	Complete(ctx context.Context, req *Request) (string, error)
}

// Registry resolves providers by name.
type Registry struct {
	providers   map[string]Provider
	defaultName string
}

func NewRegistry(defaultName string, providers ...Provider) *Registry {
	r := &Registry{providers: make(map[string]Provider), defaultName: defaultName}
	for _, p := range providers {
		if p != nil {
			r.providers[p.Name()] = p
		}
	}
	return r
}

// Get returns the named provider, or the default one when name is empty.
func (r *Registry) Get(name string) (Provider, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	if name == "" {
		name = r.defaultName
	}
	p, ok := r.providers[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q (available: %s)", ErrUnknownProvider, name, strings.Join(r.Names(), ", "))
	}
	return p, nil
}

func (r *Registry) Default() string {
	return r.defaultName
}

func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.providers))
	for n := range r.providers {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// System and User are small helpers for building message lists.
func System(content string) models.Message {
	return models.Message{Role: models.RoleSystem, Content: content}
}

func User(content string) models.Message {
	return models.Message{Role: models.RoleUser, Content: content}
}

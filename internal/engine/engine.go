// Package engine loads models by identifier and keeps them for reuse.
package engine

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/samcharles93/mchat/internal/inference"
	"github.com/samcharles93/mchat/internal/tokenizer"
)

// ErrUnknownScheme is returned for identifiers no backend claims.
var ErrUnknownScheme = errors.New("unknown model scheme")

// Handle is a loaded model ready to generate.
type Handle struct {
	ID        string
	Generator inference.Generator
	// Tokenizer and Stops are set for token level backends only.
	Tokenizer tokenizer.Tokenizer
	Stops     inference.StopSet

	close func() error
}

func (h *Handle) Close() error {
	if h == nil || h.close == nil {
		return nil
	}
	return h.close()
}

// Ref is a parsed model identifier.
type Ref struct {
	ID     string
	Scheme string
	Name   string
}

// Loader turns an identifier into a loaded model.
type Loader interface {
	Load(ctx context.Context, id string) (*Handle, error)
}

// Backend opens models of one scheme.
type Backend interface {
	Open(ctx context.Context, ref Ref) (*Handle, error)
}

// Mux dispatches identifiers of the form "scheme:name" or "scheme" to the
// registered backends. Anything else goes to the default scheme whole, so
// names like "llama3:8b" survive intact.
type Mux struct {
	DefaultScheme string
	backends      map[string]Backend
}

func NewMux(defaultScheme string) *Mux {
	return &Mux{DefaultScheme: defaultScheme, backends: make(map[string]Backend)}
}

func (m *Mux) Register(scheme string, b Backend) {
	m.backends[scheme] = b
}

// Schemes lists the registered schemes in sorted order.
func (m *Mux) Schemes() []string {
	out := make([]string, 0, len(m.backends))
	for s := range m.backends {
		out = append(out, s)
	}
	slices.Sort(out)
	return out
}

// Parse splits id into scheme and backend specific name.
func (m *Mux) Parse(id string) Ref {
	id = strings.TrimSpace(id)
	if _, ok := m.backends[id]; ok {
		return Ref{ID: id, Scheme: id}
	}
	if scheme, name, ok := strings.Cut(id, ":"); ok {
		if _, known := m.backends[scheme]; known {
			return Ref{ID: id, Scheme: scheme, Name: name}
		}
	}
	return Ref{ID: id, Scheme: m.DefaultScheme, Name: id}
}

func (m *Mux) Load(ctx context.Context, id string) (*Handle, error) {
	if strings.TrimSpace(id) == "" {
		return nil, errors.New("model identifier is required")
	}
	ref := m.Parse(id)
	b, ok := m.backends[ref.Scheme]
	if !ok {
		return nil, fmt.Errorf("%w %q for model %q (known: %s)", ErrUnknownScheme, ref.Scheme, id, strings.Join(m.Schemes(), ", "))
	}
	h, err := b.Open(ctx, ref)
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", id, err)
	}
	h.ID = id
	return h, nil
}

// StopTable maps model identifiers to literal stop ids. The "default" entry
// applies to models without their own row.
type StopTable map[string][]int

func (t StopTable) For(id string) []int {
	if ids, ok := t[id]; ok {
		return ids
	}
	if ids, ok := t["default"]; ok {
		return ids
	}
	return nil
}

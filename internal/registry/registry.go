// Package registry reads the list of selectable models.
//
// The file is line oriented:
//
//	# comment
//	identifier | Display name
//
// Lines that do not fit are skipped and reported.
package registry

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"slices"
	"strings"
)

// DefaultFile is looked up in the working directory.
const DefaultFile = "mymodels.txt"

// Builtin is offered when no registry file exists.
var Builtin = Model{ID: "toy", Name: "Toy byte model"}

type Model struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Registry is an ordered, immutable model list.
type Registry struct {
	models []Model
}

// New builds a registry from models. Later duplicates replace the display
// name of the first occurrence.
func New(models ...Model) *Registry {
	r := &Registry{}
	for _, m := range models {
		r.add(m)
	}
	return r
}

func (r *Registry) add(m Model) {
	if i := r.index(m.ID); i >= 0 {
		r.models[i].Name = m.Name
		return
	}
	r.models = append(r.models, m)
}

func (r *Registry) index(id string) int {
	return slices.IndexFunc(r.models, func(m Model) bool { return m.ID == id })
}

func (r *Registry) Models() []Model { return slices.Clone(r.models) }

func (r *Registry) Len() int { return len(r.models) }

func (r *Registry) Lookup(id string) (Model, bool) {
	if i := r.index(id); i >= 0 {
		return r.models[i], true
	}
	return Model{}, false
}

// Default is the first listed model.
func (r *Registry) Default() (Model, bool) {
	if len(r.models) == 0 {
		return Model{}, false
	}
	return r.models[0], true
}

// DisplayName returns the name for id, or id itself when unlisted.
func (r *Registry) DisplayName(id string) string {
	if m, ok := r.Lookup(id); ok {
		return m.Name
	}
	return id
}

// LineError describes a skipped line.
type LineError struct {
	Line   int
	Text   string
	Reason string
}

func (e *LineError) Error() string {
	return fmt.Sprintf("line %d: %s: %q", e.Line, e.Reason, e.Text)
}

// Parse reads a registry. Malformed lines are skipped; they come back as
// *LineError values joined into the error, alongside a usable registry.
func Parse(r io.Reader) (*Registry, error) {
	reg := &Registry{}
	var errs []error
	sc := bufio.NewScanner(r)
	for n := 1; sc.Scan(); n++ {
		raw := sc.Text()
		if strings.HasPrefix(raw, "#") {
			continue
		}
		line := strings.TrimSpace(raw)
		if line == "" {
			continue
		}
		parts := strings.Split(line, "|")
		switch {
		case len(parts) < 2:
			errs = append(errs, &LineError{Line: n, Text: raw, Reason: "missing separator"})
			continue
		case len(parts) > 2:
			errs = append(errs, &LineError{Line: n, Text: raw, Reason: "too many separators"})
			continue
		}
		id, name := strings.TrimSpace(parts[0]), strings.TrimSpace(parts[1])
		if id == "" {
			errs = append(errs, &LineError{Line: n, Text: raw, Reason: "empty identifier"})
			continue
		}
		if name == "" {
			name = id
		}
		reg.add(Model{ID: id, Name: name})
	}
	if err := sc.Err(); err != nil {
		return reg, fmt.Errorf("read registry: %w", err)
	}
	return reg, errors.Join(errs...)
}

// Load parses the file at path. A missing file yields the builtin registry
// and no error.
func Load(path string) (*Registry, error) {
	f, err := os.Open(path)
	if errors.Is(err, fs.ErrNotExist) {
		return New(Builtin), nil
	}
	if err != nil {
		return nil, err
	}
	defer f.Close()
	reg, err := Parse(f)
	if reg.Len() == 0 && err == nil {
		err = fmt.Errorf("%s lists no models", path)
	}
	if reg.Len() == 0 {
		reg = New(Builtin)
	}
	return reg, err
}

// LineErrors extracts the skipped lines from an error returned by Parse or
// Load.
func LineErrors(err error) []*LineError {
	if err == nil {
		return nil
	}
	if le, ok := err.(*LineError); ok {
		return []*LineError{le}
	}
	var out []*LineError
	if joined, ok := err.(interface{ Unwrap() []error }); ok {
		for _, e := range joined.Unwrap() {
			var le *LineError
			if errors.As(e, &le) {
				out = append(out, le)
			}
		}
	}
	return out
}

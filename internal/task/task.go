// Package task reads verification tasks: a control-flow automaton and the
// properties to check on it.
package task

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"sort"

	"gopkg.in/yaml.v3"

	"github.com/gnolang/cegar/internal/cfa"
	"github.com/gnolang/cegar/internal/lang"
	tt "github.com/gnolang/cegar/internal/types"
)

// File is the YAML layout of a task.
type File struct {
	Name       string         `yaml:"name"`
	Entry      string         `yaml:"entry"`
	Edges      []EdgeSpec     `yaml:"edges"`
	Properties []PropertySpec `yaml:"properties"`
}

type EdgeSpec struct {
	From string `yaml:"from"`
	To   string `yaml:"to"`
	Op   string `yaml:"op"`
}

type PropertySpec struct {
	Name  string   `yaml:"name"`
	Error []string `yaml:"error"`
}

// Task is a loaded verification task.
type Task struct {
	Name       string
	CFA        *cfa.Graph
	Properties []tt.Property
	byName     map[string]int
}

// Load reads and builds the task at path.
func Load(path string) (*Task, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	t, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	if t.Name == "" {
		t.Name = path
	}
	return t, nil
}

// Parse builds a task from YAML.
func Parse(data []byte) (*Task, error) {
	var f File
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil {
		return nil, fmt.Errorf("decode task: %w", err)
	}
	return Build(f)
}

// Build turns a decoded file into a task.
func Build(f File) (*Task, error) {
	if f.Entry == "" {
		return nil, errors.New("task has no entry location")
	}
	g := cfa.New()
	entry := g.AddLocation(f.Entry)
	if err := g.SetEntry(entry); err != nil {
		return nil, err
	}
	for i, e := range f.Edges {
		if e.From == "" || e.To == "" {
			return nil, fmt.Errorf("edge %d: missing endpoint", i)
		}
		op, err := lang.Parse(e.Op)
		if err != nil {
			return nil, fmt.Errorf("edge %d (%s -> %s): %w", i, e.From, e.To, err)
		}
		if _, err := g.AddEdge(g.AddLocation(e.From), g.AddLocation(e.To), op); err != nil {
			return nil, fmt.Errorf("edge %d: %w", i, err)
		}
	}

	t := &Task{Name: f.Name, CFA: g, byName: make(map[string]int)}
	for _, ps := range f.Properties {
		if ps.Name == "" {
			return nil, errors.New("property without a name")
		}
		if _, dup := t.byName[ps.Name]; dup {
			return nil, fmt.Errorf("duplicate property %q", ps.Name)
		}
		if len(ps.Error) == 0 {
			return nil, fmt.Errorf("property %q has no error location", ps.Name)
		}
		p := tt.Property{Name: ps.Name}
		for _, name := range ps.Error {
			l, ok := g.Lookup(name)
			if !ok {
				return nil, fmt.Errorf("property %q: unknown location %q", ps.Name, name)
			}
			p.Errors = append(p.Errors, l)
		}
		t.byName[p.Name] = len(t.Properties)
		t.Properties = append(t.Properties, p)
	}
	return t, nil
}

// Names returns the property names in file order.
func (t *Task) Names() []string {
	out := make([]string, len(t.Properties))
	for i, p := range t.Properties {
		out[i] = p.Name
	}
	return out
}

// Property looks up a property by name.
func (t *Task) Property(name string) (tt.Property, bool) {
	i, ok := t.byName[name]
	if !ok {
		return tt.Property{}, false
	}
	return t.Properties[i], true
}

// Vars returns the sorted program variables mentioned on any edge.
func (t *Task) Vars() []string {
	seen := make(map[string]bool)
	for _, e := range t.CFA.Edges() {
		for _, v := range lang.Vars(e.Op) {
			seen[v] = true
		}
	}
	out := make([]string, 0, len(seen))
	for v := range seen {
		out = append(out, v)
	}
	sort.Strings(out)
	return out
}

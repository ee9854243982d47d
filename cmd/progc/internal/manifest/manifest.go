// Package manifest loads YAML program manifests for the progc command.
//
// A manifest lists programs by name. Stage fields name WGSL files relative to
// the manifest's directory:
//
//	priority_levels: 2
//	programs:
//	  - name: blit
//	    priority: high
//	    vertex: shaders/blit.wgsl
//	    fragment: shaders/blit.wgsl
//	    attributes:
//	      position: 0
//	      uv: 1
//	    constants:
//	      - name: samples
//	        type: i32
//	        value: 4
//	  - name: reduce
//	    priority: low
//	    compute: shaders/reduce.wgsl
//	    entry_points:
//	      compute: main
package manifest

import (
	"context"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"

	"github.com/goccy/go-yaml"
	"golang.org/x/sync/errgroup"

	"github.com/gogpu/progc"
	"github.com/gogpu/progc/driver"
)

// ErrInvalid is wrapped by every manifest validation error.
var ErrInvalid = errors.New("manifest: invalid")

// Manifest is a parsed program manifest.
type Manifest struct {
	// Dir is the directory stage paths are resolved against.
	Dir string `yaml:"-"`

	// PriorityLevels overrides the service's number of priority levels.
	PriorityLevels int `yaml:"priority_levels"`

	Programs []Program `yaml:"programs"`
}

// Program is one manifest entry.
type Program struct {
	Name        string            `yaml:"name"`
	Priority    string            `yaml:"priority"`
	Vertex      string            `yaml:"vertex"`
	Fragment    string            `yaml:"fragment"`
	Compute     string            `yaml:"compute"`
	EntryPoints map[string]string `yaml:"entry_points"`
	Attributes  map[string]uint32 `yaml:"attributes"`
	Constants   []Constant        `yaml:"constants"`
}

// Constant is a specialization constant selected by name or by id.
type Constant struct {
	Name  string  `yaml:"name"`
	ID    *uint32 `yaml:"id"`
	Type  string  `yaml:"type"`
	Value any     `yaml:"value"`
}

// Entry is a program ready to submit to a progc.Service.
type Entry struct {
	Name string
	Desc *progc.ProgramDescription

	// Files are the stage files the entry was built from.
	Files []string
}

// Load reads and parses the manifest at path.
func Load(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	m, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	m.Dir = filepath.Dir(path)
	return m, nil
}

// Parse decodes manifest YAML. Unknown fields are rejected.
func Parse(data []byte) (*Manifest, error) {
	var m Manifest
	if err := yaml.UnmarshalWithOptions(data, &m, yaml.DisallowUnknownField()); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrInvalid, yaml.FormatError(err, false, true))
	}
	if err := m.validate(); err != nil {
		return nil, err
	}
	return &m, nil
}

func (m *Manifest) validate() error {
	if len(m.Programs) == 0 {
		return fmt.Errorf("%w: no programs", ErrInvalid)
	}
	if m.PriorityLevels < 0 || m.PriorityLevels > progc.MaxPriorityLevels {
		return fmt.Errorf("%w: priority_levels %d out of range [0, %d]", ErrInvalid, m.PriorityLevels, progc.MaxPriorityLevels)
	}
	seen := make(map[string]bool, len(m.Programs))
	var errs []error
	for i, p := range m.Programs {
		if p.Name == "" {
			errs = append(errs, fmt.Errorf("%w: program #%d has no name", ErrInvalid, i))
			continue
		}
		if seen[p.Name] {
			errs = append(errs, fmt.Errorf("%w: program %q listed twice", ErrInvalid, p.Name))
		}
		seen[p.Name] = true
		if _, err := ParsePriority(p.Priority); err != nil {
			errs = append(errs, fmt.Errorf("%w: program %q: %w", ErrInvalid, p.Name, err))
		}
		for stage := range p.EntryPoints {
			if _, ok := parseStage(stage); !ok {
				errs = append(errs, fmt.Errorf("%w: program %q: unknown stage %q", ErrInvalid, p.Name, stage))
			}
		}
	}
	return errors.Join(errs...)
}

// ParsePriority parses "high", "low" or a numeric level. Empty is high.
func ParsePriority(s string) (progc.Priority, error) {
	v := strings.ToLower(strings.TrimSpace(s))
	switch v {
	case "", "high":
		return progc.PriorityHigh, nil
	case "low":
		return progc.PriorityLow, nil
	}
	n, err := strconv.ParseUint(v, 10, 8)
	if err != nil || n >= progc.MaxPriorityLevels {
		return 0, fmt.Errorf("invalid priority %q", s)
	}
	return progc.Priority(n), nil
}

func parseStage(s string) (driver.ShaderStage, bool) {
	for stage := range driver.ShaderStage(driver.StageCount) {
		if stage.String() == s {
			return stage, true
		}
	}
	return 0, false
}

// StageFiles returns the absolute or Dir-relative paths of every stage file
// named by the manifest, without duplicates.
func (m *Manifest) StageFiles() []string {
	var files []string
	for _, p := range m.Programs {
		for _, f := range p.stageFiles() {
			if f == "" {
				continue
			}
			path := m.resolve(f)
			if !slices.Contains(files, path) {
				files = append(files, path)
			}
		}
	}
	return files
}

func (p *Program) stageFiles() [driver.StageCount]string {
	return [driver.StageCount]string{
		driver.StageVertex:   p.Vertex,
		driver.StageFragment: p.Fragment,
		driver.StageCompute:  p.Compute,
	}
}

func (m *Manifest) resolve(path string) string {
	if path == "" || filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(m.Dir, path)
}

// Entries reads every stage file and builds one program description per
// manifest entry. Files are read concurrently; a file shared by several
// stages is read once.
func (m *Manifest) Entries(ctx context.Context) ([]Entry, error) {
	files := m.StageFiles()
	sources := make([]string, len(files))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(8)
	for i, path := range files {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			data, err := os.ReadFile(path)
			if err != nil {
				return err
			}
			sources[i] = string(data)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	byPath := make(map[string]string, len(files))
	for i, path := range files {
		byPath[path] = sources[i]
	}

	entries := make([]Entry, 0, len(m.Programs))
	for _, p := range m.Programs {
		e, err := m.entry(&p, byPath)
		if err != nil {
			return nil, fmt.Errorf("program %q: %w", p.Name, err)
		}
		entries = append(entries, e)
	}
	return entries, nil
}

func (m *Manifest) entry(p *Program, sources map[string]string) (Entry, error) {
	prio, err := ParsePriority(p.Priority)
	if err != nil {
		return Entry{}, err
	}
	desc := progc.NewProgramDescription().WithPriority(prio)
	var used []string
	for stage, f := range p.stageFiles() {
		if f == "" {
			continue
		}
		path := m.resolve(f)
		desc.Stage(driver.ShaderStage(stage), sources[path])
		used = append(used, path)
	}
	for name, entry := range p.EntryPoints {
		stage, _ := parseStage(name)
		desc.EntryPoint(stage, entry)
	}

	attrs := make([]driver.AttributeBinding, 0, len(p.Attributes))
	for name, loc := range p.Attributes {
		attrs = append(attrs, driver.AttributeBinding{Name: name, Location: loc})
	}
	slices.SortFunc(attrs, func(a, b driver.AttributeBinding) int {
		return int(a.Location) - int(b.Location)
	})
	for _, a := range attrs {
		desc.Attribute(a.Name, a.Location)
	}

	for _, c := range p.Constants {
		v, err := c.value()
		if err != nil {
			return Entry{}, err
		}
		if c.Name != "" {
			desc.Constant(c.Name, v)
		} else if c.ID != nil {
			desc.ConstantID(*c.ID, v)
		} else {
			return Entry{}, fmt.Errorf("%w: constant has neither name nor id", ErrInvalid)
		}
	}

	if err := desc.Validate(); err != nil {
		return Entry{}, err
	}
	return Entry{Name: p.Name, Desc: desc, Files: used}, nil
}

// value converts the YAML value to the Go type of the constant's WGSL type.
// Without a type, booleans are bool, integers i32 and other numbers f32.
func (c *Constant) value() (any, error) {
	typ := c.Type
	if typ == "" {
		switch c.Value.(type) {
		case bool:
			typ = "bool"
		case int, int64, uint64:
			typ = "i32"
		default:
			typ = "f32"
		}
	}
	switch typ {
	case "bool":
		if b, ok := c.Value.(bool); ok {
			return b, nil
		}
	case "i32":
		if n, ok := asInt(c.Value); ok && n >= math.MinInt32 && n <= math.MaxInt32 {
			return int32(n), nil
		}
	case "u32":
		if n, ok := asInt(c.Value); ok && n >= 0 && n <= math.MaxUint32 {
			return uint32(n), nil
		}
	case "f32":
		if f, ok := asFloat(c.Value); ok {
			return float32(f), nil
		}
	default:
		return nil, fmt.Errorf("%w: constant %s: unknown type %q", ErrInvalid, c.label(), typ)
	}
	return nil, fmt.Errorf("%w: constant %s: %v is not a valid %s", ErrInvalid, c.label(), c.Value, typ)
}

func (c *Constant) label() string {
	if c.Name != "" {
		return strconv.Quote(c.Name)
	}
	if c.ID != nil {
		return fmt.Sprintf("@id(%d)", *c.ID)
	}
	return "(unnamed)"
}

func asInt(v any) (int64, bool) {
	switch n := v.(type) {
	case int:
		return int64(n), true
	case int64:
		return n, true
	case uint64:
		if n > math.MaxInt64 {
			return 0, false
		}
		return int64(n), true
	}
	return 0, false
}

func asFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	}
	if i, ok := asInt(v); ok {
		return float64(i), true
	}
	return 0, false
}

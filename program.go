package progc

import (
	"errors"
	"fmt"
	"math"
	"slices"

	"github.com/gogpu/progc/driver"
)

// ProgramDescription declares a program: per-stage source texts, the
// specialization constants baked into every stage and the vertex attribute
// bindings applied at link time.
//
// A description is copied when a program is created, so it may be reused and
// modified afterwards.
//
// Example:
//
//	desc := progc.NewProgramDescription().
//	    Stage(driver.StageVertex, vsSource).
//	    Stage(driver.StageFragment, fsSource).
//	    Constant("SAMPLES", int32(4)).
//	    Attribute("position", 0).
//	    WithPriority(progc.PriorityHigh)
type ProgramDescription struct {
	// Sources holds the source text of each stage. An empty string means
	// the stage is absent.
	Sources [driver.StageCount]string

	// EntryPoints optionally names each stage's entry function.
	EntryPoints [driver.StageCount]string

	Constants  []driver.SpecializationConstant
	Attributes []driver.AttributeBinding
	Priority   Priority
}

// NewProgramDescription returns an empty description at PriorityHigh.
func NewProgramDescription() *ProgramDescription {
	return &ProgramDescription{Priority: PriorityHigh}
}

// Stage sets the source text of a stage.
func (d *ProgramDescription) Stage(stage driver.ShaderStage, source string) *ProgramDescription {
	if int(stage) < driver.StageCount {
		d.Sources[stage] = source
	}
	return d
}

// EntryPoint sets the entry function name of a stage.
func (d *ProgramDescription) EntryPoint(stage driver.ShaderStage, name string) *ProgramDescription {
	if int(stage) < driver.StageCount {
		d.EntryPoints[stage] = name
	}
	return d
}

// Constant adds a specialization constant selected by name.
func (d *ProgramDescription) Constant(name string, value any) *ProgramDescription {
	d.Constants = append(d.Constants, driver.SpecializationConstant{Name: name, Value: value})
	return d
}

// ConstantID adds a specialization constant selected by numeric id.
func (d *ProgramDescription) ConstantID(id uint32, value any) *ProgramDescription {
	d.Constants = append(d.Constants, driver.SpecializationConstant{ID: id, Value: value})
	return d
}

// Attribute binds a vertex attribute name to a location.
func (d *ProgramDescription) Attribute(name string, location uint32) *ProgramDescription {
	d.Attributes = append(d.Attributes, driver.AttributeBinding{Name: name, Location: location})
	return d
}

// WithPriority sets the scheduling priority.
func (d *ProgramDescription) WithPriority(p Priority) *ProgramDescription {
	d.Priority = p
	return d
}

// HasStage reports whether the stage has source text.
func (d *ProgramDescription) HasStage(stage driver.ShaderStage) bool {
	return int(stage) < driver.StageCount && d.Sources[stage] != ""
}

// IsCompute reports whether the description declares a compute program.
func (d *ProgramDescription) IsCompute() bool {
	return d.HasStage(driver.StageCompute)
}

// Clone returns a deep copy of the description.
func (d *ProgramDescription) Clone() *ProgramDescription {
	c := *d
	c.Constants = slices.Clone(d.Constants)
	c.Attributes = slices.Clone(d.Attributes)
	return &c
}

// Validate checks the description for structural errors. All problems are
// reported, each wrapping ErrInvalidProgram.
func (d *ProgramDescription) Validate() error {
	var errs []error
	invalid := func(format string, args ...any) {
		errs = append(errs, fmt.Errorf("%w: %s", ErrInvalidProgram, fmt.Sprintf(format, args...)))
	}

	vertex := d.HasStage(driver.StageVertex)
	fragment := d.HasStage(driver.StageFragment)
	compute := d.HasStage(driver.StageCompute)
	switch {
	case !vertex && !fragment && !compute:
		invalid("no shader stages")
	case compute && (vertex || fragment):
		invalid("compute stage cannot be combined with vertex or fragment stages")
	case fragment && !vertex:
		invalid("fragment stage requires a vertex stage")
	}

	if compute && len(d.Attributes) > 0 {
		invalid("compute programs have no vertex attributes")
	}
	names := make(map[string]struct{}, len(d.Attributes))
	locations := make(map[uint32]struct{}, len(d.Attributes))
	for _, a := range d.Attributes {
		if a.Name == "" {
			invalid("attribute at location %d has no name", a.Location)
			continue
		}
		if _, dup := names[a.Name]; dup {
			invalid("attribute %q bound twice", a.Name)
		}
		if _, dup := locations[a.Location]; dup {
			invalid("location %d bound twice", a.Location)
		}
		names[a.Name] = struct{}{}
		locations[a.Location] = struct{}{}
	}

	constNames := make(map[string]struct{}, len(d.Constants))
	constIDs := make(map[uint32]struct{}, len(d.Constants))
	for _, c := range d.Constants {
		label := c.Name
		if label == "" {
			label = fmt.Sprintf("@id(%d)", c.ID)
			if _, dup := constIDs[c.ID]; dup {
				invalid("constant %s set twice", label)
			}
			constIDs[c.ID] = struct{}{}
		} else {
			if _, dup := constNames[c.Name]; dup {
				invalid("constant %q set twice", c.Name)
			}
			constNames[c.Name] = struct{}{}
		}
		switch v := c.Value.(type) {
		case bool, int32, uint32:
		case float32:
			if math.IsNaN(float64(v)) || math.IsInf(float64(v), 0) {
				invalid("constant %s is not finite", label)
			}
		default:
			invalid("constant %s has unsupported type %T", label, c.Value)
		}
	}

	return errors.Join(errs...)
}

package progc

import (
	"errors"
	"math"
	"strings"
	"testing"

	"github.com/gogpu/progc/driver"
)

func TestProgramDescription_Builder(t *testing.T) {
	d := NewProgramDescription().
		Stage(driver.StageVertex, testVS).
		Stage(driver.StageFragment, testFS).
		EntryPoint(driver.StageVertex, "vs_main").
		Constant("SAMPLES", int32(4)).
		ConstantID(7, true).
		Attribute("position", 0).
		Attribute("uv", 1).
		WithPriority(PriorityLow)

	if !d.HasStage(driver.StageVertex) || !d.HasStage(driver.StageFragment) || d.IsCompute() {
		t.Errorf("stages = %q", d.Sources)
	}
	if d.EntryPoints[driver.StageVertex] != "vs_main" {
		t.Errorf("entry point = %q", d.EntryPoints[driver.StageVertex])
	}
	if len(d.Constants) != 2 || d.Constants[1].ID != 7 {
		t.Errorf("constants = %+v", d.Constants)
	}
	if len(d.Attributes) != 2 || d.Priority != PriorityLow {
		t.Errorf("attributes = %+v, priority = %v", d.Attributes, d.Priority)
	}
	if err := d.Validate(); err != nil {
		t.Errorf("Validate: %v", err)
	}

	// Out-of-range stages are ignored.
	d.Stage(driver.ShaderStage(9), "x")
	if d.HasStage(driver.ShaderStage(9)) {
		t.Error("HasStage true for invalid stage")
	}
}

func TestProgramDescription_Clone(t *testing.T) {
	d := graphicsDesc().Constant("A", int32(1)).Attribute("pos", 0)
	c := d.Clone()

	d.Constants[0].Value = int32(2)
	d.Attributes[0].Location = 5
	d.Stage(driver.StageVertex, "changed")

	if c.Constants[0].Value != int32(1) {
		t.Error("Clone shares constants")
	}
	if c.Attributes[0].Location != 0 {
		t.Error("Clone shares attributes")
	}
	if c.Sources[driver.StageVertex] != testVS {
		t.Error("Clone shares sources")
	}
}

func TestProgramDescription_Validate(t *testing.T) {
	compute := "@compute @workgroup_size(1) fn main() {}"
	tests := []struct {
		name    string
		desc    *ProgramDescription
		wantErr string
	}{
		{"vertex only", NewProgramDescription().Stage(driver.StageVertex, testVS), ""},
		{"compute", NewProgramDescription().Stage(driver.StageCompute, compute), ""},
		{"empty", NewProgramDescription(), "no shader stages"},
		{
			"compute with vertex",
			NewProgramDescription().Stage(driver.StageVertex, testVS).Stage(driver.StageCompute, compute),
			"cannot be combined",
		},
		{"fragment only", NewProgramDescription().Stage(driver.StageFragment, testFS), "requires a vertex stage"},
		{
			"compute attributes",
			NewProgramDescription().Stage(driver.StageCompute, compute).Attribute("pos", 0),
			"no vertex attributes",
		},
		{"duplicate attribute", graphicsDesc().Attribute("pos", 0).Attribute("pos", 1), `attribute "pos" bound twice`},
		{"duplicate location", graphicsDesc().Attribute("pos", 0).Attribute("uv", 0), "location 0 bound twice"},
		{"unnamed attribute", graphicsDesc().Attribute("", 3), "has no name"},
		{"duplicate constant", graphicsDesc().Constant("N", int32(1)).Constant("N", int32(2)), `constant "N" set twice`},
		{"duplicate constant id", graphicsDesc().ConstantID(3, true).ConstantID(3, false), "constant @id(3) set twice"},
		{"unsupported type", graphicsDesc().Constant("N", 1.5), "unsupported type float64"},
		{"not finite", graphicsDesc().Constant("F", float32(math.Inf(1))), "not finite"},
		{"all kinds", graphicsDesc().Constant("B", true).Constant("I", int32(-1)).Constant("U", uint32(1)).Constant("F", float32(0.5)), ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.desc.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("Validate() = %v, want nil", err)
				}
				return
			}
			if !errors.Is(err, ErrInvalidProgram) {
				t.Fatalf("Validate() = %v, want ErrInvalidProgram", err)
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Validate() = %q, want it to mention %q", err, tt.wantErr)
			}
		})
	}
}

func TestPriority_String(t *testing.T) {
	if PriorityHigh.String() != "high" || PriorityLow.String() != "low" || Priority(3).String() != "priority(3)" {
		t.Error("unexpected Priority names")
	}
}

package progc

import (
	"runtime"
	"testing"

	"github.com/gogpu/progc/driver"
)

func TestDefaultOptions(t *testing.T) {
	opts := defaultOptions()

	if want := max(1, runtime.GOMAXPROCS(0)/2); opts.threads != want {
		t.Errorf("default threads = %d, want %d", opts.threads, want)
	}
	if opts.levels != 2 {
		t.Errorf("default levels = %d, want 2", opts.levels)
	}
	if opts.synchronous {
		t.Error("default should not force synchronous compilation")
	}
	if opts.preprocessor != nil {
		t.Error("default preprocessor should be nil")
	}
}

func TestWithPriorityLevels(t *testing.T) {
	tests := []struct {
		in, want int
	}{
		{0, 1},
		{-3, 1},
		{3, 3},
		{MaxPriorityLevels, MaxPriorityLevels},
		{100, MaxPriorityLevels},
	}
	for _, tt := range tests {
		opts := defaultOptions()
		WithPriorityLevels(tt.in)(&opts)
		if opts.levels != tt.want {
			t.Errorf("WithPriorityLevels(%d) = %d, want %d", tt.in, opts.levels, tt.want)
		}
	}
}

func TestWithOptions(t *testing.T) {
	pre := driver.PreprocessorFunc(func(_ driver.ShaderStage, src string, _ []driver.SpecializationConstant) (string, error) {
		return src, nil
	})
	opts := defaultOptions()
	for _, opt := range []Option{WithThreadCount(6), WithSynchronous(), WithPreprocessor(pre)} {
		opt(&opts)
	}
	if opts.threads != 6 || !opts.synchronous || opts.preprocessor == nil {
		t.Errorf("options = %+v", opts)
	}
}

func TestPlatformPreprocessorUsedByDefault(t *testing.T) {
	p := &preprocessingPlatform{fakePlatform: newFakePlatform(false)}
	s, err := New(p)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer s.Close()

	if _, err := s.GetProgram(mustCreate(t, s, "x", NewProgramDescription().Stage(driver.StageVertex, testVS))); err != nil {
		t.Fatalf("GetProgram: %v", err)
	}
	if got := p.lastSources(); len(got) != 1 || got[0] != "// platform\n"+testVS {
		t.Errorf("sources = %q", got)
	}
}

type preprocessingPlatform struct {
	*fakePlatform
}

func (p *preprocessingPlatform) Preprocess(_ driver.ShaderStage, src string, _ []driver.SpecializationConstant) (string, error) {
	return "// platform\n" + src, nil
}

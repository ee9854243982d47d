package progc

import (
	"runtime"

	"github.com/gogpu/progc/driver"
)

// Option configures a Service during creation.
// Use functional options to customize Service behavior.
//
// Example:
//
//	// Default: asynchronous when the platform supports shared contexts
//	svc, err := progc.New(platform)
//
//	// Four compiler workers, three priority levels
//	svc, err := progc.New(platform,
//	    progc.WithThreadCount(4),
//	    progc.WithPriorityLevels(3))
type Option func(*serviceOptions)

// serviceOptions holds optional configuration for Service creation.
type serviceOptions struct {
	threads      int
	levels       int
	synchronous  bool
	preprocessor driver.Preprocessor
}

// defaultOptions returns the default service options.
func defaultOptions() serviceOptions {
	return serviceOptions{
		threads: max(1, runtime.GOMAXPROCS(0)/2),
		levels:  2,
	}
}

// WithThreadCount sets the number of compiler workers. Each worker owns one
// shared context. A count of zero or less disables asynchronous compilation.
func WithThreadCount(n int) Option {
	return func(o *serviceOptions) {
		o.threads = n
	}
}

// WithPriorityLevels sets the number of priority levels. Valid priorities are
// 0 through n-1. Values are clamped to [1, MaxPriorityLevels].
func WithPriorityLevels(n int) Option {
	return func(o *serviceOptions) {
		o.levels = min(max(n, 1), MaxPriorityLevels)
	}
}

// WithSynchronous forces every program to be compiled on the calling
// goroutine, even when the platform supports shared contexts.
func WithSynchronous() Option {
	return func(o *serviceOptions) {
		o.synchronous = true
	}
}

// WithPreprocessor sets the step that rewrites stage sources before
// compilation, typically to substitute specialization constants.
// When unset, the platform is used if it implements driver.Preprocessor.
//
// Example:
//
//	svc, err := progc.New(platform, progc.WithPreprocessor(
//	    driver.PreprocessorFunc(func(stage driver.ShaderStage, src string, _ []driver.SpecializationConstant) (string, error) {
//	        return header + src, nil
//	    })))
func WithPreprocessor(p driver.Preprocessor) Option {
	return func(o *serviceOptions) {
		o.preprocessor = p
	}
}

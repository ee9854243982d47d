// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package progc

import (
	"errors"
	"fmt"

	"github.com/gogpu/progc/driver"
)

// compileProgram compiles every present stage of desc on ctx and links the
// results. All stage failures are collected before giving up; stage objects
// are destroyed once linking is done. On success ctx is flushed so the
// program becomes visible to the rest of the share group.
func compileProgram(ctx driver.Context, name string, desc *ProgramDescription, pre driver.Preprocessor) (driver.Program, error) {
	shaders := make([]driver.Shader, 0, driver.StageCount)
	defer func() {
		for _, sh := range shaders {
			ctx.DestroyShader(sh)
		}
	}()

	var errs []error
	for i := range driver.StageCount {
		stage := driver.ShaderStage(i)
		if !desc.HasStage(stage) {
			continue
		}

		source := desc.Sources[stage]
		if pre != nil {
			var err error
			source, err = pre.Preprocess(stage, source, desc.Constants)
			if err != nil {
				errs = append(errs, &StageError{Stage: stage, Log: err.Error()})
				continue
			}
		}

		sh, err := ctx.CompileStage(driver.StageSource{
			Label:      name + "/" + stage.String(),
			Stage:      stage,
			Source:     source,
			EntryPoint: desc.EntryPoints[stage],
			Constants:  desc.Constants,
		})
		if err != nil {
			errs = append(errs, &StageError{Stage: stage, Log: err.Error()})
			continue
		}
		shaders = append(shaders, sh)
	}
	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}

	prog, err := ctx.Link(driver.LinkDescriptor{
		Label:      name,
		Shaders:    shaders,
		Attributes: desc.Attributes,
	})
	if err != nil {
		return nil, &LinkError{Program: name, Log: err.Error()}
	}

	ctx.Flush()
	return prog, nil
}

// compileRecover runs compileProgram, turning a panic in the native layer
// into a compile error.
func compileRecover(ctx driver.Context, name string, desc *ProgramDescription, pre driver.Preprocessor) (prog driver.Program, err error) {
	defer func() {
		if r := recover(); r != nil {
			prog = nil
			err = fmt.Errorf("%w: %q: panic: %v", ErrCompileFailed, name, r)
		}
	}()
	return compileProgram(ctx, name, desc, pre)
}

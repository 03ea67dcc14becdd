// Copyright 2025 The GoGPU Authors
// SPDX-License-Identifier: MIT

package asset

import (
	"fmt"

	"github.com/gogpu/naga"
	"github.com/gogpu/naga/ir"
)

// Validate parses the asset's WGSL payload and cross-checks the reflected
// entry points against the header: every header entry point must exist in
// the module with a matching stage, and compute entry points must agree on
// their workgroup size. A disagreement is ErrBindingMismatch, which is
// fatal for the frame loading the shader.
func Validate(file *File) error {
	module, err := reflectModule(file.Binary)
	if err != nil {
		return err
	}

	byName := make(map[string]ir.EntryPoint, len(module.EntryPoints))
	for _, ep := range module.EntryPoints {
		byName[ep.Name] = ep
	}

	for _, want := range file.Header.EntryPoints {
		got, ok := byName[want.Name]
		if !ok {
			return fmt.Errorf("%w: entry point %q not in payload", ErrBindingMismatch, want.Name)
		}
		if stageName(got.Stage) != want.Stage {
			return fmt.Errorf("%w: entry point %q is %s, header says %s",
				ErrBindingMismatch, want.Name, stageName(got.Stage), want.Stage)
		}
		if got.Stage == ir.StageCompute && want.Workgroup != got.Workgroup {
			return fmt.Errorf("%w: entry point %q workgroup %v, header says %v",
				ErrBindingMismatch, want.Name, got.Workgroup, want.Workgroup)
		}
	}
	return nil
}

// reflectModule lowers the WGSL payload to IR.
func reflectModule(wgsl []byte) (*ir.Module, error) {
	ast, err := naga.Parse(string(wgsl))
	if err != nil {
		return nil, fmt.Errorf("%w: parse: %v", ErrWrongFormat, err)
	}
	module, err := naga.Lower(ast)
	if err != nil {
		return nil, fmt.Errorf("%w: lower: %v", ErrWrongFormat, err)
	}
	return module, nil
}

func stageName(s ir.ShaderStage) string {
	switch s {
	case ir.StageVertex:
		return "vertex"
	case ir.StageFragment:
		return "fragment"
	case ir.StageCompute:
		return "compute"
	default:
		return "unknown"
	}
}

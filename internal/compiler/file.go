package compiler

import (
	"fmt"
	"os"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
)

// KernelsField is the top-level struct holding kernel definitions.
const KernelsField = "kernel"

// CompileKernels compiles every field of v's kernel struct in declaration
// order. With failFast the first error stops compilation; otherwise all
// errors are collected and the kernels that compiled are returned.
func CompileKernels(v cue.Value, failFast bool) ([]*Kernel, []error) {
	if err := v.Err(); err != nil {
		return nil, []error{formatCUEError(err)}
	}
	kernelsVal := v.LookupPath(cue.ParsePath(KernelsField))
	if !kernelsVal.Exists() {
		return nil, nil
	}

	iter, err := kernelsVal.Fields()
	if err != nil {
		return nil, []error{formatCUEError(err)}
	}

	var kernels []*Kernel
	var errs []error
	for iter.Next() {
		k, err := CompileKernel(iter.Value())
		if err != nil {
			errs = append(errs, fmt.Errorf("%s.%s: %w", KernelsField, iter.Selector(), err))
			if failFast {
				return kernels, errs
			}
			continue
		}
		kernels = append(kernels, k)
	}
	return kernels, errs
}

// CompileFile compiles the kernels of a single CUE file.
func CompileFile(path string) ([]*Kernel, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read kernel file: %w", err)
	}

	v := cuecontext.New().CompileBytes(data, cue.Filename(path))
	kernels, errs := CompileKernels(v, true)
	if len(errs) > 0 {
		return nil, errs[0]
	}
	if len(kernels) == 0 {
		return nil, fmt.Errorf("%s: no kernels found", path)
	}
	return kernels, nil
}

// Find returns the kernel with the given name, or nil.
func Find(kernels []*Kernel, name string) *Kernel {
	for _, k := range kernels {
		if k.Name == name {
			return k
		}
	}
	return nil
}

package cli

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"cuelang.org/go/cue/load"
	"cuelang.org/go/cue/token"

	"github.com/roach88/loopsmith/internal/compiler"
)

// LoadMode controls how errors are handled during kernel loading.
type LoadMode int

const (
	// LoadModeFailFast stops on the first error encountered.
	LoadModeFailFast LoadMode = iota
	// LoadModeCollectAll collects all errors before returning.
	LoadModeCollectAll
)

// LoadResult contains the kernels loaded from a directory or file.
type LoadResult struct {
	Kernels   []*compiler.Kernel
	CUEValue  cue.Value // The raw CUE value for additional processing
	FileCount int       // Number of CUE files found
}

// LoadError represents an error that occurred during kernel loading.
type LoadError struct {
	Code    string
	Message string
	Pos     token.Pos // CUE position if available
}

func (e *LoadError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s", e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(), e.Code, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// LoadKernels loads and compiles CUE kernel descriptions from a directory
// (one CUE package) or a single .cue file.
// If mode is LoadModeFailFast, returns on first error.
// If mode is LoadModeCollectAll, collects all errors.
func LoadKernels(path string, mode LoadMode) (*LoadResult, []error) {
	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		return nil, []error{&LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("kernel path not found: %s", path)}}
	}
	if err != nil {
		return nil, []error{&LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("error accessing kernel path: %v", err)}}
	}

	var value cue.Value
	var fileCount int
	if info.IsDir() {
		value, fileCount, err = buildDir(path)
	} else {
		value, err = buildFile(path)
		fileCount = 1
	}
	if err != nil {
		return nil, []error{err}
	}

	result := &LoadResult{
		CUEValue:  value,
		FileCount: fileCount,
	}

	kernels, compileErrs := compiler.CompileKernels(value, mode == LoadModeFailFast)
	result.Kernels = kernels

	var errs []error
	for _, err := range compileErrs {
		errs = append(errs, convertCompileError(err))
	}

	if len(result.Kernels) == 0 && len(errs) == 0 {
		errs = append(errs, &LoadError{Code: ErrCodeNoKernels, Message: fmt.Sprintf("no kernels found in %s", path)})
	}

	return result, errs
}

// buildDir loads the CUE package in dir.
func buildDir(dir string) (cue.Value, int, error) {
	cueFiles, err := FindCUEFiles(dir)
	if err != nil {
		return cue.Value{}, 0, &LoadError{Code: ErrCodeScanError, Message: fmt.Sprintf("error scanning directory: %v", err)}
	}
	if len(cueFiles) == 0 {
		return cue.Value{}, 0, &LoadError{Code: ErrCodeNoFiles, Message: fmt.Sprintf("no CUE files found in %s", dir)}
	}

	ctx := cuecontext.New()
	instances := load.Instances([]string{"."}, &load.Config{Dir: dir})
	if len(instances) == 0 {
		return cue.Value{}, 0, &LoadError{Code: ErrCodeLoadFailed, Message: "no CUE instances loaded"}
	}
	inst := instances[0]
	if inst.Err != nil {
		return cue.Value{}, 0, &LoadError{Code: ErrCodeLoadFailed, Message: fmt.Sprintf("loading CUE files: %v", inst.Err)}
	}

	value := ctx.BuildInstance(inst)
	if err := value.Err(); err != nil {
		return cue.Value{}, 0, &LoadError{Code: ErrCodeBuildFailed, Message: fmt.Sprintf("building CUE value: %v", err)}
	}
	return value, len(cueFiles), nil
}

// buildFile compiles a single CUE file, package clause optional.
func buildFile(path string) (cue.Value, error) {
	if filepath.Ext(path) != ".cue" {
		return cue.Value{}, &LoadError{Code: ErrCodeNoFiles, Message: fmt.Sprintf("not a CUE file: %s", path)}
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return cue.Value{}, &LoadError{Code: ErrCodeLoadFailed, Message: fmt.Sprintf("reading CUE file: %v", err)}
	}
	value := cuecontext.New().CompileBytes(data, cue.Filename(path))
	if err := value.Err(); err != nil {
		return cue.Value{}, &LoadError{Code: ErrCodeBuildFailed, Message: fmt.Sprintf("building CUE value: %v", err)}
	}
	return value, nil
}

// FindCUEFiles returns the .cue files directly in dir. Subdirectories
// are separate CUE packages and are not loaded.
func FindCUEFiles(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	var files []string
	for _, e := range entries {
		if !e.IsDir() && filepath.Ext(e.Name()) == ".cue" {
			files = append(files, filepath.Join(dir, e.Name()))
		}
	}
	return files, nil
}

// SelectKernel picks the named kernel, or the only one when name is empty.
func SelectKernel(kernels []*compiler.Kernel, name string) (*compiler.Kernel, error) {
	if name == "" {
		if len(kernels) != 1 {
			names := make([]string, len(kernels))
			for i, k := range kernels {
				names[i] = k.Name
			}
			return nil, &LoadError{
				Code:    ErrCodeNoKernels,
				Message: fmt.Sprintf("%d kernels found (%s); choose one with --kernel", len(kernels), strings.Join(names, ", ")),
			}
		}
		return kernels[0], nil
	}
	if k := compiler.Find(kernels, name); k != nil {
		return k, nil
	}
	return nil, &LoadError{Code: ErrCodeNoKernels, Message: fmt.Sprintf("kernel %q not found", name)}
}

// convertCompileError converts a compiler error to a LoadError with position info.
func convertCompileError(err error) *LoadError {
	var compileErr *compiler.CompileError
	if errors.As(err, &compileErr) {
		return &LoadError{
			Code:    MapFieldToErrorCode(compileErr.Field),
			Message: err.Error(),
			Pos:     compileErr.Pos,
		}
	}
	var loadErr *LoadError
	if errors.As(err, &loadErr) {
		return loadErr
	}
	return &LoadError{
		Code:    ErrCodeGeneric,
		Message: err.Error(),
	}
}

// Error code constants - unified across all CLI commands.
const (
	ErrCodeGeneric     = "E001" // Generic/unknown error
	ErrCodeScanError   = "E002" // Directory scan error
	ErrCodeNoFiles     = "E003" // No CUE files found
	ErrCodeLoadFailed  = "E004" // CUE load failed
	ErrCodeNotFound    = "E005" // Path not found
	ErrCodeBuildFailed = "E006" // CUE build failed
	ErrCodeWriteFailed = "E007" // File write error
	ErrCodeNoKernels   = "E008" // No kernel, or no unique kernel, to rewrite
	ErrCodeConfig      = "E009" // Rewriter configuration rejected
	ErrCodeStore       = "E010" // Run journal unavailable

	// Kernel description errors
	ErrCodeDimensions = "E101" // Bad dimensions block
	ErrCodeFunctions  = "E102" // Bad functions block
	ErrCodeNests      = "E103" // Bad nests, loops or properties
	ErrCodeStatement  = "E104" // Statement does not parse
	ErrCodeCUE        = "E105" // CUE evaluation error
)

// MapFieldToErrorCode maps a compiler error field to an error code.
// Fields are paths like "nests[0].body[2]" or "functions.u.dims".
func MapFieldToErrorCode(field string) string {
	last := field[strings.LastIndex(field, ".")+1:]
	switch {
	case strings.HasPrefix(field, "dimensions"):
		return ErrCodeDimensions
	case strings.HasPrefix(field, "functions"):
		return ErrCodeFunctions
	case field == "cue":
		return ErrCodeCUE
	case strings.HasPrefix(field, "nests") && strings.HasPrefix(last, "body["):
		return ErrCodeStatement
	case strings.HasPrefix(field, "nests"):
		return ErrCodeNests
	default:
		return ErrCodeGeneric
	}
}

package cli

import (
	"errors"
	"fmt"
	"os"

	"cuelang.org/go/cue/token"

	"github.com/roach88/seed/internal/compiler"
)

// LoadResult contains a compiled program and how many files it came from.
type LoadResult struct {
	Program   *compiler.Program
	FileCount int // Number of CUE files found
}

// LoadError represents an error that occurred during model loading.
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

// Error code constants - unified across all CLI commands.
const (
	ErrCodeGeneric       = "E001" // Generic/unknown error
	ErrCodeScanError     = "E002" // Directory scan error
	ErrCodeNoFiles       = "E003" // No CUE files found
	ErrCodeLoadFailed    = "E004" // CUE load or compile failed
	ErrCodeNotFound      = "E005" // Path not found
	ErrCodeRegister      = "E006" // Engine registration failed
	ErrCodeWriteFailed   = "E007" // File write error
	ErrCodeDatabase      = "E008" // Journal could not be opened or read
	ErrCodeCallFailed    = "E009" // Action call rejected
	ErrCodeUnknownAction = "E010" // No such model or action
)

// LoadSpecs compiles model files and directories into one program.
//
// Path problems (missing path, directory without .cue files) are reported
// before anything is compiled and leave the result nil. Compile errors are
// all collected; the result then holds the models that did compile.
func LoadSpecs(paths ...string) (*LoadResult, []error) {
	if len(paths) == 0 {
		return nil, []error{&LoadError{Code: ErrCodeNotFound, Message: "no model paths given"}}
	}

	count := 0
	for _, path := range paths {
		info, err := os.Stat(path)
		if os.IsNotExist(err) {
			return nil, []error{&LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("model path not found: %s", path)}}
		}
		if err != nil {
			return nil, []error{&LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("error accessing %s: %v", path, err)}}
		}
		if !info.IsDir() {
			count++
			continue
		}
		files, err := compiler.FindCUEFiles(path)
		if err != nil {
			return nil, []error{&LoadError{Code: ErrCodeScanError, Message: fmt.Sprintf("error scanning directory: %v", err)}}
		}
		if len(files) == 0 {
			return nil, []error{&LoadError{Code: ErrCodeNoFiles, Message: fmt.Sprintf("no CUE files found in %s", path)}}
		}
		count += len(files)
	}

	program, errs := compiler.LoadProgram(paths...)
	loadErrs := make([]error, len(errs))
	for i, err := range errs {
		loadErrs[i] = convertCompileError(err)
	}
	return &LoadResult{Program: program, FileCount: count}, loadErrs
}

// convertCompileError converts a compiler error to a LoadError with position info.
func convertCompileError(err error) *LoadError {
	var compileErr *compiler.CompileError
	if errors.As(err, &compileErr) {
		return &LoadError{
			Code:    ErrCodeLoadFailed,
			Message: fmt.Sprintf("%s: %s", compileErr.Field, compileErr.Message),
			Pos:     compileErr.Pos,
		}
	}
	return &LoadError{Code: ErrCodeLoadFailed, Message: err.Error()}
}

// lineOf extracts the line number from a CUE position.
func lineOf(pos token.Pos) int {
	if pos.IsValid() {
		return pos.Line()
	}
	return 0
}

package compiler

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"cuelang.org/go/cue/load"

	"github.com/roach88/seed/internal/ir"
)

// LoadDir loads every .cue file in dir as one CUE instance.
func LoadDir(dir string) (cue.Value, int, error) {
	info, err := os.Stat(dir)
	if err != nil {
		return cue.Value{}, 0, fmt.Errorf("model directory: %w", err)
	}
	if !info.IsDir() {
		return cue.Value{}, 0, fmt.Errorf("not a directory: %s", dir)
	}

	files, err := FindCUEFiles(dir)
	if err != nil {
		return cue.Value{}, 0, fmt.Errorf("scanning %s: %w", dir, err)
	}
	if len(files) == 0 {
		return cue.Value{}, 0, fmt.Errorf("no CUE files found in %s", dir)
	}

	instances := load.Instances([]string{"."}, &load.Config{Dir: dir})
	if len(instances) == 0 {
		return cue.Value{}, len(files), fmt.Errorf("no CUE instances loaded from %s", dir)
	}
	inst := instances[0]
	if inst.Err != nil {
		return cue.Value{}, len(files), formatCUEError(inst.Err)
	}

	value := cuecontext.New().BuildInstance(inst)
	if err := value.Err(); err != nil {
		return cue.Value{}, len(files), formatCUEError(err)
	}
	return value, len(files), nil
}

// LoadString compiles CUE source. The filename appears in positions.
func LoadString(src, filename string) (cue.Value, error) {
	value := cuecontext.New().CompileString(src, cue.Filename(filename))
	if err := value.Err(); err != nil {
		return cue.Value{}, formatCUEError(err)
	}
	return value, nil
}

// FindCUEFiles returns the sorted .cue files directly inside dir.
func FindCUEFiles(dir string) ([]string, error) {
	files, err := filepath.Glob(filepath.Join(dir, "*.cue"))
	if err != nil {
		return nil, err
	}
	sort.Strings(files)
	return files, nil
}

// LoadProgram compiles model files and directories into one program.
// Each path is compiled on its own; a model declared by two paths appears
// twice and is reported by Validate.
func LoadProgram(paths ...string) (*Program, []error) {
	p := &Program{Resources: map[string]map[string]*ir.Request{}}
	var errs []error
	for _, path := range paths {
		v, err := loadPath(path)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", path, err))
			continue
		}
		part, perrs := CompileProgram(v)
		errs = append(errs, perrs...)
		if part != nil {
			p.merge(part)
		}
	}
	return p, errs
}

func loadPath(path string) (cue.Value, error) {
	info, err := os.Stat(path)
	if err != nil {
		return cue.Value{}, err
	}
	if info.IsDir() {
		v, _, err := LoadDir(path)
		return v, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return cue.Value{}, err
	}
	return LoadString(string(data), path)
}

package compiler

import (
	"fmt"
	"os"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"cuelang.org/go/cue/load"

	"github.com/GuLp-St/Attendance-Studio/internal/ir"
)

// LoadSchema compiles the navigation schema at path. A directory is loaded
// as one CUE package instance; a file is compiled on its own.
//
// LoadSchema does not run Validate.
func LoadSchema(path string) (*ir.Schema, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, err
	}
	if !info.IsDir() {
		src, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}
		return CompileSource(src, path)
	}

	ctx := cuecontext.New()
	instances := load.Instances([]string{"."}, &load.Config{Dir: path})
	if len(instances) == 0 {
		return nil, fmt.Errorf("no CUE instances in %s", path)
	}
	inst := instances[0]
	if inst.Err != nil {
		return nil, formatCUEError(inst.Err)
	}
	v := ctx.BuildInstance(inst)
	if err := v.Validate(); err != nil {
		return nil, formatCUEError(err)
	}
	return CompileSchema(v.LookupPath(cue.ParsePath(SchemaPath)))
}

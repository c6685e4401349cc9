package cli

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	cueerrors "cuelang.org/go/cue/errors"
	"cuelang.org/go/cue/token"
	cueyaml "cuelang.org/go/encoding/yaml"

	"github.com/roach88/dayplan/internal/schedule"
)

//go:embed template.cue
var templateSchema string

// LoadError represents a template file that could not be loaded.
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

// LoadTemplateFile reads a template from a YAML (.yaml, .yml) or CUE (.cue)
// file and checks it against the #Template schema before decoding.
//
// The schema catches structural problems with file positions (unknown
// fields, malformed times, unknown categories); schedule.Template.Validate
// then checks the cross-field rules.
func LoadTemplateFile(path string) (schedule.Template, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return schedule.Template{}, &LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("reading template file: %v", err)}
	}

	ctx := cuecontext.New()
	schema := ctx.CompileString(templateSchema, cue.Filename("template.cue"))
	if err := schema.Err(); err != nil {
		return schedule.Template{}, fmt.Errorf("compile template schema: %w", err)
	}

	var value cue.Value
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		f, err := cueyaml.Extract(path, data)
		if err != nil {
			return schedule.Template{}, convertCUEError(err, path)
		}
		value = ctx.BuildFile(f)
	case ".cue":
		value = ctx.CompileBytes(data, cue.Filename(path))
	default:
		return schedule.Template{}, &LoadError{Code: ErrCodeGeneric, Message: fmt.Sprintf("unsupported template file type %q", filepath.Ext(path))}
	}
	if err := value.Err(); err != nil {
		return schedule.Template{}, convertCUEError(err, path)
	}

	unified := schema.LookupPath(cue.ParsePath("#Template")).Unify(value)
	if err := unified.Validate(cue.Concrete(true)); err != nil {
		return schedule.Template{}, convertCUEError(err, path)
	}

	raw, err := unified.MarshalJSON()
	if err != nil {
		return schedule.Template{}, convertCUEError(err, path)
	}
	var tmpl schedule.Template
	if err := json.Unmarshal(raw, &tmpl); err != nil {
		return schedule.Template{}, &LoadError{Code: ErrCodeSchema, Message: err.Error()}
	}
	tmpl.Name = schedule.NormalizeName(tmpl.Name)
	if err := tmpl.Validate(); err != nil {
		return schedule.Template{}, &LoadError{Code: ErrCodeValidation, Message: err.Error()}
	}
	return tmpl, nil
}

// convertCUEError keeps the first reported position, preferring one in the
// file being loaded over one in the schema.
func convertCUEError(err error, path string) *LoadError {
	le := &LoadError{Code: ErrCodeSchema, Message: strings.TrimSpace(cueerrors.Details(err, nil))}
	for _, e := range cueerrors.Errors(err) {
		positions := append([]token.Pos{e.Position()}, e.InputPositions()...)
		for _, pos := range positions {
			if !pos.IsValid() {
				continue
			}
			if !le.Pos.IsValid() || (pos.Filename() == path && le.Pos.Filename() != path) {
				le.Pos = pos
				msg, args := e.Msg()
				le.Message = fmt.Sprintf(msg, args...)
			}
		}
		if le.Pos.Filename() == path {
			break
		}
	}
	return le
}

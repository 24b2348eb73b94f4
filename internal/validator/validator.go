// Package validator guards the two data contracts of the tool with CUE:
// design files going in and connectivity tables coming out. A contract
// violation is reported immediately with the offending path instead of
// reaching the engine or a downstream rule as a silently missing field.
package validator

import (
	"embed"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"cuelang.org/go/cue/errors"
	cueyaml "cuelang.org/go/encoding/yaml"
)

//go:embed design_schema.cue tables_schema.cue
var schemaFS embed.FS

// Definitions exported by the embedded schemas.
const (
	DefDesign = "#Design"
	DefTables = "#Tables"
	DefDelta  = "#Delta"
)

// Validator holds the compiled schemas. It is not safe for concurrent use.
type Validator struct {
	ctx     *cue.Context
	schemas map[string]cue.Value
}

// New compiles the embedded schemas.
func New() (*Validator, error) {
	ctx := cuecontext.New()
	v := &Validator{ctx: ctx, schemas: make(map[string]cue.Value)}

	design, err := compileSchema(ctx, "design_schema.cue")
	if err != nil {
		return nil, err
	}
	tables, err := compileSchema(ctx, "tables_schema.cue")
	if err != nil {
		return nil, err
	}
	v.schemas[DefDesign] = design
	v.schemas[DefTables] = tables
	v.schemas[DefDelta] = tables
	return v, nil
}

func compileSchema(ctx *cue.Context, name string) (cue.Value, error) {
	src, err := schemaFS.ReadFile(name)
	if err != nil {
		return cue.Value{}, fmt.Errorf("loading embedded schema %s: %w", name, err)
	}
	schema := ctx.CompileBytes(src, cue.Filename(name))
	if schema.Err() != nil {
		return cue.Value{}, fmt.Errorf("compiling schema %s: %w", name, schema.Err())
	}
	return schema, nil
}

// Validate marshals data to JSON and checks it against a definition.
func (v *Validator) Validate(def string, data any) error {
	jsonBytes, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("marshaling data to JSON: %w", err)
	}
	return v.ValidateJSON(def, jsonBytes)
}

// ValidateJSON checks raw JSON against a definition.
func (v *Validator) ValidateJSON(def string, jsonBytes []byte) error {
	dataValue := v.ctx.CompileBytes(jsonBytes)
	if dataValue.Err() != nil {
		return fmt.Errorf("compiling JSON as CUE: %w", dataValue.Err())
	}
	return v.unify(def, dataValue)
}

// ValidateDesignFile checks a JSON or YAML design file as written, so
// misspelled fields are caught before decoding drops them.
func (v *Validator) ValidateDesignFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading design file: %w", err)
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		file, err := cueyaml.Extract(path, data)
		if err != nil {
			return fmt.Errorf("%s: parsing YAML: %w", path, err)
		}
		value := v.ctx.BuildFile(file)
		if value.Err() != nil {
			return fmt.Errorf("%s: building CUE value: %w", path, value.Err())
		}
		if err := v.unify(DefDesign, value); err != nil {
			return fmt.Errorf("%s: %w", path, err)
		}
		return nil
	default:
		if err := v.ValidateJSON(DefDesign, data); err != nil {
			return fmt.Errorf("%s: %w", path, err)
		}
		return nil
	}
}

func (v *Validator) lookup(def string) (cue.Value, error) {
	schema, ok := v.schemas[def]
	if !ok {
		return cue.Value{}, fmt.Errorf("unknown definition %s", def)
	}
	d := schema.LookupPath(cue.ParsePath(def))
	if d.Err() != nil {
		return cue.Value{}, fmt.Errorf("looking up %s definition: %w", def, d.Err())
	}
	return d, nil
}

func (v *Validator) unify(def string, data cue.Value) error {
	d, err := v.lookup(def)
	if err != nil {
		return err
	}
	unified := d.Unify(data)
	if err := unified.Validate(cue.Concrete(true)); err != nil {
		return fmt.Errorf("%s validation failed: %w", def, err)
	}
	return nil
}

// ValidationErrors returns every violation of data against def, one per
// line, or nil when data conforms.
func (v *Validator) ValidationErrors(def string, data any) []string {
	jsonBytes, err := json.Marshal(data)
	if err != nil {
		return []string{fmt.Sprintf("marshal error: %v", err)}
	}
	dataValue := v.ctx.CompileBytes(jsonBytes)
	if dataValue.Err() != nil {
		return []string{fmt.Sprintf("compile error: %v", dataValue.Err())}
	}
	d, err := v.lookup(def)
	if err != nil {
		return []string{err.Error()}
	}
	err = d.Unify(dataValue).Validate(cue.Concrete(true))
	if err == nil {
		return nil
	}
	var errs []string
	for _, e := range errors.Errors(err) {
		errs = append(errs, e.Error())
	}
	return errs
}

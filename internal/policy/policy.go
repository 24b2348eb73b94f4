// Package policy evaluates connectivity rules written in Rego over the
// published tables. The builtin rules live in connectivity.rego; extra
// modules in the same package can add violations to the raw set.
package policy

import (
	"context"
	"crypto/sha256"
	"embed"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/open-policy-agent/opa/v1/rego"

	"github.com/robert-at-pretension-io/netconn/internal/facts"
)

//go:embed connectivity.rego
var builtinFS embed.FS

const (
	violationsQuery = "data.netconn.connectivity.all_violations"
	summaryQuery    = "data.netconn.connectivity.summary"
)

// Engine evaluates the connectivity policies against fact tables.
type Engine struct {
	queries     map[string]rego.PreparedEvalQuery
	modules     []string
	fingerprint string
}

// Violation is one rule hit. Node is -1 and Port or Export empty when the
// rule does not locate it there.
type Violation struct {
	Rule     string `json:"rule"`
	Severity string `json:"severity"`
	Cell     string `json:"cell"`
	Node     int    `json:"node"`
	Port     string `json:"port,omitempty"`
	Export   string `json:"export,omitempty"`
	Message  string `json:"message"`
}

// Result contains the evaluation results
type Result struct {
	Violations []Violation `json:"violations"`
	Summary    Summary     `json:"summary"`
}

// Summary provides aggregate counts
type Summary struct {
	TotalViolations int `json:"total_violations"`
	Errors          int `json:"errors"`
	Warnings        int `json:"warnings"`
	Info            int `json:"info"`
	Cells           int `json:"cells"`
	FailedCells     int `json:"failed_cells"`
}

// Input is the document the policies see. Rules maps rule names and
// diagnostic codes to a severity; "off" drops the violation.
type Input struct {
	facts.Tables
	Rules map[string]string `json:"rules"`
}

// New prepares the builtin policies plus any .rego files in policyDir,
// which may be empty.
func New(policyDir string) (*Engine, error) {
	builtin, err := builtinFS.ReadFile("connectivity.rego")
	if err != nil {
		return nil, fmt.Errorf("loading builtin policy: %w", err)
	}
	engine := &Engine{
		queries: make(map[string]rego.PreparedEvalQuery),
		modules: []string{"connectivity.rego"},
	}
	modules := []func(*rego.Rego){rego.Module("connectivity.rego", string(builtin))}
	hasher := sha256.New()
	hasher.Write(builtin)

	if policyDir != "" {
		files, err := filepath.Glob(filepath.Join(policyDir, "*.rego"))
		if err != nil {
			return nil, fmt.Errorf("finding policy files: %w", err)
		}
		sort.Strings(files)
		for _, f := range files {
			content, err := os.ReadFile(f)
			if err != nil {
				return nil, fmt.Errorf("reading %s: %w", f, err)
			}
			modules = append(modules, rego.Module(f, string(content)))
			engine.modules = append(engine.modules, f)
			hasher.Write([]byte{0})
			hasher.Write([]byte(filepath.Base(f)))
			hasher.Write([]byte{0})
			hasher.Write(content)
		}
	}

	engine.fingerprint = hex.EncodeToString(hasher.Sum(nil))

	ctx := context.Background()
	for name, q := range map[string]string{"violations": violationsQuery, "summary": summaryQuery} {
		opts := append(append([]func(*rego.Rego){}, modules...), rego.Query(q))
		query, err := rego.New(opts...).PrepareForEval(ctx)
		if err != nil {
			return nil, fmt.Errorf("preparing %s query: %w", name, err)
		}
		engine.queries[name] = query
	}
	return engine, nil
}

// Modules lists the loaded policy modules.
func (e *Engine) Modules() []string {
	return append([]string(nil), e.modules...)
}

// Fingerprint identifies the loaded rule sources.
func (e *Engine) Fingerprint() string { return e.fingerprint }

// Evaluate runs the policies against the input data
func (e *Engine) Evaluate(ctx context.Context, input Input) (*Result, error) {
	if input.Rules == nil {
		input.Rules = map[string]string{}
	}
	inputMap, err := structToMap(input)
	if err != nil {
		return nil, fmt.Errorf("converting input: %w", err)
	}

	result := &Result{Violations: []Violation{}}

	rs, err := e.queries["violations"].Eval(ctx, rego.EvalInput(inputMap))
	if err != nil {
		return nil, fmt.Errorf("evaluating violations: %w", err)
	}
	if len(rs) > 0 && len(rs[0].Expressions) > 0 {
		violations, ok := rs[0].Expressions[0].Value.([]interface{})
		if ok {
			for _, v := range violations {
				vmap, ok := v.(map[string]interface{})
				if !ok {
					continue
				}
				result.Violations = append(result.Violations, Violation{
					Rule:     getString(vmap, "rule"),
					Severity: getString(vmap, "severity"),
					Cell:     getString(vmap, "cell"),
					Node:     getInt(vmap, "node"),
					Port:     getString(vmap, "port"),
					Export:   getString(vmap, "export"),
					Message:  getString(vmap, "message"),
				})
			}
		}
	}
	sort.SliceStable(result.Violations, func(i, j int) bool {
		a, b := result.Violations[i], result.Violations[j]
		if a.Cell != b.Cell {
			return a.Cell < b.Cell
		}
		if a.Rule != b.Rule {
			return a.Rule < b.Rule
		}
		if a.Node != b.Node {
			return a.Node < b.Node
		}
		return a.Message < b.Message
	})

	rs, err = e.queries["summary"].Eval(ctx, rego.EvalInput(inputMap))
	if err != nil {
		return nil, fmt.Errorf("evaluating summary: %w", err)
	}
	if len(rs) > 0 && len(rs[0].Expressions) > 0 {
		smap, ok := rs[0].Expressions[0].Value.(map[string]interface{})
		if ok {
			result.Summary = Summary{
				TotalViolations: getInt(smap, "total_violations"),
				Errors:          getInt(smap, "errors"),
				Warnings:        getInt(smap, "warnings"),
				Info:            getInt(smap, "info"),
				Cells:           getInt(smap, "cells"),
				FailedCells:     getInt(smap, "failed_cells"),
			}
		}
	}

	return result, nil
}

// Helper functions
func structToMap(v interface{}) (map[string]interface{}, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var result map[string]interface{}
	err = json.Unmarshal(data, &result)
	return result, err
}

func getString(m map[string]interface{}, key string) string {
	if v, ok := m[key]; ok {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}

func getInt(m map[string]interface{}, key string) int {
	if v, ok := m[key]; ok {
		switch n := v.(type) {
		case int:
			return n
		case float64:
			return int(n)
		case json.Number:
			i, _ := n.Int64()
			return int(i)
		}
	}
	return 0
}

// Package agent runs the conversation turn loop: a decision step that
// may request tools, tool execution with context patching, and
// termination under a round-trip cap.
package agent

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/phenomenon0/chatbet-agent/pkg/llm"
	"github.com/phenomenon0/chatbet-agent/pkg/session"
)

// SchemaViolationError reports tool arguments that fail validation.
// Validation happens before any component is touched, so a violation is
// always side-effect-free.
type SchemaViolationError struct {
	Tool   string
	Detail string
}

func (e *SchemaViolationError) Error() string {
	return fmt.Sprintf("invalid arguments for %s: %s", e.Tool, e.Detail)
}

// Argument types accepted in tool schemas.
const (
	ArgString = "string"
	ArgNumber = "number"
)

// ArgSpec declares one tool argument.
type ArgSpec struct {
	Name        string
	Type        string
	Description string
	Required    bool
}

// Args is a validated argument set.
type Args map[string]any

// String returns a string argument, or "" when absent.
func (a Args) String(name string) string {
	v, _ := a[name].(string)
	return v
}

// Number returns a numeric argument as a decimal, or zero when absent.
func (a Args) Number(name string) decimal.Decimal {
	switch v := a[name].(type) {
	case float64:
		return decimal.NewFromFloat(v)
	case json.Number:
		if d, err := decimal.NewFromString(v.String()); err == nil {
			return d
		}
	}
	return decimal.Decimal{}
}

// Result is one tool invocation's outcome: a display string plus an
// optional patch to the session context.
type Result struct {
	Display string
	Patch   session.ContextPatch
}

// Tool is one named operation with its declared argument schema.
type Tool struct {
	Name        string
	Description string
	Args        []ArgSpec
	Run         func(ctx context.Context, state *session.State, args Args) (Result, error)
}

// Registry is the fixed catalog of tools exposed to the decision
// service.
type Registry struct {
	tools []*Tool
	index map[string]*Tool
}

// NewRegistry builds a registry from an ordered tool list.
func NewRegistry(tools ...*Tool) *Registry {
	r := &Registry{index: make(map[string]*Tool, len(tools))}
	for _, t := range tools {
		r.tools = append(r.tools, t)
		r.index[t.Name] = t
	}
	return r
}

// Schemas declares every tool to the decision service.
func (r *Registry) Schemas() []llm.ToolSchema {
	out := make([]llm.ToolSchema, len(r.tools))
	for i, t := range r.tools {
		out[i] = llm.ToolSchema{
			Name:        t.Name,
			Description: t.Description,
			Parameters:  t.schema(),
		}
	}
	return out
}

func (t *Tool) schema() json.RawMessage {
	properties := make(map[string]any, len(t.Args))
	var required []string
	for _, a := range t.Args {
		properties[a.Name] = map[string]string{"type": a.Type, "description": a.Description}
		if a.Required {
			required = append(required, a.Name)
		}
	}
	doc := map[string]any{"type": "object", "properties": properties}
	if len(required) > 0 {
		doc["required"] = required
	}
	raw, _ := json.Marshal(doc)
	return raw
}

// Dispatch validates the raw arguments against the named tool's schema
// and runs it. state is the in-flight turn's private copy; tools read
// it and return patches, they never write it directly.
func (r *Registry) Dispatch(ctx context.Context, state *session.State, name string, raw json.RawMessage) (Result, error) {
	tool, ok := r.index[name]
	if !ok {
		return Result{}, &SchemaViolationError{Tool: name, Detail: "unknown tool"}
	}
	args, err := tool.validate(raw)
	if err != nil {
		return Result{}, err
	}
	return tool.Run(ctx, state, args)
}

func (t *Tool) validate(raw json.RawMessage) (Args, error) {
	parsed := make(map[string]any)
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &parsed); err != nil {
			return nil, &SchemaViolationError{Tool: t.Name, Detail: fmt.Sprintf("arguments are not an object: %v", err)}
		}
	}

	args := make(Args, len(t.Args))
	for _, spec := range t.Args {
		v, present := parsed[spec.Name]
		if !present || v == nil {
			if spec.Required {
				return nil, &SchemaViolationError{Tool: t.Name, Detail: fmt.Sprintf("missing required argument %q", spec.Name)}
			}
			continue
		}
		switch spec.Type {
		case ArgString:
			if _, ok := v.(string); !ok {
				return nil, &SchemaViolationError{Tool: t.Name, Detail: fmt.Sprintf("argument %q must be a string", spec.Name)}
			}
		case ArgNumber:
			switch v.(type) {
			case float64, json.Number:
			default:
				return nil, &SchemaViolationError{Tool: t.Name, Detail: fmt.Sprintf("argument %q must be a number", spec.Name)}
			}
		}
		args[spec.Name] = v
	}
	return args, nil
}

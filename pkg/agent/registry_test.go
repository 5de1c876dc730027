package agent

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/phenomenon0/chatbet-agent/pkg/session"
)

func testTool(calls *int) *Tool {
	return &Tool{
		Name:        "lookup_team",
		Description: "Looks up a team by name.",
		Args: []ArgSpec{
			{Name: "team_name", Type: ArgString, Description: "Team to look up.", Required: true},
			{Name: "limit", Type: ArgNumber, Description: "Maximum results."},
		},
		Run: func(ctx context.Context, state *session.State, args Args) (Result, error) {
			*calls++
			return Result{Display: "found " + args.String("team_name")}, nil
		},
	}
}

func TestDispatchValidArguments(t *testing.T) {
	calls := 0
	reg := NewRegistry(testTool(&calls))

	res, err := reg.Dispatch(context.Background(), &session.State{}, "lookup_team",
		json.RawMessage(`{"team_name": "Real Madrid", "limit": 3}`))
	if err != nil {
		t.Fatalf("Dispatch: %v", err)
	}
	if res.Display != "found Real Madrid" {
		t.Errorf("display = %q", res.Display)
	}
	if calls != 1 {
		t.Errorf("tool ran %d times, want 1", calls)
	}
}

func TestDispatchMissingRequiredArgument(t *testing.T) {
	calls := 0
	reg := NewRegistry(testTool(&calls))

	_, err := reg.Dispatch(context.Background(), &session.State{}, "lookup_team",
		json.RawMessage(`{"limit": 3}`))

	var violation *SchemaViolationError
	if !errors.As(err, &violation) {
		t.Fatalf("err = %v, want SchemaViolationError", err)
	}
	if !strings.Contains(violation.Detail, "team_name") {
		t.Errorf("detail %q does not name the missing argument", violation.Detail)
	}
	if calls != 0 {
		t.Errorf("tool ran despite invalid arguments")
	}
}

func TestDispatchWrongArgumentType(t *testing.T) {
	calls := 0
	reg := NewRegistry(testTool(&calls))

	cases := []string{
		`{"team_name": 42}`,
		`{"team_name": "Real Madrid", "limit": "three"}`,
		`["not", "an", "object"]`,
	}
	for _, raw := range cases {
		_, err := reg.Dispatch(context.Background(), &session.State{}, "lookup_team", json.RawMessage(raw))
		var violation *SchemaViolationError
		if !errors.As(err, &violation) {
			t.Errorf("args %s: err = %v, want SchemaViolationError", raw, err)
		}
	}
	if calls != 0 {
		t.Errorf("tool ran despite invalid arguments")
	}
}

func TestDispatchUnknownTool(t *testing.T) {
	reg := NewRegistry()

	_, err := reg.Dispatch(context.Background(), &session.State{}, "no_such_tool", nil)
	var violation *SchemaViolationError
	if !errors.As(err, &violation) {
		t.Fatalf("err = %v, want SchemaViolationError", err)
	}
	if violation.Tool != "no_such_tool" {
		t.Errorf("violation tool = %q", violation.Tool)
	}
}

func TestDispatchDropsUndeclaredArguments(t *testing.T) {
	var seen Args
	reg := NewRegistry(&Tool{
		Name: "echo_args",
		Args: []ArgSpec{{Name: "known", Type: ArgString}},
		Run: func(ctx context.Context, state *session.State, args Args) (Result, error) {
			seen = args
			return Result{}, nil
		},
	})

	if _, err := reg.Dispatch(context.Background(), &session.State{}, "echo_args",
		json.RawMessage(`{"known": "yes", "extra": "ignored"}`)); err != nil {
		t.Fatalf("Dispatch: %v", err)
	}
	if _, ok := seen["extra"]; ok {
		t.Errorf("undeclared argument survived validation: %v", seen)
	}
	if seen.String("known") != "yes" {
		t.Errorf("known argument lost: %v", seen)
	}
}

func TestSchemasDeclareRequiredArguments(t *testing.T) {
	calls := 0
	reg := NewRegistry(testTool(&calls))

	schemas := reg.Schemas()
	if len(schemas) != 1 {
		t.Fatalf("got %d schemas", len(schemas))
	}
	if schemas[0].Name != "lookup_team" {
		t.Errorf("name = %q", schemas[0].Name)
	}

	var doc struct {
		Type       string                       `json:"type"`
		Properties map[string]map[string]string `json:"properties"`
		Required   []string                     `json:"required"`
	}
	if err := json.Unmarshal(schemas[0].Parameters, &doc); err != nil {
		t.Fatalf("parameters are not valid JSON: %v", err)
	}
	if doc.Type != "object" {
		t.Errorf("type = %q", doc.Type)
	}
	if doc.Properties["team_name"]["type"] != "string" {
		t.Errorf("team_name schema = %v", doc.Properties["team_name"])
	}
	if len(doc.Required) != 1 || doc.Required[0] != "team_name" {
		t.Errorf("required = %v", doc.Required)
	}
}

func TestArgsNumberDecodes(t *testing.T) {
	args := Args{"amount": float64(99.5)}
	if !args.Number("amount").Equal(decimal.NewFromFloat(99.5)) {
		t.Errorf("amount = %s", args.Number("amount"))
	}
	if !args.Number("missing").IsZero() {
		t.Errorf("missing argument should be zero")
	}
}

package codeact

import (
	"reflect"
	"testing"
)

func TestParseScriptSimpleCalls(t *testing.T) {
	script := `# open wifi settings
tap_by_index(3)
input_text("hello world")
complete(true, "done")
`
	statements, err := ParseScript(script)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(statements) != 3 {
		t.Fatalf("statements = %d, want 3", len(statements))
	}
	if statements[0].Name != "tap_by_index" {
		t.Errorf("name = %q", statements[0].Name)
	}
	if got := statements[0].Args.Positional[0]; got != 3 {
		t.Errorf("arg = %v, want 3", got)
	}
	if got := statements[1].Args.Positional[0]; got != "hello world" {
		t.Errorf("arg = %v", got)
	}
	if got := statements[2].Args.Positional[0]; got != true {
		t.Errorf("arg = %v, want true", got)
	}
}

func TestParseScriptKeywordArgs(t *testing.T) {
	statements, err := ParseScript(`complete(success=False, reason="could not find button")`)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	args := statements[0].Args
	success, err := args.Bool(0, "success")
	if err != nil {
		t.Fatalf("Bool: %v", err)
	}
	if success {
		t.Error("success should be false")
	}
	reason, err := args.StringOr(1, "reason", "")
	if err != nil {
		t.Fatalf("StringOr: %v", err)
	}
	if reason != "could not find button" {
		t.Errorf("reason = %q", reason)
	}
}

func TestParseScriptListLiteral(t *testing.T) {
	script := `set_tasks([{"task": "open settings", "agent": "Default"}, {'task': 'enable wifi', 'agent': 'UIExpert'}])`
	statements, err := ParseScript(script)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	list, ok := statements[0].Args.Positional[0].([]any)
	if !ok {
		t.Fatalf("expected list, got %T", statements[0].Args.Positional[0])
	}
	if len(list) != 2 {
		t.Fatalf("list len = %d, want 2", len(list))
	}
	second, ok := list[1].(map[string]any)
	if !ok {
		t.Fatalf("expected map, got %T", list[1])
	}
	want := map[string]any{"task": "enable wifi", "agent": "UIExpert"}
	if !reflect.DeepEqual(second, want) {
		t.Errorf("second = %v, want %v", second, want)
	}
}

func TestParseScriptMultilineCall(t *testing.T) {
	script := "set_tasks([\n  {\"task\": \"a\", \"agent\": \"Default\"},\n  {\"task\": \"b\", \"agent\": \"Default\"}\n])"
	statements, err := ParseScript(script)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(statements) != 1 {
		t.Fatalf("statements = %d, want 1", len(statements))
	}
}

func TestParseScriptPythonBooleansInLists(t *testing.T) {
	statements, err := ParseScript(`set_flags([True, False, None])`)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	list := statements[0].Args.Positional[0].([]any)
	if list[0] != true || list[1] != false || list[2] != nil {
		t.Errorf("list = %v", list)
	}
}

func TestParseScriptRejectsNonCalls(t *testing.T) {
	if _, err := ParseScript(`x = tap_by_index(3)`); err == nil {
		t.Error("assignment should not parse")
	}
	if _, err := ParseScript(`tap_by_index(3`); err == nil {
		t.Error("unterminated call should not parse")
	}
}

func TestParseScriptReturnsValidPrefixOnError(t *testing.T) {
	statements, err := ParseScript("tap_by_index(1)\nbogus line here\n")
	if err == nil {
		t.Fatal("expected error")
	}
	if len(statements) != 1 {
		t.Errorf("valid prefix should be returned, got %d statements", len(statements))
	}
}

func TestParseScriptEscapedQuotes(t *testing.T) {
	statements, err := ParseScript(`input_text("say \"hi\" now")`)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := statements[0].Args.Positional[0]; got != `say "hi" now` {
		t.Errorf("arg = %q", got)
	}
}

package codeact

import "testing"

func TestExtractCodeAndThought(t *testing.T) {
	response := "I can see the settings icon at index 3.\n```\ntap_by_index(3)\n```\nThat should open settings."

	code, thought := ExtractCodeAndThought(response)
	if code != "tap_by_index(3)" {
		t.Errorf("code = %q", code)
	}
	if thought != "I can see the settings icon at index 3. That should open settings." {
		t.Errorf("thought = %q", thought)
	}
}

func TestExtractCodeWithLanguageTag(t *testing.T) {
	code, _ := ExtractCodeAndThought("thinking\n```python\ncomplete(true, \"ok\")\n```")
	if code != `complete(true, "ok")` {
		t.Errorf("code = %q", code)
	}
}

func TestExtractMultipleFences(t *testing.T) {
	code, _ := ExtractCodeAndThought("first\n```\ntap_by_index(1)\n```\nthen\n```\ntap_by_index(2)\n```")
	if code != "tap_by_index(1)\ntap_by_index(2)" {
		t.Errorf("code = %q", code)
	}
}

func TestExtractNoCode(t *testing.T) {
	code, thought := ExtractCodeAndThought("I am not sure what to do next.")
	if code != "" {
		t.Errorf("code = %q, want empty", code)
	}
	if thought != "I am not sure what to do next." {
		t.Errorf("thought = %q", thought)
	}
}

func TestExtractOnlyCode(t *testing.T) {
	code, thought := ExtractCodeAndThought("```\nback()\n```")
	if code != "back()" {
		t.Errorf("code = %q", code)
	}
	if thought != "" {
		t.Errorf("thought = %q, want empty", thought)
	}
}

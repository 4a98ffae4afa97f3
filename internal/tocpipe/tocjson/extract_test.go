package tocjson

import (
	"testing"
)

func TestExtract_StripsCodeFence(t *testing.T) {
	content := "```json\n[{\"title\":\"Intro\"}]\n```"
	raw, err := Extract(content)
	if err != nil {
		t.Fatalf("Extract() error = %v", err)
	}
	if string(raw) != `[{"title":"Intro"}]` {
		t.Fatalf("Extract() = %s, want [{\"title\":\"Intro\"}]", raw)
	}
}

func TestExtract_TrailingCommentary(t *testing.T) {
	content := `Here is the result: {"ok": true} Hope that helps!`
	raw, err := Extract(content)
	if err != nil {
		t.Fatalf("Extract() error = %v", err)
	}
	var parsed struct {
		OK bool `json:"ok"`
	}
	if err := ExtractInto(content, &parsed); err != nil {
		t.Fatalf("ExtractInto() error = %v", err)
	}
	if !parsed.OK {
		t.Fatalf("ExtractInto() ok = false, want true; raw=%s", raw)
	}
}

func TestExtract_EmptyInput(t *testing.T) {
	if _, err := Extract("   "); err == nil {
		t.Fatalf("Extract(empty) expected error, got nil")
	}
}

func TestExtract_Unparsable(t *testing.T) {
	if _, err := Extract("not json at all"); err == nil {
		t.Fatalf("Extract(garbage) expected error, got nil")
	}
}

func TestLastCompleteObjectEnd(t *testing.T) {
	cases := []struct {
		name    string
		content string
		want    int
	}{
		{"none", "no braces here", -1},
		{"single", `{"a":1}`, 7},
		{"truncated_after_object", `[{"a":1},{"b":2`, 8},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := LastCompleteObjectEnd(tc.content); got != tc.want {
				t.Fatalf("LastCompleteObjectEnd(%q) = %d, want %d", tc.content, got, tc.want)
			}
		})
	}
}

package textutil

import "testing"

func TestDisplayName(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{name: "plain", input: "Alice", want: "Alice"},
		{name: "trim and collapse", input: "  Jean \t  Pierre\n", want: "Jean Pierre"},
		{name: "decomposed accent", input: "Ame\u0301lie", want: "Am\u00e9lie"},
		{name: "zero width joiner dropped", input: "Bob\u200d", want: "Bob"},
		{name: "only whitespace", input: " \n\t ", want: ""},
		{name: "emoji kept", input: "Maman ❤", want: "Maman ❤"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := DisplayName(tc.input); got != tc.want {
				t.Fatalf("DisplayName(%q) = %q, want %q", tc.input, got, tc.want)
			}
		})
	}
}

func TestSanitizeFileName(t *testing.T) {
	if got := SanitizeFileName(" contacts:2026/10?.csv "); got != "contacts-2026-10.csv" {
		t.Fatalf("unexpected sanitized name %q", got)
	}
	if got := SanitizeFileName("   "); got != "" {
		t.Fatalf("expected empty result, got %q", got)
	}
}

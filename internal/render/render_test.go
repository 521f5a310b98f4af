package render

import "testing"

func TestPost(t *testing.T) {
	t.Parallel()

	got := Post("{{title}}|{{summary}}|{{url}}", map[string]string{
		"title":   "T",
		"summary": "S",
		"url":     "U",
	})
	if got != "T|S|U" {
		t.Fatalf("unexpected render: %q", got)
	}
}

func TestPostUnknownPlaceholder(t *testing.T) {
	t.Parallel()

	got := Post("{{title}} {{missing}}", map[string]string{"title": "T"})
	if got != "T " {
		t.Fatalf("expected unknown placeholder to render empty, got %q", got)
	}
}

func TestTruncateCodepoints(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name string
		in   string
		max  int
		want string
	}{
		{"under limit", "hello", 10, "hello"},
		{"exact limit", "hello", 5, "hello"},
		{"truncates with ellipsis", "hello world", 8, "hello w…"},
		{"multibyte runes", "héllo wörld", 6, "héllo…"},
		{"max one", "hello", 1, "…"},
		{"max zero", "hello", 0, ""},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := TruncateCodepoints(tc.in, tc.max)
			if got != tc.want {
				t.Fatalf("TruncateCodepoints(%q, %d) = %q, want %q", tc.in, tc.max, got, tc.want)
			}
		})
	}
}

func TestSamplePrefix(t *testing.T) {
	t.Parallel()

	md := "0123456789"
	got := SamplePrefix(md, 0.3)
	if got != "012" {
		t.Fatalf("expected ceil(10*0.3)=3 runes, got %q", got)
	}

	if SamplePrefix(md, 0) != "" {
		t.Fatalf("percent 0 should sample empty body")
	}

	if got := SamplePrefix(md, 1.5); got != md {
		t.Fatalf("percent > 1 should clamp to full string, got %q", got)
	}
}

func TestSamplePrefixMultibyte(t *testing.T) {
	t.Parallel()

	md := "日本語のテキスト"
	got := SamplePrefix(md, 0.5)
	want := 4 // ceil(8 * 0.5)
	runeCount := 0
	for range got {
		runeCount++
	}
	if runeCount != want {
		t.Fatalf("expected %d codepoints, got %d (%q)", want, runeCount, got)
	}
}

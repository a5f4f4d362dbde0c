package gmail

import (
	"strings"
	"testing"
)

func TestSanitizeStripsScripts(t *testing.T) {
	out := Sanitize(`<script>alert(1)</script><b>hi</b>`)
	if strings.Contains(out, "script") || strings.Contains(out, "alert") {
		t.Errorf("script survived sanitization: %q", out)
	}
	if !strings.Contains(out, "<b>hi</b>") {
		t.Errorf("formatting tag lost: %q", out)
	}
}

func TestSanitizeKeepsStructure(t *testing.T) {
	in := `<p>Hello</p><table><tr><td colspan="2">cell</td></tr></table><a href="https://example.com">link</a>`
	out := Sanitize(in)

	for _, want := range []string{"<p>Hello</p>", "<td colspan=\"2\">", "https://example.com"} {
		if !strings.Contains(out, want) {
			t.Errorf("expected %q in output, got %q", want, out)
		}
	}
}

func TestSanitizeDropsEventHandlers(t *testing.T) {
	out := Sanitize(`<img src="https://example.com/x.png" onerror="alert(1)">`)
	if strings.Contains(out, "onerror") {
		t.Errorf("event handler survived: %q", out)
	}
	if !strings.Contains(out, "img") {
		t.Errorf("img element lost: %q", out)
	}
}

func TestSanitizeEmpty(t *testing.T) {
	if out := Sanitize(""); out != "" {
		t.Errorf("got %q, want empty", out)
	}
}

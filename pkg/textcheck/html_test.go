package textcheck

import (
	"strings"
	"testing"
)

func TestSanitizeRuby(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{
			name:     "Simple Ruby",
			input:    "<ruby>漢字<rt>かんじ</rt></ruby>",
			expected: "<ruby>漢字</ruby>",
		},
		{
			name:     "Ruby with RP",
			input:    "<ruby>漢字<rp>(</rp><rt>かんじ</rt><rp>)</rp></ruby>",
			expected: "<ruby>漢字</ruby>",
		},
		{
			name:     "Multiple Ruby",
			input:    "<ruby>私<rt>わたし</rt></ruby>は<ruby>猫<rt>ねこ</rt></ruby>である",
			expected: "<ruby>私</ruby>は<ruby>猫</ruby>である",
		},
		{
			name:     "Mixed case and attributes",
			input:    "<RUBY>字<RT class=\"x\">じ</RT></RUBY>",
			expected: "<RUBY>字</RUBY>",
		},
		{
			name:     "No ruby",
			input:    "<p>plain</p>",
			expected: "<p>plain</p>",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := string(SanitizeRuby([]byte(tt.input))); got != tt.expected {
				t.Errorf("SanitizeRuby() = %q, want %q", got, tt.expected)
			}
		})
	}
}

const samplePage = `<!DOCTYPE html>
<html>
<head><title>Field notes</title></head>
<body>
<nav><a href="/">Home</a> <a href="/about">About</a></nav>
<article>
<h1>Field notes</h1>
<p>The cat sat on the mat while the dog slept in the house. The mouse watched
from a corner and waited for the house to become quiet again before moving.</p>
<p>Later the <ruby>猫<rt>ねこ</rt></ruby> walked to Oslo, which was a long way for
a small cat, and nobody in the house noticed it had gone until the evening.</p>
</article>
<footer>Copyright</footer>
</body>
</html>`

func TestExtractArticle(t *testing.T) {
	article, err := ExtractArticle([]byte(samplePage), "http://localhost/notes")
	if err != nil {
		t.Fatalf("extract: %v", err)
	}
	if !strings.Contains(article.Title, "Field notes") {
		t.Errorf("unexpected title %q", article.Title)
	}
	if !strings.Contains(article.Text, "The cat sat on the mat") {
		t.Errorf("article text missing body: %q", article.Text)
	}
	if strings.Contains(article.Text, "ねこ") {
		t.Errorf("furigana survived extraction: %q", article.Text)
	}
}

func TestLooksLikeHTML(t *testing.T) {
	if !LooksLikeHTML([]byte(samplePage)) {
		t.Error("sample page not detected as HTML")
	}
	if LooksLikeHTML([]byte("just some notes\nabout cats")) {
		t.Error("plain text detected as HTML")
	}
}

func TestPlainText(t *testing.T) {
	in := `<html><head><style>p { color: red }</style><script>var cta = 1;</script></head>
<body><p>Tom &amp; Jerry <b>sat</b></p></body></html>`
	got := PlainText([]byte(in))
	if !strings.Contains(got, "Tom & Jerry") || !strings.Contains(got, "sat") {
		t.Fatalf("text lost: %q", got)
	}
	if strings.Contains(got, "cta") || strings.Contains(got, "color") || strings.Contains(got, "<") {
		t.Fatalf("markup survived: %q", got)
	}
}

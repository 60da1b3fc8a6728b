package corpus

import (
	"strings"
	"testing"
)

func TestExtractHTMLText(t *testing.T) {
	tests := []struct {
		name string
		html string
		want string
	}{
		{
			name: "blocks become lines",
			html: "<body><h1>Hello</h1><p>big   data</p><ul><li>one</li><li>two</li></ul></body>",
			want: "Hello\nbig data\none\ntwo\n",
		},
		{
			name: "scripts and styles dropped",
			html: "<body><style>p{}</style><p>kept</p><script>dropped()</script><!-- gone --></body>",
			want: "kept\n",
		},
		{
			name: "inline elements join",
			html: "<body><p>map<b>reduce</b> <i>jobs</i></p></body>",
			want: "mapreduce jobs\n",
		},
		{
			name: "empty page",
			html: "<html><body></body></html>",
			want: "",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ExtractHTMLText([]byte(tt.html), "page.html", HTMLModeText)
			if err != nil {
				t.Fatalf("ExtractHTMLText() error = %v", err)
			}
			if got != tt.want {
				t.Errorf("ExtractHTMLText() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestExtractHTMLText_UnknownMode(t *testing.T) {
	if _, err := ExtractHTMLText([]byte("<p>x</p>"), "x.html", "pdf"); err == nil {
		t.Error("ExtractHTMLText() with unknown mode returned nil error")
	}
}

func TestExtractHTMLText_Article(t *testing.T) {
	paragraph := "Distributed word counting splits a corpus into independent pieces, " +
		"maps every piece to intermediate pairs and reduces each partition in parallel. "
	html := "<html><head><title>Counting Words</title></head><body>" +
		"<nav><a href=\"/\">Home</a></nav>" +
		"<article><h1>Counting Words</h1>" +
		"<p>" + strings.Repeat(paragraph, 3) + "</p>" +
		"<p>" + strings.Repeat(paragraph, 3) + "</p>" +
		"</article></body></html>"

	got, err := ExtractHTMLText([]byte(html), "notes/page one.html", HTMLModeArticle)
	if err != nil {
		t.Fatalf("ExtractHTMLText() error = %v", err)
	}
	if !strings.Contains(got, "Distributed word counting") {
		t.Errorf("article text missing body:\n%s", got)
	}
	if !strings.HasPrefix(got, "Counting Words\n") {
		t.Errorf("article text does not start with the title:\n%s", got)
	}
}

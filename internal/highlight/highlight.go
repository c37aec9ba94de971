// Package highlight renders source code as syntax-highlighted HTML.
package highlight

import (
	"bytes"
	"html/template"

	"github.com/alecthomas/chroma/v2"
	"github.com/alecthomas/chroma/v2/formatters/html"
	"github.com/alecthomas/chroma/v2/lexers"
	"github.com/alecthomas/chroma/v2/styles"
)

// DefaultStyle is the dark style used by snapshot pages.
const DefaultStyle = "monokai"

// Code returns code as highlighted HTML using the lexer for language
// (e.g. "go") and the named chroma style. Token text is escaped by the
// formatter, which is what makes the result safe to embed unescaped. If
// highlighting fails the code is returned escaped inside <pre><code>.
func Code(code, language, style string) template.HTML {
	lexer := lexers.Get(language)
	if lexer == nil {
		lexer = lexers.Analyse(code)
	}
	if lexer == nil {
		lexer = lexers.Fallback
	}
	lexer = chroma.Coalesce(lexer)

	st := styles.Get(style)
	if st == nil {
		st = styles.Fallback
	}

	iterator, err := lexer.Tokenise(nil, code)
	if err != nil {
		return plain(code)
	}

	formatter := html.New(html.WithClasses(false), html.TabWidth(4))

	var buf bytes.Buffer
	if err := formatter.Format(&buf, st, iterator); err != nil {
		return plain(code)
	}
	return template.HTML(buf.String())
}

func plain(code string) template.HTML {
	return template.HTML("<pre><code>" + template.HTMLEscapeString(code) + "</code></pre>")
}

// Package markup converts the HTML that REDCap rich-text fields carry
// into plain text.
package markup

import (
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"github.com/aphrc/proposal-review/internal/ports"
)

// Stripper implements ports.MarkupStripper with the x/net/html tokenizer.
type Stripper struct{}

var _ ports.MarkupStripper = Stripper{}

// StripMarkup returns the text content of s. Entities are decoded, block
// elements and line breaks separate words, script and style content is
// dropped, and whitespace runs collapse to one space.
func (Stripper) StripMarkup(s string) string {
	if !strings.ContainsAny(s, "<&") {
		return collapse(s)
	}

	var b strings.Builder
	z := html.NewTokenizer(strings.NewReader(s))
	skip := 0
	for {
		tt := z.Next()
		switch tt {
		case html.ErrorToken:
			// io.EOF or malformed input; keep whatever text was read.
			return collapse(b.String())
		case html.StartTagToken, html.EndTagToken, html.SelfClosingTagToken:
			name, _ := z.TagName()
			a := atom.Lookup(name)
			if a == atom.Script || a == atom.Style {
				if tt == html.StartTagToken {
					skip++
				} else if tt == html.EndTagToken && skip > 0 {
					skip--
				}
			}
			if breaksText(a) {
				b.WriteByte(' ')
			}
		case html.TextToken:
			if skip == 0 {
				b.Write(z.Text())
			}
		}
	}
}

func breaksText(a atom.Atom) bool {
	switch a {
	case atom.Br, atom.P, atom.Div, atom.Li, atom.Ul, atom.Ol, atom.Tr, atom.Td, atom.Th,
		atom.H1, atom.H2, atom.H3, atom.H4, atom.H5, atom.H6, atom.Blockquote, atom.Hr:
		return true
	}
	return false
}

// collapse trims s and replaces whitespace runs, decoded &nbsp; included,
// with a single space.
func collapse(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

package browser

import (
	"fmt"
	"strings"
)

// Selector describes a DOM lookup.
//
// A selector matches elements with tag Tag ("*" for any). When Text or Attrs
// are present an element must also satisfy at least one of them: its own text
// contains one of the Text variants, or one of the attribute pairs is equal.
// LinkText matches anchors whose normalized text equals it exactly.
type Selector struct {
	Tag      string
	Text     []string
	Attrs    []Attr
	LinkText string
}

// Attr is a name/value pair used as a match alternative.
type Attr struct {
	Name  string
	Value string
}

// Tag selects elements by tag name.
func Tag(name string) Selector {
	return Selector{Tag: strings.ToLower(strings.TrimSpace(name))}
}

// LinkText selects anchors by their exact visible text.
func LinkText(text string) Selector {
	return Selector{Tag: "a", LinkText: text}
}

// WithText adds text-contains alternatives.
func (s Selector) WithText(variants ...string) Selector {
	s.Text = append(append([]string(nil), s.Text...), variants...)
	return s
}

// OrAttr adds an attribute-equality alternative.
func (s Selector) OrAttr(name, value string) Selector {
	s.Attrs = append(append([]Attr(nil), s.Attrs...), Attr{Name: name, Value: value})
	return s
}

func (s Selector) tag() string {
	if s.Tag == "" {
		return "*"
	}
	return s.Tag
}

// XPath compiles the selector to an XPath 1.0 expression.
func (s Selector) XPath() string {
	var preds []string
	if s.LinkText != "" {
		preds = append(preds, "normalize-space(.)="+xpathLiteral(strings.TrimSpace(s.LinkText)))
	}
	var alts []string
	for _, t := range s.Text {
		alts = append(alts, fmt.Sprintf("contains(text(), %s)", xpathLiteral(t)))
	}
	for _, a := range s.Attrs {
		alts = append(alts, fmt.Sprintf("@%s=%s", a.Name, xpathLiteral(a.Value)))
	}
	if len(alts) > 0 {
		preds = append(preds, strings.Join(alts, " or "))
	}

	var b strings.Builder
	b.WriteString("//")
	b.WriteString(s.tag())
	for _, p := range preds {
		b.WriteString("[")
		b.WriteString(p)
		b.WriteString("]")
	}
	return b.String()
}

func (s Selector) String() string {
	return s.XPath()
}

// Matches evaluates the selector against an element described by its tag,
// its own text and an attribute accessor. It mirrors XPath semantics for
// implementations that do not have an XPath engine.
func (s Selector) Matches(tag, text string, attr func(name string) string) bool {
	if t := s.tag(); t != "*" && !strings.EqualFold(t, tag) {
		return false
	}
	if s.LinkText != "" {
		if !strings.EqualFold(tag, "a") || normalizeSpace(text) != strings.TrimSpace(s.LinkText) {
			return false
		}
	}
	if len(s.Text) == 0 && len(s.Attrs) == 0 {
		return true
	}
	for _, v := range s.Text {
		if strings.Contains(text, v) {
			return true
		}
	}
	for _, a := range s.Attrs {
		if attr != nil && attr(a.Name) == a.Value {
			return true
		}
	}
	return false
}

func normalizeSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// xpathLiteral quotes s for XPath 1.0, which has no escape sequences.
func xpathLiteral(s string) string {
	if !strings.Contains(s, "'") {
		return "'" + s + "'"
	}
	if !strings.Contains(s, `"`) {
		return `"` + s + `"`
	}
	parts := strings.Split(s, "'")
	quoted := make([]string, 0, len(parts)*2)
	for i, p := range parts {
		if i > 0 {
			quoted = append(quoted, `"'"`)
		}
		if p != "" {
			quoted = append(quoted, "'"+p+"'")
		}
	}
	if len(quoted) == 1 {
		return quoted[0]
	}
	return "concat(" + strings.Join(quoted, ", ") + ")"
}

package browser

import "strings"

const xpathPrefix = "xpath:"

// SelectorKind says how the expression of a Selector is resolved against the DOM.
type SelectorKind int

const (
	KindCSS SelectorKind = iota
	KindXPath
)

// Selector is one expression for finding an element.
type Selector struct {
	Kind SelectorKind
	Expr string
}

func CSS(expr string) Selector {
	return Selector{Kind: KindCSS, Expr: expr}
}

func XPath(expr string) Selector {
	return Selector{Kind: KindXPath, Expr: expr}
}

// ParseSelector reads the textual form produced by Selector.String, an `xpath:` prefix
// marks XPath and anything else is CSS.
func ParseSelector(raw string) Selector {
	raw = strings.TrimSpace(raw)
	if strings.HasPrefix(raw, xpathPrefix) {
		return XPath(strings.TrimSpace(raw[len(xpathPrefix):]))
	}
	return CSS(raw)
}

func (s Selector) String() string {
	if s.Kind == KindXPath {
		return xpathPrefix + s.Expr
	}
	return s.Expr
}

func (s Selector) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

func (s *Selector) UnmarshalText(text []byte) error {
	*s = ParseSelector(string(text))
	return nil
}

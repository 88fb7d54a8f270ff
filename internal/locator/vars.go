package locator

import (
	"strings"
	"xeroreports/internal/browser"
)

// Var is a template variable substituted into strategies that reference {{Key}}.
//
// In XPath strategies the placeholder becomes a complete string literal (quotes included), so
// templates write `normalize-space(.)={{name}}`. In CSS strategies the placeholder becomes the
// escaped value without quotes, so templates write `[title="{{name}}"]`.
type Var struct {
	Key   string
	Value string
}

func V(key, value string) Var {
	return Var{Key: key, Value: value}
}

func expand(sel browser.Selector, vars []Var) browser.Selector {
	if len(vars) == 0 || !strings.Contains(sel.Expr, "{{") {
		return sel
	}
	expr := sel.Expr
	for _, v := range vars {
		placeholder := "{{" + v.Key + "}}"
		var value string
		if sel.Kind == browser.KindXPath {
			value = xpathLiteral(v.Value)
		} else {
			value = cssEscape(v.Value)
		}
		expr = strings.ReplaceAll(expr, placeholder, value)
	}
	return browser.Selector{Kind: sel.Kind, Expr: expr}
}

// xpathLiteral quotes s for XPath 1.0, which has no escape sequences. A value containing both
// quote kinds is built with concat().
func xpathLiteral(s string) string {
	if !strings.Contains(s, `"`) {
		return `"` + s + `"`
	}
	if !strings.Contains(s, `'`) {
		return `'` + s + `'`
	}
	parts := strings.Split(s, `"`)
	quoted := make([]string, 0, len(parts)*2)
	for i, p := range parts {
		if i > 0 {
			quoted = append(quoted, `'"'`)
		}
		if p != "" {
			quoted = append(quoted, `"`+p+`"`)
		}
	}
	return "concat(" + strings.Join(quoted, ", ") + ")"
}

func cssEscape(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	return strings.ReplaceAll(s, `"`, `\"`)
}

package ingest

import (
	"fmt"
	"strings"

	"github.com/ohler55/ojg/jp"
)

// selectItems runs a JSONPath selector against parsed JSON and returns the
// matched values. A selector that matches a single array yields its
// elements, so "$.items" and "$.items[*]" behave the same.
func selectItems(root any, selector string) ([]any, error) {
	x, err := jp.ParseString(selector)
	if err != nil {
		return nil, fmt.Errorf("invalid jsonpath '%s': %w", selector, err)
	}
	results := x.Get(root)
	if len(results) == 1 {
		if list, ok := results[0].([]any); ok {
			return list, nil
		}
	}
	return results, nil
}

// fieldPath compiles a dotted field name ("meta.parent") into a child
// expression evaluated against a single item.
func fieldPath(name string) jp.Expr {
	parts := strings.Split(name, ".")
	x := jp.C(parts[0])
	for _, p := range parts[1:] {
		x = x.C(p)
	}
	return x
}

// lookup returns the first value at x in item, or nil.
func lookup(item any, x jp.Expr) any {
	return x.First(item)
}

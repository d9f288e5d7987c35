package query

import (
	"fmt"
	"net/url"
	"strconv"
	"testing"

	"github.com/ValentinKolb/dREST/lib/model"
)

// testResolver resolves the fields of a small widget-like type: size is
// numeric, name and tags are strings, everything else is unknown.
type testResolver struct{}

func (testResolver) ResolveQueryField(name string) (string, func(string) (model.Value, error), error) {
	switch name {
	case "size":
		return "size", func(s string) (model.Value, error) {
			i, err := strconv.ParseInt(s, 10, 64)
			if err != nil {
				return model.Value{}, fmt.Errorf("invalid integer %q", s)
			}
			return model.IntValue(i), nil
		}, nil
	case "name", "tags":
		return name, func(s string) (model.Value, error) {
			return model.StringValue(s), nil
		}, nil
	}
	return "", nil, fmt.Errorf("unknown field %s", name)
}

func parse(t *testing.T, raw string) *Query {
	t.Helper()
	params, err := url.ParseQuery(raw)
	if err != nil {
		t.Fatalf("Unexpected error parsing query string: %v", err)
	}
	q, err := Parse(params, 50, testResolver{})
	if err != nil {
		t.Fatalf("Unexpected error parsing %q: %v", raw, err)
	}
	return q
}

func TestParseFilters(t *testing.T) {
	q := parse(t, "feq_name=bolt&fge_size=3")

	if len(q.Terms) != 2 {
		t.Fatalf("Expected 2 terms, got %d", len(q.Terms))
	}
	// parameter names iterate sorted, so the expression is deterministic
	if q.Expr != "WHERE name = :1 AND size >= :2" {
		t.Errorf("Unexpected expression %q", q.Expr)
	}
	if q.Terms[0].Field != "name" || q.Terms[0].Op != OpEq || q.Terms[0].Values[0].Str != "bolt" {
		t.Errorf("Unexpected first term %+v", q.Terms[0])
	}
	if q.Terms[1].Field != "size" || q.Terms[1].Op != OpGe || q.Terms[1].Values[0].Int != 3 {
		t.Errorf("Unexpected second term %+v", q.Terms[1])
	}
	if len(q.Params) != 2 {
		t.Errorf("Expected 2 params, got %d", len(q.Params))
	}
}

func TestParseInFilter(t *testing.T) {
	q := parse(t, "fin_tags=a,b,c")

	if len(q.Terms) != 1 {
		t.Fatalf("Expected 1 term, got %d", len(q.Terms))
	}
	term := q.Terms[0]
	if term.Op != OpIn || len(term.Values) != 3 {
		t.Fatalf("Expected IN term with 3 candidates, got %+v", term)
	}
	if term.Values[2].Str != "c" {
		t.Errorf("Expected comma-split candidates, got %+v", term.Values)
	}
	if q.Expr != "WHERE tags IN :3" {
		t.Errorf("Unexpected expression %q", q.Expr)
	}
}

func TestParseOrdering(t *testing.T) {
	q := parse(t, "ordering=name")
	if q.Order != "name" || q.Descending {
		t.Errorf("Expected ascending name ordering, got %+v", q)
	}

	q = parse(t, "ordering=-size")
	if q.Order != "size" || !q.Descending {
		t.Errorf("Expected descending size ordering, got %+v", q)
	}
}

func TestParsePagination(t *testing.T) {
	q := parse(t, "")
	if q.PageSize != 50 || q.Offset != 0 || q.Cursor != "" || q.HasOffset {
		t.Errorf("Expected defaults, got %+v", q)
	}

	q = parse(t, "page_size=10&offset=20")
	if q.PageSize != 10 || q.Offset != 20 {
		t.Errorf("Expected page size 10 offset 20, got %+v", q)
	}
	if !q.HasOffset {
		t.Errorf("Expected explicit offset to be recorded")
	}

	// page size is clamped to 1..MaxPageSize
	q = parse(t, "page_size=0")
	if q.PageSize != 1 {
		t.Errorf("Expected clamped page size 1, got %d", q.PageSize)
	}
	q = parse(t, "page_size=99999")
	if q.PageSize != MaxPageSize {
		t.Errorf("Expected clamped page size %d, got %d", MaxPageSize, q.PageSize)
	}

	// a cursor-prefixed offset is an opaque token, not an offset
	q = parse(t, "offset=c_abc123")
	if q.Cursor != "abc123" || q.Offset != 0 || q.HasOffset {
		t.Errorf("Expected cursor token, got %+v", q)
	}
}

func TestParseIgnoresUnknownParams(t *testing.T) {
	q := parse(t, "foo=bar&include_props=name&callback=cb")
	if len(q.Terms) != 0 {
		t.Errorf("Expected no filter terms, got %+v", q.Terms)
	}
}

func TestParseErrors(t *testing.T) {
	for name, raw := range map[string]string{
		"UnknownField":   "feq_bogus=1",
		"BadOperand":     "feq_size=ten",
		"BadInOperand":   "fin_size=1,two,3",
		"BadOffset":      "offset=-5",
		"BadPageSize":    "page_size=abc",
		"BadOrderField":  "ordering=bogus",
	} {
		t.Run(name, func(t *testing.T) {
			params, _ := url.ParseQuery(raw)
			if _, err := Parse(params, 50, testResolver{}); err == nil {
				t.Errorf("Expected an error for %q", raw)
			}
		})
	}
}

package query

import (
	"fmt"
	"net/url"
	"sort"
	"strconv"
	"strings"

	"github.com/ValentinKolb/dREST/lib/model"
	"github.com/lni/dragonboat/v4/logger"
)

var Logger = logger.GetLogger("query")

const (
	// OffsetParam carries either a numeric offset or, with the cursor
	// prefix, an opaque continuation token.
	OffsetParam   = "offset"
	PageSizeParam = "page_size"
	OrderingParam = "ordering"

	// CursorPrefix marks an offset parameter value as a cursor token.
	CursorPrefix = "c_"

	// MaxPageSize bounds the effective page size of any query.
	MaxPageSize = 1000
	// DefaultPageSize applies when the caller does not ask for one.
	DefaultPageSize = 50

	queryPrefix = "WHERE "
	queryJoin   = " AND "
)

// Op is a filter comparison operator.
type Op string

const (
	OpEq Op = "="
	OpLt Op = "<"
	OpGt Op = ">"
	OpLe Op = "<="
	OpGe Op = ">="
	OpNe Op = "!="
	OpIn Op = "IN"
)

// filter parameter prefixes, e.g. feq_name=bolt
var opsByPrefix = map[string]Op{
	"feq_": OpEq,
	"flt_": OpLt,
	"fgt_": OpGt,
	"fle_": OpLe,
	"fge_": OpGe,
	"fne_": OpNe,
	"fin_": OpIn,
}

// parameters consumed elsewhere in the request pipeline; never
// reported as unexpected
var knownParams = map[string]bool{
	OffsetParam:   true,
	PageSizeParam: true,
	OrderingParam: true,
	"type":          true,
	"blobinfo":      true,
	"include_props": true,
	"callback":      true,
}

// --------------------------------------------------------------------------
// Query
// --------------------------------------------------------------------------

// Term is one conjunction term of a filter expression. Values holds a
// single operand, except for IN terms where it holds the element-wise
// containment candidates.
type Term struct {
	Field  string
	Op     Op
	Values []model.Value
}

// Query is the store-agnostic result of parsing a request's query
// string: a positional-placeholder filter expression with its
// parameter list (and the equivalent structured terms), ordering and
// pagination state. Offset and Cursor are mutually exclusive; HasOffset
// records that the caller supplied the offset explicitly, which pins
// the query to offset pagination.
type Query struct {
	Expr   string
	Params []model.Value
	Terms  []Term

	Order      string
	Descending bool

	Offset    int
	HasOffset bool
	Cursor    string
	PageSize  int
}

// Resolver maps wire property names to their store query field and
// operand coercion. Implemented by the entity marshaler.
type Resolver interface {
	// ResolveQueryField returns the store field name to filter on and
	// a coercion for filter operands. Unknown or unqueryable
	// properties are an error.
	ResolveQueryField(name string) (field string, coerce func(string) (model.Value, error), err error)
}

// --------------------------------------------------------------------------
// Parsing
// --------------------------------------------------------------------------

// Parse builds a Query from request query parameters. Unrecognized
// parameters are ignored with a warning; malformed values of
// recognized parameters are an error.
func Parse(params url.Values, defaultPageSize int, r Resolver) (*Query, error) {
	q := &Query{PageSize: defaultPageSize}
	if q.PageSize <= 0 {
		q.PageSize = DefaultPageSize
	}

	// sorted iteration keeps the generated expression deterministic
	names := make([]string, 0, len(params))
	for name := range params {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		switch name {
		case OffsetParam:
			if err := q.parseOffset(params.Get(name)); err != nil {
				return nil, err
			}
			continue
		case PageSizeParam:
			size, err := strconv.Atoi(params.Get(name))
			if err != nil {
				return nil, fmt.Errorf("invalid page size %q", params.Get(name))
			}
			q.PageSize = min(max(size, 1), MaxPageSize)
			continue
		case OrderingParam:
			if err := q.parseOrdering(params.Get(name), r); err != nil {
				return nil, err
			}
			continue
		}

		op, field, ok := matchFilterParam(name)
		if !ok {
			if !knownParams[name] {
				Logger.Warningf("ignoring unexpected query param %s", name)
			}
			continue
		}

		if err := q.addFilter(field, op, params[name], r); err != nil {
			return nil, err
		}
	}

	return q, nil
}

func (q *Query) parseOffset(value string) error {
	if token, ok := strings.CutPrefix(value, CursorPrefix); ok {
		q.Cursor = token
		return nil
	}
	offset, err := strconv.Atoi(value)
	if err != nil || offset < 0 {
		return fmt.Errorf("invalid offset %q", value)
	}
	q.Offset = offset
	q.HasOffset = true
	return nil
}

func (q *Query) parseOrdering(value string, r Resolver) error {
	name, descending := strings.CutPrefix(value, "-")
	field, _, err := r.ResolveQueryField(name)
	if err != nil {
		return err
	}
	q.Order = field
	q.Descending = descending
	return nil
}

// addFilter appends one conjunction term per supplied parameter value.
// Multi-valued IN parameters are split on commas into containment
// candidate lists.
func (q *Query) addFilter(name string, op Op, rawValues []string, r Resolver) error {
	field, coerce, err := r.ResolveQueryField(name)
	if err != nil {
		return err
	}

	for _, raw := range rawValues {
		var values []model.Value
		if op == OpIn {
			for _, part := range strings.Split(raw, ",") {
				v, err := coerce(part)
				if err != nil {
					return err
				}
				values = append(values, v)
			}
		} else {
			v, err := coerce(raw)
			if err != nil {
				return err
			}
			values = []model.Value{v}
		}

		q.Terms = append(q.Terms, Term{Field: field, Op: op, Values: values})
		q.Params = append(q.Params, values...)

		sub := fmt.Sprintf("%s %s :%d", field, op, len(q.Params))
		if q.Expr == "" {
			q.Expr = queryPrefix + sub
		} else {
			q.Expr += queryJoin + sub
		}
	}
	return nil
}

func matchFilterParam(name string) (Op, string, bool) {
	if len(name) < 5 {
		return "", "", false
	}
	op, ok := opsByPrefix[name[:4]]
	if !ok {
		return "", "", false
	}
	return op, name[4:], true
}

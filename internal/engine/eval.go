package engine

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/araddon/dateparse"

	"github.com/SimonWaldherr/tinyedit/internal/storage"
)

// value is either a column-shaped vector (vec != nil), a scalar or a list.
type value struct {
	vec    []any
	typ    storage.ColType
	scalar any
	list   []any
	isList bool
}

func (v value) isVec() bool { return v.vec != nil }

func (v value) at(i int) any {
	if v.vec != nil {
		return v.vec[i]
	}
	return v.scalar
}

func (v value) describe() string {
	switch {
	case v.isList:
		return "list"
	case v.isVec():
		return v.typ.String() + " column"
	}
	return kindOf(v.scalar)
}

// Query parses and evaluates expr against t.
func Query(expr string, t *storage.Table) (storage.Mask, error) {
	e, err := Parse(expr)
	if err != nil {
		return nil, err
	}
	return Eval(e, t)
}

// Eval evaluates a parsed expression into a row mask. The result must be a
// boolean column without missing values or a boolean scalar (True selects
// every row).
func Eval(e Expr, t *storage.Table) (storage.Mask, error) {
	if t == nil {
		return nil, fmt.Errorf("eval: nil table")
	}
	ev := &evaluator{t: t, n: t.Len()}
	v, err := ev.eval(e)
	if err != nil {
		return nil, err
	}
	return ev.toMask(v)
}

type evaluator struct {
	t *storage.Table
	n int
}

func (ev *evaluator) toMask(v value) (storage.Mask, error) {
	if !v.isVec() {
		b, ok := v.scalar.(bool)
		if !ok || v.isList {
			return nil, fmt.Errorf("%w: got %s", ErrNotBoolean, v.describe())
		}
		return storage.NewMask(ev.n, b), nil
	}
	if v.typ != storage.BoolType {
		return nil, fmt.Errorf("%w: got %s", ErrNotBoolean, v.describe())
	}
	m := make(storage.Mask, ev.n)
	for i, c := range v.vec {
		b, ok := c.(bool)
		if !ok {
			return nil, fmt.Errorf("%w (row %d)", ErrNullMask, i)
		}
		m[i] = b
	}
	return m, nil
}

func (ev *evaluator) eval(e Expr) (value, error) {
	switch ex := e.(type) {
	case *Literal:
		return value{scalar: ex.Val}, nil
	case *List:
		out := value{isList: true, list: make([]any, 0, len(ex.Items))}
		for _, it := range ex.Items {
			v, err := ev.eval(it)
			if err != nil {
				return value{}, err
			}
			if v.isVec() || v.isList {
				return value{}, fmt.Errorf("%w: list items must be constants", ErrType)
			}
			out.list = append(out.list, v.scalar)
		}
		return out, nil
	case *Ident:
		col, ok := ev.t.Column(ex.Name)
		if !ok {
			return value{}, fmt.Errorf("%w: %s", ErrUnknownColumn, ex.Name)
		}
		return value{vec: col.Values, typ: col.Type}, nil
	case *Unary:
		return ev.evalUnary(ex)
	case *Binary:
		return ev.evalBinary(ex)
	case *In:
		l, err := ev.eval(ex.Expr)
		if err != nil {
			return value{}, err
		}
		r, err := ev.eval(ex.List)
		if err != nil {
			return value{}, err
		}
		return ev.membership(l, r, ex.Negate)
	case *Method:
		return ev.evalMethod(ex)
	}
	return value{}, fmt.Errorf("%w: unsupported expression %T", ErrSyntax, e)
}

// mapCells applies f row by row, broadcasting scalars. Two scalars yield a
// scalar.
func (ev *evaluator) mapCells(l, r value, typ storage.ColType, f func(a, b any) (any, error)) (value, error) {
	if !l.isVec() && !r.isVec() {
		out, err := f(l.scalar, r.scalar)
		return value{scalar: out}, err
	}
	out := make([]any, ev.n)
	for i := 0; i < ev.n; i++ {
		v, err := f(l.at(i), r.at(i))
		if err != nil {
			return value{}, err
		}
		out[i] = v
	}
	return value{vec: out, typ: typ}, nil
}

func (ev *evaluator) evalUnary(ex *Unary) (value, error) {
	v, err := ev.eval(ex.Expr)
	if err != nil {
		return value{}, err
	}
	switch ex.Op {
	case "not":
		if v.isVec() {
			return value{}, ErrAmbiguousTruth
		}
		return value{scalar: !truthy(v.scalar)}, nil
	case "~":
		if v.isVec() && v.typ != storage.BoolType {
			return value{}, fmt.Errorf("%w: ~ on %s", ErrType, v.describe())
		}
		return ev.mapCells(v, value{}, storage.BoolType, func(a, _ any) (any, error) {
			if a == nil {
				return nil, nil
			}
			b, ok := a.(bool)
			if !ok {
				return nil, fmt.Errorf("%w: ~ on %s", ErrType, kindOf(a))
			}
			return !b, nil
		})
	case "-", "+":
		return ev.mapCells(v, value{}, numericResultType(v, value{}), func(a, _ any) (any, error) {
			if storage.IsNull(a) {
				return nil, nil
			}
			switch x := a.(type) {
			case int64:
				if ex.Op == "-" {
					return -x, nil
				}
				return x, nil
			}
			f, ok := numeric(a)
			if !ok {
				return nil, fmt.Errorf("%w: unary %s on %s", ErrType, ex.Op, kindOf(a))
			}
			if ex.Op == "-" {
				return -f, nil
			}
			return f, nil
		})
	}
	return value{}, fmt.Errorf("%w: unknown unary operator %s", ErrSyntax, ex.Op)
}

func (ev *evaluator) evalBinary(ex *Binary) (value, error) {
	l, err := ev.eval(ex.Left)
	if err != nil {
		return value{}, err
	}
	switch ex.Op {
	case "and", "or":
		if l.isVec() {
			return value{}, ErrAmbiguousTruth
		}
		if (ex.Op == "and") != truthy(l.scalar) {
			return l, nil
		}
		return ev.eval(ex.Right)
	}
	r, err := ev.eval(ex.Right)
	if err != nil {
		return value{}, err
	}
	switch ex.Op {
	case "&", "|":
		return ev.logical(ex.Op, l, r)
	case "==", "!=", "<", "<=", ">", ">=":
		if l.isList || r.isList {
			return value{}, fmt.Errorf("%w: cannot compare with a list, use in", ErrType)
		}
		return ev.mapCells(l, r, storage.BoolType, func(a, b any) (any, error) {
			return compareCells(ex.Op, a, b)
		})
	case "+", "-", "*", "/", "%":
		return ev.mapCells(l, r, numericResultType(l, r), func(a, b any) (any, error) {
			return arith(ex.Op, a, b)
		})
	}
	return value{}, fmt.Errorf("%w: unknown operator %s", ErrSyntax, ex.Op)
}

func (ev *evaluator) logical(op string, l, r value) (value, error) {
	for _, v := range []value{l, r} {
		if v.isVec() && v.typ != storage.BoolType {
			return value{}, fmt.Errorf("%w: %s with %s", ErrType, op, v.describe())
		}
	}
	return ev.mapCells(l, r, storage.BoolType, func(a, b any) (any, error) {
		ta, err := boolTri(a)
		if err != nil {
			return nil, err
		}
		tb, err := boolTri(b)
		if err != nil {
			return nil, err
		}
		if op == "&" {
			return triToValue(triAnd(ta, tb)), nil
		}
		return triToValue(triOr(ta, tb)), nil
	})
}

func (ev *evaluator) membership(l, r value, negate bool) (value, error) {
	if !r.isList {
		return value{}, fmt.Errorf("%w: in expects a list, got %s", ErrType, r.describe())
	}
	return ev.mapCells(l, value{}, storage.BoolType, func(a, _ any) (any, error) {
		hit := false
		if !storage.IsNull(a) {
			for _, item := range r.list {
				if eq, _ := compareCells("==", a, item); eq == true {
					hit = true
					break
				}
			}
		}
		return hit != negate, nil
	})
}

// ------------------------------ methods ------------------------------

func (ev *evaluator) evalMethod(m *Method) (value, error) {
	recv, err := ev.eval(m.Recv)
	if err != nil {
		return value{}, err
	}
	// astype(str) names a type, not a column.
	if m.Accessor == "" && m.Name == "astype" && len(m.Args) == 1 {
		if id, ok := m.Args[0].(*Ident); ok {
			return ev.astype(recv, id.Name)
		}
	}
	args := make([]value, len(m.Args))
	for i, a := range m.Args {
		if args[i], err = ev.eval(a); err != nil {
			return value{}, err
		}
	}
	kw := map[string]value{}
	for k, a := range m.Kwargs {
		if kw[k], err = ev.eval(a); err != nil {
			return value{}, err
		}
	}
	if m.Accessor == "str" {
		if !recv.isVec() || !recv.typ.IsText() {
			return value{}, fmt.Errorf("%w (got %s)", ErrStrAccessor, recv.describe())
		}
		return ev.strMethod(recv, m.Name, args, kw)
	}
	switch m.Name {
	case "astype":
		if len(args) != 1 {
			return value{}, fmt.Errorf("%w: astype takes one argument", ErrSyntax)
		}
		name, ok := args[0].scalar.(string)
		if !ok {
			return value{}, fmt.Errorf("%w: astype expects a type name", ErrType)
		}
		return ev.astype(recv, name)
	case "isin":
		if len(args) != 1 {
			return value{}, fmt.Errorf("%w: isin takes one argument", ErrSyntax)
		}
		return ev.membership(recv, args[0], false)
	case "isna", "isnull", "notna", "notnull":
		want := m.Name == "isna" || m.Name == "isnull"
		return ev.mapCells(recv, value{}, storage.BoolType, func(a, _ any) (any, error) {
			return storage.IsNull(a) == want, nil
		})
	}
	return value{}, fmt.Errorf("%w: unknown method %s", ErrSyntax, m.Name)
}

func (ev *evaluator) astype(v value, name string) (value, error) {
	switch strings.ToLower(name) {
	case "string", "str", "object":
		return ev.mapCells(v, value{}, storage.TextType, func(a, _ any) (any, error) {
			if storage.IsNull(a) {
				return nil, nil
			}
			return storage.FormatValue(a), nil
		})
	case "int", "int64", "int32":
		return ev.mapCells(v, value{}, storage.IntType, func(a, _ any) (any, error) {
			if storage.IsNull(a) {
				return nil, fmt.Errorf("%w: cannot convert missing value to int", ErrType)
			}
			if s, ok := a.(string); ok {
				n, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
				if err != nil {
					return nil, fmt.Errorf("%w: invalid int %q", ErrType, s)
				}
				return n, nil
			}
			f, ok := storage.ToFloat(a)
			if !ok {
				return nil, fmt.Errorf("%w: cannot convert %s to int", ErrType, kindOf(a))
			}
			return int64(f), nil
		})
	case "float", "float64", "float32":
		return ev.mapCells(v, value{}, storage.Float64Type, func(a, _ any) (any, error) {
			if storage.IsNull(a) {
				return nil, nil
			}
			f, ok := storage.ToFloat(a)
			if !ok {
				return nil, fmt.Errorf("%w: cannot convert %q to float", ErrType, storage.FormatValue(a))
			}
			return f, nil
		})
	case "bool":
		return ev.mapCells(v, value{}, storage.BoolType, func(a, _ any) (any, error) {
			return truthy(a), nil
		})
	}
	return value{}, fmt.Errorf("%w: unsupported astype target %q", ErrType, name)
}

// strCell returns the text of a cell in a text column. Non-string cells in
// mixed columns count as missing.
func strCell(a any) (string, bool) {
	s, ok := a.(string)
	return s, ok
}

func (ev *evaluator) strMethod(recv value, name string, args []value, kw map[string]value) (value, error) {
	naVal, naSet := kw["na"]
	na := func() any {
		if naSet {
			return naVal.scalar
		}
		return nil
	}
	predicate := func(test func(string) bool) (value, error) {
		return ev.mapCells(recv, value{}, storage.BoolType, func(a, _ any) (any, error) {
			s, ok := strCell(a)
			if !ok {
				return na(), nil
			}
			return test(s), nil
		})
	}
	transform := func(typ storage.ColType, f func(string) any) (value, error) {
		return ev.mapCells(recv, value{}, typ, func(a, _ any) (any, error) {
			s, ok := strCell(a)
			if !ok {
				return nil, nil
			}
			return f(s), nil
		})
	}
	switch name {
	case "contains", "match", "fullmatch":
		pat, err := stringArg(name, args, 0)
		if err != nil {
			return value{}, err
		}
		useRegex := name != "contains" || !isFalse(kw["regex"])
		if !useRegex {
			if isFalse(kw["case"]) {
				lp := strings.ToLower(pat)
				return predicate(func(s string) bool { return strings.Contains(strings.ToLower(s), lp) })
			}
			return predicate(func(s string) bool { return strings.Contains(s, pat) })
		}
		rx, err := compileFor(name, pat, isFalse(kw["case"]), kw["flags"])
		if err != nil {
			return value{}, err
		}
		return predicate(rx.MatchString)
	case "startswith", "endswith":
		prefixes, err := prefixArgs(name, args)
		if err != nil {
			return value{}, err
		}
		fn := strings.HasPrefix
		if name == "endswith" {
			fn = strings.HasSuffix
		}
		return predicate(func(s string) bool {
			for _, p := range prefixes {
				if fn(s, p) {
					return true
				}
			}
			return false
		})
	case "lower":
		return transform(storage.TextType, func(s string) any { return strings.ToLower(s) })
	case "upper":
		return transform(storage.TextType, func(s string) any { return strings.ToUpper(s) })
	case "strip", "lstrip", "rstrip":
		cut := " \t\r\n\v\f"
		if len(args) > 0 {
			if c, ok := args[0].scalar.(string); ok {
				cut = c
			}
		}
		return transform(storage.TextType, func(s string) any {
			switch name {
			case "lstrip":
				return strings.TrimLeft(s, cut)
			case "rstrip":
				return strings.TrimRight(s, cut)
			}
			return strings.Trim(s, cut)
		})
	case "len":
		return transform(storage.IntType, func(s string) any { return int64(len([]rune(s))) })
	case "replace":
		pat, err := stringArg(name, args, 0)
		if err != nil {
			return value{}, err
		}
		repl, err := stringArg(name, args, 1)
		if err != nil {
			return value{}, err
		}
		if r, ok := kw["regex"]; !ok || isFalse(r) {
			return transform(storage.TextType, func(s string) any { return strings.ReplaceAll(s, pat, repl) })
		}
		rx, err := compileFor("contains", pat, isFalse(kw["case"]), kw["flags"])
		if err != nil {
			return value{}, err
		}
		return transform(storage.TextType, func(s string) any { return rx.ReplaceAllString(s, repl) })
	}
	return value{}, fmt.Errorf("%w: unknown string method %s", ErrSyntax, name)
}

func stringArg(method string, args []value, i int) (string, error) {
	if i >= len(args) {
		return "", fmt.Errorf("%w: %s missing argument %d", ErrSyntax, method, i+1)
	}
	s, ok := args[i].scalar.(string)
	if !ok || args[i].isVec() {
		return "", fmt.Errorf("%w: %s expects a string argument", ErrType, method)
	}
	return s, nil
}

func prefixArgs(method string, args []value) ([]string, error) {
	if len(args) == 0 {
		return nil, fmt.Errorf("%w: %s missing argument", ErrSyntax, method)
	}
	if args[0].isList {
		out := make([]string, 0, len(args[0].list))
		for _, it := range args[0].list {
			s, ok := it.(string)
			if !ok {
				return nil, fmt.Errorf("%w: %s expects strings", ErrType, method)
			}
			out = append(out, s)
		}
		return out, nil
	}
	s, err := stringArg(method, args, 0)
	if err != nil {
		return nil, err
	}
	return []string{s}, nil
}

// re module flag bits accepted through flags=.
const (
	reIgnoreCase = 2
	reMultiline  = 8
	reDotAll     = 16
)

func compileFor(method, pat string, ignoreCase bool, flags value) (*regexp.Regexp, error) {
	prefix := ""
	if n, ok := flags.scalar.(int64); ok {
		if n&reIgnoreCase != 0 {
			ignoreCase = true
		}
		if n&reMultiline != 0 {
			prefix += "(?m)"
		}
		if n&reDotAll != 0 {
			prefix += "(?s)"
		}
	}
	if ignoreCase {
		prefix = "(?i)" + prefix
	}
	src := pat
	switch method {
	case "match":
		src = `^(?:` + pat + `)`
	case "fullmatch":
		src = `^(?:` + pat + `)$`
	}
	rx, err := regexp.Compile(prefix + src)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid pattern %q: %v", ErrSyntax, pat, err)
	}
	return rx, nil
}

func isFalse(v value) bool {
	b, ok := v.scalar.(bool)
	return ok && !v.isVec() && !b
}

// ------------------------------ helpers ------------------------------

func numeric(v any) (float64, bool) {
	switch x := v.(type) {
	case int:
		return float64(x), true
	case int32:
		return float64(x), true
	case int64:
		return float64(x), true
	case float32:
		return float64(x), true
	case float64:
		return x, true
	}
	return 0, false
}

func truthy(v any) bool {
	switch x := v.(type) {
	case nil:
		return false
	case bool:
		return x
	case int64:
		return x != 0
	case float64:
		return x != 0 && !math.IsNaN(x)
	case string:
		return x != ""
	}
	return true
}

func kindOf(v any) string {
	switch v.(type) {
	case nil:
		return "None"
	case bool:
		return "bool"
	case int, int32, int64:
		return "int"
	case float32, float64:
		return "float"
	case string:
		return "str"
	case time.Time:
		return "datetime"
	}
	return fmt.Sprintf("%T", v)
}

func numericResultType(l, r value) storage.ColType {
	if l.typ == storage.IntType && (r.typ == storage.IntType || !r.isVec()) {
		if _, isFloat := r.scalar.(float64); !isFloat {
			return storage.IntType
		}
	}
	return storage.Float64Type
}

func arith(op string, a, b any) (any, error) {
	if storage.IsNull(a) || storage.IsNull(b) {
		return nil, nil
	}
	if sa, ok := a.(string); ok {
		if sb, ok := b.(string); ok && op == "+" {
			return sa + sb, nil
		}
		return nil, fmt.Errorf("%w: %s between %s and %s", ErrType, op, kindOf(a), kindOf(b))
	}
	ia, aInt := a.(int64)
	ib, bInt := b.(int64)
	if aInt && bInt && op != "/" {
		switch op {
		case "+":
			return ia + ib, nil
		case "-":
			return ia - ib, nil
		case "*":
			return ia * ib, nil
		case "%":
			if ib == 0 {
				return nil, nil
			}
			return ia % ib, nil
		}
	}
	fa, ok1 := numeric(a)
	fb, ok2 := numeric(b)
	if !ok1 || !ok2 {
		return nil, fmt.Errorf("%w: %s between %s and %s", ErrType, op, kindOf(a), kindOf(b))
	}
	switch op {
	case "+":
		return fa + fb, nil
	case "-":
		return fa - fb, nil
	case "*":
		return fa * fb, nil
	case "/":
		if fb == 0 {
			if fa == 0 {
				return math.NaN(), nil
			}
			return math.Inf(int(math.Copysign(1, fa))), nil
		}
		return fa / fb, nil
	case "%":
		if fb == 0 {
			return nil, nil
		}
		return math.Mod(fa, fb), nil
	}
	return nil, fmt.Errorf("%w: unknown arithmetic operator %s", ErrSyntax, op)
}

// compareCells compares two cells. Comparisons with a missing value are
// false except !=. Equality across unrelated types is false; ordering across
// them is an error.
func compareCells(op string, a, b any) (any, error) {
	if storage.IsNull(a) || storage.IsNull(b) {
		return op == "!=", nil
	}
	c, err := order(a, b)
	if err != nil {
		switch op {
		case "==":
			return false, nil
		case "!=":
			return true, nil
		}
		return nil, fmt.Errorf("%w: '%s' between %s and %s", ErrIncomparable, op, kindOf(a), kindOf(b))
	}
	switch op {
	case "==":
		return c == 0, nil
	case "!=":
		return c != 0, nil
	case "<":
		return c < 0, nil
	case "<=":
		return c <= 0, nil
	case ">":
		return c > 0, nil
	case ">=":
		return c >= 0, nil
	}
	return nil, fmt.Errorf("%w: unknown comparison %s", ErrSyntax, op)
}

func order(a, b any) (int, error) {
	if ab, ok := a.(bool); ok {
		if _, isNum := numeric(b); isNum {
			a = boolNum(ab)
		}
	}
	if bb, ok := b.(bool); ok {
		if _, isNum := numeric(a); isNum {
			b = boolNum(bb)
		}
	}
	if fa, ok := numeric(a); ok {
		if fb, ok := numeric(b); ok {
			return cmpFloat(fa, fb), nil
		}
		return 0, ErrIncomparable
	}
	switch x := a.(type) {
	case string:
		if y, ok := b.(string); ok {
			return strings.Compare(x, y), nil
		}
		if y, ok := b.(time.Time); ok {
			tx, err := dateparse.ParseIn(x, time.UTC)
			if err != nil {
				return 0, ErrIncomparable
			}
			return tx.Compare(y), nil
		}
	case bool:
		if y, ok := b.(bool); ok {
			return cmpFloat(boolNum(x), boolNum(y)), nil
		}
	case time.Time:
		if y, ok := b.(time.Time); ok {
			return x.Compare(y), nil
		}
		if y, ok := b.(string); ok {
			ty, err := dateparse.ParseIn(y, time.UTC)
			if err != nil {
				return 0, ErrIncomparable
			}
			return x.Compare(ty), nil
		}
	}
	return 0, ErrIncomparable
}

func boolNum(b bool) float64 {
	if b {
		return 1
	}
	return 0
}

func cmpFloat(a, b float64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}

// tri-state
const (
	tvFalse   = 0
	tvTrue    = 1
	tvUnknown = 2
)

func boolTri(v any) (int, error) {
	switch x := v.(type) {
	case nil:
		return tvUnknown, nil
	case bool:
		if x {
			return tvTrue, nil
		}
		return tvFalse, nil
	}
	return tvUnknown, fmt.Errorf("%w: boolean operator on %s", ErrType, kindOf(v))
}

func triToValue(t int) any {
	switch t {
	case tvTrue:
		return true
	case tvFalse:
		return false
	}
	return nil
}

func triAnd(a, b int) int {
	if a == tvFalse || b == tvFalse {
		return tvFalse
	}
	if a == tvTrue && b == tvTrue {
		return tvTrue
	}
	return tvUnknown
}

func triOr(a, b int) int {
	if a == tvTrue || b == tvTrue {
		return tvTrue
	}
	if a == tvFalse && b == tvFalse {
		return tvFalse
	}
	return tvUnknown
}

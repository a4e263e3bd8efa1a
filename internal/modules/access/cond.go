package access

import (
	"fmt"
	"time"

	"gorm.io/gorm/clause"
)

// Row exposes the columns a policy inspects. Column returns nil for SQL
// NULL; values are int64, string, bool or time.Time. Related returns the
// values of one column across a child table.
type Row interface {
	Column(name string) any
	Related(table string) []any
}

// Cond is a policy predicate with two evaluation mechanisms: Eval checks a
// record already in hand and Build renders the same predicate as a SQL
// condition for list queries.
type Cond interface {
	Eval(r Row) bool
	Build() clause.Expression
}

func col(name string) clause.Column {
	return clause.Column{Table: clause.CurrentTable, Name: name}
}

type allCond struct{}

func (allCond) Eval(Row) bool            { return true }
func (allCond) Build() clause.Expression { return clause.Expr{SQL: "1 = 1"} }

type noneCond struct{}

func (noneCond) Eval(Row) bool            { return false }
func (noneCond) Build() clause.Expression { return clause.Expr{SQL: "1 = 0"} }

// All matches every row.
func All() Cond { return allCond{} }

// None matches no row.
func None() Cond { return noneCond{} }

type eqCond struct {
	column string
	value  any
}

func (c eqCond) Eval(r Row) bool {
	v := r.Column(c.column)
	return v != nil && v == c.value
}

func (c eqCond) Build() clause.Expression {
	return clause.Eq{Column: col(c.column), Value: c.value}
}

// Eq matches column = value. value must already be normalized.
func Eq(column string, value any) Cond { return eqCond{column: column, value: normalize(value)} }

type nullCond struct{ column string }

func (c nullCond) Eval(r Row) bool { return r.Column(c.column) == nil }

func (c nullCond) Build() clause.Expression {
	return clause.Eq{Column: col(c.column), Value: nil}
}

// IsNull matches column IS NULL.
func IsNull(column string) Cond { return nullCond{column: column} }

type inCond struct {
	column string
	values []any
}

func (c inCond) Eval(r Row) bool {
	v := r.Column(c.column)
	if v == nil {
		return false
	}
	for _, want := range c.values {
		if v == want {
			return true
		}
	}
	return false
}

func (c inCond) Build() clause.Expression {
	return clause.IN{Column: col(c.column), Values: c.values}
}

// In matches column IN (values...).
func In(column string, values ...any) Cond {
	norm := make([]any, len(values))
	for i, v := range values {
		norm[i] = normalize(v)
	}
	return inCond{column: column, values: norm}
}

type notBeforeCond struct {
	column string
	at     time.Time
}

func (c notBeforeCond) Eval(r Row) bool {
	v, ok := r.Column(c.column).(time.Time)
	return ok && !v.Before(c.at)
}

func (c notBeforeCond) Build() clause.Expression {
	return clause.Gte{Column: col(c.column), Value: c.at}
}

// NotBefore matches column >= at.
func NotBefore(column string, at time.Time) Cond { return notBeforeCond{column: column, at: at} }

type relatedCond struct {
	parent string
	table  string
	fk     string
	column string
	value  any
}

func (c relatedCond) Eval(r Row) bool {
	for _, v := range r.Related(c.table) {
		if normalize(v) == c.value {
			return true
		}
	}
	return false
}

func (c relatedCond) Build() clause.Expression {
	return clause.Expr{
		SQL: fmt.Sprintf(
			"EXISTS (SELECT 1 FROM %[2]s WHERE %[2]s.%[3]s = %[1]s.id AND %[2]s.%[4]s = ?)",
			c.parent, c.table, c.fk, c.column,
		),
		Vars: []any{c.value},
	}
}

// Related matches when a child row in table (joined on fk = parent.id)
// has column = value.
func Related(parent, table, fk, column string, value any) Cond {
	return relatedCond{parent: parent, table: table, fk: fk, column: column, value: normalize(value)}
}

type orCond []Cond

func (c orCond) Eval(r Row) bool {
	for _, sub := range c {
		if sub.Eval(r) {
			return true
		}
	}
	return false
}

func (c orCond) Build() clause.Expression {
	exprs := make([]clause.Expression, len(c))
	for i, sub := range c {
		exprs[i] = sub.Build()
	}
	return clause.Or(exprs...)
}

type andCond []Cond

func (c andCond) Eval(r Row) bool {
	for _, sub := range c {
		if !sub.Eval(r) {
			return false
		}
	}
	return true
}

func (c andCond) Build() clause.Expression {
	exprs := make([]clause.Expression, len(c))
	for i, sub := range c {
		exprs[i] = sub.Build()
	}
	return clause.And(exprs...)
}

func Or(conds ...Cond) Cond  { return orCond(conds) }
func And(conds ...Cond) Cond { return andCond(conds) }

// normalize maps named string/int types onto their base types so values
// coming from rows and from policies compare equal.
func normalize(v any) any {
	switch x := v.(type) {
	case nil:
		return nil
	case int:
		return int64(x)
	case int64:
		return x
	case *int64:
		if x == nil {
			return nil
		}
		return *x
	case string:
		return x
	case fmt.Stringer:
		return x.String()
	case bool:
		return x
	case time.Time:
		return x
	default:
		return fmt.Sprint(x)
	}
}

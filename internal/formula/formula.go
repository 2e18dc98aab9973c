package formula

import (
	"strings"
	"time"
)

// Expr is a boolean or value expression in the record store's formula language.
type Expr string

// Field references a column, e.g. {Status}.
func Field(name string) Expr {
	name = strings.ReplaceAll(name, "}", "")
	return Expr("{" + name + "}")
}

// Str quotes a string literal.
func Str(s string) Expr {
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, `'`, `\'`)
	return Expr("'" + s + "'")
}

// Eq is an equality predicate between a field and a literal.
func Eq(field, value string) Expr {
	return Expr(string(Field(field)) + " = " + string(Str(value)))
}

// EqFold is a case-insensitive equality predicate.
func EqFold(field, value string) Expr {
	return Expr("LOWER(" + string(Field(field)) + ") = LOWER(" + string(Str(value)) + ")")
}

// Contains matches records whose linked-record or multi-value field contains value.
func Contains(field, value string) Expr {
	return Expr("FIND(" + string(Str(value)) + ", ARRAYJOIN(" + string(Field(field)) + ")) > 0")
}

// Search is a case-insensitive substring match over a text field.
func Search(field, text string) Expr {
	return Expr("SEARCH(LOWER(" + string(Str(text)) + "), LOWER(" + string(Field(field)) + ")) > 0")
}

// OnOrAfter matches a date field that is not before day.
func OnOrAfter(field string, day time.Time) Expr {
	return Expr("NOT(IS_BEFORE(" + string(Field(field)) + ", DATETIME_PARSE(" + string(Str(day.Format("2006-01-02"))) + ")))")
}

// Before matches a date field strictly before day.
func Before(field string, day time.Time) Expr {
	return Expr("IS_BEFORE(" + string(Field(field)) + ", DATETIME_PARSE(" + string(Str(day.Format("2006-01-02"))) + "))")
}

// Not negates an expression.
func Not(e Expr) Expr {
	if e == "" {
		return ""
	}
	return "NOT(" + e + ")"
}

// And joins non-empty expressions. A single operand is returned unwrapped.
func And(parts ...Expr) Expr { return join("AND", parts) }

// Or joins non-empty expressions. A single operand is returned unwrapped.
func Or(parts ...Expr) Expr { return join("OR", parts) }

func join(op string, parts []Expr) Expr {
	kept := make([]string, 0, len(parts))
	for _, p := range parts {
		if p != "" {
			kept = append(kept, string(p))
		}
	}
	switch len(kept) {
	case 0:
		return ""
	case 1:
		return Expr(kept[0])
	}
	return Expr(op + "(" + strings.Join(kept, ", ") + ")")
}

package database

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
	"unicode"
)

// The local store understands the subset of the formula language the portal
// emits: AND/OR/NOT, comparisons, FIND, SEARCH, LOWER, ARRAYJOIN,
// DATETIME_PARSE and IS_BEFORE/IS_AFTER.

type tokenKind int

const (
	tokEOF tokenKind = iota
	tokField
	tokString
	tokNumber
	tokIdent
	tokLParen
	tokRParen
	tokComma
	tokOp
)

type token struct {
	kind tokenKind
	text string
}

func tokenize(src string) ([]token, error) {
	var out []token
	for i := 0; i < len(src); {
		ch := src[i]
		switch {
		case ch == ' ' || ch == '\t' || ch == '\n' || ch == '\r':
			i++
		case ch == '{':
			end := strings.IndexByte(src[i:], '}')
			if end < 0 {
				return nil, errors.New("formula: unterminated field reference")
			}
			out = append(out, token{tokField, src[i+1 : i+end]})
			i += end + 1
		case ch == '\'' || ch == '"':
			quote := ch
			var b strings.Builder
			j := i + 1
			for ; j < len(src) && src[j] != quote; j++ {
				if src[j] == '\\' && j+1 < len(src) {
					j++
				}
				b.WriteByte(src[j])
			}
			if j >= len(src) {
				return nil, errors.New("formula: unterminated string")
			}
			out = append(out, token{tokString, b.String()})
			i = j + 1
		case ch >= '0' && ch <= '9':
			j := i
			for j < len(src) && (src[j] >= '0' && src[j] <= '9' || src[j] == '.') {
				j++
			}
			out = append(out, token{tokNumber, src[i:j]})
			i = j
		case ch == '_' || unicode.IsLetter(rune(ch)):
			j := i
			for j < len(src) && (src[j] == '_' || unicode.IsLetter(rune(src[j])) || unicode.IsDigit(rune(src[j]))) {
				j++
			}
			out = append(out, token{tokIdent, strings.ToUpper(src[i:j])})
			i = j
		case ch == '(':
			out = append(out, token{tokLParen, "("})
			i++
		case ch == ')':
			out = append(out, token{tokRParen, ")"})
			i++
		case ch == ',':
			out = append(out, token{tokComma, ","})
			i++
		case strings.ContainsRune("=!<>", rune(ch)):
			if i+1 < len(src) && src[i+1] == '=' {
				out = append(out, token{tokOp, src[i : i+2]})
				i += 2
				continue
			}
			if ch == '!' {
				return nil, errors.New("formula: unexpected '!'")
			}
			out = append(out, token{tokOp, string(ch)})
			i++
		default:
			return nil, fmt.Errorf("formula: unexpected character %q", ch)
		}
	}
	return append(out, token{kind: tokEOF}), nil
}

type node interface {
	eval(fields map[string]any) (any, error)
}

type literal struct{ v any }

type fieldRef struct{ name string }

type call struct {
	fn   string
	args []node
}

type compare struct {
	op          string
	left, right node
}

func (l literal) eval(map[string]any) (any, error) { return l.v, nil }

func (f fieldRef) eval(fields map[string]any) (any, error) { return fields[f.name], nil }

type parser struct {
	toks []token
	pos  int
}

// compileFormula parses src into an evaluable tree. An empty formula matches everything.
func compileFormula(src string) (node, error) {
	if strings.TrimSpace(src) == "" {
		return literal{true}, nil
	}
	toks, err := tokenize(src)
	if err != nil {
		return nil, err
	}
	p := &parser{toks: toks}
	n, err := p.comparison()
	if err != nil {
		return nil, err
	}
	if p.peek().kind != tokEOF {
		return nil, fmt.Errorf("formula: unexpected %q", p.peek().text)
	}
	return n, nil
}

func (p *parser) peek() token { return p.toks[p.pos] }

func (p *parser) next() token {
	t := p.toks[p.pos]
	if t.kind != tokEOF {
		p.pos++
	}
	return t
}

func (p *parser) comparison() (node, error) {
	left, err := p.primary()
	if err != nil {
		return nil, err
	}
	if p.peek().kind == tokOp {
		op := p.next().text
		right, err := p.primary()
		if err != nil {
			return nil, err
		}
		return compare{op: op, left: left, right: right}, nil
	}
	return left, nil
}

func (p *parser) primary() (node, error) {
	t := p.next()
	switch t.kind {
	case tokString:
		return literal{t.text}, nil
	case tokNumber:
		f, err := strconv.ParseFloat(t.text, 64)
		if err != nil {
			return nil, fmt.Errorf("formula: bad number %q", t.text)
		}
		return literal{f}, nil
	case tokField:
		return fieldRef{t.text}, nil
	case tokLParen:
		n, err := p.comparison()
		if err != nil {
			return nil, err
		}
		if p.next().kind != tokRParen {
			return nil, errors.New("formula: expected ')'")
		}
		return n, nil
	case tokIdent:
		switch t.text {
		case "TRUE":
			if p.peek().kind != tokLParen {
				return literal{true}, nil
			}
		case "FALSE":
			if p.peek().kind != tokLParen {
				return literal{false}, nil
			}
		}
		if p.next().kind != tokLParen {
			return nil, fmt.Errorf("formula: expected '(' after %s", t.text)
		}
		c := call{fn: t.text}
		if p.peek().kind == tokRParen {
			p.next()
			return c, nil
		}
		for {
			arg, err := p.comparison()
			if err != nil {
				return nil, err
			}
			c.args = append(c.args, arg)
			switch p.next().kind {
			case tokComma:
				continue
			case tokRParen:
				return c, nil
			default:
				return nil, fmt.Errorf("formula: expected ',' or ')' in %s", t.text)
			}
		}
	}
	return nil, fmt.Errorf("formula: unexpected %q", t.text)
}

func (c call) eval(fields map[string]any) (any, error) {
	args := make([]any, len(c.args))
	// AND/OR short-circuit; everything else evaluates eagerly.
	switch c.fn {
	case "AND", "OR":
		want := c.fn == "OR"
		for _, a := range c.args {
			v, err := a.eval(fields)
			if err != nil {
				return nil, err
			}
			if truthy(v) == want {
				return want, nil
			}
		}
		return !want, nil
	}
	for i, a := range c.args {
		v, err := a.eval(fields)
		if err != nil {
			return nil, err
		}
		args[i] = v
	}
	arg := func(i int) any {
		if i < len(args) {
			return args[i]
		}
		return nil
	}

	switch c.fn {
	case "NOT":
		return !truthy(arg(0)), nil
	case "LOWER":
		return strings.ToLower(text(arg(0))), nil
	case "UPPER":
		return strings.ToUpper(text(arg(0))), nil
	case "ARRAYJOIN":
		sep := ", "
		if len(args) > 1 {
			sep = text(args[1])
		}
		return joinValues(arg(0), sep), nil
	case "FIND", "SEARCH":
		needle, hay := text(arg(0)), text(arg(1))
		if needle == "" {
			return float64(0), nil
		}
		return float64(strings.Index(hay, needle) + 1), nil
	case "DATETIME_PARSE":
		t, ok := asTime(arg(0))
		if !ok {
			return nil, nil
		}
		return t, nil
	case "IS_BEFORE", "IS_AFTER":
		a, okA := asTime(arg(0))
		b, okB := asTime(arg(1))
		if !okA || !okB {
			return false, nil
		}
		if c.fn == "IS_BEFORE" {
			return a.Before(b), nil
		}
		return a.After(b), nil
	}
	return nil, fmt.Errorf("formula: unsupported function %s", c.fn)
}

func (c compare) eval(fields map[string]any) (any, error) {
	l, err := c.left.eval(fields)
	if err != nil {
		return nil, err
	}
	r, err := c.right.eval(fields)
	if err != nil {
		return nil, err
	}
	lf, lok := number(l)
	rf, rok := number(r)
	if lok && rok {
		switch c.op {
		case "=":
			return lf == rf, nil
		case "!=":
			return lf != rf, nil
		case ">":
			return lf > rf, nil
		case "<":
			return lf < rf, nil
		case ">=":
			return lf >= rf, nil
		case "<=":
			return lf <= rf, nil
		}
	}
	ls, rs := text(l), text(r)
	switch c.op {
	case "=":
		return ls == rs, nil
	case "!=":
		return ls != rs, nil
	case ">":
		return ls > rs, nil
	case "<":
		return ls < rs, nil
	case ">=":
		return ls >= rs, nil
	case "<=":
		return ls <= rs, nil
	}
	return nil, fmt.Errorf("formula: unsupported operator %s", c.op)
}

func truthy(v any) bool {
	switch t := v.(type) {
	case nil:
		return false
	case bool:
		return t
	case float64:
		return t != 0 && !math.IsNaN(t)
	case string:
		return t != ""
	case []any:
		return len(t) > 0
	default:
		return true
	}
}

func text(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case bool:
		if t {
			return "1"
		}
		return "0"
	case time.Time:
		return t.Format(time.RFC3339)
	case []any:
		return joinValues(t, ", ")
	default:
		return fmt.Sprint(t)
	}
}

func number(v any) (float64, bool) {
	switch t := v.(type) {
	case float64:
		return t, true
	case bool:
		if t {
			return 1, true
		}
		return 0, true
	}
	return 0, false
}

func joinValues(v any, sep string) string {
	items, ok := v.([]any)
	if !ok {
		return text(v)
	}
	parts := make([]string, 0, len(items))
	for _, item := range items {
		parts = append(parts, text(item))
	}
	return strings.Join(parts, sep)
}

func asTime(v any) (time.Time, bool) {
	switch t := v.(type) {
	case time.Time:
		return t, true
	case string:
		for _, layout := range []string{"2006-01-02", time.RFC3339, "2006-01-02T15:04:05.000Z", "2006-01", "2 Jan 2006"} {
			if parsed, err := time.Parse(layout, t); err == nil {
				return parsed, true
			}
		}
	}
	return time.Time{}, false
}

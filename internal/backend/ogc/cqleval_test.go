package ogc

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"testing"

	"github.com/kailas-cloud/hubsearch/internal/domain/query"
	"github.com/kailas-cloud/hubsearch/internal/domain/query/match"
)

// recordPred is a parsed CQL expression.
type recordPred func(match.Record) bool

type cqlToken struct {
	str  bool
	text string
}

// tokenizeCQL splits the CQL subset the compiler emits.
func tokenizeCQL(s string) ([]cqlToken, error) {
	var out []cqlToken
	for i := 0; i < len(s); {
		c := s[i]
		switch {
		case c == ' ':
			i++
		case c == '(' || c == ')' || c == ',' || c == '=':
			out = append(out, cqlToken{text: string(c)})
			i++
		case c == '>' || c == '<':
			if i+1 >= len(s) || s[i+1] != '=' {
				return nil, fmt.Errorf("bare %c at %d", c, i)
			}
			out = append(out, cqlToken{text: s[i : i+2]})
			i += 2
		case c == '\'':
			var b strings.Builder
			i++
			for {
				if i >= len(s) {
					return nil, errors.New("unterminated string")
				}
				if s[i] == '\'' {
					if i+1 < len(s) && s[i+1] == '\'' {
						b.WriteByte('\'')
						i += 2
						continue
					}
					i++
					break
				}
				b.WriteByte(s[i])
				i++
			}
			out = append(out, cqlToken{str: true, text: b.String()})
		default:
			j := i
			for j < len(s) && !strings.ContainsRune(" ()',=<>", rune(s[j])) {
				j++
			}
			out = append(out, cqlToken{text: s[i:j]})
			i = j
		}
	}
	return out, nil
}

type cqlParser struct {
	toks []cqlToken
	pos  int
}

func parseCQL(s string) (recordPred, error) {
	if s == "" {
		return func(match.Record) bool { return true }, nil
	}
	toks, err := tokenizeCQL(s)
	if err != nil {
		return nil, err
	}
	p := &cqlParser{toks: toks}
	pred, err := p.or()
	if err != nil {
		return nil, err
	}
	if p.pos != len(p.toks) {
		return nil, fmt.Errorf("trailing tokens %v", p.toks[p.pos:])
	}
	return pred, nil
}

// ogcMatches reports whether the compiled request would return r.
func ogcMatches(t *testing.T, p Params, r match.Record) bool {
	t.Helper()
	pred, err := parseCQL(p.Filter)
	if err != nil {
		t.Fatalf("parse filter %q: %v", p.Filter, err)
	}
	if p.Q != "" && !match.Term(p.Q, r.Text) {
		return false
	}
	if p.BBox != "" {
		b, err := query.ParseBBox(p.BBox)
		if err != nil {
			t.Fatalf("parse bbox %q: %v", p.BBox, err)
		}
		if r.Extent == nil || !b.Intersects(*r.Extent) {
			return false
		}
	}
	return pred(r)
}

func (p *cqlParser) accept(text string) bool {
	if p.pos < len(p.toks) && !p.toks[p.pos].str && p.toks[p.pos].text == text {
		p.pos++
		return true
	}
	return false
}

func (p *cqlParser) next() (cqlToken, error) {
	if p.pos >= len(p.toks) {
		return cqlToken{}, errors.New("unexpected end of filter")
	}
	tok := p.toks[p.pos]
	p.pos++
	return tok, nil
}

func (p *cqlParser) expect(text string) error {
	if !p.accept(text) {
		return fmt.Errorf("expected %q at token %d", text, p.pos)
	}
	return nil
}

func (p *cqlParser) or() (recordPred, error) {
	left, err := p.and()
	if err != nil {
		return nil, err
	}
	for p.accept("OR") {
		right, err := p.and()
		if err != nil {
			return nil, err
		}
		l := left
		left = func(r match.Record) bool { return l(r) || right(r) }
	}
	return left, nil
}

func (p *cqlParser) and() (recordPred, error) {
	left, err := p.unary()
	if err != nil {
		return nil, err
	}
	for p.accept("AND") {
		right, err := p.unary()
		if err != nil {
			return nil, err
		}
		l := left
		left = func(r match.Record) bool { return l(r) && right(r) }
	}
	return left, nil
}

func (p *cqlParser) unary() (recordPred, error) {
	if p.accept("NOT") {
		inner, err := p.unary()
		if err != nil {
			return nil, err
		}
		return func(r match.Record) bool { return !inner(r) }, nil
	}
	if p.accept("(") {
		inner, err := p.or()
		if err != nil {
			return nil, err
		}
		if err := p.expect(")"); err != nil {
			return nil, err
		}
		return inner, nil
	}
	return p.comparison()
}

// operand is a property reference or a literal.
type operand struct {
	field   query.Field
	lower   bool
	literal string
	isField bool
}

func fieldFor(name string) query.Field {
	for f, wire := range wireNames {
		if wire == name {
			return f
		}
	}
	return query.Field(name)
}

func (p *cqlParser) operand() (operand, error) {
	tok, err := p.next()
	if err != nil {
		return operand{}, err
	}
	if tok.str {
		return operand{literal: tok.text}, nil
	}
	if tok.text == "LOWER" {
		if err := p.expect("("); err != nil {
			return operand{}, err
		}
		name, err := p.next()
		if err != nil {
			return operand{}, err
		}
		if err := p.expect(")"); err != nil {
			return operand{}, err
		}
		return operand{field: fieldFor(name.text), lower: true, isField: true}, nil
	}
	if _, err := strconv.ParseInt(tok.text, 10, 64); err == nil {
		return operand{literal: tok.text}, nil
	}
	return operand{field: fieldFor(tok.text), isField: true}, nil
}

func (p *cqlParser) list() ([]string, error) {
	if err := p.expect("("); err != nil {
		return nil, err
	}
	var out []string
	for {
		tok, err := p.next()
		if err != nil {
			return nil, err
		}
		if !tok.str {
			return nil, fmt.Errorf("expected string literal, got %q", tok.text)
		}
		out = append(out, tok.text)
		if p.accept(")") {
			return out, nil
		}
		if err := p.expect(","); err != nil {
			return nil, err
		}
	}
}

func (p *cqlParser) comparison() (recordPred, error) {
	lhs, err := p.operand()
	if err != nil {
		return nil, err
	}
	op, err := p.next()
	if err != nil {
		return nil, err
	}
	switch op.text {
	case "=":
		rhs, err := p.operand()
		if err != nil {
			return nil, err
		}
		if !lhs.isField {
			eq := lhs.literal == rhs.literal
			return func(match.Record) bool { return eq }, nil
		}
		return inPred(lhs, []string{rhs.literal}), nil
	case "IN":
		vals, err := p.list()
		if err != nil {
			return nil, err
		}
		return inPred(lhs, vals), nil
	case "NOT":
		if err := p.expect("IN"); err != nil {
			return nil, err
		}
		vals, err := p.list()
		if err != nil {
			return nil, err
		}
		in := inPred(lhs, vals)
		return func(r match.Record) bool { return !in(r) }, nil
	case ">=", "<=":
		tok, err := p.next()
		if err != nil {
			return nil, err
		}
		bound, err := strconv.ParseInt(tok.text, 10, 64)
		if err != nil {
			return nil, err
		}
		atLeast := op.text == ">="
		return func(r match.Record) bool {
			t, ok := r.Dates[lhs.field]
			if !ok {
				return false
			}
			if atLeast {
				return t.UnixMilli() >= bound
			}
			return t.UnixMilli() <= bound
		}, nil
	case "IS":
		if err := p.expect("NOT"); err != nil {
			return nil, err
		}
		if err := p.expect("NULL"); err != nil {
			return nil, err
		}
		return func(r match.Record) bool {
			_, ok := r.Dates[lhs.field]
			return ok || len(r.Values[lhs.field]) > 0
		}, nil
	default:
		return nil, fmt.Errorf("unknown operator %q", op.text)
	}
}

// inPred compares exactly, or lower-cased when the property is wrapped in LOWER.
func inPred(o operand, wanted []string) recordPred {
	return func(r match.Record) bool {
		for _, have := range r.Values[o.field] {
			if o.lower {
				have = strings.ToLower(have)
			}
			for _, w := range wanted {
				if have == w {
					return true
				}
			}
		}
		return false
	}
}

func TestParseCQL(t *testing.T) {
	r := match.Record{Values: map[query.Field][]string{
		query.FieldTags:         {"Trees"},
		query.FieldTypeKeywords: {"Hub Site"},
	}}
	tests := []struct {
		filter string
		want   bool
	}{
		{"", true},
		{"1=0", false},
		{"tags = 'trees'", false},
		{"LOWER(tags) = 'trees'", true},
		{"LOWER(typeKeywords) IN ('x', 'hub site')", true},
		{"LOWER(tags) NOT IN ('trees') OR 1=0", false},
		{"NOT (LOWER(tags) = 'parks' AND 1=0)", true},
		{"created >= 0", false},
	}
	for _, tt := range tests {
		t.Run(tt.filter, func(t *testing.T) {
			pred, err := parseCQL(tt.filter)
			if err != nil {
				t.Fatalf("parseCQL: %v", err)
			}
			if got := pred(r); got != tt.want {
				t.Errorf("got %v, want %v", got, tt.want)
			}
		})
	}
}

package store

import (
	"errors"
	"fmt"
	"strings"
	"unicode"
)

// MaxTerms bounds the number of terms in a parsed keyword expression,
// counted across every clause and group.
const MaxTerms = 64

// MaxGroupDepth bounds parenthesis nesting.
const MaxGroupDepth = 8

var (
	// ErrTooManyTerms is returned for expressions with more than MaxTerms.
	ErrTooManyTerms = errors.New("too many search terms")

	// ErrInvalidExpression is returned for groups nested deeper than
	// MaxGroupDepth and for + or - applied inside a group.
	ErrInvalidExpression = errors.New("invalid keyword expression")
)

// Operator is the boolean role of a clause.
type Operator int

const (
	// Optional clauses raise the score; with no required clause at least
	// one optional clause must match.
	Optional Operator = iota
	// Required clauses must all match.
	Required
	// Excluded clauses must not match.
	Excluded
)

func (o Operator) String() string {
	switch o {
	case Required:
		return "+"
	case Excluded:
		return "-"
	default:
		return ""
	}
}

// Term is a word, a quoted phrase, or a word prefix.
type Term struct {
	Text   string
	Phrase bool
	Prefix bool
}

// Clause is one operator applied to one or more alternative terms. A
// parenthesized group becomes a clause with several alternatives.
type Clause struct {
	Op    Operator
	Terms []Term
}

// Expression is a parsed boolean keyword expression:
//
//	+required -excluded optional "a phrase" prefix* +(either or)
//
// The modifiers ~ < > are accepted and treated as optional.
type Expression struct {
	Clauses []Clause
}

// ParseBoolean parses a boolean keyword expression. Terms without any
// letter or digit are dropped, so the result may be empty. Inside a group
// every term is an alternative; + and - are only valid outside groups.
func ParseBoolean(input string) (*Expression, error) {
	p := &parser{in: []rune(input)}
	clauses, err := p.parseClauses(0)
	if err != nil {
		return nil, err
	}
	return &Expression{Clauses: clauses}, nil
}

type parser struct {
	in    []rune
	pos   int
	terms int
}

func (p *parser) eof() bool { return p.pos >= len(p.in) }

func (p *parser) peek() rune { return p.in[p.pos] }

func (p *parser) parseClauses(depth int) ([]Clause, error) {
	var clauses []Clause
	for {
		for !p.eof() && unicode.IsSpace(p.peek()) {
			p.pos++
		}
		if p.eof() {
			return clauses, nil
		}
		if p.peek() == ')' {
			p.pos++
			if depth > 0 {
				return clauses, nil
			}
			continue
		}

		op := Optional
		for !p.eof() && strings.ContainsRune("+-~<>", p.peek()) {
			switch p.peek() {
			case '+':
				op = Required
			case '-':
				op = Excluded
			default:
				op = Optional
			}
			p.pos++
		}
		if p.eof() {
			return clauses, nil
		}

		var (
			terms []Term
			err   error
		)
		switch p.peek() {
		case '(':
			if depth >= MaxGroupDepth {
				return nil, fmt.Errorf("%w: groups nested deeper than %d", ErrInvalidExpression, MaxGroupDepth)
			}
			p.pos++
			var inner []Clause
			inner, err = p.parseClauses(depth + 1)
			for _, c := range inner {
				terms = append(terms, c.Terms...)
			}
		case '"':
			p.pos++
			terms, err = p.appendTerm(terms, p.readPhrase())
		default:
			terms, err = p.appendTerm(terms, p.readWord())
		}
		if err != nil {
			return nil, err
		}
		if len(terms) == 0 {
			continue
		}
		if depth > 0 && op != Optional {
			return nil, fmt.Errorf("%w: %s inside a group", ErrInvalidExpression, op)
		}
		clauses = append(clauses, Clause{Op: op, Terms: terms})
	}
}

func (p *parser) readPhrase() Term {
	start := p.pos
	for !p.eof() && p.peek() != '"' {
		p.pos++
	}
	text := string(p.in[start:p.pos])
	if !p.eof() {
		p.pos++
	}
	return Term{Text: strings.Join(strings.Fields(text), " "), Phrase: true}
}

func (p *parser) readWord() Term {
	start := p.pos
	for !p.eof() && !unicode.IsSpace(p.peek()) && !strings.ContainsRune(`()"`, p.peek()) {
		p.pos++
	}
	text := string(p.in[start:p.pos])
	prefix := strings.HasSuffix(text, "*")
	return Term{Text: strings.TrimRight(text, "*"), Prefix: prefix}
}

func (p *parser) appendTerm(terms []Term, t Term) ([]Term, error) {
	if !hasWordChar(t.Text) {
		return terms, nil
	}
	p.terms++
	if p.terms > MaxTerms {
		return nil, fmt.Errorf("%w: more than %d", ErrTooManyTerms, MaxTerms)
	}
	return append(terms, t), nil
}

func hasWordChar(s string) bool {
	for _, r := range s {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			return true
		}
	}
	return false
}

// IsEmpty reports whether the expression has no positive clause and so can
// match nothing.
func (e *Expression) IsEmpty() bool {
	if e == nil {
		return true
	}
	for _, c := range e.Clauses {
		if c.Op != Excluded {
			return false
		}
	}
	return true
}

// ByOp returns the clauses with the given operator, in input order.
func (e *Expression) ByOp(op Operator) []Clause {
	if e == nil {
		return nil
	}
	var out []Clause
	for _, c := range e.Clauses {
		if c.Op == op {
			out = append(out, c)
		}
	}
	return out
}

// PositiveTerms returns the texts of required and optional terms, used to
// locate snippets.
func (e *Expression) PositiveTerms() []Term {
	if e == nil {
		return nil
	}
	var out []Term
	for _, c := range e.Clauses {
		if c.Op != Excluded {
			out = append(out, c.Terms...)
		}
	}
	return out
}

// String renders the expression in canonical boolean syntax.
func (e *Expression) String() string {
	if e == nil {
		return ""
	}
	parts := make([]string, 0, len(e.Clauses))
	for _, c := range e.Clauses {
		terms := make([]string, len(c.Terms))
		for i, t := range c.Terms {
			terms[i] = t.String()
		}
		body := terms[0]
		if len(terms) > 1 {
			body = "(" + strings.Join(terms, " ") + ")"
		}
		parts = append(parts, c.Op.String()+body)
	}
	return strings.Join(parts, " ")
}

func (t Term) String() string {
	switch {
	case t.Phrase:
		return `"` + t.Text + `"`
	case t.Prefix:
		return t.Text + "*"
	default:
		return t.Text
	}
}

// FTS5 renders the expression as an SQLite FTS5 MATCH string. Every term is
// emitted as a quoted string so user input never reaches FTS5 syntax.
// Optional terms are OR-ed alongside the required ones so they take part in
// bm25 ranking without changing which rows match. Returns "" when the
// expression cannot match anything.
func (e *Expression) FTS5() string {
	if e.IsEmpty() {
		return ""
	}

	required := e.ByOp(Required)
	optional := e.ByOp(Optional)
	excluded := e.ByOp(Excluded)

	var match string
	if len(required) > 0 {
		parts := make([]string, len(required))
		for i, c := range required {
			parts[i] = fts5Clause(c)
		}
		match = strings.Join(parts, " AND ")
		if len(optional) > 0 {
			boost := make([]string, 0, len(required)+len(optional))
			for _, c := range append(append([]Clause(nil), required...), optional...) {
				boost = append(boost, fts5Clause(c))
			}
			match = "(" + match + ") AND (" + strings.Join(boost, " OR ") + ")"
		}
	} else {
		parts := make([]string, len(optional))
		for i, c := range optional {
			parts[i] = fts5Clause(c)
		}
		match = strings.Join(parts, " OR ")
	}

	if len(excluded) > 0 {
		parts := make([]string, len(excluded))
		for i, c := range excluded {
			parts[i] = fts5Clause(c)
		}
		match = "(" + match + ") NOT (" + strings.Join(parts, " OR ") + ")"
	}
	return match
}

func fts5Clause(c Clause) string {
	if len(c.Terms) == 1 {
		return fts5Term(c.Terms[0])
	}
	parts := make([]string, len(c.Terms))
	for i, t := range c.Terms {
		parts[i] = fts5Term(t)
	}
	return "(" + strings.Join(parts, " OR ") + ")"
}

func fts5Term(t Term) string {
	quoted := `"` + strings.ReplaceAll(t.Text, `"`, `""`) + `"`
	if t.Prefix {
		return quoted + "*"
	}
	return quoted
}

/*
2026 © Postgres.ai
*/

package instruction

import (
	"strings"
	"unicode"

	"github.com/pkg/errors"
)

// Lookup resolves a named value of a run.
type Lookup func(name string) (string, bool)

// Guard defines a compiled enabledWhen expression.
//
// The vocabulary is closed: names, [#Name#] placeholders, quoted literals,
// ==, !=, !, &&, || and parentheses. A bare operand is true when it resolves
// to a value other than "", "false" and "0".
type Guard struct {
	expr string
	root guardNode
}

// ParseGuard compiles an enabledWhen expression.
func ParseGuard(expr string) (*Guard, error) {
	tokens, err := tokenizeGuard(expr)
	if err != nil {
		return nil, errors.Wrapf(err, "invalid guard %q", expr)
	}

	p := &guardParser{tokens: tokens}

	root, err := p.parseOr()
	if err != nil {
		return nil, errors.Wrapf(err, "invalid guard %q", expr)
	}

	if p.pos != len(p.tokens) {
		return nil, errors.Errorf("invalid guard %q: unexpected %q", expr, p.tokens[p.pos].text)
	}

	return &Guard{expr: expr, root: root}, nil
}

// Eval evaluates the expression against run values.
func (g *Guard) Eval(lookup Lookup) bool {
	return g.root.eval(lookup)
}

// String returns the source expression.
func (g *Guard) String() string {
	return g.expr
}

type tokenKind int

const (
	tokOperand tokenKind = iota
	tokName
	tokNot
	tokAnd
	tokOr
	tokEq
	tokNeq
	tokOpen
	tokClose
)

type token struct {
	kind tokenKind
	text string
}

func tokenizeGuard(expr string) ([]token, error) {
	var tokens []token

	runes := []rune(expr)

	for i := 0; i < len(runes); {
		r := runes[i]

		switch {
		case unicode.IsSpace(r):
			i++

		case r == '(':
			tokens = append(tokens, token{kind: tokOpen, text: "("})
			i++

		case r == ')':
			tokens = append(tokens, token{kind: tokClose, text: ")"})
			i++

		case strings.HasPrefix(string(runes[i:]), "&&"):
			tokens = append(tokens, token{kind: tokAnd, text: "&&"})
			i += 2

		case strings.HasPrefix(string(runes[i:]), "||"):
			tokens = append(tokens, token{kind: tokOr, text: "||"})
			i += 2

		case strings.HasPrefix(string(runes[i:]), "=="):
			tokens = append(tokens, token{kind: tokEq, text: "=="})
			i += 2

		case strings.HasPrefix(string(runes[i:]), "!="):
			tokens = append(tokens, token{kind: tokNeq, text: "!="})
			i += 2

		case r == '!':
			tokens = append(tokens, token{kind: tokNot, text: "!"})
			i++

		case r == '\'' || r == '"':
			end := i + 1
			for end < len(runes) && runes[end] != r {
				end++
			}

			if end == len(runes) {
				return nil, errors.New("unterminated literal")
			}

			tokens = append(tokens, token{kind: tokOperand, text: string(runes[i+1 : end])})
			i = end + 1

		case strings.HasPrefix(string(runes[i:]), "[#"):
			rest := string(runes[i:])

			end := strings.Index(rest, "#]")
			if end < 0 {
				return nil, errors.New("unterminated placeholder")
			}

			tokens = append(tokens, token{kind: tokName, text: rest[2:end]})
			i += len([]rune(rest[:end+2]))

		case isNameRune(r):
			end := i
			for end < len(runes) && isNameRune(runes[end]) {
				end++
			}

			tokens = append(tokens, token{kind: tokName, text: string(runes[i:end])})
			i = end

		default:
			return nil, errors.Errorf("unexpected character %q", r)
		}
	}

	if len(tokens) == 0 {
		return nil, errors.New("empty expression")
	}

	return tokens, nil
}

func isNameRune(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsDigit(r) || r == '_' || r == '.' || r == '-'
}

type guardParser struct {
	tokens []token
	pos    int
}

func (p *guardParser) peek() (token, bool) {
	if p.pos >= len(p.tokens) {
		return token{}, false
	}

	return p.tokens[p.pos], true
}

func (p *guardParser) parseOr() (guardNode, error) {
	left, err := p.parseAnd()
	if err != nil {
		return nil, err
	}

	for {
		tok, ok := p.peek()
		if !ok || tok.kind != tokOr {
			return left, nil
		}

		p.pos++

		right, err := p.parseAnd()
		if err != nil {
			return nil, err
		}

		left = orNode{left: left, right: right}
	}
}

func (p *guardParser) parseAnd() (guardNode, error) {
	left, err := p.parseUnary()
	if err != nil {
		return nil, err
	}

	for {
		tok, ok := p.peek()
		if !ok || tok.kind != tokAnd {
			return left, nil
		}

		p.pos++

		right, err := p.parseUnary()
		if err != nil {
			return nil, err
		}

		left = andNode{left: left, right: right}
	}
}

func (p *guardParser) parseUnary() (guardNode, error) {
	tok, ok := p.peek()
	if !ok {
		return nil, errors.New("unexpected end of expression")
	}

	switch tok.kind {
	case tokNot:
		p.pos++

		inner, err := p.parseUnary()
		if err != nil {
			return nil, err
		}

		return notNode{inner: inner}, nil

	case tokOpen:
		p.pos++

		inner, err := p.parseOr()
		if err != nil {
			return nil, err
		}

		if closing, ok := p.peek(); !ok || closing.kind != tokClose {
			return nil, errors.New("missing closing parenthesis")
		}

		p.pos++

		return inner, nil
	}

	left, err := p.parseOperand()
	if err != nil {
		return nil, err
	}

	op, ok := p.peek()
	if !ok || (op.kind != tokEq && op.kind != tokNeq) {
		return truthNode{operand: left}, nil
	}

	p.pos++

	right, err := p.parseOperand()
	if err != nil {
		return nil, err
	}

	return compareNode{left: left, right: right, negate: op.kind == tokNeq}, nil
}

func (p *guardParser) parseOperand() (operand, error) {
	tok, ok := p.peek()
	if !ok {
		return operand{}, errors.New("unexpected end of expression")
	}

	switch tok.kind {
	case tokName:
		p.pos++
		return operand{text: tok.text, isName: true}, nil
	case tokOperand:
		p.pos++
		return operand{text: tok.text}, nil
	default:
		return operand{}, errors.Errorf("unexpected %q", tok.text)
	}
}

type guardNode interface {
	eval(lookup Lookup) bool
}

type operand struct {
	text   string
	isName bool
}

func (o operand) value(lookup Lookup) (string, bool) {
	if !o.isName {
		return o.text, true
	}

	return lookup(o.text)
}

type truthNode struct{ operand operand }

func (n truthNode) eval(lookup Lookup) bool {
	v, ok := n.operand.value(lookup)
	if !ok {
		return false
	}

	switch strings.ToLower(strings.TrimSpace(v)) {
	case "", "false", "0":
		return false
	}

	return true
}

type compareNode struct {
	left, right operand
	negate      bool
}

func (n compareNode) eval(lookup Lookup) bool {
	l, _ := n.left.value(lookup)
	r, _ := n.right.value(lookup)

	return (strings.TrimSpace(l) == strings.TrimSpace(r)) != n.negate
}

type notNode struct{ inner guardNode }

func (n notNode) eval(lookup Lookup) bool { return !n.inner.eval(lookup) }

type andNode struct{ left, right guardNode }

func (n andNode) eval(lookup Lookup) bool { return n.left.eval(lookup) && n.right.eval(lookup) }

type orNode struct{ left, right guardNode }

func (n orNode) eval(lookup Lookup) bool { return n.left.eval(lookup) || n.right.eval(lookup) }

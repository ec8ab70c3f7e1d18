// Package policy parses and evaluates acceptance expressions over HTTP
// status codes. An expression is a comma-separated list of conditions:
// bare codes form an OR-group (any match accepts), operator-prefixed
// codes form an AND-group (all must hold). The response code is accepted
// when either group is satisfied.
package policy

import (
	"fmt"
	"strconv"
	"strings"
)

// Op is the relational operator of a single condition.
type Op int

const (
	OpEq Op = iota // bare condition, exact match
	OpNe
	OpLt
	OpLe
	OpGt
	OpGe
)

func (o Op) String() string {
	switch o {
	case OpEq:
		return ""
	case OpNe:
		return "!="
	case OpLt:
		return "<"
	case OpLe:
		return "<="
	case OpGt:
		return ">"
	case OpGe:
		return ">="
	}
	return fmt.Sprintf("Op(%d)", int(o))
}

// Condition compares an observed status code against a fixed code.
type Condition struct {
	Op   Op
	Code int
}

// Matches reports whether code satisfies the condition.
func (c Condition) Matches(code int) bool {
	switch c.Op {
	case OpEq:
		return code == c.Code
	case OpNe:
		return code != c.Code
	case OpLt:
		return code < c.Code
	case OpLe:
		return code <= c.Code
	case OpGt:
		return code > c.Code
	case OpGe:
		return code >= c.Code
	}
	return false
}

func (c Condition) String() string {
	return c.Op.String() + strconv.Itoa(c.Code)
}

// ParseError reports an expression token that could not be parsed.
type ParseError struct {
	Expr  string
	Token string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("policy: invalid condition %q in %q", e.Token, e.Expr)
}

// Policy is a parsed acceptance expression. Immutable once parsed.
type Policy struct {
	orGroup  []Condition
	andGroup []Condition
	expr     string
}

// Default accepts exactly status code 200.
func Default() Policy {
	return Policy{orGroup: []Condition{{Op: OpEq, Code: 200}}, expr: "200"}
}

// Parse builds a Policy from an acceptance expression. An empty expression
// is equivalent to the default exact-match on 200.
func Parse(expr string) (Policy, error) {
	if strings.TrimSpace(expr) == "" {
		return Default(), nil
	}

	p := Policy{}
	var tokens []string
	for _, tok := range strings.Split(expr, ",") {
		tok = strings.TrimSpace(tok)
		if tok == "" {
			return Policy{}, &ParseError{Expr: expr, Token: tok}
		}

		op, rest, err := splitCondition(tok)
		if err != nil {
			return Policy{}, &ParseError{Expr: expr, Token: tok}
		}
		code, err := strconv.Atoi(rest)
		if err != nil || !allDigits(rest) {
			return Policy{}, &ParseError{Expr: expr, Token: tok}
		}

		cond := Condition{Op: op, Code: code}
		if op == OpEq {
			p.orGroup = append(p.orGroup, cond)
		} else {
			p.andGroup = append(p.andGroup, cond)
		}
		tokens = append(tokens, cond.String())
	}

	p.expr = strings.Join(tokens, ", ")
	return p, nil
}

// splitCondition separates an optional operator prefix from the numeric
// part of a token. An explicit "==" is rejected: exact match must be
// written as a bare code, so the same code cannot carry both spellings.
func splitCondition(tok string) (Op, string, error) {
	switch {
	case strings.HasPrefix(tok, "=="):
		return 0, "", fmt.Errorf("explicit == is ambiguous with the bare form")
	case strings.HasPrefix(tok, "!="):
		return OpNe, tok[2:], nil
	case strings.HasPrefix(tok, "<="):
		return OpLe, tok[2:], nil
	case strings.HasPrefix(tok, ">="):
		return OpGe, tok[2:], nil
	case strings.HasPrefix(tok, "!"):
		return OpNe, tok[1:], nil
	case strings.HasPrefix(tok, "<"):
		return OpLt, tok[1:], nil
	case strings.HasPrefix(tok, ">"):
		return OpGt, tok[1:], nil
	}
	return OpEq, tok, nil
}

func allDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// Matches evaluates the policy against an actual status code. The code is
// accepted when any OR-group condition holds, or when the AND-group is
// non-empty and every one of its conditions holds. An empty group
// contributes no match.
func (p Policy) Matches(code int) bool {
	orMatch := false
	for _, c := range p.orGroup {
		if c.Matches(code) {
			orMatch = true
			break
		}
	}

	andMatch := len(p.andGroup) > 0
	for _, c := range p.andGroup {
		if !c.Matches(code) {
			andMatch = false
			break
		}
	}

	return orMatch || andMatch
}

// String renders the normalized expression, used when reporting what was
// expected of a failed probe.
func (p Policy) String() string {
	return p.expr
}

// IsZero reports whether the policy was never parsed. A zero policy
// accepts nothing.
func (p Policy) IsZero() bool {
	return len(p.orGroup) == 0 && len(p.andGroup) == 0
}

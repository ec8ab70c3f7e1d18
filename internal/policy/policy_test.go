package policy

import (
	"errors"
	"testing"
)

func mustParse(t *testing.T, expr string) Policy {
	t.Helper()
	p, err := Parse(expr)
	if err != nil {
		t.Fatalf("Parse(%q): %v", expr, err)
	}
	return p
}

func TestParseErrors(t *testing.T) {
	tests := []string{
		"==200",
		"200, ==201",
		"abc",
		">=x",
		"200,",
		",200",
		"20 0",
		"!= 200",
		"-200",
		"<",
	}

	for _, expr := range tests {
		_, err := Parse(expr)
		if err == nil {
			t.Errorf("Parse(%q): expected error", expr)
			continue
		}
		var pe *ParseError
		if !errors.As(err, &pe) {
			t.Errorf("Parse(%q): expected *ParseError, got %T", expr, err)
		}
	}
}

func TestParseErrorNamesToken(t *testing.T) {
	_, err := Parse("200, bogus, 404")
	var pe *ParseError
	if !errors.As(err, &pe) {
		t.Fatalf("expected *ParseError, got %v", err)
	}
	if pe.Token != "bogus" {
		t.Fatalf("token = %q, want %q", pe.Token, "bogus")
	}
}

func TestDefaultAndEmpty(t *testing.T) {
	for _, expr := range []string{"", "  "} {
		p := mustParse(t, expr)
		if !p.Matches(200) {
			t.Errorf("Parse(%q): expected 200 to match", expr)
		}
		if p.Matches(201) {
			t.Errorf("Parse(%q): expected 201 not to match", expr)
		}
	}
}

func TestSingleCode(t *testing.T) {
	p := mustParse(t, "301")
	if !p.Matches(301) {
		t.Error("expected 301 to match")
	}
	if p.Matches(200) {
		t.Error("expected 200 not to match")
	}
}

func TestNegation(t *testing.T) {
	for _, expr := range []string{"!500", "!=500"} {
		p := mustParse(t, expr)
		for _, code := range []int{100, 200, 404, 499, 501, 599} {
			if !p.Matches(code) {
				t.Errorf("%q: expected %d to match", expr, code)
			}
		}
		if p.Matches(500) {
			t.Errorf("%q: expected 500 not to match", expr)
		}
	}
}

func TestMixedGroups(t *testing.T) {
	// 200 alone, or anything in [300, 400)
	p := mustParse(t, "200, >=300, <400")

	tests := []struct {
		code int
		want bool
	}{
		{200, true},
		{301, true},
		{399, true},
		{201, false},
		{400, false},
		{500, false},
		{299, false},
	}
	for _, tt := range tests {
		if got := p.Matches(tt.code); got != tt.want {
			t.Errorf("Matches(%d) = %v, want %v", tt.code, got, tt.want)
		}
	}
}

func TestOrGroupBeatsAndGroup(t *testing.T) {
	// 405 is accepted outright even though it fails the AND-group.
	p := mustParse(t, "<400, 405, !202")

	tests := []struct {
		code int
		want bool
	}{
		{405, true},
		{399, true},
		{202, false},
		{400, false},
		{500, false},
	}
	for _, tt := range tests {
		if got := p.Matches(tt.code); got != tt.want {
			t.Errorf("Matches(%d) = %v, want %v", tt.code, got, tt.want)
		}
	}
}

func TestZeroPolicyMatchesNothing(t *testing.T) {
	var p Policy
	if !p.IsZero() {
		t.Fatal("expected zero policy")
	}
	for _, code := range []int{0, 200, 500} {
		if p.Matches(code) {
			t.Errorf("zero policy matched %d", code)
		}
	}
}

func TestString(t *testing.T) {
	tests := []struct {
		expr string
		want string
	}{
		{"200", "200"},
		{"", "200"},
		{" 200 ,>=300,  <400", "200, >=300, <400"},
		{"!500", "!=500"},
	}
	for _, tt := range tests {
		p := mustParse(t, tt.expr)
		if got := p.String(); got != tt.want {
			t.Errorf("Parse(%q).String() = %q, want %q", tt.expr, got, tt.want)
		}
	}
}

func TestConditionOperators(t *testing.T) {
	tests := []struct {
		cond Condition
		code int
		want bool
	}{
		{Condition{OpEq, 200}, 200, true},
		{Condition{OpEq, 200}, 201, false},
		{Condition{OpNe, 200}, 201, true},
		{Condition{OpNe, 200}, 200, false},
		{Condition{OpLt, 400}, 399, true},
		{Condition{OpLt, 400}, 400, false},
		{Condition{OpLe, 400}, 400, true},
		{Condition{OpLe, 400}, 401, false},
		{Condition{OpGt, 300}, 301, true},
		{Condition{OpGt, 300}, 300, false},
		{Condition{OpGe, 300}, 300, true},
		{Condition{OpGe, 300}, 299, false},
	}
	for _, tt := range tests {
		if got := tt.cond.Matches(tt.code); got != tt.want {
			t.Errorf("%v.Matches(%d) = %v, want %v", tt.cond, tt.code, got, tt.want)
		}
	}
}

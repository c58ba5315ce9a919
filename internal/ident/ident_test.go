package ident

import (
	"strings"
	"testing"

	lberrors "github.com/litebrowse/litebrowse/internal/errors"
)

func TestValid(t *testing.T) {
	tests := []struct {
		name  string
		valid bool
	}{
		{"users", true},
		{"_private", true},
		{"order_items2", true},
		{"CamelCase", true},
		{"", false},
		{"2fast", false},
		{"has space", false},
		{"drop;--", false},
		{`quote"d`, false},
		{"dash-ed", false},
		{"ünïcode", false},
		{strings.Repeat("a", MaxLength), true},
		{strings.Repeat("a", MaxLength+1), false},
	}

	for _, tt := range tests {
		if got := Valid(tt.name); got != tt.valid {
			t.Errorf("Valid(%q) = %v, want %v", tt.name, got, tt.valid)
		}
	}
}

func TestQuote(t *testing.T) {
	q, err := Quote("table", "users")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if q != `"users"` {
		t.Errorf("got %s, want \"users\"", q)
	}

	_, err = Quote("table", "users; DROP TABLE users")
	if err == nil {
		t.Fatal("expected error for injection attempt")
	}
	if lberrors.GetCode(err) != lberrors.CodeInvalidIdentifier {
		t.Errorf("got code %q, want %q", lberrors.GetCode(err), lberrors.CodeInvalidIdentifier)
	}
}

func TestQuoteAll(t *testing.T) {
	q, err := QuoteAll("column", []string{"id", "name"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if strings.Join(q, ",") != `"id","name"` {
		t.Errorf("got %v", q)
	}

	if _, err := QuoteAll("column", []string{"id", "bad name"}); err == nil {
		t.Error("expected error for invalid column")
	}
}

func TestQuoteLiteral(t *testing.T) {
	if got := QuoteLiteral("O'Brien"); got != "'O''Brien'" {
		t.Errorf("got %s", got)
	}
}

func TestQuoteAny(t *testing.T) {
	if got := QuoteAny(`odd "name"`); got != `"odd ""name"""` {
		t.Errorf("got %s", got)
	}
}

package config

import (
	"reflect"
	"strings"
	"testing"
)

func TestLexer(t *testing.T) {
	input := `access-lists {
    acl EDGE-IN {
        type "ipv4 access-list";
    }
}`
	lex := NewLexer(input)
	expected := []struct {
		typ TokenType
		val string
	}{
		{TokenWord, "access-lists"},
		{TokenOpen, "{"},
		{TokenWord, "acl"},
		{TokenWord, "EDGE-IN"},
		{TokenOpen, "{"},
		{TokenWord, "type"},
		{TokenQuoted, "ipv4 access-list"},
		{TokenEnd, ";"},
		{TokenClose, "}"},
		{TokenClose, "}"},
		{TokenEOF, ""},
	}

	for i, exp := range expected {
		tok := lex.Next()
		if tok.Type != exp.typ {
			t.Errorf("token %d: expected type %s, got %s (value=%q)", i, exp.typ, tok.Type, tok.Value)
		}
		if exp.val != "" && tok.Value != exp.val {
			t.Errorf("token %d: expected value %q, got %q", i, exp.val, tok.Value)
		}
	}
}

func TestLexerComments(t *testing.T) {
	input := `# this is a comment
system {
    grpc-address unix:/run/aclc.sock; # trailing comment
    #log-level info;
    log-level debug;
}`
	lex := NewLexer(input)
	var got []string
	for {
		tok := lex.Next()
		if tok.Type == TokenEOF {
			break
		}
		got = append(got, tok.Value)
	}
	want := []string{"system", "{", "grpc-address", "unix:/run/aclc.sock", ";", "log-level", "debug", ";", "}"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestLexerPositions(t *testing.T) {
	lex := NewLexer("a\n  b \"unterminated")
	if tok := lex.Next(); tok.Line != 1 || tok.Column != 1 {
		t.Errorf("a at %d:%d", tok.Line, tok.Column)
	}
	if tok := lex.Next(); tok.Line != 2 || tok.Column != 3 {
		t.Errorf("b at %d:%d", tok.Line, tok.Column)
	}
	if tok := lex.Next(); tok.Type != TokenError || tok.Value != "unterminated string" {
		t.Errorf("got %v, want unterminated string error", tok)
	}
}

func TestLexerBracketList(t *testing.T) {
	lex := NewLexer(`api-key [ "a" b ];`)
	var got []TokenType
	for tok := lex.Next(); tok.Type != TokenEOF; tok = lex.Next() {
		got = append(got, tok.Type)
	}
	want := []TokenType{TokenWord, TokenListOpen, TokenQuoted, TokenWord, TokenListClose, TokenEnd}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("got %v, want %v", got, want)
	}
}

func TestLexerWords(t *testing.T) {
	tests := []struct {
		in   string
		want []string
	}{
		{"grpc-address 127.0.0.1:50051;", []string{"grpc-address", "127.0.0.1:50051", ";"}},
		{"file /var/log/aclc/rejections.log;", []string{"file", "/var/log/aclc/rejections.log", ";"}},
		{"user admin@example;", []string{"user", "admin@example", ";"}},
		{`password "p+w*d";`, []string{"password", "p+w*d", ";"}},
		{`description "tab\there";`, []string{"description", "tab\there", ";"}},
	}
	for _, tt := range tests {
		var got []string
		lex := NewLexer(tt.in)
		for tok := lex.Next(); tok.Type != TokenEOF; tok = lex.Next() {
			if tok.Type == TokenError {
				t.Fatalf("%q: %s", tt.in, tok.Value)
			}
			got = append(got, tok.Value)
		}
		if !reflect.DeepEqual(got, tt.want) {
			t.Errorf("%q: got %q, want %q", tt.in, got, tt.want)
		}
	}

	for _, in := range []string{"key a+b;", "key a*;", `key "bad \q";`, "key \"a\nb\";"} {
		lex := NewLexer(in)
		failed := false
		for tok := lex.Next(); tok.Type != TokenEOF; tok = lex.Next() {
			failed = failed || tok.Type == TokenError
		}
		if !failed {
			t.Errorf("%q: no error token", in)
		}
	}
}

func TestLexerPeek(t *testing.T) {
	lex := NewLexer("a b")
	if lex.Peek().Value != "a" || lex.Peek().Value != "a" {
		t.Error("Peek consumed a token")
	}
	if lex.Next().Value != "a" || lex.Next().Value != "b" || lex.Next().Type != TokenEOF {
		t.Error("Next after Peek out of order")
	}
}

func TestParserTree(t *testing.T) {
	tree, errs := NewParser(`
system { log-level info; }
access-lists {
    acl EDGE-IN { type "ipv4"; }
    acl CORE { }
}`).Parse()
	if len(errs) > 0 {
		t.Fatalf("parse errors: %v", errs)
	}
	acls := tree.FindChild("access-lists")
	if acls == nil {
		t.Fatal("access-lists missing")
	}
	nodes := acls.FindChildren("acl")
	if len(nodes) != 2 {
		t.Fatalf("got %d acl nodes, want 2", len(nodes))
	}
	if nodes[0].KeyPath() != "acl EDGE-IN" {
		t.Errorf("got %q", nodes[0].KeyPath())
	}
	typ := nodes[0].FindChild("type")
	if typ == nil || !typ.IsLeaf || typ.Keys[1] != "ipv4" {
		t.Errorf("type leaf = %+v", typ)
	}
	if nodes[1].IsLeaf || nodes[1].Children == nil {
		t.Errorf("empty block should be a block, got %+v", nodes[1])
	}
	if nodes[0].Line != 4 {
		t.Errorf("acl EDGE-IN on line %d, want 4", nodes[0].Line)
	}
}

func TestParserErrors(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"missing brace", "system { log-level info;", "missing '}'"},
		{"stray brace", "system { } }", "unexpected '}'"},
		{"missing semicolon", "system { log-level info }", `missing ';' after "log-level info"`},
		{"empty statement", "system { ; }", "empty statement"},
		{"bad char", "system { log-level = info; }", "unexpected character '='"},
		{"unclosed list", "system { api-auth { api-key [ a b; } }", `unexpected ';' in list for "api-key a b"`},
		{"stray list close", "system { api-auth { api-key a ]; } }", "unexpected ']'"},
		{"unterminated", `system { log-level "info; }`, "unterminated string"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, errs := NewParser(tt.input).Parse()
			if len(errs) == 0 {
				t.Fatal("expected errors")
			}
			var msgs []string
			for _, e := range errs {
				msgs = append(msgs, e.Error())
			}
			if joined := strings.Join(msgs, "; "); !strings.Contains(joined, tt.want) {
				t.Errorf("errors %q do not mention %q", joined, tt.want)
			}
		})
	}
}

func TestParserReportsAllErrors(t *testing.T) {
	_, errs := NewParser("system { a = 1; b = 2; }").Parse()
	if len(errs) != 2 {
		t.Errorf("got %d errors, want 2: %v", len(errs), errs)
	}
}

func TestFormatRoundTrip(t *testing.T) {
	input := `system {
    grpc-address unix:/run/aclc.sock;
}
access-lists {
    acl EDGE-IN {
        type "ipv4 access-list";
        description "edge \"in\"";
    }
}
`
	tree, errs := NewParser(input).Parse()
	if len(errs) > 0 {
		t.Fatalf("parse errors: %v", errs)
	}
	out := tree.Format()
	if out != input {
		t.Errorf("Format:\n%s\nwant:\n%s", out, input)
	}
}

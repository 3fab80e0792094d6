package config

import "fmt"

// ParseError is a syntax error with its position.
type ParseError struct {
	Line    int
	Column  int
	Message string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("line %d, column %d: %s", e.Line, e.Column, e.Message)
}

// Parser builds a ConfigTree from configuration text.
type Parser struct {
	lex  *Lexer
	errs []error
}

// NewParser creates a parser for input.
func NewParser(input string) *Parser {
	return &Parser{lex: NewLexer(input)}
}

// Parse reads the whole input. It keeps going after an error so that one
// run reports every broken statement; the tree is only trustworthy when
// no errors are returned.
func (p *Parser) Parse() (*ConfigTree, []error) {
	tree := &ConfigTree{}
	tree.Children = p.parseNodes(false)
	return tree, p.errs
}

func (p *Parser) errorf(tok Token, format string, args ...any) {
	p.errs = append(p.errs, &ParseError{
		Line:    tok.Line,
		Column:  tok.Column,
		Message: fmt.Sprintf(format, args...),
	})
}

// parseNodes reads statements until EOF, or until the closing brace when
// nested.
func (p *Parser) parseNodes(nested bool) []*Node {
	var nodes []*Node
	for {
		tok := p.lex.Peek()
		switch tok.Type {
		case TokenEOF:
			if nested {
				p.errorf(tok, "missing '}'")
			}
			return nodes
		case TokenClose:
			p.lex.Next()
			if nested {
				return nodes
			}
			p.errorf(tok, "unexpected '}'")
			continue
		}
		if n := p.parseNode(); n != nil {
			nodes = append(nodes, n)
		}
	}
}

// parseNode reads "key key ... ;" or "key key ... { ... }".
func (p *Parser) parseNode() *Node {
	first := p.lex.Peek()
	n := &Node{Line: first.Line, Column: first.Column}
	for {
		tok := p.lex.Peek()
		switch tok.Type {
		case TokenWord, TokenQuoted:
			p.lex.Next()
			n.Keys = append(n.Keys, tok.Value)
		case TokenListOpen:
			p.lex.Next()
			if len(n.Keys) == 0 {
				p.errorf(tok, "list without a name")
			}
			if !p.parseList(n) {
				p.skipStatement()
				return nil
			}
		case TokenEnd:
			p.lex.Next()
			if len(n.Keys) == 0 {
				p.errorf(tok, "empty statement")
				return nil
			}
			n.IsLeaf = true
			return n
		case TokenOpen:
			p.lex.Next()
			if len(n.Keys) == 0 {
				p.errorf(tok, "block without a name")
			}
			n.Children = p.parseNodes(true)
			if n.Children == nil {
				n.Children = []*Node{}
			}
			return n
		case TokenError:
			p.lex.Next()
			p.errorf(tok, "%s", tok.Value)
			p.skipStatement()
			return nil
		case TokenListClose:
			p.lex.Next()
			p.errorf(tok, "unexpected %s", tok)
			p.skipStatement()
			return nil
		default:
			// EOF or '}' is left for parseNodes.
			p.errorf(tok, "missing ';' after %q", n.KeyPath())
			return nil
		}
	}
}

// parseList appends the words of "[ a b ... ]" to n.Keys. The opening
// bracket is already consumed.
func (p *Parser) parseList(n *Node) bool {
	for {
		tok := p.lex.Peek()
		switch tok.Type {
		case TokenWord, TokenQuoted:
			p.lex.Next()
			n.Keys = append(n.Keys, tok.Value)
		case TokenListClose:
			p.lex.Next()
			return true
		case TokenError:
			p.errorf(tok, "%s in list for %q", tok.Value, n.KeyPath())
			return false
		default:
			p.errorf(tok, "unexpected %s in list for %q", tok, n.KeyPath())
			return false
		}
	}
}

// skipStatement skips to the end of the current statement.
func (p *Parser) skipStatement() {
	for {
		switch p.lex.Peek().Type {
		case TokenEOF, TokenClose:
			return
		case TokenEnd:
			p.lex.Next()
			return
		}
		p.lex.Next()
	}
}

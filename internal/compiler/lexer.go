package compiler

import "fmt"

// tokenKind enumerates the DSL's lexical vocabulary.
type tokenKind int

const (
	tokEOF tokenKind = iota
	tokIdent
	tokArrow  // ->
	tokLBrace // {
	tokRBrace // }
	tokSemi   // ;
	tokColon  // :

	// Keywords. The lexer classifies identifiers against this set so the
	// parser never string-compares.
	tokProtocol
	tokParticipant
	tokChoice
	tokAt
	tokOr
	tokOption
	tokRec
	tokContinue
	tokEnd
)

var keywords = map[string]tokenKind{
	"protocol":    tokProtocol,
	"participant": tokParticipant,
	"choice":      tokChoice,
	"at":          tokAt,
	"or":          tokOr,
	"option":      tokOption,
	"rec":         tokRec,
	"continue":    tokContinue,
	"end":         tokEnd,
}

func (k tokenKind) String() string {
	switch k {
	case tokEOF:
		return "end of input"
	case tokIdent:
		return "identifier"
	case tokArrow:
		return "'->'"
	case tokLBrace:
		return "'{'"
	case tokRBrace:
		return "'}'"
	case tokSemi:
		return "';'"
	case tokColon:
		return "':'"
	default:
		for kw, kind := range keywords {
			if kind == k {
				return fmt.Sprintf("'%s'", kw)
			}
		}
		return "unknown token"
	}
}

type token struct {
	Kind tokenKind
	Text string // identifier text; empty for punctuation
	Pos  Position
}

// lexer produces tokens from protocol source text. Line (//) and block
// (/* */) comments are discarded as whitespace.
type lexer struct {
	src  string
	off  int
	line int
	col  int
}

func newLexer(src string) *lexer {
	return &lexer{src: src, line: 1, col: 1}
}

func (l *lexer) pos() Position {
	return Position{Line: l.line, Col: l.col}
}

func (l *lexer) advance() byte {
	c := l.src[l.off]
	l.off++
	if c == '\n' {
		l.line++
		l.col = 1
	} else {
		l.col++
	}
	return c
}

func (l *lexer) peek() byte {
	if l.off >= len(l.src) {
		return 0
	}
	return l.src[l.off]
}

func (l *lexer) peek2() byte {
	if l.off+1 >= len(l.src) {
		return 0
	}
	return l.src[l.off+1]
}

// next returns the next token, skipping whitespace and comments.
func (l *lexer) next() (token, error) {
	for l.off < len(l.src) {
		c := l.peek()
		switch {
		case c == ' ' || c == '\t' || c == '\r' || c == '\n':
			l.advance()
		case c == '/' && l.peek2() == '/':
			for l.off < len(l.src) && l.peek() != '\n' {
				l.advance()
			}
		case c == '/' && l.peek2() == '*':
			start := l.pos()
			l.advance()
			l.advance()
			closed := false
			for l.off < len(l.src) {
				if l.peek() == '*' && l.peek2() == '/' {
					l.advance()
					l.advance()
					closed = true
					break
				}
				l.advance()
			}
			if !closed {
				return token{}, &SyntaxError{
					Code:    ErrUnterminatedComment,
					Pos:     start,
					Message: "block comment is never closed",
				}
			}
		default:
			return l.scanToken()
		}
	}
	return token{Kind: tokEOF, Pos: l.pos()}, nil
}

func (l *lexer) scanToken() (token, error) {
	pos := l.pos()
	c := l.peek()

	switch c {
	case '{':
		l.advance()
		return token{Kind: tokLBrace, Pos: pos}, nil
	case '}':
		l.advance()
		return token{Kind: tokRBrace, Pos: pos}, nil
	case ';':
		l.advance()
		return token{Kind: tokSemi, Pos: pos}, nil
	case ':':
		l.advance()
		return token{Kind: tokColon, Pos: pos}, nil
	case '-':
		l.advance()
		if l.peek() != '>' {
			return token{}, &SyntaxError{
				Code:    ErrIllegalCharacter,
				Pos:     pos,
				Message: "expected '->' after '-'",
			}
		}
		l.advance()
		return token{Kind: tokArrow, Pos: pos}, nil
	}

	if isIdentStart(c) {
		start := l.off
		for l.off < len(l.src) && isIdentPart(l.peek()) {
			l.advance()
		}
		text := l.src[start:l.off]
		if kind, ok := keywords[text]; ok {
			return token{Kind: kind, Text: text, Pos: pos}, nil
		}
		return token{Kind: tokIdent, Text: text, Pos: pos}, nil
	}

	return token{}, &SyntaxError{
		Code:    ErrIllegalCharacter,
		Pos:     pos,
		Message: fmt.Sprintf("illegal character %q", c),
	}
}

func isIdentStart(c byte) bool {
	return c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func isIdentPart(c byte) bool {
	return isIdentStart(c) || (c >= '0' && c <= '9')
}

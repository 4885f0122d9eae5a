package pipescript

import (
	"fmt"
	"strconv"
	"strings"
)

// TokenType represents the kind of token.
type TokenType int

const (
	tokEOF TokenType = iota
	tokNewline
	tokIdent   // bare word: command or assignment target
	tokVar     // $name
	tokString  // "..."
	tokNumber  // 42, 3.14
	tokPipe    // |
	tokAssign  // =
	tokLParen  // (
	tokRParen  // )
	tokLBrack  // [
	tokRBrack  // ]
	tokLBrace  // {
	tokRBrace  // }
	tokComma   // ,
	tokColon   // :
	tokDot     // .
	tokFn      // fn keyword
)

// Token is a lexical token with its 1-based source position.
type Token struct {
	Type TokenType
	Text string
	Line int
	Col  int
}

func (t Token) String() string {
	switch t.Type {
	case tokEOF:
		return "end of input"
	case tokNewline:
		return "newline"
	default:
		return fmt.Sprintf("%q", t.Text)
	}
}

// SyntaxError is a lex or parse failure with a 1-based position.
type SyntaxError struct {
	Line int
	Col  int
	Msg  string
}

func (e *SyntaxError) Error() string {
	return fmt.Sprintf("%d:%d: %s", e.Line, e.Col, e.Msg)
}

type lexer struct {
	src  string
	pos  int
	line int
	col  int
}

func newLexer(src string) *lexer {
	return &lexer{src: src, line: 1, col: 1}
}

// lex tokenizes the whole source up front. Pipe scripts are short;
// there is no need for a streaming lexer.
func lex(src string) ([]Token, error) {
	l := newLexer(src)
	var toks []Token
	for {
		tok, err := l.next()
		if err != nil {
			return nil, err
		}
		toks = append(toks, tok)
		if tok.Type == tokEOF {
			return toks, nil
		}
	}
}

func (l *lexer) errf(format string, args ...any) error {
	return &SyntaxError{Line: l.line, Col: l.col, Msg: fmt.Sprintf(format, args...)}
}

func (l *lexer) peek() byte {
	if l.pos >= len(l.src) {
		return 0
	}
	return l.src[l.pos]
}

func (l *lexer) advance() byte {
	ch := l.src[l.pos]
	l.pos++
	if ch == '\n' {
		l.line++
		l.col = 1
	} else {
		l.col++
	}
	return ch
}

func (l *lexer) next() (Token, error) {
	l.skipSpace()

	line, col := l.line, l.col
	if l.pos >= len(l.src) {
		return Token{Type: tokEOF, Line: line, Col: col}, nil
	}

	ch := l.peek()
	switch {
	case ch == '\n' || ch == ';':
		l.advance()
		return Token{Type: tokNewline, Text: string(ch), Line: line, Col: col}, nil
	case ch == '|':
		l.advance()
		return Token{Type: tokPipe, Text: "|", Line: line, Col: col}, nil
	case ch == '=':
		l.advance()
		return Token{Type: tokAssign, Text: "=", Line: line, Col: col}, nil
	case ch == '(':
		l.advance()
		return Token{Type: tokLParen, Text: "(", Line: line, Col: col}, nil
	case ch == ')':
		l.advance()
		return Token{Type: tokRParen, Text: ")", Line: line, Col: col}, nil
	case ch == '[':
		l.advance()
		return Token{Type: tokLBrack, Text: "[", Line: line, Col: col}, nil
	case ch == ']':
		l.advance()
		return Token{Type: tokRBrack, Text: "]", Line: line, Col: col}, nil
	case ch == '{':
		l.advance()
		return Token{Type: tokLBrace, Text: "{", Line: line, Col: col}, nil
	case ch == '}':
		l.advance()
		return Token{Type: tokRBrace, Text: "}", Line: line, Col: col}, nil
	case ch == ',':
		l.advance()
		return Token{Type: tokComma, Text: ",", Line: line, Col: col}, nil
	case ch == ':':
		l.advance()
		return Token{Type: tokColon, Text: ":", Line: line, Col: col}, nil
	case ch == '.':
		l.advance()
		return Token{Type: tokDot, Text: ".", Line: line, Col: col}, nil
	case ch == '$':
		return l.lexVar(line, col)
	case ch == '"':
		return l.lexString(line, col)
	case ch >= '0' && ch <= '9':
		return l.lexNumber(line, col)
	case ch == '-' && l.pos+1 < len(l.src) && l.src[l.pos+1] >= '0' && l.src[l.pos+1] <= '9':
		return l.lexNumber(line, col)
	case isIdentStart(ch):
		return l.lexIdent(line, col)
	default:
		return Token{}, l.errf("unexpected character %q", string(ch))
	}
}

func (l *lexer) skipSpace() {
	for l.pos < len(l.src) {
		switch l.peek() {
		case ' ', '\t', '\r':
			l.advance()
		case '#':
			for l.pos < len(l.src) && l.peek() != '\n' {
				l.advance()
			}
		case '\\':
			// Line continuation: backslash followed by a newline.
			if l.pos+1 < len(l.src) && l.src[l.pos+1] == '\n' {
				l.advance()
				l.advance()
			} else {
				return
			}
		default:
			return
		}
	}
}

func (l *lexer) lexVar(line, col int) (Token, error) {
	l.advance() // consume $
	start := l.pos
	for l.pos < len(l.src) && isIdentPart(l.peek()) {
		l.advance()
	}
	if l.pos == start {
		return Token{}, &SyntaxError{Line: line, Col: col, Msg: "expected variable name after '$'"}
	}
	return Token{Type: tokVar, Text: l.src[start:l.pos], Line: line, Col: col}, nil
}

func (l *lexer) lexString(line, col int) (Token, error) {
	l.advance() // consume opening quote
	var b strings.Builder
	for {
		if l.pos >= len(l.src) {
			return Token{}, &SyntaxError{Line: line, Col: col, Msg: "unterminated string"}
		}
		ch := l.advance()
		switch ch {
		case '"':
			return Token{Type: tokString, Text: b.String(), Line: line, Col: col}, nil
		case '\n':
			return Token{}, &SyntaxError{Line: line, Col: col, Msg: "unterminated string"}
		case '\\':
			if l.pos >= len(l.src) {
				return Token{}, &SyntaxError{Line: line, Col: col, Msg: "unterminated string"}
			}
			esc := l.advance()
			switch esc {
			case 'n':
				b.WriteByte('\n')
			case 't':
				b.WriteByte('\t')
			case 'r':
				b.WriteByte('\r')
			case '"':
				b.WriteByte('"')
			case '\\':
				b.WriteByte('\\')
			default:
				return Token{}, l.errf("invalid escape \\%s", string(esc))
			}
		default:
			b.WriteByte(ch)
		}
	}
}

func (l *lexer) lexNumber(line, col int) (Token, error) {
	start := l.pos
	if l.peek() == '-' {
		l.advance()
	}
	seenDot := false
	for l.pos < len(l.src) {
		ch := l.peek()
		if ch == '.' && !seenDot && l.pos+1 < len(l.src) && l.src[l.pos+1] >= '0' && l.src[l.pos+1] <= '9' {
			seenDot = true
			l.advance()
			continue
		}
		if ch < '0' || ch > '9' {
			break
		}
		l.advance()
	}
	text := l.src[start:l.pos]
	if _, err := strconv.ParseFloat(text, 64); err != nil {
		return Token{}, &SyntaxError{Line: line, Col: col, Msg: "invalid number " + text}
	}
	return Token{Type: tokNumber, Text: text, Line: line, Col: col}, nil
}

func (l *lexer) lexIdent(line, col int) (Token, error) {
	start := l.pos
	for l.pos < len(l.src) && isIdentPart(l.peek()) {
		l.advance()
	}
	text := l.src[start:l.pos]
	if text == "fn" {
		return Token{Type: tokFn, Text: text, Line: line, Col: col}, nil
	}
	return Token{Type: tokIdent, Text: text, Line: line, Col: col}, nil
}

func isIdentStart(ch byte) bool {
	return ch == '_' || (ch >= 'a' && ch <= 'z') || (ch >= 'A' && ch <= 'Z')
}

func isIdentPart(ch byte) bool {
	return isIdentStart(ch) || (ch >= '0' && ch <= '9')
}

package parser

type TokenType int

const (
	// Special tokens
	ILLEGAL TokenType = iota
	EOF

	// A whitespace-delimited word: a matcher clause or an action clause.
	// Quoted sections inside a word keep their quotes; the parser strips
	// them when it splits the word into its parts.
	WORD

	// Delimiters
	LBRACKET // [
	RBRACKET // ]
	PIPE     // |
)

type Token struct {
	Type     TokenType
	Literal  string
	Position int
	Column   int
}

// Lexer tokenizes a single rule line. Rule sets are line-oriented, so the
// caller feeds one line at a time; a `#` starts a comment that runs to the
// end of the input.
type Lexer struct {
	input        string
	position     int  // current position in input (points to current char)
	readPosition int  // current reading position in input (after current char)
	ch           byte // current char under examination
	column       int
}

func NewLexer(input string) *Lexer {
	l := &Lexer{input: input}
	l.readChar()
	return l
}

func (l *Lexer) readChar() {
	if l.readPosition >= len(l.input) {
		l.ch = 0
	} else {
		l.ch = l.input[l.readPosition]
	}
	l.position = l.readPosition
	l.readPosition++
	l.column++
}

func (l *Lexer) NextToken() Token {
	var tok Token

	l.skipWhitespace()

	tok.Position = l.position
	tok.Column = l.column

	switch l.ch {
	case '[':
		tok = newToken(LBRACKET, l.ch, l.position, l.column)
	case ']':
		tok = newToken(RBRACKET, l.ch, l.position, l.column)
	case '|':
		tok = newToken(PIPE, l.ch, l.position, l.column)
	case '#':
		// comment runs to the end of the line
		for l.ch != 0 {
			l.readChar()
		}
		tok.Type = EOF
		tok.Literal = ""
		return tok
	case 0:
		tok.Type = EOF
		tok.Literal = ""
	default:
		tok.Type = WORD
		tok.Literal = l.readWord()
		return tok
	}

	l.readChar()
	return tok
}

func newToken(tokenType TokenType, ch byte, position, column int) Token {
	return Token{
		Type:     tokenType,
		Literal:  string(ch),
		Position: position,
		Column:   column,
	}
}

// readWord consumes a run of non-whitespace characters. Brackets and pipes
// only delimit tokens at a word boundary; inside a word they are ordinary
// pattern characters (`function:std::[a-z]*`). A double quote opens a
// quoted section in which whitespace does not terminate the word.
func (l *Lexer) readWord() string {
	position := l.position
	for l.ch != 0 && !isSpace(l.ch) {
		if l.ch == '"' {
			l.readChar()
			for l.ch != '"' && l.ch != 0 {
				l.readChar()
			}
			if l.ch == '"' {
				l.readChar()
			}
			continue
		}
		l.readChar()
	}
	return l.input[position:l.position]
}

func (l *Lexer) skipWhitespace() {
	for isSpace(l.ch) {
		l.readChar()
	}
}

func isSpace(ch byte) bool {
	return ch == ' ' || ch == '\t' || ch == '\r' || ch == '\n'
}

func (t TokenType) String() string {
	switch t {
	case ILLEGAL:
		return "ILLEGAL"
	case EOF:
		return "EOF"
	case WORD:
		return "WORD"
	case LBRACKET:
		return "["
	case RBRACKET:
		return "]"
	case PIPE:
		return "|"
	default:
		return "UNKNOWN"
	}
}

package compiler

import (
	"fmt"
	"unicode"
	"unicode/utf8"
)

type tokenKind int

const (
	tokEOF tokenKind = iota
	tokIdent
	tokLParen
	tokRParen
	tokLBrace
	tokRBrace
	tokLBracket
	tokRBracket
	tokColon
	tokComma
	tokEquals
	tokArrow // =>
	tokRole  // ->
	tokBang
	tokHash
)

var tokenNames = map[tokenKind]string{
	tokEOF:      "end of input",
	tokIdent:    "identifier",
	tokLParen:   `"("`,
	tokRParen:   `")"`,
	tokLBrace:   `"{"`,
	tokRBrace:   `"}"`,
	tokLBracket: `"["`,
	tokRBracket: `"]"`,
	tokColon:    `":"`,
	tokComma:    `","`,
	tokEquals:   `"="`,
	tokArrow:    `"=>"`,
	tokRole:     `"->"`,
	tokBang:     `"!"`,
	tokHash:     `"#"`,
}

func (k tokenKind) String() string {
	if s, ok := tokenNames[k]; ok {
		return s
	}
	return fmt.Sprintf("token(%d)", int(k))
}

type token struct {
	kind   tokenKind
	text   string
	line   int
	column int
}

func (t token) describe() string {
	if t.kind == tokIdent {
		return fmt.Sprintf("%q", t.text)
	}
	return t.kind.String()
}

// lex splits canonical specification text into tokens. Whitespace,
// including newlines, only separates tokens. Identifiers may contain
// interior dots so that type names like Office.Closed and field reads like
// office.identifier arrive as one token.
func lex(src string) ([]token, error) {
	var toks []token
	line, col := 1, 1
	i := 0
	for i < len(src) {
		r, size := utf8.DecodeRuneInString(src[i:])
		if r == utf8.RuneError && size == 1 {
			return nil, &ParseError{Line: line, Column: col, Message: "invalid UTF-8"}
		}
		if r == '\n' {
			i++
			line++
			col = 1
			continue
		}
		if unicode.IsSpace(r) {
			i += size
			col++
			continue
		}

		start := token{line: line, column: col}
		if isIdentStart(r) {
			j := i
			for j < len(src) {
				r2, s2 := utf8.DecodeRuneInString(src[j:])
				if isIdentPart(r2) {
					j += s2
					continue
				}
				if r2 == '.' && j+1 < len(src) {
					next, _ := utf8.DecodeRuneInString(src[j+1:])
					if isIdentStart(next) {
						j++
						continue
					}
				}
				break
			}
			start.kind = tokIdent
			start.text = src[i:j]
			toks = append(toks, start)
			col += utf8.RuneCountInString(start.text)
			i = j
			continue
		}

		width := 1
		switch r {
		case '(':
			start.kind = tokLParen
		case ')':
			start.kind = tokRParen
		case '{':
			start.kind = tokLBrace
		case '}':
			start.kind = tokRBrace
		case '[':
			start.kind = tokLBracket
		case ']':
			start.kind = tokRBracket
		case ':':
			start.kind = tokColon
		case ',':
			start.kind = tokComma
		case '!':
			start.kind = tokBang
		case '#':
			start.kind = tokHash
		case '=':
			start.kind = tokEquals
			if i+1 < len(src) && src[i+1] == '>' {
				start.kind = tokArrow
				width = 2
			}
		case '-':
			if i+1 >= len(src) || src[i+1] != '>' {
				return nil, &ParseError{Line: line, Column: col, Message: `expected "->"`}
			}
			start.kind = tokRole
			width = 2
		default:
			return nil, &ParseError{Line: line, Column: col, Message: fmt.Sprintf("unexpected character %q", r)}
		}
		start.text = src[i : i+width]
		toks = append(toks, start)
		i += width
		col += width
	}
	toks = append(toks, token{kind: tokEOF, line: line, column: col})
	return toks, nil
}

func isIdentStart(r rune) bool {
	return r == '_' || unicode.IsLetter(r)
}

func isIdentPart(r rune) bool {
	return r == '_' || unicode.IsLetter(r) || unicode.IsDigit(r)
}

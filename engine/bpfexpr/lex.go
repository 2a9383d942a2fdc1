// Package bpfexpr 把 tcpdump 风格的过滤表达式编译为经典 BPF 程序。
//
// 支持的语法：
//
//	expr     = term { "or" term }
//	term     = factor { "and" factor }
//	factor   = [ "not" ] ( "(" expr ")" | primitive )
//	primitive = proto | "host" addr | "net" cidr
//	          | "port" num | "portrange" num "-" num
//	proto    = "tcp" | "udp" | "icmp" | "icmp6" | "ip" | "ip6" | "arp" | "ether"
//
// 编译产物可直接经 SO_ATTACH_FILTER 挂到 AF_PACKET 套接字上。
package bpfexpr

import (
	"strings"
	"unicode"
)

type tokenType int

const (
	tokenEOF tokenType = iota
	tokenIdent
	tokenNumber
	tokenAnd
	tokenOr
	tokenNot
	tokenLParen
	tokenRParen
	tokenDash
	tokenHost
	tokenNet
	tokenPort
	tokenPortRange
)

type token struct {
	typ tokenType
	val string
	pos int
}

type lexer struct {
	input   string
	pos     int
	readPos int
	ch      rune
}

func newLexer(input string) *lexer {
	l := &lexer{input: input}
	l.readChar()
	return l
}

func (l *lexer) readChar() {
	if l.readPos >= len(l.input) {
		l.ch = 0
	} else {
		l.ch = rune(l.input[l.readPos])
	}
	l.pos = l.readPos
	l.readPos++
}

func (l *lexer) next() token {
	for unicode.IsSpace(l.ch) {
		l.readChar()
	}

	if l.ch == 0 {
		return token{typ: tokenEOF, pos: l.pos}
	}

	switch l.ch {
	case '(':
		return l.single(tokenLParen)
	case ')':
		return l.single(tokenRParen)
	case '!':
		return l.single(tokenNot)
	case '-':
		return l.single(tokenDash)
	}

	if isLetter(l.ch) {
		pos := l.pos
		ident := l.readIdentifier()
		return token{typ: lookupIdent(ident), val: ident, pos: pos}
	}

	if isDigit(l.ch) {
		pos := l.pos
		num := l.readNumber()
		return token{typ: tokenNumber, val: num, pos: pos}
	}

	tok := token{typ: tokenIdent, val: string(l.ch), pos: l.pos}
	l.readChar()
	return tok
}

func (l *lexer) single(typ tokenType) token {
	tok := token{typ: typ, val: string(l.ch), pos: l.pos}
	l.readChar()
	return tok
}

// readIdentifier 也接受 '.' 与 ':'，这样 IPv4/IPv6 地址字面量会被读成一个词。
func (l *lexer) readIdentifier() string {
	pos := l.pos
	for isLetter(l.ch) || isDigit(l.ch) || l.ch == '.' || l.ch == ':' || l.ch == '/' {
		l.readChar()
	}
	return l.input[pos:l.pos]
}

func (l *lexer) readNumber() string {
	pos := l.pos
	for isDigit(l.ch) || l.ch == '.' || l.ch == ':' || l.ch == '/' || isLetter(l.ch) {
		l.readChar()
	}
	s := l.input[pos:l.pos]
	return s
}

func lookupIdent(ident string) tokenType {
	switch strings.ToLower(ident) {
	case "and":
		return tokenAnd
	case "or":
		return tokenOr
	case "not":
		return tokenNot
	case "host":
		return tokenHost
	case "net":
		return tokenNet
	case "port":
		return tokenPort
	case "portrange":
		return tokenPortRange
	default:
		return tokenIdent
	}
}

func isLetter(ch rune) bool {
	return 'a' <= ch && ch <= 'z' || 'A' <= ch && ch <= 'Z'
}

func isDigit(ch rune) bool {
	return '0' <= ch && ch <= '9'
}

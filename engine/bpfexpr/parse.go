package bpfexpr

import (
	"fmt"
	"net/netip"
	"strconv"
	"strings"
)

// SyntaxError 表达式语法错误，带出错位置。
type SyntaxError struct {
	Pos int
	Msg string
}

func (e *SyntaxError) Error() string {
	return fmt.Sprintf("bpfexpr: syntax error at %d: %s", e.Pos, e.Msg)
}

type nodeType int

const (
	nodeAnd nodeType = iota
	nodeOr
	nodeNot
	nodeProto
	nodeHost
	nodeNet
	nodePort
	nodePortRange
)

type node struct {
	typ   nodeType
	left  *node
	right *node

	proto   string
	host    netip.Addr
	network netip.Prefix
	portLo  int
	portHi  int
}

type parser struct {
	lex  *lexer
	cur  token
	peek token
}

// parse 解析整个表达式，空表达式与尾随垃圾都报语法错误。
func parse(expr string) (*node, error) {
	p := &parser{lex: newLexer(expr)}
	p.advance()
	p.advance()

	if p.cur.typ == tokenEOF {
		return nil, &SyntaxError{Pos: 0, Msg: "empty filter expression"}
	}
	n, err := p.parseExpression()
	if err != nil {
		return nil, err
	}
	if p.cur.typ != tokenEOF {
		return nil, &SyntaxError{Pos: p.cur.pos, Msg: fmt.Sprintf("unexpected %q", p.cur.val)}
	}
	return n, nil
}

func (p *parser) advance() {
	p.cur = p.peek
	p.peek = p.lex.next()
}

func (p *parser) parseExpression() (*node, error) {
	n, err := p.parseTerm()
	if err != nil {
		return nil, err
	}
	for p.cur.typ == tokenOr {
		p.advance()
		right, err := p.parseTerm()
		if err != nil {
			return nil, err
		}
		n = &node{typ: nodeOr, left: n, right: right}
	}
	return n, nil
}

func (p *parser) parseTerm() (*node, error) {
	n, err := p.parseFactor()
	if err != nil {
		return nil, err
	}
	for p.cur.typ == tokenAnd {
		p.advance()
		right, err := p.parseFactor()
		if err != nil {
			return nil, err
		}
		n = &node{typ: nodeAnd, left: n, right: right}
	}
	return n, nil
}

func (p *parser) parseFactor() (*node, error) {
	if p.cur.typ == tokenNot {
		p.advance()
		inner, err := p.parseFactor()
		if err != nil {
			return nil, err
		}
		return &node{typ: nodeNot, left: inner}, nil
	}

	if p.cur.typ == tokenLParen {
		p.advance()
		n, err := p.parseExpression()
		if err != nil {
			return nil, err
		}
		if p.cur.typ != tokenRParen {
			return nil, &SyntaxError{Pos: p.cur.pos, Msg: "expected ')'"}
		}
		p.advance()
		return n, nil
	}

	return p.parsePrimary()
}

func (p *parser) parsePrimary() (*node, error) {
	switch p.cur.typ {
	case tokenHost:
		return p.parseHost()
	case tokenNet:
		return p.parseNet()
	case tokenPort:
		return p.parsePort()
	case tokenPortRange:
		return p.parsePortRange()
	case tokenIdent:
		return p.parseProto()
	default:
		return nil, &SyntaxError{Pos: p.cur.pos, Msg: fmt.Sprintf("unexpected %q", p.cur.val)}
	}
}

var knownProtos = map[string]bool{
	"tcp":   true,
	"udp":   true,
	"icmp":  true,
	"icmp6": true,
	"ip":    true,
	"ip6":   true,
	"arp":   true,
	"ether": true,
}

func (p *parser) parseProto() (*node, error) {
	proto := strings.ToLower(p.cur.val)
	if !knownProtos[proto] {
		return nil, &SyntaxError{Pos: p.cur.pos, Msg: fmt.Sprintf("unknown protocol %q", p.cur.val)}
	}
	p.advance()
	return &node{typ: nodeProto, proto: proto}, nil
}

func (p *parser) parseHost() (*node, error) {
	p.advance()
	if p.cur.typ != tokenIdent && p.cur.typ != tokenNumber {
		return nil, &SyntaxError{Pos: p.cur.pos, Msg: "expected host address"}
	}
	ip, err := netip.ParseAddr(p.cur.val)
	if err != nil {
		return nil, &SyntaxError{Pos: p.cur.pos, Msg: fmt.Sprintf("invalid host address %q", p.cur.val)}
	}
	p.advance()
	return &node{typ: nodeHost, host: ip.Unmap()}, nil
}

func (p *parser) parseNet() (*node, error) {
	p.advance()
	if p.cur.typ != tokenIdent && p.cur.typ != tokenNumber {
		return nil, &SyntaxError{Pos: p.cur.pos, Msg: "expected network prefix"}
	}
	prefix, err := netip.ParsePrefix(p.cur.val)
	if err != nil {
		return nil, &SyntaxError{Pos: p.cur.pos, Msg: fmt.Sprintf("invalid network %q", p.cur.val)}
	}
	p.advance()
	return &node{typ: nodeNet, network: prefix.Masked()}, nil
}

func (p *parser) parsePort() (*node, error) {
	p.advance()
	port, err := p.portNumber()
	if err != nil {
		return nil, err
	}
	return &node{typ: nodePort, portLo: port, portHi: port}, nil
}

func (p *parser) parsePortRange() (*node, error) {
	p.advance()
	lo, err := p.portNumber()
	if err != nil {
		return nil, err
	}
	if p.cur.typ != tokenDash {
		return nil, &SyntaxError{Pos: p.cur.pos, Msg: "expected '-' in port range"}
	}
	p.advance()
	hi, err := p.portNumber()
	if err != nil {
		return nil, err
	}
	if lo > hi {
		return nil, &SyntaxError{Pos: p.cur.pos, Msg: "port range lower bound above upper bound"}
	}
	return &node{typ: nodePortRange, portLo: lo, portHi: hi}, nil
}

func (p *parser) portNumber() (int, error) {
	if p.cur.typ != tokenNumber {
		return 0, &SyntaxError{Pos: p.cur.pos, Msg: "expected port number"}
	}
	port, err := strconv.Atoi(p.cur.val)
	if err != nil || port < 0 || port > 65535 {
		return 0, &SyntaxError{Pos: p.cur.pos, Msg: fmt.Sprintf("invalid port %q", p.cur.val)}
	}
	p.advance()
	return port, nil
}

package pipescript

import "strconv"

// Parse turns pipe script source into an immutable Program. A lex or parse
// failure is returned as a *SyntaxError carrying line and column.
func Parse(src string) (*Program, error) {
	toks, err := lex(src)
	if err != nil {
		return nil, err
	}
	p := &parser{toks: toks}
	prog, err := p.parseProgram(tokEOF)
	if err != nil {
		return nil, err
	}
	return prog, nil
}

type parser struct {
	toks []Token
	pos  int
}

func (p *parser) cur() Token  { return p.toks[p.pos] }
func (p *parser) next() Token { t := p.toks[p.pos]; p.pos++; return t }

func (p *parser) peekType(t TokenType) bool { return p.cur().Type == t }

func (p *parser) errf(tok Token, msg string) error {
	return &SyntaxError{Line: tok.Line, Col: tok.Col, Msg: msg}
}

func (p *parser) skipNewlines() {
	for p.peekType(tokNewline) {
		p.next()
	}
}

// parseProgram parses statements until the end token (tokEOF for the top
// level, tokRBrace inside a function body). The end token is not consumed.
func (p *parser) parseProgram(end TokenType) (*Program, error) {
	prog := &Program{}
	for {
		p.skipNewlines()
		if p.peekType(end) || p.peekType(tokEOF) {
			return prog, nil
		}
		stmt, err := p.parseStmt()
		if err != nil {
			return nil, err
		}
		prog.Stmts = append(prog.Stmts, stmt)
		switch p.cur().Type {
		case tokNewline:
			p.next()
		case end, tokEOF:
		default:
			return nil, p.errf(p.cur(), "unexpected "+p.cur().String())
		}
	}
}

func (p *parser) parseStmt() (Stmt, error) {
	tok := p.cur()
	if tok.Type == tokFn {
		return p.parseFn()
	}
	if tok.Type == tokIdent && p.toks[p.pos+1].Type == tokAssign {
		p.next() // ident
		p.next() // =
		pipe, err := p.parsePipeline()
		if err != nil {
			return nil, err
		}
		return &AssignStmt{
			Name:     tok.Text,
			Value:    pipe,
			Position: Position{Line: tok.Line, Col: tok.Col},
		}, nil
	}
	pipe, err := p.parsePipeline()
	if err != nil {
		return nil, err
	}
	return &ExprStmt{Value: pipe}, nil
}

func (p *parser) parseFn() (Stmt, error) {
	fnTok := p.next() // fn
	name := p.cur()
	if name.Type != tokIdent {
		return nil, p.errf(name, "expected function name, got "+name.String())
	}
	p.next()

	if !p.peekType(tokLParen) {
		return nil, p.errf(p.cur(), "expected '(' after function name")
	}
	p.next()

	var params []string
	for !p.peekType(tokRParen) {
		param := p.cur()
		if param.Type != tokIdent {
			return nil, p.errf(param, "expected parameter name, got "+param.String())
		}
		params = append(params, param.Text)
		p.next()
		if p.peekType(tokComma) {
			p.next()
		} else if !p.peekType(tokRParen) {
			return nil, p.errf(p.cur(), "expected ',' or ')' in parameter list")
		}
	}
	p.next() // )

	p.skipNewlines()
	if !p.peekType(tokLBrace) {
		return nil, p.errf(p.cur(), "expected '{' to open function body")
	}
	p.next()

	body, err := p.parseProgram(tokRBrace)
	if err != nil {
		return nil, err
	}
	if !p.peekType(tokRBrace) {
		return nil, p.errf(p.cur(), "expected '}' to close function body")
	}
	p.next()

	return &FnStmt{
		Name:     name.Text,
		Params:   params,
		Body:     body,
		Position: Position{Line: fnTok.Line, Col: fnTok.Col},
	}, nil
}

func (p *parser) parsePipeline() (*Pipeline, error) {
	pipe := &Pipeline{}
	for {
		stage, err := p.parseStage()
		if err != nil {
			return nil, err
		}
		pipe.Stages = append(pipe.Stages, stage)
		if !p.peekType(tokPipe) {
			return pipe, nil
		}
		p.next()
		p.skipNewlines()
	}
}

// parseStage parses one pipeline stage: a command with arguments, or a plain
// expression. A leading identifier that is not a literal keyword starts a
// command.
func (p *parser) parseStage() (*Stage, error) {
	tok := p.cur()
	if tok.Type == tokIdent && !isLiteralWord(tok.Text) {
		p.next()
		stage := &Stage{Cmd: tok.Text, Position: Position{Line: tok.Line, Col: tok.Col}}
		for startsExpr(p.cur()) {
			arg, err := p.parseExpr()
			if err != nil {
				return nil, err
			}
			stage.Args = append(stage.Args, arg)
		}
		return stage, nil
	}

	expr, err := p.parseExpr()
	if err != nil {
		return nil, err
	}
	return &Stage{Expr: expr, Position: expr.Pos()}, nil
}

func startsExpr(tok Token) bool {
	switch tok.Type {
	case tokVar, tokString, tokNumber, tokLBrack, tokLBrace, tokLParen:
		return true
	case tokIdent:
		return isLiteralWord(tok.Text)
	default:
		return false
	}
}

func isLiteralWord(s string) bool {
	return s == "true" || s == "false" || s == "null"
}

func (p *parser) parseExpr() (Expr, error) {
	tok := p.cur()
	pos := Position{Line: tok.Line, Col: tok.Col}

	switch tok.Type {
	case tokString:
		p.next()
		return &Lit{Val: tok.Text, Position: pos}, nil
	case tokNumber:
		p.next()
		n, _ := strconv.ParseFloat(tok.Text, 64)
		return &Lit{Val: n, Position: pos}, nil
	case tokIdent:
		switch tok.Text {
		case "true":
			p.next()
			return &Lit{Val: true, Position: pos}, nil
		case "false":
			p.next()
			return &Lit{Val: false, Position: pos}, nil
		case "null":
			p.next()
			return &Lit{Val: nil, Position: pos}, nil
		}
		return nil, p.errf(tok, "unexpected "+tok.String()+" in expression")
	case tokVar:
		p.next()
		v := &VarExpr{Name: tok.Text, Position: pos}
		for p.peekType(tokDot) {
			p.next()
			field := p.cur()
			if field.Type != tokIdent {
				return nil, p.errf(field, "expected field name after '.'")
			}
			v.Path = append(v.Path, field.Text)
			p.next()
		}
		return v, nil
	case tokLBrack:
		return p.parseList(pos)
	case tokLBrace:
		return p.parseMap(pos)
	case tokLParen:
		p.next()
		p.skipNewlines()
		pipe, err := p.parsePipeline()
		if err != nil {
			return nil, err
		}
		p.skipNewlines()
		if !p.peekType(tokRParen) {
			return nil, p.errf(p.cur(), "expected ')'")
		}
		p.next()
		return &GroupExpr{Pipe: pipe, Position: pos}, nil
	default:
		return nil, p.errf(tok, "unexpected "+tok.String())
	}
}

func (p *parser) parseList(pos Position) (Expr, error) {
	p.next() // [
	list := &ListExpr{Position: pos}
	p.skipNewlines()
	for !p.peekType(tokRBrack) {
		elem, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		list.Elems = append(list.Elems, elem)
		p.skipNewlines()
		if p.peekType(tokComma) {
			p.next()
			p.skipNewlines()
		} else if !p.peekType(tokRBrack) {
			return nil, p.errf(p.cur(), "expected ',' or ']' in list")
		}
	}
	p.next() // ]
	return list, nil
}

func (p *parser) parseMap(pos Position) (Expr, error) {
	p.next() // {
	m := &MapExpr{Position: pos}
	p.skipNewlines()
	for !p.peekType(tokRBrace) {
		key := p.cur()
		if key.Type != tokIdent && key.Type != tokString {
			return nil, p.errf(key, "expected map key, got "+key.String())
		}
		p.next()
		if !p.peekType(tokColon) {
			return nil, p.errf(p.cur(), "expected ':' after map key")
		}
		p.next()
		p.skipNewlines()
		val, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		m.Keys = append(m.Keys, key.Text)
		m.Vals = append(m.Vals, val)
		p.skipNewlines()
		if p.peekType(tokComma) {
			p.next()
			p.skipNewlines()
		} else if !p.peekType(tokRBrace) {
			return nil, p.errf(p.cur(), "expected ',' or '}' in map")
		}
	}
	p.next() // }
	return m, nil
}

package compiler

import (
	"fmt"

	"github.com/choreolang/choreo/internal/ir"
)

// Parse lexes and parses protocol source text into a global protocol
// tree. Role references and recursion-label scoping are checked
// incrementally during the parse so those errors carry source positions.
// Guardedness and the choice leading-sender rule are whole-tree
// properties and are checked by CheckWellFormed; use Compile for the
// full pipeline.
func Parse(src string) (*ir.GlobalProtocol, error) {
	p := &parser{lex: newLexer(src), roles: map[ir.Role]bool{}}
	if err := p.advance(); err != nil {
		return nil, err
	}
	proto, err := p.parseProtocol()
	if err != nil {
		return nil, err
	}
	if p.tok.Kind != tokEOF {
		return nil, p.unexpected("end of input")
	}
	return proto, nil
}

// Compile runs the full pipeline: Parse followed by CheckWellFormed.
// On success the returned tree is well-formed and safe to project.
func Compile(src string) (*ir.GlobalProtocol, error) {
	proto, err := Parse(src)
	if err != nil {
		return nil, err
	}
	if err := CheckWellFormed(proto); err != nil {
		return nil, err
	}
	return proto, nil
}

type parser struct {
	lex    *lexer
	tok    token
	roles  map[ir.Role]bool
	labels []string // rec labels in scope, innermost last
}

func (p *parser) advance() error {
	tok, err := p.lex.next()
	if err != nil {
		return err
	}
	p.tok = tok
	return nil
}

func (p *parser) expect(kind tokenKind) (token, error) {
	if p.tok.Kind != kind {
		return token{}, p.unexpected(kind.String())
	}
	tok := p.tok
	if err := p.advance(); err != nil {
		return token{}, err
	}
	return tok, nil
}

func (p *parser) unexpected(want string) error {
	code := ErrUnexpectedToken
	if p.tok.Kind == tokEOF {
		code = ErrUnexpectedEOF
	}
	got := p.tok.Kind.String()
	if p.tok.Kind == tokIdent {
		got = fmt.Sprintf("identifier %q", p.tok.Text)
	}
	return &SyntaxError{
		Code:    code,
		Pos:     p.tok.Pos,
		Message: fmt.Sprintf("expected %s, found %s", want, got),
	}
}

// parseProtocol implements:
//
//	Protocol    ::= "protocol" Name "{" Participant* Interaction* "}"
//	Participant ::= "participant" Name ";"
func (p *parser) parseProtocol() (*ir.GlobalProtocol, error) {
	if _, err := p.expect(tokProtocol); err != nil {
		return nil, err
	}
	name, err := p.expect(tokIdent)
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(tokLBrace); err != nil {
		return nil, err
	}

	proto := &ir.GlobalProtocol{Name: name.Text}
	for p.tok.Kind == tokParticipant {
		if err := p.advance(); err != nil {
			return nil, err
		}
		role, err := p.expect(tokIdent)
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(tokSemi); err != nil {
			return nil, err
		}
		if p.roles[ir.Role(role.Text)] {
			return nil, &SemanticError{
				Code:    ErrDuplicateRole,
				Pos:     role.Pos,
				Message: fmt.Sprintf("participant %q is already declared", role.Text),
				Role:    role.Text,
				Branch:  -1,
			}
		}
		p.roles[ir.Role(role.Text)] = true
		proto.Roles = append(proto.Roles, ir.Role(role.Text))
	}

	body, err := p.parseInteractions()
	if err != nil {
		return nil, err
	}
	proto.Body = body

	if _, err := p.expect(tokRBrace); err != nil {
		return nil, err
	}
	return proto, nil
}

// parseInteractions parses a statement sequence up to (not consuming)
// the closing brace of the enclosing block. Messages chain through
// their continuations; choice, rec, continue, and end terminate the
// sequence, so anything after them is unreachable and rejected.
func (p *parser) parseInteractions() (ir.Global, error) {
	switch p.tok.Kind {
	case tokRBrace:
		return &ir.GEnd{}, nil

	case tokEnd:
		if err := p.advance(); err != nil {
			return nil, err
		}
		if _, err := p.expect(tokSemi); err != nil {
			return nil, err
		}
		if err := p.requireBlockEnd("end"); err != nil {
			return nil, err
		}
		return &ir.GEnd{}, nil

	case tokContinue:
		if err := p.advance(); err != nil {
			return nil, err
		}
		label, err := p.expect(tokIdent)
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(tokSemi); err != nil {
			return nil, err
		}
		if !p.labelInScope(label.Text) {
			return nil, &SemanticError{
				Code:    ErrUnboundLabel,
				Pos:     label.Pos,
				Message: fmt.Sprintf("continue %s has no enclosing rec %s", label.Text, label.Text),
				Label:   label.Text,
				Branch:  -1,
			}
		}
		if err := p.requireBlockEnd("continue"); err != nil {
			return nil, err
		}
		return &ir.GVar{Label: label.Text}, nil

	case tokRec:
		return p.parseRec()

	case tokChoice:
		return p.parseChoice()

	case tokIdent:
		return p.parseMessage()

	default:
		return nil, p.unexpected("an interaction")
	}
}

// parseMessage implements: Message ::= Name "->" Name ":" TypeRef ";"
func (p *parser) parseMessage() (ir.Global, error) {
	from, err := p.expect(tokIdent)
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(tokArrow); err != nil {
		return nil, err
	}
	to, err := p.expect(tokIdent)
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(tokColon); err != nil {
		return nil, err
	}
	payload, err := p.expect(tokIdent)
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(tokSemi); err != nil {
		return nil, err
	}

	if err := p.checkRole(from); err != nil {
		return nil, err
	}
	if err := p.checkRole(to); err != nil {
		return nil, err
	}
	if from.Text == to.Text {
		return nil, &SemanticError{
			Code:    ErrSelfMessage,
			Pos:     from.Pos,
			Message: fmt.Sprintf("role %s cannot send a message to itself", from.Text),
			Role:    from.Text,
			Branch:  -1,
		}
	}

	cont, err := p.parseInteractions()
	if err != nil {
		return nil, err
	}
	return &ir.GMessage{
		From:    ir.Role(from.Text),
		To:      ir.Role(to.Text),
		Payload: payload.Text,
		Cont:    cont,
	}, nil
}

// parseRec implements: RecBlock ::= "rec" Name "{" Interaction* "}"
func (p *parser) parseRec() (ir.Global, error) {
	if err := p.advance(); err != nil {
		return nil, err
	}
	label, err := p.expect(tokIdent)
	if err != nil {
		return nil, err
	}
	if p.labelInScope(label.Text) {
		return nil, &SemanticError{
			Code:    ErrShadowedLabel,
			Pos:     label.Pos,
			Message: fmt.Sprintf("rec label %s shadows an enclosing rec with the same label", label.Text),
			Label:   label.Text,
			Branch:  -1,
		}
	}
	if _, err := p.expect(tokLBrace); err != nil {
		return nil, err
	}

	p.labels = append(p.labels, label.Text)
	body, err := p.parseInteractions()
	p.labels = p.labels[:len(p.labels)-1]
	if err != nil {
		return nil, err
	}

	if _, err := p.expect(tokRBrace); err != nil {
		return nil, err
	}
	if err := p.requireBlockEnd("rec"); err != nil {
		return nil, err
	}
	return &ir.GRec{Label: label.Text, Body: body}, nil
}

// parseChoice implements:
//
//	ChoiceBlock ::= "choice" "at" Name "{" Branch ("or" Branch)* "}"
//	Branch      ::= ("option" Name)? "{" Interaction* "}"
func (p *parser) parseChoice() (ir.Global, error) {
	choicePos := p.tok.Pos
	if err := p.advance(); err != nil {
		return nil, err
	}
	if _, err := p.expect(tokAt); err != nil {
		return nil, err
	}
	decider, err := p.expect(tokIdent)
	if err != nil {
		return nil, err
	}
	if err := p.checkRole(decider); err != nil {
		return nil, err
	}
	if _, err := p.expect(tokLBrace); err != nil {
		return nil, err
	}

	var branches []ir.GBranch
	for {
		branch, err := p.parseBranch()
		if err != nil {
			return nil, err
		}
		branches = append(branches, branch)
		if p.tok.Kind != tokOr {
			break
		}
		if err := p.advance(); err != nil {
			return nil, err
		}
	}

	if _, err := p.expect(tokRBrace); err != nil {
		return nil, err
	}
	if len(branches) < 2 {
		return nil, &SemanticError{
			Code:    ErrChoiceArity,
			Pos:     choicePos,
			Message: "choice requires at least two branches",
			Role:    decider.Text,
			Branch:  -1,
		}
	}
	if err := p.requireBlockEnd("choice"); err != nil {
		return nil, err
	}
	return &ir.GChoice{Decider: ir.Role(decider.Text), Branches: branches}, nil
}

func (p *parser) parseBranch() (ir.GBranch, error) {
	var label string
	if p.tok.Kind == tokOption {
		if err := p.advance(); err != nil {
			return ir.GBranch{}, err
		}
		name, err := p.expect(tokIdent)
		if err != nil {
			return ir.GBranch{}, err
		}
		label = name.Text
	}
	if _, err := p.expect(tokLBrace); err != nil {
		return ir.GBranch{}, err
	}
	body, err := p.parseInteractions()
	if err != nil {
		return ir.GBranch{}, err
	}
	if _, err := p.expect(tokRBrace); err != nil {
		return ir.GBranch{}, err
	}
	return ir.GBranch{Label: label, Body: body}, nil
}

// requireBlockEnd enforces that a sequence terminator (choice, rec,
// continue, end) is the last statement of its block.
func (p *parser) requireBlockEnd(after string) error {
	if p.tok.Kind == tokRBrace || p.tok.Kind == tokEOF {
		return nil
	}
	return &SyntaxError{
		Code:    ErrUnreachableStatement,
		Pos:     p.tok.Pos,
		Message: fmt.Sprintf("unreachable interaction after %q", after),
	}
}

func (p *parser) checkRole(tok token) error {
	if p.roles[ir.Role(tok.Text)] {
		return nil
	}
	return &SemanticError{
		Code:    ErrUndeclaredRole,
		Pos:     tok.Pos,
		Message: fmt.Sprintf("participant %q is not declared", tok.Text),
		Role:    tok.Text,
		Branch:  -1,
	}
}

func (p *parser) labelInScope(label string) bool {
	for _, l := range p.labels {
		if l == label {
			return true
		}
	}
	return false
}

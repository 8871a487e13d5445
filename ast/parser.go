package ast

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// Ext is the extension of circuit description files.
const Ext = ".vsat"

var keywords = map[string]bool{
	"static": true,
	"save":   true,
	"shared": true,
	"config": true,
	"return": true,
}

type scanner struct {
	src     []byte
	pos     int
	pkgName string
}

func newScanner(src []byte, pkgName string) *scanner {
	return &scanner{src, 0, pkgName}
}

func isLetter(c byte) bool {
	return ('a' <= c && c <= 'z') || ('A' <= c && c <= 'Z') || c == '_'
}

func isDigit(c byte) bool {
	return '0' <= c && c <= '9'
}

func isSpace(c byte) bool {
	return c == ' ' || c == '\n' || c == '\r' || c == '\t'
}

func (s *scanner) line() int {
	return strings.Count(string(s.src[:s.pos]), "\n") + 1
}

func (s *scanner) errorf(format string, args ...interface{}) error {
	return errors.Errorf("%s:%d: %s", s.pkgName, s.line(), fmt.Sprintf(format, args...))
}

func (s *scanner) readWord() []byte {
	if s.pos >= len(s.src) || !isLetter(s.src[s.pos]) {
		return nil
	}
	pos := s.pos
	for s.pos < len(s.src) && (isLetter(s.src[s.pos]) || isDigit(s.src[s.pos])) {
		s.pos++
	}
	return s.src[pos:s.pos]
}

func (s *scanner) peekWord() []byte {
	pos := s.pos
	w := s.readWord()
	s.pos = pos
	return w
}

func (s *scanner) readChar() *byte {
	if s.pos < len(s.src) {
		ch := s.src[s.pos]
		s.pos++
		return &ch
	}
	return nil
}

func (s *scanner) peekChar() *byte {
	if s.pos < len(s.src) {
		return &s.src[s.pos]
	}
	return nil
}

func (s *scanner) peekIs(c byte) bool {
	ch := s.peekChar()
	return ch != nil && *ch == c
}

func (s *scanner) expect(c byte) error {
	s.skipSpaces()
	ch := s.readChar()
	if ch == nil {
		return s.errorf("expected %q, found eof", c)
	}
	if *ch != c {
		return s.errorf("expected %q, found %q", c, *ch)
	}
	return nil
}

// skipSpaces also skips // comments.
func (s *scanner) skipSpaces() {
	for s.pos < len(s.src) {
		switch {
		case isSpace(s.src[s.pos]):
			s.pos++
		case s.src[s.pos] == '/' && s.pos+1 < len(s.src) && s.src[s.pos+1] == '/':
			for s.pos < len(s.src) && s.src[s.pos] != '\n' {
				s.pos++
			}
		default:
			return
		}
	}
}

func (s *scanner) readIdent(what string) (string, error) {
	s.skipSpaces()
	w := s.readWord()
	if w == nil {
		if s.peekChar() == nil {
			return "", s.errorf("expected %s, found eof", what)
		}
		return "", s.errorf("expected %s, found %q", what, *s.peekChar())
	}
	return string(w), nil
}

func (s *scanner) readInt() (int, error) {
	s.skipSpaces()
	pos := s.pos
	if s.peekIs('-') {
		s.pos++
	}
	for s.pos < len(s.src) && isDigit(s.src[s.pos]) {
		s.pos++
	}
	v, err := strconv.Atoi(string(s.src[pos:s.pos]))
	if err != nil {
		s.pos = pos
		return 0, s.errorf("expected number")
	}
	return v, nil
}

func (s *scanner) readOneImport() (string, error) {
	if err := s.expect('"'); err != nil {
		return "", err
	}
	pkg := s.readWord()
	if pkg == nil {
		return "", s.errorf("expected import name")
	}
	if err := s.expect('"'); err != nil {
		return "", err
	}
	return string(pkg), nil
}

func (s *scanner) readImports() ([]string, error) {
	if kw, _ := s.readIdent("import"); kw != "import" {
		return nil, s.errorf("package should start with import keyword")
	}
	if err := s.expect('('); err != nil {
		return nil, err
	}

	imports := make([]string, 0)
	s.skipSpaces()
	for !s.peekIs(')') {
		if s.peekChar() == nil {
			return nil, s.errorf("expected import name, found eof")
		}
		imp, err := s.readOneImport()
		if err != nil {
			return nil, err
		}
		imports = append(imports, imp)
		s.skipSpaces()
	}

	_ = s.readChar() // skip )
	return imports, nil
}

func (s *scanner) readFieldList() ([]string, error) {
	results := []string{}
	for {
		name, err := s.readIdent("name")
		if err != nil {
			return nil, err
		}
		results = append(results, name)
		s.skipSpaces()
		if !s.peekIs(',') {
			return results, nil
		}
		_ = s.readChar()
	}
}

func (s *scanner) readParams() ([]*Param, error) {
	if err := s.expect('('); err != nil {
		return nil, err
	}
	params := []*Param{}
	s.skipSpaces()
	if s.peekIs(')') {
		_ = s.readChar()
		return params, nil
	}
	names, err := s.readFieldList()
	if err != nil {
		return nil, err
	}
	for _, n := range names {
		params = append(params, &Param{Name: n})
	}
	if err := s.expect(')'); err != nil {
		return nil, err
	}
	return params, nil
}

func (s *scanner) readArg() (*Arg, error) {
	s.skipSpaces()
	if s.peekIs('#') {
		_ = s.readChar()
		v, err := s.readInt()
		if err != nil {
			return nil, err
		}
		return &Arg{Literal: &v}, nil
	}
	name, err := s.readIdent("argument")
	if err != nil {
		return nil, err
	}
	arg := &Arg{Name: name}
	s.skipSpaces()
	if s.peekIs('@') {
		_ = s.readChar()
		if arg.Delay, err = s.readInt(); err != nil {
			return nil, err
		}
		if arg.Delay < 0 {
			return nil, s.errorf("negative delay on %s", name)
		}
	}
	return arg, nil
}

func (s *scanner) readArgs() ([]*Arg, error) {
	if err := s.expect('('); err != nil {
		return nil, err
	}
	args := []*Arg{}
	s.skipSpaces()
	if s.peekIs(')') {
		_ = s.readChar()
		return args, nil
	}
	for {
		a, err := s.readArg()
		if err != nil {
			return nil, err
		}
		args = append(args, a)
		s.skipSpaces()
		if !s.peekIs(',') {
			break
		}
		_ = s.readChar()
	}
	if err := s.expect(')'); err != nil {
		return nil, err
	}
	return args, nil
}

func (s *scanner) readQualifiedName() (string, error) {
	name, err := s.readIdent("unit name")
	if err != nil {
		return "", err
	}
	if s.peekIs('.') {
		_ = s.readChar()
		sub, err := s.readIdent("unit name")
		if err != nil {
			return "", err
		}
		name = name + "." + sub
	}
	return name, nil
}

func (s *scanner) readModifiers(op *ChipOp) error {
	for {
		s.skipSpaces()
		switch string(s.peekWord()) {
		case "static":
			_ = s.readWord()
			op.Static = true
		case "save":
			_ = s.readWord()
			op.Save = true
		case "shared":
			_ = s.readWord()
			idx, err := s.readInt()
			if err != nil {
				return err
			}
			op.Shared = &idx
		case "config":
			_ = s.readWord()
			for {
				v, err := s.readInt()
				if err != nil {
					return err
				}
				op.Config = append(op.Config, v)
				s.skipSpaces()
				if !s.peekIs(',') {
					break
				}
				_ = s.readChar()
			}
		default:
			return nil
		}
	}
}

func (s *scanner) readOp() (*ChipOp, error) {
	op := &ChipOp{Line: s.line()}
	results, err := s.readFieldList()
	if err != nil {
		return nil, err
	}
	for _, r := range results {
		if keywords[r] {
			return nil, s.errorf("%s is a keyword", r)
		}
	}
	op.Results = results

	if err := s.expect(':'); err != nil {
		return nil, err
	}
	if err := s.expect('='); err != nil {
		return nil, err
	}
	if op.ChipName, err = s.readQualifiedName(); err != nil {
		return nil, err
	}
	if op.Args, err = s.readArgs(); err != nil {
		return nil, err
	}
	if err := s.readModifiers(op); err != nil {
		return nil, err
	}
	return op, nil
}

func (s *scanner) readChipImpl() (*ChipBody, error) {
	if err := s.expect('{'); err != nil {
		return nil, err
	}

	body := &ChipBody{Ops: []*ChipOp{}}
	for {
		s.skipSpaces()
		if s.peekChar() == nil {
			return nil, s.errorf("expected statement, found eof")
		}
		if s.peekIs('}') {
			_ = s.readChar()
			return body, nil
		}

		if string(s.peekWord()) == "return" {
			_ = s.readWord()
			if body.Results != nil {
				return nil, s.errorf("second return")
			}
			res, err := s.readFieldList()
			if err != nil {
				return nil, err
			}
			body.Results = res
			continue
		}

		op, err := s.readOp()
		if err != nil {
			return nil, err
		}
		body.Ops = append(body.Ops, op)
	}
}

func (s *scanner) readChip() (*Chip, error) {
	if kw, _ := s.readIdent("chip"); kw != "chip" {
		return nil, s.errorf("expected chip keyword")
	}
	chipName, err := s.readIdent("chip name")
	if err != nil {
		return nil, err
	}
	ins, err := s.readParams()
	if err != nil {
		return nil, err
	}
	impl, err := s.readChipImpl()
	if err != nil {
		return nil, err
	}
	return &Chip{s.pkgName + "." + chipName, &ChipSignature{Inputs: ins}, impl}, nil
}

func (s *scanner) readIterative() (*Iterative, error) {
	if kw, _ := s.readIdent("iterative"); kw != "iterative" {
		return nil, s.errorf("expected iterative keyword")
	}
	name, err := s.readIdent("iterative name")
	if err != nil {
		return nil, err
	}
	it := &Iterative{Name: s.pkgName + "." + name}
	if err := s.expect('{'); err != nil {
		return nil, err
	}
	for {
		s.skipSpaces()
		if s.peekIs('}') {
			_ = s.readChar()
			break
		}
		key, err := s.readIdent("iterative field")
		if err != nil {
			return nil, err
		}
		switch key {
		case "unit":
			it.Unit, err = s.readQualifiedName()
		case "initial":
			it.Initial, err = s.readQualifiedName()
		case "loop":
			it.Loop, err = s.readQualifiedName()
		case "latency":
			it.Latency, err = s.readInt()
		case "data":
			it.Data, err = s.readInt()
		default:
			return nil, s.errorf("unknown iterative field %s", key)
		}
		if err != nil {
			return nil, err
		}
	}
	if it.Unit == "" || it.Initial == "" || it.Loop == "" {
		return nil, s.errorf("iterative %s needs unit, initial and loop", name)
	}
	return it, nil
}

func (s *scanner) readPackage(name string) (*Package, error) {
	s.skipSpaces()
	var imports []string
	if string(s.peekWord()) == "import" {
		var err error
		if imports, err = s.readImports(); err != nil {
			return nil, err
		}
	}

	chips := make([]*Chip, 0)
	iteratives := make([]*Iterative, 0)
	for s.skipSpaces(); s.peekChar() != nil; s.skipSpaces() {
		switch string(s.peekWord()) {
		case "chip":
			c, err := s.readChip()
			if err != nil {
				return nil, err
			}
			chips = append(chips, c)
		case "iterative":
			it, err := s.readIterative()
			if err != nil {
				return nil, err
			}
			iteratives = append(iteratives, it)
		default:
			return nil, s.errorf("unexpected declaration")
		}
	}
	return NewPackage(name, imports, chips, iteratives), nil
}

// Parse parses the source of package name.
func Parse(name string, src []byte) (*Package, error) {
	return newScanner(src, name).readPackage(name)
}

// ParsePackage reads dir/pkg.vsat.
func ParsePackage(dir, pkg string) (*Package, error) {
	buf, err := os.ReadFile(filepath.Join(dir, pkg+Ext))
	if err != nil {
		return nil, errors.Wrapf(err, "package %s", pkg)
	}
	return Parse(pkg, buf)
}

// LoadPackages parses root and, transitively, every package it imports.
func LoadPackages(dir, root string) ([]*Package, error) {
	var pkgs []*Package
	visited := map[string]struct{}{}
	queue := []string{root}

	for len(queue) > 0 {
		name := queue[len(queue)-1]
		queue = queue[:len(queue)-1]
		if _, ok := visited[name]; ok {
			continue
		}
		visited[name] = struct{}{}

		pkg, err := ParsePackage(dir, name)
		if err != nil {
			return nil, err
		}
		pkgs = append(pkgs, pkg)
		queue = append(queue, pkg.Imports...)
	}
	return pkgs, nil
}

package adapter

import (
	"go/ast"
	"go/parser"
	"go/token"
	"slices"

	m "tia.dev/pkg/tia/internal/model"
)

// GoFileAdapter turns Go source files into compiled module structures so the
// domain layer can instrument them without knowing about go/ast.
type GoFileAdapter interface {
	// Parse builds an AST using the provided file set and optional source bytes.
	Parse(fileSet *token.FileSet, filename string, src []byte) (*ast.File, error)

	// Lower converts every function body of file into a block graph.
	Lower(fileSet *token.FileSet, file *ast.File, module m.ModuleName, origin m.Path) m.ModuleStructure
}

// LocalGoFileAdapter provides a concrete GoFileAdapter backed by go/parser.
type LocalGoFileAdapter struct{}

// NewLocalGoFileAdapter constructs a LocalGoFileAdapter.
func NewLocalGoFileAdapter() *LocalGoFileAdapter {
	return &LocalGoFileAdapter{}
}

// Parse builds an AST for the provided filename/source pair. Identifiers are
// resolved so that locals shadowing tracked data are told apart.
func (a *LocalGoFileAdapter) Parse(fileSet *token.FileSet, filename string, src []byte) (*ast.File, error) {
	return parser.ParseFile(fileSet, filename, src, 0)
}

// Lower records struct fields and package variables as tracked data and
// lowers each function with a body.
func (a *LocalGoFileAdapter) Lower(fileSet *token.FileSet, file *ast.File, module m.ModuleName, origin m.Path) m.ModuleStructure {
	structure := m.ModuleStructure{Module: module, Origin: origin}
	scope := newDataScope(file)

	structure.Fields = slices.Clone(scope.decls)

	for _, decl := range file.Decls {
		fn, ok := decl.(*ast.FuncDecl)
		if !ok || fn.Body == nil {
			continue
		}

		structure.Methods = append(structure.Methods, lowerFunc(fileSet, scope, fn))
	}

	return structure
}

// dataScope knows which identifiers and selectors denote tracked data.
type dataScope struct {
	pkg     string
	decls   []m.FieldDecl
	statics map[string]bool            // package variable -> tracked
	specs   map[*ast.ValueSpec]bool    // package-level var specs
	fields  map[string]map[string]bool // type -> field -> tracked
}

func newDataScope(file *ast.File) *dataScope {
	s := &dataScope{
		pkg:     file.Name.Name,
		statics: map[string]bool{},
		specs:   map[*ast.ValueSpec]bool{},
		fields:  map[string]map[string]bool{},
	}

	for _, decl := range file.Decls {
		gen, ok := decl.(*ast.GenDecl)
		if !ok {
			continue
		}

		for _, spec := range gen.Specs {
			switch sp := spec.(type) {
			case *ast.ValueSpec:
				if gen.Tok != token.VAR {
					continue
				}

				s.specs[sp] = true

				for _, name := range sp.Names {
					if name.Name == "_" {
						continue
					}

					s.statics[name.Name] = true
					s.decls = append(s.decls, m.FieldDecl{Name: s.pkg + "." + name.Name, Static: true})
				}
			case *ast.TypeSpec:
				st, ok := sp.Type.(*ast.StructType)
				if !ok {
					continue
				}

				s.addStruct(sp.Name.Name, st)
			}
		}
	}

	return s
}

func (s *dataScope) addStruct(typeName string, st *ast.StructType) {
	fields := map[string]bool{}

	for _, field := range st.Fields.List {
		for _, name := range field.Names {
			if name.Name == "_" {
				continue
			}

			fields[name.Name] = true
			s.decls = append(s.decls, m.FieldDecl{Name: typeName + "." + name.Name})
		}
	}

	s.fields[typeName] = fields
}

// receiver describes the method receiver whose field selectors are tracked.
type receiver struct {
	name     string
	typeName string
	field    *ast.Field
}

func receiverOf(fn *ast.FuncDecl) receiver {
	if fn.Recv == nil || len(fn.Recv.List) == 0 {
		return receiver{}
	}

	field := fn.Recv.List[0]

	typ := field.Type
	if star, ok := typ.(*ast.StarExpr); ok {
		typ = star.X
	}

	switch t := typ.(type) {
	case *ast.IndexExpr:
		typ = t.X
	case *ast.IndexListExpr:
		typ = t.X
	}

	ident, ok := typ.(*ast.Ident)
	if !ok {
		return receiver{}
	}

	r := receiver{typeName: ident.Name, field: field}
	if len(field.Names) > 0 && field.Names[0].Name != "_" {
		r.name = field.Names[0].Name
	}

	return r
}

// access classifies expr as a tracked datum and returns its qualified name.
func (s *dataScope) access(recv receiver, expr ast.Expr) (string, bool) {
	switch e := expr.(type) {
	case *ast.ParenExpr:
		return s.access(recv, e.X)
	case *ast.Ident:
		if s.statics[e.Name] && e.Name != recv.name && s.packageLevel(e) {
			return s.pkg + "." + e.Name, true
		}
	case *ast.SelectorExpr:
		base, ok := e.X.(*ast.Ident)
		if !ok || recv.name == "" || base.Name != recv.name {
			return "", false
		}

		if base.Obj != nil && base.Obj.Decl != recv.field {
			return "", false
		}

		if s.fields[recv.typeName][e.Sel.Name] {
			return recv.typeName + "." + e.Sel.Name, true
		}
	}

	return "", false
}

// packageLevel reports whether ident refers to a package variable rather than
// a local or parameter of the same name. Unresolved identifiers are taken at
// their name.
func (s *dataScope) packageLevel(ident *ast.Ident) bool {
	if ident.Obj == nil {
		return true
	}

	spec, ok := ident.Obj.Decl.(*ast.ValueSpec)

	return ok && s.specs[spec]
}

// reads collects tracked reads inside node, in source order.
func (s *dataScope) reads(recv receiver, node ast.Node) []m.FieldAccess {
	if node == nil {
		return nil
	}

	var out []m.FieldAccess

	ast.Inspect(node, func(n ast.Node) bool {
		switch e := n.(type) {
		case *ast.FuncLit:
			return false
		case *ast.SelectorExpr:
			if name, ok := s.access(recv, e); ok {
				out = append(out, m.FieldAccess{Field: name})
			} else {
				out = append(out, s.reads(recv, e.X)...)
			}

			return false
		case *ast.KeyValueExpr:
			if _, ok := e.Key.(*ast.Ident); !ok {
				out = append(out, s.reads(recv, e.Key)...)
			}

			out = append(out, s.reads(recv, e.Value)...)

			return false
		case *ast.Ident:
			if name, ok := s.access(recv, e); ok {
				out = append(out, m.FieldAccess{Field: name})
			}
		}

		return true
	})

	return out
}

// assignment returns the accesses of an assignment: right-hand reads, then
// compound reads, then writes.
func (s *dataScope) assignment(recv receiver, lhs, rhs []ast.Expr, compound bool) []m.FieldAccess {
	var out []m.FieldAccess

	for _, expr := range rhs {
		out = append(out, s.reads(recv, expr)...)
	}

	var writes []m.FieldAccess

	for _, expr := range lhs {
		if name, ok := s.access(recv, expr); ok {
			if compound {
				out = append(out, m.FieldAccess{Field: name})
			}

			writes = append(writes, m.FieldAccess{Field: name, Write: true})

			continue
		}

		out = append(out, s.reads(recv, expr)...)
	}

	return append(out, writes...)
}

type end struct {
	block int
	slot  int
}

type jumpTarget struct {
	label     string
	breaks    []end
	continues []end
	loop      bool
}

// builder lowers one function body to blocks. Dangling edges are kept in open
// and patched to the next block created.
type builder struct {
	fset    *token.FileSet
	scope   *dataScope
	recv    receiver
	blocks  []m.Block
	open    []end
	cur     int
	targets []*jumpTarget
	labels  map[string]int
	gotos   map[string][]end
	label   string
}

func lowerFunc(fset *token.FileSet, scope *dataScope, fn *ast.FuncDecl) m.Method {
	b := &builder{
		fset:   fset,
		scope:  scope,
		recv:   receiverOf(fn),
		cur:    -1,
		labels: map[string]int{},
		gotos:  map[string][]end{},
	}

	b.stmts(fn.Body.List)

	for _, ends := range b.gotos {
		b.open = append(b.open, ends...)
	}

	closing := b.line(fn.Body.Rbrace)
	if len(b.blocks) == 0 || len(b.open) > 0 {
		b.exit(closing, nil)
	}

	name := fn.Name.Name
	if b.recv.typeName != "" {
		name = b.recv.typeName + "." + name
	}

	return m.Method{Name: name, LastLine: closing, Blocks: b.blocks}
}

func (b *builder) line(pos token.Pos) uint32 {
	return uint32(b.fset.Position(pos).Line) //nolint:gosec // line numbers are positive
}

func (b *builder) patch(target int) {
	for _, e := range b.open {
		b.blocks[e.block].Succs[e.slot] = target
	}

	b.open = nil
}

func (b *builder) newBlock(line uint32, succs int, conditional bool, fields []m.FieldAccess) int {
	idx := len(b.blocks)

	block := m.Block{Line: line, Conditional: conditional, Fields: fields}
	for range succs {
		block.Succs = append(block.Succs, -1)
	}

	b.blocks = append(b.blocks, block)
	b.patch(idx)

	if b.label != "" {
		b.labels[b.label] = idx
		b.label = ""
	}

	b.cur = -1

	return idx
}

// simple adds a straight-line statement, sharing the current block when it
// sits on the same line.
func (b *builder) simple(line uint32, fields []m.FieldAccess) {
	if b.cur >= 0 && b.blocks[b.cur].Line == line && len(b.open) == 1 && b.open[0].block == b.cur && b.label == "" {
		b.blocks[b.cur].Fields = append(b.blocks[b.cur].Fields, fields...)
		return
	}

	idx := b.newBlock(line, 1, false, fields)
	b.open = []end{{block: idx}}
	b.cur = idx
}

func (b *builder) cond(line uint32, fields []m.FieldAccess) int {
	return b.newBlock(line, 2, true, fields)
}

func (b *builder) exit(line uint32, fields []m.FieldAccess) {
	b.newBlock(line, 0, false, fields)
	b.open = nil
}

// jump moves the current dangling edges out of the normal flow.
func (b *builder) jump(line uint32) []end {
	b.simple(line, nil)
	ends := b.open
	b.open = nil
	b.cur = -1

	return ends
}

func (b *builder) stmts(list []ast.Stmt) {
	for _, stmt := range list {
		b.stmt(stmt)
	}
}

//nolint:cyclop,gocyclo // one case per statement kind
func (b *builder) stmt(stmt ast.Stmt) {
	switch s := stmt.(type) {
	case nil, *ast.EmptyStmt:
	case *ast.BlockStmt:
		b.stmts(s.List)
	case *ast.LabeledStmt:
		b.labeled(s)
	case *ast.IfStmt:
		b.ifStmt(s)
	case *ast.ForStmt:
		b.forStmt(s, "")
	case *ast.RangeStmt:
		b.rangeStmt(s, "")
	case *ast.SwitchStmt:
		b.switchStmt(s.Init, s.Tag, s.Body, s.Switch, "")
	case *ast.TypeSwitchStmt:
		b.switchStmt(s.Init, s.Assign, s.Body, s.Switch, "")
	case *ast.SelectStmt:
		b.switchStmt(nil, nil, s.Body, s.Select, "")
	case *ast.ReturnStmt:
		var fields []m.FieldAccess
		for _, result := range s.Results {
			fields = append(fields, b.scope.reads(b.recv, result)...)
		}

		b.exit(b.line(s.Pos()), fields)
	case *ast.BranchStmt:
		b.branch(s)
	case *ast.AssignStmt:
		compound := s.Tok != token.ASSIGN && s.Tok != token.DEFINE
		b.simple(b.line(s.Pos()), b.scope.assignment(b.recv, s.Lhs, s.Rhs, compound))
	case *ast.IncDecStmt:
		b.simple(b.line(s.Pos()), b.scope.assignment(b.recv, []ast.Expr{s.X}, nil, true))
	case *ast.ExprStmt:
		fields := b.scope.reads(b.recv, s.X)
		if isPanic(s.X) {
			b.exit(b.line(s.Pos()), fields)
			return
		}

		b.simple(b.line(s.Pos()), fields)
	default:
		b.simple(b.line(s.Pos()), b.scope.reads(b.recv, s))
	}
}

func isPanic(expr ast.Expr) bool {
	call, ok := expr.(*ast.CallExpr)
	if !ok {
		return false
	}

	ident, ok := call.Fun.(*ast.Ident)

	return ok && ident.Name == "panic"
}

func (b *builder) labeled(s *ast.LabeledStmt) {
	name := s.Label.Name
	b.open = append(b.open, b.gotos[name]...)
	delete(b.gotos, name)
	b.label = name
	b.cur = -1

	switch inner := s.Stmt.(type) {
	case *ast.ForStmt:
		b.forStmt(inner, name)
	case *ast.RangeStmt:
		b.rangeStmt(inner, name)
	case *ast.SwitchStmt:
		b.switchStmt(inner.Init, inner.Tag, inner.Body, inner.Switch, name)
	case *ast.TypeSwitchStmt:
		b.switchStmt(inner.Init, inner.Assign, inner.Body, inner.Switch, name)
	case *ast.SelectStmt:
		b.switchStmt(nil, nil, inner.Body, inner.Select, name)
	case *ast.EmptyStmt:
		b.simple(b.line(s.Pos()), nil)
	default:
		b.stmt(inner)
	}
}

func (b *builder) branch(s *ast.BranchStmt) {
	line := b.line(s.Pos())
	label := ""

	if s.Label != nil {
		label = s.Label.Name
	}

	switch s.Tok {
	case token.BREAK, token.CONTINUE:
		ends := b.jump(line)

		target := b.target(label, s.Tok == token.CONTINUE)
		switch {
		case target == nil:
			b.open = ends
		case s.Tok == token.BREAK:
			target.breaks = append(target.breaks, ends...)
		default:
			target.continues = append(target.continues, ends...)
		}
	case token.GOTO:
		ends := b.jump(line)
		if idx, ok := b.labels[label]; ok {
			for _, e := range ends {
				b.blocks[e.block].Succs[e.slot] = idx
			}

			return
		}

		b.gotos[label] = append(b.gotos[label], ends...)
	case token.FALLTHROUGH:
		b.simple(line, nil)
	}
}

func (b *builder) target(label string, loop bool) *jumpTarget {
	for i := len(b.targets) - 1; i >= 0; i-- {
		target := b.targets[i]
		if label != "" && target.label != label {
			continue
		}

		if loop && !target.loop {
			continue
		}

		return target
	}

	return nil
}

func (b *builder) ifStmt(s *ast.IfStmt) {
	if s.Init != nil {
		b.stmt(s.Init)
	}

	c := b.cond(b.line(s.If), b.scope.reads(b.recv, s.Cond))

	b.open = []end{{block: c, slot: 1}}
	b.stmts(s.Body.List)
	afterThen := b.open

	b.open = []end{{block: c, slot: 0}}
	b.cur = -1

	if s.Else != nil {
		b.stmt(s.Else)
	}

	b.open = append(afterThen, b.open...)
	b.cur = -1
}

func (b *builder) loop(label string, head int, post func(), exitEnds []end, body *ast.BlockStmt) {
	target := &jumpTarget{label: label, loop: true}
	b.targets = append(b.targets, target)

	b.stmts(body.List)

	b.open = append(b.open, target.continues...)
	if post != nil {
		post()
	}

	b.patch(head)
	b.cur = -1
	b.targets = b.targets[:len(b.targets)-1]

	b.open = append(exitEnds, target.breaks...)
}

func (b *builder) forStmt(s *ast.ForStmt, label string) {
	if s.Init != nil {
		b.stmt(s.Init)
	}

	line := b.line(s.For)

	var (
		head     int
		exitEnds []end
	)

	if s.Cond != nil {
		head = b.cond(line, b.scope.reads(b.recv, s.Cond))
		b.open = []end{{block: head, slot: 1}}
		exitEnds = []end{{block: head, slot: 0}}
	} else {
		head = b.newBlock(line, 1, false, nil)
		b.open = []end{{block: head}}
	}

	var post func()
	if s.Post != nil {
		post = func() {
			b.cur = -1
			b.stmt(s.Post)
		}
	}

	b.loop(label, head, post, exitEnds, s.Body)
}

func (b *builder) rangeStmt(s *ast.RangeStmt, label string) {
	fields := b.scope.reads(b.recv, s.X)

	var lhs []ast.Expr
	if s.Key != nil {
		lhs = append(lhs, s.Key)
	}

	if s.Value != nil {
		lhs = append(lhs, s.Value)
	}

	if s.Tok == token.ASSIGN {
		fields = append(fields, b.scope.assignment(b.recv, lhs, nil, false)...)
	}

	head := b.cond(b.line(s.For), fields)
	b.open = []end{{block: head, slot: 1}}

	b.loop(label, head, nil, []end{{block: head, slot: 0}}, s.Body)
}

func caseExprs(clause ast.Stmt) ([]ast.Expr, ast.Stmt, []ast.Stmt, token.Pos, bool) {
	switch c := clause.(type) {
	case *ast.CaseClause:
		return c.List, nil, c.Body, c.Case, c.List == nil
	case *ast.CommClause:
		return nil, c.Comm, c.Body, c.Case, c.Comm == nil
	}

	return nil, nil, nil, token.NoPos, false
}

// switchStmt lowers switch, type switch and select: the case tests form a
// chain of conditionals, then the bodies follow in source order.
func (b *builder) switchStmt(init ast.Stmt, tag ast.Node, body *ast.BlockStmt, pos token.Pos, label string) {
	if init != nil {
		b.stmt(init)
	}

	if tag != nil {
		b.simple(b.line(pos), b.scope.reads(b.recv, tag))
	}

	if len(body.List) == 0 {
		b.simple(b.line(pos), nil)
		return
	}

	entries := make([][]end, len(body.List))
	defaultIdx := -1

	for i, clause := range body.List {
		exprs, comm, _, casePos, isDefault := caseExprs(clause)
		if isDefault {
			defaultIdx = i
			continue
		}

		var fields []m.FieldAccess
		for _, expr := range exprs {
			fields = append(fields, b.scope.reads(b.recv, expr)...)
		}

		if comm != nil {
			fields = append(fields, b.scope.reads(b.recv, comm)...)
		}

		c := b.cond(b.line(casePos), fields)
		entries[i] = []end{{block: c, slot: 1}}
		b.open = []end{{block: c, slot: 0}}
	}

	noMatch := b.open
	if defaultIdx >= 0 {
		entries[defaultIdx] = noMatch
		noMatch = nil
	}

	target := &jumpTarget{label: label}
	b.targets = append(b.targets, target)

	var (
		exits   []end
		carried []end
	)

	for i, clause := range body.List {
		_, _, stmts, _, _ := caseExprs(clause)

		b.open = append(entries[i], carried...)
		b.cur = -1
		carried = nil

		b.stmts(stmts)

		if n := len(stmts); n > 0 {
			if br, ok := stmts[n-1].(*ast.BranchStmt); ok && br.Tok == token.FALLTHROUGH {
				carried = b.open
				b.open = nil

				continue
			}
		}

		exits = append(exits, b.open...)
	}

	b.targets = b.targets[:len(b.targets)-1]
	b.open = slices.Concat(exits, carried, noMatch, target.breaks)
	b.cur = -1
}

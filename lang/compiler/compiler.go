package compiler

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/mna/vela/lang/intern"
	"github.com/mna/vela/lang/scanner"
	"github.com/mna/vela/lang/token"
	"github.com/mna/vela/lang/value"
	"golang.org/x/exp/slices"
)

// Precedence is the Pratt parser's precedence ladder, low to high.
type Precedence int

//nolint:revive
const (
	PrecNone       Precedence = iota
	PrecAssignment            // =
	PrecOr                    // or
	PrecAnd                   // and
	PrecEquality              // == !=
	PrecComparison            // < > <= >=
	PrecTerm                  // + -
	PrecFactor                // * /
	PrecUnary                 // ! -
	PrecCall                  // . () []
	PrecPrimary
)

type parseFn func(c *Compiler, canAssign bool)

type rule struct {
	prefix     parseFn
	infix      parseFn
	precedence Precedence
}

// local is a compile-time-only descriptor for a local variable: its name
// token and the lexical scope depth it was declared at. A depth of -1
// marks a local as declared but not yet initialized (its own initializer
// expression is still being compiled), guarding against "var x = x;".
type local struct {
	name  string
	depth int
}

// funcCompiler holds the compiler state for a single function body being
// compiled; it chains to the enclosing function compiler (if any) so that
// compiling a nested function temporarily shifts focus without losing the
// outer one. Locals never cross this boundary: the language has no
// closures, so a name not found among the current function's own locals is
// always treated as a global.
type funcCompiler struct {
	enclosing *funcCompiler
	function  *value.FunctionObj
	// locals[0] is the reserved slot holding the function value itself;
	// user locals occupy locals[1:]. Keeping it in this same slice ties the
	// 256-entry cap directly to the instruction set's 8-bit local-slot
	// operand (see DESIGN.md for why the cap counts this reserved slot).
	locals     []local
	scopeDepth int
}

// maxLocals is the largest number of frame slots (including the reserved
// function slot at index 0) addressable by the 8-bit GET_LOCAL/SET_LOCAL
// operand.
const maxLocals = 256

// Compiler is the single-pass Pratt compiler: it drives the scanner one
// token at a time and emits bytecode directly, with no intermediate AST.
type Compiler struct {
	scanner  *scanner.Scanner
	interner *intern.Interner
	stderr   io.Writer

	current  token.Token
	previous token.Token

	hadError  bool
	panicMode bool
	errCount  int

	fc *funcCompiler
}

// Compile compiles source into the synthetic top-level script function,
// ready to execute. On any compile error, diagnostics are written to
// stderr as they are found (panic-mode recovery continues parsing to
// surface all errors in one pass) and a non-nil error is returned.
func Compile(source string, in *intern.Interner, stderr io.Writer) (*value.FunctionObj, error) {
	c := &Compiler{
		scanner:  scanner.New(source),
		interner: in,
		stderr:   stderr,
	}
	c.pushFuncCompiler(value.FuncScript, nil)

	c.advance()
	for !c.match(token.EOF) {
		c.declaration()
	}
	fn := c.popFuncCompiler()

	if c.hadError {
		return nil, fmt.Errorf("compile error: %d error(s)", c.errCount)
	}
	return fn, nil
}

func (c *Compiler) pushFuncCompiler(kind value.FuncKind, name *value.StringObj) {
	fc := &funcCompiler{
		enclosing: c.fc,
		function:  &value.FunctionObj{Kind: kind, Name: name, Chunk: &value.Chunk{}},
	}
	fc.locals = append(fc.locals, local{name: "", depth: 0}) // slot 0: the function itself
	c.fc = fc
}

// popFuncCompiler finishes the current function: emits the implicit "return
// nil" and restores the enclosing compiler.
func (c *Compiler) popFuncCompiler() *value.FunctionObj {
	c.emitByte(byte(OpNil))
	c.emitByte(byte(OpReturn))
	fn := c.fc.function
	c.fc = c.fc.enclosing
	return fn
}

func (c *Compiler) currentChunk() *value.Chunk { return c.fc.function.Chunk }

// --- token stream plumbing ---

func (c *Compiler) advance() {
	c.previous = c.current
	for {
		c.current = c.scanner.Next()
		if c.current.Kind != token.ILLEGAL {
			return
		}
		c.errorAtCurrent(c.current.Lexeme)
	}
}

func (c *Compiler) check(kind token.Kind) bool { return c.current.Kind == kind }

func (c *Compiler) match(kind token.Kind) bool {
	if !c.check(kind) {
		return false
	}
	c.advance()
	return true
}

func (c *Compiler) consume(kind token.Kind, msg string) {
	if c.current.Kind == kind {
		c.advance()
		return
	}
	c.errorAtCurrent(msg)
}

func (c *Compiler) errorAtCurrent(msg string) { c.errorAt(c.current, msg) }
func (c *Compiler) error(msg string)          { c.errorAt(c.previous, msg) }

func (c *Compiler) errorAt(tok token.Token, msg string) {
	if c.panicMode {
		return
	}
	c.panicMode = true
	c.hadError = true
	c.errCount++

	var b strings.Builder
	fmt.Fprintf(&b, "[line %d] Error", tok.Line)
	switch tok.Kind {
	case token.EOF:
		b.WriteString(" at end")
	case token.ILLEGAL:
		// the lexeme already carries the scanner's own description
	default:
		fmt.Fprintf(&b, " at '%s'", tok.Lexeme)
	}
	fmt.Fprintf(&b, ": %s\n", msg)
	if c.stderr != nil {
		io.WriteString(c.stderr, b.String())
	}
}

// synchronize discards tokens until a likely statement boundary, so that
// compilation can continue and surface further errors.
func (c *Compiler) synchronize() {
	c.panicMode = false
	for c.current.Kind != token.EOF {
		if c.previous.Kind == token.SEMICOLON {
			return
		}
		switch c.current.Kind {
		case token.FUN, token.VAR, token.FOR, token.IF, token.WHILE, token.PRINT, token.RETURN:
			return
		}
		c.advance()
	}
}

// --- bytecode emission ---

func (c *Compiler) emitByte(b byte) {
	c.currentChunk().Write(b, c.previous.Line)
}

func (c *Compiler) emitBytes(b1, b2 byte) {
	c.emitByte(b1)
	c.emitByte(b2)
}

// emitJump emits a jump instruction with a placeholder 16-bit operand and
// returns the offset of the operand's first byte, to be patched later.
func (c *Compiler) emitJump(instr Opcode) int {
	c.emitByte(byte(instr))
	c.emitByte(0xff)
	c.emitByte(0xff)
	return len(c.currentChunk().Code) - 2
}

// patchJump backfills the jump operand at offset with the distance from
// just after the operand to the current code position.
func (c *Compiler) patchJump(offset int) {
	jump := len(c.currentChunk().Code) - offset - 2
	if jump > 0xffff {
		c.error("jump too far (>65535 bytes)")
		return
	}
	code := c.currentChunk().Code
	code[offset] = byte(jump & 0xff)
	code[offset+1] = byte((jump >> 8) & 0xff)
}

// emitLoop emits a backward jump to loopStart, whose operand is already
// known.
func (c *Compiler) emitLoop(loopStart int) {
	c.emitByte(byte(OpLoop))
	offset := len(c.currentChunk().Code) - loopStart + 2
	if offset > 0xffff {
		c.error("loop body too large")
		return
	}
	c.emitByte(byte(offset & 0xff))
	c.emitByte(byte((offset >> 8) & 0xff))
}

// makeConstant returns v's index in the current chunk's constant pool,
// reusing an existing equal constant rather than appending a duplicate.
func (c *Compiler) makeConstant(v value.Value) byte {
	chunk := c.currentChunk()
	if idx := slices.IndexFunc(chunk.Constants, func(existing value.Value) bool {
		return value.Equal(existing, v)
	}); idx != -1 {
		return byte(idx)
	}
	if len(chunk.Constants) >= value.MaxConstants {
		c.error("too many constants in one chunk")
		return 0
	}
	return byte(chunk.AddConstant(v))
}

func (c *Compiler) emitConstant(v value.Value) {
	c.emitBytes(byte(OpConstant), c.makeConstant(v))
}

func (c *Compiler) identifierConstant(name token.Token) byte {
	return c.makeConstant(value.Obj(c.interner.Intern(name.Lexeme)))
}

// --- scopes and locals ---

func (c *Compiler) beginScope() { c.fc.scopeDepth++ }

func (c *Compiler) endScope() {
	c.fc.scopeDepth--
	locals := c.fc.locals
	for len(locals) > 0 && locals[len(locals)-1].depth > c.fc.scopeDepth {
		c.emitByte(byte(OpPop))
		locals = locals[:len(locals)-1]
	}
	c.fc.locals = locals
}

func (c *Compiler) addLocal(name token.Token) {
	if len(c.fc.locals) >= maxLocals {
		c.error("too many local variables in function")
		return
	}
	c.fc.locals = append(c.fc.locals, local{name: name.Lexeme, depth: -1})
}

func (c *Compiler) declareVariable(name token.Token) {
	if c.fc.scopeDepth == 0 {
		return // global: handled by OP_DEFINE_GLOBAL, not a frame slot
	}
	locals := c.fc.locals
	for i := len(locals) - 1; i >= 0; i-- {
		l := locals[i]
		if l.depth != -1 && l.depth < c.fc.scopeDepth {
			break
		}
		if l.name == name.Lexeme {
			c.error("variable already defined")
			return
		}
	}
	c.addLocal(name)
}

func (c *Compiler) markInitialized() {
	if c.fc.scopeDepth == 0 {
		return
	}
	c.fc.locals[len(c.fc.locals)-1].depth = c.fc.scopeDepth
}

func (c *Compiler) parseVariable(msg string) byte {
	c.consume(token.IDENT, msg)
	name := c.previous
	c.declareVariable(name)
	if c.fc.scopeDepth > 0 {
		return 0
	}
	return c.identifierConstant(name)
}

func (c *Compiler) defineVariable(global byte) {
	if c.fc.scopeDepth > 0 {
		c.markInitialized()
		return
	}
	c.emitBytes(byte(OpDefineGlobal), global)
}

// resolveLocal searches the current function's own locals, nearest scope
// first, for a name match. It returns -1 if not found.
func (c *Compiler) resolveLocal(name token.Token) int {
	locals := c.fc.locals
	for i := len(locals) - 1; i >= 0; i-- {
		if locals[i].name == name.Lexeme {
			if locals[i].depth == -1 {
				c.error("can't read local variable in its own initializer")
			}
			return i
		}
	}
	return -1
}

// --- declarations and statements ---

func (c *Compiler) declaration() {
	switch {
	case c.match(token.VAR):
		c.varDeclaration()
	case c.match(token.FUN):
		c.funDeclaration()
	default:
		c.statement()
	}
	if c.panicMode {
		c.synchronize()
	}
}

func (c *Compiler) varDeclaration() {
	global := c.parseVariable("expect variable name")
	if c.match(token.EQUAL) {
		c.expression()
	} else {
		c.emitByte(byte(OpNil))
	}
	c.consume(token.SEMICOLON, "expect ';' after variable declaration")
	c.defineVariable(global)
}

func (c *Compiler) funDeclaration() {
	c.consume(token.IDENT, "expect function name")
	name := c.previous
	global := byte(0)
	c.declareVariable(name)
	if c.fc.scopeDepth == 0 {
		global = c.identifierConstant(name)
	}
	c.markInitialized()
	c.function(value.FuncNamed, name)
	c.defineVariable(global)
}

// function compiles a function body (named or anonymous) into its own
// chunk and emits, into the *enclosing* chunk, a constant load of the
// resulting function object.
func (c *Compiler) function(kind value.FuncKind, name token.Token) {
	var nameObj *value.StringObj
	if kind != value.FuncAnonymous {
		nameObj = c.interner.Intern(name.Lexeme)
	}
	c.pushFuncCompiler(kind, nameObj)
	c.beginScope()

	c.consume(token.LPAREN, "expect '(' after function name")
	if !c.check(token.RPAREN) {
		for {
			c.fc.function.Arity++
			if c.fc.function.Arity > 255 {
				c.errorAtCurrent("can't have more than 255 parameters")
			}
			paramConst := c.parseVariable("expect parameter name")
			c.defineVariable(paramConst)
			if !c.match(token.COMMA) {
				break
			}
		}
	}
	c.consume(token.RPAREN, "expect ')' after parameters")
	c.consume(token.LBRACE, "expect '{' before function body")
	c.block()

	fn := c.popFuncCompiler()
	c.emitBytes(byte(OpConstant), c.makeConstant(value.Obj(fn)))
}

func (c *Compiler) block() {
	for !c.check(token.RBRACE) && !c.check(token.EOF) {
		c.declaration()
	}
	c.consume(token.RBRACE, "expect '}' after block")
}

func (c *Compiler) statement() {
	switch {
	case c.match(token.PRINT):
		c.printStatement()
	case c.match(token.IF):
		c.ifStatement()
	case c.match(token.WHILE):
		c.whileStatement()
	case c.match(token.FOR):
		c.forStatement()
	case c.match(token.RETURN):
		c.returnStatement()
	case c.match(token.LBRACE):
		c.beginScope()
		c.block()
		c.endScope()
	default:
		c.expressionStatement()
	}
}

func (c *Compiler) printStatement() {
	c.expression()
	c.consume(token.SEMICOLON, "expect ';' after value")
	c.emitByte(byte(OpPrint))
}

func (c *Compiler) expressionStatement() {
	c.expression()
	c.consume(token.SEMICOLON, "expect ';' after expression")
	c.emitByte(byte(OpPop))
}

func (c *Compiler) returnStatement() {
	if c.fc.function.Kind == value.FuncScript {
		c.error("can't return from top-level code")
	}
	if c.match(token.SEMICOLON) {
		c.emitByte(byte(OpNil))
		c.emitByte(byte(OpReturn))
		return
	}
	c.expression()
	c.consume(token.SEMICOLON, "expect ';' after return value")
	c.emitByte(byte(OpReturn))
}

func (c *Compiler) ifStatement() {
	c.consume(token.LPAREN, "expect '(' after 'if'")
	c.expression()
	c.consume(token.RPAREN, "expect ')' after condition")

	thenJump := c.emitJump(OpJumpIfFalse)
	c.emitByte(byte(OpPop))
	c.statement()

	elseJump := c.emitJump(OpJump)
	c.patchJump(thenJump)
	c.emitByte(byte(OpPop))

	if c.match(token.ELSE) {
		c.statement()
	}
	c.patchJump(elseJump)
}

func (c *Compiler) whileStatement() {
	loopStart := len(c.currentChunk().Code)
	c.consume(token.LPAREN, "expect '(' after 'while'")
	c.expression()
	c.consume(token.RPAREN, "expect ')' after condition")

	exitJump := c.emitJump(OpJumpIfFalse)
	c.emitByte(byte(OpPop))
	c.statement()
	c.emitLoop(loopStart)

	c.patchJump(exitJump)
	c.emitByte(byte(OpPop))
}

func (c *Compiler) forStatement() {
	c.beginScope()
	c.consume(token.LPAREN, "expect '(' after 'for'")

	switch {
	case c.match(token.SEMICOLON):
		// no initializer
	case c.match(token.VAR):
		c.varDeclaration()
	default:
		c.expressionStatement()
	}

	loopStart := len(c.currentChunk().Code)
	exitJump := -1
	if !c.check(token.SEMICOLON) {
		c.expression()
		c.consume(token.SEMICOLON, "expect ';' after loop condition")
		exitJump = c.emitJump(OpJumpIfFalse)
		c.emitByte(byte(OpPop))
	} else {
		c.consume(token.SEMICOLON, "expect ';' after loop condition")
	}

	if !c.check(token.RPAREN) {
		bodyJump := c.emitJump(OpJump)
		incrementStart := len(c.currentChunk().Code)
		c.expression()
		c.emitByte(byte(OpPop))
		c.consume(token.RPAREN, "expect ')' after for clauses")

		c.emitLoop(loopStart)
		loopStart = incrementStart
		c.patchJump(bodyJump)
	} else {
		c.consume(token.RPAREN, "expect ')' after for clauses")
	}

	c.statement()
	c.emitLoop(loopStart)

	if exitJump != -1 {
		c.patchJump(exitJump)
		c.emitByte(byte(OpPop))
	}
	c.endScope()
}

// --- expressions (Pratt) ---

func (c *Compiler) expression() { c.parsePrecedence(PrecAssignment) }

func (c *Compiler) parsePrecedence(prec Precedence) {
	c.advance()
	prefixRule := getRule(c.previous.Kind).prefix
	if prefixRule == nil {
		c.error("expect expression")
		return
	}

	canAssign := prec <= PrecAssignment
	prefixRule(c, canAssign)

	for prec <= getRule(c.current.Kind).precedence {
		c.advance()
		infixRule := getRule(c.previous.Kind).infix
		infixRule(c, canAssign)
	}

	if canAssign && c.match(token.EQUAL) {
		c.error("invalid assignment target")
	}
}

func getRule(kind token.Kind) rule { return rules[kind] }

func grouping(c *Compiler, _ bool) {
	c.expression()
	c.consume(token.RPAREN, "expect ')' after expression")
}

func number(c *Compiler, _ bool) {
	n, err := strconv.ParseFloat(c.previous.Lexeme, 64)
	if err != nil {
		c.error("invalid number literal")
		return
	}
	c.emitConstant(value.Number(n))
}

func stringLiteral(c *Compiler, _ bool) {
	s := scanner.StringValue(c.previous.Lexeme)
	c.emitConstant(value.Obj(c.interner.Intern(s)))
}

func literal(c *Compiler, _ bool) {
	switch c.previous.Kind {
	case token.FALSE:
		c.emitByte(byte(OpFalse))
	case token.TRUE:
		c.emitByte(byte(OpTrue))
	case token.NIL:
		c.emitByte(byte(OpNil))
	}
}

func variable(c *Compiler, canAssign bool) { c.namedVariable(c.previous, canAssign) }

func (c *Compiler) namedVariable(name token.Token, canAssign bool) {
	var getOp, setOp Opcode
	var arg byte
	if idx := c.resolveLocal(name); idx != -1 {
		getOp, setOp, arg = OpGetLocal, OpSetLocal, byte(idx)
	} else {
		getOp, setOp, arg = OpGetGlobal, OpSetGlobal, c.identifierConstant(name)
	}

	if canAssign && c.match(token.EQUAL) {
		c.expression()
		c.emitBytes(byte(setOp), arg)
		return
	}
	c.emitBytes(byte(getOp), arg)
}

func unary(c *Compiler, _ bool) {
	opKind := c.previous.Kind
	c.parsePrecedence(PrecUnary)
	switch opKind {
	case token.MINUS:
		c.emitByte(byte(OpNegate))
	case token.BANG:
		c.emitByte(byte(OpNot))
	}
}

func binary(c *Compiler, _ bool) {
	opKind := c.previous.Kind
	r := getRule(opKind)
	c.parsePrecedence(r.precedence + 1)

	switch opKind {
	case token.PLUS:
		c.emitByte(byte(OpAdd))
	case token.MINUS:
		c.emitByte(byte(OpSubtract))
	case token.STAR:
		c.emitByte(byte(OpMultiply))
	case token.SLASH:
		c.emitByte(byte(OpDivide))
	case token.EQUALEQUAL:
		c.emitByte(byte(OpEqual))
	case token.BANGEQ:
		c.emitBytes(byte(OpEqual), byte(OpNot))
	case token.GREATER:
		c.emitByte(byte(OpGreater))
	case token.GREATEREQ:
		c.emitBytes(byte(OpLess), byte(OpNot))
	case token.LESS:
		c.emitByte(byte(OpLess))
	case token.LESSEQ:
		c.emitBytes(byte(OpGreater), byte(OpNot))
	}
}

func and_(c *Compiler, _ bool) {
	endJump := c.emitJump(OpJumpIfFalse)
	c.emitByte(byte(OpPop))
	c.parsePrecedence(PrecAnd)
	c.patchJump(endJump)
}

func or_(c *Compiler, _ bool) {
	elseJump := c.emitJump(OpJumpIfFalse)
	endJump := c.emitJump(OpJump)
	c.patchJump(elseJump)
	c.emitByte(byte(OpPop))
	c.parsePrecedence(PrecOr)
	c.patchJump(endJump)
}

func call(c *Compiler, _ bool) {
	argCount := c.argumentList()
	c.emitBytes(byte(OpCall), byte(argCount))
}

func (c *Compiler) argumentList() int {
	count := 0
	if !c.check(token.RPAREN) {
		for {
			c.expression()
			if count == 255 {
				c.error("can't have more than 255 arguments")
			}
			count++
			if !c.match(token.COMMA) {
				break
			}
		}
	}
	c.consume(token.RPAREN, "expect ')' after arguments")
	return count
}

func funExpr(c *Compiler, _ bool) {
	c.function(value.FuncAnonymous, token.Token{})
}

func arrayLiteral(c *Compiler, _ bool) {
	count := 0
	if !c.check(token.RBRACK) {
		for {
			c.expression()
			if count == 255 {
				c.error("can't have more than 255 elements in an array literal")
			}
			count++
			if !c.match(token.COMMA) {
				break
			}
		}
	}
	c.consume(token.RBRACK, "expect ']' after array elements")
	c.emitBytes(byte(OpMakeArray), byte(count))
}

func mapLiteral(c *Compiler, _ bool) {
	count := 0
	if !c.check(token.RBRACE) {
		for {
			c.expression()
			c.consume(token.COLON, "expect ':' after map key")
			c.expression()
			if count == 255 {
				c.error("can't have more than 255 entries in a map literal")
			}
			count++
			if !c.match(token.COMMA) {
				break
			}
		}
	}
	c.consume(token.RBRACE, "expect '}' after map entries")
	c.emitBytes(byte(OpMakeMap), byte(count))
}

func index(c *Compiler, canAssign bool) {
	c.expression()
	c.consume(token.RBRACK, "expect ']' after index")
	if canAssign && c.match(token.EQUAL) {
		c.expression()
		c.emitByte(byte(OpSetIndex))
		return
	}
	c.emitByte(byte(OpGetIndex))
}

var rules [token.MaxKind]rule // indexed by token.Kind

func init() {
	rules[token.LPAREN] = rule{prefix: grouping, infix: call, precedence: PrecCall}
	rules[token.LBRACK] = rule{prefix: arrayLiteral, infix: index, precedence: PrecCall}
	rules[token.LBRACE] = rule{prefix: mapLiteral}
	rules[token.MINUS] = rule{prefix: unary, infix: binary, precedence: PrecTerm}
	rules[token.PLUS] = rule{infix: binary, precedence: PrecTerm}
	rules[token.SLASH] = rule{infix: binary, precedence: PrecFactor}
	rules[token.STAR] = rule{infix: binary, precedence: PrecFactor}
	rules[token.BANG] = rule{prefix: unary}
	rules[token.BANGEQ] = rule{infix: binary, precedence: PrecEquality}
	rules[token.EQUALEQUAL] = rule{infix: binary, precedence: PrecEquality}
	rules[token.GREATER] = rule{infix: binary, precedence: PrecComparison}
	rules[token.GREATEREQ] = rule{infix: binary, precedence: PrecComparison}
	rules[token.LESS] = rule{infix: binary, precedence: PrecComparison}
	rules[token.LESSEQ] = rule{infix: binary, precedence: PrecComparison}
	rules[token.IDENT] = rule{prefix: variable}
	rules[token.NUMBER] = rule{prefix: number}
	rules[token.STRING] = rule{prefix: stringLiteral}
	rules[token.AND] = rule{infix: and_, precedence: PrecAnd}
	rules[token.OR] = rule{infix: or_, precedence: PrecOr}
	rules[token.FALSE] = rule{prefix: literal}
	rules[token.TRUE] = rule{prefix: literal}
	rules[token.NIL] = rule{prefix: literal}
	rules[token.FUN] = rule{prefix: funExpr}
}

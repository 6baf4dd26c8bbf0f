// Package source exposes parsed source files to the extraction and patch
// engines through a small capability surface: locate factory calls, classify
// literals, enumerate object properties, read spans and text. Engines depend
// only on the File and Expr types here, never on the parser behind them.
package source

// Kind classifies an expression by the literal shapes the engines understand.
type Kind uint8

const (
	KindInvalid Kind = iota
	KindObject
	KindArray
	KindString
	KindNumber
	KindBool
	KindNull
	KindUndefined
	KindFunction
	KindSpread
	// KindOther covers valid expressions with no special handling
	// (identifiers, calls, member accesses, ...).
	KindOther
)

func (k Kind) String() string {
	switch k {
	case KindObject:
		return "object"
	case KindArray:
		return "array"
	case KindString:
		return "string"
	case KindNumber:
		return "number"
	case KindBool:
		return "boolean"
	case KindNull:
		return "null"
	case KindUndefined:
		return "undefined"
	case KindFunction:
		return "function"
	case KindSpread:
		return "spread"
	case KindOther:
		return "expression"
	default:
		return "invalid"
	}
}

// Span is a half-open [Start, End) byte range within a file.
type Span struct {
	Start uint32
	End   uint32
}

// PropKind classifies one object-literal entry.
type PropKind uint8

const (
	// PropPair is a plain key: value entry, including computed keys whose
	// expression is a string or number literal.
	PropPair PropKind = iota
	PropShorthand
	PropSpread
	PropMethod
	// PropOpaqueKey is a pair whose key cannot be read (computed with a
	// non-literal expression, private names).
	PropOpaqueKey
)

// Property is one entry of an object literal, in declaration order.
type Property struct {
	Kind PropKind
	// Key is the decoded property name. Empty when the key is not readable.
	Key string
	// KeyQuoted reports a string-literal or computed-literal key.
	KeyQuoted bool
	// KeyExact is false when the key's decoded form does not reproduce its
	// source spelling (escape sequences, non-trivial numeric keys).
	KeyExact bool
	KeySpan  Span
	// Value is nil for shorthand, spread and method entries.
	Value Expr
	// Span covers the whole entry, key through value, without separators.
	Span Span
}

// Expr is a handle to one expression node in a parsed file. Implementations
// unwrap parentheses and type-level wrappers so callers see the literal.
type Expr interface {
	Kind() Kind
	Span() Span
	// Text returns the expression's exact source text.
	Text() string
	// Properties enumerates an object literal in declaration order and
	// returns nil for every other kind.
	Properties() []Property
	// Elements enumerates an array literal and returns nil otherwise.
	Elements() []Expr
	// AsString decodes string literals and substitution-free templates.
	AsString() (string, bool)
	AsNumber() (float64, bool)
	AsBool() (bool, bool)
}

// MachineCall is one factory call site within a file.
type MachineCall struct {
	// Span covers the entire call expression.
	Span Span
	// Config is the call's first argument, nil when the call has none.
	Config Expr
}

// File is one parsed source file.
type File interface {
	Path() string
	Bytes() []byte
	// Version increases across reparses of the same path so cached state
	// can detect staleness without comparing object identity.
	Version() int
	// MachineCalls returns the file's factory call sites in document order.
	MachineCalls(factory string) []MachineCall
	// Position converts a byte offset to zero-based line and column.
	Position(offset uint32) (line, col uint32)
	// QuoteStyle returns the file's dominant string quote, '"' or '\''.
	QuoteStyle() byte
}

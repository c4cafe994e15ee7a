// Package provider defines the declarations a declaration source hands to the
// driver: annotated provider types, the contract references on their
// annotation, and the per-pass batches they arrive in.
package provider

import (
	"go/token"
	"strings"
)

// Kind classifies a type reference.
type Kind int

const (
	Invalid   Kind = iota // unresolvable or empty
	Declared              // class, interface or named type
	Primitive             // int, boolean, ...
	Array                 // X[] or []X
	Void                  // the "unspecified" default
)

func (k Kind) String() string {
	switch k {
	case Declared:
		return "declared"
	case Primitive:
		return "primitive"
	case Array:
		return "array"
	case Void:
		return "void"
	default:
		return "invalid"
	}
}

// TypeRef names a type by its binary name.
type TypeRef struct {
	Name string
	Kind Kind
}

// Ref returns a declared type reference.
func Ref(name string) TypeRef {
	return TypeRef{Name: name, Kind: Declared}
}

func (t TypeRef) String() string {
	if t.Name == "" {
		return "<" + t.Kind.String() + ">"
	}
	return t.Name
}

var primitives = map[string]bool{
	"boolean": true, "byte": true, "char": true, "short": true,
	"int": true, "long": true, "float": true, "double": true,
}

// ParseTypeRef classifies a textual type name coming from a non-Go front end.
// Type arguments are erased: java.util.List<String> names java.util.List.
func ParseTypeRef(s string) TypeRef {
	s = eraseTypeArgs(strings.TrimSpace(s))
	switch {
	case s == "":
		return TypeRef{Kind: Invalid}
	case s == "void":
		return TypeRef{Name: s, Kind: Void}
	case primitives[s]:
		return TypeRef{Name: s, Kind: Primitive}
	case strings.HasSuffix(s, "[]"):
		return TypeRef{Name: s, Kind: Array}
	case strings.ContainsAny(s, " \t<>()"):
		return TypeRef{Name: s, Kind: Invalid}
	}
	return TypeRef{Name: s, Kind: Declared}
}

// eraseTypeArgs drops a trailing <...> argument list, keeping any array
// suffix. Unbalanced brackets are left for the caller to reject.
func eraseTypeArgs(s string) string {
	i := strings.IndexByte(s, '<')
	if i <= 0 {
		return s
	}
	depth := 0
	for j := i; j < len(s); j++ {
		switch s[j] {
		case '<':
			depth++
		case '>':
			depth--
			if depth == 0 {
				rest := s[j+1:]
				if strings.Trim(rest, "[]") != "" {
					return s
				}
				return strings.TrimSpace(s[:i]) + rest
			}
		}
	}
	return s
}

// Annotation is the value carried by a provider's registration marker.
type Annotation struct {
	Contracts []TypeRef
}

// Specified reports whether the annotation names its contracts explicitly.
// An empty list, or a list holding only the void default, means the
// contract must be inferred.
func (a Annotation) Specified() bool {
	switch len(a.Contracts) {
	case 0:
		return false
	case 1:
		return a.Contracts[0].Kind != Void
	}
	return true
}

// Declaration is one annotated provider type.
type Declaration struct {
	Name       string   // binary name, e.g. com.acme.JsonCodec
	Superclass *TypeRef // nil when none is declared
	Interfaces []TypeRef
	Annotation Annotation
	Pos        token.Position
}

// Pass is one batch of newly visible declarations. Terminal marks the final
// pass, after which no further declarations appear.
type Pass struct {
	Declarations []Declaration
	Terminal     bool
}

// TerminalPass is the pass that ends a run.
func TerminalPass() Pass {
	return Pass{Terminal: true}
}

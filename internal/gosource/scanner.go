// Package gosource discovers service providers in Go packages: type
// declarations whose doc comment carries a //metainf:service directive.
//
// Go has no inheritance, so a provider's ancestry is read from its shape:
//
//   - base class: the first embedded named non-interface field of a struct
//   - interfaces: embedded interfaces, then compile-time assertions such as
//     var _ codec.Codec = (*JSON)(nil), in source order
//
// Type names are written as binary names, the import path with '/' replaced
// by '.' followed by the type name, so each fits in a single manifest file
// name.
package gosource

import (
	"context"
	"fmt"
	"go/ast"
	"go/token"
	"go/types"
	"sort"
	"strings"

	"golang.org/x/tools/go/packages"

	"github.com/iVampireSP/metainf/internal/config"
	"github.com/iVampireSP/metainf/internal/ctxlog"
	"github.com/iVampireSP/metainf/internal/provider"
)

const loadMode = packages.NeedName | packages.NeedFiles |
	packages.NeedSyntax | packages.NeedTypes | packages.NeedTypesInfo |
	packages.NeedImports

// Scanner loads Go packages and extracts provider declarations. As a
// driver source it yields one pass per configured scan pattern, then the
// terminal pass.
type Scanner struct {
	cfg    *config.Config
	ignore Ignore
	next   int
}

// NewScanner creates a scanner.
func NewScanner(cfg *config.Config, ignore Ignore) *Scanner {
	return &Scanner{cfg: cfg, ignore: ignore}
}

// Next returns the pass for the next scan pattern.
func (s *Scanner) Next(ctx context.Context) (provider.Pass, error) {
	if s.next >= len(s.cfg.Scan) {
		return provider.TerminalPass(), nil
	}
	pattern := s.cfg.Scan[s.next]
	s.next++

	decls, err := s.Load(ctx, pattern)
	if err != nil {
		return provider.Pass{}, err
	}
	return provider.Pass{Declarations: decls}, nil
}

// Load loads the packages matching patterns and returns their provider
// declarations ordered by package path and source position.
func (s *Scanner) Load(ctx context.Context, patterns ...string) ([]provider.Declaration, error) {
	logger := ctxlog.FromContext(ctx)

	pkgs, err := packages.Load(&packages.Config{
		Context: ctx,
		Mode:    loadMode,
		Dir:     s.cfg.Root,
	}, patterns...)
	if err != nil {
		return nil, fmt.Errorf("load packages: %w", err)
	}

	var loadErrs []string
	for _, pkg := range pkgs {
		for _, e := range pkg.Errors {
			loadErrs = append(loadErrs, e.Error())
		}
	}
	if len(loadErrs) > 0 {
		return nil, fmt.Errorf("package errors:\n  %s", strings.Join(loadErrs, "\n  "))
	}

	sort.Slice(pkgs, func(i, j int) bool {
		return pkgs[i].PkgPath < pkgs[j].PkgPath
	})

	var decls []provider.Declaration
	for _, pkg := range pkgs {
		if s.shouldExclude(pkg) {
			logger.Debug("skipping excluded package", "pkg", pkg.PkgPath)
			continue
		}
		found := extractProviders(pkg)
		logger.Debug("scanned package", "pkg", pkg.PkgPath, "providers", len(found))
		decls = append(decls, found...)
	}
	return decls, nil
}

// shouldExclude checks the configured excludes and .gitignore.
func (s *Scanner) shouldExclude(pkg *packages.Package) bool {
	rel := pkg.PkgPath
	if s.cfg.Module != "" {
		if pkg.PkgPath == s.cfg.Module {
			rel = ""
		} else {
			rel = strings.TrimPrefix(pkg.PkgPath, s.cfg.Module+"/")
		}
	}

	for _, exc := range s.cfg.Exclude {
		p := strings.TrimPrefix(exc, "./")
		p = strings.TrimSuffix(p, "/...")
		if rel == p || strings.HasPrefix(rel, p+"/") {
			return true
		}
	}
	return rel != "" && s.ignore.Match(rel)
}

// extractProviders finds every annotated type declaration in pkg.
func extractProviders(pkg *packages.Package) []provider.Declaration {
	asserted := collectAssertions(pkg)

	var decls []provider.Declaration
	for _, f := range pkg.Syntax {
		for _, decl := range f.Decls {
			gd, ok := decl.(*ast.GenDecl)
			if !ok || gd.Tok != token.TYPE {
				continue
			}
			for _, spec := range gd.Specs {
				ts := spec.(*ast.TypeSpec)
				doc := ts.Doc
				if doc == nil && !gd.Lparen.IsValid() {
					doc = gd.Doc
				}
				args, found := parseDirective(doc)
				if !found {
					continue
				}

				obj, ok := pkg.TypesInfo.Defs[ts.Name].(*types.TypeName)
				if !ok {
					continue
				}

				d := provider.Declaration{
					Name: BinaryName(obj),
					Pos:  pkg.Fset.Position(ts.Pos()),
				}
				for _, arg := range args {
					d.Annotation.Contracts = append(d.Annotation.Contracts, evalRef(pkg, ts.Pos(), arg))
				}
				d.Superclass, d.Interfaces = ancestry(obj, asserted[obj])
				decls = append(decls, d)
			}
		}
	}
	return decls
}

// BinaryName returns the manifest name of a type.
func BinaryName(obj *types.TypeName) string {
	if obj.Pkg() == nil {
		return obj.Name()
	}
	return strings.ReplaceAll(obj.Pkg().Path(), "/", ".") + "." + obj.Name()
}

// evalRef resolves a directive argument in the file scope at pos.
// Arguments spelled with a full import path ("example.com/x/codec.Codec")
// are accepted without type checking.
func evalRef(pkg *packages.Package, pos token.Pos, expr string) provider.TypeRef {
	if strings.Contains(expr, "/") {
		i := strings.LastIndex(expr, ".")
		if i <= strings.LastIndex(expr, "/") {
			return provider.TypeRef{Name: expr, Kind: provider.Invalid}
		}
		return provider.Ref(strings.ReplaceAll(expr[:i], "/", ".") + expr[i:])
	}

	tv, err := types.Eval(pkg.Fset, pkg.Types, pos, expr)
	if err != nil || !tv.IsType() {
		return provider.TypeRef{Name: expr, Kind: provider.Invalid}
	}
	return typeRef(tv.Type)
}

func typeRef(t types.Type) provider.TypeRef {
	switch t := types.Unalias(t).(type) {
	case *types.Named:
		return provider.Ref(BinaryName(t.Origin().Obj()))
	case *types.Basic:
		return provider.TypeRef{Name: t.Name(), Kind: provider.Primitive}
	case *types.Slice, *types.Array:
		return provider.TypeRef{Name: types.TypeString(t, nil), Kind: provider.Array}
	default:
		return provider.TypeRef{Name: types.TypeString(t, nil), Kind: provider.Invalid}
	}
}

// ancestry reads the base class and interface list of a declared type.
func ancestry(obj *types.TypeName, asserted []provider.TypeRef) (*provider.TypeRef, []provider.TypeRef) {
	var super *provider.TypeRef
	var ifaces []provider.TypeRef
	seen := make(map[string]bool)
	addIface := func(ref provider.TypeRef) {
		if !seen[ref.Name] {
			seen[ref.Name] = true
			ifaces = append(ifaces, ref)
		}
	}

	if named, ok := obj.Type().(*types.Named); ok {
		switch u := named.Underlying().(type) {
		case *types.Struct:
			for i := range u.NumFields() {
				f := u.Field(i)
				if !f.Embedded() {
					continue
				}
				n, ok := types.Unalias(deref(f.Type())).(*types.Named)
				if !ok {
					continue
				}
				ref := typeRef(n)
				if types.IsInterface(n) {
					addIface(ref)
				} else if super == nil {
					super = &ref
				}
			}
		case *types.Interface:
			for i := range u.NumEmbeddeds() {
				if n, ok := types.Unalias(u.EmbeddedType(i)).(*types.Named); ok {
					addIface(typeRef(n))
				}
			}
		}
	}

	for _, ref := range asserted {
		addIface(ref)
	}
	return super, ifaces
}

// collectAssertions indexes package-level `var _ I = value` declarations
// by the named type of value.
func collectAssertions(pkg *packages.Package) map[*types.TypeName][]provider.TypeRef {
	out := make(map[*types.TypeName][]provider.TypeRef)
	for _, f := range pkg.Syntax {
		for _, decl := range f.Decls {
			gd, ok := decl.(*ast.GenDecl)
			if !ok || gd.Tok != token.VAR {
				continue
			}
			for _, spec := range gd.Specs {
				vs := spec.(*ast.ValueSpec)
				if vs.Type == nil || len(vs.Values) != len(vs.Names) {
					continue
				}
				iface := pkg.TypesInfo.TypeOf(vs.Type)
				if iface == nil || !types.IsInterface(iface) {
					continue
				}
				if _, ok := types.Unalias(iface).(*types.Named); !ok {
					continue
				}
				for i, name := range vs.Names {
					if name.Name != "_" {
						continue
					}
					vt := pkg.TypesInfo.TypeOf(vs.Values[i])
					if vt == nil {
						continue
					}
					n, ok := types.Unalias(deref(vt)).(*types.Named)
					if !ok {
						continue
					}
					obj := n.Origin().Obj()
					out[obj] = append(out[obj], typeRef(iface))
				}
			}
		}
	}
	return out
}

func deref(t types.Type) types.Type {
	if p, ok := t.(*types.Pointer); ok {
		return p.Elem()
	}
	return t
}

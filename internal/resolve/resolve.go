// Package resolve determines which contracts an annotated provider is
// registered under.
package resolve

import (
	"fmt"
	"go/token"
	"strings"

	"github.com/iVampireSP/metainf/internal/provider"
)

// DefaultRootTypes are the universal root types that never count as a base class.
var DefaultRootTypes = []string{"java.lang.Object"}

const reasonNotInferred = "contract type was not specified and could not be inferred"

// ResolutionError reports a provider whose contract could not be determined.
type ResolutionError struct {
	Provider string
	Pos      token.Position
	Reason   string
}

func (e *ResolutionError) Error() string {
	return fmt.Sprintf("%s: %s", e.Provider, e.Reason)
}

// Resolver maps declarations to contract names.
type Resolver struct {
	roots map[string]bool
}

// New creates a resolver. rootTypes lists the names treated as the universal
// root; nil selects DefaultRootTypes.
func New(rootTypes []string) *Resolver {
	if rootTypes == nil {
		rootTypes = DefaultRootTypes
	}
	roots := make(map[string]bool, len(rootTypes))
	for _, r := range rootTypes {
		roots[r] = true
	}
	return &Resolver{roots: roots}
}

// Resolve returns the contracts d is registered under together with one
// *ResolutionError per reference that could not be used. Explicit
// references are taken as-is; assignability is not checked.
func (r *Resolver) Resolve(d provider.Declaration) ([]string, []error) {
	if d.Annotation.Specified() {
		return r.explicit(d)
	}

	contract, ok := r.infer(d)
	if !ok {
		return nil, []error{r.fail(d, reasonNotInferred)}
	}
	if contract.Kind != provider.Declared {
		return nil, []error{r.fail(d, fmt.Sprintf("inferred contract %s is not a declared type (%s)", contract, contract.Kind))}
	}
	if err := checkName(contract.Name); err != nil {
		return nil, []error{r.fail(d, fmt.Sprintf("inferred contract %q: %v", contract.Name, err))}
	}
	return []string{contract.Name}, nil
}

func (r *Resolver) explicit(d provider.Declaration) ([]string, []error) {
	var contracts []string
	var errs []error
	for _, ref := range d.Annotation.Contracts {
		if ref.Kind != provider.Declared {
			errs = append(errs, r.fail(d, fmt.Sprintf("invalid type specified as the contract: %s (%s)", ref, ref.Kind)))
			continue
		}
		if err := checkName(ref.Name); err != nil {
			errs = append(errs, r.fail(d, fmt.Sprintf("invalid type specified as the contract: %s: %v", ref, err)))
			continue
		}
		contracts = append(contracts, ref.Name)
	}
	return contracts, errs
}

// infer applies the single-ancestor rule: exactly one of a non-root base
// class or a first declared interface. Any non-root superclass counts as a
// base class whatever its kind; an unusable one is rejected by Resolve.
func (r *Resolver) infer(d provider.Declaration) (provider.TypeRef, bool) {
	hasBaseClass := d.Superclass != nil && !r.roots[d.Superclass.Name]
	hasInterfaces := len(d.Interfaces) > 0

	if hasBaseClass == hasInterfaces {
		return provider.TypeRef{}, false
	}
	if hasBaseClass {
		return *d.Superclass, true
	}
	return d.Interfaces[0], true
}

func (r *Resolver) fail(d provider.Declaration, reason string) *ResolutionError {
	return &ResolutionError{Provider: d.Name, Pos: d.Pos, Reason: reason}
}

// checkName rejects names that cannot be a single manifest file name.
func checkName(name string) error {
	switch {
	case name == "":
		return fmt.Errorf("empty name")
	case name == "." || name == "..":
		return fmt.Errorf("not a type name")
	case strings.ContainsAny(name, "/\\\n\r\x00"):
		return fmt.Errorf("name contains a path separator or control character")
	}
	return nil
}

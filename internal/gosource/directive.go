package gosource

import (
	"go/ast"
	"strings"
)

// Directive marks a type declaration as a service provider:
//
//	//metainf:service              contract inferred from the type's ancestry
//	//metainf:service codec.Codec  explicit contract(s), space or comma separated
const Directive = "metainf:service"

// parseDirective extracts the //metainf:service arguments from a doc
// comment. Several directive lines accumulate their arguments.
func parseDirective(doc *ast.CommentGroup) (args []string, found bool) {
	if doc == nil {
		return nil, false
	}
	for _, c := range doc.List {
		text := strings.TrimPrefix(c.Text, "//")
		text = strings.TrimSpace(text)
		if !strings.HasPrefix(text, Directive) {
			continue
		}
		rest := strings.TrimPrefix(text, Directive)
		if rest != "" && rest[0] != ' ' && rest[0] != '\t' {
			continue // e.g. //metainf:services
		}
		found = true
		args = append(args, strings.Fields(strings.ReplaceAll(rest, ",", " "))...)
	}
	return args, found
}

// Package main implements metainf, a build-time generator of
// META-INF/services provider registries.
//
// metainf scans type declarations marked with a //metainf:service directive,
// works out the contract each provider implements (named explicitly, or
// inferred when the type has exactly one base type or one interface), and
// merges the provider names into META-INF/services/<contract>. Existing
// manifests are read back and unioned with the new entries, so partial runs
// never drop providers written by earlier ones.
//
// Generation flow:
//
//  1. Read go.mod → module root and path
//  2. Read .metainf.yaml, METAINF_* env and flags → configuration
//  3. For each scan pattern (one discovery pass each):
//     - load packages and collect annotated declarations
//     - resolve each provider's contracts
//     - merge the pass's providers into the touched manifests
//  4. Terminal pass → done
//
// Usage:
//
//	//go:generate go run github.com/iVampireSP/metainf@latest
package main

import (
	"os"

	"github.com/iVampireSP/metainf/internal/cli"
)

func main() {
	os.Exit(cli.Execute())
}

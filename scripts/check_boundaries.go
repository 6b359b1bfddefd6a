package main

import (
	"fmt"
	"go/parser"
	"go/token"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

const (
	projectPrefix = "urna/"
	contextsRoot  = "contexts"

	// sharedPrefix holds the event envelope and outbox record types every
	// layer above the domain may use.
	sharedPrefix = "urna/internal/shared"
)

type violation struct {
	File   string
	Line   int
	Import string
	Rule   string
}

// layerRule lists the module-relative packages a layer may import. Inner
// layers never import third-party modules. Layers without a rule (adapters,
// module root) are only checked for cross-module imports and for reaching
// into a sibling adapter.
type layerRule struct {
	allowed     []string
	allowShared bool
}

var layerRules = map[string]layerRule{
	"domain": {
		allowed: []string{"domain"},
	},
	"ports": {
		allowed:     []string{"domain", "ports"},
		allowShared: true,
	},
	"application": {
		allowed:     []string{"application", "domain", "ports"},
		allowShared: true,
	},
	"transport": {
		allowed: []string{"transport"},
	},
}

func main() {
	root := contextsRoot
	if len(os.Args) > 1 {
		root = os.Args[1]
	}
	violations := collectViolations(root)
	if len(violations) == 0 {
		fmt.Println("boundary checks passed")
		return
	}

	sort.Slice(violations, func(i, j int) bool {
		if violations[i].File != violations[j].File {
			return violations[i].File < violations[j].File
		}
		if violations[i].Line != violations[j].Line {
			return violations[i].Line < violations[j].Line
		}
		return violations[i].Import < violations[j].Import
	})

	fmt.Println("boundary violations found:")
	for _, v := range violations {
		fmt.Printf("- %s:%d imports %q (%s)\n", v.File, v.Line, v.Import, v.Rule)
	}
	os.Exit(1)
}

func collectViolations(root string) []violation {
	var violations []violation

	_ = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() || !strings.HasSuffix(path, ".go") || strings.HasSuffix(path, "_test.go") {
			return nil
		}
		normalized := filepath.ToSlash(path)
		parts := strings.Split(normalized, "/")
		// contexts/<bounded-context>/<module>/<layer>/...
		if len(parts) < 4 || parts[0] != contextsRoot {
			return nil
		}
		modulePrefix := projectPrefix + strings.Join(parts[:3], "/")
		layer := parts[3]
		adapter := ""
		if layer == "adapters" && len(parts) > 5 {
			adapter = parts[4]
		}
		violations = append(violations, validateFile(path, normalized, modulePrefix, layer, adapter)...)
		return nil
	})

	return violations
}

func validateFile(path string, normalizedPath string, modulePrefix string, layer string, adapter string) []violation {
	fset := token.NewFileSet()
	file, err := parser.ParseFile(fset, path, nil, parser.ImportsOnly)
	if err != nil {
		return []violation{{File: normalizedPath, Line: 1, Rule: "file must parse"}}
	}

	var violations []violation
	report := func(line int, importPath string, rule string) {
		violations = append(violations, violation{
			File:   normalizedPath,
			Line:   line,
			Import: importPath,
			Rule:   rule,
		})
	}

	for _, imp := range file.Imports {
		importPath := strings.Trim(imp.Path.Value, "\"")
		line := fset.Position(imp.Pos()).Line

		if hasPrefix(importPath, projectPrefix+contextsRoot) && !hasPrefix(importPath, modulePrefix) {
			report(line, importPath, "cross-module imports are forbidden")
			continue
		}
		if adapter != "" && hasPrefix(importPath, modulePrefix+"/adapters") &&
			!hasPrefix(importPath, modulePrefix+"/adapters/"+adapter) {
			report(line, importPath, "adapters must not import sibling adapters")
		}

		rule, ok := layerRules[layer]
		if !ok {
			continue
		}
		if broken := checkLayerImport(rule, modulePrefix, importPath); broken != "" {
			report(line, importPath, layer+" "+broken)
		}
	}
	return violations
}

// checkLayerImport returns the broken rule, or "" when the import is allowed.
func checkLayerImport(rule layerRule, modulePrefix string, importPath string) string {
	switch {
	case isStdlib(importPath):
		return ""
	case hasPrefix(importPath, sharedPrefix):
		if rule.allowShared {
			return ""
		}
		return "must not import shared event types"
	case strings.HasPrefix(importPath, projectPrefix+"internal/"), strings.HasPrefix(importPath, projectPrefix+"cmd/"):
		return "must not import runtime infrastructure"
	case strings.HasPrefix(importPath, modulePrefix+"/adapters"):
		return "must not import adapters"
	case strings.HasPrefix(importPath, modulePrefix):
		for _, allowed := range rule.allowed {
			if hasPrefix(importPath, modulePrefix+"/"+allowed) {
				return ""
			}
		}
		return "import is outside explicit allowlist"
	default:
		return "must not import third-party modules"
	}
}

func hasPrefix(path string, prefix string) bool {
	prefix = strings.TrimSuffix(prefix, "/")
	return path == prefix || strings.HasPrefix(path, prefix+"/")
}

func isStdlib(importPath string) bool {
	if strings.HasPrefix(importPath, projectPrefix) {
		return false
	}
	first, _, _ := strings.Cut(importPath, "/")
	return !strings.Contains(first, ".")
}

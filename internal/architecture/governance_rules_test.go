package architecture_test

import (
	"go/parser"
	"go/token"
	"io/fs"
	"path/filepath"
	"runtime"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

const modulePath = "sql-sandbox"

type layerRule struct {
	sourcePrefix string
	forbidden    []string
	hint         string
}

func internalPkg(name string) string { return modulePath + "/internal/" + name }

// outer is everything above the service layer.
var outer = []string{internalPkg("app"), modulePath + "/pkg/cli", modulePath + "/cmd"}

var architectureRules = []layerRule{
	{
		sourcePrefix: internalPkg("domain"),
		forbidden:    []string{modulePath + "/internal", modulePath + "/pkg", modulePath + "/cmd"},
		hint:         "domain may only import domain",
	},
	{
		sourcePrefix: internalPkg("duckdbsql"),
		forbidden:    []string{modulePath + "/internal", modulePath + "/pkg", modulePath + "/cmd"},
		hint:         "duckdbsql is a leaf package",
	},
	{
		sourcePrefix: internalPkg("config"),
		forbidden:    []string{modulePath + "/internal", modulePath + "/pkg", modulePath + "/cmd"},
		hint:         "config is a leaf package",
	},
	{
		sourcePrefix: internalPkg("gatekeeper"),
		forbidden: append([]string{
			internalPkg("engine"), internalPkg("session"), internalPkg("seed"),
			internalPkg("validator"), internalPkg("sandbox"), internalPkg("normalize"),
		}, outer...),
		hint: "gatekeeper classifies text; it depends on domain and duckdbsql only",
	},
	{
		sourcePrefix: internalPkg("normalize"),
		forbidden: append([]string{
			internalPkg("engine"), internalPkg("session"), internalPkg("gatekeeper"),
			internalPkg("validator"), internalPkg("sandbox"),
		}, outer...),
		hint: "normalize depends on domain only",
	},
	{
		sourcePrefix: internalPkg("seed"),
		forbidden: append([]string{
			internalPkg("engine"), internalPkg("session"), internalPkg("gatekeeper"),
			internalPkg("validator"), internalPkg("sandbox"),
		}, outer...),
		hint: "seed depends on config and duckdbsql",
	},
	{
		sourcePrefix: internalPkg("session"),
		forbidden: append([]string{
			internalPkg("engine"), internalPkg("gatekeeper"), internalPkg("validator"), internalPkg("sandbox"),
		}, outer...),
		hint: "session owns databases and never runs learner SQL",
	},
	{
		sourcePrefix: internalPkg("engine"),
		forbidden: append([]string{
			internalPkg("session"), internalPkg("validator"), internalPkg("sandbox"),
		}, outer...),
		hint: "engine runs gatekept statements on a handle it is given",
	},
	{
		sourcePrefix: internalPkg("validator"),
		forbidden:    append([]string{internalPkg("sandbox")}, outer...),
		hint:         "validator sits below the sandbox service",
	},
	{
		sourcePrefix: internalPkg("sandbox"),
		forbidden:    outer,
		hint:         "sandbox is the service layer",
	},
	{
		sourcePrefix: internalPkg("content"),
		forbidden: append([]string{
			internalPkg("engine"), internalPkg("session"), internalPkg("sandbox"), internalPkg("validator"),
		}, outer...),
		hint: "content only decodes definitions into domain types",
	},
	{
		sourcePrefix: internalPkg("testutil"),
		forbidden: append([]string{
			internalPkg("engine"), internalPkg("gatekeeper"), internalPkg("validator"), internalPkg("sandbox"),
		}, outer...),
		hint: "testutil may only build fixtures from session and seed",
	},
	{
		sourcePrefix: internalPkg("app"),
		forbidden:    []string{modulePath + "/pkg", modulePath + "/cmd"},
		hint:         "app wires internal packages for the CLI",
	},
}

func collectGoFiles(root string) ([]string, error) {
	files := make([]string, 0)
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		if strings.HasSuffix(path, ".go") {
			files = append(files, filepath.ToSlash(path))
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return files, nil
}

func repoRootDir() string {
	_, file, _, ok := runtime.Caller(0)
	if !ok {
		return "."
	}
	return filepath.Clean(filepath.Join(filepath.Dir(file), "..", ".."))
}

func internalRootDir() string {
	return filepath.Join(repoRootDir(), "internal")
}

func relToRepoRoot(path string) string {
	rel, err := filepath.Rel(repoRootDir(), path)
	if err != nil {
		return filepath.ToSlash(path)
	}
	return filepath.ToSlash(rel)
}

func packageImportPath(file string) string {
	return modulePath + "/" + filepath.ToSlash(filepath.Dir(relToRepoRoot(file)))
}

func findRule(sourcePkg string) (layerRule, bool) {
	for _, rule := range architectureRules {
		if hasPathPrefix(sourcePkg, rule.sourcePrefix) {
			return rule, true
		}
	}
	return layerRule{}, false
}

func matchingForbiddenPrefix(importPath string, forbidden []string) string {
	for _, prefix := range forbidden {
		if hasPathPrefix(importPath, prefix) {
			return prefix
		}
	}
	return ""
}

func hasPathPrefix(value string, prefix string) bool {
	return value == prefix || strings.HasPrefix(value, prefix+"/")
}

func isTestFile(path string) bool {
	return strings.HasSuffix(filepath.Base(path), "_test.go")
}

func parseImports(t *testing.T, file string) []string {
	t.Helper()

	fset := token.NewFileSet()
	parsed, err := parser.ParseFile(fset, file, nil, parser.ImportsOnly)
	require.NoErrorf(t, err, "parse imports for %s", file)

	imports := make([]string, 0, len(parsed.Imports))
	for _, imp := range parsed.Imports {
		imports = append(imports, strings.Trim(imp.Path.Value, "\""))
	}
	return imports
}

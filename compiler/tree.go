package compiler

import (
	"fmt"
	"os"
	"path/filepath"
)

// ---------------------------------------------------------------------------
// Module tree loading
// ---------------------------------------------------------------------------

// SourceExt is the file extension of sylt modules.
const SourceExt = ".sy"

// pathToModule resolves a use statement: the module name maps to a
// sibling file <name>.sy next to the importing file.
func pathToModule(fromFile, name string) string {
	return filepath.Join(filepath.Dir(fromFile), name+SourceExt)
}

// LoadProg reads the entry file and, following use statements,
// every module reachable from it. The entry module is first in the
// result. Parse errors from all files are accumulated.
func LoadProg(entry string) (*Prog, []*SyntaxError) {
	prog := &Prog{}
	var errs []*SyntaxError
	seen := map[string]bool{}

	var load func(path string)
	load = func(path string) {
		if seen[path] {
			return
		}
		seen[path] = true

		src, err := os.ReadFile(path)
		if err != nil {
			errs = append(errs, &SyntaxError{
				File:    path,
				Line:    0,
				Message: fmt.Sprintf("cannot read module: %v", err),
			})
			return
		}

		mod, modErrs := Parse(path, string(src))
		errs = append(errs, modErrs...)
		prog.Modules = append(prog.Modules, ModuleFile{Path: path, Module: mod})

		for _, stmt := range mod.Stmts {
			if use, ok := stmt.(*Use); ok {
				load(pathToModule(path, use.Ident.Name))
			}
		}
	}

	load(entry)
	return prog, errs
}

// ParseProg parses in-memory sources without touching the filesystem.
// Sources maps file paths to source text; entry must be a key. Used by
// tests and embedders that hold sources themselves.
func ParseProg(entry string, sources map[string]string) (*Prog, []*SyntaxError) {
	prog := &Prog{}
	var errs []*SyntaxError
	seen := map[string]bool{}

	var load func(path string)
	load = func(path string) {
		if seen[path] {
			return
		}
		seen[path] = true

		src, ok := sources[path]
		if !ok {
			errs = append(errs, &SyntaxError{
				File:    path,
				Line:    0,
				Message: "module not found",
			})
			return
		}

		mod, modErrs := Parse(path, src)
		errs = append(errs, modErrs...)
		prog.Modules = append(prog.Modules, ModuleFile{Path: path, Module: mod})

		for _, stmt := range mod.Stmts {
			if use, ok := stmt.(*Use); ok {
				load(pathToModule(path, use.Ident.Name))
			}
		}
	}

	load(entry)
	return prog, errs
}

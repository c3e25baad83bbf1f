// Package script validates and hosts user-authored code assets.
package script

import (
	"go/ast"
	"go/parser"
	"go/token"
	"strings"
)

// A ValidationResult reports whether submitted script source was accepted.
// The titles are string-matched by the admin surface, so they stay stable.
type ValidationResult struct {
	OK      bool   `json:"ok"`
	Title   string `json:"title,omitempty"`
	Details string `json:"details,omitempty"`
}

// Validate statically checks script source for the two required entry
// points, Init and Tick, without executing it. Accepted authoring styles:
//
//	func Init() { ... }
//	var Init = func() { ... }
//	var Exports = map[string]func(){"init": func() { ... }, "tick": func() { ... }}
//
// Declarations use the exported spellings Init and Tick; Exports map keys
// are matched case-insensitively. A parse failure carries the parser's
// message verbatim.
func Validate(src string) ValidationResult {
	fset := token.NewFileSet()
	file, err := parser.ParseFile(fset, "asset.go", withPackageClause(src), 0)
	if err != nil {
		return ValidationResult{Title: "Syntax Error", Details: err.Error()}
	}
	hasInit, hasTick := findEntryPoints(file)
	if !hasInit {
		return ValidationResult{
			Title:   "Missing function: init",
			Details: "You must define a top-level func Init or bind a function to Init",
		}
	}
	if !hasTick {
		return ValidationResult{
			Title:   "Missing function: tick",
			Details: "You must define a top-level func Tick or bind a function to Tick",
		}
	}
	return ValidationResult{OK: true}
}

// Scripts are written without a package clause; one is supplied before
// parsing, matching how the interpreter evaluates them.
func withPackageClause(src string) string {
	if strings.HasPrefix(strings.TrimSpace(src), "package ") {
		return src
	}
	return "package main\n\n" + src
}

func findEntryPoints(file *ast.File) (hasInit bool, hasTick bool) {
	// Declarations count only under the exported spellings: lowercase init
	// is reserved by the language and can never be called by name.
	mark := func(name string) {
		switch name {
		case "Init":
			hasInit = true
		case "Tick":
			hasTick = true
		}
	}
	markKey := func(name string) {
		switch strings.ToLower(name) {
		case "init":
			hasInit = true
		case "tick":
			hasTick = true
		}
	}
	for _, decl := range file.Decls {
		switch d := decl.(type) {
		case *ast.FuncDecl:
			if d.Recv == nil {
				mark(d.Name.Name)
			}
		case *ast.GenDecl:
			if d.Tok != token.VAR {
				continue
			}
			for _, spec := range d.Specs {
				vs, ok := spec.(*ast.ValueSpec)
				if !ok {
					continue
				}
				for i, name := range vs.Names {
					if i >= len(vs.Values) {
						break
					}
					switch v := vs.Values[i].(type) {
					case *ast.FuncLit:
						mark(name.Name)
					case *ast.CompositeLit:
						if name.Name != "Exports" {
							continue
						}
						markExports(v, markKey)
					}
				}
			}
		}
	}
	return hasInit, hasTick
}

func markExports(lit *ast.CompositeLit, mark func(string)) {
	for _, elt := range lit.Elts {
		kv, ok := elt.(*ast.KeyValueExpr)
		if !ok {
			continue
		}
		if _, ok := kv.Value.(*ast.FuncLit); !ok {
			continue
		}
		switch k := kv.Key.(type) {
		case *ast.BasicLit:
			mark(strings.Trim(k.Value, `"`))
		case *ast.Ident:
			mark(k.Name)
		}
	}
}

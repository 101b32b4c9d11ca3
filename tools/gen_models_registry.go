package main

import (
	"bytes"
	"fmt"
	"go/ast"
	"go/format"
	"go/parser"
	"go/token"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/joho/godotenv"
	"gorm.io/gorm/schema"
)

const registryFile = "models_registry.go"

func main() {
	// Load .env if available
	_ = godotenv.Load()

	var modelsDir string
	if len(os.Args) >= 2 {
		modelsDir = os.Args[1]
	} else {
		modelsDir = os.Getenv("PROPERTYHUB_MODELS_PATH")
		if modelsDir == "" {
			fmt.Println("Usage: go run gen_models_registry.go <models_dir> OR set PROPERTYHUB_MODELS_PATH environment variable")
			os.Exit(1)
		}
	}

	models, err := collectModels(modelsDir)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	src, err := renderRegistry(models)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	outputFile := filepath.Join(modelsDir, registryFile)
	if err := os.WriteFile(outputFile, src, 0644); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	fmt.Printf("Generated %s with %d models.\n", outputFile, len(models))
}

// collectModels returns the names of the structs in dir that embed gorm.Model
func collectModels(dir string) ([]string, error) {
	files, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}

	var structs []string
	for _, file := range files {
		name := file.Name()
		if !strings.HasSuffix(name, ".go") || strings.HasSuffix(name, "_test.go") || name == registryFile {
			continue
		}
		fset := token.NewFileSet()
		node, err := parser.ParseFile(fset, filepath.Join(dir, name), nil, 0)
		if err != nil {
			return nil, err
		}
		for _, decl := range node.Decls {
			gen, ok := decl.(*ast.GenDecl)
			if !ok || gen.Tok != token.TYPE {
				continue
			}
			for _, spec := range gen.Specs {
				typeSpec, ok := spec.(*ast.TypeSpec)
				if !ok {
					continue
				}
				st, ok := typeSpec.Type.(*ast.StructType)
				if ok && embedsGormModel(st) {
					structs = append(structs, typeSpec.Name.Name)
				}
			}
		}
	}
	sort.Strings(structs)
	return structs, nil
}

func embedsGormModel(st *ast.StructType) bool {
	for _, field := range st.Fields.List {
		if len(field.Names) != 0 {
			continue
		}
		sel, ok := field.Type.(*ast.SelectorExpr)
		if !ok {
			continue
		}
		if pkg, ok := sel.X.(*ast.Ident); ok && pkg.Name == "gorm" && sel.Sel.Name == "Model" {
			return true
		}
	}
	return false
}

// tableConst names the constant holding a model's table, e.g. TablePayments
func tableConst(table string) string {
	var b strings.Builder
	b.WriteString("Table")
	for _, part := range strings.Split(table, "_") {
		if part == "" {
			continue
		}
		b.WriteString(strings.ToUpper(part[:1]) + part[1:])
	}
	return b.String()
}

func renderRegistry(models []string) ([]byte, error) {
	naming := schema.NamingStrategy{}

	var b bytes.Buffer
	b.WriteString("// Code generated by gen_models_registry.go; DO NOT EDIT.\n\n")
	b.WriteString("package models\n\n")
	b.WriteString("// Remote table names\n")
	b.WriteString("const (\n")
	for _, name := range models {
		table := naming.TableName(name)
		fmt.Fprintf(&b, "\t%s = %q\n", tableConst(table), table)
	}
	b.WriteString(")\n\n")
	b.WriteString("// ModelTypeRegistry maps every remote table to its model\n")
	b.WriteString("var ModelTypeRegistry = map[string]interface{}{\n")
	for _, name := range models {
		fmt.Fprintf(&b, "\t%s: %s{},\n", tableConst(naming.TableName(name)), name)
	}
	b.WriteString("}\n")

	return format.Source(b.Bytes())
}

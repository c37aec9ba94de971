package snapshot

import (
	"errors"
	"fmt"
	"go/ast"
	"go/parser"
	"go/token"
	"os"
	"path/filepath"
	"reflect"
	"runtime"
	"strings"
)

// ErrNoSource is returned when the text of a function cannot be recovered,
// for example when the binary runs away from the tree it was built from.
var ErrNoSource = errors.New("source not available")

// Source is the captured text of an instrumented region.
type Source struct {
	Function string // fully qualified name as reported by the runtime
	File     string // absolute path of the defining file
	Line     int
	Text     string
}

// FileName returns the base name of the defining file.
func (s Source) FileName() string {
	if s.File == "" {
		return "unknown_file.go"
	}
	return filepath.Base(s.File)
}

// ShortFunction returns the function name without its package path.
func (s Source) ShortFunction() string {
	if s.Function == "" {
		return "unknown_function"
	}
	name := s.Function
	if i := strings.LastIndex(name, "/"); i >= 0 {
		name = name[i+1:]
	}
	if i := strings.Index(name, "."); i >= 0 {
		name = name[i+1:]
	}
	return name
}

// SourceOf returns the source of the function value fn.
func SourceOf(fn any) (Source, error) {
	v := reflect.ValueOf(fn)
	if v.Kind() != reflect.Func || v.IsNil() {
		return Source{}, fmt.Errorf("%w: %T is not a function", ErrNoSource, fn)
	}

	rf := runtime.FuncForPC(v.Pointer())
	if rf == nil {
		return Source{}, fmt.Errorf("%w: function not known to the runtime", ErrNoSource)
	}
	file, line := rf.FileLine(rf.Entry())
	return extract(Source{Function: rf.Name(), File: file, Line: line})
}

// CallerSource returns the source of the function enclosing a call site.
// skip follows runtime.Caller: 0 is the caller of CallerSource.
func CallerSource(skip int) (Source, error) {
	pc, file, line, ok := runtime.Caller(skip + 1)
	if !ok {
		return Source{}, fmt.Errorf("%w: caller not found", ErrNoSource)
	}
	src := Source{File: file, Line: line}
	if rf := runtime.FuncForPC(pc); rf != nil {
		src.Function = rf.Name()
	}
	return extract(src)
}

// extract fills src.Text with the innermost function declaration or literal
// whose span covers src.Line.
func extract(src Source) (Source, error) {
	data, err := os.ReadFile(src.File)
	if err != nil {
		return src, fmt.Errorf("%w: %v", ErrNoSource, err)
	}

	fset := token.NewFileSet()
	f, err := parser.ParseFile(fset, src.File, data, parser.ParseComments)
	if err != nil {
		return src, fmt.Errorf("%w: failed to parse %s: %v", ErrNoSource, src.File, err)
	}

	var best ast.Node
	ast.Inspect(f, func(n ast.Node) bool {
		switch n.(type) {
		case *ast.FuncDecl, *ast.FuncLit:
		default:
			return true
		}
		start := fset.Position(n.Pos()).Line
		end := fset.Position(n.End()).Line
		if start <= src.Line && src.Line <= end {
			best = n
		}
		return true
	})
	if best == nil {
		return src, fmt.Errorf("%w: no function covers %s:%d", ErrNoSource, src.File, src.Line)
	}

	start := best.Pos()
	if decl, ok := best.(*ast.FuncDecl); ok && decl.Doc != nil {
		start = decl.Doc.Pos()
	}
	from := fset.Position(start).Offset
	to := fset.Position(best.End()).Offset

	// Keep the leading indentation of the first line.
	for from > 0 && (data[from-1] == ' ' || data[from-1] == '\t') {
		from--
	}
	src.Text = string(data[from:to]) + "\n"
	return src, nil
}

package gen

import (
	"bytes"
	"fmt"
	"go/format"
	"text/template"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// The Go manifest gives callers a compile-time index of every exported
// shim symbol, so dispatch tables can be validated against the build
// instead of hand-maintained string lists.
var manifestTmpl = template.Must(template.New("manifest").Parse(
	`// Code generated by bowstring. DO NOT EDIT.

package {{.Package}}

// Exported shim symbols, one per routine instantiation.
const (
{{- range .Entries}}
	{{.Const}} = "{{.Symbol}}"
{{- end}}
)

// Symbols lists every exported shim symbol in generation order.
var Symbols = []string{
{{- range .Entries}}
	{{.Const}},
{{- end}}
}
`))

type manifestEntry struct {
	Const  string
	Symbol string
}

func constName(caser cases.Caser, a Artifact) string {
	return "Symbol" + caser.String(a.Routine) + caser.String(a.Precision) + caser.String(a.Width)
}

func manifestArtifact(pkg string, artifacts []Artifact) (Artifact, error) {
	if pkg == "" {
		pkg = "shims"
	}

	// A cases.Caser is stateful and not safe for concurrent use; keep
	// it local so concurrent generation runs stay independent.
	caser := cases.Title(language.Und, cases.NoLower)

	data := struct {
		Package string
		Entries []manifestEntry
	}{Package: pkg}
	for _, a := range artifacts {
		data.Entries = append(data.Entries, manifestEntry{Const: constName(caser, a), Symbol: a.Symbol})
	}

	var buf bytes.Buffer
	if err := manifestTmpl.Execute(&buf, data); err != nil {
		return Artifact{}, fmt.Errorf("rendering symbol manifest: %w", err)
	}
	src, err := format.Source(buf.Bytes())
	if err != nil {
		return Artifact{}, fmt.Errorf("formatting symbol manifest: %w", err)
	}

	return Artifact{
		Filename: "symbols.go",
		Source:   src,
	}, nil
}

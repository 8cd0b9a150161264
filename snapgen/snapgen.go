// Package snapgen renders grammar snapshots as Go source, JSON or YAML.
package snapgen

import (
	"bytes"
	"encoding/json"
	"fmt"
	"go/format"
	"path/filepath"
	"strings"

	regexp "github.com/wasilibs/go-re2"
	"gopkg.in/yaml.v3"

	"github.com/ava12/packrat/snapshot"
)

// Output formats:
const (
	GoFormat   = "go"
	JSONFormat = "json"
	YAMLFormat = "yaml"
)

// Formats lists known output formats.
var Formats = []string{GoFormat, JSONFormat, YAMLFormat}

// Ext returns file name extension for output format.
func Ext(format string) string {
	switch format {
	case YAMLFormat:
		return ".yaml"
	case JSONFormat:
		return ".json"
	default:
		return ".go"
	}
}

// Options controls Go rendering.
type Options struct {
	// Package is the name of generated package.
	Package string `yaml:"package"`

	// Var is the name prefix of generated variables and the name of generated function.
	Var string `yaml:"var"`

	// ShortImport makes the generated file import "packrat/snapshot" instead of the full module path.
	ShortImport bool `yaml:"short-import"`
}

const importPath = "github.com/ava12/packrat/snapshot"

var identRe = regexp.MustCompile(`^[A-Za-z_][A-Za-z_0-9]*$`)

// PackageName returns the name of directory containing file, it is the default package name.
func PackageName(fileName string) (string, error) {
	path, e := filepath.Abs(fileName)
	if e != nil {
		return "", e
	}

	return filepath.Base(filepath.Dir(path)), nil
}

// Render renders snapshot in given format.
func Render(s *snapshot.Snapshot, format string, opts Options) ([]byte, error) {
	switch format {
	case GoFormat:
		return Go(s, opts)
	case JSONFormat:
		return JSON(s)
	case YAMLFormat:
		return YAML(s)
	default:
		return nil, fmt.Errorf("unknown output format %q, expecting one of %s", format, strings.Join(Formats, ", "))
	}
}

// Document is the JSON and YAML projection of snapshot.
type Document struct {
	Version  int                `json:"version" yaml:"version"`
	Blob     []byte             `json:"blob" yaml:"blob"`
	Stats    snapshot.Stats     `json:"stats" yaml:"stats"`
	Snapshot *snapshot.Snapshot `json:"snapshot" yaml:"snapshot"`
}

func document(s *snapshot.Snapshot) (*Document, error) {
	blob, e := snapshot.Encode(s)
	if e != nil {
		return nil, e
	}

	return &Document{snapshot.Version, blob, s.Stats(), s}, nil
}

// JSON renders snapshot tables, stats and encoded blob as indented JSON.
func JSON(s *snapshot.Snapshot) ([]byte, error) {
	d, e := document(s)
	if e != nil {
		return nil, e
	}

	content, e := json.MarshalIndent(d, "", "  ")
	if e != nil {
		return nil, e
	}
	return append(content, '\n'), nil
}

// YAML renders snapshot tables, stats and encoded blob as YAML.
func YAML(s *snapshot.Snapshot) ([]byte, error) {
	d, e := document(s)
	if e != nil {
		return nil, e
	}

	var buffer bytes.Buffer
	enc := yaml.NewEncoder(&buffer)
	enc.SetIndent(2)
	if e = enc.Encode(d); e != nil {
		return nil, e
	}
	if e = enc.Close(); e != nil {
		return nil, e
	}
	return buffer.Bytes(), nil
}

// Go renders Go source file defining encoded blob, string table, and a function decoding them.
func Go(s *snapshot.Snapshot, opts Options) ([]byte, error) {
	if !identRe.MatchString(opts.Package) {
		return nil, fmt.Errorf("invalid package name: %q", opts.Package)
	}
	if !identRe.MatchString(opts.Var) {
		return nil, fmt.Errorf("invalid variable name: %q", opts.Var)
	}

	blob, e := snapshot.Encode(s)
	if e != nil {
		return nil, e
	}

	imp := importPath
	if opts.ShortImport {
		imp = "packrat/snapshot"
	}
	exported := strings.ToUpper(opts.Var[:1]) + opts.Var[1:]
	name := strings.ToLower(opts.Var[:1]) + opts.Var[1:]

	var buffer bytes.Buffer
	fmt.Fprintf(&buffer, "// Code generated with packratgen. DO NOT EDIT.\n\n"+
		"package %s\n\n"+
		"import %q\n\n", opts.Package, imp)

	fmt.Fprintf(&buffer, "// %sBlob holds encoded snapshot, %s\n", name, s.Stats())
	fmt.Fprintf(&buffer, "var %sBlob = []byte{", name)
	for i, b := range blob {
		if i%16 == 0 {
			buffer.WriteString("\n\t")
		} else {
			buffer.WriteString(" ")
		}
		fmt.Fprintf(&buffer, "0x%02x,", b)
	}
	buffer.WriteString("\n}\n\n")

	fmt.Fprintf(&buffer, "var %sStrings = []string{\n", name)
	for _, str := range s.Strings {
		fmt.Fprintf(&buffer, "\t%q,\n", str)
	}
	buffer.WriteString("}\n\n")

	fmt.Fprintf(&buffer, "// %s decodes embedded snapshot.\n"+
		"func %s() (*snapshot.Snapshot, error) {\n"+
		"\treturn snapshot.Decode(%sBlob, %sStrings)\n"+
		"}\n", exported, exported, name, name)

	return format.Source(buffer.Bytes())
}

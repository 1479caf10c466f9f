package main

import (
	"flag"
	"fmt"
	"io"
	"os"

	json "github.com/goccy/go-json"

	sp "github.com/reoring/structpack"
	"github.com/reoring/structpack/yamlschema"
)

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}
	sub := os.Args[1]
	switch sub {
	case "format":
		formatCmd(os.Args[2:])
	case "size":
		sizeCmd(os.Args[2:])
	case "pack":
		packCmd(os.Args[2:])
	case "unpack":
		unpackCmd(os.Args[2:])
	case "describe":
		describeCmd(os.Args[2:])
	default:
		usage()
		os.Exit(2)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, "structpack CLI\n\nUsage:\n  structpack format -schema layout.yaml [-name SCHEMA] [-values v.json]\n  structpack size -schema layout.yaml [-name SCHEMA] [-values v.json]\n  structpack pack -schema layout.yaml [-name SCHEMA] [-in v.json] [-o out.bin]\n  structpack unpack -schema layout.yaml [-name SCHEMA] [-in msg.bin]\n  structpack describe -schema layout.yaml [-name SCHEMA]\n\nNotes:\n  - layout.yaml holds one YAML document per schema; -name defaults to the last one.\n  - pack reads a JSON value tree; unpack writes one.")
}

// loadSchema reads the YAML stream and picks the requested schema.
func loadSchema(path, name string, verbose bool) *sp.Schema {
	f, err := os.Open(path)
	if err != nil {
		fatalf("open schema: %v", err)
	}
	defer f.Close()
	reg, err := yamlschema.Load(f)
	if err != nil {
		fatalf("load schema: %v", err)
	}
	if verbose {
		fmt.Fprintf(os.Stderr, "loaded schemas: %v\n", reg.Names())
	}
	if name == "" {
		s := reg.Last()
		if s == nil {
			fatalf("schema stream %s is empty", path)
		}
		return s
	}
	s, ok := reg.Get(name)
	if !ok {
		fatalf("no schema %q in %s", name, path)
	}
	return s
}

func readValues(path string) any {
	var r io.Reader = os.Stdin
	if path != "" {
		f, err := os.Open(path)
		if err != nil {
			fatalf("open values: %v", err)
		}
		defer f.Close()
		r = f
	}
	b, err := io.ReadAll(r)
	if err != nil {
		fatalf("read values: %v", err)
	}
	var v any
	if err := json.Unmarshal(b, &v); err != nil {
		fatalf("parse values: %v", err)
	}
	return v
}

func formatCmd(args []string) {
	fs := flag.NewFlagSet("format", flag.ExitOnError)
	var schema, name, values string
	var verbose bool
	fs.StringVar(&schema, "schema", "", "YAML schema stream")
	fs.StringVar(&name, "name", "", "schema name, defaults to the last document")
	fs.StringVar(&values, "values", "", "JSON value tree for the live format")
	fs.BoolVar(&verbose, "v", false, "enable verbose logs")
	_ = fs.Parse(args)
	if schema == "" {
		fs.Usage()
		os.Exit(2)
	}
	s := loadSchema(schema, name, verbose)
	var v any
	if values != "" {
		v = readValues(values)
	}
	format, err := s.Format(v)
	if err != nil {
		fatalf("format: %v", err)
	}
	fmt.Println(format)
}

func sizeCmd(args []string) {
	fs := flag.NewFlagSet("size", flag.ExitOnError)
	var schema, name, values string
	var verbose bool
	fs.StringVar(&schema, "schema", "", "YAML schema stream")
	fs.StringVar(&name, "name", "", "schema name, defaults to the last document")
	fs.StringVar(&values, "values", "", "JSON value tree for the live size")
	fs.BoolVar(&verbose, "v", false, "enable verbose logs")
	_ = fs.Parse(args)
	if schema == "" {
		fs.Usage()
		os.Exit(2)
	}
	s := loadSchema(schema, name, verbose)
	var v any
	if values != "" {
		v = readValues(values)
	}
	n, err := s.Size(v)
	if err != nil {
		fatalf("size: %v", err)
	}
	fmt.Println(n)
}

func packCmd(args []string) {
	fs := flag.NewFlagSet("pack", flag.ExitOnError)
	var schema, name, in, out string
	var verbose bool
	fs.StringVar(&schema, "schema", "", "YAML schema stream")
	fs.StringVar(&name, "name", "", "schema name, defaults to the last document")
	fs.StringVar(&in, "in", "", "JSON value tree, stdin when omitted")
	fs.StringVar(&out, "o", "", "output file, stdout when omitted")
	fs.BoolVar(&verbose, "v", false, "enable verbose logs")
	_ = fs.Parse(args)
	if schema == "" {
		fs.Usage()
		os.Exit(2)
	}
	s := loadSchema(schema, name, verbose)
	v := readValues(in)
	b, err := s.Pack(v)
	if err != nil {
		fatalf("pack: %v", err)
	}
	if verbose {
		format, _ := s.Format(v)
		fmt.Fprintf(os.Stderr, "packed %d bytes, format %s\n", len(b), format)
	}
	if out == "" {
		if _, err := os.Stdout.Write(b); err != nil {
			fatalf("write: %v", err)
		}
		return
	}
	if err := os.WriteFile(out, b, 0o644); err != nil {
		fatalf("write %s: %v", out, err)
	}
}

func unpackCmd(args []string) {
	fs := flag.NewFlagSet("unpack", flag.ExitOnError)
	var schema, name, in string
	var verbose bool
	fs.StringVar(&schema, "schema", "", "YAML schema stream")
	fs.StringVar(&name, "name", "", "schema name, defaults to the last document")
	fs.StringVar(&in, "in", "", "input buffer, stdin when omitted")
	fs.BoolVar(&verbose, "v", false, "enable verbose logs")
	_ = fs.Parse(args)
	if schema == "" {
		fs.Usage()
		os.Exit(2)
	}
	s := loadSchema(schema, name, verbose)
	var r io.Reader = os.Stdin
	if in != "" {
		f, err := os.Open(in)
		if err != nil {
			fatalf("open input: %v", err)
		}
		defer f.Close()
		r = f
	}
	b, err := io.ReadAll(r)
	if err != nil {
		fatalf("read input: %v", err)
	}
	v, err := s.Unpack(b)
	if err != nil {
		fatalf("unpack: %v", err)
	}
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		fatalf("encode: %v", err)
	}
}

func describeCmd(args []string) {
	fs := flag.NewFlagSet("describe", flag.ExitOnError)
	var schema, name string
	var verbose bool
	fs.StringVar(&schema, "schema", "", "YAML schema stream")
	fs.StringVar(&name, "name", "", "schema name, defaults to the last document")
	fs.BoolVar(&verbose, "v", false, "enable verbose logs")
	_ = fs.Parse(args)
	if schema == "" {
		fs.Usage()
		os.Exit(2)
	}
	s := loadSchema(schema, name, verbose)
	b, err := s.Descriptor()
	if err != nil {
		fatalf("describe: %v", err)
	}
	var pretty any
	if err := json.Unmarshal(b, &pretty); err == nil {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		_ = enc.Encode(pretty)
		return
	}
	fmt.Println(string(b))
}

func fatalf(format string, a ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", a...)
	os.Exit(1)
}

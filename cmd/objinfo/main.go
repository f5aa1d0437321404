// Command objinfo is a small subcommand-driven CLI over the objfile
// registry: read a file through whichever backend recognizes it, then
// print its sections, symbols, relocations or imports.
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/xyproto/objfile"
	"github.com/xyproto/objfile/backendset"
)

const versionString = "objinfo 1.0.0"

func main() {
	verbose := flag.Bool("v", false, "verbose diagnostics")
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "usage: objinfo [-v] <command> <file>\n\ncommands:\n")
		fmt.Fprintf(os.Stderr, "  sections   list sections\n")
		fmt.Fprintf(os.Stderr, "  symbols    list symbols\n")
		fmt.Fprintf(os.Stderr, "  imports    list imported modules and functions\n")
		fmt.Fprintf(os.Stderr, "  relocs     list relocations\n")
		fmt.Fprintf(os.Stderr, "  targets    list registered backend names\n")
	}
	flag.Parse()

	objfile.Verbose = *verbose || objfile.VerboseFromEnv()

	args := flag.Args()
	if len(args) == 0 {
		flag.Usage()
		os.Exit(1)
	}

	r := objfile.NewRegistry(objfile.MaxBackendsFromEnv())
	r.Init(backendset.All)

	cmd := args[0]
	if cmd == "targets" {
		cmdTargets(r)
		return
	}

	if len(args) < 2 {
		fmt.Fprintf(os.Stderr, "usage: objinfo %s <file>\n", cmd)
		os.Exit(1)
	}
	path := args[1]

	obj, err := r.Read(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "objinfo: %v\n", err)
		os.Exit(1)
	}

	switch cmd {
	case "sections":
		cmdSections(obj)
	case "symbols":
		cmdSymbols(obj)
	case "imports":
		cmdImports(obj)
	case "relocs":
		cmdRelocs(obj)
	case "version", "--version":
		fmt.Println(versionString)
	default:
		fmt.Fprintf(os.Stderr, "objinfo: unknown command %q\n", cmd)
		flag.Usage()
		os.Exit(1)
	}
}

func cmdTargets(r *objfile.Registry) {
	for name := r.FirstTarget(); name != ""; name = r.NextTarget() {
		fmt.Println(name)
	}
}

func cmdSections(obj *objfile.Object) {
	fmt.Printf("%-16s %-8s %10s %10s %s\n", "name", "type", "size", "address", "flags")
	for s := obj.FirstSection(); s != nil; s = obj.NextSection() {
		fmt.Printf("%-16s %-8s %10d %#10x %s\n", s.Name, s.Type, s.Size, s.Address, sectionFlagString(s.Flags))
	}
}

func sectionFlagString(f objfile.SectionFlag) string {
	out := ""
	if f&objfile.SectionFlagAlloc != 0 {
		out += "A"
	}
	if f&objfile.SectionFlagWrite != 0 {
		out += "W"
	}
	if f&objfile.SectionFlagExec != 0 {
		out += "X"
	}
	if out == "" {
		return "-"
	}
	return out
}

func cmdSymbols(obj *objfile.Object) {
	fmt.Printf("%-24s %10s %-10s %10s\n", "name", "value", "type", "size")
	for s := obj.FirstSymbol(); s != nil; s = obj.NextSymbol() {
		fmt.Printf("%-24s %#10x %-10s %10d\n", s.Name, s.Val, s.Type, s.Size)
	}
}

func cmdImports(obj *objfile.Object) {
	for mod := obj.FirstImportModule(); mod != nil; mod = obj.NextImportModule() {
		fmt.Println(mod.Name)
		for s := mod.FirstSymbol(); s != nil; s = mod.NextSymbol() {
			fmt.Printf("  %s\n", s.Name)
		}
	}
}

func cmdRelocs(obj *objfile.Object) {
	fmt.Printf("%-10s %-14s %-24s %s\n", "offset", "type", "symbol", "addend")
	for r := obj.FirstReloc(); r != nil; r = obj.NextReloc() {
		name := ""
		if r.Symbol != nil {
			name = r.Symbol.Name
		}
		fmt.Printf("%#10x %-14s %-24s %d\n", r.Offset, objfile.LookupRelocType(r.Type), name, r.Addend)
	}
}

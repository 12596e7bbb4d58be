// Command ember is the CLI entry point: an interactive REPL, a file
// runner, and a compile-to-bytecode mode, wired to pkg/vm and
// pkg/compiler exactly as the core's external-interface contract
// describes it.
package main

import (
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/chzyer/readline"

	"github.com/emberlang/ember/pkg/bytecode"
	"github.com/emberlang/ember/pkg/compiler"
	"github.com/emberlang/ember/pkg/value"
	"github.com/emberlang/ember/pkg/vm"
)

const version = "0.1.0"

// traceEnabled reports whether per-instruction VM trace logging was
// requested via --trace or the EMBER_TRACE environment variable.
func traceEnabled(args []string) ([]string, bool) {
	trace := false
	if on, err := strconv.ParseBool(os.Getenv("EMBER_TRACE")); err == nil {
		trace = on
	}
	fs := flag.NewFlagSet("ember", flag.ContinueOnError)
	fs.BoolVar(&trace, "trace", trace, "log each executed instruction at debug level")
	fs.SetOutput(io.Discard)
	if err := fs.Parse(args); err != nil {
		return args, trace
	}
	return fs.Args(), trace
}

func main() {
	args, trace := traceEnabled(os.Args[1:])

	switch len(args) {
	case 0:
		runREPL(trace)
	case 1:
		switch args[0] {
		case "version", "-v", "--version":
			fmt.Println("ember version " + version)
		case "help", "-h", "--help":
			printUsage()
		default:
			os.Exit(exitCode(runFile(args[0], trace)))
		}
	case 2:
		switch args[0] {
		case "compile":
			compileFile(args[1], "")
		case "disassemble", "disasm":
			disassembleFile(args[1])
		default:
			printUsageAndExit()
		}
	case 3:
		if args[0] == "compile" {
			compileFile(args[1], args[2])
			return
		}
		printUsageAndExit()
	default:
		printUsageAndExit()
	}
}

func printUsage() {
	fmt.Println("ember - a small dynamically-typed scripting language")
	fmt.Println()
	fmt.Println("Usage:")
	fmt.Println("  ember                       Start interactive REPL")
	fmt.Println("  ember <file>                Run a .ember source file or .emb bytecode file")
	fmt.Println("  ember compile <in> [out]    Compile a .ember file to .emb bytecode")
	fmt.Println("  ember disassemble <file>    Print raw opcode mnemonics for a .emb file")
	fmt.Println("  ember version               Show version")
	fmt.Println("  ember help                  Show this help")
	fmt.Println()
	fmt.Println("Flags:")
	fmt.Println("  --trace                     Log each executed instruction (or set EMBER_TRACE=1)")
}

func printUsageAndExit() {
	printUsage()
	os.Exit(2)
}

// exitCode maps a vm.Result to the process exit status the external
// interface contract pins: 0 OK, 65 COMPILE_ERR, 70 RUNTIME_ERR.
func exitCode(r vm.Result) int {
	switch r {
	case vm.CompileErr:
		return 65
	case vm.RuntimeErr:
		return 70
	default:
		return 0
	}
}

func runFile(filename string, trace bool) vm.Result {
	strs := value.NewStrings()
	v := vm.New(strs)
	v.SetTrace(trace)

	if filepath.Ext(filename) == ".emb" {
		f, err := os.Open(filename)
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			return vm.RuntimeErr
		}
		defer f.Close()
		fn, err := value.Decode(f, strs)
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			return vm.RuntimeErr
		}
		return v.Run(fn)
	}

	source, err := os.ReadFile(filename)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return vm.RuntimeErr
	}
	return v.Interpret(string(source))
}

func compileFile(inputFile, outputFile string) {
	source, err := os.ReadFile(inputFile)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	strs := value.NewStrings()
	fn, errs := compiler.New(string(source), strs).Compile()
	if errs != nil {
		for _, e := range errs.Errors {
			fmt.Fprintln(os.Stderr, e)
		}
		os.Exit(65)
	}

	if outputFile == "" {
		outputFile = inputFile[:len(inputFile)-len(filepath.Ext(inputFile))] + ".emb"
	}
	out, err := os.Create(outputFile)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	defer out.Close()

	if err := value.Encode(out, fn); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// disassembleFile prints each instruction's offset, source line, and
// mnemonic for a compiled .emb file. No operand decoding or interactive
// stepping — that remains out of scope per the core spec's external
// collaborators; this is a flat, non-interactive listing only.
func disassembleFile(filename string) {
	f, err := os.Open(filename)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	defer f.Close()

	fn, err := value.Decode(f, value.NewStrings())
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	disassembleFunction(fn)
}

func disassembleFunction(fn *value.ObjFunction) {
	name := "<script>"
	if fn.Name != nil {
		name = fn.Name.String()
	}
	fmt.Printf("== %s ==\n", name)
	chunk := fn.Chunk
	for offset := 0; offset < len(chunk.Code); {
		op := bytecode.Op(chunk.Code[offset])
		fmt.Printf("%04d %4d %s\n", offset, chunk.Lines[offset], op)
		switch op {
		case bytecode.OpConstant, bytecode.OpGetLocal, bytecode.OpSetLocal,
			bytecode.OpGetGlobal, bytecode.OpDefineGlobal, bytecode.OpSetGlobal,
			bytecode.OpCall:
			offset += 2
		case bytecode.OpJump, bytecode.OpJumpIfFalse, bytecode.OpLoop:
			offset += 3
		default:
			offset++
		}
	}
	for _, c := range chunk.Constants {
		if c.IsFunction() {
			disassembleFunction(c.AsFunction())
		}
	}
}

// runREPL runs one interpret call per accumulated statement against a
// persistent VM, using chzyer/readline for history and line editing.
// Input is buffered across lines while parenthesis/brace nesting is
// unbalanced, so a multi-line `if`/`while`/`fun` body can be typed the
// way it would be in a source file instead of failing on every newline.
func runREPL(trace bool) {
	rl, err := readline.New("ember> ")
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	defer rl.Close()

	strs := value.NewStrings()
	v := vm.New(strs)
	v.SetTrace(trace)

	var pending strings.Builder
	depth := 0

	for {
		prompt := "ember> "
		if pending.Len() > 0 {
			prompt = "   ...> "
		}
		rl.SetPrompt(prompt)

		line, err := rl.Readline()
		if err == readline.ErrInterrupt {
			pending.Reset()
			depth = 0
			continue
		}
		if err == io.EOF {
			return
		}
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			return
		}

		depth += bracketDelta(line)
		pending.WriteString(line)
		pending.WriteByte('\n')

		if depth > 0 {
			continue
		}

		source := pending.String()
		pending.Reset()
		depth = 0
		if strings.TrimSpace(source) == "" {
			continue
		}
		v.Interpret(source)
	}
}

func bracketDelta(line string) int {
	delta := 0
	for _, r := range line {
		switch r {
		case '{', '(':
			delta++
		case '}', ')':
			delta--
		}
	}
	return delta
}

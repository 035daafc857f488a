package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strconv"

	"github.com/tinyrange/execmem/internal/asm/amd64"
	"github.com/tinyrange/execmem/internal/manifest"
	"github.com/tinyrange/execmem/internal/runner"
	"golang.org/x/term"
)

// mov rax, 3. The region's fill byte supplies the ret.
var demoCode = []byte{0x48, 0xC7, 0xC0, 0x03, 0x00, 0x00, 0x00}

var errExpectation = errors.New("expectation failed")

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "execmem: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	hexCode := flag.String("hex", "", "Machine code to run, as hex (e.g. \"48c7c003000000c3\")")
	literal := flag.String("return", "", "Run generated code that returns this literal")
	typeName := flag.String("type", "int64", "Return type to read the result as")
	size := flag.Int("size", 4096, "Region size in bytes (multiple of the page size)")
	repeat := flag.Int("repeat", 1, "Number of times to invoke the code")
	manifestPath := flag.String("manifest", "", "YAML manifest of programs to run")
	debug := flag.Bool("debug", false, "Enable debug logging")
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: %s [flags]\n\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "Copy machine code into executable memory and call it.\n")
		fmt.Fprintf(os.Stderr, "With no flags, runs mov rax, 3 and prints the result.\n\n")
		fmt.Fprintf(os.Stderr, "Examples:\n")
		fmt.Fprintf(os.Stderr, "  %s -hex 48c7c02a000000c3\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "  %s -return 2.5 -type float64\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "  %s -manifest programs.yaml\n\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "Return types: %v\n\n", runner.ReturnTypes())
		fmt.Fprintf(os.Stderr, "Flags:\n")
		flag.PrintDefaults()
	}
	flag.Parse()

	if flag.NArg() > 0 {
		flag.Usage()
		return fmt.Errorf("unexpected arguments: %v", flag.Args())
	}

	level := slog.LevelInfo
	if *debug {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	opts := runner.Options{Repeat: *repeat}
	if term.IsTerminal(int(os.Stderr.Fd())) {
		opts.Progress = os.Stderr
	}

	if *manifestPath != "" {
		if *hexCode != "" || *literal != "" {
			return fmt.Errorf("-manifest cannot be combined with -hex or -return")
		}
		progs, err := manifest.Load(*manifestPath)
		if err != nil {
			return err
		}
		slog.Info("Running manifest", "path", *manifestPath, "programs", len(progs))
		return runAll(ctx, os.Stdout, progs, opts, terminalWidth())
	}

	prog, err := buildProgram(*hexCode, *literal, *typeName, *size)
	if err != nil {
		return err
	}

	res, err := runner.Run(ctx, prog, opts)
	if err != nil {
		return err
	}
	if *repeat > 1 {
		slog.Info("Invocations complete", "count", res.Invocations, "per_call", res.PerCall())
	}
	fmt.Println(res.Value)
	return nil
}

// buildProgram turns the single-program flags into a runner.Program. With
// neither -hex nor -return it yields the built-in demonstration.
func buildProgram(hexCode, literal, typeName string, size int) (runner.Program, error) {
	rt, err := runner.ParseReturnType(typeName)
	if err != nil {
		return runner.Program{}, err
	}

	prog := runner.Program{Size: size, Returns: rt}
	switch {
	case hexCode != "" && literal != "":
		return runner.Program{}, fmt.Errorf("-hex and -return are mutually exclusive")
	case hexCode != "":
		code, err := amd64.ParseHex(hexCode)
		if err != nil {
			return runner.Program{}, fmt.Errorf("parse -hex: %w", err)
		}
		prog.Name, prog.Code = "hex", code
	case literal != "":
		code, err := encodeLiteral(literal, rt)
		if err != nil {
			return runner.Program{}, err
		}
		prog.Name, prog.Code = "return", code
	default:
		prog.Name, prog.Code = "demo", demoCode
	}
	return prog, nil
}

func encodeLiteral(literal string, rt runner.ReturnType) ([]byte, error) {
	switch rt {
	case runner.Float64:
		v, err := strconv.ParseFloat(literal, 64)
		if err != nil {
			return nil, fmt.Errorf("parse -return: %w", err)
		}
		return amd64.ReturnFloat64(v), nil
	case runner.Float32:
		v, err := strconv.ParseFloat(literal, 32)
		if err != nil {
			return nil, fmt.Errorf("parse -return: %w", err)
		}
		return amd64.ReturnFloat32(float32(v)), nil
	case runner.Bool:
		v, err := strconv.ParseBool(literal)
		if err != nil {
			return nil, fmt.Errorf("parse -return: %w", err)
		}
		if v {
			return amd64.Return(1), nil
		}
		return amd64.Return(0), nil
	}

	switch rt {
	case runner.Int32, runner.Int16, runner.Int8:
		v, err := strconv.ParseInt(literal, 0, intBits[rt])
		if err != nil {
			return nil, fmt.Errorf("parse -return as %s: %w", rt, err)
		}
		return amd64.Return(v), nil
	case runner.Uint64, runner.Uintptr, runner.Uint32, runner.Uint16, runner.Uint8:
		u, err := strconv.ParseUint(literal, 0, intBits[rt])
		if err != nil {
			return nil, fmt.Errorf("parse -return as %s: %w", rt, err)
		}
		return amd64.Return(int64(u)), nil
	}

	// int64 also takes unsigned literals up to 1<<64-1 as their bit pattern.
	if v, err := strconv.ParseInt(literal, 0, 64); err == nil {
		return amd64.Return(v), nil
	}
	u, err := strconv.ParseUint(literal, 0, 64)
	if err != nil {
		return nil, fmt.Errorf("parse -return: %w", err)
	}
	return amd64.Return(int64(u)), nil
}

var intBits = map[runner.ReturnType]int{
	runner.Int32: 32, runner.Int16: 16, runner.Int8: 8,
	runner.Uint64: 64, runner.Uintptr: 64, runner.Uint32: 32, runner.Uint16: 16, runner.Uint8: 8,
}

func runAll(ctx context.Context, w io.Writer, progs []runner.Program, opts runner.Options, width int) error {
	results := make([]runner.Result, 0, len(progs))
	failed := 0
	for _, prog := range progs {
		res, err := runner.Run(ctx, prog, opts)
		if err != nil {
			writeTable(w, results, width)
			return err
		}
		if !res.Passed() {
			failed++
		}
		results = append(results, res)
	}

	writeTable(w, results, width)

	if failed > 0 {
		return fmt.Errorf("%w: %d of %d programs", errExpectation, failed, len(results))
	}
	return nil
}

func terminalWidth() int {
	fd := int(os.Stdout.Fd())
	if !term.IsTerminal(fd) {
		return 0
	}
	w, _, err := term.GetSize(fd)
	if err != nil {
		return 0
	}
	return w
}

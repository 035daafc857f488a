package main

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/tinyrange/execmem/internal/asm/amd64"
	"github.com/tinyrange/execmem/internal/runner"
)

func TestBuildProgramDefaultIsDemo(t *testing.T) {
	prog, err := buildProgram("", "", "int64", 4096)
	if err != nil {
		t.Fatalf("buildProgram: %v", err)
	}
	if prog.Name != "demo" || prog.Size != 4096 || prog.Returns != runner.Int64 {
		t.Fatalf("prog = %+v", prog)
	}
	if !bytes.Equal(prog.Code, []byte{0x48, 0xC7, 0xC0, 0x03, 0x00, 0x00, 0x00}) {
		t.Fatalf("demo code = % x", prog.Code)
	}
}

func TestBuildProgram(t *testing.T) {
	prog, err := buildProgram("48 31 c0 c3", "", "u64", 8192)
	if err != nil {
		t.Fatalf("buildProgram: %v", err)
	}
	if prog.Name != "hex" || prog.Returns != runner.Uint64 || !bytes.Equal(prog.Code, []byte{0x48, 0x31, 0xC0, 0xC3}) {
		t.Fatalf("prog = %+v", prog)
	}

	prog, err = buildProgram("", "0xff", "int64", 4096)
	if err != nil {
		t.Fatalf("buildProgram: %v", err)
	}
	if !bytes.Equal(prog.Code, amd64.Return(255)) {
		t.Fatalf("-return 0xff code = % x", prog.Code)
	}

	for _, tt := range []struct{ hex, lit, typ string }{
		{"c3", "1", "int64"},
		{"zz", "", "int64"},
		{"", "abc", "int64"},
		{"", "", "string"},
		{"", "x", "float64"},
		{"", "300", "uint8"},
		{"", "128", "int8"},
	} {
		if _, err := buildProgram(tt.hex, tt.lit, tt.typ, 4096); err == nil {
			t.Errorf("buildProgram(%q, %q, %q) succeeded, want error", tt.hex, tt.lit, tt.typ)
		}
	}
}

func TestEncodeLiteral(t *testing.T) {
	tests := []struct {
		lit  string
		rt   runner.ReturnType
		want []byte
	}{
		{"3", runner.Int64, amd64.Return(3)},
		{"-1", runner.Int32, amd64.Return(-1)},
		{"18446744073709551615", runner.Uint64, amd64.Return(-1)},
		{"2.5", runner.Float64, amd64.ReturnFloat64(2.5)},
		{"0.5", runner.Float32, amd64.ReturnFloat32(0.5)},
		{"true", runner.Bool, amd64.Return(1)},
		{"false", runner.Bool, amd64.Return(0)},
		{"255", runner.Uint8, amd64.Return(255)},
		{"-128", runner.Int8, amd64.Return(-128)},
		{"65535", runner.Uint16, amd64.Return(65535)},
		{"0xffffffff", runner.Uint32, amd64.Return(0xffffffff)},
	}
	for _, tt := range tests {
		got, err := encodeLiteral(tt.lit, tt.rt)
		if err != nil {
			t.Fatalf("encodeLiteral(%q, %s): %v", tt.lit, tt.rt, err)
		}
		if !bytes.Equal(got, tt.want) {
			t.Errorf("encodeLiteral(%q, %s) = % x, want % x", tt.lit, tt.rt, got, tt.want)
		}
	}
}

func TestWriteTable(t *testing.T) {
	results := []runner.Result{
		{Name: "three", Returns: runner.Int64, Value: "3", Expect: "3", HasExpect: true, Invocations: 1, Elapsed: time.Microsecond},
		{Name: "wrong", Returns: runner.Int64, Value: "4", Expect: "5", HasExpect: true, Invocations: 1},
		{Name: "free", Returns: runner.Float64, Value: "2.5"},
	}

	var buf bytes.Buffer
	writeTable(&buf, results, 0)
	lines := strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")
	if len(lines) != 4 {
		t.Fatalf("got %d lines, want 4:\n%s", len(lines), buf.String())
	}
	if !strings.HasPrefix(lines[0], "NAME") || !strings.Contains(lines[0], "PER CALL") {
		t.Errorf("header = %q", lines[0])
	}
	if !strings.Contains(lines[1], "ok") || !strings.Contains(lines[1], "1µs") {
		t.Errorf("row 1 = %q", lines[1])
	}
	if !strings.Contains(lines[2], "FAIL") {
		t.Errorf("row 2 = %q", lines[2])
	}
	if !strings.Contains(lines[3], "2.5") || !strings.Contains(lines[3], "-") {
		t.Errorf("row 3 = %q", lines[3])
	}

	// Columns line up: STATUS starts at the same offset on every line.
	col := strings.Index(lines[0], "STATUS")
	if strings.Index(lines[1], "ok") != col || strings.Index(lines[2], "FAIL") != col {
		t.Errorf("STATUS column misaligned:\n%s", buf.String())
	}
}

func TestWriteTableTruncatesValue(t *testing.T) {
	results := []runner.Result{
		{Name: "big", Returns: runner.Uint64, Value: "18446744073709551615"},
	}

	var buf bytes.Buffer
	writeTable(&buf, results, 40)
	if !strings.Contains(buf.String(), "…") {
		t.Fatalf("value not truncated:\n%s", buf.String())
	}
	if strings.Contains(buf.String(), "18446744073709551615") {
		t.Fatalf("full value still present:\n%s", buf.String())
	}
}

func TestEncodeLiteralOutOfRange(t *testing.T) {
	tests := []struct {
		lit string
		rt  runner.ReturnType
	}{
		{"300", runner.Uint8},
		{"256", runner.Uint8},
		{"-1", runner.Uint8},
		{"128", runner.Int8},
		{"-129", runner.Int8},
		{"65536", runner.Uint16},
		{"-32769", runner.Int16},
		{"0x100000000", runner.Uint32},
		{"2147483648", runner.Int32},
		{"-1", runner.Uint64},
	}
	for _, tt := range tests {
		if got, err := encodeLiteral(tt.lit, tt.rt); err == nil {
			t.Errorf("encodeLiteral(%q, %s) = % x, want error", tt.lit, tt.rt, got)
		}
	}
}

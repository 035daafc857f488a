//go:build linux && amd64

package runner

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/tinyrange/execmem/internal/asm/amd64"
	"github.com/tinyrange/execmem/internal/execmem"
)

func TestRunReferenceDemo(t *testing.T) {
	res, err := Run(context.Background(), Program{
		Name:      "demo",
		Size:      4096,
		Code:      []byte{0x48, 0xC7, 0xC0, 0x03, 0x00, 0x00, 0x00},
		Returns:   Int64,
		Expect:    "3",
		HasExpect: true,
	}, Options{})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.Value != "3" || !res.Passed() || res.Invocations != 1 {
		t.Fatalf("Run = %+v", res)
	}
}

func TestRunRepeatWithProgress(t *testing.T) {
	var progress bytes.Buffer
	res, err := Run(context.Background(), Program{
		Name:    "float",
		Code:    amd64.ReturnFloat64(0.5),
		Returns: Float64,
	}, Options{Repeat: 50, Progress: &progress})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.Value != "0.5" {
		t.Fatalf("Value = %q, want 0.5", res.Value)
	}
	if res.Invocations != 50 {
		t.Fatalf("Invocations = %d, want 50", res.Invocations)
	}
	if progress.Len() == 0 {
		t.Fatal("no progress output for a repeated run")
	}
}

func TestRunDefaultsToInt64(t *testing.T) {
	res, err := Run(context.Background(), Program{Name: "neg", Code: amd64.Return(-7)}, Options{})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.Returns != Int64 || res.Value != "-7" {
		t.Fatalf("Run = %+v", res)
	}
}

func TestRunStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	res, err := Run(ctx, Program{Name: "ret", Code: amd64.Return(1)}, Options{Repeat: 10})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("Run err = %v, want context.Canceled", err)
	}
	if res.Invocations != 0 {
		t.Fatalf("Invocations = %d after cancellation, want 0", res.Invocations)
	}
}

func TestRunReportsRegionErrors(t *testing.T) {
	_, err := Run(context.Background(), Program{Name: "odd", Size: 100, Code: amd64.Ret()}, Options{})
	if !errors.Is(err, execmem.ErrInvalidSize) {
		t.Fatalf("Run err = %v, want ErrInvalidSize", err)
	}

	big := make([]byte, execmem.PageSize()+1)
	_, err = Run(context.Background(), Program{Name: "big", Code: big}, Options{})
	if !errors.Is(err, execmem.ErrCodeTooLarge) {
		t.Fatalf("Run err = %v, want ErrCodeTooLarge", err)
	}

	_, err = Run(context.Background(), Program{Name: "str", Code: amd64.Ret(), Returns: "string"}, Options{})
	if err == nil {
		t.Fatal("Run with unsupported return type succeeded")
	}
}

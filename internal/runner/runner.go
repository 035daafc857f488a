// Package runner loads a program into a fresh executable region, calls it
// and checks the result.
package runner

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/schollz/progressbar/v3"
	"github.com/tinyrange/execmem/internal/execmem"
)

// Program is machine code plus how to call it.
type Program struct {
	Name string
	// Size of the region in bytes. Zero means one page.
	Size    int
	Code    []byte
	Returns ReturnType
	// Expect is compared against the formatted result when HasExpect is set.
	Expect    string
	HasExpect bool
}

type Options struct {
	// Repeat is the number of invocations. Values below one mean one.
	Repeat int
	// Progress receives a progress bar for repeated runs. Nil disables it.
	Progress io.Writer
}

type Result struct {
	Name        string
	Returns     ReturnType
	Value       string
	Expect      string
	HasExpect   bool
	Invocations int
	Elapsed     time.Duration
}

// Passed reports whether the value matched the expectation. A program with
// no expectation always passes.
func (r Result) Passed() bool {
	return !r.HasExpect || matches(r.Returns, r.Value, r.Expect)
}

// PerCall returns the mean time of one invocation.
func (r Result) PerCall() time.Duration {
	if r.Invocations == 0 {
		return 0
	}
	return r.Elapsed / time.Duration(r.Invocations)
}

// Run allocates a region for prog, writes its code and invokes it. The region
// is released before Run returns. ctx is only checked between invocations;
// a running invocation cannot be interrupted.
func Run(ctx context.Context, prog Program, opts Options) (res Result, err error) {
	rt := prog.Returns
	if rt == "" {
		rt = Int64
	}
	invoke, ok := invokers[rt]
	if !ok {
		return Result{}, fmt.Errorf("program %q: unsupported return type %q", prog.Name, rt)
	}

	size := prog.Size
	if size == 0 {
		size = execmem.PageSize()
	}
	repeat := opts.Repeat
	if repeat < 1 {
		repeat = 1
	}

	region, err := execmem.New(size)
	if err != nil {
		return Result{}, fmt.Errorf("program %q: allocate region: %w", prog.Name, err)
	}
	defer func() {
		if cerr := region.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("program %q: release region: %w", prog.Name, cerr)
		}
	}()

	if err := region.Write(prog.Code); err != nil {
		return Result{}, fmt.Errorf("program %q: write code: %w", prog.Name, err)
	}

	slog.Debug("invoking program", "name", prog.Name, "bytes", len(prog.Code), "returns", rt, "repeat", repeat)

	var bar *progressbar.ProgressBar
	if opts.Progress != nil && repeat > 1 {
		bar = progressbar.NewOptions(repeat,
			progressbar.OptionSetWriter(opts.Progress),
			progressbar.OptionSetDescription(prog.Name),
			progressbar.OptionClearOnFinish(),
		)
	}

	res = Result{
		Name:      prog.Name,
		Returns:   rt,
		Expect:    prog.Expect,
		HasExpect: prog.HasExpect,
	}

	start := time.Now()
	for i := 0; i < repeat; i++ {
		if err := ctx.Err(); err != nil {
			res.Elapsed = time.Since(start)
			return res, err
		}
		value, err := invoke(region)
		if err != nil {
			return res, fmt.Errorf("program %q: invoke: %w", prog.Name, err)
		}
		res.Value = value
		res.Invocations++
		if bar != nil {
			_ = bar.Add(1)
		}
	}
	res.Elapsed = time.Since(start)
	if bar != nil {
		_ = bar.Finish()
	}

	return res, nil
}

// matches compares numerically when both sides parse as numbers of the
// result's kind, so "2.50" matches a float result of 2.5 and "0xff" matches
// 255.
func matches(rt ReturnType, value, expect string) bool {
	value = strings.TrimSpace(value)
	expect = strings.TrimSpace(expect)
	if value == expect {
		return true
	}

	switch {
	case rt.IsFloat():
		v, err1 := strconv.ParseFloat(value, 64)
		e, err2 := strconv.ParseFloat(expect, 64)
		return err1 == nil && err2 == nil && v == e
	case rt == Bool:
		v, err1 := strconv.ParseBool(value)
		e, err2 := strconv.ParseBool(expect)
		return err1 == nil && err2 == nil && v == e
	default:
		if v, err := strconv.ParseInt(value, 0, 64); err == nil {
			e, err := strconv.ParseInt(expect, 0, 64)
			return err == nil && v == e
		}
		v, err1 := strconv.ParseUint(value, 0, 64)
		e, err2 := strconv.ParseUint(expect, 0, 64)
		return err1 == nil && err2 == nil && v == e
	}
}

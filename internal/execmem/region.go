// Package execmem provides a single page-aligned block of host memory that is
// readable, writable and executable at the same time, so raw machine code can
// be copied into it and called as a native function.
//
// A Region holds exactly one program starting at offset zero. Nothing in this
// package validates the bytes it is given: invoking a region whose contents
// are not a complete function for the host CPU will crash the process.
package execmem

import (
	"errors"
	"fmt"
	"log/slog"
	"runtime"
	"sync"
)

// FillByte is written over every byte of a new region before any code is
// copied in. On x86 it encodes RET, so executing an unwritten tail returns
// immediately.
const FillByte byte = 0xC3

var (
	ErrInvalidSize  = errors.New("region size must be a positive multiple of the page size")
	ErrCodeTooLarge = errors.New("code does not fit in region")
	ErrClosed       = errors.New("region is closed")
	ErrUnsupported  = fmt.Errorf("executable regions unsupported on %s/%s", runtime.GOOS, runtime.GOARCH)
)

// HostError reports a memory-management call refused by the operating system.
// Err is the host's error code, usually a syscall.Errno.
type HostError struct {
	Op  string
	Err error
}

func (e *HostError) Error() string {
	return e.Op + ": " + e.Err.Error()
}

func (e *HostError) Unwrap() error {
	return e.Err
}

// Result lists the types a region may be invoked as. Integers come back in
// RAX and floating point values in XMM0.
type Result interface {
	~int | ~int8 | ~int16 | ~int32 | ~int64 |
		~uint | ~uint8 | ~uint16 | ~uint32 | ~uint64 | ~uintptr |
		~float32 | ~float64 | ~bool
}

var pageSize = sync.OnceValue(hostPageSize)

// PageSize returns the host's memory page granularity in bytes.
func PageSize() int {
	return pageSize()
}

// Region is an executable memory block owned by a single caller. It is not
// safe for concurrent use: Write must complete before Invoke is called, and
// both must be driven from one goroutine at a time.
type Region struct {
	mem []byte
}

func checkSize(size int) error {
	ps := PageSize()
	if size <= 0 || size%ps != 0 {
		return fmt.Errorf("%w: got %d, page size %d", ErrInvalidSize, size, ps)
	}
	return nil
}

// New allocates a page-aligned region of exactly size bytes with read, write
// and execute permission and fills it with FillByte. size is never rounded.
func New(size int) (*Region, error) {
	if err := checkSize(size); err != nil {
		return nil, err
	}

	mem, err := allocate(size)
	if err != nil {
		return nil, err
	}
	fill(mem, FillByte)

	r := &Region{mem: mem}
	slog.Debug("allocated executable region", "size", size, "entry", fmt.Sprintf("%#x", r.Entry()))
	return r, nil
}

// Size returns the region's size in bytes, or zero once closed.
func (r *Region) Size() int {
	if r == nil {
		return 0
	}
	return len(r.mem)
}

// Entry returns the address execution starts at, or zero once closed.
func (r *Region) Entry() uintptr {
	if r == nil || len(r.mem) == 0 {
		return 0
	}
	return entryOf(r.mem)
}

// Closed reports whether Close has been called. A nil region is closed.
func (r *Region) Closed() bool {
	return r == nil || r.mem == nil
}

// Snapshot returns a copy of the region's current contents.
func (r *Region) Snapshot() []byte {
	if r == nil {
		return nil
	}
	return append([]byte(nil), r.mem...)
}

// Write copies code to the start of the region. Bytes past len(code) keep
// their previous value. The region is left untouched when code is larger
// than the region.
func (r *Region) Write(code []byte) error {
	if r.Closed() {
		return ErrClosed
	}
	if len(code) > len(r.mem) {
		return fmt.Errorf("%w: %d bytes into %d-byte region", ErrCodeTooLarge, len(code), len(r.mem))
	}
	copy(r.mem, code)
	return nil
}

// Close restores the region to read-write and returns it to the host. Calling
// Close more than once is a no-op.
func (r *Region) Close() error {
	if r.Closed() {
		return nil
	}
	mem := r.mem
	r.mem = nil
	slog.Debug("releasing executable region", "size", len(mem))
	return release(mem)
}

// Invoke calls the code at the start of r as a function taking no arguments
// and returning T.
//
// The caller must have written a complete function for the host CPU whose
// result matches T. Invalid code is not detected: it crashes the process or
// produces a meaningless value. Only a closed region is reported.
func Invoke[T Result](r *Region) (T, error) {
	var zero T
	if r.Closed() {
		return zero, ErrClosed
	}
	return call[T](r.Entry()), nil
}

func fill(mem []byte, value byte) {
	for i := range mem {
		mem[i] = value
	}
}

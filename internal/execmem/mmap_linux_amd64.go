//go:build linux && amd64

package execmem

import (
	"errors"
	"unsafe"

	"github.com/ebitengine/purego"
	"golang.org/x/sys/unix"
)

const (
	protRWX = unix.PROT_READ | unix.PROT_WRITE | unix.PROT_EXEC
	protRW  = unix.PROT_READ | unix.PROT_WRITE
)

func hostPageSize() int {
	return unix.Getpagesize()
}

// allocate maps size bytes of anonymous memory and switches it to RWX. An
// anonymous mapping always starts on a page boundary.
func allocate(size int) ([]byte, error) {
	mem, err := unix.Mmap(-1, 0, size, protRW, unix.MAP_PRIVATE|unix.MAP_ANON)
	if err != nil {
		return nil, &HostError{Op: "mmap executable region", Err: err}
	}

	if err := unix.Mprotect(mem, protRWX); err != nil {
		_ = unix.Munmap(mem)
		return nil, &HostError{Op: "mprotect executable region", Err: err}
	}

	return mem, nil
}

func release(mem []byte) error {
	var errs []error
	if err := unix.Mprotect(mem, protRW); err != nil {
		errs = append(errs, &HostError{Op: "mprotect region read-write", Err: err})
	}
	if err := unix.Munmap(mem); err != nil {
		errs = append(errs, &HostError{Op: "munmap executable region", Err: err})
	}
	return errors.Join(errs...)
}

func entryOf(mem []byte) uintptr {
	return uintptr(unsafe.Pointer(&mem[0]))
}

// call is the only place an address becomes a Go func. purego follows the
// System V AMD64 convention, so the result is read from RAX or XMM0.
func call[T Result](entry uintptr) T {
	var fn func() T
	purego.RegisterFunc(&fn, entry)
	return fn()
}

// Protection reports the permissions the kernel currently enforces across
// the whole region.
func (r *Region) Protection() (Perm, error) {
	if r.Closed() {
		return Perm{}, ErrClosed
	}

	maps, err := selfMaps()
	if err != nil {
		return Perm{}, err
	}
	start := r.Entry()
	return coveringPerm(maps, start, start+uintptr(len(r.mem)))
}

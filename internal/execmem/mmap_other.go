//go:build !(linux && amd64)

package execmem

import "os"

func hostPageSize() int {
	return os.Getpagesize()
}

func allocate(size int) ([]byte, error) {
	return nil, ErrUnsupported
}

func release(mem []byte) error {
	return ErrUnsupported
}

func entryOf(mem []byte) uintptr {
	return 0
}

func call[T Result](entry uintptr) T {
	panic(ErrUnsupported)
}

func (r *Region) Protection() (Perm, error) {
	return Perm{}, ErrUnsupported
}

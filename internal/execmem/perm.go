package execmem

// Perm is the access the kernel grants on a memory range.
type Perm struct {
	Read  bool
	Write bool
	Exec  bool
}

func (p Perm) String() string {
	b := []byte("---")
	if p.Read {
		b[0] = 'r'
	}
	if p.Write {
		b[1] = 'w'
	}
	if p.Exec {
		b[2] = 'x'
	}
	return string(b)
}

// RWX reports whether the range is readable, writable and executable.
func (p Perm) RWX() bool {
	return p.Read && p.Write && p.Exec
}

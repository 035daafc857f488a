//go:build linux

package execmem

import (
	"fmt"

	"github.com/prometheus/procfs"
)

// selfMaps lists the calling process's mappings in address order.
func selfMaps() ([]*procfs.ProcMap, error) {
	p, err := procfs.Self()
	if err != nil {
		return nil, fmt.Errorf("open own procfs entry: %w", err)
	}
	maps, err := p.ProcMaps()
	if err != nil {
		return nil, fmt.Errorf("read memory map: %w", err)
	}
	return maps, nil
}

// coveringPerm returns the permissions shared by every mapping overlapping
// [lo, hi). The kernel may merge the region with a neighbour of identical
// protection, so a single mapping can cover more than the range.
func coveringPerm(maps []*procfs.ProcMap, lo, hi uintptr) (Perm, error) {
	perm := Perm{Read: true, Write: true, Exec: true}
	covered := lo

	for _, m := range maps {
		if m.EndAddr <= lo || m.StartAddr >= hi {
			continue
		}
		if m.StartAddr > covered {
			return Perm{}, fmt.Errorf("range %#x-%#x not mapped at %#x", lo, hi, covered)
		}
		if m.Perms == nil {
			return Perm{}, fmt.Errorf("mapping %#x-%#x has no permissions", m.StartAddr, m.EndAddr)
		}
		perm.Read = perm.Read && m.Perms.Read
		perm.Write = perm.Write && m.Perms.Write
		perm.Exec = perm.Exec && m.Perms.Execute
		covered = m.EndAddr
		if covered >= hi {
			return perm, nil
		}
	}
	return Perm{}, fmt.Errorf("range %#x-%#x not mapped at %#x", lo, hi, covered)
}

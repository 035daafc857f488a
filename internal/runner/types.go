package runner

import (
	"fmt"
	"sort"

	"github.com/tinyrange/execmem/internal/execmem"
)

// ReturnType names the Go type a program's result is read as.
type ReturnType string

const (
	Int64   ReturnType = "int64"
	Int32   ReturnType = "int32"
	Int16   ReturnType = "int16"
	Int8    ReturnType = "int8"
	Uint64  ReturnType = "uint64"
	Uint32  ReturnType = "uint32"
	Uint16  ReturnType = "uint16"
	Uint8   ReturnType = "uint8"
	Uintptr ReturnType = "uintptr"
	Float64 ReturnType = "float64"
	Float32 ReturnType = "float32"
	Bool    ReturnType = "bool"
)

type invoker func(*execmem.Region) (string, error)

var invokers = map[ReturnType]invoker{
	Int64:   invokeAs[int64],
	Int32:   invokeAs[int32],
	Int16:   invokeAs[int16],
	Int8:    invokeAs[int8],
	Uint64:  invokeAs[uint64],
	Uint32:  invokeAs[uint32],
	Uint16:  invokeAs[uint16],
	Uint8:   invokeAs[uint8],
	Uintptr: invokeAs[uintptr],
	Float64: invokeAs[float64],
	Float32: invokeAs[float32],
	Bool:    invokeAs[bool],
}

var aliases = map[string]ReturnType{
	"":     Int64,
	"int":  Int64,
	"i64":  Int64,
	"i32":  Int32,
	"u64":  Uint64,
	"u32":  Uint32,
	"uint": Uint64,
	"f64":  Float64,
	"f32":  Float32,
}

func invokeAs[T execmem.Result](r *execmem.Region) (string, error) {
	v, err := execmem.Invoke[T](r)
	if err != nil {
		return "", err
	}
	return fmt.Sprint(v), nil
}

// ParseReturnType resolves a type name, accepting a few short aliases. The
// empty string means int64.
func ParseReturnType(name string) (ReturnType, error) {
	if rt, ok := aliases[name]; ok {
		return rt, nil
	}
	rt := ReturnType(name)
	if _, ok := invokers[rt]; !ok {
		return "", fmt.Errorf("unsupported return type %q (want one of %v)", name, ReturnTypes())
	}
	return rt, nil
}

// ReturnTypes lists the canonical type names in sorted order.
func ReturnTypes() []string {
	out := make([]string, 0, len(invokers))
	for rt := range invokers {
		out = append(out, string(rt))
	}
	sort.Strings(out)
	return out
}

// IsFloat reports whether values of rt come back in XMM0.
func (rt ReturnType) IsFloat() bool {
	return rt == Float64 || rt == Float32
}

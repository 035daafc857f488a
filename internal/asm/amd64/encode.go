// Package amd64 encodes the few x86-64 instructions needed to build small
// "load a value, return" functions for an executable region. It is not an
// assembler: there are no labels, relocations or operand checks beyond the
// register set.
package amd64

import (
	"encoding/binary"
	"math"
)

type Reg uint8

const (
	RAX Reg = iota
	RBX
	RCX
	RDX
	RSI
	RDI
	RSP
	RBP
	R8
	R9
	R10
	R11
	R12
	R13
	R14
	R15
)

type registerCode struct {
	code byte
	high bool
}

func regInfo(r Reg) registerCode {
	switch r {
	case RAX:
		return registerCode{code: 0}
	case RCX:
		return registerCode{code: 1}
	case RDX:
		return registerCode{code: 2}
	case RBX:
		return registerCode{code: 3}
	case RSP:
		return registerCode{code: 4}
	case RBP:
		return registerCode{code: 5}
	case RSI:
		return registerCode{code: 6}
	case RDI:
		return registerCode{code: 7}
	case R8, R9, R10, R11, R12, R13, R14, R15:
		return registerCode{code: byte(r - R8), high: true}
	default:
		panic("amd64: unknown register")
	}
}

func rexPrefix(w, r, x, b bool) byte {
	if !w && !r && !x && !b {
		return 0
	}
	prefix := byte(0x40)
	if w {
		prefix |= 0x08
	}
	if r {
		prefix |= 0x04
	}
	if x {
		prefix |= 0x02
	}
	if b {
		prefix |= 0x01
	}
	return prefix
}

func appendRex(out []byte, w, r, x, b bool) []byte {
	if prefix := rexPrefix(w, r, x, b); prefix != 0 {
		out = append(out, prefix)
	}
	return out
}

// MovImm32 encodes "mov r64, imm32" with the immediate sign-extended to 64
// bits (REX.W C7 /0 id).
func MovImm32(dst Reg, value int32) []byte {
	info := regInfo(dst)
	out := make([]byte, 0, 7)
	out = appendRex(out, true, false, false, info.high)
	out = append(out, 0xC7, 0xC0|info.code)
	return binary.LittleEndian.AppendUint32(out, uint32(value))
}

// MovImm32ZeroExtend encodes "mov r32, imm32", which clears the upper half
// of the 64-bit register.
func MovImm32ZeroExtend(dst Reg, value uint32) []byte {
	info := regInfo(dst)
	out := make([]byte, 0, 6)
	out = appendRex(out, false, false, false, info.high)
	out = append(out, 0xB8+info.code)
	return binary.LittleEndian.AppendUint32(out, value)
}

// MovImm64 encodes "movabs r64, imm64".
func MovImm64(dst Reg, value int64) []byte {
	info := regInfo(dst)
	out := make([]byte, 0, 10)
	out = appendRex(out, true, false, false, info.high)
	out = append(out, 0xB8+info.code)
	return binary.LittleEndian.AppendUint64(out, uint64(value))
}

// XorSelf encodes "xor r64, r64".
func XorSelf(dst Reg) []byte {
	info := regInfo(dst)
	out := make([]byte, 0, 3)
	out = appendRex(out, true, info.high, false, info.high)
	return append(out, 0x31, 0xC0|info.code<<3|info.code)
}

// MovqToXMM0 encodes "movq xmm0, r64".
func MovqToXMM0(src Reg) []byte {
	info := regInfo(src)
	out := []byte{0x66}
	out = appendRex(out, true, false, false, info.high)
	return append(out, 0x0F, 0x6E, 0xC0|info.code)
}

// MovdToXMM0 encodes "movd xmm0, r32".
func MovdToXMM0(src Reg) []byte {
	info := regInfo(src)
	out := []byte{0x66}
	out = appendRex(out, false, false, false, info.high)
	return append(out, 0x0F, 0x6E, 0xC0|info.code)
}

func Ret() []byte {
	return []byte{0xC3}
}

// Concat joins encoded instructions into one program.
func Concat(parts ...[]byte) []byte {
	n := 0
	for _, p := range parts {
		n += len(p)
	}
	out := make([]byte, 0, n)
	for _, p := range parts {
		out = append(out, p...)
	}
	return out
}

// Return builds the shortest function that leaves value in RAX and returns.
func Return(value int64) []byte {
	switch {
	case value == 0:
		return Concat(XorSelf(RAX), Ret())
	case value >= math.MinInt32 && value <= math.MaxInt32:
		return Concat(MovImm32(RAX, int32(value)), Ret())
	default:
		return Concat(MovImm64(RAX, value), Ret())
	}
}

// ReturnFloat64 builds a function returning value in XMM0.
func ReturnFloat64(value float64) []byte {
	return Concat(
		MovImm64(RAX, int64(math.Float64bits(value))),
		MovqToXMM0(RAX),
		Ret(),
	)
}

// ReturnFloat32 builds a function returning value in the low lane of XMM0.
func ReturnFloat32(value float32) []byte {
	return Concat(
		MovImm32ZeroExtend(RAX, math.Float32bits(value)),
		MovdToXMM0(RAX),
		Ret(),
	)
}

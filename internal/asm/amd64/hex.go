package amd64

import (
	"encoding/hex"
	"fmt"
	"strings"
)

// ParseHex decodes machine code written as hex. Bytes may be grouped freely
// and separated by whitespace or commas; a 0x prefix on any group is ignored.
func ParseHex(s string) ([]byte, error) {
	groups := strings.FieldsFunc(s, func(r rune) bool {
		return r == ',' || r == ' ' || r == '\t' || r == '\n' || r == '\r'
	})

	var b strings.Builder
	for _, g := range groups {
		g = strings.TrimPrefix(strings.TrimPrefix(g, "0x"), "0X")
		if len(g)%2 != 0 {
			return nil, fmt.Errorf("hex group %q has an odd number of digits", g)
		}
		b.WriteString(g)
	}

	out, err := hex.DecodeString(b.String())
	if err != nil {
		return nil, fmt.Errorf("decode hex: %w", err)
	}
	return out, nil
}

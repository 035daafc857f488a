// Package manifest reads YAML files listing machine-code programs to run.
package manifest

import (
	"fmt"
	"os"

	"github.com/tinyrange/execmem/internal/asm/amd64"
	"github.com/tinyrange/execmem/internal/runner"
	"gopkg.in/yaml.v3"
)

// Manifest is the top-level document.
type Manifest struct {
	Programs []Entry `yaml:"programs"`
}

// Entry describes one program.
type Entry struct {
	Name    string  `yaml:"name"`
	Size    int     `yaml:"size"`
	Code    Code    `yaml:"code"`
	Returns string  `yaml:"returns"`
	Expect  *Scalar `yaml:"expect,omitempty"`
}

// Code holds machine code written either as a hex string or as a list of
// byte values.
type Code []byte

// UnmarshalYAML implements yaml.Unmarshaler for Code.
func (c *Code) UnmarshalYAML(value *yaml.Node) error {
	switch value.Kind {
	case yaml.ScalarNode:
		b, err := amd64.ParseHex(value.Value)
		if err != nil {
			return fmt.Errorf("line %d: %w", value.Line, err)
		}
		*c = b
		return nil
	case yaml.SequenceNode:
		var ints []int
		if err := value.Decode(&ints); err != nil {
			return err
		}
		out := make([]byte, len(ints))
		for i, v := range ints {
			if v < 0 || v > 0xff {
				return fmt.Errorf("line %d: byte %d out of range: %d", value.Line, i, v)
			}
			out[i] = byte(v)
		}
		*c = out
		return nil
	default:
		return fmt.Errorf("line %d: code must be a hex string or a list of bytes", value.Line)
	}
}

// Scalar keeps the literal text of a YAML scalar, so 0xff and 2.50 reach the
// comparison unchanged.
type Scalar string

// UnmarshalYAML implements yaml.Unmarshaler for Scalar.
func (s *Scalar) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind != yaml.ScalarNode {
		return fmt.Errorf("line %d: expect must be a scalar", value.Line)
	}
	*s = Scalar(value.Value)
	return nil
}

// Load reads a manifest and converts it to runnable programs.
func Load(path string) ([]runner.Program, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading manifest: %w", err)
	}
	return Parse(data)
}

// Parse converts manifest YAML to runnable programs, applying defaults and
// rejecting entries that cannot run.
func Parse(data []byte) ([]runner.Program, error) {
	var m Manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parsing manifest: %w", err)
	}
	if len(m.Programs) == 0 {
		return nil, fmt.Errorf("manifest lists no programs")
	}

	progs := make([]runner.Program, 0, len(m.Programs))
	for i, e := range m.Programs {
		name := e.Name
		if name == "" {
			name = fmt.Sprintf("program-%d", i)
		}
		if len(e.Code) == 0 {
			return nil, fmt.Errorf("program %d (%s): code is empty", i, name)
		}
		if e.Size < 0 {
			return nil, fmt.Errorf("program %d (%s): negative size %d", i, name, e.Size)
		}
		rt, err := runner.ParseReturnType(e.Returns)
		if err != nil {
			return nil, fmt.Errorf("program %d (%s): %w", i, name, err)
		}

		p := runner.Program{
			Name:    name,
			Size:    e.Size,
			Code:    []byte(e.Code),
			Returns: rt,
		}
		if e.Expect != nil {
			p.Expect = string(*e.Expect)
			p.HasExpect = true
		}
		progs = append(progs, p)
	}

	return progs, nil
}

// Package headers turns the ordered list of enabled mbed TLS headers into the
// single virtual translation unit handed to the parser.
package headers

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// UnitName is the file name the virtual unit is presented under.
const UnitName = "bindgen-input.h"

// IncludeDir is the directory component every include directive uses.
const IncludeDir = "mbedtls"

// Provider supplies the enabled headers in include order.
type Provider interface {
	Enabled() ([]string, error)
}

// Static is a Provider backed by a fixed list.
type Static []string

func (s Static) Enabled() ([]string, error) {
	out := make([]string, len(s))
	copy(out, s)
	return out, nil
}

// Aggregate builds the virtual unit: one include directive per header, in order.
func Aggregate(list []string) string {
	var sb strings.Builder
	for _, h := range list {
		fmt.Fprintf(&sb, "#include <%s/%s>\n", IncludeDir, h)
	}
	return sb.String()
}

// FileProvider reads the header list from a YAML file. The document is either a
// plain sequence or a mapping with a "headers" sequence.
type FileProvider struct {
	Path string
}

type headerFile struct {
	Headers []string `yaml:"headers"`
}

func (p FileProvider) Enabled() ([]string, error) {
	data, err := os.ReadFile(p.Path)
	if err != nil {
		return nil, fmt.Errorf("read header list: %w", err)
	}
	return parseList(data)
}

func parseList(data []byte) ([]string, error) {
	var node yaml.Node
	if err := yaml.Unmarshal(data, &node); err != nil {
		return nil, fmt.Errorf("parse header list: %w", err)
	}
	if len(node.Content) == 0 {
		return nil, nil
	}

	var list []string
	switch root := node.Content[0]; root.Kind {
	case yaml.SequenceNode:
		if err := root.Decode(&list); err != nil {
			return nil, fmt.Errorf("parse header list: %w", err)
		}
	case yaml.MappingNode:
		var f headerFile
		if err := root.Decode(&f); err != nil {
			return nil, fmt.Errorf("parse header list: %w", err)
		}
		list = f.Headers
	default:
		return nil, fmt.Errorf("parse header list: line %d: expected a sequence or a mapping", root.Line)
	}

	seen := make(map[string]bool, len(list))
	for _, h := range list {
		if h == "" {
			return nil, fmt.Errorf("parse header list: empty header name")
		}
		if seen[h] {
			return nil, fmt.Errorf("parse header list: duplicate header %q", h)
		}
		seen[h] = true
	}
	return list, nil
}

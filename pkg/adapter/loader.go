package adapter

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/hashicorp/hcl/v2/hclsimple"
	"gopkg.in/yaml.v3"

	"github.com/newtron-network/newtcli/pkg/util"
)

// LoadFile loads one bundle. The format follows the extension: .yaml and
// .yml are YAML, .hcl is HCL.
func LoadFile(path string) (*Bundle, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading bundle: %w", err)
	}
	var b *Bundle
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		b, err = ParseYAML(bytes.NewReader(data))
	case ".hcl":
		b, err = ParseHCL(path, data)
	default:
		return nil, fmt.Errorf("%s: %w: unknown bundle extension", path, util.ErrInvalidConfig)
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	b.source = path
	return b, nil
}

// LoadDir loads every bundle file in dir in name order. Other files are
// ignored.
func LoadDir(dir string) ([]*Bundle, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("reading bundle directory: %w", err)
	}
	var names []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		switch strings.ToLower(filepath.Ext(e.Name())) {
		case ".yaml", ".yml", ".hcl":
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)

	bundles := make([]*Bundle, 0, len(names))
	for _, n := range names {
		b, err := LoadFile(filepath.Join(dir, n))
		if err != nil {
			return nil, err
		}
		util.Logger.WithField("bundle", n).Debugf("Loaded %d paths for vendor %s", len(b.Paths), b.Vendor)
		bundles = append(bundles, b)
	}
	return bundles, nil
}

// ParseYAML decodes a YAML bundle. Unknown keys are errors.
func ParseYAML(r io.Reader) (*Bundle, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	var b Bundle
	if err := dec.Decode(&b); err != nil {
		return nil, fmt.Errorf("%w: %v", util.ErrInvalidConfig, err)
	}
	return &b, nil
}

// ParseHCL decodes an HCL bundle; filename is used in diagnostics.
func ParseHCL(filename string, src []byte) (*Bundle, error) {
	var b Bundle
	if err := hclsimple.Decode(filename, src, nil, &b); err != nil {
		return nil, fmt.Errorf("%w: %v", util.ErrInvalidConfig, err)
	}
	return &b, nil
}

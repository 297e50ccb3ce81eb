// Package seed loads lending fixtures from YAML.
package seed

import (
	"bytes"
	_ "embed"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/ghuser/lendingclub/services/lending/domain/models"
)

//go:embed demo.yaml
var demoYAML []byte

// Demo returns the built-in demo club.
func Demo() (models.Snapshot, error) {
	return Decode(bytes.NewReader(demoYAML))
}

// LoadFile reads a fixture from path.
func LoadFile(path string) (models.Snapshot, error) {
	f, err := os.Open(path)
	if err != nil {
		return models.Snapshot{}, fmt.Errorf("seed: open %s: %w", path, err)
	}
	defer f.Close() //nolint:errcheck
	return Decode(f)
}

// Decode parses a fixture and checks that it rebuilds into a System.
// Unknown keys are rejected.
func Decode(r io.Reader) (models.Snapshot, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)

	var snap models.Snapshot
	if err := dec.Decode(&snap); err != nil {
		return models.Snapshot{}, fmt.Errorf("seed: decode: %w", err)
	}
	if _, err := models.RestoreSystem(snap); err != nil {
		return models.Snapshot{}, fmt.Errorf("seed: %w", err)
	}
	return snap, nil
}

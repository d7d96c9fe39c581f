// Package preset reads and writes patch files: a flat parameter map plus
// the voice mode, as JSON.
package preset

import (
	"encoding/json"
	"fmt"
	"os"
)

// Preset is a snapshot of the engine's parameter cache and mode. Keys are
// parameter names as declared by the param package; unknown keys are
// ignored on load so files survive parameter set changes.
type Preset struct {
	Params map[string]float64 `json:"params"`
	Mode   string             `json:"mode"`
}

// Save writes p to path as indented JSON.
func Save(path string, p Preset) error {
	data, err := json.MarshalIndent(p, "", "    ")
	if err != nil {
		return fmt.Errorf("encode preset: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write preset: %w", err)
	}
	return nil
}

// Load reads a preset from path.
func Load(path string) (Preset, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Preset{}, fmt.Errorf("read preset: %w", err)
	}
	var p Preset
	if err := json.Unmarshal(data, &p); err != nil {
		return Preset{}, fmt.Errorf("decode preset %s: %w", path, err)
	}
	return p, nil
}

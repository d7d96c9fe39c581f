package peppermint

import (
	"sort"

	"go.uber.org/zap"

	"github.com/rothamp/peppermint/internal/preset"
)

// Preset is re-exported so callers outside the module only need this
// package.
type Preset = preset.Preset

// ApplyPreset replays a preset through the command channel: one parameter
// command per entry in a stable order, ending with the mode. Unknown
// parameter names and modes are skipped with a log line, not an error.
func (e *Engine) ApplyPreset(p Preset) {
	names := make([]string, 0, len(p.Params))
	for name := range p.Params {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		key, ok := ParseKey(name)
		if !ok {
			e.log.Warn("preset names unknown parameter", zap.String("param", name))
			continue
		}
		e.SetParameter(key, p.Params[name])
	}
	if p.Mode != "" {
		mode, ok := ParseMode(p.Mode)
		if !ok {
			e.log.Warn("preset names unknown mode", zap.String("mode", p.Mode))
			return
		}
		e.SetMode(mode)
	}
}

// SnapshotPreset captures the parameter cache and current mode. Values
// reflect what has been applied by the engine goroutine so far.
func (e *Engine) SnapshotPreset() Preset {
	return Preset{
		Params: e.router.Snapshot(),
		Mode:   e.router.Mode().String(),
	}
}

// LoadPresetFile reads a preset file and applies it.
func (e *Engine) LoadPresetFile(path string) error {
	p, err := preset.Load(path)
	if err != nil {
		return err
	}
	e.ApplyPreset(p)
	return nil
}

// SavePresetFile snapshots the current state into a preset file.
func (e *Engine) SavePresetFile(path string) error {
	return preset.Save(path, e.SnapshotPreset())
}

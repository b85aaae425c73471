package domain

import (
	"encoding/json"
	"path/filepath"
)

// Document is the per-file metadata record attached to a session. Immutable
// once fetched; cached by the session controller until the session changes.
type Document struct {
	OriginalFilename      string            `json:"original_filename"`
	ChartDir              string            `json:"chart_dir"`
	ChartDescriptions     ChartDescriptions `json:"chart_descriptions"`
	ChartDescriptionsJSON ChartDescriptions `json:"chart_descriptions_json"`
	VisionModelUsed       string            `json:"vision_model_used"`
}

// Descriptions returns the chart description mapping, preferring the parsed
// column and falling back to the raw one (older backend rows populate only
// chart_descriptions_json).
func (d Document) Descriptions() ChartDescriptions {
	if len(d.ChartDescriptions) > 0 {
		return d.ChartDescriptions
	}
	return d.ChartDescriptionsJSON
}

// ChartDescriptions maps a chart image filename to its generated description.
// The backend delivers it either pre-parsed or as a JSON-encoded string; both
// shapes normalize here, and a string that fails to parse normalizes to an
// empty mapping instead of an error so the ambiguity never leaves the
// gateway boundary.
type ChartDescriptions map[string]string

func (d *ChartDescriptions) UnmarshalJSON(data []byte) error {
	var m map[string]string
	if err := json.Unmarshal(data, &m); err == nil {
		*d = m
		return nil
	}
	var encoded string
	if err := json.Unmarshal(data, &encoded); err == nil {
		var inner map[string]string
		if err := json.Unmarshal([]byte(encoded), &inner); err == nil {
			*d = inner
			return nil
		}
	}
	*d = ChartDescriptions{}
	return nil
}

// ChartImage identifies one extracted visual by its collection directory and
// filename. It is derived on demand from a Document plus a directory listing,
// never stored.
type ChartImage struct {
	Dir      string `json:"dir"`
	Filename string `json:"filename"`
}

// Path returns the fully-qualified location of the image on the shared volume.
func (c ChartImage) Path() string {
	return filepath.Join(c.Dir, c.Filename)
}

// VisionModels lists the vision models the backend's model factory accepts,
// in display order. Hardcoded to match backend capabilities without an extra
// listing endpoint.
var VisionModels = []string{
	"Ollama-Granite3.2-Vision",
	"Ollama-Gemma3",
	"Moondream2",
	"Qwen3-VL-2B",
	"InternVL3.5-1B",
}

// VisionModelDescriptions gives the short selector captions for each model.
var VisionModelDescriptions = map[string]string{
	"Moondream2":               "Fast (1.6B) - Recommended (Python)",
	"Qwen3-VL-2B":              "Balanced (2B) - High Accuracy",
	"InternVL3.5-1B":           "Precise (1B) - Document optimized",
	"Ollama-Gemma3":            "Gemma 3 (4B) - Requires Ollama",
	"Ollama-Granite3.2-Vision": "IBM Granite (2B) - Efficient Enterprise Vision",
}

// DefaultVisionModel returns the model preselected for new sessions.
func DefaultVisionModel() string {
	return VisionModels[0]
}

// IsKnownVisionModel reports whether name is an accepted model selector.
func IsKnownVisionModel(name string) bool {
	for _, m := range VisionModels {
		if m == name {
			return true
		}
	}
	return false
}

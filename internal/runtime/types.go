package runtime

import "time"

// ModelRecord is one installed model as reported by the daemon catalog.
type ModelRecord struct {
	Name       string       `json:"name"`
	SizeBytes  int64        `json:"size"`
	Digest     string       `json:"digest,omitempty"`
	ModifiedAt time.Time    `json:"modified_at"`
	Details    ModelDetails `json:"details"`
}

// ModelDetails is descriptive metadata the daemon attaches to a model.
// Opaque to us beyond display.
type ModelDetails struct {
	Format            string `json:"format,omitempty"`
	Family            string `json:"family,omitempty"`
	ParameterSize     string `json:"parameter_size,omitempty"`
	QuantizationLevel string `json:"quantization_level,omitempty"`
}

// RunningModelRecord is a model instance currently loaded by the daemon.
type RunningModelRecord struct {
	ModelName     string     `json:"model"`
	RAMBytes      int64      `json:"size"`
	VRAMBytes     int64      `json:"size_vram"`
	ExpiresAt     *time.Time `json:"expires_at,omitempty"`
	ContextLength int        `json:"context_length,omitempty"`
}

// ShowResult is the daemon's response to a show request.
type ShowResult struct {
	Modelfile  string       `json:"modelfile,omitempty"`
	Parameters string       `json:"parameters,omitempty"`
	Template   string       `json:"template,omitempty"`
	Details    ModelDetails `json:"details"`
}

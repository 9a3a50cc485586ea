package ml

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"marketpulse/pkg/errors"
)

// Artifact kinds
const (
	KindSequence  = "sequence"
	KindLinear    = "linear"
	KindAuxiliary = "auxiliary"
)

// Fingerprint identifies the input schema a model was trained on
func Fingerprint(kind string, features []string, window int) string {
	sum := sha256.Sum256([]byte(fmt.Sprintf("%s|%s|w=%d", kind, strings.Join(features, ","), window)))
	return hex.EncodeToString(sum[:])
}

// Artifact is the persisted envelope of one model
type Artifact struct {
	Kind      string          `json:"kind"`
	Schema    string          `json:"schema"`
	Features  []string        `json:"features"`
	Window    int             `json:"window"`
	Scaler    *RobustScaler   `json:"scaler"`
	CreatedAt time.Time       `json:"created_at"`
	Model     json.RawMessage `json:"model"`
}

// SaveArtifact writes model with its schema fingerprint and scaler to path
func SaveArtifact(path, kind string, features []string, window int, scaler *RobustScaler, model interface{}) error {
	raw, err := json.Marshal(model)
	if err != nil {
		return errors.Wrapf(err, "failed to encode %s model", kind)
	}

	data, err := json.Marshal(Artifact{
		Kind:      kind,
		Schema:    Fingerprint(kind, features, window),
		Features:  features,
		Window:    window,
		Scaler:    scaler,
		CreatedAt: time.Now().UTC(),
		Model:     raw,
	})
	if err != nil {
		return errors.Wrapf(err, "failed to encode %s artifact", kind)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return errors.Wrap(err, "failed to create model dir")
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return errors.Wrapf(err, "failed to write %s artifact", kind)
	}
	return os.Rename(tmp, path)
}

// LoadArtifact reads an artifact, refuses it unless its fingerprint matches the
// current schema, and decodes the model into dst
func LoadArtifact(path, kind string, features []string, window int, dst interface{}) (*Artifact, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(errors.ErrModelState, "%s artifact: %v", kind, err)
	}

	var a Artifact
	if err := json.Unmarshal(data, &a); err != nil {
		return nil, errors.Wrapf(errors.ErrModelState, "%s artifact is corrupt: %v", kind, err)
	}
	if a.Kind != kind {
		return nil, errors.Wrapf(errors.ErrModelState, "%s artifact holds a %q model", kind, a.Kind)
	}
	if want := Fingerprint(kind, features, window); a.Schema != want {
		return nil, errors.Wrapf(errors.ErrModelState, "%s artifact schema mismatch (trained on %v, window %d)", kind, a.Features, a.Window)
	}
	if a.Scaler == nil || a.Scaler.Width() != len(features) {
		return nil, errors.Wrapf(errors.ErrModelState, "%s artifact has no usable scaler", kind)
	}
	if err := json.Unmarshal(a.Model, dst); err != nil {
		return nil, errors.Wrapf(errors.ErrModelState, "%s model is corrupt: %v", kind, err)
	}

	return &a, nil
}

// ReadSchemaSidecar returns the fingerprint stored next to an externally exported model
func ReadSchemaSidecar(modelPath string) (string, error) {
	data, err := os.ReadFile(modelPath + ".schema")
	if err != nil {
		return "", errors.Wrapf(errors.ErrModelState, "schema sidecar: %v", err)
	}
	return strings.TrimSpace(string(data)), nil
}

package ml

import (
	onnxruntime "github.com/yalue/onnxruntime_go"

	"marketpulse/pkg/errors"
)

// ONNXSequenceModel serves an externally trained sequence model through ONNX Runtime.
// The graph takes "input" [1, window, features] float32 and returns "probability" [1, 1].
type ONNXSequenceModel struct {
	session  *onnxruntime.DynamicAdvancedSession
	window   int
	features int
}

var _ SequenceModel = (*ONNXSequenceModel)(nil)

// LoadONNXSequenceModel opens the model after checking its schema sidecar
func LoadONNXSequenceModel(modelPath, libraryPath string, features []string, window int) (*ONNXSequenceModel, error) {
	schema, err := ReadSchemaSidecar(modelPath)
	if err != nil {
		return nil, err
	}
	if schema != Fingerprint(KindSequence, features, window) {
		return nil, errors.Wrapf(errors.ErrModelState, "onnx sequence model schema mismatch")
	}

	if !onnxruntime.IsInitialized() {
		if libraryPath != "" {
			onnxruntime.SetSharedLibraryPath(libraryPath)
		}
		if err := onnxruntime.InitializeEnvironment(); err != nil {
			return nil, errors.Wrap(err, "failed to initialize ONNX runtime")
		}
	}

	options, err := onnxruntime.NewSessionOptions()
	if err != nil {
		return nil, errors.Wrap(err, "failed to create session options")
	}
	defer options.Destroy()

	session, err := onnxruntime.NewDynamicAdvancedSession(modelPath,
		[]string{"input"}, []string{"probability"}, options)
	if err != nil {
		return nil, errors.Wrapf(errors.ErrModelState, "failed to load ONNX model: %v", err)
	}

	return &ONNXSequenceModel{
		session:  session,
		window:   window,
		features: len(features),
	}, nil
}

// PredictProba runs inference on the last window rows
func (m *ONNXSequenceModel) PredictProba(window [][]float64) (float64, error) {
	if m.session == nil {
		return 0.5, errors.Wrap(errors.ErrModelState, "model session is nil")
	}
	if len(window) < m.window {
		return 0.5, errors.Wrapf(errors.ErrInsufficientData, "window has %d rows, need %d", len(window), m.window)
	}
	window = window[len(window)-m.window:]

	input := make([]float32, 0, m.window*m.features)
	for _, row := range window {
		if len(row) != m.features {
			return 0.5, errors.Wrapf(errors.ErrModelState, "row has %d features, model expects %d", len(row), m.features)
		}
		for _, v := range row {
			input = append(input, float32(v))
		}
	}

	inputTensor, err := onnxruntime.NewTensor(onnxruntime.NewShape(1, int64(m.window), int64(m.features)), input)
	if err != nil {
		return 0.5, errors.Wrap(err, "failed to create input tensor")
	}
	defer inputTensor.Destroy()

	probOutput := make([]float32, 1)
	probTensor, err := onnxruntime.NewTensor(onnxruntime.NewShape(1, 1), probOutput)
	if err != nil {
		return 0.5, errors.Wrap(err, "failed to create output tensor")
	}
	defer probTensor.Destroy()

	if err := m.session.Run([]onnxruntime.Value{inputTensor}, []onnxruntime.Value{probTensor}); err != nil {
		return 0.5, errors.Wrap(err, "inference failed")
	}

	return float64(probTensor.GetData()[0]), nil
}

// Destroy cleans up the ONNX session
func (m *ONNXSequenceModel) Destroy() {
	if m.session != nil {
		m.session.Destroy()
		m.session = nil
	}
}

// Package model wraps the pretrained plant-disease network exported to ONNX.
package model

import (
	"os"
	"sync"

	"github.com/pkg/errors"
	ort "github.com/yalue/onnxruntime_go"
)

// Classifier maps a (1,3,224,224) tensor to one score per class.
type Classifier interface {
	Forward(input []float32, shape []int64) ([]float32, error)
	NumClasses() int
}

// Options configure LoadONNX.
type Options struct {
	// LibraryPath points at the onnxruntime shared library. Empty uses the
	// platform default search.
	LibraryPath    string
	IntraOpThreads int
	NumClasses     int
	// InputShape is what the preprocessor produces, e.g. (1,3,224,224).
	InputShape []int64
}

// ONNXClassifier runs inference through onnxruntime. Tensors are allocated per
// Forward call, so one instance serves concurrent requests.
type ONNXClassifier struct {
	session     *ort.DynamicAdvancedSession
	numClasses  int
	inputShape  ort.Shape
	outputShape ort.Shape
}

var envMu sync.Mutex

func initEnvironment(libraryPath string) error {
	envMu.Lock()
	defer envMu.Unlock()

	if ort.IsInitialized() {
		return nil
	}
	if libraryPath != "" {
		ort.SetSharedLibraryPath(libraryPath)
	}
	return ort.InitializeEnvironment()
}

// LoadONNX opens the weights at path and checks that the network accepts
// opts.InputShape and emits opts.NumClasses scores.
func LoadONNX(path string, opts Options) (*ONNXClassifier, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, &ModelLoadError{Path: path, Err: err}
	}
	if info.IsDir() || info.Size() == 0 {
		return nil, &ModelLoadError{Path: path, Err: errors.New("weights file is empty or not a regular file")}
	}
	if opts.NumClasses <= 0 {
		return nil, &ModelLoadError{Path: path, Err: errors.Errorf("invalid class count %d", opts.NumClasses)}
	}

	if err := initEnvironment(opts.LibraryPath); err != nil {
		return nil, &ModelLoadError{Path: path, Err: errors.Wrap(err, "initialize onnxruntime")}
	}

	inputs, outputs, err := ort.GetInputOutputInfo(path)
	if err != nil {
		return nil, &ModelLoadError{Path: path, Err: errors.Wrap(err, "read model graph")}
	}
	if len(inputs) != 1 || len(outputs) < 1 {
		return nil, &ModelLoadError{Path: path, Err: errors.Errorf("expected 1 input and at least 1 output, got %d and %d", len(inputs), len(outputs))}
	}
	if err := checkShape(inputs[0].Dimensions, opts.InputShape); err != nil {
		return nil, &ModelLoadError{Path: path, Err: errors.Wrapf(err, "input %q", inputs[0].Name)}
	}
	outputShape := concreteShape(outputs[0].Dimensions)
	if len(outputShape) == 0 || outputShape.FlattenedSize() != int64(opts.NumClasses) {
		return nil, &ModelLoadError{Path: path, Err: errors.Errorf("output %q has shape %v, want %d classes", outputs[0].Name, outputs[0].Dimensions, opts.NumClasses)}
	}

	var sessionOpts *ort.SessionOptions
	if opts.IntraOpThreads > 0 {
		sessionOpts, err = ort.NewSessionOptions()
		if err != nil {
			return nil, &ModelLoadError{Path: path, Err: errors.Wrap(err, "create session options")}
		}
		defer sessionOpts.Destroy()
		if err := sessionOpts.SetIntraOpNumThreads(opts.IntraOpThreads); err != nil {
			return nil, &ModelLoadError{Path: path, Err: errors.Wrap(err, "set intra-op threads")}
		}
	}

	session, err := ort.NewDynamicAdvancedSession(path,
		[]string{inputs[0].Name}, []string{outputs[0].Name}, sessionOpts)
	if err != nil {
		return nil, &ModelLoadError{Path: path, Err: errors.Wrap(err, "create session")}
	}

	return &ONNXClassifier{
		session:     session,
		numClasses:  opts.NumClasses,
		inputShape:  ort.NewShape(opts.InputShape...),
		outputShape: outputShape,
	}, nil
}

// checkShape accepts dynamic (non-positive) model dimensions.
func checkShape(model ort.Shape, want []int64) error {
	if len(model) != len(want) {
		return errors.Errorf("rank %d, want %d", len(model), len(want))
	}
	for i, d := range model {
		if d > 0 && d != want[i] {
			return errors.Errorf("shape %v, want %v", model, want)
		}
	}
	return nil
}

// concreteShape pins dynamic dimensions to 1, the only batch size served.
func concreteShape(dims ort.Shape) ort.Shape {
	out := make(ort.Shape, len(dims))
	for i, d := range dims {
		if d <= 0 {
			d = 1
		}
		out[i] = d
	}
	return out
}

// Forward runs one inference.
func (c *ONNXClassifier) Forward(input []float32, shape []int64) ([]float32, error) {
	inputShape := ort.NewShape(shape...)
	if inputShape.FlattenedSize() != int64(len(input)) {
		return nil, errors.Errorf("input has %d values, shape %v needs %d", len(input), shape, inputShape.FlattenedSize())
	}
	if err := checkShape(c.inputShape, shape); err != nil {
		return nil, err
	}

	inputTensor, err := ort.NewTensor(inputShape, input)
	if err != nil {
		return nil, errors.Wrap(err, "create input tensor")
	}
	defer inputTensor.Destroy()

	outputTensor, err := ort.NewEmptyTensor[float32](c.outputShape)
	if err != nil {
		return nil, errors.Wrap(err, "create output tensor")
	}
	defer outputTensor.Destroy()

	if err := c.session.Run([]ort.ArbitraryTensor{inputTensor}, []ort.ArbitraryTensor{outputTensor}); err != nil {
		return nil, errors.Wrap(err, "inference failed")
	}

	scores := make([]float32, c.numClasses)
	copy(scores, outputTensor.GetData())
	return scores, nil
}

// NumClasses is the length of every score vector Forward returns.
func (c *ONNXClassifier) NumClasses() int { return c.numClasses }

// Close releases the session and the onnxruntime environment.
func (c *ONNXClassifier) Close() {
	if c.session != nil {
		c.session.Destroy()
	}
	envMu.Lock()
	defer envMu.Unlock()
	if ort.IsInitialized() {
		ort.DestroyEnvironment()
	}
}

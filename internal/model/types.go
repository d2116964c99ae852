package model

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/pkg/errors"
)

// Metadata is the optional JSON sidecar exported next to the ONNX weights.
type Metadata struct {
	InputShape  []int64  `json:"input_shape"`
	OutputShape []int64  `json:"output_shape"`
	Classes     []string `json:"classes"`
	ImageSize   int      `json:"image_size"`
}

// ModelLoadError reports weights that are missing, truncated or do not match
// the expected input and output shapes.
type ModelLoadError struct {
	Path string
	Err  error
}

func (e *ModelLoadError) Error() string {
	return fmt.Sprintf("load model %s: %v", e.Path, e.Err)
}

func (e *ModelLoadError) Unwrap() error { return e.Err }

// LoadMetadata reads a sidecar file. Shapes and classes are checked against
// numClasses and the preprocessor's image size when set.
func LoadMetadata(path string, numClasses int, imageSize int) (*Metadata, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, &ModelLoadError{Path: path, Err: errors.Wrap(err, "read metadata")}
	}

	var metadata Metadata
	if err := json.Unmarshal(raw, &metadata); err != nil {
		return nil, &ModelLoadError{Path: path, Err: errors.Wrap(err, "parse metadata")}
	}

	if len(metadata.Classes) > 0 && len(metadata.Classes) != numClasses {
		return nil, &ModelLoadError{Path: path, Err: errors.Errorf("metadata lists %d classes, want %d", len(metadata.Classes), numClasses)}
	}
	if metadata.ImageSize != 0 && metadata.ImageSize != imageSize {
		return nil, &ModelLoadError{Path: path, Err: errors.Errorf("metadata image size %d, want %d", metadata.ImageSize, imageSize)}
	}
	if n := len(metadata.OutputShape); n > 0 && metadata.OutputShape[n-1] != int64(numClasses) {
		return nil, &ModelLoadError{Path: path, Err: errors.Errorf("metadata output shape %v, want %d classes", metadata.OutputShape, numClasses)}
	}
	return &metadata, nil
}

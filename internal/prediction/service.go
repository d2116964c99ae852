// Package prediction runs an upload through preprocessing, the classifier and
// argmax decoding.
package prediction

import (
	"context"
	"fmt"
	"time"

	"github.com/pkg/errors"

	"github.com/Brownie44l1/plantdoc-api/internal/model"
	"github.com/Brownie44l1/plantdoc-api/internal/preprocess"
)

// Stage names the pipeline step a Failure came from.
type Stage string

const (
	StageDecode    Stage = "decode"
	StageInference Stage = "inference"
	StageDecoding  Stage = "argmax"
)

// Failure is the structured error of a single prediction.
type Failure struct {
	Stage Stage
	Cause error
}

func (f *Failure) Error() string {
	return fmt.Sprintf("prediction failed at %s: %v", f.Stage, f.Cause)
}

func (f *Failure) Unwrap() error { return f.Cause }

// Result is either a class index or a Failure, never both.
type Result struct {
	Index     int
	Score     float32
	Format    string
	Inference time.Duration
	Failure   *Failure
}

// OK reports whether the prediction produced a class index.
func (r Result) OK() bool { return r.Failure == nil }

// Service is stateless apart from the shared, read-only classifier.
type Service struct {
	classifier model.Classifier
}

func NewService(classifier model.Classifier) *Service {
	return &Service{classifier: classifier}
}

// NumClasses is the size of the classifier's output space.
func (s *Service) NumClasses() int { return s.classifier.NumClasses() }

// Predict classifies raw image bytes. Every failure comes back in
// Result.Failure, including a panic in a decoder or the classifier.
func (s *Service) Predict(ctx context.Context, raw []byte) (res Result) {
	defer func() {
		if rec := recover(); rec != nil {
			res = Result{Format: res.Format, Failure: &Failure{
				Stage: StageInference,
				Cause: errors.Errorf("panic: %v", rec),
			}}
		}
	}()

	tensor, format, err := preprocess.Preprocess(raw)
	if err != nil {
		return Result{Format: format, Failure: &Failure{Stage: StageDecode, Cause: err}}
	}

	if err := ctx.Err(); err != nil {
		return Result{Format: format, Failure: &Failure{Stage: StageInference, Cause: err}}
	}

	start := time.Now()
	scores, err := s.classifier.Forward(tensor.Data, tensor.Shape)
	elapsed := time.Since(start)
	if err != nil {
		return Result{Format: format, Inference: elapsed, Failure: &Failure{Stage: StageInference, Cause: err}}
	}

	if n := s.classifier.NumClasses(); len(scores) != n {
		return Result{Format: format, Inference: elapsed, Failure: &Failure{
			Stage: StageDecoding,
			Cause: errors.Errorf("classifier returned %d scores, want %d", len(scores), n),
		}}
	}

	index, score, err := model.Argmax(scores)
	if err != nil {
		return Result{Format: format, Inference: elapsed, Failure: &Failure{Stage: StageDecoding, Cause: err}}
	}

	return Result{Index: index, Score: score, Format: format, Inference: elapsed}
}

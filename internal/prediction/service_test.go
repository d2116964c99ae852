package prediction

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/png"
	"sync"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Brownie44l1/plantdoc-api/internal/preprocess"
)

// meanClassifier scores class i by how close the mean red value is to i/n,
// so the output depends on the input deterministically.
type meanClassifier struct {
	n int
}

func (m *meanClassifier) Forward(input []float32, shape []int64) ([]float32, error) {
	plane := len(input) / 3
	var sum float32
	for _, v := range input[:plane] {
		sum += v
	}
	mean := sum / float32(plane)
	scores := make([]float32, m.n)
	for i := range scores {
		d := mean - float32(i)/float32(m.n)
		scores[i] = -d * d
	}
	return scores, nil
}

func (m *meanClassifier) NumClasses() int { return m.n }

type panickingClassifier struct{}

func (panickingClassifier) Forward(input []float32, shape []int64) ([]float32, error) {
	var scores []float32
	return scores[:1], nil
}

func (panickingClassifier) NumClasses() int { return 1 }

type fixedClassifier struct {
	scores []float32
	n      int
	err    error
	shapes [][]int64
	mu     sync.Mutex
}

func (f *fixedClassifier) Forward(input []float32, shape []int64) ([]float32, error) {
	f.mu.Lock()
	f.shapes = append(f.shapes, shape)
	f.mu.Unlock()
	return f.scores, f.err
}

func (f *fixedClassifier) NumClasses() int { return f.n }

func pngBytes(t *testing.T, w, h int, c color.Color) []byte {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, c)
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func TestPredict_PassesFixedShape(t *testing.T) {
	clf := &fixedClassifier{scores: []float32{0.1, 0.9, 0.0}, n: 3}
	svc := NewService(clf)

	res := svc.Predict(context.Background(), pngBytes(t, 500, 40, color.White))
	require.True(t, res.OK(), "%v", res.Failure)
	assert.Equal(t, 1, res.Index)
	assert.Equal(t, float32(0.9), res.Score)
	assert.Equal(t, "png", res.Format)
	require.Len(t, clf.shapes, 1)
	assert.Equal(t, preprocess.Shape, clf.shapes[0])
}

func TestPredict_TieBreak(t *testing.T) {
	scores := make([]float32, 39)
	scores[7] = 3
	scores[30] = 3
	svc := NewService(&fixedClassifier{scores: scores, n: 39})

	res := svc.Predict(context.Background(), pngBytes(t, 10, 10, color.Black))
	require.True(t, res.OK())
	assert.Equal(t, 7, res.Index)
}

func TestPredict_Deterministic(t *testing.T) {
	svc := NewService(&meanClassifier{n: 39})
	raw := pngBytes(t, 320, 240, color.RGBA{R: 166, G: 20, B: 20, A: 255})

	first := svc.Predict(context.Background(), raw)
	require.True(t, first.OK())

	var wg sync.WaitGroup
	results := make([]Result, 16)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i] = svc.Predict(context.Background(), raw)
		}(i)
	}
	wg.Wait()

	for _, r := range results {
		require.True(t, r.OK())
		assert.Equal(t, first.Index, r.Index)
	}
}

func TestPredict_DecodeFailure(t *testing.T) {
	clf := &fixedClassifier{scores: []float32{1}, n: 1}
	res := NewService(clf).Predict(context.Background(), []byte("not an image"))

	require.False(t, res.OK())
	assert.Equal(t, StageDecode, res.Failure.Stage)
	var decodeErr *preprocess.ImageDecodeError
	assert.True(t, errors.As(res.Failure, &decodeErr))
	assert.Empty(t, clf.shapes)
}

func TestPredict_ClassifierFailure(t *testing.T) {
	boom := errors.New("session exploded")
	res := NewService(&fixedClassifier{n: 3, err: boom}).Predict(context.Background(), pngBytes(t, 8, 8, color.White))

	require.False(t, res.OK())
	assert.Equal(t, StageInference, res.Failure.Stage)
	assert.True(t, errors.Is(res.Failure, boom))
}

func TestPredict_WrongScoreLength(t *testing.T) {
	res := NewService(&fixedClassifier{scores: []float32{1, 2}, n: 39}).Predict(context.Background(), pngBytes(t, 8, 8, color.White))

	require.False(t, res.OK())
	assert.Equal(t, StageDecoding, res.Failure.Stage)
}

func TestPredict_CanceledContext(t *testing.T) {
	clf := &fixedClassifier{scores: []float32{1}, n: 1}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	res := NewService(clf).Predict(ctx, pngBytes(t, 8, 8, color.White))
	require.False(t, res.OK())
	assert.True(t, errors.Is(res.Failure, context.Canceled))
	assert.Empty(t, clf.shapes)
}

func TestPredict_PanicBecomesFailure(t *testing.T) {
	svc := NewService(panickingClassifier{})

	res := svc.Predict(context.Background(), pngBytes(t, 8, 8, color.White))
	require.False(t, res.OK())
	assert.Equal(t, StageInference, res.Failure.Stage)
	assert.Contains(t, res.Failure.Error(), "panic")

	// The service keeps working for the next upload.
	clf := &fixedClassifier{scores: []float32{0, 1}, n: 2}
	res = NewService(clf).Predict(context.Background(), pngBytes(t, 8, 8, color.White))
	assert.True(t, res.OK())
	assert.Equal(t, 1, res.Index)
}

package model

import (
	"errors"
	"image"
	"image/color"
	"math"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
)

func TestSoftmax(t *testing.T) {
	probs := softmax([]float32{1, 2, 3, 1000})
	var sum float64
	for _, p := range probs {
		if p < 0 || p > 1 || math.IsNaN(float64(p)) {
			t.Fatalf("probability out of range: %v", probs)
		}
		sum += float64(p)
	}
	if math.Abs(sum-1) > 1e-5 {
		t.Fatalf("softmax sums to %v", sum)
	}
	if argmax(probs) != 3 {
		t.Fatalf("argmax = %d, want 3", argmax(probs))
	}
	if len(softmax(nil)) != 0 {
		t.Fatalf("softmax(nil) not empty")
	}
}

func TestArgmax(t *testing.T) {
	tests := []struct {
		in   []float32
		want int
	}{
		{[]float32{0.1, 0.87, 0.03}, 1},
		{[]float32{0.5, 0.5}, 0},
		{[]float32{-3, -1, -2}, 1},
		{nil, 0},
	}
	for _, tt := range tests {
		if got := argmax(tt.in); got != tt.want {
			t.Errorf("argmax(%v) = %d, want %d", tt.in, got, tt.want)
		}
	}
}

func TestPreprocess(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 10, 6))
	for y := 0; y < 6; y++ {
		for x := 0; x < 10; x++ {
			img.Set(x, y, color.RGBA{R: 255, G: 255, B: 255, A: 255})
		}
	}

	data := preprocess(img, 8, imagenetMean, imagenetStd)
	if len(data) != 3*8*8 {
		t.Fatalf("len = %d, want %d", len(data), 3*8*8)
	}

	for c := 0; c < 3; c++ {
		want := (1 - imagenetMean[c]) / imagenetStd[c]
		got := data[c*64+27]
		if math.Abs(float64(got-want)) > 1e-3 {
			t.Errorf("channel %d = %v, want %v", c, got, want)
		}
	}
}

func TestMetadataDecode(t *testing.T) {
	m := Metadata{Classes: []string{"Gir", "Sahiwal", "Murrah"}}

	pred := m.decode([]float32{0.05, 0.87, 0.08})
	if pred.Label != "Sahiwal" || pred.Index != 1 {
		t.Fatalf("decode = %+v", pred)
	}

	m.ApplySoftmax = true
	pred = m.decode([]float32{-1, 0.5, 4, 99})
	if pred.Label != "Murrah" || len(pred.Probabilities) != 3 {
		t.Fatalf("decode with softmax = %+v", pred)
	}
}

func writeFile(t *testing.T, dir, name, body string) string {
	t.Helper()
	p := filepath.Join(dir, name)
	if err := os.WriteFile(p, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	return p
}

func TestReadMetadata(t *testing.T) {
	dir := t.TempDir()

	p := writeFile(t, dir, "meta.json", `{"classes": ["Gir", "Sahiwal"]}`)
	m, err := readMetadata(p)
	if err != nil {
		t.Fatalf("readMetadata: %v", err)
	}
	if m.InputName != "input" || m.OutputName != "output" || m.ImageSize != 224 {
		t.Errorf("defaults not applied: %+v", m)
	}
	if len(m.InputShape) != 4 || m.InputShape[2] != 224 {
		t.Errorf("InputShape = %v", m.InputShape)
	}
	if m.OutputShape[1] != 2 {
		t.Errorf("OutputShape = %v", m.OutputShape)
	}

	bad := []struct{ name, body string }{
		{"no-classes.json", `{"classes": []}`},
		{"mismatch.json", `{"classes": ["Gir"], "output_shape": [1, 5]}`},
		{"garbage.json", `not json`},
	}
	for _, b := range bad {
		if _, err := readMetadata(writeFile(t, dir, b.name, b.body)); err == nil {
			t.Errorf("%s: expected error", b.name)
		}
	}
}

func TestNewServerMissingArtifact(t *testing.T) {
	dir := t.TempDir()
	meta := writeFile(t, dir, "meta.json", `{"classes": ["Gir"]}`)

	_, err := NewServer(filepath.Join(dir, "resnet50_bovine.onnx"), meta, "")
	if !errors.Is(err, ErrArtifactNotFound) {
		t.Fatalf("missing model: err = %v, want ErrArtifactNotFound", err)
	}

	modelFile := writeFile(t, dir, "model.onnx", "")
	_, err = NewServer(modelFile, filepath.Join(dir, "missing.json"), "")
	if !errors.Is(err, ErrArtifactNotFound) {
		t.Fatalf("missing metadata: err = %v, want ErrArtifactNotFound", err)
	}
}

type stubClassifier struct{}

func (stubClassifier) Predict([]byte) (*Prediction, error) { return &Prediction{Label: "Gir"}, nil }

func TestLoaderOpensOnce(t *testing.T) {
	var opens atomic.Int32
	l := NewLoader(func() (Classifier, error) {
		opens.Add(1)
		return stubClassifier{}, nil
	})

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if c, err := l.Get(); err != nil || c == nil {
				t.Errorf("Get() = %v, %v", c, err)
			}
		}()
	}
	wg.Wait()

	if n := opens.Load(); n != 1 {
		t.Fatalf("open called %d times, want 1", n)
	}
}

func TestLoaderKeepsError(t *testing.T) {
	var opens int
	l := NewLoader(func() (Classifier, error) {
		opens++
		return nil, ErrArtifactNotFound
	})

	for i := 0; i < 3; i++ {
		if _, err := l.Get(); !errors.Is(err, ErrArtifactNotFound) {
			t.Fatalf("Get() err = %v", err)
		}
	}
	if opens != 1 {
		t.Fatalf("open called %d times, want 1", opens)
	}
	l.Close()
}

package model

// Metadata is exported alongside the ONNX graph and describes its tensors.
type Metadata struct {
	InputName    string    `json:"input_name"`
	OutputName   string    `json:"output_name"`
	InputShape   []int64   `json:"input_shape"`
	OutputShape  []int64   `json:"output_shape"`
	Classes      []string  `json:"classes"`
	ImageSize    int       `json:"image_size"`
	Mean         []float32 `json:"mean"`
	Std          []float32 `json:"std"`
	ApplySoftmax bool      `json:"apply_softmax"`
}

// Prediction is what a single inference run yields: the top label, its
// index and the whole probability vector.
type Prediction struct {
	Label         string    `json:"label"`
	Index         int       `json:"index"`
	Probabilities []float32 `json:"probabilities"`
}

// Classifier maps encoded image bytes to a prediction.
type Classifier interface {
	Predict(image []byte) (*Prediction, error)
}

var (
	imagenetMean = []float32{0.485, 0.456, 0.406}
	imagenetStd  = []float32{0.229, 0.224, 0.225}
)

func (m *Metadata) applyDefaults() {
	if m.InputName == "" {
		m.InputName = "input"
	}
	if m.OutputName == "" {
		m.OutputName = "output"
	}
	if m.ImageSize == 0 {
		m.ImageSize = 224
	}
	if len(m.InputShape) == 0 {
		s := int64(m.ImageSize)
		m.InputShape = []int64{1, 3, s, s}
	}
	if len(m.OutputShape) == 0 {
		m.OutputShape = []int64{1, int64(len(m.Classes))}
	}
	if len(m.Mean) != 3 {
		m.Mean = imagenetMean
	}
	if len(m.Std) != 3 {
		m.Std = imagenetStd
	}
}

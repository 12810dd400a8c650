package predict

import (
	"fmt"
	"log"
	"math"

	"github.com/Brownie44l1/agriscan/internal/model"
)

// ClassifierSource yields the process-wide classifier or the error that
// prevented loading it. *model.Loader satisfies it.
type ClassifierSource interface {
	Get() (model.Classifier, error)
}

// Submission is one press of the predict action: the raw upload and the
// identifier exactly as entered.
type Submission struct {
	Filename   string
	Data       []byte
	Identifier string
}

// Result is a successful breed prediction.
type Result struct {
	Label      string
	Index      int
	Confidence float64
}

// Percent formats the confidence with two decimals, clamped to [0, 100].
func (r *Result) Percent() string {
	return fmt.Sprintf("%.2f", clampPercent(r.Confidence))
}

func clampPercent(v float64) float64 {
	switch {
	case math.IsNaN(v), v < 0:
		return 0
	case v > 100:
		return 100
	}
	return v
}

type Service struct {
	source ClassifierSource
}

func NewService(source ClassifierSource) *Service {
	return &Service{source: source}
}

// Ready reports whether predictions can be made at all.
func (s *Service) Ready() error {
	_, err := s.classifier()
	return err
}

func (s *Service) classifier() (model.Classifier, error) {
	c, err := s.source.Get()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrModelUnavailable, err)
	}
	if c == nil {
		return nil, ErrModelUnavailable
	}
	return c, nil
}

// Submit validates the submission and, if it is valid, classifies the image.
// It returns either a result or an error, never both.
func (s *Service) Submit(sub Submission) (*Result, error) {
	c, err := s.classifier()
	if err != nil {
		return nil, err
	}
	if len(sub.Data) == 0 || sub.Identifier == "" {
		return nil, ErrMissingInput
	}
	if err := ValidateIdentifier(sub.Identifier); err != nil {
		return nil, err
	}
	img, err := NewUploadedImage(sub.Filename, sub.Data)
	if err != nil {
		return nil, err
	}

	pred, err := classify(c, img.Data)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInference, err)
	}
	if pred.Index < 0 || pred.Index >= len(pred.Probabilities) {
		return nil, fmt.Errorf("%w: index %d outside %d probabilities", ErrInference, pred.Index, len(pred.Probabilities))
	}

	return &Result{
		Label:      pred.Label,
		Index:      pred.Index,
		Confidence: float64(pred.Probabilities[pred.Index]) * 100,
	}, nil
}

// classify runs the classifier, turning a panic into an error.
func classify(c model.Classifier, data []byte) (pred *model.Prediction, err error) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("Classifier panicked: %v", r)
			pred, err = nil, fmt.Errorf("classifier panic: %v", r)
		}
	}()

	pred, err = c.Predict(data)
	if err == nil && pred == nil {
		err = fmt.Errorf("classifier returned no prediction")
	}
	return pred, err
}

package predict

import "errors"

var (
	// ErrModelUnavailable disables prediction for the life of the process.
	ErrModelUnavailable = errors.New("model unavailable")
	// ErrInvalidIdentifier means the identifier is not 12 decimal digits.
	ErrInvalidIdentifier = errors.New("invalid identifier")
	// ErrInference wraps anything the classifier raised while predicting.
	ErrInference = errors.New("inference failed")

	ErrMissingInput     = errors.New("image and identifier are both required")
	ErrUnsupportedImage = errors.New("unsupported image type")
)

// Kind names the error class for display and JSON responses.
func Kind(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrModelUnavailable):
		return "model_unavailable"
	case errors.Is(err, ErrInvalidIdentifier):
		return "invalid_identifier"
	case errors.Is(err, ErrInference):
		return "inference_error"
	case errors.Is(err, ErrMissingInput):
		return "missing_input"
	case errors.Is(err, ErrUnsupportedImage):
		return "unsupported_image"
	default:
		return "internal"
	}
}

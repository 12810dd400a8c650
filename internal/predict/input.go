package predict

import (
	"fmt"
	"net/http"
	"path/filepath"
	"slices"
	"strings"
)

// IdentifierLength is the number of digits in an Aadhar number.
const IdentifierLength = 12

// AcceptedMediaTypes maps accepted media types to their file extensions.
var AcceptedMediaTypes = map[string][]string{
	"image/png":  {".png"},
	"image/jpeg": {".jpg", ".jpeg"},
}

// AcceptedExtensions lists extensions for the upload control's accept attribute.
func AcceptedExtensions() []string {
	return []string{".png", ".jpg", ".jpeg"}
}

// ValidateIdentifier accepts exactly IdentifierLength ASCII decimal digits.
func ValidateIdentifier(s string) error {
	if len(s) != IdentifierLength {
		return fmt.Errorf("%w: want %d digits, got %d characters", ErrInvalidIdentifier, IdentifierLength, len(s))
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return fmt.Errorf("%w: non-digit at position %d", ErrInvalidIdentifier, i+1)
		}
	}
	return nil
}

// UploadedImage is an image as received from the user. It lives for one request.
type UploadedImage struct {
	Filename  string
	MediaType string
	Data      []byte
}

// NewUploadedImage sniffs the media type of data and rejects anything that
// is not an accepted image type.
func NewUploadedImage(filename string, data []byte) (*UploadedImage, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: empty upload", ErrMissingInput)
	}

	mediaType := http.DetectContentType(data)
	if _, ok := AcceptedMediaTypes[mediaType]; !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedImage, mediaType)
	}
	if ext := strings.ToLower(filepath.Ext(filename)); ext != "" && !slices.Contains(AcceptedExtensions(), ext) {
		return nil, fmt.Errorf("%w: %s extension", ErrUnsupportedImage, ext)
	}

	return &UploadedImage{
		Filename:  filename,
		MediaType: mediaType,
		Data:      data,
	}, nil
}

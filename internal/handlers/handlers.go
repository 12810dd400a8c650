package handlers

import (
	"embed"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"html/template"
	"io"
	"log"
	"net/http"
	"strings"

	"github.com/Brownie44l1/agriscan/internal/predict"
	"github.com/google/uuid"
)

//go:embed templates/index.html
var templateFS embed.FS

var pageTemplate = template.Must(template.ParseFS(templateFS, "templates/index.html"))

// Field names of the upload form.
const (
	imageField      = "image"
	identifierField = "aadhar"
)

type Handler struct {
	service        *predict.Service
	maxUploadBytes int64
}

func NewHandler(service *predict.Service, maxUploadBytes int64) *Handler {
	if maxUploadBytes <= 0 {
		maxUploadBytes = 10 << 20
	}
	return &Handler{
		service:        service,
		maxUploadBytes: maxUploadBytes,
	}
}

func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	status, modelState := "healthy", "ready"
	if err := h.service.Ready(); err != nil {
		status, modelState = "degraded", "unavailable"
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": status, "model": modelState})
}

type outcome struct {
	Success    bool
	Kind       string
	Message    string
	Label      string
	Confidence string
}

type page struct {
	Ready            bool
	ModelError       string
	Accept           string
	IdentifierLength int
	Identifier       string
	ImageURI         template.URL
	Outcome          *outcome
}

func (h *Handler) newPage() *page {
	p := &page{
		Ready:            true,
		Accept:           strings.Join(predict.AcceptedExtensions(), ","),
		IdentifierLength: predict.IdentifierLength,
	}
	if err := h.service.Ready(); err != nil {
		p.Ready = false
		p.ModelError = modelUnavailableMessage(err)
	}
	return p
}

// Index serves the form on GET and handles its submission on POST.
func (h *Handler) Index(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}

	switch r.Method {
	case http.MethodGet, http.MethodHead:
		renderPage(w, http.StatusOK, h.newPage())
	case http.MethodPost:
		h.submitForm(w, r)
	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

func (h *Handler) submitForm(w http.ResponseWriter, r *http.Request) {
	requestID := newRequestID(w)
	p := h.newPage()

	// The banner already carries the model error.
	if err := h.service.Ready(); err != nil {
		log.Printf("[%s] Prediction rejected: %v", requestID, err)
		renderPage(w, statusFor(err), p)
		return
	}

	sub, err := h.readSubmission(w, r)
	if err != nil {
		log.Printf("[%s] Failed to read form: %v", requestID, err)
		p.Outcome = &outcome{Kind: "bad_request", Message: "Could not read the uploaded form. " + err.Error()}
		renderPage(w, http.StatusBadRequest, p)
		return
	}
	p.Identifier = sub.Identifier
	if len(sub.Data) > 0 {
		if mediaType := http.DetectContentType(sub.Data); strings.HasPrefix(mediaType, "image/") {
			p.ImageURI = template.URL("data:" + mediaType + ";base64," + base64.StdEncoding.EncodeToString(sub.Data))
		}
	}

	result, err := h.service.Submit(sub)
	if err != nil {
		log.Printf("[%s] Prediction rejected: %v", requestID, err)
		p.Outcome = &outcome{Kind: predict.Kind(err), Message: displayMessage(err)}
		renderPage(w, statusFor(err), p)
		return
	}

	log.Printf("[%s] Predicted %q with confidence %s%%", requestID, result.Label, result.Percent())
	p.Outcome = &outcome{
		Success:    true,
		Label:      result.Label,
		Confidence: result.Percent(),
	}
	renderPage(w, http.StatusOK, p)
}

type predictResponse struct {
	RequestID      string  `json:"request_id"`
	Label          string  `json:"label,omitempty"`
	Confidence     float64 `json:"confidence,omitempty"`
	ConfidenceText string  `json:"confidence_text,omitempty"`
	Error          string  `json:"error,omitempty"`
	Kind           string  `json:"kind,omitempty"`
}

// PredictFromImage is the JSON flavour of the form submission.
func (h *Handler) PredictFromImage(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	requestID := newRequestID(w)

	if err := h.service.Ready(); err != nil {
		log.Printf("[%s] Prediction rejected: %v", requestID, err)
		writeJSON(w, statusFor(err), predictResponse{RequestID: requestID, Error: displayMessage(err), Kind: predict.Kind(err)})
		return
	}

	sub, err := h.readSubmission(w, r)
	if err != nil {
		log.Printf("[%s] Failed to read form: %v", requestID, err)
		writeJSON(w, http.StatusBadRequest, predictResponse{RequestID: requestID, Error: err.Error(), Kind: "bad_request"})
		return
	}

	result, err := h.service.Submit(sub)
	if err != nil {
		log.Printf("[%s] Prediction rejected: %v", requestID, err)
		writeJSON(w, statusFor(err), predictResponse{RequestID: requestID, Error: displayMessage(err), Kind: predict.Kind(err)})
		return
	}

	writeJSON(w, http.StatusOK, predictResponse{
		RequestID:      requestID,
		Label:          result.Label,
		Confidence:     result.Confidence,
		ConfidenceText: result.Percent() + "%",
	})
}

// readSubmission parses the multipart form. A missing file or identifier is
// not an error here; the service decides what a missing input means.
func (h *Handler) readSubmission(w http.ResponseWriter, r *http.Request) (predict.Submission, error) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadBytes)
	if err := r.ParseMultipartForm(h.maxUploadBytes); err != nil {
		return predict.Submission{}, fmt.Errorf("failed to parse form: %w", err)
	}

	sub := predict.Submission{Identifier: r.FormValue(identifierField)}

	file, header, err := r.FormFile(imageField)
	if errors.Is(err, http.ErrMissingFile) {
		return sub, nil
	}
	if err != nil {
		return sub, fmt.Errorf("failed to read image: %w", err)
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		return sub, fmt.Errorf("failed to read image: %w", err)
	}
	log.Printf("Received file: %s, size: %d bytes", header.Filename, header.Size)

	sub.Filename = header.Filename
	sub.Data = data
	return sub, nil
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, predict.ErrModelUnavailable):
		return http.StatusServiceUnavailable
	case errors.Is(err, predict.ErrInference):
		return http.StatusUnprocessableEntity
	case errors.Is(err, predict.ErrInvalidIdentifier),
		errors.Is(err, predict.ErrMissingInput),
		errors.Is(err, predict.ErrUnsupportedImage):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func displayMessage(err error) string {
	switch {
	case errors.Is(err, predict.ErrModelUnavailable):
		return modelUnavailableMessage(err)
	case errors.Is(err, predict.ErrInvalidIdentifier):
		return "Please enter a valid 12-digit Aadhar number."
	case errors.Is(err, predict.ErrMissingInput):
		return "Please upload an image and enter an Aadhar number."
	case errors.Is(err, predict.ErrUnsupportedImage):
		return "Invalid image format. Supported: JPEG, PNG"
	case errors.Is(err, predict.ErrInference):
		return "An error occurred during prediction: " + err.Error()
	default:
		return err.Error()
	}
}

func modelUnavailableMessage(err error) string {
	return "Prediction is disabled: " + err.Error()
}

func newRequestID(w http.ResponseWriter) string {
	id := uuid.NewString()
	w.Header().Set("X-Request-ID", id)
	return id
}

func renderPage(w http.ResponseWriter, status int, p *page) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	if err := pageTemplate.Execute(w, p); err != nil {
		log.Printf("Failed to render page: %v", err)
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("Failed to encode response: %v", err)
	}
}

package model

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"

	ort "github.com/yalue/onnxruntime_go"
)

// ErrArtifactNotFound reports that the model file or its metadata is missing.
var ErrArtifactNotFound = errors.New("model artifact not found")

// Server runs an ONNX image classifier. The session is opened once and never
// mutated; tensors are allocated per call.
type Server struct {
	session  *ort.DynamicAdvancedSession
	Metadata Metadata
}

// NewServer loads the ONNX model at modelPath and its metadata. libPath, when
// set, points at the onnxruntime shared library.
func NewServer(modelPath, metadataPath, libPath string) (*Server, error) {
	modelPath = filepath.FromSlash(modelPath)
	metadataPath = filepath.FromSlash(metadataPath)

	for _, p := range []string{modelPath, metadataPath} {
		if _, err := os.Stat(p); err != nil {
			if errors.Is(err, os.ErrNotExist) {
				return nil, fmt.Errorf("%w: %s", ErrArtifactNotFound, p)
			}
			return nil, fmt.Errorf("failed to stat %s: %w", p, err)
		}
	}

	metadata, err := readMetadata(metadataPath)
	if err != nil {
		return nil, err
	}

	if !ort.IsInitialized() {
		if libPath != "" {
			ort.SetSharedLibraryPath(libPath)
		}
		if err := ort.InitializeEnvironment(); err != nil {
			return nil, fmt.Errorf("failed to initialize ONNX environment: %w", err)
		}
	}

	session, err := ort.NewDynamicAdvancedSession(modelPath,
		[]string{metadata.InputName}, []string{metadata.OutputName}, nil)
	if err != nil {
		ort.DestroyEnvironment()
		return nil, fmt.Errorf("failed to create ONNX session: %w", err)
	}

	return &Server{
		session:  session,
		Metadata: metadata,
	}, nil
}

func readMetadata(path string) (Metadata, error) {
	metaFile, err := os.ReadFile(path)
	if err != nil {
		return Metadata{}, fmt.Errorf("failed to read metadata: %w", err)
	}

	var metadata Metadata
	if err := json.Unmarshal(metaFile, &metadata); err != nil {
		return Metadata{}, fmt.Errorf("failed to parse metadata: %w", err)
	}
	if len(metadata.Classes) == 0 {
		return Metadata{}, errors.New("metadata lists no classes")
	}
	metadata.applyDefaults()

	if n := metadata.OutputShape[len(metadata.OutputShape)-1]; n != int64(len(metadata.Classes)) {
		return Metadata{}, fmt.Errorf("output shape has %d classes, metadata lists %d", n, len(metadata.Classes))
	}
	return metadata, nil
}

// Predict decodes an encoded PNG/JPEG image and classifies it.
func (s *Server) Predict(data []byte) (*Prediction, error) {
	img, format, err := decodeImage(data)
	if err != nil {
		return nil, err
	}
	log.Printf("Image format: %s, dimensions: %dx%d", format, img.Bounds().Dx(), img.Bounds().Dy())

	inputData := preprocess(img, s.Metadata.ImageSize, s.Metadata.Mean, s.Metadata.Std)
	outputData, err := s.run(inputData)
	if err != nil {
		return nil, err
	}

	return s.Metadata.decode(outputData), nil
}

func (s *Server) run(inputData []float32) ([]float32, error) {
	inputShape := ort.NewShape(s.Metadata.InputShape...)
	if int64(len(inputData)) != inputShape.FlattenedSize() {
		return nil, fmt.Errorf("expected %d input values, got %d", inputShape.FlattenedSize(), len(inputData))
	}

	inputTensor, err := ort.NewTensor(inputShape, inputData)
	if err != nil {
		return nil, fmt.Errorf("failed to create input tensor: %w", err)
	}
	defer inputTensor.Destroy()

	outputTensor, err := ort.NewEmptyTensor[float32](ort.NewShape(s.Metadata.OutputShape...))
	if err != nil {
		return nil, fmt.Errorf("failed to create output tensor: %w", err)
	}
	defer outputTensor.Destroy()

	if err := s.session.Run([]ort.ArbitraryTensor{inputTensor}, []ort.ArbitraryTensor{outputTensor}); err != nil {
		return nil, fmt.Errorf("inference failed: %w", err)
	}

	out := make([]float32, len(outputTensor.GetData()))
	copy(out, outputTensor.GetData())
	return out, nil
}

// decode turns raw model output into a prediction over the known classes.
func (m Metadata) decode(output []float32) *Prediction {
	if len(output) > len(m.Classes) {
		output = output[:len(m.Classes)]
	}
	probs := output
	if m.ApplySoftmax {
		probs = softmax(output)
	}

	idx := argmax(probs)
	return &Prediction{
		Label:         m.Classes[idx],
		Index:         idx,
		Probabilities: probs,
	}
}

func (s *Server) Close() {
	if s.session != nil {
		s.session.Destroy()
	}
	ort.DestroyEnvironment()
}

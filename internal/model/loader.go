package model

import (
	"log"
	"sync"
)

// OpenFunc produces the classifier. It is called at most once per Loader.
type OpenFunc func() (Classifier, error)

// Loader hands out a single classifier for the life of the process. Whatever
// the first open returned, classifier or error, every later caller gets too.
type Loader struct {
	once sync.Once
	open OpenFunc

	classifier Classifier
	err        error
}

func NewLoader(open OpenFunc) *Loader {
	return &Loader{open: open}
}

// OpenServer returns an OpenFunc backed by an ONNX Server.
func OpenServer(modelPath, metadataPath, libPath string) OpenFunc {
	return func() (Classifier, error) {
		log.Printf("Loading model from: %s", modelPath)
		s, err := NewServer(modelPath, metadataPath, libPath)
		if err != nil {
			return nil, err
		}
		log.Printf("Classes: %v", s.Metadata.Classes)
		return s, nil
	}
}

// Get opens the classifier on first use and returns the cached outcome.
func (l *Loader) Get() (Classifier, error) {
	l.once.Do(func() {
		l.classifier, l.err = l.open()
		if l.err != nil {
			log.Printf("Model unavailable: %v", l.err)
		}
	})
	return l.classifier, l.err
}

// Close releases the classifier if it holds native resources.
func (l *Loader) Close() {
	c, err := l.Get()
	if err != nil {
		return
	}
	if closer, ok := c.(interface{ Close() }); ok {
		closer.Close()
	}
}

package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/Brownie44l1/agriscan/internal/config"
	"github.com/Brownie44l1/agriscan/internal/handlers"
	"github.com/Brownie44l1/agriscan/internal/model"
	"github.com/Brownie44l1/agriscan/internal/predict"
)

func enableCORS(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "POST, GET, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}

		next(w, r)
	}
}

// projectPath resolves p against the project root, so the server finds
// models/ whether it is started from the root or from cmd/server.
func projectPath(p string) string {
	if filepath.IsAbs(p) {
		return p
	}
	wd, err := os.Getwd()
	if err != nil {
		log.Fatalf("Failed to get working directory: %v", err)
	}
	if filepath.Base(wd) == "server" {
		wd = filepath.Join(wd, "../..")
	}
	return filepath.Join(wd, filepath.FromSlash(p))
}

func main() {
	cfg := config.Load()

	modelPath := projectPath(cfg.ModelPath)
	metadataPath := projectPath(cfg.MetadataPath)

	loader := model.NewLoader(model.OpenServer(modelPath, metadataPath, cfg.OnnxRuntimeLib))
	defer loader.Close()

	// Load eagerly; a failure leaves the page up with prediction disabled.
	if _, err := loader.Get(); err != nil {
		log.Printf("WARNING: prediction disabled: %v", err)
	} else {
		log.Printf("Model loaded: %s", modelPath)
	}

	service := predict.NewService(loader)
	handler := handlers.NewHandler(service, cfg.MaxUploadBytes)

	mux := http.NewServeMux()
	mux.HandleFunc("/", handler.Index)
	mux.HandleFunc("/health", enableCORS(handler.Health))
	mux.HandleFunc("/predict/image", enableCORS(handler.PredictFromImage))

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Printf("Server starting on port %s", cfg.Port)
		log.Println("Endpoints:")
		log.Println("  GET  /              - Upload form")
		log.Println("  POST /              - Form submission")
		log.Println("  GET  /health        - Health check")
		log.Println("  POST /predict/image - Predict from image upload (JSON)")
		log.Printf("Upload test: curl -X POST -F \"image=@cow.jpg\" -F \"aadhar=123456789012\" http://localhost:%s/predict/image", cfg.Port)

		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("Server failed: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Printf("Server forced to shut down: %v", err)
	}
	log.Println("Server stopped")
}

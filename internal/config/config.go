package config

import (
	"log"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

const (
	DefaultModelPath    = "models/resnet50_bovine.onnx"
	DefaultMetadataPath = "models/resnet50_bovine.json"
)

type Config struct {
	Port string

	ModelPath      string
	MetadataPath   string
	OnnxRuntimeLib string

	MaxUploadBytes int64
}

// Load reads an optional .env file, then the environment.
func Load() *Config {
	err := godotenv.Load()
	if err != nil && !os.IsNotExist(err) {
		log.Printf("Warning: could not load .env file: %v", err)
	}

	maxUploadMB, err := strconv.Atoi(getEnv("MAX_UPLOAD_MB", "10"))
	if err != nil || maxUploadMB <= 0 {
		log.Printf("Invalid MAX_UPLOAD_MB, using 10")
		maxUploadMB = 10
	}

	return &Config{
		Port:           getEnv("PORT", "8080"),
		ModelPath:      getEnv("MODEL_PATH", DefaultModelPath),
		MetadataPath:   getEnv("METADATA_PATH", DefaultMetadataPath),
		OnnxRuntimeLib: getEnv("ONNXRUNTIME_LIB", ""),
		MaxUploadBytes: int64(maxUploadMB) << 20,
	}
}

func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

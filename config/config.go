package config

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strconv"
	"time"
)

const (
	DefaultStoreSubDir   = "store"
	DefaultHoldingSubDir = "holding"

	defaultTextEmbeddingDim = 512
	defaultFaceEmbeddingDim = 512

	defaultFaceConfThreshold  = 0.60
	defaultFaceIoUThreshold   = 0.40
	defaultFaceDedupThreshold = 0.70
	defaultFaceCropMargin     = 0.20

	defaultVideoSampleStepSec = 1
	defaultVideoSampleCap     = 60
	defaultAnimatedSampleCap  = 10

	defaultDecodeTimeoutSec   = 30
	defaultRandomSampleCutoff = 10000
)

type Config struct {
	// data root; store tree, holding dir and database files live under it
	DataDirectory string

	// database paths
	DatabasePath        string // main schema: media_files, faces, table_stats
	StagingDatabasePath string // staging queue, kept apart so queue churn never bloats or locks the main store

	// content-addressed store layout
	StoreRoot  string // full-calculated path of the hash tree root
	HoldingDir string // temp holding area between staging and commit

	// embedding dimensions; the BLOB columns are sized from these
	TextEmbeddingDim int
	FaceEmbeddingDim int

	// face pipeline tuning
	FaceConfThreshold  float32
	FaceIoUThreshold   float32
	FaceDedupThreshold float32
	FaceCropMargin     float32

	// frame sampling
	VideoSampleStepSec int
	VideoSampleCap     int
	AnimatedSampleCap  int

	// external collaborators
	TextEmbedEndpoint     string // HTTP endpoint of the text embedding service
	FaceDetectorModelPath string // RetinaFace ONNX
	FaceEmbedderModelPath string // ArcFace ONNX
	FFmpegPath            string
	FFprobePath           string
	DecodeTimeout         time.Duration

	// search
	RandomSampleCutoff int64

	// http server
	ListenAddr    string
	AllowedOrigin string
}

func getEnvOrDefault(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

func getEnvIntOrDefault(envVar string, defaultVal int) int {
	valStr := os.Getenv(envVar)
	if valStr == "" {
		return defaultVal
	}
	val, err := strconv.Atoi(valStr)
	if err != nil || val <= 0 {
		log.Printf("Warning: Invalid %s '%s'. Using default %d. Error: %v", envVar, valStr, defaultVal, err)
		return defaultVal
	}
	return val
}

func getEnvFloatOrDefault(envVar string, defaultVal float32) float32 {
	valStr := os.Getenv(envVar)
	if valStr == "" {
		return defaultVal
	}
	val, err := strconv.ParseFloat(valStr, 32)
	if err != nil || val <= 0 {
		log.Printf("Warning: Invalid %s '%s'. Using default %f. Error: %v", envVar, valStr, defaultVal, err)
		return defaultVal
	}
	return float32(val)
}

func LoadConfig() (Config, error) {
	dataDir := getEnvOrDefault("DATA_DIRECTORY", filepath.Join(".", "haven_data"))
	absDataDir, err := filepath.Abs(dataDir)
	if err != nil {
		return Config{}, fmt.Errorf("failed to get absolute path for data directory '%s': %w", dataDir, err)
	}

	dbPath := getEnvOrDefault("DATABASE_PATH", filepath.Join(absDataDir, "haven.db"))
	stagingDBPath := getEnvOrDefault("STAGING_DATABASE_PATH", filepath.Join(absDataDir, "staging.db"))

	storeSubDir := getEnvOrDefault("STORE_SUBDIR", DefaultStoreSubDir)
	holdingSubDir := getEnvOrDefault("HOLDING_SUBDIR", DefaultHoldingSubDir)

	decodeTimeout := time.Duration(getEnvIntOrDefault("DECODE_TIMEOUT_SECONDS", defaultDecodeTimeoutSec)) * time.Second

	cfg := Config{
		DataDirectory:       absDataDir,
		DatabasePath:        dbPath,
		StagingDatabasePath: stagingDBPath,
		StoreRoot:           filepath.Join(absDataDir, storeSubDir),
		HoldingDir:          filepath.Join(absDataDir, holdingSubDir),

		TextEmbeddingDim: getEnvIntOrDefault("TEXT_EMBEDDING_DIM", defaultTextEmbeddingDim),
		FaceEmbeddingDim: getEnvIntOrDefault("FACE_EMBEDDING_DIM", defaultFaceEmbeddingDim),

		FaceConfThreshold:  getEnvFloatOrDefault("FACE_CONF_THRESHOLD", defaultFaceConfThreshold),
		FaceIoUThreshold:   getEnvFloatOrDefault("FACE_IOU_THRESHOLD", defaultFaceIoUThreshold),
		FaceDedupThreshold: getEnvFloatOrDefault("FACE_DEDUP_THRESHOLD", defaultFaceDedupThreshold),
		FaceCropMargin:     getEnvFloatOrDefault("FACE_CROP_MARGIN", defaultFaceCropMargin),

		VideoSampleStepSec: getEnvIntOrDefault("VIDEO_SAMPLE_STEP_SECONDS", defaultVideoSampleStepSec),
		VideoSampleCap:     getEnvIntOrDefault("VIDEO_SAMPLE_CAP", defaultVideoSampleCap),
		AnimatedSampleCap:  getEnvIntOrDefault("ANIMATED_SAMPLE_CAP", defaultAnimatedSampleCap),

		TextEmbedEndpoint:     getEnvOrDefault("TEXT_EMBED_ENDPOINT", "http://localhost:8570/embed"),
		FaceDetectorModelPath: getEnvOrDefault("FACE_DETECTOR_MODEL_PATH", "./models/retinaface_640.onnx"),
		FaceEmbedderModelPath: getEnvOrDefault("FACE_EMBEDDER_MODEL_PATH", "./models/arcface_r50.onnx"),
		FFmpegPath:            getEnvOrDefault("FFMPEG_PATH", "ffmpeg"),
		FFprobePath:           getEnvOrDefault("FFPROBE_PATH", "ffprobe"),
		DecodeTimeout:         decodeTimeout,

		RandomSampleCutoff: int64(getEnvIntOrDefault("RANDOM_SAMPLE_CUTOFF", defaultRandomSampleCutoff)),

		ListenAddr:    getEnvOrDefault("LISTEN_ADDR", ":8560"),
		AllowedOrigin: getEnvOrDefault("ALLOWED_ORIGIN", "http://localhost:5173"),
	}

	return cfg, nil
}

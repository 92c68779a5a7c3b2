package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/joho/godotenv"
	"github.com/rs/cors"

	"github.com/haven-media/haven/archive"
	"github.com/haven-media/haven/config"
	"github.com/haven-media/haven/database"
	"github.com/haven-media/haven/decode"
	"github.com/haven-media/haven/embedding"
	"github.com/haven-media/haven/faces"
	"github.com/haven-media/haven/handlers"
	"github.com/haven-media/haven/ingest"
	"github.com/haven-media/haven/media"
	"github.com/haven-media/haven/models"
	"github.com/haven-media/haven/repository"
	"github.com/haven-media/haven/search"
	"github.com/haven-media/haven/staging"
	"github.com/haven-media/haven/vision"
)

func main() {
	err := godotenv.Load()
	if err != nil {
		log.Println("No .env file found, using environment variables or defaults")
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("FATAL: Failed to load configuration: %v", err)
	}

	if err := os.MkdirAll(cfg.DataDirectory, 0755); err != nil {
		log.Fatalf("FATAL: Failed to create data directory: %v", err)
	}

	db, err := database.InitGormDB(cfg.DatabasePath)
	if err != nil {
		log.Fatalf("FATAL: Failed to initialize database: %v", err)
	}
	stagingDB, err := database.InitStagingDB(cfg.StagingDatabasePath)
	if err != nil {
		log.Fatalf("FATAL: Failed to initialize staging database: %v", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		log.Fatalf("FATAL: Failed to get underlying sql.DB: %v", err)
	}

	statsRepo := repository.NewStatsRepository(db)
	mediaRepo := repository.NewMediaRepository(db, statsRepo)
	faceRepo := repository.NewFaceRepository(db)
	stagingRepo := repository.NewStagingRepository(stagingDB)

	// heal the maintained counter if a past partial failure zeroed it
	if err := statsRepo.Repair(models.MediaFile{}.TableName()); err != nil {
		log.Printf("warning: row count repair failed: %v", err)
	}

	store, err := media.NewHashStore(cfg.StoreRoot)
	if err != nil {
		log.Fatalf("FATAL: Failed to initialize content store: %v", err)
	}

	if missingOnDisk, missingInDB, err := media.Reconcile(store, mediaRepo); err != nil {
		log.Printf("warning: reconcile scan failed: %v", err)
	} else if len(missingOnDisk) > 0 || len(missingInDB) > 0 {
		log.Printf("reconcile: %d records missing on disk, %d files missing in database",
			len(missingOnDisk), len(missingInDB))
	}

	detector := vision.NewRetinaFaceDetector(cfg.FaceDetectorModelPath)
	defer detector.Close()
	embedder := vision.NewArcFaceEmbedder(cfg.FaceEmbedderModelPath)
	defer embedder.Close()
	frameSource := decode.NewFFmpegSource(cfg.FFmpegPath, cfg.FFprobePath, cfg.DecodeTimeout)

	pipeline := faces.NewPipeline(detector, embedder, frameSource, faces.Options{
		ConfThreshold:      cfg.FaceConfThreshold,
		IoUThreshold:       cfg.FaceIoUThreshold,
		DedupThreshold:     cfg.FaceDedupThreshold,
		CropMargin:         cfg.FaceCropMargin,
		VideoSampleStepSec: cfg.VideoSampleStepSec,
		VideoSampleCap:     cfg.VideoSampleCap,
		AnimatedSampleCap:  cfg.AnimatedSampleCap,
	})

	textEmbedder := embedding.NewHTTPTextEmbedder(cfg.TextEmbedEndpoint, cfg.TextEmbeddingDim, 30*time.Second)

	queue := staging.NewQueue(stagingRepo, cfg.HoldingDir)
	service := &ingest.Service{
		DB:           db,
		MediaRepo:    mediaRepo,
		FaceRepo:     faceRepo,
		Store:        store,
		Queue:        queue,
		Pipeline:     pipeline,
		TextEmbedder: textEmbedder,
		HoldingDir:   cfg.HoldingDir,
	}
	coordinator := ingest.NewCoordinator(service)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go coordinator.Run(ctx)

	// pick up anything left in staging or holding from a previous run
	coordinator.RequestIngest()

	engine := search.NewEngine(sqlDB)
	sampler := &search.Sampler{
		DB:       sqlDB,
		RowCount: func(_ context.Context, tableName string) (int64, error) { return statsRepo.RowCount(tableName) },
		Cutoff:   cfg.RandomSampleCutoff,
	}

	importer := &archive.Importer{
		DB:           db,
		MediaRepo:    mediaRepo,
		FaceRepo:     faceRepo,
		Store:        store,
		TextEmbedder: textEmbedder,
	}

	log.Printf("Using database: %s", cfg.DatabasePath)
	log.Printf("Using staging database: %s", cfg.StagingDatabasePath)
	log.Printf("Content store root: %s", cfg.StoreRoot)

	r := chi.NewRouter()

	corsOptions := cors.Options{
		AllowedOrigins:   []string{cfg.AllowedOrigin},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-CSRF-Token"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           300,
	}
	corsHandler := cors.New(corsOptions)

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(10 * time.Minute))
	r.Use(corsHandler.Handler)

	ingestHandler := &handlers.IngestHandler{Queue: queue, StagingRepo: stagingRepo, Coordinator: coordinator}
	mediaHandler := &handlers.MediaHandler{MediaRepo: mediaRepo, FaceRepo: faceRepo, Store: store, Service: service}
	searchHandler := &handlers.SearchHandler{Engine: engine, Sampler: sampler, TextEmbedder: textEmbedder}
	archiveHandler := &handlers.ArchiveHandler{DB: sqlDB, Store: store, Importer: importer, ArchiveDir: filepath.Join(cfg.DataDirectory, "archives")}
	statsHandler := &handlers.StatsHandler{StatsRepo: statsRepo, StagingRepo: stagingRepo}

	r.Route("/api", func(r chi.Router) {
		r.Route("/ingest", func(r chi.Router) {
			r.Post("/", ingestHandler.EnqueuePaths)
			r.Get("/status", ingestHandler.Status)
		})

		r.Route("/media", func(r chi.Router) {
			r.Get("/random", searchHandler.Random)
			r.Route("/{content_hash}", func(r chi.Router) {
				r.Get("/", mediaHandler.GetMedia)
				r.Get("/content", mediaHandler.ServeContent)
				r.Get("/faces", mediaHandler.ListFaces)
				r.Put("/description", mediaHandler.UpdateDescription)
				r.Delete("/", mediaHandler.DeleteMedia)
			})
		})

		r.Post("/search", searchHandler.Search)

		r.Route("/archive", func(r chi.Router) {
			r.Post("/export", archiveHandler.Export)
			r.Post("/import", archiveHandler.Import)
		})

		r.Get("/stats", statsHandler.GetStats)
	})

	log.Printf("Starting server on %s", cfg.ListenAddr)
	if err := http.ListenAndServe(cfg.ListenAddr, r); err != nil {
		log.Fatalf("FATAL: Server failed to start: %v", err)
	}
}

package main

import (
	"context"
	"log"
	"os"
	"path/filepath"
	"strings"

	"alfredoptarigan/cto-screener/internal/config"
	"alfredoptarigan/cto-screener/internal/services"
)

// Calibration documents live in one directory per label:
//
//	calibration_docs/hired/*.json
//	calibration_docs/rejected/*.json
//	calibration_docs/rubric/*.pdf
func main() {
	log.Println("🚀 Starting calibration ingestion...")

	cfg := config.Load()
	if cfg.Qdrant.URL == "" {
		log.Fatal("❌ QDRANT_URL is required")
	}

	root := "./calibration_docs"
	if len(os.Args) > 1 {
		root = os.Args[1]
	}

	geminiService, err := services.NewGeminiService(cfg.Gemini.APIKey, cfg.Gemini.Model, cfg.Gemini.EmbedModel)
	if err != nil {
		log.Fatalf("❌ Failed to initialize Gemini: %v", err)
	}

	store, err := services.NewQdrantStore(cfg.Qdrant.URL, cfg.Qdrant.APIKey, cfg.Qdrant.Collection)
	if err != nil {
		log.Fatalf("❌ Failed to initialize Qdrant: %v", err)
	}

	ctx := context.Background()
	if err := store.InitCollection(ctx); err != nil {
		log.Fatalf("❌ Failed to initialize collection: %v", err)
	}

	ingestor := services.NewCalibrationIngestor(
		store,
		geminiService,
		services.NewDocumentExtractor(),
		services.NewTextChunker(),
	)

	successCount := 0
	failCount := 0

	for _, label := range []string{services.CalibrationHired, services.CalibrationRejected, services.CalibrationRubric} {
		files, err := filepath.Glob(filepath.Join(root, label, "*"))
		if err != nil {
			log.Fatalf("❌ Invalid calibration directory: %v", err)
		}

		for _, path := range files {
			log.Printf("\n📄 Processing: %s (%s)", filepath.Base(path), label)

			data, err := os.ReadFile(path)
			if err != nil {
				log.Printf("   ❌ Failed to read file: %v", err)
				failCount++
				continue
			}

			result, err := ingestor.Ingest(ctx, services.CalibrationDocument{
				Label:    label,
				Filename: filepath.Base(path),
				Data:     data,
			})
			if err != nil {
				log.Printf("   ❌ Failed to ingest: %v", err)
				failCount++
				continue
			}

			log.Printf("   ✅ %d pages, %d/%d chunks stored", result.Pages, result.Stored, result.Chunks)
			if result.Failures > 0 {
				failCount++
				continue
			}
			successCount++
		}
	}

	log.Println("\n" + strings.Repeat("=", 60))
	log.Printf("📊 Ingestion Summary:")
	log.Printf("   ✅ Successful: %d documents", successCount)
	log.Printf("   ❌ Failed: %d documents", failCount)
	log.Println(strings.Repeat("=", 60))

	if failCount > 0 {
		log.Println("⚠️  Some documents failed to ingest. Please check the logs above.")
		os.Exit(1)
	}

	log.Println("✅ All documents ingested successfully!")
}

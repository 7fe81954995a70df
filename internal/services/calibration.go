package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"path/filepath"
	"strings"
)

var ErrCalibrationLabel = errors.New("calibration label must be hired, rejected or rubric")

type CalibrationDocument struct {
	Label    string
	Source   string
	Filename string
	Data     []byte
}

type CalibrationResult struct {
	DocID    string `json:"doc_id"`
	Label    string `json:"label"`
	Source   string `json:"source"`
	Pages    int    `json:"pages"`
	Chunks   int    `json:"chunks"`
	Stored   int    `json:"stored"`
	Failures int    `json:"failures"`
}

// CalibrationIngestor loads labelled reference material into the
// calibration store. Re-ingesting a document replaces its chunks.
type CalibrationIngestor interface {
	Ingest(ctx context.Context, doc CalibrationDocument) (*CalibrationResult, error)
}

type calibrationIngestor struct {
	store     CalibrationStore
	gemini    GeminiService
	extractor DocumentExtractor
	chunker   TextChunker
}

func NewCalibrationIngestor(store CalibrationStore, gemini GeminiService, extractor DocumentExtractor, chunker TextChunker) CalibrationIngestor {
	return &calibrationIngestor{
		store:     store,
		gemini:    gemini,
		extractor: extractor,
		chunker:   chunker,
	}
}

func validCalibrationLabel(label string) bool {
	switch label {
	case CalibrationHired, CalibrationRejected, CalibrationRubric:
		return true
	}
	return false
}

// CalibrationDocID derives the stable id chunks are grouped under.
func CalibrationDocID(label, filename string) string {
	base := strings.TrimSuffix(filepath.Base(filename), filepath.Ext(filename))
	base = strings.ToLower(strings.Join(strings.Fields(base), "_"))
	return fmt.Sprintf("%s_%s", label, base)
}

func (c *calibrationIngestor) Ingest(ctx context.Context, doc CalibrationDocument) (*CalibrationResult, error) {
	if !validCalibrationLabel(doc.Label) {
		return nil, fmt.Errorf("%w: %q", ErrCalibrationLabel, doc.Label)
	}
	if doc.Source == "" {
		doc.Source = filepath.Base(doc.Filename)
	}

	extracted, err := c.extractor.Extract(doc.Filename, doc.Data)
	if err != nil {
		return nil, err
	}

	// profile exports are chunked per profile so one example never bleeds
	// into the next
	var chunks []string
	for _, section := range extracted.Sections {
		chunks = append(chunks, c.chunker.ChunkText(section, defaultChunkSize, defaultChunkOverlap)...)
	}

	result := &CalibrationResult{
		DocID:  CalibrationDocID(doc.Label, doc.Filename),
		Label:  doc.Label,
		Source: doc.Source,
		Pages:  extracted.PageCount,
		Chunks: len(chunks),
	}

	if err := c.store.DeleteDocument(ctx, result.DocID); err != nil {
		return nil, err
	}

	log.Printf("🔄 Embedding %d chunks of %s...\n", len(chunks), result.DocID)
	for i, chunk := range chunks {
		embedding, err := c.gemini.GenerateEmbedding(ctx, chunk)
		if err != nil {
			log.Printf("❌ Failed to generate embedding for chunk %d: %v\n", i+1, err)
			result.Failures++
			continue
		}
		if err := c.store.UpsertChunk(ctx, result.DocID, doc.Label, doc.Source, chunk, embedding); err != nil {
			log.Printf("❌ Failed to store chunk %d: %v\n", i+1, err)
			result.Failures++
			continue
		}
		result.Stored++
	}

	log.Printf("✅ Ingested %s: %d/%d chunks stored\n", result.DocID, result.Stored, result.Chunks)
	return result, nil
}

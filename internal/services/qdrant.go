package services

import (
	"context"
	"fmt"
	"log"
	"net/url"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/qdrant/go-client/qdrant"
)

// Calibration labels describe what a stored example illustrates.
const (
	CalibrationHired    = "hired"
	CalibrationRejected = "rejected"
	CalibrationRubric   = "rubric"
)

type CalibrationMatch struct {
	DocID  string
	Label  string
	Source string
	Text   string
	Score  float32
}

// CalibrationStore holds embedded calibration examples: profiles of past
// hires and rejections, and rubric excerpts.
type CalibrationStore interface {
	InitCollection(ctx context.Context) error
	UpsertChunk(ctx context.Context, docID, label, source, text string, embedding []float32) error
	SearchSimilar(ctx context.Context, queryEmbedding []float32, label string, limit int) ([]CalibrationMatch, error)
	DeleteDocument(ctx context.Context, docID string) error
}

type qdrantStore struct {
	client         *qdrant.Client
	collectionName string
	vectorSize     uint64
}

func NewQdrantStore(urlStr, apiKey, collectionName string) (CalibrationStore, error) {
	parsed, err := url.Parse(urlStr)
	if err != nil {
		return nil, fmt.Errorf("invalid Qdrant URL: %w", err)
	}

	host := parsed.Hostname()
	useTLS := parsed.Scheme == "https"

	// gRPC port
	port := 6334
	if p := parsed.Port(); p != "" {
		if v, err := strconv.Atoi(p); err == nil {
			port = v
		}
	}

	client, err := qdrant.NewClient(&qdrant.Config{
		Host:   host,
		Port:   port,
		APIKey: apiKey,
		UseTLS: useTLS,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create qdrant client: %w", err)
	}

	return &qdrantStore{
		client:         client,
		collectionName: collectionName,
		vectorSize:     768, // text-embedding-004
	}, nil
}

// InitCollection implements CalibrationStore.
func (q *qdrantStore) InitCollection(ctx context.Context) error {
	exists, err := q.client.CollectionExists(ctx, q.collectionName)
	if err != nil {
		return fmt.Errorf("failed to check collection: %w", err)
	}

	if exists {
		log.Printf("✅ Qdrant collection '%s' already exists\n", q.collectionName)
		return nil
	}

	err = q.client.CreateCollection(ctx, &qdrant.CreateCollection{
		CollectionName: q.collectionName,
		VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
			Size:     q.vectorSize,
			Distance: qdrant.Distance_Cosine,
		}),
	})
	if err != nil {
		return fmt.Errorf("failed to create collection: %w", err)
	}

	log.Printf("✅ Qdrant collection '%s' created successfully\n", q.collectionName)
	return nil
}

// UpsertChunk implements CalibrationStore.
func (q *qdrantStore) UpsertChunk(ctx context.Context, docID, label, source, text string, embedding []float32) error {
	point := &qdrant.PointStruct{
		Id:      qdrant.NewID(uuid.NewString()),
		Vectors: qdrant.NewVectors(embedding...),
		Payload: qdrant.NewValueMap(map[string]interface{}{
			"doc_id": docID,
			"label":  label,
			"source": source,
			"text":   text,
		}),
	}

	_, err := q.client.Upsert(ctx, &qdrant.UpsertPoints{
		CollectionName: q.collectionName,
		Points:         []*qdrant.PointStruct{point},
	})
	if err != nil {
		return fmt.Errorf("failed to upsert point: %w", err)
	}
	return nil
}

// SearchSimilar implements CalibrationStore. An empty label searches all.
func (q *qdrantStore) SearchSimilar(ctx context.Context, queryEmbedding []float32, label string, limit int) ([]CalibrationMatch, error) {
	var filter *qdrant.Filter
	if label != "" {
		filter = &qdrant.Filter{
			Must: []*qdrant.Condition{
				qdrant.NewMatch("label", label),
			},
		}
	}

	points, err := q.client.Query(ctx, &qdrant.QueryPoints{
		CollectionName: q.collectionName,
		Query:          qdrant.NewQuery(queryEmbedding...),
		Filter:         filter,
		Limit:          qdrant.PtrOf(uint64(limit)),
		WithPayload:    qdrant.NewWithPayload(true),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to search: %w", err)
	}

	matches := make([]CalibrationMatch, 0, len(points))
	for _, point := range points {
		matches = append(matches, CalibrationMatch{
			DocID:  payloadString(point.Payload, "doc_id"),
			Label:  payloadString(point.Payload, "label"),
			Source: payloadString(point.Payload, "source"),
			Text:   payloadString(point.Payload, "text"),
			Score:  point.Score,
		})
	}
	return matches, nil
}

// DeleteDocument implements CalibrationStore.
func (q *qdrantStore) DeleteDocument(ctx context.Context, docID string) error {
	_, err := q.client.Delete(ctx, &qdrant.DeletePoints{
		CollectionName: q.collectionName,
		Points: &qdrant.PointsSelector{
			PointsSelectorOneOf: &qdrant.PointsSelector_Filter{
				Filter: &qdrant.Filter{
					Must: []*qdrant.Condition{
						qdrant.NewMatch("doc_id", docID),
					},
				},
			},
		},
	})
	if err != nil {
		return fmt.Errorf("failed to delete document: %w", err)
	}
	return nil
}

func payloadString(payload map[string]*qdrant.Value, key string) string {
	v, ok := payload[key]
	if !ok {
		return ""
	}
	if s, ok := v.GetKind().(*qdrant.Value_StringValue); ok {
		return s.StringValue
	}
	return ""
}

// CalibrationRetriever finds stored examples similar to a candidate. It is
// optional context for the evaluator, so every failure yields "".
type CalibrationRetriever interface {
	Retrieve(ctx context.Context, profileSummary string) string
}

type calibrationRetriever struct {
	store  CalibrationStore
	gemini GeminiService
	limit  int
}

func NewCalibrationRetriever(store CalibrationStore, gemini GeminiService, limit int) CalibrationRetriever {
	if store == nil || gemini == nil {
		return noopRetriever{}
	}
	return &calibrationRetriever{store: store, gemini: gemini, limit: limit}
}

func (c *calibrationRetriever) Retrieve(ctx context.Context, profileSummary string) string {
	embedding, err := c.gemini.GenerateEmbedding(ctx, profileSummary)
	if err != nil {
		log.Printf("⚠️  Calibration embedding failed: %v\n", err)
		return ""
	}

	matches, err := c.store.SearchSimilar(ctx, embedding, "", c.limit)
	if err != nil {
		log.Printf("⚠️  Calibration search failed: %v\n", err)
		return ""
	}

	var sb strings.Builder
	for i, m := range matches {
		if i > 0 {
			sb.WriteString("\n\n---\n\n")
		}
		fmt.Fprintf(&sb, "[%s, %s]\n%s", strings.ToUpper(m.Label), m.Source, m.Text)
	}
	return sb.String()
}

type noopRetriever struct{}

func (noopRetriever) Retrieve(context.Context, string) string { return "" }

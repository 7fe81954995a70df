package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"

	"github.com/google/uuid"

	"alfredoptarigan/cto-screener/internal/models"
	"alfredoptarigan/cto-screener/internal/repositories"
)

type BatchStatus string

const (
	BatchProcessing BatchStatus = "processing"
	BatchCompleted  BatchStatus = "completed"
)

type BatchResult struct {
	Status    BatchStatus     `json:"status"`
	Processed int             `json:"processed"`
	Remaining int64           `json:"remaining"`
	Results   []ProcessResult `json:"results,omitempty"`
}

// BatchRunner processes one page of a session per call. The caller keeps
// calling until the status is completed.
type BatchRunner interface {
	RunBatch(ctx context.Context, sessionID uuid.UUID) (*BatchResult, error)
}

type batchRunner struct {
	sessions    repositories.SessionRepository
	candidates  repositories.CandidateRepository
	screening   ScreeningService
	notifier    Notifier
	batchSize   int
	concurrency int
}

// NewBatchRunner builds a runner that processes up to batchSize candidates
// per call with at most concurrency of them in flight. A concurrency of 1
// processes the page sequentially.
func NewBatchRunner(
	sessions repositories.SessionRepository,
	candidates repositories.CandidateRepository,
	screening ScreeningService,
	notifier Notifier,
	batchSize int,
	concurrency int,
) BatchRunner {
	if batchSize <= 0 {
		batchSize = 2
	}
	if concurrency <= 0 {
		concurrency = 1
	}
	if notifier == nil {
		notifier = NewNoopNotifier()
	}
	return &batchRunner{
		sessions:    sessions,
		candidates:  candidates,
		screening:   screening,
		notifier:    notifier,
		batchSize:   batchSize,
		concurrency: concurrency,
	}
}

func (b *batchRunner) RunBatch(ctx context.Context, sessionID uuid.UUID) (*BatchResult, error) {
	if _, err := b.sessions.FindByID(ctx, sessionID); err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrSessionNotFound, sessionID)
		}
		return nil, err
	}

	started, err := b.sessions.MarkProcessing(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if started {
		log.Printf("🚀 Session %s started\n", sessionID)
	}

	pending, err := b.candidates.FindPending(ctx, sessionID, b.batchSize)
	if err != nil {
		return nil, err
	}

	if len(pending) == 0 {
		remaining, err := b.candidates.CountUnfinished(ctx, sessionID)
		if err != nil {
			return nil, err
		}
		if remaining > 0 {
			// another run holds live claims on the rest
			return b.report(ctx, sessionID, &BatchResult{Status: BatchProcessing, Remaining: remaining}), nil
		}
		if err := b.sessions.MarkCompleted(ctx, sessionID); err != nil {
			return nil, err
		}
		log.Printf("✅ Session %s completed\n", sessionID)
		return b.report(ctx, sessionID, &BatchResult{Status: BatchCompleted}), nil
	}

	log.Printf("📋 Found %d pending candidates in session %s\n", len(pending), sessionID)
	results := b.process(ctx, sessionID, pending)

	remaining, err := b.candidates.CountUnfinished(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	return b.report(ctx, sessionID, &BatchResult{
		Status:    BatchProcessing,
		Processed: len(results),
		Remaining: remaining,
		Results:   results,
	}), nil
}

// process runs the page through a fixed pool of workers. Results keep the
// page order.
func (b *batchRunner) process(ctx context.Context, sessionID uuid.UUID, pending []models.CandidateEvaluation) []ProcessResult {
	type job struct {
		index int
		id    uuid.UUID
	}

	slots := make([]*ProcessResult, len(pending))
	jobQueue := make(chan job)
	var wg sync.WaitGroup

	workers := min(b.concurrency, len(pending))
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(workerID int) {
			defer wg.Done()
			for j := range jobQueue {
				log.Printf("👷 Worker #%d processing candidate %s\n", workerID, j.id)
				result, err := b.screening.ProcessCandidate(ctx, j.id, sessionID)
				if err != nil {
					if !errors.Is(err, ErrCandidateClaimed) {
						log.Printf("❌ Worker #%d failed candidate %s: %v\n", workerID, j.id, err)
					}
					continue
				}
				slots[j.index] = result
			}
		}(i + 1)
	}

	for i, c := range pending {
		jobQueue <- job{index: i, id: c.ID}
	}
	close(jobQueue)
	wg.Wait()

	results := make([]ProcessResult, 0, len(slots))
	for _, r := range slots {
		if r != nil {
			results = append(results, *r)
		}
	}
	return results
}

func (b *batchRunner) report(ctx context.Context, sessionID uuid.UUID, result *BatchResult) *BatchResult {
	b.notifier.PublishProgress(ctx, SessionProgress{
		SessionID: sessionID.String(),
		Status:    string(result.Status),
		Processed: result.Processed,
		Remaining: result.Remaining,
	})
	return result
}

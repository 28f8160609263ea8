package service

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/yuhao-w/deepquery/internal/domain"
	"github.com/yuhao-w/deepquery/internal/llm"
	"github.com/yuhao-w/deepquery/internal/protocol"
	"github.com/yuhao-w/deepquery/internal/repository"
	"github.com/yuhao-w/deepquery/internal/search"
)

// Orchestrator sequences the answer pipeline: retrieval, document
// finalization, then summarization, emitting protocol events in order.
// It is long-lived and safe for concurrent use; every request gets its own
// document store and controllers.
type Orchestrator struct {
	llm         llm.Client
	search      search.Client
	history     *repository.QueryRepository
	maxRounds   int
	resultBound int
	logger      *zap.Logger
}

// NewOrchestrator creates the orchestrator. history may be nil to disable
// query-record persistence.
func NewOrchestrator(llmClient llm.Client, searchClient search.Client, history *repository.QueryRepository, maxRounds, resultBound int, logger *zap.Logger) *Orchestrator {
	return &Orchestrator{
		llm:         llmClient,
		search:      searchClient,
		history:     history,
		maxRounds:   maxRounds,
		resultBound: resultBound,
		logger:      logger,
	}
}

// Run processes one query. The returned channel carries every event in
// emission order and is closed after the terminal event. Once ctx is
// cancelled no further events are written.
func (o *Orchestrator) Run(ctx context.Context, query string) <-chan protocol.Event {
	events := make(chan protocol.Event, 64)
	go o.run(ctx, query, events)
	return events
}

func (o *Orchestrator) run(ctx context.Context, query string, events chan<- protocol.Event) {
	defer close(events)

	emit := func(ev protocol.Event) {
		// Once ctx is cancelled nothing more is written, even when the
		// channel still has buffer space.
		if ctx.Err() != nil {
			return
		}
		select {
		case events <- ev:
		case <-ctx.Done():
		}
	}

	record := &domain.QueryRecord{
		ID:        uuid.New().String(),
		Query:     query,
		CreatedAt: time.Now(),
	}

	store := NewDocumentStore()
	retrieval := NewRetrievalController(o.llm, o.search, store, o.maxRounds, o.resultBound, o.logger)
	summary := NewSummaryController(o.llm, o.logger)

	emit(protocol.StageDeclared{Stages: domain.PipelineStages()})

	// The planning stage is the declaration phase itself: it completes as
	// soon as the stage list is out.
	emit(protocol.StageStatusChange{StageID: domain.StagePlanning, Status: domain.StageRunning})
	emit(protocol.StageStatusChange{StageID: domain.StagePlanning, Status: domain.StageCompleted})

	emit(protocol.StageStatusChange{StageID: domain.StageRetrieval, Status: domain.StageRunning})
	if err := retrieval.Run(ctx, query, emit); err != nil {
		if ctx.Err() != nil {
			// Client gone: not a failure, nothing to emit or record.
			o.logger.Info("client disconnected during retrieval", zap.String("query", query))
			return
		}
		o.logger.Error("retrieval stage failed", zap.String("query", query), zap.Error(err))
		emit(protocol.StageStatusChange{StageID: domain.StageRetrieval, Status: domain.StageFailed})
		o.finish(record, "", err, emit)
		return
	}

	// Retrieval done: freeze ordering and citation numbers before anything
	// downstream observes the set. Zero documents is a valid outcome.
	store.Finalize()
	record.DocumentCount = store.Len()
	emit(protocol.StageStatusChange{StageID: domain.StageRetrieval, Status: domain.StageCompleted})
	emit(protocol.ReferenceList{References: store.References()})

	emit(protocol.StageStatusChange{StageID: domain.StageSummary, Status: domain.StageRunning})
	answer, err := summary.Run(ctx, query, store, emit)
	if err != nil {
		if ctx.Err() != nil {
			o.logger.Info("client disconnected during summary", zap.String("query", query))
			return
		}
		o.logger.Error("summary stage failed", zap.String("query", query), zap.Error(err))
		emit(protocol.StageStatusChange{StageID: domain.StageSummary, Status: domain.StageFailed})
		o.finish(record, answer, err, emit)
		return
	}
	emit(protocol.StageStatusChange{StageID: domain.StageSummary, Status: domain.StageCompleted})
	emit(protocol.Completed{})

	o.finish(record, answer, nil, emit)
}

// finish emits the error terminal when err is non-nil and persists the
// query record.
func (o *Orchestrator) finish(record *domain.QueryRecord, answer string, err error, emit func(protocol.Event)) {
	record.Answer = answer
	record.CompletedAt = time.Now()
	if err != nil {
		record.Status = domain.QueryStatusFailed
		record.Error = err.Error()
		emit(protocol.Failed{Message: err.Error()})
	} else {
		record.Status = domain.QueryStatusCompleted
	}

	if o.history == nil {
		return
	}
	if dbErr := o.history.Create(record); dbErr != nil {
		o.logger.Warn("failed to persist query record", zap.Error(dbErr))
	}
}

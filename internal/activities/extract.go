package activities

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/helioenergie/caseflow/internal/db"
	"github.com/helioenergie/caseflow/internal/extraction"
	"github.com/helioenergie/caseflow/internal/metrics"
	"github.com/helioenergie/caseflow/internal/models"
)

// ExtractInput is one extraction request for an inbound message.
type ExtractInput struct {
	CaseID    uuid.UUID `json:"case_id"`
	MessageID uuid.UUID `json:"message_id"`
	Subject   string    `json:"subject"`
	Body      string    `json:"body"`
	Sender    string    `json:"sender"`
}

// ExtractResult is the validated, persisted extraction.
type ExtractResult struct {
	Extraction models.ExtractionSnapshot `json:"extraction"`
	Dropped    int                       `json:"dropped"`
}

// ExtractIntentsEntities calls the extraction service and persists the
// validated result. Schema and parse failures propagate so the workflow's
// retry policy applies.
func (a *Activities) ExtractIntentsEntities(ctx context.Context, in ExtractInput) (ExtractResult, error) {
	start := time.Now()
	res, err := a.extractor.Extract(ctx, extraction.Request{
		Subject: in.Subject,
		Body:    in.Body,
		Sender:  in.Sender,
	})
	metrics.ExtractionLatency.Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.ExtractionCalls.WithLabelValues("error").Inc()
		return ExtractResult{}, err
	}
	metrics.ExtractionCalls.WithLabelValues("ok").Inc()
	if res.Dropped > 0 {
		metrics.ExtractionDroppedIntents.Add(float64(res.Dropped))
	}

	intents := make(db.JSONBArray, 0, len(res.Intents))
	for _, it := range res.Intents {
		intents = append(intents, map[string]interface{}{
			"name":          it.Name,
			"confidence":    it.Confidence,
			"requires_auth": it.RequiresAuth,
			"reason":        it.Reason,
		})
	}

	msgID := in.MessageID
	row := &db.ExtractionRow{
		CaseID:     in.CaseID,
		MessageID:  &msgID,
		Intents:    intents,
		Entities:   db.JSONB(res.Entities),
		Confidence: res.OverallConfidence,
	}
	if err := a.db.InsertExtraction(ctx, row); err != nil {
		return ExtractResult{}, err
	}

	a.logger.Info("Extraction stored",
		zap.String("case_id", in.CaseID.String()),
		zap.Int("intents", len(res.Intents)),
		zap.Int("dropped", res.Dropped),
	)

	return ExtractResult{
		Extraction: models.ExtractionSnapshot{
			ID:         row.ID,
			CaseID:     in.CaseID,
			MessageID:  in.MessageID,
			Intents:    res.Intents,
			Entities:   res.Entities,
			Confidence: res.OverallConfidence,
		},
		Dropped: res.Dropped,
	}, nil
}

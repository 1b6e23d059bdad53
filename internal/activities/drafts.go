package activities

import (
	"context"
	"encoding/json"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/helioenergie/caseflow/internal/db"
	"github.com/helioenergie/caseflow/internal/models"
)

// MergeDraftInput is one branch's draft contribution.
type MergeDraftInput struct {
	CaseID    uuid.UUID           `json:"case_id"`
	DraftType models.DraftType    `json:"draft_type"`
	Subject   string              `json:"subject"`
	Body      string              `json:"body"`
	Summary   string              `json:"summary"`
	Actions   []models.ActionSpec `json:"actions"`
}

// MergeDraftResult references the merged draft row.
type MergeDraftResult struct {
	Draft   models.DraftRef `json:"draft"`
	Version int             `json:"version"`
}

// MergeDraft folds a branch contribution into the case's draft of that
// type. Safe under concurrent branch writers; the repository retries on
// conflict.
func (a *Activities) MergeDraft(ctx context.Context, in MergeDraftInput) (MergeDraftResult, error) {
	row, err := a.db.MergeDraft(ctx, &db.DraftRow{
		CaseID:    in.CaseID,
		DraftType: string(in.DraftType),
		Subject:   in.Subject,
		Body:      in.Body,
		Summary:   in.Summary,
		Actions:   actionSpecsToJSON(in.Actions),
	})
	if err != nil {
		return MergeDraftResult{}, err
	}

	a.logger.Info("Draft merged",
		zap.String("case_id", in.CaseID.String()),
		zap.String("draft_type", string(in.DraftType)),
		zap.Int("version", row.Version),
	)

	return MergeDraftResult{
		Draft:   models.DraftRef{ID: row.ID, Type: in.DraftType},
		Version: row.Version,
	}, nil
}

func actionSpecsToJSON(specs []models.ActionSpec) db.JSONBArray {
	out := make(db.JSONBArray, 0, len(specs))
	for _, s := range specs {
		// Round-trip through JSON keeps the stored shape identical to the
		// wire shape the workflow carries.
		raw, err := json.Marshal(s)
		if err != nil {
			continue
		}
		var m map[string]interface{}
		if err := json.Unmarshal(raw, &m); err != nil {
			continue
		}
		out = append(out, m)
	}
	return out
}

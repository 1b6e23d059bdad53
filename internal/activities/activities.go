// Package activities holds the side-effecting steps of the case workflow.
// Everything that touches the database, the extraction service, Redis or
// SMTP lives here; the workflow itself stays deterministic.
package activities

import (
	"go.uber.org/zap"

	"github.com/helioenergie/caseflow/internal/db"
	"github.com/helioenergie/caseflow/internal/extraction"
	"github.com/helioenergie/caseflow/internal/mailer"
	"github.com/helioenergie/caseflow/internal/streaming"
)

// Config carries the activity-level settings.
type Config struct {
	// HashSalt is mixed into every identity field hash.
	HashSalt string
	// SupportAddress is the From address on outbound mail.
	SupportAddress string
}

// Activities bundles the dependencies shared by all case activities.
type Activities struct {
	db        *db.Client
	events    *streaming.Publisher
	extractor *extraction.Client
	sender    mailer.Sender
	cfg       Config
	logger    *zap.Logger
}

// NewActivities creates an activities instance with dependencies.
func NewActivities(dbClient *db.Client, events *streaming.Publisher, extractor *extraction.Client, sender mailer.Sender, cfg Config, logger *zap.Logger) *Activities {
	return &Activities{
		db:        dbClient,
		events:    events,
		extractor: extractor,
		sender:    sender,
		cfg:       cfg,
		logger:    logger,
	}
}

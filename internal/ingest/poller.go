// Package ingest polls the support mailbox and turns unseen mail into
// case workflow runs.
package ingest

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/emersion/go-imap"
	imapclient "github.com/emersion/go-imap/client"
	gomail "github.com/emersion/go-message/mail"
	"go.temporal.io/sdk/client"
	"go.uber.org/zap"

	"github.com/helioenergie/caseflow/internal/metrics"
	"github.com/helioenergie/caseflow/internal/workflows"
)

// Config holds mailbox polling settings.
type Config struct {
	Server   string
	Port     int
	Username string
	Password string
	Mailbox  string
	Interval time.Duration
}

// Poller drives the inbound edge of the system.
type Poller struct {
	cfg      Config
	temporal client.Client
	logger   *zap.Logger
}

// NewPoller creates a mailbox poller.
func NewPoller(cfg Config, temporal client.Client, logger *zap.Logger) *Poller {
	if cfg.Mailbox == "" {
		cfg.Mailbox = "INBOX"
	}
	if cfg.Interval == 0 {
		cfg.Interval = 30 * time.Second
	}
	if cfg.Port == 0 {
		cfg.Port = 993
	}
	return &Poller{cfg: cfg, temporal: temporal, logger: logger}
}

// Run polls until the context is canceled. Poll errors are logged and the
// loop continues; a broken mailbox connection must not kill the worker.
func (p *Poller) Run(ctx context.Context) {
	ticker := time.NewTicker(p.cfg.Interval)
	defer ticker.Stop()

	p.logger.Info("Mailbox poller started",
		zap.String("server", p.cfg.Server),
		zap.String("mailbox", p.cfg.Mailbox),
		zap.Duration("interval", p.cfg.Interval),
	)

	for {
		select {
		case <-ctx.Done():
			p.logger.Info("Mailbox poller stopped")
			return
		case <-ticker.C:
			if err := p.poll(ctx); err != nil {
				p.logger.Error("Mailbox poll failed", zap.Error(err))
			}
		}
	}
}

func (p *Poller) poll(ctx context.Context) error {
	addr := fmt.Sprintf("%s:%d", p.cfg.Server, p.cfg.Port)
	c, err := imapclient.DialTLS(addr, nil)
	if err != nil {
		return fmt.Errorf("failed to dial %s: %w", addr, err)
	}
	defer c.Logout()

	if err := c.Login(p.cfg.Username, p.cfg.Password); err != nil {
		return fmt.Errorf("imap login failed: %w", err)
	}
	if _, err := c.Select(p.cfg.Mailbox, false); err != nil {
		return fmt.Errorf("failed to select %s: %w", p.cfg.Mailbox, err)
	}

	criteria := imap.NewSearchCriteria()
	criteria.WithoutFlags = []string{imap.SeenFlag}
	ids, err := c.Search(criteria)
	if err != nil {
		return fmt.Errorf("imap search failed: %w", err)
	}
	if len(ids) == 0 {
		return nil
	}

	seqset := new(imap.SeqSet)
	seqset.AddNum(ids...)

	section := &imap.BodySectionName{}
	messages := make(chan *imap.Message, len(ids))
	fetchDone := make(chan error, 1)
	go func() {
		fetchDone <- c.Fetch(seqset, []imap.FetchItem{imap.FetchEnvelope, section.FetchItem()}, messages)
	}()

	var started int
	for msg := range messages {
		if err := p.startCase(ctx, msg, section); err != nil {
			p.logger.Error("Failed to start case for mail",
				zap.Uint32("seq", msg.SeqNum),
				zap.Error(err),
			)
			continue
		}
		started++
	}
	if err := <-fetchDone; err != nil {
		return fmt.Errorf("imap fetch failed: %w", err)
	}

	// Mark everything fetched as seen, including mails we failed to
	// start; they are kept in the dead pile of the log rather than
	// reprocessed forever.
	seenItem := imap.FormatFlagsOp(imap.AddFlags, true)
	if err := c.Store(seqset, seenItem, []interface{}{imap.SeenFlag}, nil); err != nil {
		return fmt.Errorf("failed to mark mail seen: %w", err)
	}

	if started > 0 {
		p.logger.Info("Inbound mail ingested", zap.Int("count", started))
	}
	return nil
}

func (p *Poller) startCase(ctx context.Context, msg *imap.Message, section *imap.BodySectionName) error {
	if msg.Envelope == nil || len(msg.Envelope.From) == 0 {
		return fmt.Errorf("mail has no sender envelope")
	}
	from := msg.Envelope.From[0].Address()

	to := p.cfg.Username
	if len(msg.Envelope.To) > 0 {
		to = msg.Envelope.To[0].Address()
	}

	body, err := extractTextBody(msg.GetBody(section))
	if err != nil {
		return err
	}

	input := workflows.CaseInput{
		From:    from,
		To:      to,
		Subject: msg.Envelope.Subject,
		Body:    body,
		Trigger: "imap",
	}

	opts := client.StartWorkflowOptions{
		ID:        fmt.Sprintf("mail-%s-%d", msg.Envelope.MessageId, msg.SeqNum),
		TaskQueue: workflows.TaskQueue,
	}
	if _, err := p.temporal.ExecuteWorkflow(ctx, opts, workflows.CaseWorkflow, input); err != nil {
		return fmt.Errorf("failed to start case workflow: %w", err)
	}

	metrics.MailsIngested.Inc()
	metrics.WorkflowsStarted.WithLabelValues("imap").Inc()
	return nil
}

// extractTextBody pulls the first text/plain part out of a MIME message,
// falling back to the raw body for non-multipart mail.
func extractTextBody(r io.Reader) (string, error) {
	if r == nil {
		return "", fmt.Errorf("mail has no body section")
	}

	mr, err := gomail.CreateReader(r)
	if err != nil {
		raw, readErr := io.ReadAll(r)
		if readErr != nil {
			return "", fmt.Errorf("failed to parse mail body: %w", err)
		}
		return string(raw), nil
	}

	for {
		part, err := mr.NextPart()
		if err == io.EOF {
			break
		}
		if err != nil {
			return "", fmt.Errorf("failed to read mail part: %w", err)
		}
		if header, ok := part.Header.(*gomail.InlineHeader); ok {
			mediaType, _, _ := header.ContentType()
			if strings.HasPrefix(mediaType, "text/plain") || mediaType == "" {
				raw, err := io.ReadAll(part.Body)
				if err != nil {
					return "", fmt.Errorf("failed to read mail text: %w", err)
				}
				return string(raw), nil
			}
		}
	}
	return "", nil
}

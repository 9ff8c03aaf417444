package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"github.com/arturoeanton/go-product-lens/internal/domain"
	"github.com/arturoeanton/go-product-lens/internal/port"
)

// OutcomeDownloadFailed marks relay jobs whose attachment could not be fetched.
const OutcomeDownloadFailed = "download_failed"

// RelayService answers chat users: it downloads the photo they sent, runs the
// match pipeline and sends the result back through the messenger.
type RelayService struct {
	match     *MatchService
	fetcher   port.ImageFetcher
	messenger port.Messenger
	tracker   *JobTracker
}

// NewRelayService creates a new relay service.
func NewRelayService(match *MatchService, fetcher port.ImageFetcher, messenger port.Messenger, tracker *JobTracker) *RelayService {
	return &RelayService{match: match, fetcher: fetcher, messenger: messenger, tracker: tracker}
}

// Tracker exposes the job tracker for status endpoints.
func (s *RelayService) Tracker() *JobTracker {
	return s.tracker
}

// IsGreeting reports whether a text message should get the greeting reply.
func IsGreeting(text string) bool {
	t := strings.ToLower(strings.TrimSpace(text))
	return strings.Contains(t, "hi") || strings.Contains(t, "hello")
}

// Greet sends the greeting text.
func (s *RelayService) Greet(ctx context.Context, recipientID string) error {
	return s.messenger.SendText(ctx, recipientID, ReplyGreeting)
}

// Enqueue starts a background job for an image sent by recipientID and returns its ID.
// The job outlives the webhook request that triggered it.
func (s *RelayService) Enqueue(recipientID, imageURL string) string {
	id := uuid.NewString()
	s.tracker.Create(id, recipientID, imageURL)
	go s.Process(context.Background(), id, recipientID, imageURL)
	return id
}

// Process runs one relay job to completion.
func (s *RelayService) Process(ctx context.Context, jobID, recipientID, imageURL string) {
	log := slog.With("job_id", jobID, "recipient", recipientID)

	if err := s.messenger.SendText(ctx, recipientID, ReplyAnalyzing); err != nil {
		log.Warn("relay: ack failed", "error", err)
	}

	data, err := s.fetcher.Fetch(ctx, imageURL)
	if err != nil {
		log.Error("relay: download failed", "error", err)
		if derr := s.deliver(ctx, recipientID, Reply{Text: ReplyDownloadFailed}); derr != nil {
			log.Error("relay: delivery failed", "error", derr)
		}
		s.tracker.Finish(jobID, OutcomeDownloadFailed, "", fmt.Errorf("fetch image: %w", err))
		return
	}

	result, err := s.match.Identify(ctx, data)
	if err != nil {
		log.Error("relay: identify failed", "error", err)
		result = domain.Failed{Reason: err.Error()}
	}

	reply, err := FormatReply(result)
	if err == nil {
		err = s.deliver(ctx, recipientID, reply)
	}

	product := ""
	if f, ok := result.(domain.Found); ok {
		product = f.Entry.Name
	}
	if err != nil {
		log.Error("relay: delivery failed", "error", err)
	}
	s.tracker.Finish(jobID, Outcome(result), product, err)
	log.Info("relay: job finished", "outcome", Outcome(result), "product", product)
}

func (s *RelayService) deliver(ctx context.Context, recipientID string, reply Reply) error {
	if err := s.messenger.SendText(ctx, recipientID, reply.Text); err != nil {
		return fmt.Errorf("send text: %w", err)
	}
	if reply.ImageURL != "" {
		if err := s.messenger.SendImage(ctx, recipientID, reply.ImageURL); err != nil {
			return fmt.Errorf("send image: %w", err)
		}
	}
	return nil
}

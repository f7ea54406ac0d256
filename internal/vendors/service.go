package vendors

import (
	"context"
	"log/slog"

	"github.com/bissquit/oprisk/internal/domain"
	"golang.org/x/sync/errgroup"
)

// Service loads vendors and feed data and scores them.
type Service struct {
	repo    Repository
	feeds   FeedProvider
	scorer  *Scorer
	workers int
}

// NewService creates a new vendor service. feeds may be nil when no feed is configured.
func NewService(repo Repository, feeds FeedProvider, scorer *Scorer, workers int) *Service {
	if workers <= 0 {
		workers = DefaultBatchWorkers
	}
	return &Service{
		repo:    repo,
		feeds:   feeds,
		scorer:  scorer,
		workers: workers,
	}
}

// BatchResult is the outcome of scoring one vendor in a batch.
type BatchResult struct {
	VendorID string
	Score    *domain.VendorRiskScore
	Err      error
}

// ScoreVendorByID loads a vendor and scores it. Feed failures degrade to "no feed".
func (s *Service) ScoreVendorByID(ctx context.Context, id string) (*domain.VendorRiskScore, error) {
	vendor, err := s.repo.GetVendor(ctx, id)
	if err != nil {
		return nil, err
	}

	score := s.scorer.ScoreVendor(*vendor, s.feed(ctx, vendor.ID))
	recordScore(score.RiskLevel)
	return &score, nil
}

// ScoreVendorBatch scores every id in parallel. The result has one entry per id in
// input order; a failure on one vendor does not affect the others.
func (s *Service) ScoreVendorBatch(ctx context.Context, ids []string) []BatchResult {
	results := make([]BatchResult, len(ids))

	var g errgroup.Group
	g.SetLimit(s.workers)

	for i, id := range ids {
		g.Go(func() error {
			results[i].VendorID = id
			if err := ctx.Err(); err != nil {
				results[i].Err = err
				return nil
			}
			results[i].Score, results[i].Err = s.ScoreVendorByID(ctx, id)
			return nil
		})
	}
	_ = g.Wait()

	return results
}

func (s *Service) feed(ctx context.Context, vendorID string) *domain.FeedData {
	if s.feeds == nil {
		return nil
	}

	data, err := s.feeds.GetFeed(ctx, vendorID)
	if err != nil {
		recordFeedRequest(feedResultError)
		slog.Warn("vendor feed unavailable, scoring without it",
			"vendor_id", vendorID,
			"error", err,
		)
		return nil
	}
	if data == nil {
		recordFeedRequest(feedResultEmpty)
		return nil
	}

	recordFeedRequest(feedResultOK)
	return data
}

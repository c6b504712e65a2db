package workflow

import (
	"context"
	"fmt"
	"strings"

	"golang.org/x/sync/errgroup"

	"songsmith/internal/config"
)

// reviewAll runs the configured number of reviewers over lyrics concurrently
// and returns their answers indexed by launch order.
func (r *Runner) reviewAll(ctx context.Context, lyrics string) ([]string, error) {
	data := config.PromptData{Lyrics: lyrics}
	return fanOut(ctx, max(r.cfg.Review.ReviewerCount, 1), func(ctx context.Context, i int) (string, error) {
		text, err := r.complete(ctx, config.PromptReview, data)
		if err != nil {
			return "", fmt.Errorf("reviewer %d: %w", i+1, err)
		}
		return text, nil
	})
}

// fanOut runs call for every slot in [0, n) concurrently. results[i] is the
// answer of slot i whatever order the calls finish in.
//
// The first failure cancels the remaining calls and fails the whole
// fan-out; no partial result is returned.
func fanOut(ctx context.Context, n int, call func(ctx context.Context, i int) (string, error)) ([]string, error) {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(n)

	results := make([]string, n)
	for i := range n {
		g.Go(func() error {
			text, err := call(gctx, i)
			if err != nil {
				return err
			}
			results[i] = text
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

// MergeFeedback labels each reviewer's answer with its 1-based launch index
// and joins them with blank lines.
func MergeFeedback(feedbacks []string) string {
	blocks := make([]string, len(feedbacks))
	for i, fb := range feedbacks {
		blocks[i] = fmt.Sprintf("Reviewer %d Feedback:\n%s", i+1, fb)
	}
	return strings.Join(blocks, "\n\n")
}

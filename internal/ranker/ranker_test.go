package ranker_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/rohmanhakim/docs-crawler/internal/ranker"
)

func defaultConfig() ranker.RankingConfig {
	return ranker.NewRankingConfig(0.5, 0.05, 0.03, 3.0)
}

func TestRank_ShorterURLScoresHigher(t *testing.T) {
	candidates := []ranker.Candidate{
		ranker.NewCandidate("https://example.com/a/very/long/path/segment", "Doc", 1.0),
		ranker.NewCandidate("https://example.com/x", "Doc", 1.0),
	}

	ranked := ranker.Rank(candidates, "", defaultConfig())

	assert.Equal(t, "https://example.com/x", ranked[0].URL)
}

func TestRank_RootPathGetsBoost(t *testing.T) {
	candidates := []ranker.Candidate{
		ranker.NewCandidate("https://example.com", "Root", 1.0),
		ranker.NewCandidate("https://example.com/a/b/c", "Deep", 1.0),
	}

	ranked := ranker.Rank(candidates, "", defaultConfig())

	assert.Equal(t, "https://example.com", ranked[0].URL)
}

func TestRank_DepthPenaltyScalesWithDepth(t *testing.T) {
	shallow := ranker.NewCandidate("https://example.com/a", "A", 1.0)
	deep := ranker.NewCandidate("https://example.com/a/b/c", "C", 1.0)

	ranked := ranker.Rank([]ranker.Candidate{deep, shallow}, "", defaultConfig())

	assert.Equal(t, shallow.URL, ranked[0].URL)
}

func TestRank_ExactMatchBoostsURLOrTitleSubstring(t *testing.T) {
	candidates := []ranker.Candidate{
		ranker.NewCandidate("https://example.com/unrelated", "Unrelated", 1.0),
		ranker.NewCandidate("https://example.com/getting-started", "Getting Started Guide", 0.5),
	}

	ranked := ranker.Rank(candidates, "getting started", defaultConfig())

	assert.Equal(t, "https://example.com/getting-started", ranked[0].URL)
}

func TestRank_EmptyQueryAppliesNoExactMatchBoost(t *testing.T) {
	candidates := []ranker.Candidate{
		ranker.NewCandidate("https://example.com/a", "A", 1.0),
	}

	ranked := ranker.Rank(candidates, "", defaultConfig())

	assert.InDelta(t, 1.0+0.5/float64(len(candidates[0].URL))-defaultConfig().DepthPenalty, ranked[0].Score, 1e-9)
}

func TestRank_TiesBreakByInputOrder(t *testing.T) {
	a := ranker.NewCandidate("https://example.com/same-len-1", "A", 1.0)
	b := ranker.NewCandidate("https://example.com/same-len-2", "B", 1.0)

	ranked := ranker.Rank([]ranker.Candidate{a, b}, "", defaultConfig())

	assert.Equal(t, a.URL, ranked[0].URL)
	assert.Equal(t, b.URL, ranked[1].URL)
}

func TestRank_DoesNotMutateInputSlice(t *testing.T) {
	candidates := []ranker.Candidate{ranker.NewCandidate("https://example.com/a", "A", 1.0)}
	original := candidates[0].Score

	_ = ranker.Rank(candidates, "", defaultConfig())

	assert.Equal(t, original, candidates[0].Score)
}

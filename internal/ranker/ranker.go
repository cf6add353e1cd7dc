package ranker

/*
Responsibilities
- Apply URL-shape and exact-match score adjustments on top of whatever
  similarity score the vector store's hybrid query returned
- Re-sort candidates by the adjusted score, descending, ties broken by
  input order (stable sort)

Grounded on the shape of original_source/api/src/ranking.rs's
apply_ranking_boost/apply_ranking_boosts, with spec.md's literal tunable
defaults (0.5 / 0.05 / 0.03 / 3.0) in place of the Rust original's
(2.0 / 0.15 / 0.03), and an added exact-match term the original didn't
have.
*/

import (
	"net/url"
	"sort"
	"strings"
)

// Rank applies config's boosts/penalties to a copy of every candidate and
// returns that copy sorted by final score descending. The input slice is
// left unchanged, Score values included.
func Rank(candidates []Candidate, query string, config RankingConfig) []Candidate {
	ranked := make([]Candidate, len(candidates))
	copy(ranked, candidates)

	queryLower := strings.ToLower(strings.TrimSpace(query))

	for i := range ranked {
		applyBoost(&ranked[i], queryLower, config)
	}

	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].Score > ranked[j].Score
	})

	return ranked
}

func applyBoost(candidate *Candidate, queryLower string, config RankingConfig) {
	urlLen := float64(len(candidate.URL))
	if urlLen < 1 {
		urlLen = 1
	}
	candidate.Score += config.URLLengthBoost / urlLen

	depth := pathDepth(candidate.URL)
	if depth == 0 {
		candidate.Score += config.RootPathBoost
	} else {
		candidate.Score -= float64(depth) * config.DepthPenalty
	}

	if queryLower != "" {
		if strings.Contains(strings.ToLower(candidate.URL), queryLower) ||
			strings.Contains(strings.ToLower(candidate.Title), queryLower) {
			candidate.Score += config.ExactMatchBoost
		}
	}
}

// pathDepth counts the non-empty path segments of rawURL. An unparsable
// URL is treated as depth 0, matching the root-boost-not-penalty default.
func pathDepth(rawURL string) int {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return 0
	}
	segments := strings.Split(strings.Trim(parsed.Path, "/"), "/")
	depth := 0
	for _, s := range segments {
		if s != "" {
			depth++
		}
	}
	return depth
}

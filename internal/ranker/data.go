package ranker

// RankingConfig holds the tunable weights applied to every candidate's
// base similarity score. Defaults come from config.Config's Reranker*
// accessors.
type RankingConfig struct {
	URLLengthBoost  float64
	RootPathBoost   float64
	DepthPenalty    float64
	ExactMatchBoost float64
}

func NewRankingConfig(urlLengthBoost, rootPathBoost, depthPenalty, exactMatchBoost float64) RankingConfig {
	return RankingConfig{
		URLLengthBoost:  urlLengthBoost,
		RootPathBoost:   rootPathBoost,
		DepthPenalty:    depthPenalty,
		ExactMatchBoost: exactMatchBoost,
	}
}

// Candidate is one hybrid-search hit awaiting re-ranking: the store's base
// similarity score plus the fields the URL-shape and exact-match
// adjustments read.
type Candidate struct {
	URL   string
	Title string
	Score float64
}

func NewCandidate(url, title string, score float64) Candidate {
	return Candidate{URL: url, Title: title, Score: score}
}

package similarity

import (
	"context"
	"fmt"
	"time"

	"LaneRisk/internal/domain/models"
	domsvc "LaneRisk/internal/domain/service"
	svcmetrics "LaneRisk/internal/service/metrics"
	"LaneRisk/pkg/config"
	xhttp "LaneRisk/pkg/http"
)

// HTTPTopicalScorer scores topical overlap between two signals by calling an
// external embedding service. The service compares topics and correlation
// tags and returns a score in [0,1].
type HTTPTopicalScorer struct {
	baseURL string
	client  *xhttp.Client
}

// NewHTTPTopicalScorer builds a scorer from config.
func NewHTTPTopicalScorer(cfg *config.Config) *HTTPTopicalScorer {
	timeout := cfg.Similarity.Timeout
	if timeout <= 0 {
		timeout = 3 * time.Second
	}
	svcmetrics.Register()
	return &HTTPTopicalScorer{
		baseURL: cfg.Similarity.ServiceURL,
		client:  xhttp.NewClient(xhttp.WithTimeout(timeout)),
	}
}

type overlapRequest struct {
	TopicA string   `json:"topic_a"`
	TagsA  []string `json:"tags_a"`
	TopicB string   `json:"topic_b"`
	TagsB  []string `json:"tags_b"`
}

type overlapResponse struct {
	Score float64 `json:"score"`
}

// TopicalOverlap implements service.SimilarityScorer.
func (s *HTTPTopicalScorer) TopicalOverlap(ctx context.Context, a, b models.Signal) (float64, error) {
	if s.client == nil || s.baseURL == "" {
		return 0, fmt.Errorf("similarity http client not initialized")
	}
	start := time.Now()
	defer func() {
		svcmetrics.AdapterLatency.WithLabelValues("similarity_overlap").Observe(time.Since(start).Seconds())
	}()
	req := overlapRequest{
		TopicA: a.Topic, TagsA: a.TopicTags,
		TopicB: b.Topic, TagsB: b.TopicTags,
	}
	var resp overlapResponse
	err := s.client.SendAndParse(ctx, &xhttp.RequestOptions{
		Method: xhttp.MethodPost,
		URL:    s.baseURL + "/v1/overlap",
		Headers: map[string]string{
			"Content-Type": "application/json",
		},
		Body: req,
	}, &resp)
	if err != nil {
		svcmetrics.AdapterErrors.WithLabelValues("similarity_overlap").Inc()
		return 0, fmt.Errorf("post /v1/overlap: %w", err)
	}
	return resp.Score, nil
}

var _ domsvc.SimilarityScorer = (*HTTPTopicalScorer)(nil)

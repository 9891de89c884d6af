// Package recommend talks to an external text-completion service that, given
// the content list and an optional free-text mood, answers a small JSON array
// of {id, reason} picks. The service is a black box; this package only owns
// the contract and hydrates the returned ids against the live catalog.
package recommend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/iptvplus/iptv-plus/internal/catalog"
	"github.com/iptvplus/iptv-plus/internal/httpclient"
)

// maxPicks keeps the prompt honest: the service is asked for three picks and
// anything beyond that is ignored.
const maxPicks = 3

// Suggestion is one hydrated recommendation.
type Suggestion struct {
	Item   catalog.ContentItem `json:"item"`
	Reason string              `json:"reason"`
}

// Service is the completion-service client. A nil *Service is valid and
// recommends nothing, so the daemon runs fine without the feature configured.
type Service struct {
	endpoint string
	apiKey   string
	client   *http.Client
	log      *logrus.Entry
}

// New returns a Service for endpoint, or nil when endpoint is empty.
func New(endpoint, apiKey string, client *http.Client, log *logrus.Logger) *Service {
	if endpoint == "" {
		return nil
	}
	if client == nil {
		client = httpclient.Default()
	}
	return &Service{
		endpoint: endpoint,
		apiKey:   apiKey,
		client:   client,
		log:      log.WithField("component", "recommend"),
	}
}

type completionRequest struct {
	Prompt         string `json:"prompt"`
	ResponseFormat string `json:"response_format"`
}

type pick struct {
	ID     string `json:"id"`
	Reason string `json:"reason"`
}

// Recommend asks the service for picks over items and hydrates the answer by
// id, discarding any id that no longer resolves. Upstream failure yields an
// empty result, never an error: recommendations are decoration, not data.
func (s *Service) Recommend(ctx context.Context, items []catalog.ContentItem, mood string) []Suggestion {
	if s == nil || len(items) == 0 {
		return nil
	}

	picks, err := s.complete(ctx, buildPrompt(items, mood))
	if err != nil {
		s.log.Warnf("completion service failed, recommending nothing: %v", err)
		return nil
	}

	byID := make(map[string]catalog.ContentItem, len(items))
	for _, item := range items {
		byID[item.ID] = item
	}
	out := make([]Suggestion, 0, maxPicks)
	for _, p := range picks {
		item, ok := byID[p.ID]
		if !ok {
			continue
		}
		out = append(out, Suggestion{Item: item, Reason: p.Reason})
		if len(out) == maxPicks {
			break
		}
	}
	return out
}

func (s *Service) complete(ctx context.Context, prompt string) ([]pick, error) {
	body, err := json.Marshal(completionRequest{Prompt: prompt, ResponseFormat: "json"})
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	if s.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+s.apiKey)
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("completion service: %s", resp.Status)
	}
	var picks []pick
	if err := json.NewDecoder(resp.Body).Decode(&picks); err != nil {
		return nil, fmt.Errorf("completion service: %w", err)
	}
	return picks, nil
}

func buildPrompt(items []catalog.ContentItem, mood string) string {
	var b strings.Builder
	b.WriteString("Based on the following IPTV content list:\n")
	for _, item := range items {
		fmt.Fprintf(&b, "ID: %s, Name: %s, Category: %s\n", item.ID, item.Name, item.Category)
	}
	if mood != "" {
		fmt.Fprintf(&b, "\nThe user says they are feeling: %q.\n", mood)
	} else {
		b.WriteString("\nProvide 3 random but interesting recommendations.\n")
	}
	b.WriteString("Return a JSON array of objects with fields id and reason.")
	return b.String()
}

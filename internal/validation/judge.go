package validation

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"
)

var ErrJudgeUnavailable = errors.New("judge unavailable")

// Rules are sent with every judge request.
var Rules = []string{
	"The word must start with the round letter. This is never forgiven.",
	"Digraphs count as their first letter (CH counts as C, LL counts as L).",
	"Accent and diacritic differences are never penalized.",
	"A minor typo that keeps the first letter scores 0.5.",
	"Strict categories require a valid word in the game language.",
	"Flexible categories accept proper nouns and titles in any language.",
}

type JudgeRequest struct {
	Letter             string              `json:"letter"`
	Language           string              `json:"language"`
	StrictCategories   []string            `json:"strictCategories"`
	FlexibleCategories []string            `json:"flexibleCategories"`
	WordsByCategory    map[string][]string `json:"wordsByCategory"`
	Rules              []string            `json:"rules"`
}

// JudgedWord is one classified word: W echoes the word, V is the score in
// {0, 0.5, 1} and M a short rationale.
type JudgedWord struct {
	W string  `json:"w"`
	V float64 `json:"v"`
	M string  `json:"m"`
}

type JudgeResponse map[string][]JudgedWord

// Judge classifies words that have never been seen before.
type Judge interface {
	Judge(ctx context.Context, req JudgeRequest) (JudgeResponse, error)
}

// NopJudge is used when no judge is configured. Every call fails with
// ErrJudgeUnavailable.
type NopJudge struct{}

func (NopJudge) Judge(context.Context, JudgeRequest) (JudgeResponse, error) {
	return nil, ErrJudgeUnavailable
}

// HTTPJudge posts requests as JSON to a remote classifier.
type HTTPJudge struct {
	url    string
	apiKey string
	client *http.Client
}

func NewHTTPJudge(url, apiKey string, timeout time.Duration) *HTTPJudge {
	return &HTTPJudge{
		url:    url,
		apiKey: apiKey,
		client: &http.Client{Timeout: timeout},
	}
}

func (j *HTTPJudge) Judge(ctx context.Context, in JudgeRequest) (JudgeResponse, error) {
	body, err := json.Marshal(in)
	if err != nil {
		return nil, fmt.Errorf("encoding judge request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, j.url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("building judge request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if j.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+j.apiKey)
	}

	resp, err := j.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrJudgeUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("%w: status %d: %s", ErrJudgeUnavailable, resp.StatusCode, bytes.TrimSpace(msg))
	}

	var out JudgeResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decoding judge response: %w", err)
	}
	return out, nil
}

// Ping checks that the judge endpoint answers at all.
func (j *HTTPJudge) Ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, j.url, nil)
	if err != nil {
		return err
	}
	resp, err := j.client.Do(req)
	if err != nil {
		return err
	}
	resp.Body.Close()
	if resp.StatusCode >= http.StatusInternalServerError {
		return fmt.Errorf("judge returned status %d", resp.StatusCode)
	}
	return nil
}

// snapScore maps an arbitrary judge score onto {0, 0.5, 1}.
func snapScore(v float64) float64 {
	switch {
	case v >= 0.75:
		return 1
	case v >= 0.25:
		return 0.5
	default:
		return 0
	}
}

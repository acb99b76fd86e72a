package platform

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"
)

var ErrUnexpectedStatus = errors.New("unexpected status from platform")

// Client reports game outcomes to the owning platform.
type Client struct {
	logger *slog.Logger

	baseURL string
	apiKey  string
	http    *http.Client
}

func NewClient(logger *slog.Logger, baseURL, apiKey string, timeout time.Duration) *Client {
	return &Client{
		logger:  logger.With("component", "platform"),
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		http:    &http.Client{Timeout: timeout},
	}
}

// AddResults posts final results of an assessment.
func (that *Client) AddResults(ctx context.Context, gameID string, results *Results) error {
	if err := that.post(ctx, fmt.Sprintf("/assessment/%s/add", gameID), results); err != nil {
		return fmt.Errorf("failed to add results for %s: %w", gameID, err)
	}

	that.logger.Info("results reported", "gameID", gameID)

	return nil
}

// QuitPlayer tells the platform that a player left an assessment early.
func (that *Client) QuitPlayer(ctx context.Context, gameID, playerID string) error {
	body := struct {
		UID string `json:"uid"`
	}{UID: playerID}

	if err := that.post(ctx, fmt.Sprintf("/assessment/%s/quit", gameID), body); err != nil {
		return fmt.Errorf("failed to report quit of %s from %s: %w", playerID, gameID, err)
	}

	return nil
}

func (that *Client) post(ctx context.Context, path string, payload any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, that.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+that.apiKey)

	resp, err := that.http.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	// drain so the connection can be reused
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("%w: %d", ErrUnexpectedStatus, resp.StatusCode)
	}

	return nil
}

// Package bossdata loads boss and reference-link data from the remote
// dataset and keeps the local tables in sync.
package bossdata

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// Dataset is the remote data file: the raid-able bosses currently in
// rotation plus the reference-link candidates for each creature/variant.
type Dataset struct {
	Bosses []BossRecord `json:"bosses"`
	Links  []LinkRecord `json:"links"`
}

// BossRecord is one boss entry in the dataset.
type BossRecord struct {
	Name        string `json:"name"`
	BossType    string `json:"bossType"`
	CreatureID  int64  `json:"creatureId"`
	Form        string `json:"form"`
	Tier        int    `json:"tier"`
	IsMega      bool   `json:"isMega"`
	IsShadow    bool   `json:"isShadow"`
	IsActive    bool   `json:"isActive"`
	IsShinyable bool   `json:"isShinyable"`
	TemplateID  string `json:"templateId"`
}

// LinkRecord is one reference-link entry in the dataset.
type LinkRecord struct {
	CreatureID       int64  `json:"creatureId"`
	TemplateID       string `json:"templateId"`
	Form             string `json:"form"`
	IsMega           bool   `json:"isMega"`
	IsSpecialVariant bool   `json:"isSpecialVariant"`
	URL              string `json:"url"`
	Title            string `json:"title"`
}

// Client fetches the remote dataset.
type Client struct {
	url        string
	httpClient *http.Client
}

// NewClient creates a dataset client for the given URL.
func NewClient(url string) *Client {
	return &Client{
		url: url,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// FetchDataset downloads and decodes the dataset.
func (c *Client) FetchDataset(ctx context.Context) (*Dataset, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("dataset fetch error: status %d, body: %s", resp.StatusCode, string(body))
	}

	dataset := &Dataset{}
	if err := json.NewDecoder(resp.Body).Decode(dataset); err != nil {
		return nil, fmt.Errorf("failed to decode dataset: %w", err)
	}

	return dataset, nil
}

package client

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/vidstash/api/internal/config"
	"github.com/vidstash/api/internal/model"
)

// MetadataResolver returns descriptive metadata for a resource
type MetadataResolver interface {
	Resolve(ctx context.Context, resourceID string) (*model.ResourceMetadata, error)
	IsConfigured() bool
}

// MetadataClient talks to the resource metadata service
type MetadataClient struct {
	httpClient *http.Client
	baseURL    string
}

// metadataResult is the metadata service's response envelope
type metadataResult struct {
	Success  bool                    `json:"success"`
	Error    string                  `json:"error,omitempty"`
	Metadata *model.ResourceMetadata `json:"metadata,omitempty"`
}

// NewMetadataClient creates a new metadata service client
func NewMetadataClient(cfg *config.MetadataConfig) *MetadataClient {
	timeout := time.Duration(cfg.Timeout) * time.Second
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &MetadataClient{
		httpClient: &http.Client{Timeout: timeout},
		baseURL:    cfg.BaseURL,
	}
}

// IsConfigured returns true if a metadata service URL is set
func (c *MetadataClient) IsConfigured() bool {
	return c.baseURL != ""
}

// Resolve fetches metadata for one resource. Falls back to stub
// metadata when no service is configured.
func (c *MetadataClient) Resolve(ctx context.Context, resourceID string) (*model.ResourceMetadata, error) {
	if !c.IsConfigured() {
		return c.resolveMock(resourceID), nil
	}

	endpoint := c.baseURL + "/metadata/" + url.PathEscape(resourceID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create metadata request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("metadata service unreachable: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read metadata response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("metadata service returned status %d: %s", resp.StatusCode, string(body))
	}

	var result metadataResult
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, fmt.Errorf("failed to decode metadata response: %w", err)
	}
	if !result.Success || result.Metadata == nil {
		if result.Error == "" {
			result.Error = "metadata resolution failed"
		}
		return nil, fmt.Errorf("metadata service error: %s", result.Error)
	}
	return result.Metadata, nil
}

// resolveMock returns placeholder metadata with the standard rendition set
func (c *MetadataClient) resolveMock(resourceID string) *model.ResourceMetadata {
	return &model.ResourceMetadata{
		ResourceID: resourceID,
		Title:      "Video " + resourceID,
		Duration:   212,
		Renditions: []model.Rendition{
			{FormatID: "137+140", Label: "1080p", Ext: "mp4", Height: 1080, FPS: 30},
			{FormatID: "136+140", Label: "720p", Ext: "mp4", Height: 720, FPS: 30},
			{FormatID: "140", Label: "audio only", Ext: "m4a"},
		},
	}
}

var _ MetadataResolver = (*MetadataClient)(nil)

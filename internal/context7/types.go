package context7

import (
	"fmt"
)

// searchResponse is the wire format of the provider's search endpoint
type searchResponse struct {
	Results []searchResult `json:"results"`
}

type searchResult struct {
	ID          string                 `json:"id"`
	Title       string                 `json:"title"`
	Description string                 `json:"description"`
	Content     string                 `json:"content"`
	Library     string                 `json:"library"`
	Owner       string                 `json:"owner"`
	Version     string                 `json:"version"`
	Language    string                 `json:"language"`
	URL         string                 `json:"url"`
	Metadata    map[string]interface{} `json:"metadata"`
}

// APIError represents a non-200 response from the provider
type APIError struct {
	StatusCode int
	Message    string
	Endpoint   string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("context7 API error %d on %s: %s", e.StatusCode, e.Endpoint, e.Message)
}

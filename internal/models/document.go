package models

import (
	"time"
)

// DocType classifies an external document for TTL purposes
type DocType string

// DocType constants
const (
	DocTypeAPIReference DocType = "api_reference"
	DocTypeTutorial     DocType = "tutorial"
	DocTypeGuide        DocType = "guide"
	DocTypeChangelog    DocType = "changelog"
	DocTypeNews         DocType = "news"
	DocTypeGeneral      DocType = "general"
)

// Valid reports whether the value is one of the known document types
func (d DocType) Valid() bool {
	switch d {
	case DocTypeAPIReference, DocTypeTutorial, DocTypeGuide,
		DocTypeChangelog, DocTypeNews, DocTypeGeneral:
		return true
	}
	return false
}

// QualityIndicators are structural signals extracted from document content
type QualityIndicators struct {
	CodeBlocks int `json:"code_blocks"` // Fenced code block count
	Links      int `json:"links"`       // Link count
	Headings   int `json:"headings"`    // Heading count
	WordCount  int `json:"word_count"`
}

// Context7Document represents a normalized external documentation document.
// Classification and TTL are computed locally, not by the provider.
type Context7Document struct {
	ID         string                 `json:"id"`
	Technology string                 `json:"technology"` // e.g., "react", "postgresql"
	Owner      string                 `json:"owner"`      // Library/project owner, e.g., "facebook"
	Version    string                 `json:"version"`    // Detected version string, e.g., "18.2.0", "latest"
	DocType    DocType                `json:"doc_type"`
	Quality    QualityIndicators      `json:"quality"`
	Language   string                 `json:"language"` // Natural language, e.g., "en"
	Metadata   map[string]interface{} `json:"metadata"` // Original provider metadata
	Content    string                 `json:"content"`  // Raw markdown content
	Title      string                 `json:"title"`
	URL        string                 `json:"url"`
}

// TTLMetadata records the expiration horizon computed at ingestion time.
// It is written once with the document content and never renewed in place;
// a refresh creates a new ingestion record.
type TTLMetadata struct {
	TTLDays      int       `json:"ttl_days"`
	ExpiresAt    time.Time `json:"expires_at"` // Ingestion time + ttl_days
	ComputedFrom []string  `json:"computed_from"`
}

// Expired reports whether the document is eligible for cleanup at the given time
func (m *TTLMetadata) Expired(now time.Time) bool {
	return !m.ExpiresAt.After(now)
}

// StoredDocument is the persisted unit: content plus TTL metadata written as
// one record so a reader can never observe content without TTL metadata.
type StoredDocument struct {
	ID         string                 `json:"id"` // doc_{uuid}
	Workspace  string                 `json:"workspace"`
	Technology string                 `json:"technology"`
	Title      string                 `json:"title"`
	Content    string                 `json:"content"`
	DocType    DocType                `json:"doc_type"`
	Quality    QualityIndicators      `json:"quality"`
	Metadata   map[string]interface{} `json:"metadata"`
	URL        string                 `json:"url"`

	TTL TTLMetadata `json:"ttl"`

	// ExpiresAt mirrors TTL.ExpiresAt at the top level so the store can
	// query expiry without reaching into the nested struct.
	ExpiresAt time.Time `json:"expires_at" badgerhold:"index"`

	IngestedAt time.Time `json:"ingested_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

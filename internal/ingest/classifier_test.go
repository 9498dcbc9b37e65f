package ingest

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/bmeyer99/docaiche-sub000/internal/models"
)

func TestClassifyByKeywords(t *testing.T) {
	tests := []struct {
		name    string
		title   string
		content string
		want    models.DocType
	}{
		{
			name:    "api reference from title",
			title:   "React Hooks API Reference",
			content: "Each endpoint lists its parameters and returns values.",
			want:    models.DocTypeAPIReference,
		},
		{
			name:    "tutorial",
			title:   "Getting Started with PostgreSQL",
			content: "This tutorial walks you through your first steps, step by step.",
			want:    models.DocTypeTutorial,
		},
		{
			name:    "changelog",
			title:   "Release Notes v18.2",
			content: "Breaking changes: the legacy API was deprecated in this release.",
			want:    models.DocTypeChangelog,
		},
		{
			name:    "news",
			title:   "Announcing the 2026 Roadmap",
			content: "A blog post introducing what comes next.",
			want:    models.DocTypeNews,
		},
		{
			name:    "guide",
			title:   "Deployment Guide",
			content: "An overview of concepts and best practices for production.",
			want:    models.DocTypeGuide,
		},
		{
			name:    "no signals falls back to general",
			title:   "Untitled",
			content: "Some text with no recognizable structure.",
			want:    models.DocTypeGeneral,
		},
	}

	c := NewClassifier()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			doc := &models.Context7Document{Title: tt.title, Content: tt.content}
			assert.Equal(t, tt.want, c.Classify(doc))
		})
	}
}

func TestClassifyHonorsDeclaredType(t *testing.T) {
	c := NewClassifier()

	doc := &models.Context7Document{
		DocType: models.DocTypeTutorial,
		Title:   "API Reference",
		Content: "endpoint parameters returns",
	}
	assert.Equal(t, models.DocTypeTutorial, c.Classify(doc))

	// Unknown declared types fall through to keyword scoring
	doc = &models.Context7Document{
		DocType: "bogus",
		Title:   "API Reference",
		Content: "endpoint parameters returns",
	}
	assert.Equal(t, models.DocTypeAPIReference, c.Classify(doc))
}

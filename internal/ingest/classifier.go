package ingest

import (
	"strings"

	"github.com/bmeyer99/docaiche-sub000/internal/models"
)

// Keyword weights per document type. Title hits count double since titles
// are the most reliable signal.
var docTypeKeywords = map[models.DocType][]string{
	models.DocTypeAPIReference: {
		"api reference", "api documentation", "endpoint", "parameters",
		"returns", "request body", "response body", "method signature",
		"function reference", "class reference",
	},
	models.DocTypeTutorial: {
		"tutorial", "getting started", "step by step", "walkthrough",
		"how to", "quickstart", "first steps", "learn",
	},
	models.DocTypeGuide: {
		"guide", "best practices", "overview", "concepts", "architecture",
		"migration", "deep dive",
	},
	models.DocTypeChangelog: {
		"changelog", "release notes", "what's new", "breaking changes",
		"deprecated in", "version history", "released",
	},
	models.DocTypeNews: {
		"announcement", "announcing", "blog post", "roadmap", "introducing",
	},
}

// Classifier assigns a DocType by keyword scoring over title and content.
type Classifier struct{}

func NewClassifier() *Classifier {
	return &Classifier{}
}

// Classify scores the document against each type's keyword list and returns
// the highest-scoring type. A document declaring its own type wins outright;
// no keyword hits means general.
func (c *Classifier) Classify(doc *models.Context7Document) models.DocType {
	if doc.DocType != "" {
		if dt := models.DocType(strings.ToLower(string(doc.DocType))); dt.Valid() {
			return dt
		}
	}

	title := strings.ToLower(doc.Title)
	content := strings.ToLower(doc.Content)

	best := models.DocTypeGeneral
	bestScore := 0
	for _, dt := range []models.DocType{
		models.DocTypeAPIReference,
		models.DocTypeTutorial,
		models.DocTypeGuide,
		models.DocTypeChangelog,
		models.DocTypeNews,
	} {
		score := 0
		for _, kw := range docTypeKeywords[dt] {
			if strings.Contains(title, kw) {
				score += 2
			}
			if strings.Contains(content, kw) {
				score++
			}
		}
		if score > bestScore {
			best = dt
			bestScore = score
		}
	}
	return best
}

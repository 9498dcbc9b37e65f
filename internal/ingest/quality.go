package ingest

import (
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/text"

	"github.com/bmeyer99/docaiche-sub000/internal/models"
)

// Normalization caps for the quality sub-scores. A document at or above a
// cap gets full credit for that signal.
const (
	qualityCodeBlockCap = 5
	qualityLinkCap      = 10
	qualityHeadingCap   = 5
	qualityWordCap      = 1500
)

// QualityAnalyzer extracts structural indicators from markdown content and
// reduces them to a single score in [0, 1].
type QualityAnalyzer struct {
	md goldmark.Markdown
}

// NewQualityAnalyzer creates an analyzer with GFM table and linkify support
// so indicator counts match what documentation sites actually render.
func NewQualityAnalyzer() *QualityAnalyzer {
	return &QualityAnalyzer{
		md: goldmark.New(
			goldmark.WithExtensions(extension.Table, extension.Strikethrough, extension.Linkify),
		),
	}
}

// Analyze parses the content as markdown and counts code blocks, links and
// headings from the AST. Word count comes from the raw text.
func (a *QualityAnalyzer) Analyze(content string) models.QualityIndicators {
	indicators := models.QualityIndicators{
		WordCount: len(strings.Fields(content)),
	}
	if strings.TrimSpace(content) == "" {
		return indicators
	}

	source := []byte(content)
	doc := a.md.Parser().Parse(text.NewReader(source))

	_ = ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		switch n.Kind() {
		case ast.KindFencedCodeBlock, ast.KindCodeBlock:
			indicators.CodeBlocks++
		case ast.KindLink, ast.KindAutoLink:
			indicators.Links++
		case ast.KindHeading:
			indicators.Headings++
		}
		return ast.WalkContinue, nil
	})

	return indicators
}

// Score reduces indicators to a weighted quality score in [0, 1]. Code
// examples carry the most weight since they are the strongest signal of
// useful developer documentation.
func (a *QualityAnalyzer) Score(indicators models.QualityIndicators) float64 {
	code := capRatio(indicators.CodeBlocks, qualityCodeBlockCap)
	links := capRatio(indicators.Links, qualityLinkCap)
	headings := capRatio(indicators.Headings, qualityHeadingCap)
	words := capRatio(indicators.WordCount, qualityWordCap)

	return 0.35*code + 0.20*links + 0.20*headings + 0.25*words
}

func capRatio(count, limit int) float64 {
	if count >= limit {
		return 1.0
	}
	if count <= 0 {
		return 0.0
	}
	return float64(count) / float64(limit)
}

// Package ttl computes expiration horizons for ingested documents.
package ttl

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/bmeyer99/docaiche-sub000/internal/common"
	"github.com/bmeyer99/docaiche-sub000/internal/models"
)

// ErrNilDocument is the only error Calculate can return. All other malformed
// input degrades to a 1.0 multiplier for the affected factor.
var ErrNilDocument = errors.New("ttl: document is nil")

// contentSignalOrder fixes the precedence of content keyword signals so the
// computation stays deterministic when several keywords appear. The first
// matching keyword wins.
var contentSignalOrder = []string{"deprecated", "experimental", "beta", "stable", "production"}

// versionSignalOrder fixes the precedence of version string signals
var versionSignalOrder = []string{"latest", "stable", "beta", "alpha"}

// Calculator computes TTL metadata from the configured multiplier tables.
// Deterministic given identical inputs and identical tables.
type Calculator struct {
	config *common.TTLConfig
	logger arbor.ILogger
	now    func() time.Time
}

// Option configures the Calculator
type Option func(*Calculator)

// WithClock overrides the time source, used by tests
func WithClock(now func() time.Time) Option {
	return func(c *Calculator) {
		c.now = now
	}
}

// NewCalculator creates a Calculator from the TTL configuration
func NewCalculator(config *common.TTLConfig, logger arbor.ILogger, opts ...Option) *Calculator {
	c := &Calculator{
		config: config,
		logger: logger,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Calculate computes TTL metadata for a document:
//
//	ttl_days = clamp(base * tech * doctype * content * version * quality, min, max)
//
// Any multiplier lookup failure and any malformed quality score fall back to
// 1.0 for that factor and are logged. Only a nil document is an error.
func (c *Calculator) Calculate(doc *models.Context7Document, qualityScore float64) (models.TTLMetadata, error) {
	if doc == nil {
		return models.TTLMetadata{}, ErrNilDocument
	}

	days := float64(c.config.BaseDays)
	computedFrom := []string{fmt.Sprintf("base:%d", c.config.BaseDays)}

	apply := func(name string, mult float64) {
		if mult <= 0 || math.IsNaN(mult) || math.IsInf(mult, 0) {
			c.logger.Warn().
				Str("factor", name).
				Float64("multiplier", mult).
				Msg("Malformed TTL multiplier, falling back to 1.0")
			return
		}
		if mult == 1.0 {
			return
		}
		days *= mult
		computedFrom = append(computedFrom, fmt.Sprintf("%s:%.2f", name, mult))
	}

	apply(c.technologyFactor(doc))
	apply(c.docTypeFactor(doc))
	apply(c.contentFactor(doc))
	apply(c.versionFactor(doc))
	apply(c.qualityFactor(qualityScore))

	ttlDays := clamp(int(math.Round(days)), c.config.MinDays, c.config.MaxDays)

	now := c.now()
	return models.TTLMetadata{
		TTLDays:      ttlDays,
		ExpiresAt:    now.AddDate(0, 0, ttlDays),
		ComputedFrom: computedFrom,
	}, nil
}

func (c *Calculator) technologyFactor(doc *models.Context7Document) (string, float64) {
	tech := strings.ToLower(strings.TrimSpace(doc.Technology))
	if tech == "" {
		return "technology:unknown", 1.0
	}
	if mult, ok := c.config.Technology[tech]; ok {
		return "technology:" + tech, mult
	}
	return "technology:" + tech, 1.0
}

func (c *Calculator) docTypeFactor(doc *models.Context7Document) (string, float64) {
	docType := string(doc.DocType)
	if docType == "" {
		docType = string(models.DocTypeGeneral)
	}
	if mult, ok := c.config.DocType[docType]; ok {
		return "doc_type:" + docType, mult
	}
	return "doc_type:" + docType, 1.0
}

func (c *Calculator) contentFactor(doc *models.Context7Document) (string, float64) {
	content := strings.ToLower(doc.Content)
	for _, keyword := range contentSignalOrder {
		if !strings.Contains(content, keyword) {
			continue
		}
		if mult, ok := c.config.Content[keyword]; ok {
			return "content:" + keyword, mult
		}
	}
	return "content:none", 1.0
}

func (c *Calculator) versionFactor(doc *models.Context7Document) (string, float64) {
	version := strings.ToLower(strings.TrimSpace(doc.Version))
	if version == "" {
		return "version:unknown", 1.0
	}
	for _, keyword := range versionSignalOrder {
		if !strings.Contains(version, keyword) {
			continue
		}
		if mult, ok := c.config.Version[keyword]; ok {
			return "version:" + keyword, mult
		}
	}
	// A mature major version (>= 2) signals a settled API surface
	if major, ok := majorVersion(version); ok && major >= 2 {
		if mult, exists := c.config.Version["mature"]; exists {
			return "version:mature", mult
		}
	}
	return "version:" + version, 1.0
}

func (c *Calculator) qualityFactor(score float64) (string, float64) {
	if math.IsNaN(score) || math.IsInf(score, 0) || score < 0 || score > 1 {
		c.logger.Warn().
			Float64("quality_score", score).
			Msg("Malformed quality score, falling back to 1.0 multiplier")
		return "quality:malformed", 1.0
	}
	if score >= c.config.QualityHighThreshold {
		return "quality:high", c.config.QualityHighMultiplier
	}
	if score < c.config.QualityLowThreshold {
		return "quality:low", c.config.QualityLowMultiplier
	}
	return "quality:medium", 1.0
}

// majorVersion parses the leading major version number from strings like
// "18.2.0" or "v3.1".
func majorVersion(version string) (int, bool) {
	version = strings.TrimPrefix(version, "v")
	head, _, _ := strings.Cut(version, ".")
	major, err := strconv.Atoi(head)
	if err != nil {
		return 0, false
	}
	return major, true
}

func clamp(v, min, max int) int {
	if v < min {
		return min
	}
	if v > max {
		return max
	}
	return v
}

package categorization

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/privilegia/privilegia-backend/pkg/enums"
	"github.com/privilegia/privilegia-backend/pkg/logger"
)

const defaultTimeout = 5 * time.Second

// Generator is a text completion backend.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// Service assigns an offer category. Every failure path returns
// OfferCategoryGeneral.
type Service struct {
	generator Generator
	timeout   time.Duration
	logg      *logger.Logger
}

// NewService accepts a nil generator, in which case every offer is general.
func NewService(generator Generator, timeout time.Duration, logg *logger.Logger) *Service {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Service{generator: generator, timeout: timeout, logg: logg}
}

func (s *Service) Categorize(ctx context.Context, title, description string) enums.OfferCategory {
	if s == nil || s.generator == nil || strings.TrimSpace(title) == "" {
		return enums.OfferCategoryGeneral
	}

	callCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	raw, err := s.generator.Generate(callCtx, buildPrompt(title, description))
	if err != nil {
		if s.logg != nil {
			s.logg.Warn(s.logg.WithField(ctx, "error", err.Error()), "categorization.generate_failed")
		}
		return enums.OfferCategoryGeneral
	}
	category, err := parseCategory(raw)
	if err != nil {
		if s.logg != nil {
			s.logg.Warn(s.logg.WithField(ctx, "raw", raw), "categorization.unknown_category")
		}
		return enums.OfferCategoryGeneral
	}
	return category
}

func buildPrompt(title, description string) string {
	names := make([]string, 0, len(enums.OfferCategories()))
	for _, c := range enums.OfferCategories() {
		names = append(names, c.String())
	}
	return fmt.Sprintf(
		"Classify this merchant offer into exactly one category from: %s.\nAnswer with the category word only.\nTitle: %s\nDescription: %s",
		strings.Join(names, ", "), strings.TrimSpace(title), strings.TrimSpace(description),
	)
}

// parseCategory accepts the first word of the model output, ignoring case
// and punctuation.
func parseCategory(raw string) (enums.OfferCategory, error) {
	fields := strings.Fields(strings.ToLower(raw))
	if len(fields) == 0 {
		return "", fmt.Errorf("empty category")
	}
	word := strings.Trim(fields[0], ".,;:!\"'`*")
	return enums.ParseOfferCategory(word)
}

package classifier

import (
	"context"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/sparktutor-go/internal/config"
)

// Candidate labels for the zero-shot fallback. The decision checks whether
// the top label is the educational one, so the "educational"/"non-educational"
// prefixes are load-bearing.
const (
	labelEducational    = "educational: factual knowledge, explanations, technology, critical thinking, science, maths, sports, coding, general knowledge, or academic concepts"
	labelNonEducational = "non-educational: requests product comparisons, unsafe, Consumer Product Advice, shopping advice, entertainment, random_fun, plant_motivation, absurd_request, gaming, or personal opinions"
)

// Classifier decides whether a text is in scope for the educational
// assistant. Keyword checks run first and handle the bulk of traffic; only
// inconclusive texts reach the zero-shot model.
type Classifier struct {
	nonEduKeywords  []string
	eduKeywords     []string
	threshold       float64
	zeroShot        ZeroShotClassifier
	onZeroShotError func()
	logger          *logrus.Logger
}

// New creates a classifier. zeroShot may be nil, in which case inconclusive
// texts are admitted (same outcome as a zero-shot backend failure).
// onZeroShotError, when non-nil, is invoked every time the zero-shot backend
// fails and the classifier fails open.
func New(cfg *config.ClassifierConfig, zeroShot ZeroShotClassifier, logger *logrus.Logger, onZeroShotError func()) *Classifier {
	return &Classifier{
		nonEduKeywords:  cfg.NonEducationalKeywords,
		eduKeywords:     cfg.EducationalKeywords,
		threshold:       cfg.ConfidenceThreshold,
		zeroShot:        zeroShot,
		onZeroShotError: onZeroShotError,
		logger:          logger,
	}
}

// IsEducational reports whether the text is educational content.
//
// Keyword matching is substring based, not word-boundary based, so "watching"
// matches "watch". The non-educational list is checked before the educational
// one: a text combining both is conservatively rejected.
func (c *Classifier) IsEducational(ctx context.Context, text string) bool {
	if strings.TrimSpace(text) == "" {
		return false
	}

	textLower := strings.ToLower(text)

	for _, keyword := range c.nonEduKeywords {
		if strings.Contains(textLower, keyword) {
			c.logger.WithField("keyword", keyword).Debug("Rejected by non-educational keyword")
			return false
		}
	}

	for _, keyword := range c.eduKeywords {
		if strings.Contains(textLower, keyword) {
			c.logger.WithField("keyword", keyword).Debug("Accepted by educational keyword")
			return true
		}
	}

	return c.classifyWithModel(ctx, text)
}

// classifyWithModel runs the zero-shot fallback. Any backend failure fails
// open: the user is not blocked on classifier trouble.
func (c *Classifier) classifyWithModel(ctx context.Context, text string) bool {
	if c.zeroShot == nil {
		return true
	}

	result, err := c.zeroShot.Classify(ctx, text, []string{labelEducational, labelNonEducational})
	if err != nil {
		c.logger.WithError(err).Error("Zero-shot classification failed, failing open")
		if c.onZeroShotError != nil {
			c.onZeroShotError()
		}
		return true
	}

	top := result.Labels[0]
	score := result.Scores[0]

	educational := strings.Contains(top, "educational") &&
		!strings.HasPrefix(top, "non-educational") &&
		score > c.threshold

	c.logger.WithFields(logrus.Fields{
		"top_label":   truncateLabel(top),
		"score":       score,
		"educational": educational,
	}).Debug("Zero-shot classification result")

	return educational
}

func truncateLabel(label string) string {
	if i := strings.Index(label, ":"); i > 0 {
		return label[:i]
	}
	return label
}

package classifier

import (
	"context"
	"errors"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/sparktutor-go/internal/config"
	"github.com/stretchr/testify/assert"
)

type fakeZeroShot struct {
	result *ZeroShotResult
	err    error
	called bool
}

func (f *fakeZeroShot) Classify(ctx context.Context, text string, candidateLabels []string) (*ZeroShotResult, error) {
	f.called = true
	if f.err != nil {
		return nil, f.err
	}
	return f.result, nil
}

func testConfig() *config.ClassifierConfig {
	return &config.ClassifierConfig{
		NonEducationalKeywords: []string{
			"movie", "netflix", "watch", "price of", "should i buy", "best ice cream",
		},
		EducationalKeywords: []string{
			"explain", "how", "define", "difference between", "teach me",
		},
		ConfidenceThreshold: 0.85,
	}
}

func newTestClassifier(zs ZeroShotClassifier) *Classifier {
	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel)
	return New(testConfig(), zs, logger, nil)
}

func TestIsEducational_EmptyText(t *testing.T) {
	c := newTestClassifier(nil)

	assert.False(t, c.IsEducational(context.Background(), ""))
	assert.False(t, c.IsEducational(context.Background(), "   \t\n"))
}

func TestIsEducational_EducationalKeyword(t *testing.T) {
	zs := &fakeZeroShot{}
	c := newTestClassifier(zs)

	assert.True(t, c.IsEducational(context.Background(), "explain photosynthesis"))
	assert.False(t, zs.called, "keyword hit must not reach the zero-shot model")
}

func TestIsEducational_NonEducationalTakesPrecedence(t *testing.T) {
	c := newTestClassifier(&fakeZeroShot{})

	// Contains "explain" (educational) but "price of" must win.
	assert.False(t, c.IsEducational(context.Background(), "explain the price of a new phone"))
}

func TestIsEducational_SubstringNotWordBoundary(t *testing.T) {
	c := newTestClassifier(&fakeZeroShot{})

	// "watching" contains "watch"
	assert.False(t, c.IsEducational(context.Background(), "watching the stars tonight"))
}

func TestIsEducational_ZeroShotAboveThreshold(t *testing.T) {
	zs := &fakeZeroShot{
		result: &ZeroShotResult{
			Labels: []string{labelEducational, labelNonEducational},
			Scores: []float64{0.90, 0.10},
		},
	}
	c := newTestClassifier(zs)

	assert.True(t, c.IsEducational(context.Background(), "quantum entanglement basics"))
	assert.True(t, zs.called)
}

func TestIsEducational_ZeroShotBelowThreshold(t *testing.T) {
	zs := &fakeZeroShot{
		result: &ZeroShotResult{
			Labels: []string{labelEducational, labelNonEducational},
			Scores: []float64{0.80, 0.20},
		},
	}
	c := newTestClassifier(zs)

	assert.False(t, c.IsEducational(context.Background(), "quantum entanglement basics"))
}

func TestIsEducational_ZeroShotTopLabelNonEducational(t *testing.T) {
	zs := &fakeZeroShot{
		result: &ZeroShotResult{
			Labels: []string{labelNonEducational, labelEducational},
			Scores: []float64{0.95, 0.05},
		},
	}
	c := newTestClassifier(zs)

	assert.False(t, c.IsEducational(context.Background(), "something ambiguous"))
}

func TestIsEducational_ZeroShotErrorFailsOpen(t *testing.T) {
	zs := &fakeZeroShot{err: errors.New("model loading")}
	c := newTestClassifier(zs)

	assert.True(t, c.IsEducational(context.Background(), "something ambiguous"))
}

func TestIsEducational_ZeroShotErrorFiresHook(t *testing.T) {
	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel)

	errorCount := 0
	zs := &fakeZeroShot{err: errors.New("model loading")}
	c := New(testConfig(), zs, logger, func() { errorCount++ })

	assert.True(t, c.IsEducational(context.Background(), "something ambiguous"))
	assert.Equal(t, 1, errorCount)

	// Successful classification must not fire the hook.
	zs.err = nil
	zs.result = &ZeroShotResult{
		Labels: []string{labelEducational, labelNonEducational},
		Scores: []float64{0.90, 0.10},
	}
	assert.True(t, c.IsEducational(context.Background(), "something ambiguous"))
	assert.Equal(t, 1, errorCount)
}

func TestIsEducational_NilZeroShotAdmits(t *testing.T) {
	c := newTestClassifier(nil)

	assert.True(t, c.IsEducational(context.Background(), "something ambiguous"))
}

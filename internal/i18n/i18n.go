package i18n

import (
	"encoding/json"
	"fmt"
	"path/filepath"

	"github.com/nicksnyder/go-i18n/v2/i18n"
	"github.com/sparktutor-go/internal/config"
	"golang.org/x/text/language"
)

// Localizer manages internationalization of the user-facing canned strings.
// The router apology string is intentionally not localized.
type Localizer struct {
	bundle          *i18n.Bundle
	defaultLanguage string
	localizers      map[string]*i18n.Localizer
}

// NewLocalizer creates a new localizer
func NewLocalizer(cfg *config.I18nConfig) (*Localizer, error) {
	bundle := i18n.NewBundle(language.English)
	bundle.RegisterUnmarshalFunc("json", json.Unmarshal)

	for _, lang := range cfg.Languages {
		path := filepath.Join(cfg.Directory, lang+".json")
		if _, err := bundle.LoadMessageFile(path); err != nil {
			return nil, fmt.Errorf("failed to load language file %s: %w", path, err)
		}
	}

	localizers := make(map[string]*i18n.Localizer)
	for _, lang := range cfg.Languages {
		localizers[lang] = i18n.NewLocalizer(bundle, lang)
	}

	return &Localizer{
		bundle:          bundle,
		defaultLanguage: cfg.DefaultLanguage,
		localizers:      localizers,
	}, nil
}

// Get returns localized message
func (l *Localizer) Get(lang, messageID string, data map[string]interface{}) string {
	localizer, exists := l.localizers[lang]
	if !exists {
		localizer = l.localizers[l.defaultLanguage]
	}
	if localizer == nil {
		return messageID
	}

	msg, err := localizer.Localize(&i18n.LocalizeConfig{
		MessageID:    messageID,
		TemplateData: data,
	})
	if err != nil {
		return messageID // Fallback to message ID
	}

	return msg
}

// Message IDs
const (
	MsgNotEducational     = "not_educational"
	MsgFileNotEducational = "file_not_educational"
	MsgMessageRequired    = "message_required"
	MsgNoFile             = "no_file"
	MsgUnsupportedFile    = "unsupported_file_type"
	MsgExtractionFailed   = "extraction_failed"
	MsgFileTooLarge       = "file_too_large"
	MsgNotFound           = "not_found"
	MsgInternalError      = "internal_error"
	MsgRateLimitExceeded  = "rate_limit_exceeded"
	MsgProcessing         = "processing"
	MsgWelcome            = "welcome"
)

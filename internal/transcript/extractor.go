package transcript

import (
	"fmt"

	"go.uber.org/zap"
)

// Extractor bundles a rule table with the classification and cleaning
// operations that consult it. The zero value is not usable; use New.
type Extractor struct {
	rules  *RuleSet
	logger *zap.Logger
}

// Default uses the built-in rule table. The package-level functions
// delegate to it.
var Default = New(DefaultRules, nil)

func New(rules *RuleSet, logger *zap.Logger) *Extractor {
	if rules == nil {
		rules = DefaultRules
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Extractor{rules: rules, logger: logger}
}

// NewFromFile extends the default table with the rules in a YAML file. An
// empty path yields the defaults unchanged.
func NewFromFile(path string, logger *zap.Logger) (*Extractor, error) {
	if path == "" {
		return New(DefaultRules, logger), nil
	}
	extra, err := LoadRules(path)
	if err != nil {
		return nil, fmt.Errorf("failed to load transcript rules: %w", err)
	}
	e := New(DefaultRules.With(extra...), logger)
	e.logger.Info("Loaded custom transcript rules",
		zap.String("path", path),
		zap.Int("custom", len(extra)),
		zap.Int("total", e.rules.Len()),
	)
	return e, nil
}

func (e *Extractor) Rules() *RuleSet {
	return e.rules
}

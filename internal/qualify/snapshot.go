package qualify

import (
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/weaveai/weave/pkg/utils"
)

// Snapshot holds the current rule set. Readers get an immutable slice; Reload swaps in a
// new set only if the rule file parses.
type Snapshot struct {
	path   string
	rules  atomic.Pointer[[]Rule]
	logger *zap.Logger
}

// NewSnapshot returns a Snapshot seeded with rules. With a non-empty path, Reload re-reads it.
func NewSnapshot(path string, rules []Rule, logger *zap.Logger) *Snapshot {
	s := &Snapshot{path: path, logger: utils.OrNop(logger)}
	s.set(rules)
	return s
}

// LoadSnapshot loads path, or falls back to DefaultRules when path is empty.
func LoadSnapshot(path string, logger *zap.Logger) (*Snapshot, error) {
	if path == "" {
		return NewSnapshot("", DefaultRules(), logger), nil
	}
	rules, err := LoadRules(path)
	if err != nil {
		return nil, err
	}
	return NewSnapshot(path, rules, logger), nil
}

func (s *Snapshot) set(rules []Rule) {
	cp := make([]Rule, len(rules))
	copy(cp, rules)
	s.rules.Store(&cp)
}

// Rules returns the current rule set. Callers must not modify it.
func (s *Snapshot) Rules() []Rule {
	return *s.rules.Load()
}

// Path returns the backing rule file, if any.
func (s *Snapshot) Path() string {
	return s.path
}

// Reload re-reads the rule file. On error the previous set stays in place.
func (s *Snapshot) Reload() error {
	if s.path == "" {
		return nil
	}
	rules, err := LoadRules(s.path)
	if err != nil {
		s.logger.Warn("Rule reload failed, keeping previous rule set",
			zap.String("path", s.path),
			zap.Error(err))
		return err
	}
	s.set(rules)
	s.logger.Info("Rule set reloaded",
		zap.String("path", s.path),
		zap.Int("rules", len(rules)))
	return nil
}

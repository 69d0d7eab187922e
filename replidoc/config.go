package replidoc

import (
	"fmt"
	"time"
)

// Config tunes a document's optional subsystems. Documents created with New
// use DefaultConfig; NewWithConfig applies a validated Config.
type Config struct {
	// TreeJitter is the number of extra random bytes appended to generated
	// fractional indices. Zero means deterministic keys; concurrent peers
	// inserting at the same slot will then collide and fall back to
	// last-move ordering.
	TreeJitter uint8 `yaml:"tree_jitter"`

	// UndoMergeInterval merges local transactions committed within the
	// interval into one undo step. Zero disables merging.
	UndoMergeInterval time.Duration `yaml:"undo_merge_interval"`

	// MaxUndoSteps caps the undo stack of managers created for this
	// document; the oldest steps are evicted first.
	MaxUndoSteps int `yaml:"max_undo_steps"`
}

// DefaultConfig returns the configuration used when none is given.
func DefaultConfig() Config {
	return Config{
		TreeJitter:        0,
		UndoMergeInterval: 0,
		MaxUndoSteps:      100,
	}
}

// ValidateConfig checks the configuration for consistency and completeness.
func ValidateConfig(c Config) error {
	if c.UndoMergeInterval < 0 {
		return fmt.Errorf("undo merge interval cannot be negative: %v", c.UndoMergeInterval)
	}
	if c.MaxUndoSteps < 0 {
		return fmt.Errorf("max undo steps cannot be negative: %d", c.MaxUndoSteps)
	}
	const maxUndoStepsLimit = 10000
	if c.MaxUndoSteps > maxUndoStepsLimit {
		return fmt.Errorf("too many undo steps: %d (maximum %d)", c.MaxUndoSteps, maxUndoStepsLimit)
	}
	return nil
}

// NewWithConfig creates a document with a random peer ID and the given
// configuration.
func NewWithConfig(c Config) (*Doc, error) {
	if err := ValidateConfig(c); err != nil {
		return nil, err
	}
	d := New()
	d.config = c
	return d, nil
}

// Config returns the document's configuration.
func (d *Doc) Config() Config {
	res, _ := d.lock.executeWithResult(readOperation, func() (interface{}, error) {
		return d.config, nil
	})
	return res.(Config)
}

// NewUndoManagerFromConfig creates an undo manager honoring the document's
// configured merge interval and step cap.
func NewUndoManagerFromConfig(doc *Doc) *UndoManager {
	cfg := doc.Config()
	u := NewUndoManager(doc)
	if cfg.UndoMergeInterval > 0 {
		u.SetMergeInterval(cfg.UndoMergeInterval)
	}
	if cfg.MaxUndoSteps > 0 {
		u.SetMaxUndoSteps(cfg.MaxUndoSteps)
	}
	return u
}

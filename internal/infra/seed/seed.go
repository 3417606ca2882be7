// Package seed loads the notification catalog from a YAML file.
package seed

import (
	"bytes"
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"week_notification_agent/internal/domain/notification"

	"gopkg.in/yaml.v3"
)

// ErrInvalidCatalog is returned when a catalog file fails validation.
var ErrInvalidCatalog = errors.New("invalid notification catalog")

// File is the on-disk catalog layout.
type File struct {
	Notifications []Entry `yaml:"notifications"`
}

// Entry is one notification rule.
type Entry struct {
	ID            int64  `yaml:"id"`
	Preset        string `yaml:"preset"`
	Week          int    `yaml:"week"`
	Text          string `yaml:"text"`
	InfoMaterials string `yaml:"info_materials,omitempty"`
}

// RuleWriter stores catalog rules, replacing rules with the same id.
type RuleWriter interface {
	UpsertRules(ctx context.Context, rules []*notification.Rule) error
}

// LoadFile reads and validates the catalog at path.
func LoadFile(path string) ([]*notification.Rule, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read catalog %s: %w", path, err)
	}
	rules, err := Parse(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("catalog %s: %w", path, err)
	}
	return rules, nil
}

// Parse decodes a catalog. Unknown fields, duplicate ids, empty presets or texts
// and negative weeks are rejected.
func Parse(r io.Reader) ([]*notification.Rule, error) {
	decoder := yaml.NewDecoder(r)
	decoder.KnownFields(true) // Reject unknown fields

	var file File
	if err := decoder.Decode(&file); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("%w: empty file", ErrInvalidCatalog)
		}
		return nil, fmt.Errorf("%w: %v", ErrInvalidCatalog, err)
	}

	seen := make(map[int64]struct{}, len(file.Notifications))
	rules := make([]*notification.Rule, 0, len(file.Notifications))
	for i, e := range file.Notifications {
		switch {
		case e.ID <= 0:
			return nil, fmt.Errorf("%w: entry %d: id must be positive", ErrInvalidCatalog, i)
		case strings.TrimSpace(e.Preset) == "":
			return nil, fmt.Errorf("%w: notification %d: preset is empty", ErrInvalidCatalog, e.ID)
		case e.Week < 0:
			return nil, fmt.Errorf("%w: notification %d: week must not be negative", ErrInvalidCatalog, e.ID)
		case strings.TrimSpace(e.Text) == "":
			return nil, fmt.Errorf("%w: notification %d: text is empty", ErrInvalidCatalog, e.ID)
		}
		if _, dup := seen[e.ID]; dup {
			return nil, fmt.Errorf("%w: duplicate notification id %d", ErrInvalidCatalog, e.ID)
		}
		seen[e.ID] = struct{}{}

		info := strings.TrimSpace(e.InfoMaterials)
		rules = append(rules, &notification.Rule{
			ID:            e.ID,
			Preset:        strings.TrimSpace(e.Preset),
			WeekOffset:    e.Week,
			Text:          e.Text,
			InfoMaterials: sql.NullString{String: info, Valid: info != ""},
		})
	}
	return rules, nil
}

// Apply loads the catalog at path and writes it through w. It returns the number of rules stored.
func Apply(ctx context.Context, w RuleWriter, path string) (int, error) {
	rules, err := LoadFile(path)
	if err != nil {
		return 0, err
	}
	if err := w.UpsertRules(ctx, rules); err != nil {
		return 0, fmt.Errorf("store catalog: %w", err)
	}
	return len(rules), nil
}

package db

import (
	"context"
	"fmt"
)

// DefaultSettings are the dashboard presentation defaults. Reads merge
// stored rows over these; writes only accept these keys.
var DefaultSettings = map[string]string{
	"site_title":           "WebhookHub",
	"header_text":          "WebhookHub",
	"favicon_url":          "/static/favicon.svg",
	"font_family":          "DM Sans",
	"font_size":            "14",
	"color_accent":         "#3b82f6",
	"color_text_primary":   "#e2e8f0",
	"color_text_secondary": "#8896b0",
}

// GetSettings returns the stored settings merged over the defaults.
func (r *Repository) GetSettings(ctx context.Context) (map[string]string, error) {
	result := make(map[string]string, len(DefaultSettings))
	for k, v := range DefaultSettings {
		result[k] = v
	}

	rows, err := r.db.Pool().Query(ctx, `SELECT key, value FROM settings`)
	if err != nil {
		return nil, fmt.Errorf("query settings: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var key, value string
		if err := rows.Scan(&key, &value); err != nil {
			return nil, fmt.Errorf("scan setting: %w", err)
		}
		result[key] = value
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate rows: %w", err)
	}

	return result, nil
}

// UpdateSettings upserts the given values, silently skipping unknown keys.
func (r *Repository) UpdateSettings(ctx context.Context, values map[string]string) error {
	for key, value := range values {
		if _, known := DefaultSettings[key]; !known {
			continue
		}

		_, err := r.db.Pool().Exec(ctx, `
			INSERT INTO settings (key, value) VALUES ($1, $2)
			ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value
		`, key, value)
		if err != nil {
			return fmt.Errorf("upsert setting %s: %w", key, err)
		}
	}

	return nil
}

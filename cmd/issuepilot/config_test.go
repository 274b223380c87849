package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/forgeworks/issuepilot/internal/config"
)

func TestParseValue(t *testing.T) {
	assert.Equal(t, true, parseValue("true"))
	assert.Equal(t, 0.8, parseValue("0.8"))
	assert.Equal(t, []interface{}{"auto-fix", "bug"}, parseValue(`["auto-fix","bug"]`))
	assert.Equal(t, "auto-fix", parseValue("auto-fix"))
}

func TestFormatValue(t *testing.T) {
	assert.Equal(t, "true", formatValue(true))
	assert.Equal(t, "0.8", formatValue(0.8))
	assert.Equal(t, "auto-fix", formatValue("auto-fix"))
	assert.Equal(t, `["auto-fix"]`, formatValue([]interface{}{"auto-fix"}))
}

func TestEffectiveConfig(t *testing.T) {
	store := config.NewStore(t.TempDir())
	require.NoError(t, store.SetValue("auto_fix_enabled", true))
	require.NoError(t, store.SetValue("model", "gpt-large"))

	doc := effectiveConfig(store)
	assert.Equal(t, true, doc["auto_fix_enabled"])
	assert.Equal(t, 0.8, doc["duplicate_threshold"], "unset keys show defaults")
	assert.Equal(t, "gpt-large", doc["model"], "unrecognized keys still listed")
}

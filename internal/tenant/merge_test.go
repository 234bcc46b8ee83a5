// ABOUTME: Tests for tenant document merging over compiled-in defaults
// ABOUTME: Covers partial documents, nulls, idempotency and malformed input

package tenant

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMerge_EmptyDocumentYieldsDefaults(t *testing.T) {
	cfg, err := Merge([]byte(`{}`))
	require.NoError(t, err)
	assert.Equal(t, Defaults(), cfg)
}

func TestMerge_PartialSectionsKeepDefaults(t *testing.T) {
	doc := `{
		"theme": {"primary_color": "#ff0000"},
		"behavior": {"position": "left"},
		"i18n": {"strings": {"welcome": "Ahoy!"}}
	}`

	cfg, err := Merge([]byte(doc))
	require.NoError(t, err)

	def := Defaults()
	assert.Equal(t, "#ff0000", cfg.Theme.PrimaryColor)
	assert.Equal(t, def.Theme.ForegroundColor, cfg.Theme.ForegroundColor)
	assert.Equal(t, def.Theme.Radius, cfg.Theme.Radius)
	assert.Equal(t, def.Theme.FontFamily, cfg.Theme.FontFamily)

	assert.Equal(t, PositionLeft, cfg.Behavior.Position)
	assert.Equal(t, def.Behavior.ZIndex, cfg.Behavior.ZIndex)

	assert.Equal(t, "Ahoy!", cfg.I18n.Strings[StringWelcome])
	assert.Equal(t, def.I18n.Strings[StringPlaceholder], cfg.I18n.Strings[StringPlaceholder])
	assert.Equal(t, def.I18n.Strings[StringSend], cfg.I18n.Strings[StringSend])
	assert.Equal(t, def.I18n.DefaultLocale, cfg.I18n.DefaultLocale)
	assert.Equal(t, def.Menu, cfg.Menu)
	assert.True(t, cfg.Features.Chat)
}

func TestMerge_AnySubsetOfFieldsIsFullyPopulated(t *testing.T) {
	docs := []string{
		`{"theme": {}}`,
		`{"behavior": {"z_index": 10}}`,
		`{"features": {"wallet": true}}`,
		`{"i18n": {"default_locale": "nl"}}`,
		`{"i18n": {"strings": {}}}`,
		`{"integrations": {"crm": "hubspot"}, "cdn": {"base": "https://cdn.example"}}`,
		`{"theme": {"radius": "4px", "font_family": "Georgia"}, "menu": {"options": [{"id": "a", "label": "A"}]}}`,
	}

	for _, doc := range docs {
		t.Run(doc, func(t *testing.T) {
			cfg, err := Merge([]byte(doc))
			require.NoError(t, err)

			assert.NotEmpty(t, cfg.Theme.PrimaryColor)
			assert.NotEmpty(t, cfg.Theme.ForegroundColor)
			assert.NotEmpty(t, cfg.Theme.BackgroundColor)
			assert.NotEmpty(t, cfg.Theme.Radius)
			assert.NotEmpty(t, cfg.Theme.FontFamily)
			assert.NotEmpty(t, cfg.Behavior.Position)
			assert.NotZero(t, cfg.Behavior.ZIndex)
			assert.NotEmpty(t, cfg.I18n.DefaultLocale)
			for id := range Defaults().I18n.Strings {
				assert.NotEmpty(t, cfg.I18n.Strings[id], "string %q missing", id)
			}
			assert.NotEmpty(t, cfg.Menu.Options)
			assert.NotNil(t, cfg.Integrations)
			assert.NotNil(t, cfg.VisibilityRules)
			assert.NotNil(t, cfg.CDN)
		})
	}
}

func TestMerge_NullsFallBackToDefaults(t *testing.T) {
	doc := `{"theme": {"primary_color": null, "radius": "2px"}, "i18n": null}`

	cfg, err := Merge([]byte(doc))
	require.NoError(t, err)

	def := Defaults()
	assert.Equal(t, def.Theme.PrimaryColor, cfg.Theme.PrimaryColor)
	assert.Equal(t, "2px", cfg.Theme.Radius)
	assert.Equal(t, def.I18n, cfg.I18n)
}

func TestMerge_Idempotent(t *testing.T) {
	full := Defaults()
	full.Theme.PrimaryColor = "#123456"
	full.Behavior.AutoOpen = true
	full.Behavior.AutoOpenDelay = 12
	full.I18n.Strings[StringWelcome] = "Welcome aboard"
	full.Integrations = map[string]any{"crm": "pipedrive"}

	data, err := full.JSON()
	require.NoError(t, err)

	once, err := Merge(data)
	require.NoError(t, err)
	assert.Equal(t, full, once)

	again, err := once.JSON()
	require.NoError(t, err)
	twice, err := Merge(again)
	require.NoError(t, err)
	assert.Equal(t, once, twice)
}

func TestMerge_WeaklyTypedValues(t *testing.T) {
	cfg, err := Merge([]byte(`{"behavior": {"z_index": "99", "auto_open": "true"}}`))
	require.NoError(t, err)
	assert.Equal(t, 99, cfg.Behavior.ZIndex)
	assert.True(t, cfg.Behavior.AutoOpen)
}

func TestMerge_Malformed(t *testing.T) {
	cases := map[string]string{
		"not json":      `{"theme":`,
		"array":         `[1, 2, 3]`,
		"null":          `null`,
		"section type":  `{"theme": "red"}`,
		"bool mismatch": `{"features": {"chat": "sometimes"}}`,
	}

	for name, doc := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Merge([]byte(doc))
			assert.Error(t, err)
		})
	}
}

func TestNormalizeKey(t *testing.T) {
	assert.Equal(t, DemoKey, NormalizeKey(""))
	assert.Equal(t, DemoKey, NormalizeKey("   "))
	assert.Equal(t, DemoKey, NormalizeKey("YOUR_PUBLIC_KEY"))
	assert.Equal(t, DemoKey, NormalizeKey("{{PUBLIC_KEY}}"))
	assert.Equal(t, DemoKey, NormalizeKey("undefined"))
	assert.Equal(t, "pk_live_123", NormalizeKey(" pk_live_123 "))
}

func TestConfigString_FallsBackToDefault(t *testing.T) {
	cfg := Defaults()
	delete(cfg.I18n.Strings, StringApology)
	cfg.I18n.Strings[StringSend] = ""

	assert.Equal(t, Defaults().I18n.Strings[StringApology], cfg.String(StringApology))
	assert.Equal(t, Defaults().I18n.Strings[StringSend], cfg.String(StringSend))
	assert.Equal(t, "", cfg.String("does_not_exist"))
}

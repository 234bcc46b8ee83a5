// ABOUTME: Tenant configuration document types and compiled-in defaults
// ABOUTME: Every section a mounted widget reads is declared here with its JSON shape

package tenant

import (
	"encoding/json"
	"strings"
)

// DemoKey is substituted for absent or placeholder tenant keys so the runtime
// stays usable in zero-configuration demo pages.
const DemoKey = "demo-public-key"

// placeholderKeys are values copied verbatim from embed snippets.
var placeholderKeys = map[string]bool{
	"":                true,
	"your_public_key": true,
	"{{public_key}}":  true,
	"<public-key>":    true,
	"undefined":       true,
	"null":            true,
}

// NormalizeKey returns the tenant key to use for requests.
func NormalizeKey(key string) string {
	key = strings.TrimSpace(key)
	if placeholderKeys[strings.ToLower(key)] {
		return DemoKey
	}
	return key
}

// Position is the side of the host page the widget docks to.
type Position string

const (
	PositionLeft  Position = "left"
	PositionRight Position = "right"
)

// String ids used by the runtime.
const (
	StringTitle             = "title"
	StringWelcome           = "welcome"
	StringPlaceholder       = "placeholder"
	StringSend              = "send"
	StringStatusOnline      = "status_online"
	StringBack              = "back"
	StringScrollMore        = "scroll_more"
	StringFooterShortcut    = "footer_shortcut"
	StringApology           = "apology"
	StringReplyFallback     = "reply_fallback"
	StringVoiceUnsupported  = "voice_unsupported"
	StringVoiceFailed       = "voice_failed"
	StringAttachmentTooBig  = "attachment_too_large"
	StringAttachmentUnknown = "attachment_unreadable"
)

// Config is the merged tenant configuration.
type Config struct {
	Theme           Theme          `json:"theme" koanf:"theme"`
	Behavior        Behavior       `json:"behavior" koanf:"behavior"`
	Features        Features       `json:"features" koanf:"features"`
	I18n            I18n           `json:"i18n" koanf:"i18n"`
	Menu            Menu           `json:"menu" koanf:"menu"`
	Integrations    map[string]any `json:"integrations" koanf:"integrations"`
	VisibilityRules map[string]any `json:"visibility_rules" koanf:"visibility_rules"`
	CDN             map[string]any `json:"cdn" koanf:"cdn"`
}

// Theme holds the visual tokens.
type Theme struct {
	PrimaryColor    string `json:"primary_color" koanf:"primary_color"`
	ForegroundColor string `json:"foreground_color" koanf:"foreground_color"`
	BackgroundColor string `json:"background_color" koanf:"background_color"`
	Radius          string `json:"radius" koanf:"radius"`
	FontFamily      string `json:"font_family" koanf:"font_family"`
}

// Behavior holds positioning and auto-open settings.
type Behavior struct {
	Position      Position `json:"position" koanf:"position"`
	AutoOpen      bool     `json:"auto_open" koanf:"auto_open"`
	ExitIntent    bool     `json:"exit_intent" koanf:"exit_intent"`
	AutoOpenDelay int      `json:"auto_open_delay" koanf:"auto_open_delay"` // seconds, 0 disables
	ZIndex        int      `json:"z_index" koanf:"z_index"`
}

// Features holds capability flags. Only Chat changes runtime behavior.
type Features struct {
	Chat     bool `json:"chat" koanf:"chat"`
	Wallet   bool `json:"wallet" koanf:"wallet"`
	Offers   bool `json:"offers" koanf:"offers"`
	LeadForm bool `json:"lead_form" koanf:"lead_form"`
}

// I18n holds the locale and string table.
type I18n struct {
	DefaultLocale string            `json:"default_locale" koanf:"default_locale"`
	Strings       map[string]string `json:"strings" koanf:"strings"`
}

// Menu lists the options offered on the menu screen.
type Menu struct {
	Options []MenuOption `json:"options" koanf:"options"`
}

// MenuOption is a single menu entry. Selecting it sends Label as a user turn.
type MenuOption struct {
	ID    string `json:"id" koanf:"id"`
	Label string `json:"label" koanf:"label"`
}

// Defaults returns the compiled-in configuration. Each call returns a fresh
// copy that the caller may mutate.
func Defaults() Config {
	return Config{
		Theme: Theme{
			PrimaryColor:    "#1f6feb",
			ForegroundColor: "#ffffff",
			BackgroundColor: "#ffffff",
			Radius:          "16px",
			FontFamily:      "Inter, system-ui, sans-serif",
		},
		Behavior: Behavior{
			Position:      PositionRight,
			AutoOpen:      false,
			ExitIntent:    false,
			AutoOpenDelay: 0,
			ZIndex:        2147483000,
		},
		Features: Features{
			Chat:     true,
			Wallet:   false,
			Offers:   false,
			LeadForm: false,
		},
		I18n: I18n{
			DefaultLocale: "en",
			Strings: map[string]string{
				StringTitle:             "Chat with us",
				StringWelcome:           "Hi there! How can we help you today?",
				StringPlaceholder:       "Type a message...",
				StringSend:              "Send",
				StringStatusOnline:      "Online",
				StringBack:              "Back",
				StringScrollMore:        "Scroll for more",
				StringFooterShortcut:    "Start a conversation",
				StringApology:           "Sorry, something went wrong. Please try again in a moment.",
				StringReplyFallback:     "Response received.",
				StringVoiceUnsupported:  "Voice input is not supported here.",
				StringVoiceFailed:       "We could not hear you. Please try again.",
				StringAttachmentTooBig:  "That file is too large. The limit is 10 MB.",
				StringAttachmentUnknown: "That file could not be read.",
			},
		},
		Menu: Menu{
			Options: []MenuOption{
				{ID: "pricing", Label: "I have a question about pricing"},
				{ID: "booking", Label: "I want to make a booking"},
				{ID: "support", Label: "I need help with an existing booking"},
				{ID: "other", Label: "Something else"},
			},
		},
		Integrations:    map[string]any{},
		VisibilityRules: map[string]any{},
		CDN:             map[string]any{},
	}
}

// String returns the string table entry for id, falling back to the
// compiled-in default when the tenant table lacks it.
func (c Config) String(id string) string {
	if s, ok := c.I18n.Strings[id]; ok && s != "" {
		return s
	}
	return Defaults().I18n.Strings[id]
}

// JSON encodes the configuration for persistence.
func (c Config) JSON() ([]byte, error) {
	return json.Marshal(c)
}

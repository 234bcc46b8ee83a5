// ABOUTME: Builds the widget node tree from a resolved tenant configuration
// ABOUTME: Pure function; tokens are validated before they reach any style

package render

import (
	"regexp"
	"strconv"

	"github.com/2389/coven-widget/internal/tenant"
)

var (
	colorPattern  = regexp.MustCompile(`^(#[0-9a-fA-F]{3,8}|(rgb|rgba|hsl|hsla)\([0-9.,%\s]+\)|[a-zA-Z]{3,20})$`)
	lengthPattern = regexp.MustCompile(`^[0-9]+(\.[0-9]+)?(px|rem|em|%)?$`)
	fontPattern   = regexp.MustCompile(`^[a-zA-Z0-9 ,\-'"]+$`)
)

// tokens are the sanitized style values used by Build.
type tokens struct {
	primary    string
	foreground string
	background string
	radius     string
	font       string
	side       string
	zIndex     string
}

func resolveTokens(cfg tenant.Config) tokens {
	def := tenant.Defaults()

	pick := func(v, fallback string, re *regexp.Regexp) string {
		if re.MatchString(v) {
			return v
		}
		return fallback
	}

	side := string(tenant.PositionRight)
	if cfg.Behavior.Position == tenant.PositionLeft {
		side = string(tenant.PositionLeft)
	}

	z := cfg.Behavior.ZIndex
	if z <= 0 {
		z = def.Behavior.ZIndex
	}

	return tokens{
		primary:    pick(cfg.Theme.PrimaryColor, def.Theme.PrimaryColor, colorPattern),
		foreground: pick(cfg.Theme.ForegroundColor, def.Theme.ForegroundColor, colorPattern),
		background: pick(cfg.Theme.BackgroundColor, def.Theme.BackgroundColor, colorPattern),
		radius:     pick(cfg.Theme.Radius, def.Theme.Radius, lengthPattern),
		font:       pick(cfg.Theme.FontFamily, def.Theme.FontFamily, fontPattern),
		side:       side,
		zIndex:     strconv.Itoa(z),
	}
}

// Build produces the widget tree for cfg. It reads only cfg and returns a
// fresh tree on every call. Session state is applied later through a View.
func Build(cfg tenant.Config) *Tree {
	tk := resolveTokens(cfg)

	root := &Node{
		ID:   IDRoot,
		Kind: KindContainer,
		Style: map[string]string{
			"position":    "fixed",
			"bottom":      "24px",
			tk.side:       "24px",
			"z-index":     tk.zIndex,
			"font-family": tk.font,
		},
		Attrs: map[string]string{AttrOpen: "false", AttrScreen: "menu"},
		Children: []*Node{
			buildToggle(cfg, tk),
			buildPanel(cfg, tk),
		},
	}
	return newTree(root)
}

func buildToggle(cfg tenant.Config, tk tokens) *Node {
	return &Node{
		ID:   IDToggle,
		Kind: KindButton,
		Text: cfg.String(tenant.StringTitle),
		Style: map[string]string{
			"background":    tk.primary,
			"color":         tk.foreground,
			"border-radius": "50%",
		},
		Attrs: map[string]string{AttrPressed: "false"},
	}
}

func buildPanel(cfg tenant.Config, tk tokens) *Node {
	return &Node{
		ID:     IDPanel,
		Kind:   KindContainer,
		Hidden: true,
		Style: map[string]string{
			"background":    tk.background,
			"border-radius": tk.radius,
			tk.side:         "0",
		},
		Children: []*Node{
			buildHeader(cfg, tk),
			{
				ID:     IDNotice,
				Kind:   KindText,
				Hidden: true,
				Attrs:  map[string]string{AttrBlocking: "false"},
				Children: []*Node{
					{ID: IDNoticeDismiss, Kind: KindButton, Text: "dismiss"},
				},
			},
			buildBody(cfg),
			{ID: IDAttachmentPreview, Kind: KindContainer, Hidden: true},
			buildInputRow(cfg, tk),
			buildFooter(cfg),
		},
	}
}

func buildHeader(cfg tenant.Config, tk tokens) *Node {
	return &Node{
		ID:   IDHeader,
		Kind: KindContainer,
		Style: map[string]string{
			"background":    tk.primary,
			"color":         tk.foreground,
			"border-radius": tk.radius + " " + tk.radius + " 0 0",
		},
		Children: []*Node{
			{ID: IDBack, Kind: KindButton, Text: cfg.String(tenant.StringBack), Hidden: true},
			{ID: IDTitle, Kind: KindText, Text: cfg.String(tenant.StringTitle)},
			{ID: IDStatus, Kind: KindIndicator, Text: cfg.String(tenant.StringStatusOnline)},
			{ID: IDMute, Kind: KindButton, Text: "mute", Attrs: map[string]string{AttrPressed: "false"}},
		},
	}
}

func buildBody(cfg tenant.Config) *Node {
	options := &Node{ID: IDOptions, Kind: KindContainer}
	for _, opt := range cfg.Menu.Options {
		options.Children = append(options.Children, &Node{
			ID:    OptionNodeID(opt.ID),
			Kind:  KindButton,
			Text:  opt.Label,
			Attrs: map[string]string{AttrOptionID: opt.ID},
		})
	}

	return &Node{
		ID:   IDBody,
		Kind: KindContainer,
		Children: []*Node{
			{
				ID:   IDMenu,
				Kind: KindContainer,
				Children: []*Node{
					{ID: IDWelcome, Kind: KindText, Text: cfg.String(tenant.StringWelcome)},
					options,
					{ID: IDScrollHint, Kind: KindText, Text: cfg.String(tenant.StringScrollMore)},
				},
			},
			{
				ID:     IDConversation,
				Kind:   KindContainer,
				Hidden: true,
				Children: []*Node{
					{ID: IDTranscript, Kind: KindContainer},
				},
			},
		},
	}
}

func buildInputRow(cfg tenant.Config, tk tokens) *Node {
	return &Node{
		ID:     IDInputRow,
		Kind:   KindContainer,
		Hidden: !cfg.Features.Chat,
		Children: []*Node{
			{ID: IDAttach, Kind: KindButton, Text: "attach"},
			{
				ID:    IDInput,
				Kind:  KindInput,
				Attrs: map[string]string{AttrPlaceholder: cfg.String(tenant.StringPlaceholder), AttrValue: ""},
			},
			{ID: IDVoice, Kind: KindButton, Text: "voice", Attrs: map[string]string{AttrPressed: "false"}},
			{
				ID:   IDSend,
				Kind: KindButton,
				Text: cfg.String(tenant.StringSend),
				Style: map[string]string{
					"background": tk.primary,
					"color":      tk.foreground,
				},
			},
		},
	}
}

func buildFooter(cfg tenant.Config) *Node {
	return &Node{
		ID:   IDFooter,
		Kind: KindContainer,
		Children: []*Node{
			{ID: IDShortcut, Kind: KindButton, Text: cfg.String(tenant.StringFooterShortcut)},
			{ID: IDBranding, Kind: KindText, Text: "Powered by Coven"},
		},
	}
}

// OptionNodeID returns the node id of a menu option.
func OptionNodeID(optionID string) string {
	return "option-" + optionID
}

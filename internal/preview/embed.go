// ABOUTME: Embeds the preview page template into the binary using go:embed
// ABOUTME: Provides templateFS for parsing at startup

package preview

import "embed"

//go:embed templates/*.html
var templateFS embed.FS

// ABOUTME: Plain-text adapter that renders the visible parts of a widget tree
// ABOUTME: Used by the terminal host and in logs

package render

import (
	"fmt"
	"strings"

	"github.com/2389/coven-widget/internal/session"
)

// Text renders the visible nodes of t as lines of plain text.
func Text(t *Tree) string {
	var b strings.Builder
	writeText(&b, t.Root)
	return b.String()
}

func writeText(b *strings.Builder, n *Node) {
	if n.Hidden {
		return
	}

	switch {
	case n.ID == IDToggle:
		state := "closed"
		if n.Attrs[AttrPressed] == "true" {
			state = "open"
		}
		fmt.Fprintf(b, "(%s) [%s]\n", n.Text, state)
	case n.ID == IDTitle:
		fmt.Fprintf(b, "== %s", n.Text)
	case n.ID == IDStatus:
		fmt.Fprintf(b, " * %s ==\n", n.Text)
	case n.ID == IDMute:
		if n.Attrs[AttrPressed] == "true" {
			b.WriteString("(muted)\n")
		}
	case n.ID == IDNotice:
		prefix := "!"
		if n.Attrs[AttrBlocking] == "true" {
			prefix = "!!"
		}
		fmt.Fprintf(b, "%s %s\n", prefix, n.Text)
	case n.ID == IDInput:
		fmt.Fprintf(b, "> %s\n", inputLine(n))
	case n.ID == IDBranding, n.ID == IDAttach, n.ID == IDVoice, n.ID == IDSend:
	case n.Attrs[AttrOptionID] != "":
		fmt.Fprintf(b, "  - %s\n", n.Text)
	case n.Kind == KindBubble:
		who := "you"
		if n.Attrs[AttrSender] == string(session.SenderSystem) {
			who = "bot"
		}
		fmt.Fprintf(b, "%s: %s\n", who, n.Text)
	case n.Kind == KindIndicator:
		b.WriteString("bot is typing...\n")
	case n.Kind == KindImage:
		fmt.Fprintf(b, "  [image %s]\n", n.Text)
	case n.Kind == KindText && n.Text != "":
		b.WriteString(n.Text + "\n")
	case n.Kind == KindButton && n.Text != "":
		fmt.Fprintf(b, "[%s]\n", n.Text)
	}

	for _, c := range n.Children {
		writeText(b, c)
	}
}

func inputLine(n *Node) string {
	if v := n.Attrs[AttrValue]; v != "" {
		return v
	}
	return n.Attrs[AttrPlaceholder]
}

// ABOUTME: Platform-neutral node tree produced by the render builder
// ABOUTME: Nodes carry kind, text, visibility, style tokens and attributes

package render

// Kind is the element type of a node.
type Kind string

const (
	KindContainer Kind = "container"
	KindButton    Kind = "button"
	KindText      Kind = "text"
	KindInput     Kind = "input"
	KindBubble    Kind = "bubble"
	KindImage     Kind = "image"
	KindIndicator Kind = "indicator"
)

// Well-known node ids.
const (
	IDRoot              = "coven-widget"
	IDToggle            = "toggle"
	IDPanel             = "panel"
	IDHeader            = "header"
	IDTitle             = "title"
	IDStatus            = "status"
	IDBack              = "back"
	IDMute              = "mute"
	IDNotice            = "notice"
	IDNoticeDismiss     = "notice-dismiss"
	IDBody              = "body"
	IDMenu              = "menu"
	IDWelcome           = "welcome"
	IDOptions           = "options"
	IDScrollHint        = "scroll-hint"
	IDConversation      = "conversation"
	IDTranscript        = "transcript"
	IDAttachmentPreview = "attachment-preview"
	IDAttachmentRemove  = "attachment-remove"
	IDInputRow          = "input-row"
	IDAttach            = "attach"
	IDInput             = "input"
	IDVoice             = "voice"
	IDSend              = "send"
	IDFooter            = "footer"
	IDShortcut          = "shortcut"
	IDBranding          = "branding"
)

// Attribute names set on nodes.
const (
	AttrOptionID    = "option-id"
	AttrSender      = "sender"
	AttrMessageID   = "message-id"
	AttrPlaceholder = "placeholder"
	AttrValue       = "value"
	AttrSrc         = "src"
	AttrPressed     = "pressed"
	AttrBlocking    = "blocking"
	AttrScreen      = "screen"
	AttrOpen        = "open"
)

// Node is one element of the tree.
type Node struct {
	ID       string
	Kind     Kind
	Text     string
	Hidden   bool
	Style    map[string]string
	Attrs    map[string]string
	Children []*Node
}

func (n *Node) clone() *Node {
	c := &Node{
		ID:     n.ID,
		Kind:   n.Kind,
		Text:   n.Text,
		Hidden: n.Hidden,
	}
	if n.Style != nil {
		c.Style = make(map[string]string, len(n.Style))
		for k, v := range n.Style {
			c.Style[k] = v
		}
	}
	if n.Attrs != nil {
		c.Attrs = make(map[string]string, len(n.Attrs))
		for k, v := range n.Attrs {
			c.Attrs[k] = v
		}
	}
	for _, child := range n.Children {
		c.Children = append(c.Children, child.clone())
	}
	return c
}

// Tree is a rendered widget. Nodes are indexed by id.
type Tree struct {
	Root *Node
	byID map[string]*Node
}

func newTree(root *Node) *Tree {
	t := &Tree{Root: root, byID: make(map[string]*Node)}
	t.index(root)
	return t
}

func (t *Tree) index(n *Node) {
	if n.ID != "" {
		t.byID[n.ID] = n
	}
	for _, c := range n.Children {
		t.index(c)
	}
}

func (t *Tree) unindex(n *Node) {
	delete(t.byID, n.ID)
	for _, c := range n.Children {
		t.unindex(c)
	}
}

// Find returns the node with id, or nil.
func (t *Tree) Find(id string) *Node {
	return t.byID[id]
}

// Clone returns a deep copy that shares nothing with t.
func (t *Tree) Clone() *Tree {
	return newTree(t.Root.clone())
}

// appendChild adds child under the node with parentID.
func (t *Tree) appendChild(parentID string, child *Node) bool {
	parent := t.Find(parentID)
	if parent == nil {
		return false
	}
	parent.Children = append(parent.Children, child)
	t.index(child)
	return true
}

// removeChild removes the direct child id of parentID.
func (t *Tree) removeChild(parentID, id string) bool {
	parent := t.Find(parentID)
	if parent == nil {
		return false
	}
	for i, c := range parent.Children {
		if c.ID == id {
			parent.Children = append(parent.Children[:i], parent.Children[i+1:]...)
			t.unindex(c)
			return true
		}
	}
	return false
}

// clearChildren removes every child of id.
func (t *Tree) clearChildren(id string) {
	n := t.Find(id)
	if n == nil {
		return
	}
	for _, c := range n.Children {
		t.unindex(c)
	}
	n.Children = nil
}

func (t *Tree) setHidden(id string, hidden bool) {
	if n := t.Find(id); n != nil {
		n.Hidden = hidden
	}
}

// Visible reports whether id exists and neither it nor any ancestor is hidden.
func (t *Tree) Visible(id string) bool {
	var walk func(n *Node) (found, visible bool)
	walk = func(n *Node) (bool, bool) {
		if n.ID == id {
			return true, !n.Hidden
		}
		for _, c := range n.Children {
			if found, visible := walk(c); found {
				return true, visible && !n.Hidden
			}
		}
		return false, false
	}
	_, visible := walk(t.Root)
	return visible
}

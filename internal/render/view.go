// ABOUTME: Mounted, mutable view over a built tree
// ABOUTME: Applies session state and draws messages, typing indicators and notices

package render

import (
	"fmt"
	"strconv"

	"github.com/2389/coven-widget/internal/session"
)

// Notice is a transient message shown above the conversation.
// While a blocking notice is shown the input cannot be sent.
type Notice struct {
	Text     string
	Blocking bool
}

// Cuer plays the reply chime. Hosts without audio leave it nil.
type Cuer interface {
	Cue()
}

// View is the mounted surface of one tree. It is not safe for concurrent
// use; the lifecycle event loop owns it.
type View struct {
	tree   *Tree
	cuer   Cuer
	chimes int
	notice *Notice
}

// NewView wraps a freshly built tree.
func NewView(tree *Tree, cuer Cuer) *View {
	return &View{tree: tree, cuer: cuer}
}

// Tree returns the live tree. Callers must not keep it past the current event.
func (v *View) Tree() *Tree {
	return v.tree
}

// ApplyState makes the tree reflect the session.
func (v *View) ApplyState(s *session.Session, chatEnabled bool) {
	vis := s.Visibility(chatEnabled)
	t := v.tree

	t.setHidden(IDPanel, !vis.Panel)
	t.setHidden(IDBack, !vis.Back)
	t.setHidden(IDMenu, !vis.Menu)
	t.setHidden(IDScrollHint, !vis.ScrollHint)
	t.setHidden(IDShortcut, !vis.FooterShortcut)
	t.setHidden(IDConversation, !vis.Transcript)
	t.setHidden(IDInputRow, !vis.InputRow)

	t.Root.Attrs[AttrOpen] = strconv.FormatBool(s.Open)
	t.Root.Attrs[AttrScreen] = string(s.Screen)
	setAttr(t, IDToggle, AttrPressed, strconv.FormatBool(s.Open))
	setAttr(t, IDMute, AttrPressed, strconv.FormatBool(s.Muted))
	setAttr(t, IDVoice, AttrPressed, strconv.FormatBool(s.Listening))

	if s.Staged != nil {
		v.ShowAttachment(s.Staged.AttachmentDescriptor)
	} else {
		v.ClearAttachment()
	}
}

// AppendMessage adds a bubble to the transcript.
func (v *View) AppendMessage(m session.Message) {
	bubble := &Node{
		ID:   MessageNodeID(m.ID),
		Kind: KindBubble,
		Text: m.Body,
		Attrs: map[string]string{
			AttrSender:    string(m.Sender),
			AttrMessageID: m.ID,
		},
	}
	if m.Attachment != nil {
		bubble.Children = append(bubble.Children, attachmentNode(m.ID, *m.Attachment))
	}
	v.tree.appendChild(IDTranscript, bubble)
}

// ShowTyping adds a typing indicator with the given id.
func (v *View) ShowTyping(id string) {
	v.tree.appendChild(IDTranscript, &Node{
		ID:   TypingNodeID(id),
		Kind: KindIndicator,
		Text: "...",
	})
}

// HideTyping removes the typing indicator with the given id.
func (v *View) HideTyping(id string) {
	v.tree.removeChild(IDTranscript, TypingNodeID(id))
}

// SetInput replaces the text in the input field.
func (v *View) SetInput(text string) {
	setAttr(v.tree, IDInput, AttrValue, text)
}

// InputValue returns the text in the input field.
func (v *View) InputValue() string {
	if n := v.tree.Find(IDInput); n != nil {
		return n.Attrs[AttrValue]
	}
	return ""
}

// ClearInput empties the input field.
func (v *View) ClearInput() {
	v.SetInput("")
}

// ShowAttachment renders the staged attachment preview.
func (v *View) ShowAttachment(d session.AttachmentDescriptor) {
	v.tree.clearChildren(IDAttachmentPreview)
	v.tree.appendChild(IDAttachmentPreview, attachmentNode("staged", d))
	v.tree.appendChild(IDAttachmentPreview, &Node{ID: IDAttachmentRemove, Kind: KindButton, Text: "remove"})
	v.tree.setHidden(IDAttachmentPreview, false)
}

// ClearAttachment removes the staged attachment preview.
func (v *View) ClearAttachment() {
	v.tree.clearChildren(IDAttachmentPreview)
	v.tree.setHidden(IDAttachmentPreview, true)
}

// ShowNotice displays n, replacing any current notice.
func (v *View) ShowNotice(n Notice) {
	v.notice = &n
	node := v.tree.Find(IDNotice)
	if node == nil {
		return
	}
	node.Text = n.Text
	node.Hidden = false
	node.Attrs[AttrBlocking] = strconv.FormatBool(n.Blocking)
}

// DismissNotice hides the current notice.
func (v *View) DismissNotice() {
	v.notice = nil
	if node := v.tree.Find(IDNotice); node != nil {
		node.Text = ""
		node.Hidden = true
		node.Attrs[AttrBlocking] = "false"
	}
}

// Notice returns the current notice, if any.
func (v *View) Notice() (Notice, bool) {
	if v.notice == nil {
		return Notice{}, false
	}
	return *v.notice, true
}

// Chime plays the reply cue.
func (v *View) Chime() {
	v.chimes++
	if v.cuer != nil {
		v.cuer.Cue()
	}
}

// Chimes returns how many cues this view has played.
func (v *View) Chimes() int {
	return v.chimes
}

// MessageNodeID returns the node id of a transcript bubble.
func MessageNodeID(messageID string) string {
	return "msg-" + messageID
}

// TypingNodeID returns the node id of a typing indicator.
func TypingNodeID(id string) string {
	return "typing-" + id
}

func attachmentNode(owner string, d session.AttachmentDescriptor) *Node {
	label := fmt.Sprintf("%s (%s)", d.Name, humanSize(d.SizeBytes))
	if d.PreviewDataURI != "" {
		return &Node{
			ID:    "attachment-" + owner,
			Kind:  KindImage,
			Text:  label,
			Attrs: map[string]string{AttrSrc: d.PreviewDataURI},
		}
	}
	return &Node{
		ID:   "attachment-" + owner,
		Kind: KindText,
		Text: label,
	}
}

func humanSize(n int64) string {
	switch {
	case n >= 1<<20:
		return fmt.Sprintf("%.1f MB", float64(n)/(1<<20))
	case n >= 1<<10:
		return fmt.Sprintf("%.1f KB", float64(n)/(1<<10))
	default:
		return fmt.Sprintf("%d B", n)
	}
}

func setAttr(t *Tree, id, key, value string) {
	n := t.Find(id)
	if n == nil {
		return
	}
	if n.Attrs == nil {
		n.Attrs = make(map[string]string)
	}
	n.Attrs[key] = value
}

// ABOUTME: Conversation state machine for one mounted widget instance
// ABOUTME: Tracks open/closed, menu/conversation, staged attachment and transcript

package session

import (
	"time"

	"github.com/google/uuid"
)

// Screen is the panel content currently shown.
type Screen string

const (
	ScreenMenu         Screen = "menu"
	ScreenConversation Screen = "conversation"
)

// Sender identifies who authored a message.
type Sender string

const (
	SenderUser   Sender = "user"
	SenderSystem Sender = "system"
)

// AttachmentDescriptor describes a staged or sent file.
type AttachmentDescriptor struct {
	Name           string
	MimeType       string
	SizeBytes      int64
	PreviewDataURI string // only set for image/* files
}

// Attachment is a descriptor plus the file contents.
type Attachment struct {
	AttachmentDescriptor
	Data []byte
}

// Message is one transcript entry. Messages are never mutated after append.
type Message struct {
	ID         string
	Sender     Sender
	Body       string
	Attachment *AttachmentDescriptor
	CreatedAt  time.Time
}

// NewMessage creates a message with a fresh id.
func NewMessage(sender Sender, body string, att *AttachmentDescriptor) Message {
	return Message{
		ID:         uuid.New().String(),
		Sender:     sender,
		Body:       body,
		Attachment: att,
		CreatedAt:  time.Now(),
	}
}

// Session is the state of one mounted widget. It is not safe for concurrent
// use; the lifecycle event loop owns it.
type Session struct {
	Open       bool
	Screen     Screen
	Muted      bool
	Listening  bool
	Staged     *Attachment
	Transcript []Message

	interacted bool
}

// New returns a closed session on the menu screen.
func New() *Session {
	return &Session{Screen: ScreenMenu}
}

// Toggle flips the open flag. The screen is left alone.
func (s *Session) Toggle() {
	s.Open = !s.Open
	s.interacted = true
}

// SetOpen sets the open flag without counting as a user interaction.
func (s *Session) SetOpen(open bool) {
	s.Open = open
}

// MarkInteracted records a user interaction.
func (s *Session) MarkInteracted() {
	s.interacted = true
}

// Interacted reports whether the user has done anything since mount.
func (s *Session) Interacted() bool {
	return s.interacted
}

// EnterConversation switches to the conversation screen.
func (s *Session) EnterConversation() {
	s.Screen = ScreenConversation
	s.interacted = true
}

// Back returns to the menu. The transcript is kept.
func (s *Session) Back() {
	s.Screen = ScreenMenu
	s.interacted = true
}

// Append adds a message to the transcript.
func (s *Session) Append(m Message) {
	s.Transcript = append(s.Transcript, m)
}

// Stage replaces any staged attachment.
func (s *Session) Stage(a *Attachment) {
	s.Staged = a
	s.interacted = true
}

// Unstage drops the staged attachment and returns it.
func (s *Session) Unstage() *Attachment {
	a := s.Staged
	s.Staged = nil
	return a
}

// BeginListening marks speech capture active. It returns false when capture
// is already running.
func (s *Session) BeginListening() bool {
	if s.Listening {
		return false
	}
	s.Listening = true
	s.interacted = true
	return true
}

// EndListening clears the listening flag.
func (s *Session) EndListening() {
	s.Listening = false
}

// ToggleMute flips the mute flag and returns the new value.
func (s *Session) ToggleMute() bool {
	s.Muted = !s.Muted
	return s.Muted
}

// Visibility lists which parts of the panel are shown.
type Visibility struct {
	Panel          bool
	Back           bool
	Menu           bool
	ScrollHint     bool
	FooterShortcut bool
	Transcript     bool
	InputRow       bool
}

// Visibility derives element visibility from the current state.
func (s *Session) Visibility(chatEnabled bool) Visibility {
	onMenu := s.Screen == ScreenMenu
	return Visibility{
		Panel:          s.Open,
		Back:           !onMenu,
		Menu:           onMenu,
		ScrollHint:     onMenu,
		FooterShortcut: onMenu,
		Transcript:     !onMenu,
		InputRow:       chatEnabled,
	}
}

// Snapshot is a read-only copy of session state for hosts and tests.
type Snapshot struct {
	Open       bool
	Screen     Screen
	Muted      bool
	Listening  bool
	Staged     *AttachmentDescriptor
	Transcript []Message
}

// Snapshot copies the current state.
func (s *Session) Snapshot() Snapshot {
	snap := Snapshot{
		Open:       s.Open,
		Screen:     s.Screen,
		Muted:      s.Muted,
		Listening:  s.Listening,
		Transcript: append([]Message(nil), s.Transcript...),
	}
	if s.Staged != nil {
		d := s.Staged.AttachmentDescriptor
		snap.Staged = &d
	}
	return snap
}

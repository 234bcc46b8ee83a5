// Package session holds the conversation state machine of a mounted widget.
//
// A session is either open or closed and shows either the menu screen or the
// conversation screen. Toggling only flips open; screen changes come from
// selecting a menu option, sending a turn, the footer shortcut, or Back.
// The transcript survives Back and is discarded with the session on every
// reconfiguration.
package session

// Package render builds and mounts the widget's node tree.
//
// # Overview
//
// Build is a pure function from a tenant.Config to a Tree. It knows nothing
// about session state; the tree starts closed on the menu screen and a View
// applies state to it after mounting. Theme tokens are checked against
// simple patterns and replaced by defaults when they do not match, so a
// tenant document cannot inject arbitrary style text.
//
// A Host mounts trees into a concrete surface. HTML and Text are the two
// adapters shipped here; the preview server and terminal client build their
// hosts on top of them.
//
// # Node ids
//
// Structural nodes use the ID constants. Dynamic nodes derive their ids
// from the entity they show: OptionNodeID for menu entries, MessageNodeID
// for bubbles and TypingNodeID for typing indicators.
package render

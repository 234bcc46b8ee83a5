// ABOUTME: Tests for the terminal mount adapter
// ABOUTME: Checks that refreshes print only what changed

package main

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/2389/coven-widget/internal/render"
	"github.com/2389/coven-widget/internal/session"
	"github.com/2389/coven-widget/internal/tenant"
)

func TestTerminalHost_PrintsDeltas(t *testing.T) {
	color.NoColor = true
	var out bytes.Buffer
	host := newTerminalHost(&out)

	tree := render.Build(tenant.Defaults())
	view := render.NewView(tree, nil)
	sess := session.New()

	require.NoError(t, host.Attach(tree))
	assert.Contains(t, out.String(), "── Chat with us ──")
	assert.NotContains(t, out.String(), "[panel opened]")

	sess.Toggle()
	view.ApplyState(sess, true)
	host.Refresh(tree)
	assert.Contains(t, out.String(), "[panel opened]")
	assert.Contains(t, out.String(), "/option pricing")

	sess.EnterConversation()
	msg := session.NewMessage(session.SenderUser, "Hello", nil)
	sess.Append(msg)
	view.AppendMessage(msg)
	view.ShowTyping("t1")
	view.ApplyState(sess, true)
	host.Refresh(tree)

	view.HideTyping("t1")
	reply := session.NewMessage(session.SenderSystem, "Hi!", nil)
	view.AppendMessage(reply)
	host.Refresh(tree)
	host.Refresh(tree)

	text := out.String()
	assert.Equal(t, 1, strings.Count(text, "you: Hello"))
	assert.Equal(t, 1, strings.Count(text, "bot is typing..."))
	assert.Equal(t, 1, strings.Count(text, "bot: Hi!"))
}

func TestTerminalHost_NoticeAndAttachment(t *testing.T) {
	color.NoColor = true
	var out bytes.Buffer
	host := newTerminalHost(&out)

	tree := render.Build(tenant.Defaults())
	view := render.NewView(tree, nil)
	require.NoError(t, host.Attach(tree))

	view.ShowNotice(render.Notice{Text: "File too large", Blocking: true})
	view.ShowAttachment(session.AttachmentDescriptor{Name: "a.txt", MimeType: "text/plain", SizeBytes: 12})
	host.Refresh(tree)
	host.Refresh(tree)

	text := out.String()
	assert.Equal(t, 1, strings.Count(text, "! File too large"))
	assert.Contains(t, text, "[attached a.txt (12 B)]")
}

func TestTerminalHost_AttachDetach(t *testing.T) {
	var out bytes.Buffer
	host := newTerminalHost(&out)

	first := render.Build(tenant.Defaults())
	require.NoError(t, host.Attach(first))
	assert.ErrorIs(t, host.Attach(render.Build(tenant.Defaults())), render.ErrAlreadyAttached)

	require.NoError(t, host.Detach(first))
	require.NoError(t, host.Detach(first))
	assert.Equal(t, 1, strings.Count(out.String(), "[widget unmounted]"))
}

func TestClipQueue(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	q := make(clipQueue, 1)
	_, err := q.next(ctx)
	assert.Error(t, err)

	q <- "/tmp/clip.wav"
	path, err := q.next(ctx)
	require.NoError(t, err)
	assert.Equal(t, "/tmp/clip.wav", path)
}

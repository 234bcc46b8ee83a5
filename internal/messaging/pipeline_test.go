// ABOUTME: Tests for the messaging pipeline and chat client
// ABOUTME: Uses an httptest chat endpoint and a recording surface

package messaging

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/2389/coven-widget/internal/session"
	"github.com/2389/coven-widget/internal/tenant"
)

type surfaceEvent struct {
	kind string
	msg  session.Message
	id   string
}

type recordingSurface struct {
	mu     sync.Mutex
	events []surfaceEvent
}

func (s *recordingSurface) record(e surfaceEvent) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, e)
}

func (s *recordingSurface) AppendMessage(m session.Message) {
	s.record(surfaceEvent{kind: "message", msg: m})
}
func (s *recordingSurface) ClearInput()          { s.record(surfaceEvent{kind: "clear_input"}) }
func (s *recordingSurface) ClearAttachment()     { s.record(surfaceEvent{kind: "clear_attachment"}) }
func (s *recordingSurface) ShowTyping(id string) { s.record(surfaceEvent{kind: "typing_on", id: id}) }
func (s *recordingSurface) HideTyping(id string) { s.record(surfaceEvent{kind: "typing_off", id: id}) }
func (s *recordingSurface) Chime()               { s.record(surfaceEvent{kind: "chime"}) }

func (s *recordingSurface) snapshot() []surfaceEvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]surfaceEvent(nil), s.events...)
}

func (s *recordingSurface) kinds() []string {
	var out []string
	for _, e := range s.snapshot() {
		out = append(out, e.kind)
	}
	return out
}

func (s *recordingSurface) messages() []session.Message {
	var out []session.Message
	for _, e := range s.snapshot() {
		if e.kind == "message" {
			out = append(out, e.msg)
		}
	}
	return out
}

type capturedRequest struct {
	contentType    string
	idempotencyKey string
	message        string
	publicKey      string
	fileName       string
	fileType       string
	fileBytes      int
}

type chatServer struct {
	mu       sync.Mutex
	status   int
	body     string
	requests []capturedRequest
}

func (c *chatServer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	cr := capturedRequest{
		contentType:    r.Header.Get("Content-Type"),
		idempotencyKey: r.Header.Get("Idempotency-Key"),
	}
	if r.Header.Get("Content-Type") == "application/json" {
		var payload map[string]string
		_ = json.NewDecoder(r.Body).Decode(&payload)
		cr.message = payload["message"]
		cr.publicKey = payload["public_key"]
	} else if err := r.ParseMultipartForm(32 << 20); err == nil {
		cr.message = r.FormValue("message")
		cr.publicKey = r.FormValue("public_key")
		if f, h, err := r.FormFile("file"); err == nil {
			data, _ := io.ReadAll(f)
			cr.fileName = h.Filename
			cr.fileType = h.Header.Get("Content-Type")
			cr.fileBytes = len(data)
			f.Close()
		}
	}

	c.mu.Lock()
	c.requests = append(c.requests, cr)
	status, body := c.status, c.body
	c.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write([]byte(body))
}

func (c *chatServer) captured() []capturedRequest {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]capturedRequest(nil), c.requests...)
}

func newTestPipeline(t *testing.T, status int, body string) (*Pipeline, *recordingSurface, *session.Session, *chatServer) {
	t.Helper()
	cs := &chatServer{status: status, body: body}
	srv := httptest.NewServer(cs)
	t.Cleanup(srv.Close)

	surface := &recordingSurface{}
	sess := session.New()
	var loop sync.Mutex
	p := NewPipeline(Options{
		Client:  NewClient(srv.Client(), nil),
		Surface: surface,
		Session: sess,
		Dispatch: func(fn func()) {
			loop.Lock()
			defer loop.Unlock()
			fn()
		},
		Endpoint: Endpoint{URL: srv.URL + "/api/gemini-chat", TenantKey: "pk_test"},
		Config:   tenant.Defaults(),
	})
	return p, surface, sess, cs
}

func waitForMessages(t *testing.T, s *recordingSurface, n int) []session.Message {
	t.Helper()
	require.Eventually(t, func() bool {
		return len(s.messages()) >= n
	}, 2*time.Second, 5*time.Millisecond)
	return s.messages()
}

func TestSend_EmptyIsNoOp(t *testing.T) {
	p, surface, sess, cs := newTestPipeline(t, http.StatusOK, `{"content":"hi"}`)

	_, ok := p.Send(context.Background(), "   ", nil)
	assert.False(t, ok)

	time.Sleep(20 * time.Millisecond)
	assert.Empty(t, surface.snapshot())
	assert.Empty(t, sess.Transcript)
	assert.Empty(t, cs.captured())
}

func TestSend_HelloRendersEchoTypingAndReply(t *testing.T) {
	p, surface, _, cs := newTestPipeline(t, http.StatusOK, `{"content":"Hi! How can I help?"}`)

	echo, ok := p.Send(context.Background(), "  Hello ", nil)
	require.True(t, ok)
	assert.Equal(t, "Hello", echo.Body)
	assert.Equal(t, session.SenderUser, echo.Sender)

	msgs := waitForMessages(t, surface, 2)
	require.Len(t, msgs, 2)
	assert.Equal(t, "Hello", msgs[0].Body)
	assert.Equal(t, session.SenderSystem, msgs[1].Sender)
	assert.Equal(t, "Hi! How can I help?", msgs[1].Body)

	assert.Equal(t, []string{"message", "clear_input", "typing_on", "typing_off", "message", "chime"}, surface.kinds())

	events := surface.snapshot()
	assert.Equal(t, events[2].id, events[3].id, "the indicator that was shown is the one removed")

	reqs := cs.captured()
	require.Len(t, reqs, 1)
	assert.Equal(t, "application/json", reqs[0].contentType)
	assert.Equal(t, "Hello", reqs[0].message)
	assert.Equal(t, "pk_test", reqs[0].publicKey)
	assert.Equal(t, echo.ID, reqs[0].idempotencyKey)
}

func TestSend_AcceptsResponseField(t *testing.T) {
	p, surface, _, _ := newTestPipeline(t, http.StatusOK, `{"response":"From the other field"}`)

	p.Send(context.Background(), "Hello", nil)
	msgs := waitForMessages(t, surface, 2)
	assert.Equal(t, "From the other field", msgs[1].Body)
}

func TestSend_FallbackWhenNoReplyField(t *testing.T) {
	p, surface, _, _ := newTestPipeline(t, http.StatusOK, `{"status":"ok"}`)

	p.Send(context.Background(), "Hello", nil)
	msgs := waitForMessages(t, surface, 2)
	assert.Equal(t, "Response received.", msgs[1].Body)
}

func TestSend_FailuresRenderApology(t *testing.T) {
	cases := map[string]struct {
		status int
		body   string
	}{
		"server error": {http.StatusInternalServerError, `{"content":"ignored"}`},
		"malformed":    {http.StatusOK, `<html>oops</html>`},
		"not object":   {http.StatusOK, `"just a string"`},
	}

	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			p, surface, _, _ := newTestPipeline(t, tc.status, tc.body)

			p.Send(context.Background(), "Hello", nil)
			msgs := waitForMessages(t, surface, 2)
			assert.Equal(t, tenant.Defaults().I18n.Strings[tenant.StringApology], msgs[1].Body)
			assert.Contains(t, surface.kinds(), "typing_off")
		})
	}
}

func TestSend_NetworkFailureRendersApology(t *testing.T) {
	p, surface, _, _ := newTestPipeline(t, http.StatusOK, `{}`)
	p.SetEndpoint(Endpoint{URL: "http://127.0.0.1:1/api/gemini-chat", TenantKey: "pk_test"}, tenant.Defaults())

	p.Send(context.Background(), "Hello", nil)
	msgs := waitForMessages(t, surface, 2)
	assert.Equal(t, tenant.Defaults().I18n.Strings[tenant.StringApology], msgs[1].Body)
}

func TestSend_AttachmentUsesMultipart(t *testing.T) {
	p, surface, sess, cs := newTestPipeline(t, http.StatusOK, `{"content":"Got your file"}`)

	att := &session.Attachment{
		AttachmentDescriptor: session.AttachmentDescriptor{
			Name:      "receipt.pdf",
			MimeType:  "application/pdf",
			SizeBytes: 4,
		},
		Data: []byte("%PDF"),
	}
	sess.Stage(att)

	echo, ok := p.Send(context.Background(), "", att)
	require.True(t, ok)
	require.NotNil(t, echo.Attachment)
	assert.Equal(t, "receipt.pdf", echo.Attachment.Name)
	assert.Nil(t, sess.Staged)

	waitForMessages(t, surface, 2)
	assert.Contains(t, surface.kinds(), "clear_attachment")

	reqs := cs.captured()
	require.Len(t, reqs, 1)
	assert.Contains(t, reqs[0].contentType, "multipart/form-data")
	assert.Equal(t, "pk_test", reqs[0].publicKey)
	assert.Equal(t, "receipt.pdf", reqs[0].fileName)
	assert.Equal(t, "application/pdf", reqs[0].fileType)
	assert.Equal(t, 4, reqs[0].fileBytes)
}

func TestSend_MutedSkipsChime(t *testing.T) {
	p, surface, sess, _ := newTestPipeline(t, http.StatusOK, `{"content":"quiet"}`)
	sess.ToggleMute()

	p.Send(context.Background(), "Hello", nil)
	waitForMessages(t, surface, 2)
	assert.NotContains(t, surface.kinds(), "chime")
}

func TestSend_DroppedDispatchLeavesNoReply(t *testing.T) {
	p, surface, sess, cs := newTestPipeline(t, http.StatusOK, `{"content":"late"}`)
	p.dispatch = func(func()) {}

	p.Send(context.Background(), "Hello", nil)
	require.Eventually(t, func() bool { return len(cs.captured()) == 1 }, time.Second, 5*time.Millisecond)
	time.Sleep(20 * time.Millisecond)

	assert.Len(t, surface.messages(), 1)
	assert.Len(t, sess.Transcript, 1)
}

func TestParseReply(t *testing.T) {
	r, err := parseReply([]byte(`{"content":"","response":"second"}`))
	require.NoError(t, err)
	assert.Equal(t, "second", r.Text)

	r, err = parseReply([]byte(`{"content":42}`))
	require.NoError(t, err)
	assert.Empty(t, r.Text)

	_, err = parseReply([]byte(`{`))
	assert.ErrorIs(t, err, ErrMalformed)
}

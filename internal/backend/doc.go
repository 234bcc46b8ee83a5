// Package backend implements the two remote endpoints the widget talks to, for
// local development and tests:
//
//	GET  /api/widget/config?key=<public key>   tenant document from a directory
//	POST /api/gemini-chat                      {"content": "..."} reply
//
// Tenant documents live in a directory as <key>.yaml, <key>.yml or <key>.json.
// Chat turns arrive as JSON ({message, public_key}) or as a multipart form with
// an additional file part. Replies come from a Replier: EchoReplier by default,
// OpenAIReplier when an API key is configured. Turns carrying an
// Idempotency-Key header are remembered in a dedupe.Cache, so a retried turn
// gets the reply already produced.
package backend

// Package input turns raw user input into something the messaging pipeline
// can send: trimmed text, at most one staged attachment, or a speech
// transcript.
//
// Attachments over MaxAttachmentBytes are rejected before they are staged.
// Image attachments carry a data URI preview so hosts can render a thumbnail
// without touching the file again.
package input

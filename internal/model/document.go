package model

import "time"

// DocumentType declares what kind of source material a document holds.
type DocumentType string

const (
	DocumentTypeCIM         DocumentType = "cim"
	DocumentTypeSpreadsheet DocumentType = "spreadsheet"
	DocumentTypeTranscript  DocumentType = "transcript"
)

// Document is the immutable unit of work: extracted text plus identity.
// Text extraction itself happens upstream; the orchestrator only ever
// reads a Document, never mutates one.
type Document struct {
	ID        string       `json:"id"`
	DealID    string       `json:"deal_id"`
	Name      string       `json:"name"`
	Type      DocumentType `json:"type"`
	Text      string       `json:"text"`
	ByteSize  int          `json:"byte_size"`
	CreatedAt time.Time    `json:"created_at"`
}

// Chunk is a labeled, bounded-size slice of a Document's text.
// Start/End are byte offsets into the document text; chunks from one
// plan are gapless and non-overlapping, so concatenating Text over the
// ordered sequence reproduces the original document.
type Chunk struct {
	Index         int    `json:"index"`
	Start         int    `json:"start"`
	End           int    `json:"end"`
	Section       string `json:"section,omitempty"`
	TokenEstimate int    `json:"token_estimate"`
	Text          string `json:"text"`
}

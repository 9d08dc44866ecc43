package models

import (
	"time"

	"github.com/google/uuid"
)

const (
	StatusPending    = "pending"
	StatusProcessing = "processing"
	StatusCompleted  = "completed"
	StatusFailed     = "failed"
)

const (
	KindRiskAnalysis = "risk_analysis"
	KindProposal     = "proposal"
)

// Generation subtypes. The first two apply to risk analyses, the last two
// to proposals.
const (
	SubtypeClientChatImport = "client_chat_import"
	SubtypeJobProposal      = "job_proposal"
	SubtypeFromChat         = "from_chat"
	SubtypeFromText         = "from_text"
)

// InputData is the captured snapshot of the source material a document was
// generated from. It is written once at creation and never mutated; edits
// only ever touch Results.
type InputData struct {
	FileName       string `json:"file_name,omitempty"`
	FileSize       int64  `json:"file_size,omitempty"`
	FileType       string `json:"file_type,omitempty"`
	ChatContent    string `json:"chat_content,omitempty"`
	HasFullContent bool   `json:"has_full_content"`
}

// Document is a unit of asynchronous generation work: a risk analysis or a
// job proposal. The API returns the document in pending state on creation;
// the client polls GET until status is completed or failed.
type Document struct {
	ID         uuid.UUID      `db:"id"          json:"id"`
	OwnerID    string         `db:"owner_id"    json:"owner_id"`
	Kind       string         `db:"kind"        json:"kind"`
	Subtype    string         `db:"subtype"     json:"subtype"`
	ClientName *string        `db:"client_name" json:"client_name,omitempty"`
	Status     string         `db:"status"      json:"status"`
	InputData  InputData      `db:"input_data"  json:"input_data"`
	Results    map[string]any `db:"results"     json:"results,omitempty"`
	VersionPtr int            `db:"version_ptr" json:"version_ptr"`
	Revision   int            `db:"revision"    json:"revision"`
	CreatedAt  time.Time      `db:"created_at"  json:"created_at"`
	UpdatedAt  time.Time      `db:"updated_at"  json:"updated_at"`
}

// FormattedProposal returns the live proposal text from Results, or "" when
// the document has not been generated yet.
func (d *Document) FormattedProposal() string {
	if d.Results == nil {
		return ""
	}
	s, _ := d.Results["formatted_proposal"].(string)
	return s
}

// VersionEntry is an immutable snapshot of proposal content in the
// append-only history log.
type VersionEntry struct {
	DocumentID uuid.UUID `db:"document_id" json:"-"`
	Index      int       `db:"idx"         json:"index"`
	Content    string    `db:"content"     json:"content"`
	CreatedAt  time.Time `db:"created_at"  json:"created_at"`
}

// Copyright 2025 Kadir Pekel
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package model defines the shared domain types for the document intake
// pipeline: cases, documents, processing status, and the progress events
// fanned out over the Progress Bus.
package model

import "time"

// FileType is the classified file-type tag of an uploaded document.
type FileType string

const (
	FileTypePDF     FileType = "pdf"
	FileTypeDOCX    FileType = "docx"
	FileTypeTXT     FileType = "txt"
	FileTypeMD      FileType = "md"
	FileTypeJPG     FileType = "jpg"
	FileTypePNG     FileType = "png"
	FileTypeMP3     FileType = "mp3"
	FileTypeWAV     FileType = "wav"
	FileTypeM4A     FileType = "m4a"
	FileTypeUnknown FileType = "unknown"
)

// SupportedExtensions lists the extensions Upload accepts, in the order
// the 400 response enumerates them.
var SupportedExtensions = []string{"pdf", "docx", "txt", "md", "jpg", "png", "mp3", "wav", "m4a"}

// ExtensionToFileType maps a lowercased file extension (no dot) to its tag.
var ExtensionToFileType = map[string]FileType{
	"pdf":  FileTypePDF,
	"docx": FileTypeDOCX,
	"txt":  FileTypeTXT,
	"md":   FileTypeMD,
	"jpg":  FileTypeJPG,
	"jpeg": FileTypeJPG,
	"png":  FileTypePNG,
	"mp3":  FileTypeMP3,
	"wav":  FileTypeWAV,
	"m4a":  FileTypeM4A,
}

// DocType is the classified legal document type produced by the Analyzer.
type DocType string

const (
	DocTypeMotion   DocType = "Motion"
	DocTypeResponse DocType = "Response"
	DocTypeComplain DocType = "Complaint"
	DocTypeOrder    DocType = "Order"
	DocTypeNotice   DocType = "Notice"
	DocTypeEvidence DocType = "Evidence"
	DocTypeResearch DocType = "Research"
	DocTypeUnknown  DocType = "Unknown"
)

// ProcessingStatus is the Coordinator's per-document state machine state.
type ProcessingStatus string

const (
	StatusPending     ProcessingStatus = "pending"
	StatusExtracting  ProcessingStatus = "extracting"
	StatusAnalyzing   ProcessingStatus = "analyzing"
	StatusIndexing    ProcessingStatus = "indexing"
	StatusComplete    ProcessingStatus = "complete"
	StatusFailed      ProcessingStatus = "failed"
)

// PercentForStatus maps a processing status to the WebSocket percent
// contract in spec §6.2.
func PercentForStatus(s ProcessingStatus) int {
	switch s {
	case StatusPending:
		return 10
	case StatusExtracting:
		return 30
	case StatusAnalyzing:
		return 60
	case StatusIndexing:
		return 85
	case StatusComplete:
		return 100
	case StatusFailed:
		return 0
	default:
		return 0
	}
}

// SummaryStatus is the case-level summary tracking state.
type SummaryStatus string

const (
	SummaryStatusNone       SummaryStatus = ""
	SummaryStatusGenerating SummaryStatus = "generating"
	SummaryStatusGenerated  SummaryStatus = "generated"
	SummaryStatusStale      SummaryStatus = "stale"
	SummaryStatusFailed     SummaryStatus = "failed"
)

// Case is a top-level collection owned by a user.
type Case struct {
	ID                   string
	Title                string
	CaseNumber           string
	UserID               string
	WorkspacePath        string
	CreatedAt            time.Time
	UpdatedAt            time.Time
	SummaryStatus        SummaryStatus
	SummaryGeneratedAt   *time.Time
	SummaryVersion       int
	SummaryDocumentCount int
	NarrativeUpdatedAt   *time.Time
	GroundingStatus      string
}

// BlobRef is the (key, bucket, version) triple identifying an object in
// the Blob Store.
type BlobRef struct {
	Key       string
	Bucket    string
	VersionID string
}

// RetrievalRef is the (store id, file uri) pair returned by the Indexer.
type RetrievalRef struct {
	StoreID string
	FileURI string
}

// Document tracks a single uploaded file through the pipeline.
type Document struct {
	ID           string
	CaseID       string
	Filename     string
	FolderName   string
	FileType     FileType
	DocumentType DocType
	PageCount    int
	WordCount    int
	Status       ProcessingStatus

	HasTextExtraction bool
	HasMetadata       bool
	RAGIndexed        bool

	Blob      BlobRef
	Retrieval RetrievalRef

	ContentType   string
	FileSizeBytes int64

	UploadedAt  time.Time
	ProcessedAt *time.Time
}

// IsComplete reports whether the document satisfies invariant 5: all
// three flags set and processed_at populated.
func (d *Document) IsComplete() bool {
	return d.Status == StatusComplete &&
		d.HasTextExtraction && d.HasMetadata && d.RAGIndexed &&
		d.ProcessedAt != nil
}

// Entity types embedded in the per-document metadata artifact.
type Party struct {
	Name     string `json:"name"`
	Role     string `json:"role"`
	Mentions int    `json:"mentions"`
}

type DateMention struct {
	Date    string `json:"date"`
	Context string `json:"context"`
	Page    *int   `json:"page,omitempty"`
}

type Authority struct {
	Citation string `json:"citation"`
	Context  string `json:"context"`
}

type Entities struct {
	Parties     []Party       `json:"parties"`
	Dates       []DateMention `json:"dates"`
	Authorities []Authority   `json:"authorities"`
}

type Relationships struct {
	References []string `json:"references"`
	Contradicts []string `json:"contradicts"`
	Supports    []string `json:"supports"`
}

// DocumentMetadata is the per-document metadata artifact produced by the
// Analyzer and persisted to Cache FS as metadata.json. It is never
// mutated after write: a re-analysis replaces the file wholesale.
type DocumentMetadata struct {
	SchemaVersion int `json:"schema_version"`

	DocumentType          DocType `json:"document_type"`
	ClassificationConf    float64 `json:"classification_confidence"`
	ExtractionMethod      string  `json:"extraction_method"`
	PageCount             int     `json:"page_count"`
	WordCount             int     `json:"word_count"`
	ExecutiveSummary      string  `json:"executive_summary"`
	MainArguments         []string `json:"main_arguments"`
	RequestedRelief       string  `json:"requested_relief"`

	Entities        Entities           `json:"entities"`
	RelevanceScores map[DocType]float64 `json:"relevance_scores"`
	Relationships   Relationships      `json:"relationships"`
}

// MetadataSchemaVersion is the current schema_version written by the
// Analyzer. Bump when the JSON shape changes incompatibly.
const MetadataSchemaVersion = 1

// EventKind identifies a progress event's subject and phase.
type EventKind string

const (
	EventDocumentUpload     EventKind = "document:upload"
	EventDocumentExtracting EventKind = "document:extracting"
	EventDocumentAnalyzing  EventKind = "document:analyzing"
	EventDocumentIndexing   EventKind = "document:indexing"
	EventDocumentComplete   EventKind = "document:complete"
	EventDocumentError      EventKind = "document:error"

	EventSummaryGenerating EventKind = "summary:generating"
	EventSummaryComplete   EventKind = "summary:complete"
	EventSummaryFailed     EventKind = "summary:failed"
)

// ProgressEvent is the immutable, tagged record fanned out by the
// Progress Bus to WebSocket subscribers.
type ProgressEvent struct {
	Kind       EventKind
	CaseID     string
	DocumentID string
	Filename   string
	Percent    int
	Message    string
	Error      string
	Timestamp  time.Time
}

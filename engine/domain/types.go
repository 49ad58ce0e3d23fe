// Package domain defines core domain types, constants, and validation for the
// Doorwise engine pipeline. It acts as the validation gate at pipeline entry points.
package domain

import "time"

// DoorCategory classifies where a door is installed.
type DoorCategory string

const (
	CategoryUnknown  DoorCategory = "unknown"
	CategoryInterior DoorCategory = "interior"
	CategoryExterior DoorCategory = "exterior"
)

// ValidDoorCategories is the set of recognised door categories.
var ValidDoorCategories = map[DoorCategory]bool{
	CategoryUnknown: true, CategoryInterior: true, CategoryExterior: true,
}

// DoorType identifies a concrete door product family.
type DoorType string

const (
	TypeUnknown     DoorType = "unknown"
	TypeBifold      DoorType = "bifold"
	TypePrehung     DoorType = "prehung"
	TypeEntry       DoorType = "entry door"
	TypePatio       DoorType = "patio door"
	TypeDentilShelf DoorType = "dentil shelf"
)

// ValidDoorTypes is the set of recognised door types.
var ValidDoorTypes = map[DoorType]bool{
	TypeUnknown: true, TypeBifold: true, TypePrehung: true,
	TypeEntry: true, TypePatio: true, TypeDentilShelf: true,
}

// CategoryFor returns the category a door type always belongs to.
// Bifold and prehung are interior; entry, patio, and dentil shelf are exterior.
func CategoryFor(t DoorType) DoorCategory {
	switch t {
	case TypeBifold, TypePrehung:
		return CategoryInterior
	case TypeEntry, TypePatio, TypeDentilShelf:
		return CategoryExterior
	default:
		return CategoryUnknown
	}
}

// ContentType classifies what a chunk of manual text describes.
type ContentType string

const (
	ContentInstallationStep ContentType = "installation_step"
	ContentTool             ContentType = "tool"
	ContentSafety           ContentType = "safety"
	ContentTroubleshooting  ContentType = "troubleshooting"
	ContentGeneral          ContentType = "general"

	// ContentAny explicitly lifts the content-type restriction: a filter
	// carrying it matches every content type and suppresses inference from
	// the query text. Chunks are never tagged with it.
	ContentAny ContentType = "any"
)

// ValidContentTypes is the set of recognised content types.
var ValidContentTypes = map[ContentType]bool{
	ContentInstallationStep: true, ContentTool: true, ContentSafety: true,
	ContentTroubleshooting: true, ContentGeneral: true,
}

// ChunkMetadata carries the retrieval-filterable attributes of a chunk.
type ChunkMetadata struct {
	DoorCategory DoorCategory `json:"door_category"`
	DoorType     DoorType     `json:"door_type"`
	ContentType  ContentType  `json:"content_type"`
}

// Chunk is the atomic retrievable unit of ingested document text.
// Chunks are immutable once created; retrieval reads them read-only.
type Chunk struct {
	ID       string        `json:"id"`
	Text     string        `json:"text"`
	DocID    string        `json:"doc_id"`
	Position int           `json:"position"`
	Metadata ChunkMetadata `json:"metadata"`
}

// Filter restricts retrieval to chunks matching the set fields.
// Zero or unknown fields do not restrict.
type Filter struct {
	DoorCategory DoorCategory `json:"door_category,omitempty"`
	DoorType     DoorType     `json:"door_type,omitempty"`
	ContentType  ContentType  `json:"content_type,omitempty"`
}

// IsZero reports whether no filter field is set.
func (f Filter) IsZero() bool {
	return (f.DoorCategory == "" || f.DoorCategory == CategoryUnknown) &&
		(f.DoorType == "" || f.DoorType == TypeUnknown) &&
		(f.ContentType == "" || f.ContentType == ContentAny)
}

// Matches reports whether a chunk's metadata satisfies the filter.
func (f Filter) Matches(m ChunkMetadata) bool {
	if f.DoorCategory != "" && f.DoorCategory != CategoryUnknown && m.DoorCategory != f.DoorCategory {
		return false
	}
	if f.DoorType != "" && f.DoorType != TypeUnknown && m.DoorType != f.DoorType {
		return false
	}
	if f.ContentType != "" && f.ContentType != ContentAny && m.ContentType != f.ContentType {
		return false
	}
	return true
}

// RetrieverKind identifies which retriever produced a candidate.
type RetrieverKind string

const (
	RetrieverSparse RetrieverKind = "sparse"
	RetrieverDense  RetrieverKind = "dense"
)

// Candidate is one retriever's result for one chunk. Transient: created per
// query, discarded after fusion.
type Candidate struct {
	ChunkID   string
	Text      string
	Metadata  ChunkMetadata
	RawScore  float64
	Retriever RetrieverKind
	Rank      int
}

// FusedResult is a merged, score-normalized retrieval result.
// Ordering invariant: descending FusedScore, ties broken by ChunkID ascending.
type FusedResult struct {
	ChunkID    string          `json:"chunk_id"`
	Text       string          `json:"text"`
	Metadata   ChunkMetadata   `json:"metadata"`
	FusedScore float64         `json:"fused_score"`
	Retrievers []RetrieverKind `json:"retrievers"`
}

// Query represents a user question entering the retrieval or agent layer.
type Query struct {
	Text      string    `json:"text"`
	SessionID string    `json:"session_id,omitempty"`
	AskedAt   time.Time `json:"asked_at,omitempty"`
}

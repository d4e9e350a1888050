// Package doctree holds the legal-document model shared by the parser,
// reconciliation and persistence layers.
package doctree

import (
	"strings"
	"time"
)

const (
	// NoSerialNumber is what the portal prints for documents without a serial.
	NoSerialNumber = "Không số"
	// OtherSector is the fallback sector label.
	OtherSector = "Lĩnh vực khác"
	// MaxSectionNameLen is the longest section name kept as a name, in runes.
	MaxSectionNameLen = 400
)

// Kind selects which portal collection a document belongs to.
type Kind string

const (
	KindPhapQuy Kind = "phapquy" // regulatory documents
	KindHopNhat Kind = "hopnhat" // consolidated documents
)

// ParseKind maps user input to a Kind, defaulting to KindPhapQuy.
func ParseKind(s string) (Kind, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", string(KindPhapQuy):
		return KindPhapQuy, true
	case string(KindHopNhat):
		return KindHopNhat, true
	}
	return "", false
}

// State is the lifecycle state of a document.
type State string

const (
	StateNotYetEffective State = "Chưa có hiệu lực"
	StateEffective       State = "Có hiệu lực"
	StateExpired         State = "Hết hiệu lực"
	StateUnknown         State = ""
)

// DeriveState computes the lifecycle state at now. A nil effective date
// yields StateUnknown.
func DeriveState(effective, expiry *time.Time, now time.Time) State {
	if effective == nil {
		return StateUnknown
	}
	if effective.After(now) {
		return StateNotYetEffective
	}
	if expiry != nil && expiry.Before(now) {
		return StateExpired
	}
	return StateEffective
}

// Document is a legal document as assembled across enrichment passes.
// Nil fields were not computed in the current pass.
type Document struct {
	ID   int64 `json:"id"`
	Kind Kind  `json:"kind"`

	Title            *string `json:"title,omitempty"`
	SubTitle         *string `json:"sub_title,omitempty"`
	SerialNumber     *string `json:"serial_number,omitempty"`
	DocType          *string `json:"doc_type,omitempty"`
	IssuingAuthority *string `json:"issuing_authority,omitempty"`
	ApplicableInfo   *string `json:"applicable_information,omitempty"`
	State            *string `json:"state,omitempty"`
	Sector           *string `json:"sector,omitempty"`

	IssuanceDate   *time.Time `json:"issuance_date,omitempty"`
	EffectiveDate  *time.Time `json:"effective_date,omitempty"`
	ExpirationDate *time.Time `json:"expiration_date,omitempty"`
	GazetteDate    *time.Time `json:"gazette_date,omitempty"`

	HTML       *string `json:"-"`
	OrgPDFLink *string `json:"org_pdf_link,omitempty"`
	FileLink   *string `json:"file_link,omitempty"`
}

// Cursor is the hierarchy context stamped onto a section.
type Cursor struct {
	BigPartNumber  *string `json:"big_part_number"`
	BigPartName    *string `json:"big_part_name"`
	ChapterNumber  *string `json:"chapter_number"`
	ChapterName    *string `json:"chapter_name"`
	PartNumber     *string `json:"part_number"`
	PartName       *string `json:"part_name"`
	MiniPartNumber *string `json:"mini_part_number"`
	MiniPartName   *string `json:"mini_part_name"`
}

// Clone returns a deep copy; no pointer is shared with c.
func (c Cursor) Clone() Cursor {
	return Cursor{
		BigPartNumber:  cloneStr(c.BigPartNumber),
		BigPartName:    cloneStr(c.BigPartName),
		ChapterNumber:  cloneStr(c.ChapterNumber),
		ChapterName:    cloneStr(c.ChapterName),
		PartNumber:     cloneStr(c.PartNumber),
		PartName:       cloneStr(c.PartName),
		MiniPartNumber: cloneStr(c.MiniPartNumber),
		MiniPartName:   cloneStr(c.MiniPartName),
	}
}

// Section is one numbered article ("Điều") of a document.
type Section struct {
	DocumentID int64   `json:"document_id"`
	Number     int     `json:"section_number"`
	Name       *string `json:"section_name"`
	Content    string  `json:"section_content"`
	Hierarchy  Cursor  `json:"hierarchy"`
}

// AppendixSubPart is one labelled part of a trailing appendix.
type AppendixSubPart struct {
	DocumentID    int64   `json:"document_id"`
	Number        string  `json:"sub_part_number"`
	AppendixTitle string  `json:"appendix_title"`
	Title         *string `json:"sub_part_title"`
}

// RelatedDocument is a directional link between two documents.
type RelatedDocument struct {
	SourceID     int64  `json:"source_id"`
	RelatedID    int64  `json:"related_id"`
	RelationType string `json:"relation_type"`
}

// DocMap is an edge of the portal's document map ("lược đồ").
type DocMap struct {
	SourceID int64  `json:"source_id"`
	MappedID int64  `json:"mapped_id"`
	MapType  string `json:"map_type"`
}

// LinkedDocument is a related or mapped document joined with its titles.
type LinkedDocument struct {
	ID       int64   `json:"id"`
	Label    string  `json:"label"`
	Title    *string `json:"title,omitempty"`
	SubTitle *string `json:"sub_title,omitempty"`
}

// Str returns a pointer to s.
func Str(s string) *string { return &s }

// NonEmpty returns a pointer to s, or nil when s is blank.
func NonEmpty(s string) *string {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	return &s
}

// Value dereferences p, returning "" for nil.
func Value(p *string) string {
	if p == nil {
		return ""
	}
	return *p
}

// Blank reports whether p is nil or only whitespace.
func Blank(p *string) bool {
	return p == nil || strings.TrimSpace(*p) == ""
}

func cloneStr(p *string) *string {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

package store

import (
	"time"

	"github.com/HaHongDo/vbpl-web-crawl/internal/doctree"
)

// documentRecord carries only the fields computed in this pass; a nil
// document field never reaches the store.
func documentRecord(doc *doctree.Document) Record {
	f := map[string]any{}
	if doc.Kind != "" {
		f["kind"] = string(doc.Kind)
	}
	putStr(f, "title", doc.Title)
	putStr(f, "sub_title", doc.SubTitle)
	putStr(f, "serial_number", doc.SerialNumber)
	putStr(f, "doc_type", doc.DocType)
	putStr(f, "state", doc.State)
	putStr(f, "issuing_authority", doc.IssuingAuthority)
	putStr(f, "applicable_information", doc.ApplicableInfo)
	putStr(f, "sector", doc.Sector)
	putStr(f, "html", doc.HTML)
	putStr(f, "org_pdf_link", doc.OrgPDFLink)
	putStr(f, "file_link", doc.FileLink)
	putTime(f, "issuance_date", doc.IssuanceDate)
	putTime(f, "effective_date", doc.EffectiveDate)
	putTime(f, "expiration_date", doc.ExpirationDate)
	putTime(f, "gazette_date", doc.GazetteDate)
	return Record{Kind: KindDocument, Key: Key{"id": doc.ID}, Fields: f}
}

// sectionRecord writes every column: a re-extracted section replaces the
// stored one, including hierarchy labels that became nil.
func sectionRecord(s doctree.Section) Record {
	h := s.Hierarchy
	return Record{
		Kind: KindSection,
		Key:  Key{"vbpl_id": s.DocumentID, "section_number": int64(s.Number)},
		Fields: map[string]any{
			"section_name":     nullable(s.Name),
			"section_content":  s.Content,
			"big_part_number":  nullable(h.BigPartNumber),
			"big_part_name":    nullable(h.BigPartName),
			"chapter_number":   nullable(h.ChapterNumber),
			"chapter_name":     nullable(h.ChapterName),
			"part_number":      nullable(h.PartNumber),
			"part_name":        nullable(h.PartName),
			"mini_part_number": nullable(h.MiniPartNumber),
			"mini_part_name":   nullable(h.MiniPartName),
		},
	}
}

func subPartRecord(p doctree.AppendixSubPart) Record {
	return Record{
		Kind: KindSubPart,
		Key:  Key{"vbpl_id": p.DocumentID, "sub_section_part_number": p.Number},
		Fields: map[string]any{
			"sub_section_title":      p.AppendixTitle,
			"sub_section_part_title": nullable(p.Title),
		},
	}
}

func relatedRecord(r doctree.RelatedDocument) Record {
	return Record{
		Kind:   KindRelated,
		Key:    Key{"source_id": r.SourceID, "related_id": r.RelatedID},
		Fields: map[string]any{"doc_type": r.RelationType},
	}
}

func docMapRecord(d doctree.DocMap) Record {
	return Record{
		Kind:   KindDocMap,
		Key:    Key{"source_id": d.SourceID, "doc_map_id": d.MappedID},
		Fields: map[string]any{"doc_map_type": d.MapType},
	}
}

func documentFromRow(r Row) *doctree.Document {
	return &doctree.Document{
		ID:               rowInt(r, "id"),
		Kind:             doctree.Kind(doctree.Value(rowStr(r, "kind"))),
		Title:            rowStr(r, "title"),
		SubTitle:         rowStr(r, "sub_title"),
		SerialNumber:     rowStr(r, "serial_number"),
		DocType:          rowStr(r, "doc_type"),
		State:            rowStr(r, "state"),
		IssuingAuthority: rowStr(r, "issuing_authority"),
		ApplicableInfo:   rowStr(r, "applicable_information"),
		Sector:           rowStr(r, "sector"),
		HTML:             rowStr(r, "html"),
		OrgPDFLink:       rowStr(r, "org_pdf_link"),
		FileLink:         rowStr(r, "file_link"),
		IssuanceDate:     rowTime(r, "issuance_date"),
		EffectiveDate:    rowTime(r, "effective_date"),
		ExpirationDate:   rowTime(r, "expiration_date"),
		GazetteDate:      rowTime(r, "gazette_date"),
	}
}

func sectionFromRow(r Row) doctree.Section {
	return doctree.Section{
		DocumentID: rowInt(r, "vbpl_id"),
		Number:     int(rowInt(r, "section_number")),
		Name:       rowStr(r, "section_name"),
		Content:    doctree.Value(rowStr(r, "section_content")),
		Hierarchy: doctree.Cursor{
			BigPartNumber:  rowStr(r, "big_part_number"),
			BigPartName:    rowStr(r, "big_part_name"),
			ChapterNumber:  rowStr(r, "chapter_number"),
			ChapterName:    rowStr(r, "chapter_name"),
			PartNumber:     rowStr(r, "part_number"),
			PartName:       rowStr(r, "part_name"),
			MiniPartNumber: rowStr(r, "mini_part_number"),
			MiniPartName:   rowStr(r, "mini_part_name"),
		},
	}
}

func subPartFromRow(r Row) doctree.AppendixSubPart {
	return doctree.AppendixSubPart{
		DocumentID:    rowInt(r, "vbpl_id"),
		Number:        doctree.Value(rowStr(r, "sub_section_part_number")),
		AppendixTitle: doctree.Value(rowStr(r, "sub_section_title")),
		Title:         rowStr(r, "sub_section_part_title"),
	}
}

func putStr(f map[string]any, col string, p *string) {
	if p != nil {
		f[col] = *p
	}
}

func putTime(f map[string]any, col string, t *time.Time) {
	if t != nil {
		f[col] = *t
	}
}

func nullable(p *string) any {
	if p == nil {
		return nil
	}
	return *p
}

func rowStr(r Row, col string) *string {
	if s, ok := r[col].(string); ok {
		return &s
	}
	return nil
}

func rowInt(r Row, col string) int64 {
	i, _ := r[col].(int64)
	return i
}

func rowTime(r Row, col string) *time.Time {
	if t, ok := r[col].(time.Time); ok {
		return &t
	}
	return nil
}

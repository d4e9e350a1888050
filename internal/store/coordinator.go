package store

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/HaHongDo/vbpl-web-crawl/internal/doctree"
)

// Coordinator turns extracted records into field-merging upserts: absent
// rows are inserted, present rows only get the fields supplied this pass.
type Coordinator struct {
	store Store
	log   *slog.Logger
}

func NewCoordinator(s Store, log *slog.Logger) *Coordinator {
	if log == nil {
		log = slog.Default()
	}
	return &Coordinator{store: s, log: log}
}

// UpsertStats counts what one UpsertDocument call wrote.
type UpsertStats struct {
	Inserted int
	Updated  int
}

func (s *UpsertStats) add(o UpsertStats) {
	s.Inserted += o.Inserted
	s.Updated += o.Updated
}

// UpsertDocument persists doc with its sections and appendix sub-parts. Each
// record is upserted in its own short transaction. A nil subParts slice
// leaves stored sub-parts alone.
func (c *Coordinator) UpsertDocument(ctx context.Context, doc *doctree.Document, sections []doctree.Section, subParts []doctree.AppendixSubPart) (UpsertStats, error) {
	var st UpsertStats
	if doc == nil {
		return st, errors.New("upsert document: nil document")
	}

	n, err := c.upsert(ctx, documentRecord(doc))
	if err != nil {
		return st, fmt.Errorf("upsert document %d: %w", doc.ID, err)
	}
	st.add(n)

	for _, s := range sections {
		n, err := c.upsert(ctx, sectionRecord(s))
		if err != nil {
			return st, fmt.Errorf("upsert section %d of document %d: %w", s.Number, doc.ID, err)
		}
		st.add(n)
	}
	for _, p := range subParts {
		n, err := c.upsert(ctx, subPartRecord(p))
		if err != nil {
			return st, fmt.Errorf("upsert sub-part %s of document %d: %w", p.Number, doc.ID, err)
		}
		st.add(n)
	}

	c.log.Debug("document persisted",
		"document_id", doc.ID,
		"sections", len(sections),
		"sub_parts", len(subParts),
		"inserted", st.Inserted,
		"updated", st.Updated,
	)
	return st, nil
}

// UpsertRelated persists related-document edges.
func (c *Coordinator) UpsertRelated(ctx context.Context, links []doctree.RelatedDocument) error {
	for _, l := range links {
		if _, err := c.upsert(ctx, relatedRecord(l)); err != nil {
			return fmt.Errorf("upsert related %d->%d: %w", l.SourceID, l.RelatedID, err)
		}
	}
	return nil
}

// UpsertDocMap persists document-map edges.
func (c *Coordinator) UpsertDocMap(ctx context.Context, maps []doctree.DocMap) error {
	for _, m := range maps {
		if _, err := c.upsert(ctx, docMapRecord(m)); err != nil {
			return fmt.Errorf("upsert doc map %d->%d: %w", m.SourceID, m.MappedID, err)
		}
	}
	return nil
}

// upsert does the read-check and the write inside one transaction.
func (c *Coordinator) upsert(ctx context.Context, rec Record) (UpsertStats, error) {
	var st UpsertStats
	err := c.store.InTx(ctx, func(s Session) error {
		_, err := s.FindOne(ctx, rec.Kind, rec.Key)
		switch {
		case errors.Is(err, ErrNotFound):
			st.Inserted++
			return s.Insert(ctx, rec)
		case err != nil:
			return err
		}
		if len(rec.Fields) == 0 {
			return nil
		}
		st.Updated++
		err = s.UpdateFields(ctx, rec.Kind, rec.Key, rec.Fields)
		if errors.Is(err, ErrNotFound) {
			// Deleted between the read and the write.
			st.Updated--
			st.Inserted++
			return s.Insert(ctx, rec)
		}
		return err
	})
	if err != nil {
		return UpsertStats{}, err
	}
	return st, nil
}

// Sector returns the persisted sector of a document, or nil when the
// document or its sector is unknown.
func (c *Coordinator) Sector(ctx context.Context, documentID int64) (*string, error) {
	row, err := c.store.FindOne(ctx, KindDocument, Key{"id": documentID})
	if errors.Is(err, ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return rowStr(row, "sector"), nil
}

// DocumentView is a stored document with everything attached to it.
type DocumentView struct {
	Document *doctree.Document         `json:"document"`
	Sections []doctree.Section         `json:"sections"`
	SubParts []doctree.AppendixSubPart `json:"sub_parts"`
	Related  []doctree.LinkedDocument  `json:"related"`
	DocMaps  []doctree.LinkedDocument  `json:"doc_maps"`
}

// Document loads a document with its sections, sub-parts and both link
// graphs. Returns ErrNotFound for an unknown id.
func (c *Coordinator) Document(ctx context.Context, id int64) (*DocumentView, error) {
	row, err := c.store.FindOne(ctx, KindDocument, Key{"id": id})
	if err != nil {
		return nil, err
	}
	view := &DocumentView{Document: documentFromRow(row)}

	sections, err := c.store.FindAll(ctx, KindSection, Key{"vbpl_id": id}, "section_number")
	if err != nil {
		return nil, err
	}
	for _, r := range sections {
		view.Sections = append(view.Sections, sectionFromRow(r))
	}

	parts, err := c.store.FindAll(ctx, KindSubPart, Key{"vbpl_id": id}, "sub_section_part_number")
	if err != nil {
		return nil, err
	}
	for _, r := range parts {
		view.SubParts = append(view.SubParts, subPartFromRow(r))
	}

	if view.Related, err = c.linked(ctx, KindRelated, id, "related_id", "doc_type"); err != nil {
		return nil, err
	}
	if view.DocMaps, err = c.linked(ctx, KindDocMap, id, "doc_map_id", "doc_map_type"); err != nil {
		return nil, err
	}
	return view, nil
}

func (c *Coordinator) linked(ctx context.Context, kind Kind, id int64, targetCol, labelCol string) ([]doctree.LinkedDocument, error) {
	rows, err := c.store.FindAll(ctx, kind, Key{"source_id": id}, labelCol, targetCol)
	if err != nil {
		return nil, err
	}
	out := make([]doctree.LinkedDocument, 0, len(rows))
	for _, r := range rows {
		link := doctree.LinkedDocument{ID: rowInt(r, targetCol), Label: doctree.Value(rowStr(r, labelCol))}
		target, err := c.store.FindOne(ctx, KindDocument, Key{"id": link.ID})
		switch {
		case err == nil:
			link.Title = rowStr(target, "title")
			link.SubTitle = rowStr(target, "sub_title")
		case !errors.Is(err, ErrNotFound):
			return nil, err
		}
		out = append(out, link)
	}
	return out, nil
}

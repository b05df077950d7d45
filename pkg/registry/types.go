// Package registry defines the trademark record data model shared by the
// fetch, download, and output stages.
//
// Records arrive as JSON objects from the IPOS trademarks endpoint. Only the
// fields the harvester acts on (application number, document references) are
// decoded into struct fields; the complete original object is retained and
// re-emitted byte-for-byte on marshalling, so downstream consumers see the
// registry's full payload untouched.
package registry

import (
	"encoding/json"
	"fmt"
)

// Document is an attachment reference inside a trademark record, typically
// the mark image.
type Document struct {
	FileName      string  `json:"fileName"`
	LodgementDate string  `json:"lodgementDate,omitempty"`
	DocType       DocType `json:"docType,omitempty"`
	FileID        string  `json:"fileId,omitempty"`
	URL           string  `json:"url"`
}

// DocType describes a document's registry classification.
type DocType struct {
	Description string `json:"description,omitempty"`
	Code        string `json:"code,omitempty"`
}

// Record is a single trademark entry. ApplicationNum and Documents are
// decoded for the harvester's own use; raw holds the original JSON object.
type Record struct {
	ApplicationNum string
	Documents      []Document

	raw json.RawMessage
}

// UnmarshalJSON decodes the fields the harvester needs and keeps the
// original object for passthrough serialization.
func (r *Record) UnmarshalJSON(data []byte) error {
	var known struct {
		ApplicationNum string     `json:"applicationNum"`
		Documents      []Document `json:"documents"`
	}
	if err := json.Unmarshal(data, &known); err != nil {
		return fmt.Errorf("decode trademark record: %w", err)
	}
	r.ApplicationNum = known.ApplicationNum
	r.Documents = known.Documents
	r.raw = append(json.RawMessage(nil), data...)
	return nil
}

// MarshalJSON re-emits the original registry object when available, so no
// passthrough field is lost or reordered by the harvester.
func (r Record) MarshalJSON() ([]byte, error) {
	if len(r.raw) > 0 {
		return r.raw, nil
	}
	type wire struct {
		ApplicationNum string     `json:"applicationNum"`
		Documents      []Document `json:"documents,omitempty"`
	}
	return json.Marshal(wire{ApplicationNum: r.ApplicationNum, Documents: r.Documents})
}

// ImageRef identifies one downloadable image belonging to a record.
type ImageRef struct {
	URL            string
	ApplicationNum string
	FileName       string
}

// ImageRefs extracts the downloadable image references from a record set.
// Records without an application number or without documents contribute
// nothing; documents missing a URL or file name are skipped.
func ImageRefs(records []Record) []ImageRef {
	var refs []ImageRef
	for _, rec := range records {
		if rec.ApplicationNum == "" {
			continue
		}
		for _, doc := range rec.Documents {
			if doc.URL == "" || doc.FileName == "" {
				continue
			}
			refs = append(refs, ImageRef{
				URL:            doc.URL,
				ApplicationNum: rec.ApplicationNum,
				FileName:       doc.FileName,
			})
		}
	}
	return refs
}

// FetchResult is the outcome of harvesting one chunk: the chunk's date
// label, the record count, and the records in the registry's own order.
// Err records a per-chunk failure; failed chunks keep Count 0 and an empty
// (non-null) Items so the output document stays uniform.
type FetchResult struct {
	Date  string   `json:"date"`
	Count int      `json:"count"`
	Items []Record `json:"items"`
	Err   error    `json:"-"`
}

// Failed reports whether the chunk ended with a recorded error.
func (r FetchResult) Failed() bool {
	return r.Err != nil
}

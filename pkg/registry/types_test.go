package registry

import (
	"encoding/json"
	"testing"
)

const sampleRecord = `{
	"applicationNum": "40201912345X",
	"applicantName": "Acme Pte Ltd",
	"markIndex": ["ACME"],
	"goodsServices": [{"classCode": "09", "description": "software"}],
	"status": "Registered",
	"documents": [
		{"fileName": "mark.jpg", "docType": {"description": "Mark Image", "code": "MI"}, "fileId": "F1", "url": "https://registry.example/files/F1"}
	]
}`

func TestRecord_UnmarshalKnownFields(t *testing.T) {
	var rec Record
	if err := json.Unmarshal([]byte(sampleRecord), &rec); err != nil {
		t.Fatalf("unmarshal failed: %v", err)
	}

	if rec.ApplicationNum != "40201912345X" {
		t.Errorf("ApplicationNum = %q, want %q", rec.ApplicationNum, "40201912345X")
	}
	if len(rec.Documents) != 1 {
		t.Fatalf("got %d documents, want 1", len(rec.Documents))
	}
	doc := rec.Documents[0]
	if doc.FileName != "mark.jpg" {
		t.Errorf("FileName = %q, want %q", doc.FileName, "mark.jpg")
	}
	if doc.URL != "https://registry.example/files/F1" {
		t.Errorf("URL = %q", doc.URL)
	}
	if doc.DocType.Code != "MI" {
		t.Errorf("DocType.Code = %q, want %q", doc.DocType.Code, "MI")
	}
}

// Passthrough fields the harvester does not interpret must survive a
// decode/encode round trip unchanged.
func TestRecord_PassthroughPreserved(t *testing.T) {
	var rec Record
	if err := json.Unmarshal([]byte(sampleRecord), &rec); err != nil {
		t.Fatalf("unmarshal failed: %v", err)
	}

	out, err := json.Marshal(rec)
	if err != nil {
		t.Fatalf("marshal failed: %v", err)
	}

	var got, want map[string]any
	if err := json.Unmarshal(out, &got); err != nil {
		t.Fatalf("re-decode failed: %v", err)
	}
	if err := json.Unmarshal([]byte(sampleRecord), &want); err != nil {
		t.Fatalf("decode original failed: %v", err)
	}

	for _, field := range []string{"applicantName", "markIndex", "goodsServices", "status"} {
		if _, ok := got[field]; !ok {
			t.Errorf("passthrough field %q lost in round trip", field)
		}
	}
	if len(got) != len(want) {
		t.Errorf("round trip has %d fields, want %d", len(got), len(want))
	}
}

func TestRecord_MarshalWithoutRaw(t *testing.T) {
	rec := Record{ApplicationNum: "T123", Documents: []Document{{FileName: "a.png", URL: "https://x/a"}}}
	out, err := json.Marshal(rec)
	if err != nil {
		t.Fatalf("marshal failed: %v", err)
	}
	var decoded Record
	if err := json.Unmarshal(out, &decoded); err != nil {
		t.Fatalf("unmarshal failed: %v", err)
	}
	if decoded.ApplicationNum != "T123" || len(decoded.Documents) != 1 {
		t.Errorf("round trip = %+v", decoded)
	}
}

func TestImageRefs(t *testing.T) {
	mustRecord := func(s string) Record {
		var r Record
		if err := json.Unmarshal([]byte(s), &r); err != nil {
			t.Fatalf("unmarshal failed: %v", err)
		}
		return r
	}

	records := []Record{
		mustRecord(`{"applicationNum": "A1", "documents": [
			{"fileName": "one.jpg", "url": "https://x/1"},
			{"fileName": "two.jpg", "url": "https://x/2"}
		]}`),
		// No documents at all.
		mustRecord(`{"applicationNum": "A2"}`),
		// Missing application number: nothing to key the path on.
		mustRecord(`{"documents": [{"fileName": "three.jpg", "url": "https://x/3"}]}`),
		// Document without URL is skipped.
		mustRecord(`{"applicationNum": "A4", "documents": [{"fileName": "four.jpg"}]}`),
	}

	refs := ImageRefs(records)
	if len(refs) != 2 {
		t.Fatalf("got %d refs, want 2: %+v", len(refs), refs)
	}
	for i, want := range []ImageRef{
		{URL: "https://x/1", ApplicationNum: "A1", FileName: "one.jpg"},
		{URL: "https://x/2", ApplicationNum: "A1", FileName: "two.jpg"},
	} {
		if refs[i] != want {
			t.Errorf("refs[%d] = %+v, want %+v", i, refs[i], want)
		}
	}
}

func TestFetchResult_JSONShape(t *testing.T) {
	res := FetchResult{Date: "2020-01-01", Count: 0, Items: []Record{}, Err: json.Unmarshal([]byte("x"), nil)}
	out, err := json.Marshal(res)
	if err != nil {
		t.Fatalf("marshal failed: %v", err)
	}

	var m map[string]json.RawMessage
	if err := json.Unmarshal(out, &m); err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if _, ok := m["err"]; ok {
		t.Error("error field leaked into JSON output")
	}
	if string(m["items"]) != "[]" {
		t.Errorf("items = %s, want []", m["items"])
	}
	if !res.Failed() {
		t.Error("Failed() = false for result with error")
	}
}

// Copyright (c) 2026 John Earle
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

package models

import (
	"encoding/json"
	"testing"
)

func TestContentTypeForFile(t *testing.T) {
	tests := map[string]string{
		"report.pdf":     ContentTypePDF,
		"REPORT.PDF":     ContentTypePDF,
		"letter.docx":    ContentTypeWord,
		"ward-data.xlsx": ContentTypeSpreadsheet,
		"rows.csv":       ContentTypeCSV,
		"pothole.jpg":    ContentTypeImage,
		"archive.zip":    ContentTypeAttachment,
		"noext":          ContentTypeAttachment,
	}
	for name, want := range tests {
		if got := ContentTypeForFile(name); got != want {
			t.Errorf("ContentTypeForFile(%q) = %q, want %q", name, got, want)
		}
	}
}

// TestRecordJSON verifies the discriminator fields the dashboard switches on.
func TestRecordJSON(t *testing.T) {
	records := []Record{
		EmailBodyRecord{ID: "r1", MessageID: "m1"},
		AttachmentRecord{ID: "r2", MessageID: "m1", Source: "report.pdf", FileSize: 10},
	}

	data, err := json.Marshal(records)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	var decoded []map[string]interface{}
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}

	if decoded[0]["kind"] != "email_body" || decoded[0]["content_type"] != ContentTypeEmailBody {
		t.Errorf("email body record = %v", decoded[0])
	}
	if decoded[1]["kind"] != "attachment" || decoded[1]["content_type"] != ContentTypePDF {
		t.Errorf("attachment record = %v", decoded[1])
	}
	if decoded[1]["source"] != "report.pdf" {
		t.Errorf("source = %v, want report.pdf", decoded[1]["source"])
	}
}

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
	"path/filepath"
	"strings"
)

// Record is one item emitted by an ingestion run. It is either an
// EmailBodyRecord or an AttachmentRecord; the set is closed.
type Record interface {
	RecordID() string
	SourceMessageID() string
	isRecord()
}

// EmailBodyRecord is emitted for a complaint that arrived without attachments.
type EmailBodyRecord struct {
	ID          string `json:"id"`
	MessageID   string `json:"message_id"`
	ComplaintID string `json:"complaint_id"`
	Sender      string `json:"sender"`
	Subject     string `json:"subject"`
	Timestamp   string `json:"timestamp"`
	Status      string `json:"status"`
}

// AttachmentRecord is emitted once per attachment of a complaint message.
type AttachmentRecord struct {
	ID          string `json:"id"`
	MessageID   string `json:"message_id"`
	ComplaintID string `json:"complaint_id"`
	Sender      string `json:"sender"`
	Source      string `json:"source"`
	FileSize    int64  `json:"file_size"`
	Timestamp   string `json:"timestamp"`
	Status      string `json:"status"`
}

func (r EmailBodyRecord) RecordID() string        { return r.ID }
func (r EmailBodyRecord) SourceMessageID() string { return r.MessageID }
func (EmailBodyRecord) isRecord()                 {}

func (r AttachmentRecord) RecordID() string        { return r.ID }
func (r AttachmentRecord) SourceMessageID() string { return r.MessageID }
func (AttachmentRecord) isRecord()                 {}

// ContentType returns the dashboard label for the record.
func (EmailBodyRecord) ContentType() string { return ContentTypeEmailBody }

// ContentType returns the dashboard label for the attachment's file type.
func (r AttachmentRecord) ContentType() string { return ContentTypeForFile(r.Source) }

// MarshalJSON adds the kind and content_type discriminators.
func (r EmailBodyRecord) MarshalJSON() ([]byte, error) {
	type alias EmailBodyRecord
	return json.Marshal(struct {
		Kind        string `json:"kind"`
		ContentType string `json:"content_type"`
		alias
	}{"email_body", r.ContentType(), alias(r)})
}

// MarshalJSON adds the kind and content_type discriminators.
func (r AttachmentRecord) MarshalJSON() ([]byte, error) {
	type alias AttachmentRecord
	return json.Marshal(struct {
		Kind        string `json:"kind"`
		ContentType string `json:"content_type"`
		alias
	}{"attachment", r.ContentType(), alias(r)})
}

// ContentTypeForFile maps a filename extension to a dashboard label.
func ContentTypeForFile(filename string) string {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".pdf":
		return ContentTypePDF
	case ".doc", ".docx":
		return ContentTypeWord
	case ".xls", ".xlsx":
		return ContentTypeSpreadsheet
	case ".csv":
		return ContentTypeCSV
	case ".png", ".jpg", ".jpeg", ".gif", ".tif", ".tiff", ".heic":
		return ContentTypeImage
	default:
		return ContentTypeAttachment
	}
}

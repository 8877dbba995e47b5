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

// Package models defines the data structures shared across the triage service.
package models

// Part is one node of a message's MIME tree. The tree is owned by the mail
// gateway and is never mutated after a fetch.
type Part struct {
	PartID   string  `json:"part_id,omitempty"`
	MimeType string  `json:"mime_type,omitempty"`
	Filename string  `json:"filename,omitempty"`
	Size     int64   `json:"size"`
	Parts    []*Part `json:"parts,omitempty"`
}

// Message is a single inbox item as returned by a mail gateway.
type Message struct {
	ID      string `json:"id"`
	Subject string `json:"subject"`
	From    string `json:"from"`
	Date    string `json:"date"`
	Snippet string `json:"snippet"`
	Payload *Part  `json:"payload,omitempty"`
}

// Attachment is a file found in a message's part tree.
type Attachment struct {
	Filename string `json:"filename"`
	Size     int64  `json:"size"`
}

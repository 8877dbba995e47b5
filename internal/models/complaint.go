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

import "time"

// Status is the resolution state of a complaint.
type Status string

const (
	StatusOpen   Status = "open"
	StatusClosed Status = "closed"
)

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	return s == StatusOpen || s == StatusClosed
}

// Content type labels shown on the dashboard.
const (
	ContentTypeEmailBody   = "Email Body"
	ContentTypePDF         = "PDF Report"
	ContentTypeWord        = "Word Document"
	ContentTypeSpreadsheet = "Spreadsheet"
	ContentTypeCSV         = "CSV Data"
	ContentTypeImage       = "Image"
	ContentTypeAttachment  = "Attachment"
)

// RiskAnalysis is the score and labels derived from complaint text.
type RiskAnalysis struct {
	Score    float64 `json:"risk_score"`
	Severity string  `json:"severity"`
	Priority string  `json:"priority"`
}

// Extracted holds the fields pulled out of a message.
type Extracted struct {
	Subject        string `json:"subject"`
	Complaint      string `json:"complaint"`
	Sender         string `json:"sender"`
	Date           string `json:"date"`
	Location       string `json:"location"`
	PopulationUsed int    `json:"population_used"`
	ContentType    string `json:"content_type"`
}

// Complaint is the persisted unit of work. MessageID is the dedup key:
// ingestion creates at most one Complaint per source message.
type Complaint struct {
	ID          string       `json:"id"`
	MessageID   string       `json:"message_id"`
	Source      string       `json:"source"`
	Extracted   Extracted    `json:"extracted"`
	Attachments []Attachment `json:"attachments"`
	Risk        RiskAnalysis `json:"risk_analysis"`
	Status      Status       `json:"status"`
	CreatedAt   time.Time    `json:"created_at"`
	ResolvedAt  *time.Time   `json:"resolved_at,omitempty"`
}

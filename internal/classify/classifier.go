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

// Package classify decides whether an inbox message is a civic complaint.
//
// Matching is plain case-insensitive substring containment against a fixed
// keyword list. There is no tokenisation, so "water" also matches
// "waterfall" and "power" matches "powerful".
package classify

import (
	"strings"
	"unicode/utf8"

	"github.com/civicdesk/triage/internal/models"
)

// LongSnippetThreshold is the snippet length (in characters) above which a
// message qualifies on length alone when Policy.LongSnippet is enabled.
const LongSnippetThreshold = 200

// Policy selects which checks are enabled.
type Policy struct {
	// LongSnippet qualifies any message whose snippet exceeds
	// LongSnippetThreshold characters.
	LongSnippet bool
	// RequireAttachment drops complaints that have no attachments.
	// It is applied by the orchestrator after extraction.
	RequireAttachment bool
}

// Reason names the check that qualified a message.
type Reason string

const (
	ReasonNone           Reason = ""
	ReasonSubjectKeyword Reason = "subject_keyword"
	ReasonSnippetKeyword Reason = "snippet_keyword"
	ReasonAttachment     Reason = "attachment"
	ReasonLongSnippet    Reason = "long_snippet"
)

// Verdict is the outcome of classifying one message.
type Verdict struct {
	IsComplaint bool   `json:"is_complaint"`
	Reason      Reason `json:"reason,omitempty"`
	Keyword     string `json:"keyword,omitempty"`
}

// Classifier applies the keyword/attachment heuristic.
type Classifier struct {
	keywords []string
	policy   Policy
}

// New creates a classifier over the given keywords. Keywords are lowercased
// once here; empty entries are dropped so they cannot match everything.
func New(keywords []string, policy Policy) *Classifier {
	lowered := make([]string, 0, len(keywords))
	for _, k := range keywords {
		k = strings.ToLower(strings.TrimSpace(k))
		if k == "" {
			continue
		}
		lowered = append(lowered, k)
	}
	return &Classifier{keywords: lowered, policy: policy}
}

// Policy returns the classifier's policy.
func (c *Classifier) Policy() Policy {
	return c.policy
}

// Keywords returns a copy of the normalised keyword list.
func (c *Classifier) Keywords() []string {
	out := make([]string, len(c.keywords))
	copy(out, c.keywords)
	return out
}

// MatchKeyword returns the first keyword contained in text, if any.
func (c *Classifier) MatchKeyword(text string) (string, bool) {
	if text == "" {
		return "", false
	}
	lower := strings.ToLower(text)
	for _, k := range c.keywords {
		if strings.Contains(lower, k) {
			return k, true
		}
	}
	return "", false
}

// ContainsKeyword reports whether text contains any keyword.
func (c *Classifier) ContainsKeyword(text string) bool {
	_, ok := c.MatchKeyword(text)
	return ok
}

// Classify returns the OR of all enabled checks. The first check that
// holds, in the order subject, snippet, attachments, snippet length, is
// reported as the reason.
func (c *Classifier) Classify(msg *models.Message, attachments []models.Attachment) Verdict {
	if msg == nil {
		return Verdict{}
	}

	if k, ok := c.MatchKeyword(msg.Subject); ok {
		return Verdict{IsComplaint: true, Reason: ReasonSubjectKeyword, Keyword: k}
	}
	if k, ok := c.MatchKeyword(msg.Snippet); ok {
		return Verdict{IsComplaint: true, Reason: ReasonSnippetKeyword, Keyword: k}
	}
	if len(attachments) > 0 {
		return Verdict{IsComplaint: true, Reason: ReasonAttachment}
	}
	if c.policy.LongSnippet && utf8.RuneCountInString(msg.Snippet) > LongSnippetThreshold {
		return Verdict{IsComplaint: true, Reason: ReasonLongSnippet}
	}
	return Verdict{}
}

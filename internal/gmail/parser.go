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

package gmail

import (
	"html"
	"strings"

	"google.golang.org/api/gmail/v1"

	"github.com/civicdesk/triage/internal/models"
)

// convertMessage maps a Gmail API message onto the canonical Message.
func convertMessage(msg *gmail.Message) *models.Message {
	if msg == nil {
		return nil
	}
	out := &models.Message{
		ID: msg.Id,
		// Gmail HTML-escapes snippets.
		Snippet: html.UnescapeString(msg.Snippet),
	}
	if msg.Payload == nil {
		return out
	}

	for _, h := range msg.Payload.Headers {
		switch strings.ToLower(h.Name) {
		case "subject":
			out.Subject = h.Value
		case "from":
			out.From = h.Value
		case "date":
			out.Date = h.Value
		}
	}
	out.Payload = convertPart(msg.Payload)
	return out
}

func convertPart(p *gmail.MessagePart) *models.Part {
	if p == nil {
		return nil
	}
	part := &models.Part{
		PartID:   p.PartId,
		MimeType: p.MimeType,
		Filename: p.Filename,
	}
	if p.Body != nil {
		part.Size = p.Body.Size
	}
	if len(p.Parts) > 0 {
		part.Parts = make([]*models.Part, 0, len(p.Parts))
		for _, child := range p.Parts {
			if c := convertPart(child); c != nil {
				part.Parts = append(part.Parts, c)
			}
		}
	}
	return part
}

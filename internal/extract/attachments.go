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

// Package extract pulls attachments and complaint fields out of a fetched
// message.
package extract

import "github.com/civicdesk/triage/internal/models"

// Attachments walks the part tree depth-first in pre-order and returns
// every part that carries a filename. The result is never nil.
func Attachments(root *models.Part) []models.Attachment {
	out := []models.Attachment{}
	walk(root, &out)
	return out
}

func walk(p *models.Part, out *[]models.Attachment) {
	if p == nil {
		return
	}
	if p.Filename != "" {
		size := p.Size
		if size < 0 {
			size = 0
		}
		*out = append(*out, models.Attachment{Filename: p.Filename, Size: size})
	}
	for _, child := range p.Parts {
		walk(child, out)
	}
}

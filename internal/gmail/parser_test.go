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
	"testing"

	"google.golang.org/api/gmail/v1"

	"github.com/civicdesk/triage/internal/extract"
)

func TestConvertMessage_Nil(t *testing.T) {
	if got := convertMessage(nil); got != nil {
		t.Errorf("convertMessage(nil) = %+v", got)
	}
}

func TestConvertMessage_NoPayload(t *testing.T) {
	got := convertMessage(&gmail.Message{Id: "x", Snippet: "a &lt; b"})
	if got.ID != "x" || got.Snippet != "a < b" {
		t.Errorf("got %+v", got)
	}
	if got.Payload != nil {
		t.Errorf("Payload = %+v, want nil", got.Payload)
	}
}

func TestConvertMessage_NestedAttachments(t *testing.T) {
	msg := &gmail.Message{
		Id: "n1",
		Payload: &gmail.MessagePart{
			MimeType: "multipart/mixed",
			Parts: []*gmail.MessagePart{
				{
					MimeType: "multipart/alternative",
					Parts: []*gmail.MessagePart{
						{MimeType: "text/plain"},
						{MimeType: "text/html"},
					},
				},
				{Filename: "a.pdf", Body: &gmail.MessagePartBody{Size: 10}},
				nil,
				{
					MimeType: "message/rfc822",
					Filename: "fwd.eml",
					Body:     &gmail.MessagePartBody{Size: 30},
					Parts:    []*gmail.MessagePart{{Filename: "b.jpg", Body: &gmail.MessagePartBody{Size: 20}}},
				},
			},
		},
	}

	atts := extract.Attachments(convertMessage(msg).Payload)
	want := []string{"a.pdf", "fwd.eml", "b.jpg"}
	if len(atts) != len(want) {
		t.Fatalf("attachments = %+v, want %v", atts, want)
	}
	for i, name := range want {
		if atts[i].Filename != name {
			t.Errorf("attachments[%d] = %q, want %q", i, atts[i].Filename, name)
		}
	}
	if atts[2].Size != 20 {
		t.Errorf("b.jpg size = %d, want 20", atts[2].Size)
	}
}

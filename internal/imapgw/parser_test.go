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

package imapgw

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/civicdesk/triage/internal/extract"
)

const multipartComplaint = "From: =?UTF-8?Q?Meera_Iyer?= <meera@example.org>\r\n" +
	"To: grievances@city.example\r\n" +
	"Subject: =?UTF-8?Q?Sewage_overflow_=E2=80=93_Ward_12?=\r\n" +
	"Date: Tue, 10 Mar 2026 08:15:00 +0530\r\n" +
	"MIME-Version: 1.0\r\n" +
	"Content-Type: multipart/mixed; boundary=\"outer\"\r\n" +
	"\r\n" +
	"--outer\r\n" +
	"Content-Type: multipart/alternative; boundary=\"inner\"\r\n" +
	"\r\n" +
	"--inner\r\n" +
	"Content-Type: text/plain; charset=utf-8\r\n" +
	"\r\n" +
	"Location: Ward 12\r\n" +
	"Sewage   overflowing\r\nsince Sunday.\r\n" +
	"--inner\r\n" +
	"Content-Type: text/html; charset=utf-8\r\n" +
	"\r\n" +
	"<p>Sewage overflowing since Sunday.</p>\r\n" +
	"--inner--\r\n" +
	"--outer\r\n" +
	"Content-Type: application/pdf; name=\"site.pdf\"\r\n" +
	"Content-Disposition: attachment; filename=\"site.pdf\"\r\n" +
	"Content-Transfer-Encoding: base64\r\n" +
	"\r\n" +
	"JVBERi0xLjQKJcOkw7zDtsOfCg==\r\n" +
	"--outer\r\n" +
	"Content-Type: image/jpeg; name=\"drain.jpg\"\r\n" +
	"Content-Disposition: inline\r\n" +
	"Content-Transfer-Encoding: base64\r\n" +
	"\r\n" +
	"/9j/4AAQSkZJRg==\r\n" +
	"--outer--\r\n"

func TestParseMessage_Multipart(t *testing.T) {
	msg, err := parseMessage("42", strings.NewReader(multipartComplaint))
	if err != nil {
		t.Fatalf("parseMessage: %v", err)
	}

	if msg.ID != "42" {
		t.Errorf("ID = %q", msg.ID)
	}
	if msg.Subject != "Sewage overflow – Ward 12" {
		t.Errorf("Subject = %q, want decoded", msg.Subject)
	}
	if !strings.HasPrefix(msg.From, "Meera Iyer") {
		t.Errorf("From = %q, want decoded display name", msg.From)
	}
	if msg.Date != "Tue, 10 Mar 2026 08:15:00 +0530" {
		t.Errorf("Date = %q", msg.Date)
	}
	if msg.Snippet != "Location: Ward 12 Sewage overflowing since Sunday." {
		t.Errorf("Snippet = %q", msg.Snippet)
	}

	if msg.Payload == nil || msg.Payload.MimeType != "multipart/mixed" {
		t.Fatalf("root = %+v", msg.Payload)
	}
	if len(msg.Payload.Parts) != 3 {
		t.Fatalf("root has %d parts, want 3", len(msg.Payload.Parts))
	}
	if got := msg.Payload.Parts[0].Parts; len(got) != 2 || got[0].PartID != "0.0" {
		t.Errorf("alternative parts = %+v", got)
	}

	atts := extract.Attachments(msg.Payload)
	if len(atts) != 2 {
		t.Fatalf("attachments = %+v, want 2", atts)
	}
	if atts[0].Filename != "site.pdf" || atts[0].Size <= 0 {
		t.Errorf("pdf = %+v", atts[0])
	}
	if atts[1].Filename != "drain.jpg" {
		t.Errorf("inline image filename = %q, want name from content type", atts[1].Filename)
	}
}

func TestParseMessage_SinglePartPlain(t *testing.T) {
	raw := "From: resident@example.org\r\n" +
		"Subject: Streetlight out\r\n" +
		"\r\n" +
		"The light on 3rd Cross has been out for a week.\r\n"

	msg, err := parseMessage("7", strings.NewReader(raw))
	if err != nil {
		t.Fatalf("parseMessage: %v", err)
	}
	if msg.From != "resident@example.org" {
		t.Errorf("From = %q", msg.From)
	}
	if msg.Date != "" {
		t.Errorf("Date = %q, want empty", msg.Date)
	}
	if msg.Snippet != "The light on 3rd Cross has been out for a week." {
		t.Errorf("Snippet = %q", msg.Snippet)
	}
	if len(extract.Attachments(msg.Payload)) != 0 {
		t.Error("plain message should have no attachments")
	}
}

func TestParseMessage_HTMLOnly(t *testing.T) {
	raw := "Subject: Noise\r\n" +
		"Content-Type: text/html\r\n" +
		"\r\n" +
		"<html><style>p{}</style><body><p>Loud   music</p><br>after midnight</body></html>\r\n"

	msg, err := parseMessage("8", strings.NewReader(raw))
	if err != nil {
		t.Fatalf("parseMessage: %v", err)
	}
	if msg.Snippet != "Loud music after midnight" {
		t.Errorf("Snippet = %q", msg.Snippet)
	}
}

func TestParseMessage_SnippetTruncated(t *testing.T) {
	raw := "Subject: Long\r\n\r\n" + strings.Repeat("ड्रेन ", 200) + "\r\n"

	msg, err := parseMessage("9", strings.NewReader(raw))
	if err != nil {
		t.Fatalf("parseMessage: %v", err)
	}
	if n := utf8.RuneCountInString(msg.Snippet); n != SnippetLength {
		t.Errorf("snippet has %d runes, want %d", n, SnippetLength)
	}
}

func TestParseUID(t *testing.T) {
	if uid, err := parseUID("123"); err != nil || uid != 123 {
		t.Errorf("parseUID(123) = %d, %v", uid, err)
	}
	for _, bad := range []string{"", "0", "-1", "abc", "99999999999"} {
		if _, err := parseUID(bad); err == nil {
			t.Errorf("parseUID(%q) succeeded", bad)
		}
	}
}

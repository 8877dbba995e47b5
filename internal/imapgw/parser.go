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
	"errors"
	"fmt"
	"io"
	"regexp"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/emersion/go-message"
	_ "github.com/emersion/go-message/charset"
	"github.com/emersion/go-message/mail"

	"github.com/civicdesk/triage/internal/models"
)

// SnippetLength is the maximum snippet length in characters.
const SnippetLength = 400

// maxTextBytes bounds how much of a text part is buffered for the snippet.
const maxTextBytes = 64 << 10

var (
	htmlTag    = regexp.MustCompile(`(?s)<(script|style)[^>]*>.*?</(script|style)>|<[^>]+>`)
	whitespace = regexp.MustCompile(`\s+`)
)

// parseMessage reads a raw RFC 5322 message into a Message with the given
// ID. The MIME structure becomes the Part tree; the first text/plain body
// (or text/html with tags removed) becomes the snippet.
func parseMessage(id string, r io.Reader) (*models.Message, error) {
	entity, err := message.Read(r)
	if err != nil && !message.IsUnknownCharset(err) && !message.IsUnknownEncoding(err) {
		return nil, fmt.Errorf("parse message %s: %w", id, err)
	}
	if entity == nil {
		return nil, fmt.Errorf("parse message %s: empty entity", id)
	}

	h := mail.Header{Header: entity.Header}
	msg := &models.Message{
		ID:   id,
		Date: strings.TrimSpace(h.Get("Date")),
	}
	if s, err := h.Subject(); err == nil {
		msg.Subject = s
	} else {
		msg.Subject = h.Get("Subject")
	}
	if f, err := h.Text("From"); err == nil {
		msg.From = f
	} else {
		msg.From = h.Get("From")
	}

	b := &treeBuilder{}
	msg.Payload = b.build(entity, "")
	msg.Snippet = b.snippet()
	return msg, nil
}

// treeBuilder walks the entity tree, recording the first text bodies it
// sees along the way.
type treeBuilder struct {
	plain string
	html  string
}

func (b *treeBuilder) build(e *message.Entity, partID string) *models.Part {
	mimeType, _, err := e.Header.ContentType()
	if err != nil || mimeType == "" {
		mimeType = "text/plain"
	}
	part := &models.Part{PartID: partID, MimeType: strings.ToLower(mimeType)}
	if name, _ := (&mail.AttachmentHeader{Header: e.Header}).Filename(); name != "" {
		part.Filename = name
	}

	if mr := e.MultipartReader(); mr != nil {
		for i := 0; ; i++ {
			child, err := mr.NextPart()
			if errors.Is(err, io.EOF) {
				break
			}
			if err != nil && !message.IsUnknownCharset(err) && !message.IsUnknownEncoding(err) {
				break
			}
			if child == nil {
				break
			}
			part.Parts = append(part.Parts, b.build(child, childID(partID, i)))
		}
		return part
	}

	part.Size = b.consume(part, e.Body)
	return part
}

// consume drains a leaf body and returns its decoded size. Text bodies
// that are not attachments are kept as snippet candidates.
func (b *treeBuilder) consume(part *models.Part, body io.Reader) int64 {
	if body == nil {
		return 0
	}
	wantText := part.Filename == "" &&
		((part.MimeType == "text/plain" && b.plain == "") ||
			(part.MimeType == "text/html" && b.html == ""))
	if !wantText {
		n, _ := io.Copy(io.Discard, body)
		return n
	}

	var sb strings.Builder
	n, _ := io.Copy(&sb, io.LimitReader(body, maxTextBytes))
	rest, _ := io.Copy(io.Discard, body)
	if part.MimeType == "text/plain" {
		b.plain = sb.String()
	} else {
		b.html = sb.String()
	}
	return n + rest
}

func (b *treeBuilder) snippet() string {
	text := b.plain
	if strings.TrimSpace(text) == "" {
		text = htmlTag.ReplaceAllString(b.html, " ")
	}
	text = strings.TrimSpace(whitespace.ReplaceAllString(text, " "))
	if utf8.RuneCountInString(text) <= SnippetLength {
		return text
	}
	runes := []rune(text)
	return string(runes[:SnippetLength])
}

func childID(parent string, i int) string {
	if parent == "" {
		return strconv.Itoa(i)
	}
	return parent + "." + strconv.Itoa(i)
}

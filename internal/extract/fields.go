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

package extract

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/civicdesk/triage/internal/models"
)

// Defaults used when a header is missing.
const (
	DefaultSubject  = "No Subject"
	DefaultSender   = "Unknown"
	UnknownLocation = "Unknown"
)

// Population estimates used when no explicit figure is given.
const (
	PopulationLarge  = 10000
	PopulationMedium = 3000
	PopulationSmall  = 800
	PopulationLocal  = 500
)

const peopleWords = `(people|residents|citizens|individuals|families|households|population)`

var (
	locationLine = regexp.MustCompile(`(?i)\blocation\s*:\s*([^\n]+)`)
	zonePatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?i)\bzone\s*[-:]?\s*\d+\b`),
		regexp.MustCompile(`(?i)\bz\s*o\s*n\s*e\s*\d+\b`),
	}
	zoneNumber = regexp.MustCompile(`\d+`)

	explicitPopulation = regexp.MustCompile(
		`(affecting|affected|impacting)\s+(approximately\s+)?([\d,]+)\s+(people|residents|citizens|individuals|families|households)`)
	largeImpact  = regexp.MustCompile(`(thousands of|large number of|numerous)\s+` + peopleWords)
	mediumImpact = regexp.MustCompile(`(many|several|multiple|large group of)\s+` + peopleWords)
	smallImpact  = regexp.MustCompile(`(few|some|limited number of|nearby)\s+` + peopleWords)

	angleAddr = regexp.MustCompile(`\s*<[^>]*>\s*`)
)

// DefaultPlaces are the city names recognised when none are configured.
var DefaultPlaces = []string{"Pune"}

// Places matches known place names as whole words, case-insensitively.
type Places struct {
	names    []string
	patterns []*regexp.Regexp
}

// NewPlaces compiles a matcher for names. Blank names are dropped; earlier
// names win when several appear in one text.
func NewPlaces(names []string) *Places {
	p := &Places{}
	for _, n := range names {
		n = strings.TrimSpace(n)
		if n == "" {
			continue
		}
		p.names = append(p.names, n)
		p.patterns = append(p.patterns, regexp.MustCompile(`(?i)\b`+regexp.QuoteMeta(n)+`\b`))
	}
	return p
}

// Match returns the configured spelling of the first place found in text.
func (p *Places) Match(text string) (string, bool) {
	if p == nil {
		return "", false
	}
	for i, re := range p.patterns {
		if re.MatchString(text) {
			return p.names[i], true
		}
	}
	return "", false
}

// Fields builds the extracted complaint fields for msg. now stands in for a
// missing Date header; places resolves city names in the text.
func Fields(msg *models.Message, attachments []models.Attachment, now time.Time, places *Places) models.Extracted {
	subject := strings.TrimSpace(msg.Subject)
	if subject == "" {
		subject = DefaultSubject
	}
	date := strings.TrimSpace(msg.Date)
	if date == "" {
		date = now.UTC().Format(time.RFC3339)
	}

	text := msg.Subject + "\n" + msg.Snippet

	contentType := models.ContentTypeEmailBody
	if len(attachments) > 0 {
		contentType = models.ContentTypeForFile(attachments[0].Filename)
	}

	return models.Extracted{
		Subject:        subject,
		Complaint:      msg.Snippet,
		Sender:         SenderName(msg.From),
		Date:           date,
		Location:       Location(text, places),
		PopulationUsed: Population(text),
		ContentType:    contentType,
	}
}

// SenderName strips the angle-bracket address from a From header, leaving
// the display name. A bare address is returned unchanged.
func SenderName(from string) string {
	from = strings.TrimSpace(from)
	if from == "" {
		return DefaultSender
	}
	name := strings.Trim(strings.TrimSpace(angleAddr.ReplaceAllString(from, " ")), `"`)
	if name != "" {
		return name
	}
	// "<addr@host>" only
	return strings.Trim(from, "<> ")
}

// Location returns the value of a "Location:" line, else the first
// "Zone N" mention, else the first known place, else UnknownLocation.
func Location(text string, places *Places) string {
	if m := locationLine.FindStringSubmatch(text); m != nil {
		if loc := strings.TrimSpace(m[1]); loc != "" {
			return loc
		}
	}
	flat := strings.Join(strings.Fields(text), " ")
	for _, p := range zonePatterns {
		if m := p.FindString(flat); m != "" {
			return "Zone " + zoneNumber.FindString(m)
		}
	}
	if name, ok := places.Match(text); ok {
		return name
	}
	return UnknownLocation
}

// Population estimates the number of people affected. An explicit figure
// ("affecting 1,200 residents") wins; otherwise quantity words pick a band.
func Population(text string) int {
	t := strings.ToLower(text)

	if m := explicitPopulation.FindStringSubmatch(t); m != nil {
		if n, err := strconv.Atoi(strings.ReplaceAll(m[3], ",", "")); err == nil && n > 0 {
			return n
		}
	}

	switch {
	case largeImpact.MatchString(t):
		return PopulationLarge
	case mediumImpact.MatchString(t):
		return PopulationMedium
	case smallImpact.MatchString(t):
		return PopulationSmall
	default:
		return PopulationLocal
	}
}

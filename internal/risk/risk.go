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

// Package risk scores complaint text.
//
// The score is a placeholder heuristic over text length: one point per five
// characters, capped at 100. Severity and priority are fixed bands over the
// score.
package risk

import (
	"math"
	"unicode/utf8"

	"github.com/civicdesk/triage/internal/models"
)

const (
	MaxScore        = 100
	charsPerPoint   = 5
	highThreshold   = 70
	mediumThreshold = 40
)

// Labels.
const (
	High   = "High"
	Medium = "Medium"
	Low    = "Low"
)

// Score returns the risk analysis for text.
func Score(text string) models.RiskAnalysis {
	raw := float64(utf8.RuneCountInString(text)) / charsPerPoint
	score := math.Round(math.Min(MaxScore, raw)*100) / 100

	return models.RiskAnalysis{
		Score:    score,
		Severity: Severity(score),
		Priority: Priority(score),
	}
}

// Severity maps a score to High, Medium or Low.
func Severity(score float64) string {
	switch {
	case score > highThreshold:
		return High
	case score > mediumThreshold:
		return Medium
	default:
		return Low
	}
}

// Priority maps a score to High or Medium. There is no Low priority.
func Priority(score float64) string {
	if score > highThreshold {
		return High
	}
	return Medium
}

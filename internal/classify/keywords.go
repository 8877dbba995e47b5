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

package classify

// DefaultKeywords is the civic grievance vocabulary used when the
// configuration does not supply its own list. Order is significant only
// for reporting which keyword matched first.
var DefaultKeywords = []string{
	// Generic
	"complaint",
	"grievance",
	"issue",
	"problem",
	"not working",
	"not functioning",
	"malfunction",
	"failure",
	"delay",
	"pending",
	"unresolved",

	// Infrastructure
	"road",
	"pothole",
	"street light",
	"traffic",
	"signal",
	"bridge",
	"construction",
	"repair",

	// Utilities
	"water",
	"electricity",
	"power",
	"current",
	"sewage",
	"drainage",
	"pipeline",
	"leakage",
	"overflow",
	"garbage",
	"waste",
	"sanitation",

	// Public services
	"municipal",
	"corporation",
	"ward office",
	"panchayat",
	"public service",
	"government",

	// Safety & legality
	"illegal",
	"unauthorized",
	"encroachment",
	"corruption",
	"bribe",
	"harassment",
	"unsafe",
	"accident",

	// Health & environment
	"pollution",
	"noise",
	"smell",
	"mosquito",
	"health hazard",
	"contamination",

	// Urgency
	"urgent",
	"immediate action",
	"emergency",
	"as soon as possible",
}

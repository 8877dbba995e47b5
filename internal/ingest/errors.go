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

package ingest

import (
	"errors"
	"fmt"

	"github.com/civicdesk/triage/internal/auth"
)

// Run-level error codes. The UI re-triggers authorisation on AUTH_*.
const (
	CodeConfigMissing    = "CONFIG_MISSING"
	CodeAuthMissing      = "AUTH_MISSING"
	CodeAuthExpired      = "AUTH_EXPIRED"
	CodeStoreUnavailable = "STORE_UNAVAILABLE"
	CodeGatewayError     = "GATEWAY_ERROR"

	// CodeSessionUnavailable is reported by the HTTP layer when the session
	// store cannot be read. It is not an auth failure.
	CodeSessionUnavailable = "SESSION_UNAVAILABLE"
)

// RunError aborts a whole run. Logs holds the run log up to the failure.
type RunError struct {
	Code    string   `json:"code"`
	Message string   `json:"error"`
	Logs    []string `json:"logs"`
	Err     error    `json:"-"`
}

func (e *RunError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *RunError) Unwrap() error { return e.Err }

// IsAuth reports whether the caller should send the user back through
// the consent flow.
func (e *RunError) IsAuth() bool {
	return e.Code == CodeAuthMissing || e.Code == CodeAuthExpired
}

// connectError classifies a Connector failure.
func connectError(err error) (code, message string) {
	switch {
	case errors.Is(err, auth.ErrNotConfigured):
		return CodeConfigMissing, "Mail credentials are not configured"
	case errors.Is(err, auth.ErrMissingToken):
		return CodeAuthMissing, "Mailbox not connected. Please authorise access."
	case errors.Is(err, auth.ErrTokenExpired):
		return CodeAuthExpired, "Mailbox authorisation expired. Please re-authenticate."
	default:
		return CodeGatewayError, "Could not connect to the mail gateway"
	}
}

// gatewayError classifies a run-level gateway failure such as List.
func gatewayError(err error) (code, message string) {
	if errors.Is(err, auth.ErrTokenExpired) {
		return CodeAuthExpired, "Mailbox authorisation expired. Please re-authenticate."
	}
	return CodeGatewayError, "Failed to list messages"
}

// Copyright 2025 Kadir Pekel
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

// Package retry provides a small fixed-delay retry helper shared by the
// Analyzer and Summary Engine for their outbound LLM calls.
package retry

import (
	"context"
	"time"
)

// Do calls fn up to len(delays)+1 times, sleeping delays[attempt] between
// attempts. It returns the last error if every attempt fails, or nil as
// soon as one succeeds. A ctx cancellation aborts the wait immediately.
func Do(ctx context.Context, delays []time.Duration, fn func(attempt int) error) error {
	var lastErr error
	for attempt := 0; attempt <= len(delays); attempt++ {
		lastErr = fn(attempt)
		if lastErr == nil {
			return nil
		}
		if attempt == len(delays) {
			break
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delays[attempt]):
		}
	}
	return lastErr
}

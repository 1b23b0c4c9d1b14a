// ABOUTME: Tests for draft parsing and retry classification
// ABOUTME: Covers JSON, Subject-line and bare-text model output
package generator

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestParseDraft(t *testing.T) {
	tests := []struct {
		name    string
		text    string
		subject string
		body    string
	}{
		{"json", `{"subject":"Hi","body":"Short note"}`, "Hi", "Short note"},
		{"fenced json", "```json\n{\"subject\":\"Hi\",\"body\":\"Short note\"}\n```", "Hi", "Short note"},
		{"json without subject", `{"body":"Short note"}`, DefaultSubject, "Short note"},
		{"subject line", "Subject: Creator costs\n\nHey Sam,\nquick one.", "Creator costs", "Hey Sam,\nquick one."},
		{"bold subject line", "**Subject: Creator costs**\n\nBody", "Creator costs", "Body"},
		{"bare text", "Hey Sam, quick one.", DefaultSubject, "Hey Sam, quick one."},
		{"broken json", `{"subject": "Hi"`, DefaultSubject, `{"subject": "Hi"`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			draft := ParseDraft(tt.text)
			assert.Equal(t, tt.subject, draft.Subject)
			assert.Equal(t, tt.body, draft.Body)
		})
	}
}

func TestIsRetryable(t *testing.T) {
	assert.False(t, IsRetryable(nil))
	assert.False(t, IsRetryable(context.Canceled))
	assert.True(t, IsRetryable(context.DeadlineExceeded))
	assert.True(t, IsRetryable(&APIError{StatusCode: 429}))
	assert.True(t, IsRetryable(&APIError{StatusCode: 503}))
	assert.False(t, IsRetryable(&APIError{StatusCode: 400}))
	assert.False(t, IsRetryable(fmt.Errorf("wrapped: %w", &APIError{StatusCode: 403})))
	assert.True(t, IsRetryable(errors.New("read tcp: connection reset by peer")))
	assert.False(t, IsRetryable(errors.New("invalid character")))
}

func TestBackoffIsCapped(t *testing.T) {
	assert.Equal(t, time.Second, backoff(0, time.Second, 10*time.Second))
	assert.Equal(t, 4*time.Second, backoff(2, time.Second, 10*time.Second))
	assert.Equal(t, 10*time.Second, backoff(5, time.Second, 10*time.Second))
}

package mail

import (
	"encoding/base64"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/gmail/v1"
)

func TestBuildRawMessage(t *testing.T) {
	raw := BuildRawMessage("Sam Reid", "sam@onsite.test", "kim@shop.io", "Quick idea", "Hi Kim,\n\nBody")

	decoded, err := base64.URLEncoding.DecodeString(raw)
	require.NoError(t, err)
	msg := string(decoded)

	assert.True(t, strings.HasPrefix(msg, "From: Sam Reid <sam@onsite.test>\r\n"))
	assert.Contains(t, msg, "To: kim@shop.io\r\n")
	assert.Contains(t, msg, "Subject: Quick idea\r\n")
	assert.Contains(t, msg, "Content-Type: text/plain; charset=utf-8\r\n")
	assert.True(t, strings.HasSuffix(msg, "\r\n\r\nHi Kim,\n\nBody"))
}

func TestBuildRawMessageEncodesNonASCIISubject(t *testing.T) {
	raw := BuildRawMessage("", "sam@onsite.test", "kim@shop.io", "Café collab", "x")
	decoded, err := base64.URLEncoding.DecodeString(raw)
	require.NoError(t, err)

	assert.Contains(t, string(decoded), "From: sam@onsite.test\r\n")
	assert.Contains(t, string(decoded), "Subject: =?utf-8?q?Caf=C3=A9_collab?=")
}

func TestToMailMessageNestedParts(t *testing.T) {
	enc := func(s string) string { return base64.URLEncoding.EncodeToString([]byte(s)) }

	msg := &gmail.Message{
		Id: "m1",
		Payload: &gmail.MessagePart{
			MimeType: "multipart/report",
			Headers: []*gmail.MessagePartHeader{
				{Name: "X-Failed-Recipients", Value: "sam@example.com"},
				{Name: "Subject", Value: "Delivery Status Notification"},
			},
			Parts: []*gmail.MessagePart{
				{
					MimeType: "multipart/alternative",
					Parts: []*gmail.MessagePart{
						{MimeType: "text/plain", Body: &gmail.MessagePartBody{Data: enc("outer ")}},
						{MimeType: "text/html", Body: &gmail.MessagePartBody{Data: enc("<p>ignored</p>")}},
						{MimeType: "multipart/mixed", Parts: []*gmail.MessagePart{
							{MimeType: "text/plain", Body: &gmail.MessagePartBody{Data: base64.RawURLEncoding.EncodeToString([]byte("deep"))}},
						}},
					},
				},
			},
		},
	}

	out := toMailMessage(msg)
	assert.Equal(t, "m1", out.ID)
	assert.Equal(t, "sam@example.com", out.Headers["x-failed-recipients"])
	assert.Equal(t, "outer deep", out.Body)
}

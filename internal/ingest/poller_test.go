package ingest

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func crlf(s string) string {
	return strings.ReplaceAll(s, "\n", "\r\n")
}

// TestExtractTextBodyPlain tests a single-part text/plain message.
func TestExtractTextBodyPlain(t *testing.T) {
	raw := crlf(`From: kunde@example.com
To: support@helioenergie.example
Subject: Zaehlerstand
Content-Type: text/plain; charset=utf-8

Mein Zaehlerstand ist 5321.
`)

	body, err := extractTextBody(strings.NewReader(raw))
	require.NoError(t, err)
	assert.Equal(t, "Mein Zaehlerstand ist 5321.", strings.TrimSpace(body))
}

// TestExtractTextBodyMultipart tests that the text/plain alternative is
// picked over the html one.
func TestExtractTextBodyMultipart(t *testing.T) {
	raw := crlf(`From: kunde@example.com
To: support@helioenergie.example
Subject: Zaehlerstand
MIME-Version: 1.0
Content-Type: multipart/alternative; boundary=frontier

--frontier
Content-Type: text/html; charset=utf-8

<p>Mein Zaehlerstand ist <b>5321</b>.</p>
--frontier
Content-Type: text/plain; charset=utf-8

Mein Zaehlerstand ist 5321.
--frontier--
`)

	body, err := extractTextBody(strings.NewReader(raw))
	require.NoError(t, err)
	assert.Equal(t, "Mein Zaehlerstand ist 5321.", strings.TrimSpace(body))
	assert.NotContains(t, body, "<p>")
}

// TestExtractTextBodyHTMLOnly tests that a message with no plain part
// yields an empty body rather than an error.
func TestExtractTextBodyHTMLOnly(t *testing.T) {
	raw := crlf(`From: kunde@example.com
Subject: Zaehlerstand
MIME-Version: 1.0
Content-Type: multipart/alternative; boundary=frontier

--frontier
Content-Type: text/html; charset=utf-8

<p>nur html</p>
--frontier--
`)

	body, err := extractTextBody(strings.NewReader(raw))
	require.NoError(t, err)
	assert.Empty(t, body)
}

// TestExtractTextBodyNilReader tests the missing body section error.
func TestExtractTextBodyNilReader(t *testing.T) {
	_, err := extractTextBody(nil)
	assert.Error(t, err)
}

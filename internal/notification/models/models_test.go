package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewPayloadAppliesFallbacks(t *testing.T) {
	p := NewPayload("", "", "")

	assert.Equal(t, DefaultTitle, p.Title)
	assert.Equal(t, DefaultBody, p.Body)
	assert.Equal(t, DefaultIcon, p.Icon)
}

func TestNewPayloadKeepsWhitespaceValues(t *testing.T) {
	p := NewPayload("   ", "\t", "")

	assert.Equal(t, "   ", p.Title)
	assert.Equal(t, "\t", p.Body)
	assert.Equal(t, DefaultIcon, p.Icon)
}

func TestPayloadEncodeWireFormat(t *testing.T) {
	raw, err := NewPayload("Hi", "There", "").Encode()
	require.NoError(t, err)

	assert.Equal(t, `{"title":"Hi","body":"There","icon":"/logo192.png"}`, string(raw))
}

func TestSendRequestPayloadKeepsProvidedValues(t *testing.T) {
	req := SendRequest{Title: "Deploy", Body: "v2 is live", Icon: "/rocket.png"}

	assert.Equal(t, Payload{Title: "Deploy", Body: "v2 is live", Icon: "/rocket.png"}, req.Payload())
}

func TestPayloadEncodeDoesNotEscapeHTML(t *testing.T) {
	raw, err := NewPayload("Tom & Jerry", "<b>hi</b>", "/i.png").Encode()
	require.NoError(t, err)

	assert.Equal(t, `{"title":"Tom & Jerry","body":"<b>hi</b>","icon":"/i.png"}`, string(raw))
}

func TestOutcomeResult(t *testing.T) {
	assert.Equal(t, ResultDelivered, Outcome{StatusCode: 201}.Result())
	assert.Equal(t, ResultGone, Outcome{StatusCode: 410, Err: assert.AnError, Gone: true}.Result())
	assert.Equal(t, ResultFailed, Outcome{StatusCode: 500, Err: assert.AnError}.Result())
}

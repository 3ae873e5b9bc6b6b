package hostapi

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStripHTMLWrapper(t *testing.T) {
	wrapped := []byte("<html><body>{\"status\":\"OK\"}</body></html>")
	assert.Equal(t, []byte(`{"status":"OK"}`), stripHTMLWrapper(wrapped))
}

func TestStripHTMLWrapperLeavesBareJSONAlone(t *testing.T) {
	bare := []byte(`{"status":"OK"}`)
	assert.Equal(t, bare, stripHTMLWrapper(bare))
}

func TestStripHTMLWrapperLeavesMalformedAlone(t *testing.T) {
	malformed := []byte("<html><body>not json")
	assert.Equal(t, malformed, stripHTMLWrapper(malformed))
}

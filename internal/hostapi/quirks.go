package hostapi

import "bytes"

// stripHTMLWrapper undoes the Moodle 4.3 quirk where a web-service response
// body arrives wrapped in "<html><body>...</body></html>" instead of bare
// JSON. Only a literal prefix/suffix match is stripped; anything else is
// returned unchanged so a genuinely malformed body still fails JSON
// decoding with a useful error.
func stripHTMLWrapper(body []byte) []byte {
	const prefix = "<html><body>"
	const suffix = "</body></html>"

	trimmed := bytes.TrimSpace(body)
	if bytes.HasPrefix(trimmed, []byte(prefix)) && bytes.HasSuffix(trimmed, []byte(suffix)) {
		trimmed = trimmed[len(prefix):]
		trimmed = trimmed[:len(trimmed)-len(suffix)]
		return bytes.TrimSpace(trimmed)
	}
	return body
}

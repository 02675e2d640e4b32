package meeting

import "strings"

const (
	dataRequestOpen  = "<data_request>"
	dataRequestClose = "</data_request>"
)

// ScanDataRequests extracts every well-formed data request from an expert
// utterance, in order. The scan is a single forward pass: an opening tag
// without a matching close after it ends the scan, and empty request bodies
// are dropped.
func ScanDataRequests(content string) []string {
	var reqs []string
	for {
		start := strings.Index(content, dataRequestOpen)
		if start < 0 {
			return reqs
		}
		rest := content[start+len(dataRequestOpen):]
		end := strings.Index(rest, dataRequestClose)
		if end < 0 {
			return reqs
		}
		if req := strings.TrimSpace(rest[:end]); req != "" {
			reqs = append(reqs, req)
		}
		content = rest[end+len(dataRequestClose):]
	}
}

// ScanDataRequest returns the first well-formed data request, if any.
func ScanDataRequest(content string) (string, bool) {
	reqs := ScanDataRequests(content)
	if len(reqs) == 0 {
		return "", false
	}
	return reqs[0], true
}

// StripDataRequest removes every well-formed data request block so transcripts
// read cleanly.
func StripDataRequest(content string) string {
	for {
		start := strings.Index(content, dataRequestOpen)
		if start < 0 {
			return strings.TrimSpace(content)
		}
		rest := content[start+len(dataRequestOpen):]
		end := strings.Index(rest, dataRequestClose)
		if end < 0 {
			return strings.TrimSpace(content)
		}
		content = content[:start] + rest[end+len(dataRequestClose):]
	}
}

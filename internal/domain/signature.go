package domain

import "strings"

// MaxSigBytes bounds the extracted crash signature.
const MaxSigBytes = 128

// ExtractSignature pulls the crash signature out of a captured runtime
// trace: the first line starting with "panic:" or "fatal error:", truncated
// to MaxSigBytes. Traces with neither (foreign stderr, partial writes) yield
// an empty signature.
func ExtractSignature(trace []byte) string {
	for _, line := range strings.Split(string(trace), "\n") {
		line = strings.TrimRight(line, "\r")
		if strings.HasPrefix(line, "panic:") || strings.HasPrefix(line, "fatal error:") {
			if len(line) > MaxSigBytes {
				line = line[:MaxSigBytes]
			}
			return line
		}
	}
	return ""
}

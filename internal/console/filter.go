package console

import "bytes"

var (
	lf   = []byte("\n")
	crlf = []byte("\r\n")
)

// expandLF rewrites every line feed as carriage-return+line-feed before the
// bytes go out on the wire.
func expandLF(p []byte) []byte {
	return bytes.ReplaceAll(p, lf, crlf)
}

// collapseCRLF rewrites every carriage-return+line-feed pair back into a
// single line feed. A carriage return not followed by a line feed passes
// through unchanged, so collapseCRLF(expandLF(s)) == s for any s.
func collapseCRLF(p []byte) []byte {
	return bytes.ReplaceAll(p, crlf, lf)
}

package transcript

import (
	"bytes"
	"fmt"
	"io"
	"strings"

	"github.com/yuin/goldmark"
)

// ExportMarkdown writes a session as a markdown document: the title as a
// heading, user guidance as blockquotes, assistant prose verbatim.
// Reasoning never appears in an export.
func ExportMarkdown(w io.Writer, sess Session, entries []Entry) error {
	var sb strings.Builder
	sb.WriteString("# " + sess.Title + "\n\n")

	for _, e := range entries {
		switch e.Role {
		case "user":
			for _, line := range strings.Split(e.Content, "\n") {
				sb.WriteString("> " + line + "\n")
			}
			sb.WriteString("\n")
		default:
			sb.WriteString(e.Content + "\n\n")
		}
	}

	_, err := io.WriteString(w, sb.String())
	return err
}

// ExportHTML renders the markdown export to a standalone HTML document.
func ExportHTML(w io.Writer, sess Session, entries []Entry) error {
	var md bytes.Buffer
	if err := ExportMarkdown(&md, sess, entries); err != nil {
		return err
	}

	var body bytes.Buffer
	if err := goldmark.Convert(md.Bytes(), &body); err != nil {
		return fmt.Errorf("render transcript: %w", err)
	}

	_, err := fmt.Fprintf(w, `<!DOCTYPE html>
<html><head><meta charset="utf-8"><title>%s</title></head>
<body style="font-family: serif; max-width: 42em; margin: 2em auto; line-height: 1.6;">
%s
</body></html>
`, sess.Title, body.String())
	return err
}

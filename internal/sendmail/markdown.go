package sendmail

import (
	"bytes"
	"fmt"

	"github.com/yuin/goldmark"
)

// markdownToHTML renders markdown to a minimal HTML document suitable
// for a draft's optional body_html, used only when a caller supplies
// a markdown body_text and wants an HTML alternative generated rather
// than composing one by hand.
func markdownToHTML(md string) (string, error) {
	var buf bytes.Buffer
	if err := goldmark.Convert([]byte(md), &buf); err != nil {
		return "", err
	}
	return fmt.Sprintf(`<!DOCTYPE html>
<html><head><meta charset="utf-8"></head>
<body style="font-family: sans-serif; font-size: 14px; line-height: 1.5;">
%s
</body></html>`, buf.String()), nil
}

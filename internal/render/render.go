// Package render turns statement files into page attachments for the
// extraction providers.
package render

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/ledongthuc/pdf"

	"github.com/ledgerline/statements/internal/domain"
	"github.com/ledgerline/statements/internal/provider"
)

// MaxPages caps how many statement pages are sent to a provider.
const MaxPages = 10

// PDFPages renders a PDF statement into provider attachments, at most
// maxPages of them. Pages with a text layer become one text attachment each;
// when no page yields text (scanned statements), the whole document is
// attached once as an application/pdf blob for vision-capable providers.
// A document from which nothing can be rendered is a ParseError.
func PDFPages(data []byte, maxPages int) ([]provider.Page, error) {
	if maxPages <= 0 {
		maxPages = MaxPages
	}

	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, domain.NewParseError("unreadable PDF", err.Error())
	}

	total := reader.NumPage()
	if total == 0 {
		return nil, domain.NewParseError("PDF has no pages", "")
	}
	if total > maxPages {
		total = maxPages
	}

	var pages []provider.Page
	for i := 1; i <= total; i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil || strings.TrimSpace(text) == "" {
			continue
		}
		pages = append(pages, provider.Page{
			MIMEType: "text/plain",
			Data:     []byte(fmt.Sprintf("--- page %d ---\n%s", i, text)),
		})
	}

	if len(pages) == 0 {
		// No text layer; hand the document itself to the provider.
		return []provider.Page{{MIMEType: "application/pdf", Data: data}}, nil
	}
	return pages, nil
}

// ImagePage wraps an image statement (photo or scan upload) as a single
// page attachment.
func ImagePage(data []byte, mimeType string) []provider.Page {
	return []provider.Page{{MIMEType: mimeType, Data: data}}
}

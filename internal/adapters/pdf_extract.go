package adapters

import (
	"bytes"
	"fmt"
	"strings"

	rpdf "rsc.io/pdf"
)

// ExtractPDFText walks every page of a PDF document and concatenates its
// text-show operator fragments, mirroring the sibling ingestion package's
// extractPDFText helper. ManualOnly sources whose captured raw artifact is
// a PDF (an eligibility sheet or terms page, rather than HTML or JSON) use
// this to recover override text the same way the HTML/JSON passes do.
//
// rsc.io/pdf panics on a handful of malformed-document shapes instead of
// returning an error; the recover here converts that into a normal error
// so one bad capture can't take down a run.
func ExtractPDFText(content []byte) (text string, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("adapters: pdf parser panic: %v", r)
			text = ""
		}
	}()

	reader, err := rpdf.NewReader(bytes.NewReader(content), int64(len(content)))
	if err != nil {
		return "", fmt.Errorf("adapters: opening pdf: %w", err)
	}

	var b strings.Builder
	for i := 1; i <= reader.NumPage(); i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}
		for _, fragment := range page.Content().Text {
			b.WriteString(fragment.S)
		}
		b.WriteString("\n")
	}
	return b.String(), nil
}

// pdfEligibilityOverride turns extracted PDF text into a single
// verification_requirements override, evidenced against the pdf page rather than a CSS
// selector or JSON pointer.
func pdfEligibilityOverride(text string) jsonOverrides {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return jsonOverrides{}
	}
	snippet := sanitizeSnippet(trimmed)
	return jsonOverrides{
		verificationRequirements: &overrideField[string]{
			value:             trimmed,
			selectorOrPointer: "pdf:page1",
			snippet:           snippet,
		},
	}
}

package pdf

import (
	"bytes"
	"errors"
	"fmt"

	lpdf "github.com/ledongthuc/pdf"
)

var errNotPDF = errors.New("missing %PDF header")

// ValidateOutput checks that data is a structurally sound PDF: header,
// trailer, cross-reference table and at least one page. The parser panics on
// some malformed inputs, which is reported as an error.
func ValidateOutput(data []byte) (err error) {
	if !bytes.HasPrefix(data, []byte("%PDF-")) {
		return errNotPDF
	}

	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("malformed PDF: %v", rec)
		}
	}()

	reader, err := lpdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return fmt.Errorf("failed to parse PDF: %w", err)
	}

	if pages := reader.NumPage(); pages < 1 {
		return fmt.Errorf("PDF has no pages")
	}

	return nil
}

package efactura

import (
	"archive/zip"
	"bytes"
	"encoding/xml"
	"fmt"
	"io"
	"strings"

	"github.com/tradeco/backoffice/internal/domain/shared"
)

// signaturePrefix marks the authority's detached signature entry inside a
// result archive.
const signaturePrefix = "semnatura"

// ExtractFromArchive unpacks a result archive and returns its single
// document entry. The archive carries exactly one document plus the
// authority's signature; anything else is treated as a malformed response.
func ExtractFromArchive(data []byte) ([]byte, error) {
	reader, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, shared.NewExternalServiceError(fmt.Sprintf("Result archive is not a valid zip: %v", err))
	}

	var document *zip.File
	for _, f := range reader.File {
		if f.FileInfo().IsDir() {
			continue
		}
		if strings.HasPrefix(strings.ToLower(f.Name), signaturePrefix) {
			continue
		}
		if document != nil {
			return nil, shared.NewExternalServiceError("Result archive contains more than one document entry")
		}
		document = f
	}
	if document == nil {
		return nil, shared.NewExternalServiceError("Result archive contains no document entry")
	}

	rc, err := document.Open()
	if err != nil {
		return nil, shared.NewExternalServiceError(fmt.Sprintf("Failed to open archive document entry: %v", err))
	}
	defer rc.Close()

	content, err := io.ReadAll(rc)
	if err != nil {
		return nil, shared.NewExternalServiceError(fmt.Sprintf("Failed to read archive document entry: %v", err))
	}
	return content, nil
}

// errorEnvelope matches the authority's rejection document shape: a list of
// Error elements carrying errorMessage attributes.
type errorEnvelope struct {
	Errors []struct {
		Message string `xml:"errorMessage,attr"`
	} `xml:"Error"`
}

// ParseErrorMessages extracts structured error text from a rejection
// document. It returns an empty string when no messages can be parsed so
// callers can fall back to the raw response.
func ParseErrorMessages(data []byte) string {
	var envelope errorEnvelope
	if err := xml.Unmarshal(data, &envelope); err != nil {
		return ""
	}
	var messages []string
	for _, e := range envelope.Errors {
		if e.Message != "" {
			messages = append(messages, e.Message)
		}
	}
	return strings.Join(messages, "; ")
}

package efactura

import (
	"context"
)

// Verdict is the authority's answer to a status query
type Verdict string

const (
	VerdictInProgress Verdict = "in progress"
	VerdictOK         Verdict = "ok"
	VerdictNok        Verdict = "nok"
)

// UploadResult is the outcome of a successful upload call
type UploadResult struct {
	UploadID string
}

// StatusResult is the outcome of a status call. Raw keeps the unparsed
// response body for error capture when no result archive is available.
type StatusResult struct {
	Verdict    Verdict
	DownloadID string
	Raw        string
}

// Client abstracts the external tax-authority API so the submission state
// machine can be driven against a deterministic fake. Implementations must
// bound every call with a request timeout and return ExternalServiceError
// for transport, HTTP and parse failures.
type Client interface {
	// Upload submits a wire document and returns the upload identifier
	Upload(ctx context.Context, document []byte) (*UploadResult, error)
	// Status queries the processing verdict for an upload
	Status(ctx context.Context, uploadID string) (*StatusResult, error)
	// Download fetches the result archive (a zip with exactly one document
	// entry plus the authority's signature)
	Download(ctx context.Context, downloadID string) ([]byte, error)
}

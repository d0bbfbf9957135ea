package anaf

import (
	"bytes"
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"go.uber.org/zap"

	"github.com/tradeco/backoffice/internal/domain/efactura"
	"github.com/tradeco/backoffice/internal/domain/shared"
)

// maxResponseSize caps responses read from the authority (10MB, result
// archives included)
const maxResponseSize = 10 * 1024 * 1024

// zipMagic is the local-file-header signature every result archive starts with
var zipMagic = []byte{'P', 'K'}

// Client implements the e-Factura REST API: upload, verdict polling and
// result-archive download. All failures surface as external-service errors so
// callers can treat them uniformly as retryable.
type Client struct {
	config     *Config
	httpClient *http.Client
	tokens     *tokenSource
	logger     *zap.Logger
}

// NewClient creates a new e-Factura API client
func NewClient(config *Config, logger *zap.Logger) (*Client, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	httpClient := &http.Client{Timeout: config.Timeout}
	return &Client{
		config:     config,
		httpClient: httpClient,
		tokens:     newTokenSource(config, httpClient),
		logger:     logger,
	}, nil
}

// uploadResponse is the authority's answer to an upload call
type uploadResponse struct {
	XMLName         xml.Name       `xml:"header"`
	ExecutionStatus int            `xml:"ExecutionStatus,attr"`
	UploadIndex     string         `xml:"index_incarcare,attr"`
	Errors          []wireAPIError `xml:"Errors"`
}

// statusResponse is the authority's answer to a verdict query
type statusResponse struct {
	XMLName    xml.Name       `xml:"header"`
	State      string         `xml:"stare,attr"`
	DownloadID string         `xml:"id_descarcare,attr"`
	Errors     []wireAPIError `xml:"Errors"`
}

type wireAPIError struct {
	ErrorMessage string `xml:"errorMessage,attr"`
}

func joinWireErrors(errs []wireAPIError) string {
	messages := make([]string, 0, len(errs))
	for _, e := range errs {
		if e.ErrorMessage != "" {
			messages = append(messages, e.ErrorMessage)
		}
	}
	if len(messages) == 0 {
		return "Authority returned an unspecified error"
	}
	return strings.Join(messages, "; ")
}

// Upload submits a wire document and returns the upload identifier
func (c *Client) Upload(ctx context.Context, document []byte) (*efactura.UploadResult, error) {
	query := url.Values{}
	query.Set("standard", "UBL")
	query.Set("cif", c.config.CIF)

	body, err := c.doRequest(ctx, http.MethodPost, "/upload", query, document)
	if err != nil {
		return nil, err
	}

	var resp uploadResponse
	if err := xml.Unmarshal(body, &resp); err != nil {
		return nil, shared.NewExternalServiceError(fmt.Sprintf("Upload response parse failed: %v", err))
	}
	if resp.ExecutionStatus != 0 {
		return nil, shared.NewExternalServiceError(joinWireErrors(resp.Errors))
	}
	if resp.UploadIndex == "" {
		return nil, shared.NewExternalServiceError("Upload response carried no upload index")
	}

	c.logger.Debug("e-factura upload accepted", zap.String("upload_id", resp.UploadIndex))
	return &efactura.UploadResult{UploadID: resp.UploadIndex}, nil
}

// Status queries the processing verdict for an upload
func (c *Client) Status(ctx context.Context, uploadID string) (*efactura.StatusResult, error) {
	if uploadID == "" {
		return nil, shared.NewValidationError("Upload ID is required")
	}

	query := url.Values{}
	query.Set("id_incarcare", uploadID)

	body, err := c.doRequest(ctx, http.MethodGet, "/stareMesaj", query, nil)
	if err != nil {
		return nil, err
	}

	var resp statusResponse
	if err := xml.Unmarshal(body, &resp); err != nil {
		return nil, shared.NewExternalServiceError(fmt.Sprintf("Status response parse failed: %v", err))
	}
	if len(resp.Errors) > 0 {
		return nil, shared.NewExternalServiceError(joinWireErrors(resp.Errors))
	}

	verdict, err := mapState(resp.State)
	if err != nil {
		return nil, err
	}
	return &efactura.StatusResult{
		Verdict:    verdict,
		DownloadID: resp.DownloadID,
		Raw:        string(body),
	}, nil
}

// Download fetches the result archive for a finished upload
func (c *Client) Download(ctx context.Context, downloadID string) ([]byte, error) {
	if downloadID == "" {
		return nil, shared.NewValidationError("Download ID is required")
	}

	query := url.Values{}
	query.Set("id", downloadID)

	body, err := c.doRequest(ctx, http.MethodGet, "/descarcare", query, nil)
	if err != nil {
		return nil, err
	}

	// error payloads come back as JSON or XML instead of a zip
	if !bytes.HasPrefix(body, zipMagic) {
		return nil, shared.NewExternalServiceError(fmt.Sprintf(
			"Download did not return an archive: %s", truncateBody(body)))
	}
	return body, nil
}

// mapState maps the authority's processing state onto a verdict
func mapState(state string) (efactura.Verdict, error) {
	switch state {
	case "in prelucrare":
		return efactura.VerdictInProgress, nil
	case "ok":
		return efactura.VerdictOK, nil
	case "nok":
		return efactura.VerdictNok, nil
	default:
		return "", shared.NewExternalServiceError(fmt.Sprintf("Unknown processing state %q", state))
	}
}

// doRequest performs one authenticated call against the API
func (c *Client) doRequest(ctx context.Context, method, path string, query url.Values, payload []byte) ([]byte, error) {
	token, err := c.tokens.Token(ctx)
	if err != nil {
		return nil, err
	}

	endpoint := strings.TrimSuffix(c.config.BaseURL, "/") + path + "?" + query.Encode()

	var reader io.Reader
	if payload != nil {
		reader = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return nil, fmt.Errorf("anaf: failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	if payload != nil {
		req.Header.Set("Content-Type", "application/xml")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, shared.NewExternalServiceError(fmt.Sprintf("Request to authority failed: %v", err))
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return nil, shared.NewExternalServiceError(fmt.Sprintf("Response read failed: %v", err))
	}
	if resp.StatusCode >= 400 {
		c.logger.Warn("e-factura API error",
			zap.String("path", path),
			zap.Int("status", resp.StatusCode))
		return nil, shared.NewExternalServiceError(fmt.Sprintf(
			"Authority returned HTTP %d: %s", resp.StatusCode, truncateBody(body)))
	}
	return body, nil
}

// truncateBody keeps error payloads loggable
func truncateBody(body []byte) string {
	const limit = 500
	text := string(body)
	if len(text) > limit {
		return text[:limit] + "..."
	}
	return text
}

// Ensure Client implements the domain client interface
var _ efactura.Client = (*Client)(nil)

package http

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"runtime"

	"github.com/spoolworks/crashship/internal/domain"
	"github.com/spoolworks/crashship/internal/ports"
)

// CrashReportsEndpoint is the ingest path appended to the service URL.
const CrashReportsEndpoint = "/v1/ingest/crash-reports"

// ReportSender implements ports.ReportSender using HTTP.
type ReportSender struct {
	client ports.HTTPClient
	logger ports.Logger
}

// NewReportSender creates a new HTTP report sender.
func NewReportSender(client ports.HTTPClient, logger ports.Logger) *ReportSender {
	return &ReportSender{
		client: client,
		logger: logger,
	}
}

// Send uploads one report set: a multipart POST with the meta record and the
// payload as file parts. A 2xx response means the service accepted the
// report; anything else is an error and the caller keeps the report.
func (s *ReportSender) Send(ctx context.Context, report domain.Report, metadata ports.SendMetadata) error {
	metaData, err := os.ReadFile(report.MetaPath)
	if err != nil {
		return fmt.Errorf("read meta: %w", err)
	}
	payloadData, err := os.ReadFile(report.PayloadPath)
	if err != nil {
		return fmt.Errorf("read payload: %w", err)
	}

	var body bytes.Buffer
	writer := multipart.NewWriter(&body)

	metaPart, err := writer.CreateFormFile("meta", report.Basename+".meta")
	if err != nil {
		return fmt.Errorf("create meta field: %w", err)
	}
	if _, err := metaPart.Write(metaData); err != nil {
		return fmt.Errorf("write meta: %w", err)
	}

	payloadPart, err := writer.CreateFormFile("payload", report.Meta.Payload)
	if err != nil {
		return fmt.Errorf("create payload field: %w", err)
	}
	if _, err := payloadPart.Write(payloadData); err != nil {
		return fmt.Errorf("write payload: %w", err)
	}

	if err := writer.Close(); err != nil {
		return fmt.Errorf("finalize multipart: %w", err)
	}

	url := metadata.ServiceURL + CrashReportsEndpoint
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, &body)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}

	osArch := metadata.OSArch
	if osArch == "" {
		osArch = runtime.GOOS + "/" + runtime.GOARCH
	}

	req.Header.Set("Authorization", "Bearer "+metadata.AuthKey)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	req.Header.Set("X-Agent-Hostname", metadata.Hostname)
	req.Header.Set("X-Agent-OSArch", osArch)
	req.Header.Set("X-Crashship-Client-Id", metadata.ClientID)

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode/100 != 2 {
		respBody, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("server returned %d: %s", resp.StatusCode, string(respBody))
	}

	return nil
}

package ingest

import (
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/spoolworks/crashship/internal/domain"
)

// maxUploadBytes bounds one multipart upload. The agent drops reports over
// 1 MiB before sending, so anything near this is broken or hostile.
const maxUploadBytes = 8 << 20

func accessLog(logger zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		logger.Info().
			Str("method", c.Request.Method).
			Str("path", c.Request.URL.Path).
			Int("status", c.Writer.Status()).
			Dur("duration", time.Since(start)).
			Str("client", c.ClientIP()).
			Msg("request")
	}
}

func requireBearer(token string) gin.HandlerFunc {
	const prefix = "Bearer "
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if !strings.HasPrefix(header, prefix) || strings.TrimPrefix(header, prefix) != token {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}
		c.Next()
	}
}

func (s *Server) handleHealthz(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (s *Server) handleIngestReport(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxUploadBytes)

	rawMeta, metaName, err := formFileBytes(c, "meta")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "meta part: " + err.Error()})
		return
	}
	payload, _, err := formFileBytes(c, "payload")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "payload part: " + err.Error()})
		return
	}

	meta, err := domain.ParseMeta(rawMeta)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "malformed meta"})
		return
	}
	if !meta.Done {
		c.JSON(http.StatusBadRequest, gin.H{"error": "incomplete meta"})
		return
	}

	basename := strings.TrimSuffix(filepath.Base(metaName), ".meta")
	if basename == "" || basename == "." {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing report basename"})
		return
	}

	rec, err := s.store.SaveReport(c.Request.Context(), basename, meta, rawMeta, payload)
	if err != nil {
		s.logger.Error().Err(err).Str("basename", basename).Msg("store report")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "store failed"})
		return
	}
	s.logger.Info().
		Str("basename", rec.Basename).
		Str("exec", rec.ExecName).
		Str("sig", rec.Sig).
		Str("client_id", c.GetHeader("X-Crashship-Client-Id")).
		Msg("crash report received")
	c.JSON(http.StatusOK, gin.H{"id": rec.ID, "basename": rec.Basename})
}

func (s *Server) handleListReports(c *gin.Context) {
	limit, err := parseLimit(c.Query("limit"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	recs, err := s.store.List(c.Request.Context(), limit)
	if err != nil {
		s.logger.Error().Err(err).Msg("list reports")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "list failed"})
		return
	}
	if recs == nil {
		recs = []ReceivedReport{}
	}
	c.JSON(http.StatusOK, gin.H{"reports": recs})
}

func (s *Server) handleIngestConsent(c *gin.Context) {
	granted, err := strconv.ParseBool(c.PostForm("granted"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "bad granted value"})
		return
	}
	// client_id is empty on revocation; captured_at falls back to arrival
	// time when the agent did not send one.
	capturedAt, err := time.Parse(time.RFC3339Nano, c.PostForm("captured_at"))
	if err != nil {
		capturedAt = time.Now().UTC()
	}

	event, err := s.store.SaveConsentEvent(c.Request.Context(), ConsentEvent{
		ClientID:   c.PostForm("client_id"),
		Granted:    granted,
		CapturedAt: capturedAt,
	})
	if err != nil {
		s.logger.Error().Err(err).Msg("store consent event")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "store failed"})
		return
	}
	s.logger.Info().
		Str("client_id", event.ClientID).
		Bool("granted", event.Granted).
		Msg("consent event received")
	c.JSON(http.StatusOK, gin.H{"id": event.ID})
}

func formFileBytes(c *gin.Context, field string) ([]byte, string, error) {
	fh, err := c.FormFile(field)
	if err != nil {
		return nil, "", err
	}
	f, err := fh.Open()
	if err != nil {
		return nil, "", err
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		return nil, "", err
	}
	return data, fh.Filename, nil
}

// parseLimit interprets the ?limit= parameter: default when absent, capped
// at MaxListLimit, rejected when not a positive integer.
func parseLimit(raw string) (int, error) {
	if raw == "" {
		return DefaultListLimit, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 1 {
		return 0, fmt.Errorf("bad limit %q", raw)
	}
	if n > MaxListLimit {
		return MaxListLimit, nil
	}
	return n, nil
}

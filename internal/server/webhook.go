package server

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"mime"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/raphaelgruber/contractflow/internal/service"
)

const (
	maxFieldBytes = 8 << 10
	// formOverhead is the body allowance on top of the attachment limit.
	formOverhead = 1 << 20
)

var pdfMagic = []byte("%PDF-")

// requestError carries an HTTP status for a rejected upload.
type requestError struct {
	status int
	detail string
}

func (e *requestError) Error() string { return e.detail }

func badRequest(format string, args ...any) error {
	return &requestError{status: http.StatusBadRequest, detail: fmt.Sprintf(format, args...)}
}

type webhookForm struct {
	sender   string
	subject  string
	filePath string
}

func (s *Server) handleEmailWebhook(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	r.Body = http.MaxBytesReader(w, r.Body, s.opts.MaxUploadBytes+formOverhead)

	form, err := s.readWebhookForm(r)
	if err != nil {
		s.writeUploadError(w, err)
		return
	}

	idempotencyKey := r.Header.Get(HeaderIdempotencyKey)
	s.logger.Info("email webhook accepted",
		"event", "email_webhook_received",
		"sender", sanitizeLogValue(form.sender),
		"subject", sanitizeLogValue(form.subject),
		"file_path", form.filePath,
		"idempotency_key_present", strings.TrimSpace(idempotencyKey) != "",
	)

	outcome, err := s.opts.Pipeline.SubmitAndWait(r.Context(), form.sender, form.subject, form.filePath, idempotencyKey)
	if outcome.Joined {
		// The in-flight run owns its own upload; this copy is unused.
		s.removeUpload(form.filePath)
	}
	if err != nil {
		if errors.Is(err, service.ErrExecutorClosed) {
			s.removeUpload(form.filePath)
			writeError(w, http.StatusServiceUnavailable, err.Error())
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	resp := service.BuildWebhookResponse(outcome, time.Since(start))
	s.logger.Info("email webhook processed",
		"event", "email_webhook_processed",
		"sender", sanitizeLogValue(form.sender),
		"subject", sanitizeLogValue(form.subject),
		"contract_id", resp.ContractID,
		"decision", resp.Decision,
		"risk_level", resp.RiskLevel,
		"processing_time_ms", resp.ProcessingTimeMS,
		"status", resp.Status,
	)
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) removeUpload(path string) {
	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		s.logger.Warn("failed to remove unused upload",
			"event", "upload_cleanup_failed",
			"file_path", path,
			"error", err,
		)
	}
}

func (s *Server) writeUploadError(w http.ResponseWriter, err error) {
	var reqErr *requestError
	var maxErr *http.MaxBytesError
	switch {
	case errors.As(err, &reqErr):
		writeError(w, reqErr.status, reqErr.detail)
	case errors.As(err, &maxErr):
		writeError(w, http.StatusRequestEntityTooLarge,
			fmt.Sprintf("Attachment exceeds max size of %d bytes", s.opts.MaxUploadBytes))
	default:
		s.logger.Error("failed to store webhook attachment", "error", err)
		writeError(w, http.StatusInternalServerError, "Failed to store attachment")
	}
}

// readWebhookForm streams the multipart body. The attachment is written to
// the upload dir as it is read; on any error it is removed again.
func (s *Server) readWebhookForm(r *http.Request) (form webhookForm, err error) {
	mr, err := r.MultipartReader()
	if err != nil {
		return form, badRequest("Expected a multipart form body")
	}
	defer func() {
		if err != nil && form.filePath != "" {
			_ = os.Remove(form.filePath)
			form.filePath = ""
		}
	}()

	for {
		part, perr := mr.NextPart()
		if errors.Is(perr, io.EOF) {
			break
		}
		if perr != nil {
			var maxErr *http.MaxBytesError
			if errors.As(perr, &maxErr) {
				return form, perr
			}
			return form, badRequest("Malformed multipart body")
		}

		switch part.FormName() {
		case "sender":
			form.sender, err = readField(part)
		case "subject":
			form.subject, err = readField(part)
		case "attachment":
			if form.filePath != "" {
				err = badRequest("Only one attachment is supported")
			} else {
				form.filePath, err = s.saveAttachment(part)
			}
		}
		_ = part.Close()
		if err != nil {
			return form, err
		}
	}

	switch {
	case form.filePath == "":
		return form, badRequest("Missing attachment")
	case strings.TrimSpace(form.sender) == "":
		return form, badRequest("Missing sender")
	case strings.TrimSpace(form.subject) == "":
		return form, badRequest("Missing subject")
	}
	return form, nil
}

func readField(part *multipart.Part) (string, error) {
	b, err := io.ReadAll(io.LimitReader(part, maxFieldBytes+1))
	if err != nil {
		return "", err
	}
	if len(b) > maxFieldBytes {
		return "", badRequest("Form field %q is too long", part.FormName())
	}
	return string(b), nil
}

// saveAttachment checks the part is a PDF and copies it to <uuid>.pdf in the
// upload dir, enforcing the size limit.
func (s *Server) saveAttachment(part *multipart.Part) (string, error) {
	filename := part.FileName()
	if filename == "" {
		return "", badRequest("Missing attachment filename")
	}
	if strings.ToLower(filepath.Ext(filename)) != ".pdf" {
		return "", badRequest("Only PDF attachments are supported")
	}
	mediaType, _, err := mime.ParseMediaType(part.Header.Get("Content-Type"))
	if err != nil || mediaType != "application/pdf" {
		return "", badRequest("Invalid attachment content type")
	}

	br := bufio.NewReader(part)
	head, err := br.Peek(len(pdfMagic))
	if err != nil || !bytes.Equal(head, pdfMagic) {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			return "", err
		}
		return "", badRequest("Attachment content is not a valid PDF")
	}

	if err := os.MkdirAll(s.opts.UploadDir, 0o750); err != nil {
		return "", fmt.Errorf("create upload dir: %w", err)
	}
	target := filepath.Join(s.opts.UploadDir, uuid.NewString()+".pdf")
	f, err := os.OpenFile(target, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o600)
	if err != nil {
		return "", fmt.Errorf("create upload file: %w", err)
	}

	n, copyErr := io.Copy(f, io.LimitReader(br, s.opts.MaxUploadBytes+1))
	closeErr := f.Close()
	switch {
	case copyErr != nil:
		_ = os.Remove(target)
		return "", copyErr
	case closeErr != nil:
		_ = os.Remove(target)
		return "", fmt.Errorf("write upload file: %w", closeErr)
	case n > s.opts.MaxUploadBytes:
		_ = os.Remove(target)
		return "", &requestError{
			status: http.StatusRequestEntityTooLarge,
			detail: fmt.Sprintf("Attachment exceeds max size of %d bytes", s.opts.MaxUploadBytes),
		}
	}
	return target, nil
}

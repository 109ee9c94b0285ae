// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package messenger

import (
	"context"
	"errors"
	"log/slog"
	"mime"
	"net/http"
	"path/filepath"
	"strings"
	"sync"

	"github.com/bureau-foundation/webmessenger/api"
	"github.com/bureau-foundation/webmessenger/wire"
)

// AttachmentHandler drives attachments through the three-step upload
// protocol: request a pre-signed URL over the socket, PUT the bytes
// over HTTP, then wait for the server's upload confirmation. Every
// state change is reported through notify, which feeds the message
// listener.
type AttachmentHandler struct {
	api    *api.Client
	logger *slog.Logger
	notify func(Attachment)

	mu      sync.Mutex
	records map[string]*attachmentRecord

	// uploads tracks in-flight HTTP uploads so tests can wait for
	// them deterministically.
	uploads sync.WaitGroup
}

type attachmentRecord struct {
	attachment Attachment
	data       []byte
	progress   func(float64)
}

// NewAttachmentHandler creates an attachment handler. notify receives
// every attachment state change.
func NewAttachmentHandler(apiClient *api.Client, logger *slog.Logger, notify func(Attachment)) *AttachmentHandler {
	return &AttachmentHandler{
		api:     apiClient,
		logger:  logger,
		notify:  notify,
		records: make(map[string]*attachmentRecord),
	}
}

// Prepare registers the attachment in Presigning state and returns the
// pre-signed-URL request to put on the socket. The file type is
// derived from the file name, falling back to content sniffing.
func (h *AttachmentHandler) Prepare(token, attachmentID, fileName string, data []byte, progress func(float64)) wire.OnAttachmentRequest {
	attachment := Attachment{
		ID:       attachmentID,
		FileName: fileName,
		FileType: detectFileType(fileName, data),
		FileSize: len(data),
		State:    AttachmentPresigning,
	}
	h.mu.Lock()
	h.records[attachmentID] = &attachmentRecord{
		attachment: attachment,
		data:       data,
		progress:   progress,
	}
	h.mu.Unlock()
	h.logger.Info("attachment prepared",
		"attachment_id", attachmentID, "file_name", fileName, "size", len(data))
	h.notify(attachment)
	return wire.NewOnAttachmentRequest(token, attachmentID, fileName, attachment.FileType, len(data))
}

func detectFileType(fileName string, data []byte) string {
	if fileType := mime.TypeByExtension(strings.ToLower(filepath.Ext(fileName))); fileType != "" {
		return fileType
	}
	return http.DetectContentType(data)
}

// Upload starts the HTTP upload to the pre-signed URL in a background
// goroutine. Success is confirmed by the server over the socket, not
// by the upload itself. A cancelled upload is logged and dropped.
func (h *AttachmentHandler) Upload(ctx context.Context, presigned wire.PresignedURLResponse) {
	h.mu.Lock()
	record, ok := h.records[presigned.AttachmentID]
	if !ok {
		h.mu.Unlock()
		h.logger.Warn("pre-signed url for unknown attachment",
			"attachment_id", presigned.AttachmentID)
		return
	}
	record.attachment.State = AttachmentUploading
	attachment := record.attachment
	data := record.data
	progress := record.progress
	h.mu.Unlock()
	h.notify(attachment)

	h.uploads.Add(1)
	go func() {
		defer h.uploads.Done()
		err := h.api.UploadFile(ctx, presigned, data, progress)
		if err == nil {
			return
		}
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			h.logger.Info("attachment upload cancelled",
				"attachment_id", presigned.AttachmentID,
				"code", int(CodeCancellation))
			return
		}
		code := CodeUnexpectedError
		var apiErr *api.Error
		if errors.As(err, &apiErr) {
			code = ErrorCodeFromHTTP(apiErr.StatusCode)
		}
		h.OnError(presigned.AttachmentID, code, err.Error())
	}()
}

// OnUploadSuccess records the server's upload confirmation: the
// attachment is Uploaded and will ride along with the next message.
func (h *AttachmentHandler) OnUploadSuccess(event wire.UploadSuccessEvent) {
	h.mu.Lock()
	record, ok := h.records[event.AttachmentID]
	if !ok {
		h.mu.Unlock()
		h.logger.Warn("upload success for unknown attachment",
			"attachment_id", event.AttachmentID)
		return
	}
	record.attachment.State = AttachmentUploaded
	record.attachment.DownloadURL = event.DownloadURL
	attachment := record.attachment
	h.mu.Unlock()
	h.notify(attachment)
}

// OnError marks one attachment Failed. Attachment failures surface
// through the message listener only; they never end the session.
func (h *AttachmentHandler) OnError(attachmentID string, code ErrorCode, message string) {
	h.mu.Lock()
	record, ok := h.records[attachmentID]
	if !ok {
		h.mu.Unlock()
		h.logger.Warn("error for unknown attachment",
			"attachment_id", attachmentID, "code", int(code))
		return
	}
	record.attachment.State = AttachmentFailed
	record.attachment.ErrorCode = code
	record.attachment.ErrorMessage = message
	attachment := record.attachment
	h.mu.Unlock()
	h.logger.Error("attachment failed",
		"attachment_id", attachmentID, "code", int(code), "message", message)
	h.notify(attachment)
}

// OnSending marks uploaded attachments as riding along with an
// in-flight message.
func (h *AttachmentHandler) OnSending() {
	var changed []Attachment
	h.mu.Lock()
	for _, record := range h.records {
		if record.attachment.State == AttachmentUploaded {
			record.attachment.State = AttachmentSending
			changed = append(changed, record.attachment)
		}
	}
	h.mu.Unlock()
	for _, attachment := range changed {
		h.notify(attachment)
	}
}

// OnSent confirms attachments that came back on the echo of a sent
// message. Confirmed attachments leave the handler.
func (h *AttachmentHandler) OnSent(attachments map[string]Attachment) {
	var confirmed []Attachment
	h.mu.Lock()
	for id, attachment := range attachments {
		if _, ok := h.records[id]; !ok {
			continue
		}
		delete(h.records, id)
		attachment.State = AttachmentSent
		confirmed = append(confirmed, attachment)
	}
	h.mu.Unlock()
	for _, attachment := range confirmed {
		h.notify(attachment)
	}
}

// OnMessageError fails attachments that were riding along with a
// message the server rejected.
func (h *AttachmentHandler) OnMessageError(code ErrorCode, message string) {
	var failed []Attachment
	h.mu.Lock()
	for _, record := range h.records {
		if record.attachment.State == AttachmentSending {
			record.attachment.State = AttachmentFailed
			record.attachment.ErrorCode = code
			record.attachment.ErrorMessage = message
			failed = append(failed, record.attachment)
		}
	}
	h.mu.Unlock()
	for _, attachment := range failed {
		h.notify(attachment)
	}
}

// Detach returns the delete request for an attachment that has not
// been sent yet, or nil when the attachment is unknown or already
// confirmed.
func (h *AttachmentHandler) Detach(token, attachmentID string) *wire.DeleteAttachmentRequest {
	h.mu.Lock()
	defer h.mu.Unlock()
	record, ok := h.records[attachmentID]
	if !ok || record.attachment.State == AttachmentSent {
		return nil
	}
	request := wire.NewDeleteAttachmentRequest(token, attachmentID)
	return &request
}

// OnDetached records the server's delete confirmation and drops the
// attachment.
func (h *AttachmentHandler) OnDetached(attachmentID string) {
	h.mu.Lock()
	record, ok := h.records[attachmentID]
	if !ok {
		h.mu.Unlock()
		return
	}
	delete(h.records, attachmentID)
	record.attachment.State = AttachmentDetached
	attachment := record.attachment
	h.mu.Unlock()
	h.notify(attachment)
}

// ClearAll drops every tracked attachment without notifications. Used
// on session teardown.
func (h *AttachmentHandler) ClearAll() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.records = make(map[string]*attachmentRecord)
}

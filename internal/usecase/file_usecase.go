package usecase

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log"

	"marketchat/internal/domain/entity"
	"marketchat/internal/domain/repository"
	"marketchat/internal/domain/service"
	"marketchat/pkg/errors"
)

type FileUseCase struct {
	uploader     service.FileUploadService
	metadataRepo repository.FileMetadataRepository
}

func NewFileUseCase(uploader service.FileUploadService, metadataRepo repository.FileMetadataRepository) *FileUseCase {
	return &FileUseCase{
		uploader:     uploader,
		metadataRepo: metadataRepo,
	}
}

// UploadChatAttachment scans and stores one attachment, returning the
// Attachment value the caller embeds in a send-message request.
func (uc *FileUseCase) UploadChatAttachment(ctx context.Context, userID, chatID, filename string, size int64, file io.Reader) (*entity.Attachment, error) {
	if filename == "" {
		return nil, errors.Validation("file name is required")
	}
	if size > service.MaxAttachmentSize {
		return nil, errors.BadRequest(fmt.Sprintf("File exceeds maximum size of %d bytes", service.MaxAttachmentSize), nil)
	}

	data, err := io.ReadAll(io.LimitReader(file, service.MaxAttachmentSize+1))
	if err != nil {
		return nil, errors.Internal("Failed to read upload", err)
	}
	if int64(len(data)) > service.MaxAttachmentSize {
		return nil, errors.BadRequest(fmt.Sprintf("File exceeds maximum size of %d bytes", service.MaxAttachmentSize), nil)
	}

	mimeType, scanStatus := service.ScanAttachment(data)
	if scanStatus != service.ScanStatusClean {
		log.Printf("UploadChatAttachment: Rejected %s from user %s (detected %s)", filename, userID, mimeType)
		return nil, errors.BadRequest("File type is not allowed", nil)
	}

	url, objectName, err := uc.uploader.UploadFile(ctx, bytes.NewReader(data), mimeType, "chat-attachments")
	if err != nil {
		log.Printf("UploadChatAttachment Error: upload failed for user %s: %v", userID, err)
		return nil, errors.Internal("Failed to store attachment", err)
	}

	metadata := &entity.FileMetadata{
		URL:        url,
		ObjectName: objectName,
		EntityType: "chat",
		EntityID:   chatID,
		UploadedBy: userID,
		Filename:   filename,
		FileType:   mimeType,
		FileSize:   int64(len(data)),
		ScanStatus: scanStatus,
	}
	if err := uc.metadataRepo.Create(ctx, metadata); err != nil {
		log.Printf("UploadChatAttachment Warning: failed to persist metadata for %s: %v", url, err)
	}

	return &entity.Attachment{
		FileName:   filename,
		URL:        url,
		Type:       entity.MessageTypeFile,
		Size:       int64(len(data)),
		MimeType:   mimeType,
		ScanStatus: scanStatus,
	}, nil
}

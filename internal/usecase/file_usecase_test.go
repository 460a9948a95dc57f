package usecase

import (
	"bytes"
	"context"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"marketchat/internal/domain/entity"
	"marketchat/internal/domain/service"
	"marketchat/pkg/errors"
)

type fakeUploader struct {
	uploads int
}

func (u *fakeUploader) UploadFile(ctx context.Context, file io.Reader, contentType, folder string) (string, string, error) {
	u.uploads++
	return "https://storage.example.com/" + folder + "/object", folder + "/object", nil
}

func (u *fakeUploader) DeleteFile(ctx context.Context, fileURL string) error { return nil }
func (u *fakeUploader) Close() error                                         { return nil }

type fakeFileMetadataRepo struct {
	created []*entity.FileMetadata
}

func (r *fakeFileMetadataRepo) Create(ctx context.Context, metadata *entity.FileMetadata) error {
	r.created = append(r.created, metadata)
	return nil
}

func (r *fakeFileMetadataRepo) GetByID(ctx context.Context, id string) (*entity.FileMetadata, error) {
	return nil, errors.NotFound("File", nil)
}

func (r *fakeFileMetadataRepo) GetByEntityID(ctx context.Context, entityType, entityID string) ([]*entity.FileMetadata, error) {
	return nil, nil
}

func (r *fakeFileMetadataRepo) Delete(ctx context.Context, id string) error { return nil }

var pngBytes = []byte{0x89, 'P', 'N', 'G', 0x0D, 0x0A, 0x1A, 0x0A, 0, 0, 0, 0}

func TestUploadChatAttachment(t *testing.T) {
	uploader := &fakeUploader{}
	metadataRepo := &fakeFileMetadataRepo{}
	uc := NewFileUseCase(uploader, metadataRepo)

	attachment, err := uc.UploadChatAttachment(context.Background(), "buyer-1", "chat-1", "photo.png", int64(len(pngBytes)), bytes.NewReader(pngBytes))
	require.NoError(t, err)

	assert.Equal(t, "photo.png", attachment.FileName)
	assert.Equal(t, "image/png", attachment.MimeType)
	assert.Equal(t, service.ScanStatusClean, attachment.ScanStatus)
	assert.Equal(t, entity.MessageTypeFile, attachment.Type)
	assert.Equal(t, 1, uploader.uploads)

	require.Len(t, metadataRepo.created, 1)
	assert.Equal(t, "chat", metadataRepo.created[0].EntityType)
	assert.Equal(t, "chat-1", metadataRepo.created[0].EntityID)
	assert.Equal(t, "buyer-1", metadataRepo.created[0].UploadedBy)
}

func TestUploadChatAttachmentRejectsDisallowedType(t *testing.T) {
	uploader := &fakeUploader{}
	uc := NewFileUseCase(uploader, &fakeFileMetadataRepo{})

	elf := []byte{0x7F, 'E', 'L', 'F', 2, 1, 1, 0, 0, 0, 0, 0}
	_, err := uc.UploadChatAttachment(context.Background(), "buyer-1", "chat-1", "tool.bin", int64(len(elf)), bytes.NewReader(elf))

	require.Error(t, err)
	assert.True(t, errors.Is(err, "BAD_REQUEST"))
	assert.Equal(t, 0, uploader.uploads)
}

func TestUploadChatAttachmentEnforcesSizeLimit(t *testing.T) {
	uc := NewFileUseCase(&fakeUploader{}, &fakeFileMetadataRepo{})

	_, err := uc.UploadChatAttachment(context.Background(), "buyer-1", "chat-1", "huge.png", service.MaxAttachmentSize+1, bytes.NewReader(pngBytes))

	require.Error(t, err)
	assert.True(t, errors.Is(err, "BAD_REQUEST"))
}

func TestUploadChatAttachmentRequiresFilename(t *testing.T) {
	uc := NewFileUseCase(&fakeUploader{}, &fakeFileMetadataRepo{})

	_, err := uc.UploadChatAttachment(context.Background(), "buyer-1", "chat-1", "", 4, bytes.NewReader(pngBytes))

	require.Error(t, err)
	assert.True(t, errors.Is(err, "VALIDATION_ERROR"))
}

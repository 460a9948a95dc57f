package repository

import (
	"context"
	"time"

	"cloud.google.com/go/firestore"
	"github.com/google/uuid"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"marketchat/internal/domain/entity"
	"marketchat/internal/domain/repository"
	"marketchat/pkg/errors"
)

type firestoreFileMetadataRepository struct {
	client *firestore.Client
}

func NewFirestoreFileMetadataRepository(client *firestore.Client) repository.FileMetadataRepository {
	return &firestoreFileMetadataRepository{
		client: client,
	}
}

func (r *firestoreFileMetadataRepository) Create(ctx context.Context, metadata *entity.FileMetadata) error {
	if metadata.ID == "" {
		metadata.ID = uuid.New().String()
	}

	now := time.Now()
	metadata.CreatedAt = now
	metadata.UpdatedAt = now

	_, err := r.client.Collection("fileMetadata").Doc(metadata.ID).Set(ctx, metadata)
	if err != nil {
		return errors.Internal("Failed to create file metadata", err)
	}
	return nil
}

func (r *firestoreFileMetadataRepository) GetByID(ctx context.Context, id string) (*entity.FileMetadata, error) {
	doc, err := r.client.Collection("fileMetadata").Doc(id).Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return nil, errors.NotFound("File metadata", nil)
		}
		return nil, errors.Internal("Failed to get file metadata", err)
	}

	var metadata entity.FileMetadata
	if err := doc.DataTo(&metadata); err != nil {
		return nil, errors.Internal("Failed to parse file metadata", err)
	}

	return &metadata, nil
}

func (r *firestoreFileMetadataRepository) GetByEntityID(ctx context.Context, entityType, entityID string) ([]*entity.FileMetadata, error) {
	query := r.client.Collection("fileMetadata").
		Where("entityType", "==", entityType).
		Where("entityId", "==", entityID)

	docs, err := query.Documents(ctx).GetAll()
	if err != nil {
		return nil, errors.Internal("Failed to query file metadata", err)
	}

	var results []*entity.FileMetadata
	for _, doc := range docs {
		var metadata entity.FileMetadata
		if err := doc.DataTo(&metadata); err != nil {
			continue
		}
		results = append(results, &metadata)
	}

	return results, nil
}

func (r *firestoreFileMetadataRepository) Delete(ctx context.Context, id string) error {
	_, err := r.client.Collection("fileMetadata").Doc(id).Delete(ctx)
	if err != nil {
		return errors.Internal("Failed to delete file metadata", err)
	}
	return nil
}

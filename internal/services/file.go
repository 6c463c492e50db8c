package services

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"path/filepath"

	"github.com/fileharbor/apiserver/types"
	"github.com/rs/zerolog"
)

const uploadEventChannel = "file.uploaded"

// FileRepository defines persistence operations for file records.
type FileRepository interface {
	Create(ctx context.Context, file types.File) (types.File, error)
	ListByUser(ctx context.Context, userID string) ([]types.File, error)
	ListAll(ctx context.Context) ([]types.File, error)
}

// ObjectStore abstracts blob persistence for uploaded content.
type ObjectStore interface {
	Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) error
}

// OwnerDirectory resolves the owner profile attached to upload
// responses.
type OwnerDirectory interface {
	GetByID(ctx context.Context, id string) (types.User, error)
}

// EventPublisher emits broker messages after state changes.
type EventPublisher interface {
	Publish(ctx context.Context, channel string, data []byte, attrs map[string]string) (string, error)
}

// FileService encapsulates upload bookkeeping use-cases.
type FileService struct {
	repo      FileRepository
	objects   ObjectStore
	owners    OwnerDirectory
	publisher EventPublisher
	logger    zerolog.Logger
}

// NewFileService constructs a FileService. The publisher may be nil
// when event publishing is disabled.
func NewFileService(repo FileRepository, objects ObjectStore, owners OwnerDirectory, publisher EventPublisher, logger zerolog.Logger) *FileService {
	return &FileService{
		repo:      repo,
		objects:   objects,
		owners:    owners,
		publisher: publisher,
		logger:    logger,
	}
}

// ObjectKey derives the storage key for a file record. The key embeds
// the record id, so the record must be created first.
func ObjectKey(file types.File) string {
	return "uploads/" + file.ID + filepath.Ext(file.OriginalName)
}

// Upload creates the file record, stores the content in the object
// store, and attaches the owner's profile to the returned record, then
// emits a best-effort upload event. A failed owner lookup leaves the
// record without a profile rather than failing an upload that already
// succeeded.
func (s *FileService) Upload(ctx context.Context, file types.File, content io.Reader) (types.File, error) {
	created, err := s.repo.Create(ctx, file)
	if err != nil {
		return types.File{}, err
	}

	key := ObjectKey(created)
	if err := s.objects.Put(ctx, key, content, created.Size, created.MimeType); err != nil {
		return types.File{}, fmt.Errorf("store object %s: %w", key, err)
	}

	if owner, err := s.owners.GetByID(ctx, created.UserID); err == nil {
		created.User = &owner
	} else {
		s.logger.Warn().Err(err).Str("user_id", created.UserID).Msg("failed to resolve upload owner")
	}

	s.publishUploaded(ctx, created)
	return created, nil
}

func (s *FileService) ListByUser(ctx context.Context, userID string) ([]types.File, error) {
	return s.repo.ListByUser(ctx, userID)
}

func (s *FileService) ListAll(ctx context.Context) ([]types.File, error) {
	return s.repo.ListAll(ctx)
}

// publishUploaded notifies subscribers about a finished upload. Broker
// failures are logged and never surfaced to the uploader.
func (s *FileService) publishUploaded(ctx context.Context, file types.File) {
	if s.publisher == nil {
		return
	}

	payload, err := json.Marshal(map[string]any{
		"fileId":       file.ID,
		"userId":       file.UserID,
		"originalName": file.OriginalName,
		"mimeType":     file.MimeType,
		"size":         file.Size,
	})
	if err != nil {
		s.logger.Warn().Err(err).Str("file_id", file.ID).Msg("failed to encode upload event")
		return
	}

	attrs := map[string]string{"userId": file.UserID}
	if _, err := s.publisher.Publish(ctx, uploadEventChannel, payload, attrs); err != nil {
		s.logger.Warn().Err(err).Str("file_id", file.ID).Msg("failed to publish upload event")
	}
}

package store

import (
	"context"
	"database/sql"
	"time"

	"github.com/fileharbor/apiserver/types"
	"github.com/google/uuid"
)

// FileRepository handles persistence for file records.
type FileRepository struct {
	db *sql.DB
}

func NewFileRepository(db *sql.DB) *FileRepository {
	return &FileRepository{db: db}
}

func (r *FileRepository) Create(ctx context.Context, file types.File) (types.File, error) {
	now := time.Now()
	file.ID = uuid.NewString()
	file.UploadTime = now
	file.CreatedAt = now
	file.UpdatedAt = now

	const query = `
		INSERT INTO files (id, user_id, original_name, mime_type, size, upload_time, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`
	if _, err := r.db.ExecContext(
		ctx,
		query,
		file.ID,
		file.UserID,
		file.OriginalName,
		file.MimeType,
		file.Size,
		file.UploadTime,
		file.CreatedAt,
		file.UpdatedAt,
	); err != nil {
		return types.File{}, err
	}
	return file, nil
}

func (r *FileRepository) ListByUser(ctx context.Context, userID string) ([]types.File, error) {
	const query = `
		SELECT id, user_id, original_name, mime_type, size, upload_time, created_at, updated_at
		FROM files
		WHERE user_id = $1
		ORDER BY upload_time DESC`
	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	files := make([]types.File, 0)
	for rows.Next() {
		var file types.File
		if err := rows.Scan(
			&file.ID,
			&file.UserID,
			&file.OriginalName,
			&file.MimeType,
			&file.Size,
			&file.UploadTime,
			&file.CreatedAt,
			&file.UpdatedAt,
		); err != nil {
			return nil, err
		}
		files = append(files, file)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}
	return files, nil
}

// ListAll returns every file, newest upload first, with the owner's
// profile attached to each row.
func (r *FileRepository) ListAll(ctx context.Context) ([]types.File, error) {
	const query = `
		SELECT f.id, f.user_id, f.original_name, f.mime_type, f.size, f.upload_time, f.created_at, f.updated_at,
			u.id, u.email, u.first_name, u.last_name, u.picture, u.role, u.provider, u.created_at, u.updated_at
		FROM files f
		JOIN users u ON u.id = f.user_id
		ORDER BY f.upload_time DESC`
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	files := make([]types.File, 0)
	for rows.Next() {
		var file types.File
		var owner types.User
		if err := rows.Scan(
			&file.ID,
			&file.UserID,
			&file.OriginalName,
			&file.MimeType,
			&file.Size,
			&file.UploadTime,
			&file.CreatedAt,
			&file.UpdatedAt,
			&owner.ID,
			&owner.Email,
			&owner.FirstName,
			&owner.LastName,
			&owner.Picture,
			&owner.Role,
			&owner.Provider,
			&owner.CreatedAt,
			&owner.UpdatedAt,
		); err != nil {
			return nil, err
		}
		file.User = &owner
		files = append(files, file)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}
	return files, nil
}

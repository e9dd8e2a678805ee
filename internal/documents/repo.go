package documents

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrDocumentNotFound indicates the document does not exist.
var ErrDocumentNotFound = errors.New("document not found")

// Repository persists document metadata.
type Repository interface {
	FindOwner(ctx context.Context, documentID int64) (ownerID int64, found bool, err error)
	Get(ctx context.Context, documentID int64) (*Document, error)
	Create(ctx context.Context, doc *Document) error
	Update(ctx context.Context, doc *Document) error
	Delete(ctx context.Context, documentID int64) error
}

type pgRepository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs the postgres-backed Repository.
func NewRepository(pool *pgxpool.Pool) Repository {
	return &pgRepository{pool: pool}
}

func (r *pgRepository) FindOwner(ctx context.Context, documentID int64) (int64, bool, error) {
	var ownerID int64
	err := r.pool.QueryRow(ctx, `SELECT owner_id FROM documents WHERE id = $1`, documentID).Scan(&ownerID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, false, nil
		}
		return 0, false, err
	}
	return ownerID, true, nil
}

func (r *pgRepository) Get(ctx context.Context, documentID int64) (*Document, error) {
	const query = `
		SELECT id, owner_id, student_id, title, notes, mime_type, created_at, updated_at
		FROM documents
		WHERE id = $1`
	var d Document
	err := r.pool.QueryRow(ctx, query, documentID).Scan(
		&d.ID, &d.OwnerID, &d.StudentID, &d.Title, &d.Notes, &d.MimeType, &d.CreatedAt, &d.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrDocumentNotFound
		}
		return nil, err
	}
	return &d, nil
}

func (r *pgRepository) Create(ctx context.Context, doc *Document) error {
	const query = `
		INSERT INTO documents (owner_id, student_id, title, notes, mime_type, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, NOW(), NOW())
		RETURNING id, created_at, updated_at`
	return r.pool.QueryRow(ctx, query,
		doc.OwnerID, doc.StudentID, doc.Title, doc.Notes, doc.MimeType).
		Scan(&doc.ID, &doc.CreatedAt, &doc.UpdatedAt)
}

func (r *pgRepository) Update(ctx context.Context, doc *Document) error {
	const query = `
		UPDATE documents SET title = $2, notes = $3, updated_at = NOW()
		WHERE id = $1
		RETURNING updated_at`
	err := r.pool.QueryRow(ctx, query, doc.ID, doc.Title, doc.Notes).Scan(&doc.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrDocumentNotFound
	}
	return err
}

func (r *pgRepository) Delete(ctx context.Context, documentID int64) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM documents WHERE id = $1`, documentID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrDocumentNotFound
	}
	return nil
}

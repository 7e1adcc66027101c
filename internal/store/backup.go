package store

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/dukerupert/supplylist/internal/model"
)

// BackupStore records uploaded backups so a restore can pick one by key.
type BackupStore struct {
	db  *sql.DB
	now func() time.Time
}

func NewBackupStore(db *sql.DB) *BackupStore {
	return &BackupStore{db: db, now: time.Now}
}

const backupColumns = `id, s3_key, size_bytes, status, error_message, created_at, completed_at`

func scanBackup(row interface{ Scan(...any) error }) (model.Backup, error) {
	var b model.Backup
	var errMsg sql.NullString
	var completedAt sql.NullTime
	if err := row.Scan(&b.ID, &b.S3Key, &b.SizeBytes, &b.Status, &errMsg, &b.CreatedAt, &completedAt); err != nil {
		return b, err
	}
	b.ErrorMessage = errMsg.String
	if completedAt.Valid {
		b.CompletedAt = &completedAt.Time
	}
	return b, nil
}

func (s *BackupStore) Create(s3Key string) (*model.Backup, error) {
	now := s.now().UTC()
	result, err := s.db.Exec(
		`INSERT INTO backups (s3_key, status, created_at) VALUES (?, ?, ?)`,
		s3Key, model.BackupStatusPending, now,
	)
	if err != nil {
		return nil, fmt.Errorf("create backup: %w", err)
	}
	id, _ := result.LastInsertId()
	return &model.Backup{
		ID:        id,
		S3Key:     s3Key,
		Status:    model.BackupStatusPending,
		CreatedAt: now,
	}, nil
}

func (s *BackupStore) MarkCompleted(id, sizeBytes int64) error {
	_, err := s.db.Exec(
		`UPDATE backups SET status = ?, size_bytes = ?, completed_at = ?, error_message = NULL WHERE id = ?`,
		model.BackupStatusCompleted, sizeBytes, s.now().UTC(), id,
	)
	if err != nil {
		return fmt.Errorf("mark backup %d completed: %w", id, err)
	}
	return nil
}

func (s *BackupStore) MarkFailed(id int64, errorMsg string) error {
	_, err := s.db.Exec(
		`UPDATE backups SET status = ?, error_message = ? WHERE id = ?`,
		model.BackupStatusFailed, errorMsg, id,
	)
	if err != nil {
		return fmt.Errorf("mark backup %d failed: %w", id, err)
	}
	return nil
}

// List returns the newest backups first.
func (s *BackupStore) List(limit int) ([]model.Backup, error) {
	rows, err := s.db.Query(
		`SELECT `+backupColumns+` FROM backups ORDER BY created_at DESC, id DESC LIMIT ?`, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("list backups: %w", err)
	}
	defer rows.Close()

	backups := []model.Backup{}
	for rows.Next() {
		b, err := scanBackup(rows)
		if err != nil {
			return nil, fmt.Errorf("scan backup: %w", err)
		}
		backups = append(backups, b)
	}
	return backups, rows.Err()
}

// LatestCompleted returns nil when no backup has completed yet.
func (s *BackupStore) LatestCompleted() (*model.Backup, error) {
	b, err := scanBackup(s.db.QueryRow(
		`SELECT `+backupColumns+` FROM backups WHERE status = ? ORDER BY completed_at DESC, id DESC LIMIT 1`,
		model.BackupStatusCompleted,
	))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("latest completed backup: %w", err)
	}
	return &b, nil
}

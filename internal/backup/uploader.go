package backup

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/dukerupert/supplylist/internal/model"
)

// keyPrefix namespaces backup objects inside the bucket.
const keyPrefix = "supply-list/"

// ErrInvalidKey is returned by Fetch for keys outside the backup prefix.
var ErrInvalidKey = errors.New("backup key outside " + keyPrefix)

// s3Client is an interface for testability.
type s3Client interface {
	PutObject(ctx context.Context, input *s3.PutObjectInput, opts ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	GetObject(ctx context.Context, input *s3.GetObjectInput, opts ...func(*s3.Options)) (*s3.GetObjectOutput, error)
}

// Ledger records each upload attempt. BackupStore implements it.
type Ledger interface {
	Create(s3Key string) (*model.Backup, error)
	MarkCompleted(id, sizeBytes int64) error
	MarkFailed(id int64, errorMsg string) error
	List(limit int) ([]model.Backup, error)
	LatestCompleted() (*model.Backup, error)
}

// S3Config holds S3-compatible storage configuration.
type S3Config struct {
	Endpoint  string
	Bucket    string
	Region    string
	AccessKey string
	SecretKey string
}

func (c S3Config) complete() bool {
	return c.Bucket != "" && c.AccessKey != "" && c.SecretKey != ""
}

// State represents the uploader state.
type State string

const (
	StateIdle     State = "idle"
	StateRunning  State = "running"
	StateDisabled State = "disabled"
	StateError    State = "error"
)

// Status holds the current uploader status.
type Status struct {
	State      State      `json:"state"`
	LastBackup *time.Time `json:"last_backup,omitempty"`
	LastKey    string     `json:"last_key,omitempty"`
	Error      string     `json:"error,omitempty"`
}

// StatusCallback is called whenever the uploader state changes.
type StatusCallback func(Status)

// Uploader copies encrypted exports to an S3-compatible bucket and fetches
// them back for import. Without complete S3 credentials it stays disabled.
type Uploader struct {
	mu       sync.RWMutex
	bucket   string
	client   s3Client
	ledger   Ledger
	status   Status
	callback StatusCallback
	logger   *slog.Logger
	now      func() time.Time
}

// NewUploader creates an uploader for cfg. ledger may be nil; when set, the
// last completed backup it recorded seeds the status.
func NewUploader(cfg S3Config, ledger Ledger, callback StatusCallback, logger *slog.Logger) *Uploader {
	u := &Uploader{
		bucket:   cfg.Bucket,
		ledger:   ledger,
		callback: callback,
		logger:   logger,
		status:   Status{State: StateDisabled},
		now:      time.Now,
	}
	if cfg.complete() {
		u.client = newS3Client(cfg)
		u.status.State = StateIdle
	}
	if ledger != nil {
		last, err := ledger.LatestCompleted()
		if err != nil {
			logger.Warn("load last backup", "error", err)
		} else if last != nil {
			at := last.CreatedAt
			if last.CompletedAt != nil {
				at = *last.CompletedAt
			}
			u.status.LastBackup = &at
			u.status.LastKey = last.S3Key
		}
	}
	return u
}

func newS3Client(cfg S3Config) *s3.Client {
	region := cfg.Region
	if region == "" {
		region = "us-east-1"
	}
	opts := s3.Options{
		Region:       region,
		Credentials:  credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, ""),
		UsePathStyle: true,
	}
	if cfg.Endpoint != "" {
		opts.BaseEndpoint = aws.String(cfg.Endpoint)
	}
	return s3.New(opts)
}

// Enabled reports whether S3 credentials are configured.
func (u *Uploader) Enabled() bool {
	u.mu.RLock()
	defer u.mu.RUnlock()
	return u.client != nil
}

// Status returns the current uploader status.
func (u *Uploader) Status() Status {
	u.mu.RLock()
	defer u.mu.RUnlock()
	return u.status
}

func (u *Uploader) setStatus(s Status) {
	u.mu.Lock()
	u.status = s
	u.mu.Unlock()
	if u.callback != nil {
		u.callback(s)
	}
}

// transition moves to state, keeping the last successful backup.
func (u *Uploader) transition(state State, errMsg string) {
	prev := u.Status()
	u.setStatus(Status{State: state, LastBackup: prev.LastBackup, LastKey: prev.LastKey, Error: errMsg})
}

func (u *Uploader) fail(err error) error {
	u.transition(StateError, err.Error())
	return err
}

// Upload exports s, encrypts it with passphrase and stores it in the bucket.
// It returns the object key.
func (u *Uploader) Upload(ctx context.Context, s *model.Store, passphrase string) (string, error) {
	u.mu.RLock()
	client := u.client
	bucket := u.bucket
	u.mu.RUnlock()

	if client == nil {
		return "", fmt.Errorf("backup not configured: S3 credentials missing")
	}

	u.transition(StateRunning, "")

	plain, err := Export(s)
	if err != nil {
		return "", u.fail(err)
	}
	sealed, err := Encrypt(plain, passphrase)
	if err != nil {
		return "", u.fail(fmt.Errorf("encrypt: %w", err))
	}

	now := u.now().UTC()
	key := fmt.Sprintf("%s%s-%s.enc", keyPrefix, strings.TrimSuffix(ExportFilename(now), ".json"), now.Format("150405"))

	var rec *model.Backup
	if u.ledger != nil {
		if rec, err = u.ledger.Create(key); err != nil {
			u.logger.Warn("record backup", "key", key, "error", err)
		}
	}

	_, err = client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(bucket),
		Key:           aws.String(key),
		Body:          bytes.NewReader(sealed),
		ContentLength: aws.Int64(int64(len(sealed))),
		ContentType:   aws.String("application/octet-stream"),
	})
	if err != nil {
		err = fmt.Errorf("upload to s3: %w", err)
		if rec != nil {
			if lerr := u.ledger.MarkFailed(rec.ID, err.Error()); lerr != nil {
				u.logger.Warn("record backup failure", "key", key, "error", lerr)
			}
		}
		return "", u.fail(err)
	}

	if rec != nil {
		if err := u.ledger.MarkCompleted(rec.ID, int64(len(sealed))); err != nil {
			u.logger.Warn("record backup completion", "key", key, "error", err)
		}
	}

	u.logger.Info("backup uploaded", "key", key, "bytes", len(sealed))
	u.setStatus(Status{State: StateIdle, LastBackup: &now, LastKey: key})
	return key, nil
}

// History lists recorded uploads, newest first.
func (u *Uploader) History(limit int) ([]model.Backup, error) {
	if u.ledger == nil {
		return []model.Backup{}, nil
	}
	return u.ledger.List(limit)
}

// Fetch downloads the backup stored under key and decrypts it, returning the
// export document ready for import.
func (u *Uploader) Fetch(ctx context.Context, key, passphrase string) ([]byte, error) {
	u.mu.RLock()
	client := u.client
	bucket := u.bucket
	u.mu.RUnlock()

	if client == nil {
		return nil, fmt.Errorf("backup not configured: S3 credentials missing")
	}
	if !strings.HasPrefix(key, keyPrefix) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidKey, key)
	}

	result, err := client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, fmt.Errorf("download from s3: %w", err)
	}
	defer result.Body.Close()

	sealed, err := io.ReadAll(result.Body)
	if err != nil {
		return nil, fmt.Errorf("read backup: %w", err)
	}
	return Decrypt(sealed, passphrase)
}

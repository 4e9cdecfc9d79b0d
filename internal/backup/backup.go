// Package backup snapshots the database and ships it, encrypted, to
// S3-compatible storage on a nightly schedule.
package backup

import (
	"bytes"
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/sethvargo/go-retry"
)

// s3Client is an interface for testability.
type s3Client interface {
	PutObject(ctx context.Context, input *s3.PutObjectInput, opts ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	ListObjectsV2(ctx context.Context, input *s3.ListObjectsV2Input, opts ...func(*s3.Options)) (*s3.ListObjectsV2Output, error)
	DeleteObject(ctx context.Context, input *s3.DeleteObjectInput, opts ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
}

// S3Config holds S3-compatible storage configuration.
type S3Config struct {
	Endpoint  string
	Bucket    string
	Region    string
	AccessKey string
	SecretKey string
}

// Config holds backup manager configuration. Backups are disabled unless the
// S3 block and the passphrase are both set.
type Config struct {
	S3            S3Config
	DBPath        string
	Passphrase    string
	Prefix        string // object key prefix, defaults to "backups"
	Hour          int    // UTC hour of the nightly run
	RetentionDays int
}

// Manager runs the nightly snapshot loop.
type Manager struct {
	mu     sync.RWMutex
	cfg    Config
	db     *sql.DB
	client s3Client
	logger *slog.Logger
	now    func() time.Time

	lastRun string // date of the last completed nightly run

	cancel context.CancelFunc
	done   chan struct{}
}

func NewManager(cfg Config, db *sql.DB, logger *slog.Logger) *Manager {
	if cfg.Prefix == "" {
		cfg.Prefix = "backups"
	}
	if cfg.RetentionDays <= 0 {
		cfg.RetentionDays = 30
	}

	m := &Manager{
		cfg:    cfg,
		db:     db,
		logger: logger,
		now:    time.Now,
	}
	if m.Enabled() {
		m.client = newS3Client(cfg.S3)
	}
	return m
}

func newS3Client(cfg S3Config) *s3.Client {
	opts := s3.Options{
		Region:       cfg.Region,
		Credentials:  credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, ""),
		UsePathStyle: true,
	}
	if cfg.Endpoint != "" {
		opts.BaseEndpoint = aws.String(cfg.Endpoint)
	}
	return s3.New(opts)
}

// Enabled reports whether the manager has everything it needs to run.
func (m *Manager) Enabled() bool {
	return m.cfg.S3.Bucket != "" && m.cfg.S3.AccessKey != "" &&
		m.cfg.S3.SecretKey != "" && m.cfg.Passphrase != ""
}

// Start begins the nightly snapshot loop. No-op when disabled.
func (m *Manager) Start(ctx context.Context) {
	if !m.Enabled() {
		m.logger.Info("backups disabled")
		return
	}

	m.mu.Lock()
	ctx, m.cancel = context.WithCancel(ctx)
	m.done = make(chan struct{})
	m.mu.Unlock()

	go func() {
		defer close(m.done)
		ticker := time.NewTicker(time.Minute)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				m.checkSchedule(ctx)
			}
		}
	}()
}

// Stop gracefully stops the backup manager.
func (m *Manager) Stop() {
	m.mu.RLock()
	cancel := m.cancel
	done := m.done
	m.mu.RUnlock()

	if cancel != nil {
		cancel()
	}
	if done != nil {
		<-done
	}
}

func (m *Manager) checkSchedule(ctx context.Context) {
	now := m.now().UTC()
	today := now.Format("2006-01-02")

	m.mu.RLock()
	ran := m.lastRun == today
	m.mu.RUnlock()

	if ran || now.Hour() != m.cfg.Hour {
		return
	}

	if err := m.RunNow(ctx); err != nil {
		m.logger.Error("nightly backup", "error", err)
		return
	}

	m.mu.Lock()
	m.lastRun = today
	m.mu.Unlock()

	if err := m.prune(ctx); err != nil {
		m.logger.Error("prune old backups", "error", err)
	}
}

// RunNow snapshots the database, encrypts it, and uploads it.
func (m *Manager) RunNow(ctx context.Context) error {
	if m.client == nil {
		return fmt.Errorf("backup not configured")
	}

	snapshot := filepath.Join(os.TempDir(), fmt.Sprintf("hanashi-snapshot-%d.db", m.now().UnixNano()))
	defer os.Remove(snapshot)

	// VACUUM INTO writes a consistent compacted copy without blocking
	// writers the way a WAL checkpoint plus file copy would.
	if _, err := m.db.ExecContext(ctx, `VACUUM INTO ?`, snapshot); err != nil {
		return fmt.Errorf("snapshot database: %w", err)
	}

	plaintext, err := os.ReadFile(snapshot)
	if err != nil {
		return fmt.Errorf("read snapshot: %w", err)
	}

	salt, err := GenerateSalt()
	if err != nil {
		return err
	}
	encrypted, err := Encrypt(plaintext, m.cfg.Passphrase, salt)
	if err != nil {
		return err
	}

	key := fmt.Sprintf("%s/hanashi-%s.db.enc", m.cfg.Prefix, m.now().UTC().Format("2006-01-02T150405Z"))

	backoff := retry.WithMaxRetries(4, retry.NewExponential(time.Second))
	err = retry.Do(ctx, backoff, func(ctx context.Context) error {
		_, err := m.client.PutObject(ctx, &s3.PutObjectInput{
			Bucket:        aws.String(m.cfg.S3.Bucket),
			Key:           aws.String(key),
			Body:          bytes.NewReader(encrypted),
			ContentLength: aws.Int64(int64(len(encrypted))),
		})
		if err != nil {
			return retry.RetryableError(err)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("upload backup: %w", err)
	}

	m.logger.Info("backup uploaded", "key", key, "bytes", len(encrypted))
	return nil
}

// prune deletes the oldest backups beyond the retention window, keyed by the
// date embedded in the object name.
func (m *Manager) prune(ctx context.Context) error {
	out, err := m.client.ListObjectsV2(ctx, &s3.ListObjectsV2Input{
		Bucket: aws.String(m.cfg.S3.Bucket),
		Prefix: aws.String(m.cfg.Prefix + "/"),
	})
	if err != nil {
		return fmt.Errorf("list backups: %w", err)
	}

	cutoff := m.now().UTC().AddDate(0, 0, -m.cfg.RetentionDays).Format("2006-01-02")

	var stale []string
	for _, obj := range out.Contents {
		key := aws.ToString(obj.Key)
		name := strings.TrimPrefix(key, m.cfg.Prefix+"/")
		date := strings.TrimPrefix(name, "hanashi-")
		if len(date) >= 10 && date[:10] < cutoff {
			stale = append(stale, key)
		}
	}
	sort.Strings(stale)

	for _, key := range stale {
		if _, err := m.client.DeleteObject(ctx, &s3.DeleteObjectInput{
			Bucket: aws.String(m.cfg.S3.Bucket),
			Key:    aws.String(key),
		}); err != nil {
			m.logger.Warn("delete old backup", "key", key, "error", err)
		}
	}
	return nil
}

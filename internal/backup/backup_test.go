package backup

import (
	"context"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/mtarnawa/hanashi/internal/database"
)

// fakeS3 records uploads and deletions in memory.
type fakeS3 struct {
	objects map[string][]byte
	deleted []string
}

func newFakeS3() *fakeS3 {
	return &fakeS3{objects: make(map[string][]byte)}
}

func (f *fakeS3) PutObject(ctx context.Context, input *s3.PutObjectInput, opts ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	data, err := io.ReadAll(input.Body)
	if err != nil {
		return nil, err
	}
	f.objects[aws.ToString(input.Key)] = data
	return &s3.PutObjectOutput{}, nil
}

func (f *fakeS3) ListObjectsV2(ctx context.Context, input *s3.ListObjectsV2Input, opts ...func(*s3.Options)) (*s3.ListObjectsV2Output, error) {
	out := &s3.ListObjectsV2Output{}
	prefix := aws.ToString(input.Prefix)
	for key := range f.objects {
		if strings.HasPrefix(key, prefix) {
			out.Contents = append(out.Contents, s3types.Object{Key: aws.String(key)})
		}
	}
	return out, nil
}

func (f *fakeS3) DeleteObject(ctx context.Context, input *s3.DeleteObjectInput, opts ...func(*s3.Options)) (*s3.DeleteObjectOutput, error) {
	key := aws.ToString(input.Key)
	delete(f.objects, key)
	f.deleted = append(f.deleted, key)
	return &s3.DeleteObjectOutput{}, nil
}

func testManager(t *testing.T) (*Manager, *fakeS3) {
	t.Helper()
	db, err := database.Open(":memory:")
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	cfg := Config{
		S3:            S3Config{Bucket: "backups", AccessKey: "ak", SecretKey: "sk"},
		Passphrase:    "test-passphrase",
		RetentionDays: 30,
	}
	m := NewManager(cfg, db, slog.New(slog.NewTextHandler(io.Discard, nil)))
	fake := newFakeS3()
	m.client = fake
	return m, fake
}

func TestRunNowUploadsEncryptedSnapshot(t *testing.T) {
	m, fake := testManager(t)

	if err := m.RunNow(context.Background()); err != nil {
		t.Fatalf("run backup: %v", err)
	}
	if len(fake.objects) != 1 {
		t.Fatalf("uploaded %d objects, want 1", len(fake.objects))
	}

	for key, data := range fake.objects {
		if !strings.HasPrefix(key, "backups/hanashi-") || !strings.HasSuffix(key, ".db.enc") {
			t.Errorf("object key %q has unexpected shape", key)
		}

		// The upload decrypts back to a SQLite file.
		plain, err := Decrypt(data, "test-passphrase")
		if err != nil {
			t.Fatalf("decrypt upload: %v", err)
		}
		if !strings.HasPrefix(string(plain[:16]), "SQLite format 3") {
			t.Error("decrypted upload is not a SQLite database")
		}
	}
}

func TestPruneDeletesBeyondRetention(t *testing.T) {
	m, fake := testManager(t)
	m.now = func() time.Time { return time.Date(2025, 6, 15, 3, 0, 0, 0, time.UTC) }

	fake.objects["backups/hanashi-2025-04-01T030000Z.db.enc"] = []byte("old")
	fake.objects["backups/hanashi-2025-06-10T030000Z.db.enc"] = []byte("fresh")

	if err := m.prune(context.Background()); err != nil {
		t.Fatalf("prune: %v", err)
	}

	if len(fake.deleted) != 1 || fake.deleted[0] != "backups/hanashi-2025-04-01T030000Z.db.enc" {
		t.Errorf("deleted = %v, want only the stale object", fake.deleted)
	}
	if _, ok := fake.objects["backups/hanashi-2025-06-10T030000Z.db.enc"]; !ok {
		t.Error("fresh backup pruned")
	}
}

func TestDisabledWithoutConfig(t *testing.T) {
	db, err := database.Open(":memory:")
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	m := NewManager(Config{}, db, slog.New(slog.NewTextHandler(io.Discard, nil)))
	if m.Enabled() {
		t.Error("manager enabled without S3 config")
	}
	if err := m.RunNow(context.Background()); err == nil {
		t.Error("RunNow succeeded without configuration")
	}
}

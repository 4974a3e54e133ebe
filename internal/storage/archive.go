package storage

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/charmbracelet/log"
	"github.com/minio/minio-go/v7"

	"devdash/internal/models"
)

const uploadTimeout = 30 * time.Second

type objectPutter interface {
	PutObject(ctx context.Context, bucket, object string, reader io.Reader, size int64, opts minio.PutObjectOptions) (minio.UploadInfo, error)
}

// Archive uploads the retained log of every exited process as one
// newline-delimited JSON object.
type Archive struct {
	put    objectPutter
	bucket string
	logger *log.Logger
}

func NewArchive(c *Client, logger *log.Logger) *Archive {
	return newArchive(c.mc, c.config.Bucket, logger)
}

func newArchive(put objectPutter, bucket string, logger *log.Logger) *Archive {
	if logger == nil {
		logger = log.Default()
	}
	return &Archive{put: put, bucket: bucket, logger: logger}
}

// ObjectKey names the archive object for one run of a process.
func ObjectKey(info models.Process) string {
	started := time.Now()
	if info.StartedAt != nil {
		started = *info.StartedAt
	}
	run := info.RunID
	if run == "" {
		run = "run"
	}
	return fmt.Sprintf("%s/%s/%s-%s.ndjson", info.ProjectID, info.ProcessName, started.UTC().Format("20060102T150405Z"), run)
}

func EncodeNDJSON(entries []models.LogEntry) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	for _, e := range entries {
		if err := enc.Encode(e); err != nil {
			return nil, err
		}
	}
	return buf.Bytes(), nil
}

func (a *Archive) ProcessStarted(models.Process) {}

func (a *Archive) ProcessExited(info models.Process, logs []models.LogEntry) {
	if len(logs) == 0 {
		return
	}
	body, err := EncodeNDJSON(logs)
	if err != nil {
		a.logger.Error("encode log archive", "id", info.ID, "error", err)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), uploadTimeout)
	defer cancel()

	key := ObjectKey(info)
	_, err = a.put.PutObject(ctx, a.bucket, key, bytes.NewReader(body), int64(len(body)), minio.PutObjectOptions{
		ContentType: "application/x-ndjson",
		UserMetadata: map[string]string{
			"process": info.ID,
			"status":  info.Status,
		},
	})
	if err != nil {
		a.logger.Warn("log archive upload failed", "id", info.ID, "key", key, "error", err)
		return
	}
	a.logger.Info("archived process log", "id", info.ID, "bucket", a.bucket, "key", key, "entries", len(logs))
}

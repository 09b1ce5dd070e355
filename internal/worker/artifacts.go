package worker

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"

	"github.com/enrichloop/core/pkg/blobstore"
)

// artifactThreshold is the output size, in bytes, above which a job's
// result blob is offloaded to object storage instead of kept inline in
// enrichment_jobs.output_data. Chosen so a typical bulk job (hundreds of
// records) stays inline; a 10000-record job does not.
const artifactThreshold = 256 * 1024

// ArtifactStore offloads large job outputs to object storage, keeping the
// enrichment_jobs.output_data column bounded for large bulk jobs. Satisfied
// by *blobstore.S3Storage; nil disables offloading and every output stays
// inline regardless of size.
type ArtifactStore interface {
	Put(ctx context.Context, r io.Reader, size int64, opts ...blobstore.Option) (*blobstore.FileInfo, error)
}

// externalOutput is the marker persisted in output_data when a job's
// results were offloaded to object storage instead of stored inline.
// The edge currently returns this marker as-is rather than resolving it
// to a presigned download URL (see DESIGN.md).
type externalOutput struct {
	External bool   `json:"external"`
	Key      string `json:"key"`
	Count    int    `json:"count"`
}

// maybeOffload returns outputBlob unchanged if it fits inline, or a small
// externalOutput marker if it was written to t.artifacts instead. A nil
// ArtifactStore always returns outputBlob unchanged.
func (t *Task) maybeOffload(ctx context.Context, jobID string, outputBlob []byte, count int) ([]byte, error) {
	if t.artifacts == nil || len(outputBlob) <= artifactThreshold {
		return outputBlob, nil
	}

	info, err := t.artifacts.Put(ctx, bytes.NewReader(outputBlob), int64(len(outputBlob)),
		blobstore.WithPrefix("job-results"), blobstore.WithKey(jobID+".json"))
	if err != nil {
		// Offload failure is not fatal to the job: fall back to inline
		// storage rather than lose the result.
		t.logger.Warn("worker: artifact offload failed, storing output inline",
			slog.String("job_id", jobID), slog.Any("error", err))
		return outputBlob, nil
	}

	return json.Marshal(externalOutput{External: true, Key: info.Key, Count: count})
}

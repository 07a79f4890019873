package async

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/tmaia/inbound-recon/internal/models"
	"github.com/tmaia/inbound-recon/internal/pipeline"
	"github.com/tmaia/inbound-recon/internal/repository"
)

// blockingDocs parks every Get until the gate opens, keeping a worker busy
// for as long as the test needs.
type blockingDocs struct {
	repository.DocumentRepository
	gate    chan struct{}
	started chan struct{}
}

func (d *blockingDocs) Get(ctx context.Context, _ uuid.UUID) (*models.Document, error) {
	select {
	case d.started <- struct{}{}:
	default:
	}
	select {
	case <-d.gate:
	case <-ctx.Done():
	}
	return nil, gorm.ErrRecordNotFound
}

func TestFullQueueEnqueueHonorsContext(t *testing.T) {
	docs := &blockingDocs{gate: make(chan struct{}), started: make(chan struct{}, 8)}
	proc := pipeline.NewProcessor(docs, nil, nil, nil, nil, nil, nil, nil)
	q := NewProcessorQueue(proc, nil,
		WithWorkers(1), WithQueueSize(1), WithProcessTimeout(5*time.Second))

	// the single worker parks on the first job, the buffer holds the second
	require.NoError(t, q.Enqueue(context.Background(), Job{DocumentID: uuid.New()}))
	<-docs.started
	require.NoError(t, q.Enqueue(context.Background(), Job{DocumentID: uuid.New()}))

	// a third enqueue blocks on the full buffer and must give up with its
	// context instead of wedging the queue mutex
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	err := q.Enqueue(ctx, Job{DocumentID: uuid.New()})
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	close(docs.gate)
	sdCtx, sdCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer sdCancel()
	q.Shutdown(sdCtx)

	// post-shutdown submissions are dropped, not queued
	assert.NoError(t, q.Enqueue(context.Background(), Job{DocumentID: uuid.New()}))
}

package notify

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/enrichloop/core/internal/worker"
	"github.com/enrichloop/core/pkg/mailer"
)

type fakeSender struct {
	sent []*mailer.Email
}

func (f *fakeSender) SendRaw(ctx context.Context, email *mailer.Email) error {
	f.sent = append(f.sent, email)
	return nil
}

func TestRenderBody_IncludesJobIDAndStatus(t *testing.T) {
	t.Parallel()

	body := renderBody(worker.TerminalEvent{JobID: "job1", TenantID: "tenant1", Status: "completed"})
	assert.Contains(t, body, "job1")
	assert.Contains(t, body, "completed")
}

func TestNotifier_NilSenderIsNoop(t *testing.T) {
	t.Parallel()

	n := New(nil, nil, nil)
	require.NotPanics(t, func() {
		n.OnProgress(worker.ProgressEvent{JobID: "job1"})
		n.OnTerminal(worker.TerminalEvent{JobID: "job1", TenantID: "tenant1", Status: "completed"})
	})
}

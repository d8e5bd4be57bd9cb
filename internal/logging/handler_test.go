package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func logLine(t *testing.T, ctx context.Context) map[string]any {
	t.Helper()
	var buf bytes.Buffer
	logger := slog.New(NewContextHandler(slog.NewJSONHandler(&buf, nil)))
	logger.InfoContext(ctx, "test message")

	var out map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &out))
	return out
}

func TestContextAttributesAppear(t *testing.T) {
	ctx := context.Background()
	ctx = ContextWithMessageID(ctx, 7)
	ctx = ContextWithUnitID(ctx, 3)
	ctx = ContextWithSubID(ctx, 1)
	ctx = ContextWithDest(ctx, "+15550100")
	ctx = ContextWithCaller(ctx, "app.example")
	ctx = ContextWithMessageRef(ctx, 42)
	ctx = ContextWithPart(ctx, 2)
	ctx = ContextWithPromptID(ctx, 9)

	out := logLine(t, ctx)
	assert.EqualValues(t, 7, out["msg_id"])
	assert.EqualValues(t, 3, out["unit_id"])
	assert.EqualValues(t, 1, out["sub_id"])
	assert.Equal(t, "+15550100", out["dest"])
	assert.Equal(t, "app.example", out["caller"])
	assert.EqualValues(t, 42, out["msg_ref"])
	assert.EqualValues(t, 2, out["part"])
	assert.EqualValues(t, 9, out["prompt_id"])
}

func TestBareContextAddsNothing(t *testing.T) {
	out := logLine(t, context.Background())
	assert.NotContains(t, out, "msg_id")
	assert.NotContains(t, out, "dest")
	assert.Equal(t, "test message", out["msg"])
}

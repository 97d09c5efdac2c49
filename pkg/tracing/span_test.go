package tracing

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Adithya-Monish-Kumar-K/corpus-search/pkg/logger"
)

func TestSpanTree(t *testing.T) {
	ctx := logger.WithRequestID(context.Background(), "req-1")
	ctx, root := Start(ctx, "search")
	_, parse := Start(ctx, "parse")
	parse.SetAttr("clauses", 2)
	parse.End()
	_, exec := Start(ctx, "execute")
	exec.End()
	root.End()

	assert.Equal(t, "req-1", root.TraceID)
	require.Len(t, root.Children, 2)
	assert.Equal(t, "req-1", root.Children[0].TraceID)
	assert.Equal(t, 2, root.Children[0].Attrs["clauses"])
	assert.Same(t, root, FromContext(ctx))
}

func TestRootWithoutRequestIDGetsTraceID(t *testing.T) {
	_, span := Start(context.Background(), "build")
	span.End()
	assert.NotEmpty(t, span.TraceID)
	assert.Nil(t, FromContext(context.Background()))
}

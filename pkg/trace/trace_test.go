package trace

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestContextRoundTrip(t *testing.T) {
	id := GenerateTraceID()
	assert.Len(t, id, 32)

	ctx := WithContext(context.Background(), id)
	assert.Equal(t, id, FromContext(ctx))
	assert.Empty(t, FromContext(context.Background()))
}

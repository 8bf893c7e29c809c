package tracing

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEndSpanErr(t *testing.T) {
	_, span := Tracer("test").Start(context.Background(), "op")

	err := errors.New("boom")
	assert.NotPanics(t, func() { EndSpanErr(span, &err) })
	assert.NotPanics(t, func() { EndSpanErr(span, nil) })
}

package tracing

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.opentelemetry.io/otel/attribute"
)

func TestSafeAttributesDropsPersonalData(t *testing.T) {
	attrs := SafeAttributes(
		attribute.String("vat_number", "DE123456789"),
		attribute.String("currency", "GBP"),
		attribute.String("buyer_email", "a@b.c"),
	)
	assert.Len(t, attrs, 1)
	assert.Equal(t, attribute.Key("currency"), attrs[0].Key)
}

func TestSafeErrorKeepsMessageOnly(t *testing.T) {
	base := errors.New("seller_not_found")
	wrapped := SafeError(base)
	assert.EqualError(t, wrapped, "seller_not_found")
	assert.False(t, errors.Is(wrapped, base))
	assert.Nil(t, SafeError(nil))
}

func TestSamplerDisabledNeverSamples(t *testing.T) {
	assert.Contains(t, sampler(Config{Enabled: false, SamplingRatio: 1}).Description(), "AlwaysOff")
	assert.Contains(t, sampler(Config{Enabled: true, SamplingRatio: 1}).Description(), "AlwaysOn")
}

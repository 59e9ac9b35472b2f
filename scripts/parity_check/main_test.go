package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPayloadsEqualMapsLegacyShape(t *testing.T) {
	goBody := unwrapEnvelope([]byte(`{"data":[{"id":"s1","grade":"5","marks":80,"createdAt":"2024-03-01"}],"meta":{"count":1}}`))
	legacy := []byte(`[{"_id":"s1","grade":"5","marks":80.0,"__v":0,"createdAt":"2024-03-02"}]`)

	assert.False(t, payloadsEqual(goBody, legacy, nil))
	assert.True(t, payloadsEqual(goBody, legacy, []string{"createdAt"}))
}

func TestUnwrapEnvelopeLeavesBareBodies(t *testing.T) {
	assert.Equal(t, `{"msg":"no token"}`, string(unwrapEnvelope([]byte(`{"msg":"no token"}`))))
	assert.Equal(t, `[1]`, string(unwrapEnvelope([]byte(`[1]`))))
}

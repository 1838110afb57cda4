package agent

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BaSui01/agenthub/llm"
	"github.com/BaSui01/agenthub/types"
)

func TestProviderSummarizer(t *testing.T) {
	provider := &scriptedProvider{responses: []*llm.ChatResponse{
		textResponse("They discussed the weather.", 8),
	}}
	s := NewProviderSummarizer(provider, "llama3-8b-8192")

	summary, err := s.Summarize(context.Background(), "Condense this:", "user: nice day\nassistant: indeed")
	require.NoError(t, err)
	assert.Equal(t, "They discussed the weather.", summary)

	require.Len(t, provider.requests, 1)
	req := provider.requests[0]
	assert.Equal(t, "llama3-8b-8192", req.Model)
	require.Len(t, req.Messages, 2)
	assert.Equal(t, types.RoleSystem, req.Messages[0].Role)
	assert.Equal(t, "Condense this:", req.Messages[0].Content)
}

func TestProviderSummarizerPropagatesError(t *testing.T) {
	provider := &scriptedProvider{err: types.NewError(types.ErrUpstreamError, "down")}
	s := NewProviderSummarizer(provider, "m")

	_, err := s.Summarize(context.Background(), "p", "t")
	require.Error(t, err)
	assert.Equal(t, types.ErrUpstreamError, types.GetErrorCode(err))
}

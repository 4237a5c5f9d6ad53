package harness

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/seed/internal/engine"
	"github.com/roach88/seed/internal/ir"
)

var _ engine.Requester = (*StubRequester)(nil)

func TestStubRequester_Matches(t *testing.T) {
	stub := NewStubRequester([]Response{
		{URL: "/a", Data: map[string]any{"v": int64(1)}},
		{URL: "/a", Method: "post", Data: "posted"},
		{URL: "/b", Error: "down"},
	})
	ctx := context.Background()

	v, err := stub.Request(ctx, ir.Request{URL: "/a"})
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"v": int64(1)}, v)

	v, err = stub.Request(ctx, ir.Request{URL: "/a", Method: "POST"})
	require.NoError(t, err)
	assert.Equal(t, "posted", v)

	_, err = stub.Request(ctx, ir.Request{URL: "/b"})
	assert.EqualError(t, err, "down")

	_, err = stub.Request(ctx, ir.Request{URL: "/c", Method: "delete"})
	var unmatched *UnmatchedRequestError
	require.ErrorAs(t, err, &unmatched)
	assert.Equal(t, "DELETE", unmatched.Method)
	assert.EqualError(t, err, "no canned response for DELETE /c")

	assert.Len(t, stub.Requests(), 4)
}

func TestStubRequester_ResponsesAreCopied(t *testing.T) {
	stub := NewStubRequester([]Response{{URL: "/a", Data: map[string]any{"v": int64(1)}}})

	v, err := stub.Request(context.Background(), ir.Request{URL: "/a"})
	require.NoError(t, err)
	v.(map[string]any)["v"] = int64(2)

	v, err = stub.Request(context.Background(), ir.Request{URL: "/a"})
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"v": int64(1)}, v)
}

func TestStubRequester_RecordsRequests(t *testing.T) {
	stub := NewStubRequester(nil)
	req := ir.Request{URL: "/x", Data: map[string]any{"q": "go"}, Headers: map[string]string{}}
	_, _ = stub.Request(context.Background(), req)
	req.Data["q"] = "changed"

	got := stub.Requests()
	require.Len(t, got, 1)
	assert.Equal(t, ir.Request{URL: "/x", Data: map[string]any{"q": "go"}}, got[0])
}

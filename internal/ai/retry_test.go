package ai

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunWithRetries(t *testing.T) {
	tests := []struct {
		name      string
		replies   []reply
		want      string
		wantErr   error
		wantCalls int
	}{
		{
			name:      "first attempt valid",
			replies:   []reply{text(`{"b": 1, "a": [1, 2]}`)},
			want:      `{"a":[1,2],"b":1}`,
			wantCalls: 1,
		},
		{
			name:      "fenced output",
			replies:   []reply{text("Sure!\n```json\n{\"x\": 1}\n```")},
			want:      `{"x":1}`,
			wantCalls: 1,
		},
		{
			name:      "invalid then valid",
			replies:   []reply{text(`{"a": nope}`), text(`{"a": 1}`)},
			want:      `{"a":1}`,
			wantCalls: 2,
		},
		{
			name:      "prose without JSON yields empty object",
			replies:   []reply{text("I could not find anything.")},
			want:      `{}`,
			wantCalls: 1,
		},
		{
			name:      "callback error consumes an attempt",
			replies:   []reply{{err: errors.New("503")}, text(`[1]`)},
			want:      `[1]`,
			wantCalls: 2,
		},
		{
			name:      "empty output every time",
			replies:   []reply{text("")},
			wantErr:   ErrEmptyOutput,
			wantCalls: 3,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := script(tt.replies...)
			out, err := RunWithRetries(context.Background(), c, nil, nil, 3)

			assert.Equal(t, tt.wantCalls, c.calls())
			if tt.wantErr != nil {
				require.Error(t, err)
				assert.ErrorIs(t, err, tt.wantErr)
				var re *RetriesExhaustedError
				require.ErrorAs(t, err, &re)
				assert.Equal(t, 3, re.Attempts)
				assert.Equal(t, KindTransport, KindOf(err))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, out)
		})
	}
}

func TestRunWithRetriesDefaultBound(t *testing.T) {
	c := script(reply{err: errors.New("down")})
	_, err := RunWithRetries(context.Background(), c, nil, nil, 0)
	require.Error(t, err)
	assert.Equal(t, 3, c.calls())
}

func TestUnwrapCompletion(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		want    string
		wantErr bool
	}{
		{"plain JSON passes through", `{"metrics":[]}`, `{"metrics":[]}`, false},
		{"envelope content", `{"choices":[{"message":{"content":"{\"a\":1}"}}]}`, `{"a":1}`, false},
		{"envelope without content", `{"choices":[{"message":{"content":null}}]}`, `{"choices":[{"message":{"content":null}}]}`, false},
		{"prose passes through", "no json here", "no json here", false},
		{"error envelope", `{"error":{"message":"quota"}}`, "", true},
		{"null error is ignored", `{"error":null,"choices":[{"message":{"content":"ok"}}]}`, "ok", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := unwrapCompletion(tt.raw)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrProviderReported)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestUnwrapCompletionKeepsFencedContent(t *testing.T) {
	content := "Result:\n```json\n{\"n\": 3}\n```"

	got, err := unwrapCompletion(textEnvelope(t, content))
	require.NoError(t, err)
	assert.Equal(t, content, got)

	out, err := RunWithRetries(context.Background(), unwrapping(script(text(textEnvelope(t, content)))), nil, nil, 3)
	require.NoError(t, err)
	assert.Equal(t, `{"n":3}`, out)
}

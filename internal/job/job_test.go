package job_test

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"tradehub/services/pipeline/internal/job"
)

func TestContentEmbedJob_Validate(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		wantErr bool
	}{
		{
			name: "valid article",
			body: `{"contentId":"c1","contentKind":"ARTICLE","rawText":"hello","title":"T","ownerId":"u1"}`,
		},
		{
			name: "article with empty text is still valid",
			body: `{"contentId":"c1","contentKind":"ARTICLE","rawText":"","title":"T","ownerId":"u1"}`,
		},
		{
			name: "valid video",
			body: `{"contentId":"c2","contentKind":"VIDEO","mediaUrl":"https://cdn.example.com/v.mp4","title":"T","ownerId":"u1"}`,
		},
		{
			name:    "video without media url",
			body:    `{"contentId":"c3","contentKind":"VIDEO","title":"T","ownerId":"u1"}`,
			wantErr: true,
		},
		{
			name:    "audio with relative media url",
			body:    `{"contentId":"c4","contentKind":"AUDIO","mediaUrl":"/v.mp3","title":"T","ownerId":"u1"}`,
			wantErr: true,
		},
		{
			name:    "unknown kind",
			body:    `{"contentId":"c5","contentKind":"IMAGE","title":"T","ownerId":"u1"}`,
			wantErr: true,
		},
		{
			name:    "missing content id",
			body:    `{"contentKind":"ARTICLE","rawText":"x","title":"T","ownerId":"u1"}`,
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var j job.ContentEmbedJob
			require.NoError(t, json.Unmarshal([]byte(tt.body), &j))

			err := j.Validate()
			if tt.wantErr {
				require.ErrorIs(t, err, job.ErrValidation)
				return
			}
			require.NoError(t, err)
			assert.NotEmpty(t, j.ContentID)
		})
	}
}

func TestSearchJob_Validate(t *testing.T) {
	j := job.SearchJob{Query: "leaky faucet", SearchID: "s1"}
	require.NoError(t, j.Validate())

	blank := job.SearchJob{Query: "  ", SearchID: "s2"}
	require.ErrorIs(t, blank.Validate(), job.ErrValidation)

	noID := job.SearchJob{Query: "x"}
	require.ErrorIs(t, noID.Validate(), job.ErrValidation)
}

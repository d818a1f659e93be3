package rag

import (
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeS3 serves objects two keys per page.
type fakeS3 struct {
	objects map[string]string
	keys    []string
	gets    []string
}

func (f *fakeS3) ListObjectsV2(_ context.Context, in *s3.ListObjectsV2Input, _ ...func(*s3.Options)) (*s3.ListObjectsV2Output, error) {
	var matching []string
	for _, k := range f.keys {
		if strings.HasPrefix(k, aws.ToString(in.Prefix)) {
			matching = append(matching, k)
		}
	}

	start := 0
	if in.ContinuationToken != nil {
		for i, k := range matching {
			if k == aws.ToString(in.ContinuationToken) {
				start = i
			}
		}
	}
	end := min(start+2, len(matching))

	out := &s3.ListObjectsV2Output{IsTruncated: aws.Bool(end < len(matching))}
	for _, k := range matching[start:end] {
		out.Contents = append(out.Contents, types.Object{Key: aws.String(k)})
	}
	if end < len(matching) {
		out.NextContinuationToken = aws.String(matching[end])
	}
	return out, nil
}

func (f *fakeS3) GetObject(_ context.Context, in *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	key := aws.ToString(in.Key)
	f.gets = append(f.gets, key)
	return &s3.GetObjectOutput{Body: io.NopCloser(bytes.NewBufferString(f.objects[key]))}, nil
}

func TestParseS3URI(t *testing.T) {
	tests := []struct {
		uri    string
		bucket string
		prefix string
		ok     bool
	}{
		{uri: "s3://docs/manuals/", bucket: "docs", prefix: "manuals/", ok: true},
		{uri: "s3://docs", bucket: "docs", ok: true},
		{uri: "s3:///nobucket"},
		{uri: "data/source"},
	}
	for _, tt := range tests {
		t.Run(tt.uri, func(t *testing.T) {
			bucket, prefix, ok := ParseS3URI(tt.uri)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.bucket, bucket)
			assert.Equal(t, tt.prefix, prefix)
		})
	}
}

func TestFetchS3Sources(t *testing.T) {
	fake := &fakeS3{
		keys: []string{
			"manuals/a.pdf",
			"manuals/notes.txt",
			"manuals/sub/b.PDF",
			"manuals/c.pdf",
			"manuals/../../escape.pdf",
			"other/d.pdf",
		},
		objects: map[string]string{
			"manuals/a.pdf":            "pdf-a",
			"manuals/sub/b.PDF":        "pdf-b",
			"manuals/c.pdf":            "pdf-c",
			"manuals/../../escape.pdf": "pdf-escape",
		},
	}
	dst := t.TempDir()

	n, err := FetchS3Sources(context.Background(), fake, "docs", "manuals/", dst, nil)
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	assert.ElementsMatch(t, []string{"manuals/a.pdf", "manuals/sub/b.PDF", "manuals/c.pdf"}, fake.gets)

	got, err := os.ReadFile(filepath.Join(dst, "sub", "b.PDF"))
	require.NoError(t, err)
	assert.Equal(t, "pdf-b", string(got))
	assert.NoFileExists(t, filepath.Join(dst, "notes.txt"))

	// keys resolving outside dst are neither fetched nor written
	assert.NotContains(t, fake.gets, "manuals/../../escape.pdf")
	assert.NoFileExists(t, filepath.Join(dst, "..", "..", "escape.pdf"))
	assert.NoFileExists(t, filepath.Join(dst, "..", "escape.pdf"))
}

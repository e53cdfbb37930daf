package objects

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakePutter struct {
	err    error
	input  *s3.PutObjectInput
	body   []byte
	called int
}

func (p *fakePutter) PutObject(_ context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	p.called++
	p.input = in
	if p.err != nil {
		return nil, p.err
	}
	body, err := io.ReadAll(in.Body)
	if err != nil {
		return nil, err
	}
	p.body = body
	return &s3.PutObjectOutput{}, nil
}

func writeTemp(t *testing.T, name string, content []byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, content, 0o600))
	return path
}

func TestUpload(t *testing.T) {
	putter := &fakePutter{}
	u := NewWithClient(slog.New(slog.DiscardHandler), putter, "media-bucket", "https://cdn.example.com/media-bucket/")
	u.now = func() time.Time { return time.Date(2024, time.March, 7, 10, 0, 0, 0, time.UTC) }

	path := writeTemp(t, "Avatar.PNG", []byte("\x89PNG\r\n\x1a\nrest-of-image"))

	url, err := u.Upload(context.Background(), path)
	require.NoError(t, err)

	require.Equal(t, 1, putter.called)
	assert.Equal(t, "media-bucket", aws.ToString(putter.input.Bucket))
	assert.Equal(t, "image/png", aws.ToString(putter.input.ContentType))
	assert.Equal(t, int64(len("\x89PNG\r\n\x1a\nrest-of-image")), aws.ToInt64(putter.input.ContentLength))
	assert.Equal(t, []byte("\x89PNG\r\n\x1a\nrest-of-image"), putter.body)

	key := aws.ToString(putter.input.Key)
	assert.Regexp(t, regexp.MustCompile(`^media/2024/03/07/[0-9a-f-]{36}\.png$`), key)
	assert.Equal(t, "https://cdn.example.com/media-bucket/"+key, url)

	// The caller still owns the local file.
	_, err = os.Stat(path)
	assert.NoError(t, err)
}

func TestUpload_SniffsUnknownExtension(t *testing.T) {
	putter := &fakePutter{}
	u := NewWithClient(slog.New(slog.DiscardHandler), putter, "b", "http://localhost:9000/b")

	path := writeTemp(t, "upload.bin-unknown", []byte("GIF89a......"))

	_, err := u.Upload(context.Background(), path)
	require.NoError(t, err)
	assert.Equal(t, "image/gif", aws.ToString(putter.input.ContentType))
	assert.Equal(t, []byte("GIF89a......"), putter.body, "body must be rewound after sniffing")
}

func TestUpload_FailCases(t *testing.T) {
	tests := []struct {
		name      string
		path      func(t *testing.T) string
		putErr    error
		expectErr string
	}{
		{
			name:      "empty path",
			path:      func(*testing.T) string { return "" },
			expectErr: ErrEmptyPath.Error(),
		},
		{
			name:      "missing file",
			path:      func(t *testing.T) string { return filepath.Join(t.TempDir(), "nope.png") },
			expectErr: "no such file",
		},
		{
			name:      "storage refuses",
			path:      func(t *testing.T) string { return writeTemp(t, "a.png", []byte("x")) },
			putErr:    errors.New("access denied"),
			expectErr: "access denied",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			u := NewWithClient(slog.New(slog.DiscardHandler), &fakePutter{err: tt.putErr}, "b", "http://x/b")
			url, err := u.Upload(context.Background(), tt.path(t))
			require.Error(t, err)
			assert.Empty(t, url)
			assert.True(t, strings.Contains(err.Error(), tt.expectErr), err.Error())
		})
	}
}

func TestObjectKey_Unique(t *testing.T) {
	at := time.Now()
	a := ObjectKey("/tmp/x.jpg", at)
	b := ObjectKey("/tmp/x.jpg", at)
	assert.NotEqual(t, a, b)
	assert.True(t, strings.HasSuffix(a, ".jpg"))
}

package attachments

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"kbase/internal/config"
)

// fakeStore pages keys two at a time and records delete requests
type fakeStore struct {
	keys      []string
	deleted   [][]string
	listErr   error
	deleteErr error
}

func (f *fakeStore) ListObjectsV2(_ context.Context, in *s3.ListObjectsV2Input, _ ...func(*s3.Options)) (*s3.ListObjectsV2Output, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	var matching []string
	for _, k := range f.keys {
		if strings.HasPrefix(k, aws.ToString(in.Prefix)) {
			matching = append(matching, k)
		}
	}

	start := 0
	if in.ContinuationToken != nil {
		fmt.Sscanf(*in.ContinuationToken, "%d", &start)
	}
	end := min(start+2, len(matching))

	out := &s3.ListObjectsV2Output{}
	for _, k := range matching[start:end] {
		out.Contents = append(out.Contents, types.Object{Key: aws.String(k)})
	}
	if end < len(matching) {
		out.IsTruncated = aws.Bool(true)
		out.NextContinuationToken = aws.String(fmt.Sprint(end))
	}
	return out, nil
}

func (f *fakeStore) DeleteObjects(_ context.Context, in *s3.DeleteObjectsInput, _ ...func(*s3.Options)) (*s3.DeleteObjectsOutput, error) {
	if f.deleteErr != nil {
		return nil, f.deleteErr
	}
	var batch []string
	for _, obj := range in.Delete.Objects {
		batch = append(batch, aws.ToString(obj.Key))
	}
	f.deleted = append(f.deleted, batch)
	return &s3.DeleteObjectsOutput{}, nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestDeleteForNodeRemovesOnlyThatNode(t *testing.T) {
	store := &fakeStore{keys: []string{
		"attachments/n1/a.png",
		"attachments/n1/b.pdf",
		"attachments/n1/sub/c.txt",
		"attachments/n10/other.png",
		"attachments/n2/x.png",
	}}
	cleaner := NewS3Cleaner(store, "bucket", "/attachments/", testLogger())

	require.NoError(t, cleaner.DeleteForNode(context.Background(), "n1"))
	require.Len(t, store.deleted, 1)
	assert.ElementsMatch(t, []string{
		"attachments/n1/a.png",
		"attachments/n1/b.pdf",
		"attachments/n1/sub/c.txt",
	}, store.deleted[0])
}

func TestDeleteForNodeWithoutObjects(t *testing.T) {
	store := &fakeStore{}
	cleaner := NewS3Cleaner(store, "bucket", "attachments", testLogger())

	require.NoError(t, cleaner.DeleteForNode(context.Background(), "n1"))
	assert.Empty(t, store.deleted)
}

func TestDeleteForNodeErrors(t *testing.T) {
	boom := errors.New("boom")

	listing := &fakeStore{listErr: boom}
	err := NewS3Cleaner(listing, "bucket", "attachments", testLogger()).DeleteForNode(context.Background(), "n1")
	assert.ErrorIs(t, err, boom)

	deleting := &fakeStore{keys: []string{"attachments/n1/a"}, deleteErr: boom}
	err = NewS3Cleaner(deleting, "bucket", "attachments", testLogger()).DeleteForNode(context.Background(), "n1")
	assert.ErrorIs(t, err, boom)
}

func TestKeyPrefix(t *testing.T) {
	assert.Equal(t, "files/n1/", NewS3Cleaner(nil, "b", "files", testLogger()).KeyPrefix("n1"))
	assert.Equal(t, "n1/", NewS3Cleaner(nil, "b", "", testLogger()).KeyPrefix("n1"))
}

func TestNewCleanerWithoutBucket(t *testing.T) {
	cleaner, err := NewCleaner(context.Background(), &config.Config{}, testLogger())
	require.NoError(t, err)
	assert.IsType(t, NoopCleaner{}, cleaner)
	assert.NoError(t, cleaner.DeleteForNode(context.Background(), "n1"))
}

package storage

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeS3 struct {
	objects map[string]string
	putErr  error
}

func (f *fakeS3) PutObject(_ context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	if f.putErr != nil {
		return nil, f.putErr
	}
	f.objects[aws.ToString(in.Key)] = aws.ToString(in.ContentType)
	return &s3.PutObjectOutput{}, nil
}

func (f *fakeS3) DeleteObject(_ context.Context, in *s3.DeleteObjectInput, _ ...func(*s3.Options)) (*s3.DeleteObjectOutput, error) {
	delete(f.objects, aws.ToString(in.Key))
	return &s3.DeleteObjectOutput{}, nil
}

func (f *fakeS3) HeadObject(_ context.Context, in *s3.HeadObjectInput, _ ...func(*s3.Options)) (*s3.HeadObjectOutput, error) {
	if _, ok := f.objects[aws.ToString(in.Key)]; !ok {
		return nil, &types.NotFound{}
	}
	return &s3.HeadObjectOutput{}, nil
}

func newFakeS3Store(client *fakeS3) *S3Store {
	return &S3Store{
		client: client,
		presign: func(_ context.Context, bucket, key string, ttl time.Duration) (string, error) {
			return "https://" + bucket + ".s3.local/" + key + "?X-Amz-Expires=" + ttl.String(), nil
		},
		bucket: "ct-images",
		prefix: "uploads",
	}
}

func TestS3StorePutAndDelete(t *testing.T) {
	client := &fakeS3{objects: map[string]string{}}
	store := newFakeS3Store(client)
	ctx := context.Background()

	require.NoError(t, store.Put(ctx, "images/a.png", "image/png", strings.NewReader("x"), 1))
	assert.Equal(t, "image/png", client.objects["uploads/images/a.png"])

	url, expiresAt, err := store.SignedURL(ctx, "images/a.png", time.Hour)
	require.NoError(t, err)
	assert.Contains(t, url, "uploads/images/a.png")
	assert.WithinDuration(t, time.Now().Add(time.Hour), expiresAt, 2*time.Second)

	require.NoError(t, store.Delete(ctx, "images/a.png"))
	assert.ErrorIs(t, store.Delete(ctx, "images/a.png"), ErrObjectNotFound)
}

func TestS3StorePutWrapsError(t *testing.T) {
	store := newFakeS3Store(&fakeS3{objects: map[string]string{}, putErr: errors.New("throttled")})
	err := store.Put(context.Background(), "images/a.png", "image/png", strings.NewReader("x"), 1)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "upload object to s3")
}

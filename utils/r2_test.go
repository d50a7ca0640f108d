package utils

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"bounty-listing-system/config"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakePutter struct {
	input *s3.PutObjectInput
	body  string
	err   error
}

func (f *fakePutter) PutObject(ctx context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	f.input = in
	b, _ := io.ReadAll(in.Body)
	f.body = string(b)
	return &s3.PutObjectOutput{}, f.err
}

func TestR2Store_Upload(t *testing.T) {
	fake := &fakePutter{}
	store := NewR2StoreWithClient(fake, "assets", "https://cdn.example.com/")

	url, err := store.Upload(context.Background(), "logos/acme.png", "image/png", strings.NewReader("png-bytes"))
	require.NoError(t, err)

	assert.Equal(t, "https://cdn.example.com/logos/acme.png", url)
	assert.Equal(t, "assets", aws.ToString(fake.input.Bucket))
	assert.Equal(t, "logos/acme.png", aws.ToString(fake.input.Key))
	assert.Equal(t, "image/png", aws.ToString(fake.input.ContentType))
	assert.Equal(t, "png-bytes", fake.body)
}

func TestR2Store_UploadError(t *testing.T) {
	store := NewR2StoreWithClient(&fakePutter{err: errors.New("denied")}, "assets", "https://cdn.example.com")

	_, err := store.Upload(context.Background(), "k", "text/plain", strings.NewReader("x"))
	assert.ErrorContains(t, err, "failed to upload to R2")
}

func TestNewR2Store_RequiresConfig(t *testing.T) {
	_, err := NewR2Store(context.Background(), config.R2Config{AccountID: "acct"})
	assert.Error(t, err)
}

func TestNewHTTPClient_DefaultTimeout(t *testing.T) {
	assert.Equal(t, DefaultHTTPTimeout, NewHTTPClient(0).Timeout)
}

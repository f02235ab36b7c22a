package services

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/stretchr/testify/require"
)

type fakePutter struct {
	inputs []*s3.PutObjectInput
	bodies []string
}

func (f *fakePutter) PutObject(_ context.Context, params *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	body, _ := io.ReadAll(params.Body)
	f.inputs = append(f.inputs, params)
	f.bodies = append(f.bodies, string(body))
	return &s3.PutObjectOutput{}, nil
}

func TestSpacesService_StoreMedia(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "image/png")
		_, _ = w.Write([]byte("png-bytes"))
	}))
	defer srv.Close()

	putter := &fakePutter{}
	s := newSpacesService(putter, "flowers", "fra1", "/market/media/")

	url, err := s.StoreMedia(context.Background(), "77", srv.URL+"/attachments/tulip.PNG?ex=1", "")
	require.NoError(t, err)

	require.Len(t, putter.inputs, 1)
	key := aws.ToString(putter.inputs[0].Key)
	require.True(t, strings.HasPrefix(key, "market/media/77/"), key)
	require.True(t, strings.HasSuffix(key, ".png"), key)
	require.Equal(t, "image/png", aws.ToString(putter.inputs[0].ContentType))
	require.Equal(t, "png-bytes", putter.bodies[0])
	require.Equal(t, "https://flowers.fra1.digitaloceanspaces.com/"+key, url)
}

func TestSpacesService_StoreMediaDownloadFails(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	putter := &fakePutter{}
	s := newSpacesService(putter, "flowers", "fra1", "media")

	_, err := s.StoreMedia(context.Background(), "77", srv.URL+"/gone.jpg", "image/jpeg")
	require.ErrorContains(t, err, "status 404")
	require.Empty(t, putter.inputs)
}

func TestPassthroughMedia(t *testing.T) {
	url, err := PassthroughMedia{}.StoreMedia(context.Background(), "77", "https://cdn/x.jpg", "")
	require.NoError(t, err)
	require.Equal(t, "https://cdn/x.jpg", url)
}

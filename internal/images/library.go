package images

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"math/rand"
	"path"
	"strings"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/junkhq/whalebot/internal/domain"
)

// imageExtensions are the object suffixes treated as alert images.
var imageExtensions = map[string]bool{
	".jpg":  true,
	".jpeg": true,
	".png":  true,
	".gif":  true,
	".webp": true,
	".mp4":  true,
}

// Library implements domain.ImagePicker over an S3 bucket prefix. The
// object listing is cached in memory for cacheTTL; image bodies are fetched
// per pick.
type Library struct {
	client   *s3.Client
	uploader *manager.Uploader
	bucket   string
	prefix   string
	cacheTTL time.Duration

	mu        sync.Mutex
	keys      []string
	refreshed time.Time
}

// NewLibrary creates a Library over the given client and key prefix.
func NewLibrary(c *Client, prefix string, cacheTTL time.Duration) *Library {
	return &Library{
		client:   c.S3(),
		uploader: manager.NewUploader(c.S3()),
		bucket:   c.Bucket(),
		prefix:   prefix,
		cacheTTL: cacheTTL,
	}
}

// Random returns the body and filename of a randomly chosen image, or
// domain.ErrNoImages when the library is empty.
func (l *Library) Random(ctx context.Context) ([]byte, string, error) {
	keys, err := l.listKeys(ctx)
	if err != nil {
		return nil, "", err
	}
	if len(keys) == 0 {
		return nil, "", fmt.Errorf("images: prefix %s: %w", l.prefix, domain.ErrNoImages)
	}

	key := keys[rand.Intn(len(keys))]

	out, err := l.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(l.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, "", fmt.Errorf("images: get %s: %w", key, err)
	}
	defer out.Body.Close()

	data, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, "", fmt.Errorf("images: read %s: %w", key, err)
	}
	return data, path.Base(key), nil
}

// List returns the filenames currently in the library.
func (l *Library) List(ctx context.Context) ([]string, error) {
	keys, err := l.listKeys(ctx)
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(keys))
	for _, k := range keys {
		names = append(names, path.Base(k))
	}
	return names, nil
}

// Add uploads a new image under the library prefix and invalidates the
// listing cache so the image is eligible on the next pick.
func (l *Library) Add(ctx context.Context, name string, data []byte) error {
	ext := strings.ToLower(path.Ext(name))
	if !imageExtensions[ext] {
		return fmt.Errorf("images: unsupported extension %q", ext)
	}

	key := l.prefix + path.Base(name)
	_, err := l.uploader.Upload(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(l.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String(contentTypeFor(ext)),
	})
	if err != nil {
		return fmt.Errorf("images: upload %s: %w", key, err)
	}

	l.mu.Lock()
	l.refreshed = time.Time{}
	l.mu.Unlock()
	return nil
}

// Remove deletes an image from the library. Idempotent.
func (l *Library) Remove(ctx context.Context, name string) error {
	key := l.prefix + path.Base(name)
	_, err := l.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(l.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return fmt.Errorf("images: delete %s: %w", key, err)
	}

	l.mu.Lock()
	l.refreshed = time.Time{}
	l.mu.Unlock()
	return nil
}

// listKeys returns the cached object listing, refreshing it from S3 when
// the cache has expired.
func (l *Library) listKeys(ctx context.Context) ([]string, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if time.Since(l.refreshed) < l.cacheTTL && l.keys != nil {
		return l.keys, nil
	}

	var keys []string
	paginator := s3.NewListObjectsV2Paginator(l.client, &s3.ListObjectsV2Input{
		Bucket: aws.String(l.bucket),
		Prefix: aws.String(l.prefix),
	})
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("images: list prefix %s: %w", l.prefix, err)
		}
		for _, obj := range page.Contents {
			key := aws.ToString(obj.Key)
			if imageExtensions[strings.ToLower(path.Ext(key))] {
				keys = append(keys, key)
			}
		}
	}

	l.keys = keys
	l.refreshed = time.Now()
	return keys, nil
}

func contentTypeFor(ext string) string {
	switch ext {
	case ".jpg", ".jpeg":
		return "image/jpeg"
	case ".png":
		return "image/png"
	case ".gif":
		return "image/gif"
	case ".webp":
		return "image/webp"
	case ".mp4":
		return "video/mp4"
	default:
		return "application/octet-stream"
	}
}

// Compile-time interface check.
var _ domain.ImagePicker = (*Library)(nil)

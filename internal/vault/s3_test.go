package vault

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"sync"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
)

// fakeS3 stores single-part uploads in memory.
type fakeS3 struct {
	mu      sync.Mutex
	objects map[string][]byte
	headErr error
}

func newFakeS3() *fakeS3 {
	return &fakeS3{objects: make(map[string][]byte)}
}

func (f *fakeS3) PutObject(_ context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	data, err := io.ReadAll(in.Body)
	if err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.objects[aws.ToString(in.Bucket)+"/"+aws.ToString(in.Key)] = data
	return &s3.PutObjectOutput{}, nil
}

func (f *fakeS3) GetObject(_ context.Context, in *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	data, ok := f.objects[aws.ToString(in.Bucket)+"/"+aws.ToString(in.Key)]
	if !ok {
		return nil, &types.NoSuchKey{}
	}
	return &s3.GetObjectOutput{Body: io.NopCloser(bytes.NewReader(data))}, nil
}

func (f *fakeS3) HeadBucket(context.Context, *s3.HeadBucketInput, ...func(*s3.Options)) (*s3.HeadBucketOutput, error) {
	if f.headErr != nil {
		return nil, f.headErr
	}
	return &s3.HeadBucketOutput{}, nil
}

var errMultipart = errors.New("multipart upload not supported by fake")

func (f *fakeS3) UploadPart(context.Context, *s3.UploadPartInput, ...func(*s3.Options)) (*s3.UploadPartOutput, error) {
	return nil, errMultipart
}

func (f *fakeS3) CreateMultipartUpload(context.Context, *s3.CreateMultipartUploadInput, ...func(*s3.Options)) (*s3.CreateMultipartUploadOutput, error) {
	return nil, errMultipart
}

func (f *fakeS3) CompleteMultipartUpload(context.Context, *s3.CompleteMultipartUploadInput, ...func(*s3.Options)) (*s3.CompleteMultipartUploadOutput, error) {
	return nil, errMultipart
}

func (f *fakeS3) AbortMultipartUpload(context.Context, *s3.AbortMultipartUploadInput, ...func(*s3.Options)) (*s3.AbortMultipartUploadOutput, error) {
	return nil, errMultipart
}

func TestS3Vault_PutAndGetSnapshot(t *testing.T) {
	fake := newFakeS3()
	v := newS3VaultWithClient("remote", "course-archive", "/users/me/", fake)

	payload := `{"Name":"Algebra","ID":"MAT201"}`
	if err := v.PutSnapshot("MAT201", 1, strings.NewReader(payload), int64(len(payload))); err != nil {
		t.Fatalf("PutSnapshot() error = %v", err)
	}

	if _, ok := fake.objects["course-archive/users/me/snapshots/MAT201/1.snap"]; !ok {
		t.Errorf("object keys = %v, want users/me/snapshots/MAT201/1.snap", keys(fake))
	}

	var buf bytes.Buffer
	if err := v.GetSnapshot("MAT201", 1, &buf); err != nil {
		t.Fatalf("GetSnapshot() error = %v", err)
	}
	if buf.String() != payload {
		t.Errorf("GetSnapshot() = %q, want %q", buf.String(), payload)
	}

	if err := v.GetSnapshot("MAT201", 2, &buf); err == nil || !strings.Contains(err.Error(), "not found") {
		t.Errorf("GetSnapshot(missing) error = %v, want not found", err)
	}
}

func TestS3Vault_LatestVersion(t *testing.T) {
	v := newS3VaultWithClient("remote", "bucket", "", newFakeS3())

	latest, err := v.LatestVersion("PHY101")
	if err != nil {
		t.Fatalf("LatestVersion() error = %v", err)
	}
	if latest != 0 {
		t.Errorf("LatestVersion() = %d, want 0 before any upload", latest)
	}

	for _, version := range []int64{1, 4, 2} {
		if err := v.PutSnapshot("PHY101", version, strings.NewReader("x"), 1); err != nil {
			t.Fatalf("PutSnapshot(v%d) error = %v", version, err)
		}
	}
	latest, err = v.LatestVersion("PHY101")
	if err != nil {
		t.Fatalf("LatestVersion() error = %v", err)
	}
	if latest != 4 {
		t.Errorf("LatestVersion() = %d, want 4", latest)
	}
}

func TestS3Vault_SizeMismatch(t *testing.T) {
	v := newS3VaultWithClient("remote", "bucket", "", newFakeS3())
	if err := v.PutSnapshot("A", 1, strings.NewReader("abc"), 10); err == nil {
		t.Error("PutSnapshot() expected size mismatch error")
	}
}

func TestS3Vault_ValidateSetup(t *testing.T) {
	fake := newFakeS3()
	v := newS3VaultWithClient("remote", "bucket", "", fake)
	if err := v.ValidateSetup(); err != nil {
		t.Errorf("ValidateSetup() error = %v", err)
	}

	fake.headErr = errors.New("forbidden")
	if err := v.ValidateSetup(); err == nil {
		t.Error("ValidateSetup() expected error when bucket is not accessible")
	}
}

func keys(f *fakeS3) []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, 0, len(f.objects))
	for k := range f.objects {
		out = append(out, k)
	}
	return out
}

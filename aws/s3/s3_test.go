// Copyright 2017 Pilosa Corp.
//
// Redistribution and use in source and binary forms, with or without
// modification, are permitted provided that the following conditions
// are met:
//
// 1. Redistributions of source code must retain the above copyright
// notice, this list of conditions and the following disclaimer.
//
// 2. Redistributions in binary form must reproduce the above copyright
// notice, this list of conditions and the following disclaimer in the
// documentation and/or other materials provided with the distribution.
//
// 3. Neither the name of the copyright holder nor the names of its
// contributors may be used to endorse or promote products derived
// from this software without specific prior written permission.
//
// THIS SOFTWARE IS PROVIDED BY THE COPYRIGHT HOLDERS AND
// CONTRIBUTORS "AS IS" AND ANY EXPRESS OR IMPLIED WARRANTIES,
// INCLUDING, BUT NOT LIMITED TO, THE IMPLIED WARRANTIES OF
// MERCHANTABILITY AND FITNESS FOR A PARTICULAR PURPOSE ARE
// DISCLAIMED. IN NO EVENT SHALL THE COPYRIGHT HOLDER OR
// CONTRIBUTORS BE LIABLE FOR ANY DIRECT, INDIRECT, INCIDENTAL,
// SPECIAL, EXEMPLARY, OR CONSEQUENTIAL DAMAGES (INCLUDING,
// BUT NOT LIMITED TO, PROCUREMENT OF SUBSTITUTE GOODS OR
// SERVICES; LOSS OF USE, DATA, OR PROFITS; OR BUSINESS
// INTERRUPTION) HOWEVER CAUSED AND ON ANY THEORY OF LIABILITY,
// WHETHER IN CONTRACT, STRICT LIABILITY, OR TORT (INCLUDING
// NEGLIGENCE OR OTHERWISE) ARISING IN ANY WAY OUT OF THE USE
// OF THIS SOFTWARE, EVEN IF ADVISED OF THE POSSIBILITY OF SUCH
// DAMAGE.

package s3_test

import (
	"context"
	"io"
	"io/ioutil"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"testing"

	"github.com/aws/aws-sdk-go/aws"
	awss3 "github.com/aws/aws-sdk-go/service/s3"
	"github.com/aws/aws-sdk-go/service/s3/s3manager"
	"github.com/lukeslp/joshua-project-data/aws/s3"
	"github.com/lukeslp/joshua-project-data/test"
	"github.com/pkg/errors"
)

// memBucket stands in for both the uploader and the downloader.
type memBucket struct {
	mu      sync.Mutex
	objects map[string]string
	types   map[string]string
}

func newMemBucket() *memBucket {
	return &memBucket{objects: make(map[string]string), types: make(map[string]string)}
}

func (b *memBucket) Upload(in *s3manager.UploadInput, opts ...func(*s3manager.Uploader)) (*s3manager.UploadOutput, error) {
	return b.UploadWithContext(context.Background(), in, opts...)
}

func (b *memBucket) UploadWithContext(ctx aws.Context, in *s3manager.UploadInput, opts ...func(*s3manager.Uploader)) (*s3manager.UploadOutput, error) {
	body, err := ioutil.ReadAll(in.Body)
	if err != nil {
		return nil, err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.objects[*in.Key] = string(body)
	b.types[*in.Key] = aws.StringValue(in.ContentType)
	return &s3manager.UploadOutput{Location: "mem://" + *in.Bucket + "/" + *in.Key}, nil
}

func (b *memBucket) Download(w io.WriterAt, in *awss3.GetObjectInput, opts ...func(*s3manager.Downloader)) (int64, error) {
	return b.DownloadWithContext(context.Background(), w, in, opts...)
}

func (b *memBucket) DownloadWithContext(ctx aws.Context, w io.WriterAt, in *awss3.GetObjectInput, opts ...func(*s3manager.Downloader)) (int64, error) {
	b.mu.Lock()
	body, ok := b.objects[*in.Key]
	b.mu.Unlock()
	if !ok {
		return 0, errors.Errorf("no such key %s", *in.Key)
	}
	n, err := w.WriteAt([]byte(body), 0)
	return int64(n), err
}

func (b *memBucket) keys() []string {
	keys := make([]string, 0, len(b.objects))
	for k := range b.objects {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func writeFiles(t *testing.T, dir string, names ...string) {
	t.Helper()
	for _, name := range names {
		test.ErrNil(t, ioutil.WriteFile(filepath.Join(dir, name), []byte("content of "+name), 0644), "writing "+name)
	}
}

func TestPublish(t *testing.T) {
	dir := test.MustTempDir(t)
	writeFiles(t, dir, "joshua_project_enriched.json", "joshua_project_enriched.parquet", "notes.txt", ".hidden.json")
	bucket := newMemBucket()

	m := s3.NewMain()
	m.Bucket, m.Prefix, m.Dir = "jp", "/2026/q1/", dir
	test.ErrNil(t, m.RunContext(context.Background(), s3.OptPubUploader(bucket), s3.OptPubDownloader(bucket)), "publishing")

	test.MustBe(t, []string{"2026/q1/joshua_project_enriched.json", "2026/q1/joshua_project_enriched.parquet"}, bucket.keys())
	test.MustBe(t, "application/json", bucket.types["2026/q1/joshua_project_enriched.json"])
	test.MustBe(t, "content of joshua_project_enriched.parquet", bucket.objects["2026/q1/joshua_project_enriched.parquet"])
}

func TestPull(t *testing.T) {
	bucket := newMemBucket()
	for _, name := range []string{"joshua_project_full_dump.json", "joshua_project_countries.json", "joshua_project_languages.json", "joshua_project_totals.json"} {
		bucket.objects["in/"+name] = "[]"
	}
	dir := test.MustTempDir(t)
	m := s3.NewMain()
	m.Bucket, m.Prefix, m.Dir, m.Pull = "jp", "in", dir, true
	test.ErrNil(t, m.RunContext(context.Background(), s3.OptPubUploader(bucket), s3.OptPubDownloader(bucket)), "pulling")

	b, err := ioutil.ReadFile(filepath.Join(dir, "joshua_project_countries.json"))
	test.ErrNil(t, err, "reading countries")
	test.MustBe(t, "[]", string(b))
}

func TestPullMissingWritesNothing(t *testing.T) {
	bucket := newMemBucket()
	bucket.objects["a.json"] = "{}"
	dir := test.MustTempDir(t)
	pub, err := s3.NewPublisher("us-east-1", "jp", s3.OptPubUploader(bucket), s3.OptPubDownloader(bucket))
	test.ErrNil(t, err, "NewPublisher")

	err = pub.Download(context.Background(), dir, []string{"a.json", "b.json"})
	if err == nil || !strings.Contains(err.Error(), "b.json") {
		t.Fatalf("expected an error naming b.json, got %v", err)
	}
	infos, err := ioutil.ReadDir(dir)
	test.ErrNil(t, err, "reading dir")
	test.MustBe(t, 0, len(infos))
}

func TestNewPublisherNeedsBucket(t *testing.T) {
	if _, err := s3.NewPublisher("us-east-1", ""); err == nil {
		t.Fatal("expected an error without a bucket")
	}
}

func TestPublishable(t *testing.T) {
	for name, want := range map[string]bool{
		"joshua_project_unreached.json":    true,
		"joshua_project_unreached.parquet": true,
		".joshua_project.json.123.tmp":     false,
		".spool.json":                      false,
		"cache.db":                         false,
	} {
		test.MustBe(t, want, s3.Publishable(name), name)
	}
}

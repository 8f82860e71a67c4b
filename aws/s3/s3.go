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

// Package s3 publishes the output directory to an S3 bucket and pulls input
// collections back down from one.
package s3

import (
	"context"
	"io/ioutil"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/aws/aws-sdk-go/service/s3/s3manager"
	"github.com/aws/aws-sdk-go/service/s3/s3manager/s3manageriface"
	jpdata "github.com/lukeslp/joshua-project-data"
	"github.com/lukeslp/joshua-project-data/file"
	"github.com/pkg/errors"
)

// PubOption is a functional option type for Publisher.
type PubOption func(p *Publisher)

// OptPubPrefix sets the key prefix objects are stored under.
func OptPubPrefix(prefix string) PubOption {
	return func(p *Publisher) {
		p.prefix = strings.Trim(prefix, "/")
	}
}

// OptPubUploader replaces the s3manager uploader.
func OptPubUploader(up s3manageriface.UploaderAPI) PubOption {
	return func(p *Publisher) {
		p.up = up
	}
}

// OptPubDownloader replaces the s3manager downloader.
func OptPubDownloader(down s3manageriface.DownloaderAPI) PubOption {
	return func(p *Publisher) {
		p.down = down
	}
}

// OptPubLogger sets the logger.
func OptPubLogger(log jpdata.Logger) PubOption {
	return func(p *Publisher) {
		p.log = log
	}
}

// Publisher copies files between a local directory and a bucket.
type Publisher struct {
	bucket string
	prefix string
	region string

	up   s3manageriface.UploaderAPI
	down s3manageriface.DownloaderAPI
	log  jpdata.Logger
}

// NewPublisher returns a Publisher for bucket. An AWS session is only
// created when no uploader or downloader was supplied.
func NewPublisher(region, bucket string, opts ...PubOption) (*Publisher, error) {
	if bucket == "" {
		return nil, errors.New("an S3 bucket is required")
	}
	p := &Publisher{bucket: bucket, region: region, log: jpdata.NopLogger{}}
	for _, opt := range opts {
		opt(p)
	}
	if p.up == nil || p.down == nil {
		sess, err := session.NewSession(&aws.Config{Region: aws.String(region)})
		if err != nil {
			return nil, errors.Wrap(err, "getting new session")
		}
		if p.up == nil {
			p.up = s3manager.NewUploader(sess)
		}
		if p.down == nil {
			p.down = s3manager.NewDownloader(sess)
		}
	}
	return p, nil
}

// Key returns the object key for a file name.
func (p *Publisher) Key(name string) string {
	if p.prefix == "" {
		return name
	}
	return path.Join(p.prefix, name)
}

// contentType guesses from the extension.
func contentType(name string) string {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".json":
		return "application/json"
	case ".parquet":
		return "application/vnd.apache.parquet"
	case ".prom":
		return "text/plain; version=0.0.4"
	}
	return "application/octet-stream"
}

// Publishable reports whether a file in the output directory is uploaded by
// UploadDir.
func Publishable(name string) bool {
	if strings.HasPrefix(name, ".") {
		return false
	}
	switch strings.ToLower(filepath.Ext(name)) {
	case ".json", ".parquet":
		return true
	}
	return false
}

// Upload sends the named files in dir to the bucket.
func (p *Publisher) Upload(ctx context.Context, dir string, names []string) error {
	for _, name := range names {
		if err := p.upload(ctx, dir, name); err != nil {
			return err
		}
	}
	return nil
}

func (p *Publisher) upload(ctx context.Context, dir, name string) error {
	f, err := os.Open(filepath.Join(dir, name))
	if err != nil {
		return errors.Wrapf(err, "opening %s", name)
	}
	defer f.Close()
	out, err := p.up.UploadWithContext(ctx, &s3manager.UploadInput{
		Bucket:      aws.String(p.bucket),
		Key:         aws.String(p.Key(name)),
		Body:        f,
		ContentType: aws.String(contentType(name)),
	})
	if err != nil {
		return errors.Wrapf(err, "uploading %s", name)
	}
	p.log.Printf("uploaded %s to %s", name, out.Location)
	return nil
}

// UploadDir uploads every publishable file in dir and returns their names.
func (p *Publisher) UploadDir(ctx context.Context, dir string) ([]string, error) {
	infos, err := ioutil.ReadDir(dir)
	if err != nil {
		return nil, errors.Wrapf(err, "listing %s", dir)
	}
	names := make([]string, 0, len(infos))
	for _, info := range infos {
		if !info.IsDir() && Publishable(info.Name()) {
			names = append(names, info.Name())
		}
	}
	sort.Strings(names)
	return names, p.Upload(ctx, dir, names)
}

// Download fetches the named objects into dir. Nothing is written to dir
// unless every download succeeds.
func (p *Publisher) Download(ctx context.Context, dir string, names []string) error {
	stage, err := file.NewStaging(dir)
	if err != nil {
		return err
	}
	for _, name := range names {
		if err := p.download(ctx, stage, name); err != nil {
			if aerr := stage.Abort(); aerr != nil {
				p.log.Printf("cleaning up: %v", aerr)
			}
			return err
		}
	}
	return stage.Commit()
}

func (p *Publisher) download(ctx context.Context, stage *file.Staging, name string) error {
	f, err := stage.Create(name)
	if err != nil {
		return err
	}
	defer f.Close()
	n, err := p.down.DownloadWithContext(ctx, f, &s3.GetObjectInput{
		Bucket: aws.String(p.bucket),
		Key:    aws.String(p.Key(name)),
	})
	if err != nil {
		return errors.Wrapf(err, "downloading %s", p.Key(name))
	}
	p.log.Printf("downloaded %s (%d bytes)", name, n)
	return nil
}

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

package s3

import (
	"context"

	jpdata "github.com/lukeslp/joshua-project-data"
	"github.com/lukeslp/joshua-project-data/file"
	"github.com/pkg/errors"
)

// Main contains the configuration for copying datasets to or from S3.
type Main struct {
	Bucket string   `help:"S3 bucket name."`
	Prefix string   `help:"Key prefix of the objects."`
	Region string   `help:"AWS region to use."`
	Dir    string   `help:"Local directory published from or pulled into."`
	Pull   bool     `help:"Download the input collections instead of uploading the output directory."`
	Files  []string `help:"Comma separated file names to copy. Defaults to the input collections when pulling and every json and parquet file when publishing."`

	Log jpdata.Logger `flag:"-"`
}

// NewMain gets a new Main with the default configuration.
func NewMain() *Main {
	return &Main{
		Region: "us-east-1",
		Dir:    ".",
		Log:    jpdata.NopLogger{},
	}
}

// Run copies the files.
func (m *Main) Run() error {
	return m.RunContext(context.Background())
}

// RunContext copies the files, stopping if ctx is canceled.
func (m *Main) RunContext(ctx context.Context, opts ...PubOption) error {
	if m.Log == nil {
		m.Log = jpdata.NopLogger{}
	}
	opts = append([]PubOption{OptPubPrefix(m.Prefix), OptPubLogger(m.Log)}, opts...)
	pub, err := NewPublisher(m.Region, m.Bucket, opts...)
	if err != nil {
		return errors.Wrap(err, "getting publisher")
	}
	if m.Pull {
		names := m.Files
		if len(names) == 0 {
			in := file.DefaultInputs("")
			names = []string{in.PeopleGroups, in.Countries, in.Languages, in.Totals}
		}
		return errors.Wrap(pub.Download(ctx, m.Dir, names), "pulling inputs")
	}
	if len(m.Files) > 0 {
		return errors.Wrap(pub.Upload(ctx, m.Dir, m.Files), "publishing")
	}
	names, err := pub.UploadDir(ctx, m.Dir)
	if err != nil {
		return errors.Wrap(err, "publishing")
	}
	m.Log.Printf("published %d files to s3://%s/%s", len(names), m.Bucket, m.Prefix)
	return nil
}

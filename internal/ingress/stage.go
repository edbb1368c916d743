// Copyright 2025 Kadir Pekel
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package ingress

import (
	"fmt"
	"io"
	"os"
	"strings"
)

// stagedUpload is the request's multipart file, copied once to a local
// temp file so it can be both handed to the Blob Store and moved into
// the Cache FS intake directory without re-reading the (possibly
// already-consumed) multipart body twice.
type stagedUpload struct {
	path string
	size int64
}

func stageUpload(r io.Reader) (*stagedUpload, int64, error) {
	tmp, err := os.CreateTemp("", "caseflow-upload-*")
	if err != nil {
		return nil, 0, fmt.Errorf("creating staging file: %w", err)
	}
	defer tmp.Close()

	n, err := io.Copy(tmp, r)
	if err != nil {
		os.Remove(tmp.Name())
		return nil, 0, fmt.Errorf("copying upload to staging file: %w", err)
	}
	return &stagedUpload{path: tmp.Name(), size: n}, n, nil
}

func (s *stagedUpload) reader() io.Reader {
	f, err := os.Open(s.path)
	if err != nil {
		return strings.NewReader("")
	}
	return &closingReader{f}
}

type closingReader struct{ f *os.File }

func (c *closingReader) Read(p []byte) (int, error) {
	n, err := c.f.Read(p)
	if err != nil {
		c.f.Close()
	}
	return n, err
}

func (s *stagedUpload) copyTo(dest string) error {
	src, err := os.Open(s.path)
	if err != nil {
		return fmt.Errorf("opening staged file: %w", err)
	}
	defer src.Close()

	out, err := os.Create(dest)
	if err != nil {
		return fmt.Errorf("creating %s: %w", dest, err)
	}
	defer out.Close()

	if _, err := io.Copy(out, src); err != nil {
		return fmt.Errorf("copying to %s: %w", dest, err)
	}
	return nil
}

func (s *stagedUpload) cleanup() {
	os.Remove(s.path)
}

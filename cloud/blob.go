/*
Copyright © 2019 the PSCF authors.
This file is part of PSCF.

PSCF is free software: you can redistribute it and/or modify
it under the terms of the GNU General Public License as published by
the Free Software Foundation, either version 3 of the License, or
(at your option) any later version.

PSCF is distributed in the hope that it will be useful,
but WITHOUT ANY WARRANTY; without even the implied warranty of
MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
GNU General Public License for more details.

You should have received a copy of the GNU General Public License
along with PSCF.  If not, see <http://www.gnu.org/licenses/>.
*/

package cloud

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/google/go-cloud/blob"
)

// ErrNotExist is returned by Open when the blob does not exist.
var ErrNotExist = os.ErrNotExist

// Open opens the blob at the given URL for reading. The returned error
// satisfies os.IsNotExist when the blob does not exist.
func Open(ctx context.Context, path string) (io.ReadCloser, error) {
	bucketName, key, err := SplitURL(path)
	if err != nil {
		return nil, err
	}
	bucket, err := OpenBucket(ctx, bucketName)
	if err != nil {
		return nil, err
	}
	r, err := bucket.NewReader(ctx, key)
	if err != nil {
		if blob.IsNotExist(err) {
			return nil, &os.PathError{Op: "open", Path: path, Err: ErrNotExist}
		}
		return nil, fmt.Errorf("cloud: reading blob %s: %v", path, err)
	}
	return r, nil
}

// Download copies the blob at path to the local file dst.
func Download(ctx context.Context, path, dst string) error {
	r, err := Open(ctx, path)
	if err != nil {
		return err
	}
	defer r.Close()
	w, err := os.Create(dst)
	if err != nil {
		return fmt.Errorf("cloud: creating file for download: %v", err)
	}
	if _, err = io.Copy(w, r); err != nil {
		w.Close()
		return fmt.Errorf("cloud: downloading %s: %v", path, err)
	}
	return w.Close()
}

// Upload copies the local file src to the blob at path.
func Upload(ctx context.Context, src, path string) error {
	bucketName, key, err := SplitURL(path)
	if err != nil {
		return err
	}
	bucket, err := OpenBucket(ctx, bucketName)
	if err != nil {
		return fmt.Errorf("cloud: opening bucket to upload file '%s': %v", path, err)
	}
	r, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("cloud: opening file '%s' for upload: %v", src, err)
	}
	defer r.Close()
	w, err := bucket.NewWriter(ctx, key, &blob.WriterOptions{})
	if err != nil {
		return fmt.Errorf("cloud: creating writer for blob %s: %v", path, err)
	}
	if _, err = io.Copy(w, r); err != nil {
		w.Close()
		return fmt.Errorf("cloud: uploading file '%s' to '%s': %v", src, path, err)
	}
	if err = w.Close(); err != nil {
		return fmt.Errorf("cloud: writing blob %s: %v", path, err)
	}
	return nil
}

// ExpandShp returns the given file and the associated .dbf, .shx and .prj
// files if the given file has the .shp extension, and returns the given
// file otherwise.
func ExpandShp(filename string) []string {
	o := []string{filename}
	if filepath.Ext(filename) != ".shp" {
		return o
	}
	for _, newExt := range []string{".dbf", ".shx", ".prj"} {
		o = append(o, filename[0:len(filename)-4]+newExt)
	}
	return o
}

// Copyright 2025 gorse Project Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
// http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package blob

import (
	"io"

	"github.com/gorse-io/deepwide/config"
	"github.com/juju/errors"
)

// Store keeps named objects such as checkpoints and predictions.
type Store interface {
	Open(name string) (io.ReadCloser, error)
	// Create returns a writer and a channel that receives the result of storing the
	// object once the writer is closed.
	Create(name string) (io.WriteCloser, chan error, error)
	List() ([]string, error)
	Remove(name string) error
}

// Open creates the store selected by the storage configuration.
func Open(cfg config.StorageConfig) (Store, error) {
	switch cfg.Backend {
	case config.StoragePosix:
		return NewPOSIX(cfg.Dir), nil
	case config.StorageS3:
		return NewS3(cfg.S3)
	case config.StorageGCS:
		return NewGCS(cfg.GCS)
	case config.StorageAzure:
		return NewAzureBlob(cfg.Azure)
	}
	return nil, errors.NotSupportedf("storage backend %q", cfg.Backend)
}

// Write stores an object produced by fn and waits until it is persisted. Failures of the
// store after the writer is closed are returned as well.
func Write(store Store, name string, fn func(w io.Writer) error) error {
	w, done, err := store.Create(name)
	if err != nil {
		return errors.Trace(err)
	}
	if err = fn(w); err != nil {
		// abort the upload instead of storing a truncated object
		if cw, ok := w.(interface{ CloseWithError(error) error }); ok {
			_ = cw.CloseWithError(err)
		} else {
			_ = w.Close()
		}
		<-done
		return errors.Annotatef(err, "failed to write %s", name)
	}
	if err = w.Close(); err != nil {
		<-done
		return errors.Trace(err)
	}
	if err = <-done; err != nil {
		return errors.Annotatef(err, "failed to store %s", name)
	}
	return nil
}

// Read opens an object and passes it to fn.
func Read(store Store, name string, fn func(r io.Reader) error) error {
	r, err := store.Open(name)
	if err != nil {
		return errors.Trace(err)
	}
	defer r.Close()
	return fn(r)
}

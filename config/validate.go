// Copyright 2020 gorse Project Authors
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

package config

import (
	"github.com/go-playground/validator/v10"
	"github.com/juju/errors"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterStructValidation(validateModel, ModelConfig{})
	v.RegisterStructValidation(validateStorage, StorageConfig{})
	return v
}

// validateModel allows at most one dropout rate per hidden layer. Hidden layers without a
// rate have no dropout.
func validateModel(sl validator.StructLevel) {
	c := sl.Current().Interface().(ModelConfig)
	if len(c.Dropout) > len(c.Hidden) {
		sl.ReportError(c.Dropout, "Dropout", "dropout", "maxlen_hidden", "")
	}
}

// validateStorage requires the settings of the selected backend.
func validateStorage(sl validator.StructLevel) {
	c := sl.Current().Interface().(StorageConfig)
	switch c.Backend {
	case StoragePosix:
		if c.Dir == "" {
			sl.ReportError(c.Dir, "Dir", "dir", "required", "")
		}
	case StorageS3:
		if c.S3.Endpoint == "" {
			sl.ReportError(c.S3.Endpoint, "S3.Endpoint", "endpoint", "required", "")
		}
		if c.S3.Bucket == "" {
			sl.ReportError(c.S3.Bucket, "S3.Bucket", "bucket", "required", "")
		}
	case StorageGCS:
		if c.GCS.Bucket == "" {
			sl.ReportError(c.GCS.Bucket, "GCS.Bucket", "bucket", "required", "")
		}
	case StorageAzure:
		if c.Azure.ConnectionString == "" {
			sl.ReportError(c.Azure.ConnectionString, "Azure.ConnectionString", "connection_string", "required", "")
		}
		if c.Azure.Container == "" {
			sl.ReportError(c.Azure.Container, "Azure.Container", "container", "required", "")
		}
	}
}

// Validate checks the configuration.
func (config *Config) Validate() error {
	if err := validate.Struct(config); err != nil {
		return errors.NewNotValid(err, "invalid config")
	}
	return nil
}

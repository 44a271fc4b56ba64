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
	"fmt"
	"reflect"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
	"github.com/juju/errors"
	"github.com/samber/lo"
)

var (
	validate     *validator.Validate
	validateOnce sync.Once
)

func getValidator() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
		validate.RegisterTagNameFunc(func(field reflect.StructField) string {
			return strings.SplitN(field.Tag.Get("mapstructure"), ",", 2)[0]
		})
		validate.RegisterStructValidation(validateModel, ModelConfig{})
	})
	return validate
}

// validateModel checks constraints across fields of the model section.
func validateModel(sl validator.StructLevel) {
	c := sl.Current().Interface().(ModelConfig)
	if c.Precision == "single" && c.Feedback == "explicit" {
		sl.ReportError(c.Precision, "precision", "Precision", "double_for_explicit", "")
	}
	if c.Preprocess == "log1p" && c.Alpha <= 0 {
		sl.ReportError(c.Alpha, "alpha", "Alpha", "gt", "0")
	}
}

// Validate checks the configuration. Violations are reported as a NotValid
// error listing every offending key.
func (config *Config) Validate() error {
	err := getValidator().Struct(config)
	if err == nil {
		return nil
	}
	var validationErrors validator.ValidationErrors
	if !errors.As(err, &validationErrors) {
		return errors.Trace(err)
	}
	messages := lo.Map(validationErrors, func(e validator.FieldError, _ int) string {
		return formatFieldError(e)
	})
	return errors.NewNotValid(err, strings.Join(messages, "; "))
}

func formatFieldError(e validator.FieldError) string {
	key := strings.ToLower(strings.TrimPrefix(e.Namespace(), "Config."))
	switch e.Tag() {
	case "oneof":
		return fmt.Sprintf("value of `%s` in config must be one of [%s], but the current value is %v",
			key, strings.ReplaceAll(e.Param(), " ", ","), e.Value())
	case "gt":
		return fmt.Sprintf("value of `%s` in config must be greater than %s, but the current value is %v", key, e.Param(), e.Value())
	case "gte":
		return fmt.Sprintf("value of `%s` in config must not be less than %s, but the current value is %v", key, e.Param(), e.Value())
	case "lt":
		return fmt.Sprintf("value of `%s` in config must be less than %s, but the current value is %v", key, e.Param(), e.Value())
	case "double_for_explicit":
		return fmt.Sprintf("value of `%s` in config must be double for explicit feedback", key)
	default:
		return fmt.Sprintf("value of `%s` in config failed on %s", key, e.Tag())
	}
}

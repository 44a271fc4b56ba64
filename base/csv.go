// Copyright 2021 gorse Project Authors
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

package base

import (
	"bufio"
	"strings"
)

// Escape quotes an id for a csv field if it contains the separator, a quote
// or a line break. Quotes inside are doubled.
func Escape(text, sep string) string {
	if !strings.Contains(text, sep) && !strings.ContainsAny(text, "\"\r\n") {
		return text
	}
	return `"` + strings.ReplaceAll(text, `"`, `""`) + `"`
}

// ReadLines splits each record of an interaction file into fields and passes
// them to handler with the record number. Quoted fields may contain the
// separator and span lines. Blank lines are skipped. Reading stops when
// handler returns false.
func ReadLines(sc *bufio.Scanner, sep string, handler func(int, []string) bool) error {
	var (
		record  int
		fields  []string
		field   strings.Builder
		quoted  bool
		pending bool
	)
	for sc.Scan() {
		line := sc.Text()
		if quoted {
			field.WriteString("\r\n")
		} else if line == "" {
			continue
		}
		pending = true
		for i := 0; i < len(line); {
			switch {
			case quoted && line[i] == '"':
				if i+1 < len(line) && line[i+1] == '"' {
					field.WriteByte('"')
					i += 2
				} else {
					quoted = false
					i++
				}
			case quoted:
				field.WriteByte(line[i])
				i++
			case line[i] == '"':
				quoted = true
				i++
			case strings.HasPrefix(line[i:], sep):
				fields = append(fields, field.String())
				field.Reset()
				i += len(sep)
			default:
				field.WriteByte(line[i])
				i++
			}
		}
		if quoted {
			continue
		}
		fields = append(fields, field.String())
		field.Reset()
		pending = false
		if !handler(record, fields) {
			return nil
		}
		fields = nil
		record++
	}
	if err := sc.Err(); err != nil {
		return err
	}
	if pending {
		fields = append(fields, field.String())
		handler(record, fields)
	}
	return nil
}

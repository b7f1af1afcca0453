// Copyright 2025 Tom Barlow
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

package cgi

import (
	"bytes"
	"net/http"
	"strconv"
	"strings"

	xerrors "github.com/tombee/xunlei/pkg/errors"
)

// Response is a parsed CGI response.
type Response struct {
	Status int
	Header []HeaderField
	Body   []byte
}

// ParseResponse splits CGI output into status, headers and body.
//
// The header block ends at the first blank line (LF or CRLF). A "Status"
// header sets the status from its first three digits; without one the
// status is 200. Output with no blank line at all is returned whole as the
// body with status 200.
func ParseResponse(out []byte) (*Response, error) {
	headerEnd, bodyStart := findHeaderEnd(out)
	if headerEnd < 0 {
		return &Response{Status: http.StatusOK, Body: out}, nil
	}

	resp := &Response{Status: http.StatusOK, Body: out[bodyStart:]}

	block := strings.TrimRight(string(out[:headerEnd]), "\r\n")
	if block == "" {
		return resp, nil
	}

	for _, line := range strings.Split(block, "\n") {
		line = strings.TrimSuffix(line, "\r")

		name, value, ok := strings.Cut(line, ":")
		name = strings.TrimSpace(name)
		if !ok || name == "" {
			return nil, &xerrors.ProtocolError{Reason: "missing header separator", Line: line}
		}
		value = strings.TrimLeft(value, " \t")

		if strings.EqualFold(name, "Status") {
			status, err := parseStatus(value)
			if err != nil {
				return nil, err
			}
			resp.Status = status
			continue
		}

		resp.Header = append(resp.Header, HeaderField{Name: name, Value: value})
	}

	return resp, nil
}

// findHeaderEnd returns the offset of the first blank line and the offset
// just past it, or -1, -1 when there is none.
func findHeaderEnd(out []byte) (int, int) {
	pos := 0
	for pos < len(out) {
		idx := bytes.IndexByte(out[pos:], '\n')
		if idx < 0 {
			return -1, -1
		}
		line := out[pos : pos+idx]
		if len(line) == 0 || (len(line) == 1 && line[0] == '\r') {
			return pos, pos + idx + 1
		}
		pos += idx + 1
	}
	return -1, -1
}

func parseStatus(value string) (int, error) {
	if len(value) < 3 {
		return 0, &xerrors.ProtocolError{Reason: "status too short", Line: "Status: " + value}
	}
	digits := value[:3]
	for i := 0; i < len(digits); i++ {
		if digits[i] < '0' || digits[i] > '9' {
			return 0, &xerrors.ProtocolError{Reason: "status is not numeric", Line: "Status: " + value}
		}
	}
	code, _ := strconv.Atoi(digits)
	// 1xx is not a final status.
	if code < 200 {
		return 0, &xerrors.ProtocolError{Reason: "status out of range", Line: "Status: " + value}
	}
	return code, nil
}

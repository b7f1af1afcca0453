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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	xerrors "github.com/tombee/xunlei/pkg/errors"
)

func TestParseResponse_StatusAndHeaders(t *testing.T) {
	resp, err := ParseResponse([]byte("Status: 404 Not Found\r\nContent-Type: text/plain\r\n\r\nmissing"))
	require.NoError(t, err)

	assert.Equal(t, 404, resp.Status)
	assert.Equal(t, []HeaderField{{Name: "Content-Type", Value: "text/plain"}}, resp.Header)
	assert.Equal(t, "missing", string(resp.Body))
}

func TestParseResponse_NoHeaderBlock(t *testing.T) {
	resp, err := ParseResponse([]byte("hello world"))
	require.NoError(t, err)

	assert.Equal(t, 200, resp.Status)
	assert.Empty(t, resp.Header)
	assert.Equal(t, "hello world", string(resp.Body))
}

func TestParseResponse(t *testing.T) {
	tests := []struct {
		name       string
		in         string
		wantStatus int
		wantHeader []HeaderField
		wantBody   string
	}{
		{
			name:       "bare LF line endings",
			in:         "Content-Type: text/html\n\n<p>hi</p>",
			wantStatus: 200,
			wantHeader: []HeaderField{{Name: "Content-Type", Value: "text/html"}},
			wantBody:   "<p>hi</p>",
		},
		{
			name:       "duplicate headers keep order",
			in:         "Set-Cookie: a=1\r\nX-Other: y\r\nSet-Cookie: b=2\r\n\r\n",
			wantStatus: 200,
			wantHeader: []HeaderField{
				{Name: "Set-Cookie", Value: "a=1"},
				{Name: "X-Other", Value: "y"},
				{Name: "Set-Cookie", Value: "b=2"},
			},
			wantBody: "",
		},
		{
			name:       "status without reason phrase",
			in:         "Status: 302\r\nLocation: /next\r\n\r\n",
			wantStatus: 302,
			wantHeader: []HeaderField{{Name: "Location", Value: "/next"}},
		},
		{
			name:       "status name is case insensitive",
			in:         "status: 500 Oops\n\nboom",
			wantStatus: 500,
			wantBody:   "boom",
		},
		{
			name:       "leading blank line means empty header block",
			in:         "\r\nbody: not a header",
			wantStatus: 200,
			wantBody:   "body: not a header",
		},
		{
			name:       "body keeps later blank lines verbatim",
			in:         "X-A: 1\n\nline1\n\nline3\n",
			wantStatus: 200,
			wantHeader: []HeaderField{{Name: "X-A", Value: "1"}},
			wantBody:   "line1\n\nline3\n",
		},
		{
			name:       "value whitespace after colon trimmed",
			in:         "X-A:\t  spaced \r\n\r\n",
			wantStatus: 200,
			wantHeader: []HeaderField{{Name: "X-A", Value: "spaced "}},
		},
		{
			name:       "unterminated header-like output is body",
			in:         "Content-Type: text/plain\r\nno blank line",
			wantStatus: 200,
			wantBody:   "Content-Type: text/plain\r\nno blank line",
		},
		{
			name:       "empty output",
			in:         "",
			wantStatus: 200,
			wantBody:   "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, err := ParseResponse([]byte(tt.in))
			require.NoError(t, err)

			assert.Equal(t, tt.wantStatus, resp.Status)
			assert.Equal(t, tt.wantHeader, resp.Header)
			assert.Equal(t, tt.wantBody, string(resp.Body))
		})
	}
}

func TestParseResponse_ProtocolErrors(t *testing.T) {
	tests := []struct {
		name string
		in   string
	}{
		{name: "line without separator", in: "Content-Type text/plain\r\n\r\nbody"},
		{name: "empty header name", in: ": value\r\n\r\n"},
		{name: "non-numeric status", in: "Status: abc\r\n\r\n"},
		{name: "status too short", in: "Status: 20\r\n\r\n"},
		{name: "status below 100", in: "Status: 099 Odd\r\n\r\n"},
		{name: "informational status", in: "Status: 100 Continue\r\n\r\n"},
		{name: "switching protocols", in: "Status: 101 Switching Protocols\r\n\r\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, err := ParseResponse([]byte(tt.in))
			require.Error(t, err)
			assert.Nil(t, resp)

			var perr *xerrors.ProtocolError
			assert.ErrorAs(t, err, &perr)
		})
	}
}

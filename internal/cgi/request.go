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
	"io"
	"net/http"
	"slices"
	"strconv"
	"strings"

	xerrors "github.com/tombee/xunlei/pkg/errors"
)

// HeaderField is one header line. Order and duplicates are preserved.
type HeaderField struct {
	Name  string
	Value string
}

// Request is an immutable snapshot of an inbound request, taken before the
// web frontend is spawned.
type Request struct {
	Method     string
	URI        string // path and query as received
	Path       string
	RawQuery   string
	Proto      string
	RemoteAddr string
	Header     []HeaderField

	// Body is nil when the request carried no body.
	Body []byte
}

// NewRequest buffers r into a Request. The Host header, which net/http
// moves out of r.Header, is put back first. When a body is buffered but the
// client sent no Content-Length (chunked upload), one is synthesized so the
// child knows how much to read.
func NewRequest(r *http.Request) (*Request, error) {
	req := &Request{
		Method:     r.Method,
		URI:        r.URL.RequestURI(),
		Path:       r.URL.Path,
		RawQuery:   r.URL.RawQuery,
		Proto:      r.Proto,
		RemoteAddr: r.RemoteAddr,
	}
	// Keep the raw origin-form target so the child sees the client's
	// encoding; an absolute-form target falls back to path and query.
	if strings.HasPrefix(r.RequestURI, "/") {
		req.URI = r.RequestURI
	}
	if req.Proto == "" {
		req.Proto = "HTTP/1.1"
	}

	if r.Host != "" {
		req.Header = append(req.Header, HeaderField{Name: "Host", Value: r.Host})
	}
	names := make([]string, 0, len(r.Header))
	for name := range r.Header {
		names = append(names, name)
	}
	slices.Sort(names)
	for _, name := range names {
		for _, value := range r.Header[name] {
			req.Header = append(req.Header, HeaderField{Name: name, Value: value})
		}
	}

	if r.Body != nil && r.Body != http.NoBody && r.ContentLength != 0 {
		body, err := io.ReadAll(r.Body)
		if err != nil {
			return nil, &xerrors.IOError{Op: "read request body", Cause: err}
		}
		req.Body = body
		if r.Header.Get("Content-Length") == "" {
			req.Header = append(req.Header, HeaderField{Name: "Content-Length", Value: strconv.Itoa(len(body))})
		}
	}

	return req, nil
}

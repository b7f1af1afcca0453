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
	"maps"
	"slices"
	"strings"
)

// proxyHeader is never forwarded as HTTP_PROXY (httpoxy).
const proxyHeader = "Proxy"

// Environment maps CGI variable names to values for one invocation.
type Environment map[string]string

// List renders the environment as sorted KEY=VALUE pairs for exec.
func (e Environment) List() []string {
	keys := slices.Sorted(maps.Keys(e))
	out := make([]string, 0, len(keys))
	for _, k := range keys {
		out = append(out, k+"="+e[k])
	}
	return out
}

// ServerMeta describes the gateway itself.
type ServerMeta struct {
	// Port is the listening port reported as SERVER_PORT.
	Port string

	// Software is reported as SERVER_SOFTWARE.
	Software string
}

// Build assembles the CGI/1.1 environment for req on top of static.
//
// Header names become HTTP_<NAME> with dashes turned into underscores.
// Names that already contain an underscore are dropped, so X_Forwarded_For
// can never shadow X-Forwarded-For. Empty values are skipped. When the same
// name appears more than once, in any letter case, the last non-empty value
// wins. Content-Type and Content-Length are also exported without the
// HTTP_ prefix.
func Build(req *Request, static map[string]string, meta ServerMeta) Environment {
	env := make(Environment, len(static)+len(req.Header)+16)
	maps.Copy(env, static)

	env["GATEWAY_INTERFACE"] = "CGI/1.1"
	if meta.Software != "" {
		env["SERVER_SOFTWARE"] = meta.Software
	}
	env["SERVER_PROTOCOL"] = req.Proto
	env["SERVER_PORT"] = meta.Port
	env["REQUEST_METHOD"] = req.Method
	env["QUERY_STRING"] = req.RawQuery
	env["REQUEST_URI"] = req.URI
	env["PATH_INFO"] = req.Path
	env["SCRIPT_NAME"] = "."
	env["SCRIPT_FILENAME"] = req.Path
	// No virtual hosts: the peer address doubles as the server name.
	env["REMOTE_ADDR"] = req.RemoteAddr
	env["SERVER_NAME"] = req.RemoteAddr

	for _, h := range req.Header {
		if h.Value == "" || strings.EqualFold(h.Name, proxyHeader) || strings.Contains(h.Name, "_") {
			continue
		}
		env[headerVar(h.Name)] = h.Value

		switch {
		case strings.EqualFold(h.Name, "Content-Type"):
			env["CONTENT_TYPE"] = h.Value
		case strings.EqualFold(h.Name, "Content-Length"):
			env["CONTENT_LENGTH"] = h.Value
		}
	}

	return env
}

func headerVar(name string) string {
	return "HTTP_" + strings.ToUpper(strings.ReplaceAll(name, "-", "_"))
}

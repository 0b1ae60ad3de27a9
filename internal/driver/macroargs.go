// Copyright 2022 gorse Project Authors
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

package driver

import (
	"strings"

	"github.com/clrx-go/gcnasm/internal/input"
)

// paramSpec is one parsed `.macro` parameter declaration: a bare name, a
// `name:vararg` catch-all (binds every remaining invocation argument joined
// by ", "), or a `name=default` with a fallback text used when the caller
// omits that argument.
type paramSpec struct {
	name     string
	vararg   bool
	def      string
	hasDef   bool
}

func parseParamSpec(spec string) paramSpec {
	spec = strings.TrimSpace(spec)
	if i := strings.IndexByte(spec, '='); i >= 0 {
		return paramSpec{name: strings.TrimSpace(spec[:i]), def: strings.TrimSpace(spec[i+1:]), hasDef: true}
	}
	if i := strings.Index(spec, ":vararg"); i >= 0 {
		return paramSpec{name: strings.TrimSpace(spec[:i]), vararg: true}
	}
	return paramSpec{name: spec}
}

// bindMacroArgs maps a `.macro` call's comma-separated invocation arguments
// onto its declared parameter list: positional binding in order, a trailing
// `:vararg` parameter absorbing every remaining argument joined by ", ",
// and declared defaults filling in arguments the caller omitted.
func bindMacroArgs(paramSpecs []string, invocation []string) map[string]string {
	args := map[string]string{}
	i := 0
	for _, raw := range paramSpecs {
		p := parseParamSpec(raw)
		switch {
		case p.vararg:
			rest := []string{}
			if i < len(invocation) {
				rest = invocation[i:]
			}
			args[p.name] = strings.Join(rest, ", ")
			i = len(invocation)
		case i < len(invocation):
			args[p.name] = strings.TrimSpace(invocation[i])
			i++
		case p.hasDef:
			args[p.name] = p.def
		default:
			args[p.name] = ""
		}
	}
	return args
}

// splitArgs splits a macro invocation's argument text into tokens using
// the same quoting rules input.ParseArgs applies to .irp value lists.
func splitArgs(s string, alternate bool) []string {
	return input.ParseArgs(s, alternate)
}

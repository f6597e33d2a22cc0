// Copyright Consensys Software Inc.
//
// Licensed under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with
// the License. You may obtain a copy of the License at
//
// http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on
// an "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied. See the License for the
// specific language governing permissions and limitations under the License.
//
// SPDX-License-Identifier: Apache-2.0
package preparse

import (
	"fmt"
	"strconv"
	"strings"
)

// semver is a bare X.Y.Z version triple.
type semver [3]int

func parseSemver(s string) (semver, error) {
	s = strings.TrimPrefix(s, "v")
	parts := strings.Split(s, ".")

	var v semver

	for i := 0; i < 3; i++ {
		if i >= len(parts) {
			break
		}

		n, err := strconv.Atoi(strings.TrimSpace(parts[i]))
		if err != nil {
			return v, fmt.Errorf("invalid version component %q", parts[i])
		}

		v[i] = n
	}

	return v, nil
}

func (v semver) cmp(o semver) int {
	for i := 0; i < 3; i++ {
		if v[i] != o[i] {
			if v[i] < o[i] {
				return -1
			}

			return 1
		}
	}

	return 0
}

// clause is a single "<op><version>" PEP440-style comparison.
type clause struct {
	op  string
	ver semver
}

func (c clause) matches(v semver) bool {
	cmp := v.cmp(c.ver)

	switch c.op {
	case "==":
		return cmp == 0
	case "!=":
		return cmp != 0
	case ">=":
		return cmp >= 0
	case "<=":
		return cmp <= 0
	case ">":
		return cmp > 0
	case "<":
		return cmp < 0
	case "~=":
		// Compatible release: same major.minor, >= the given patch (spec
		// §4.1 rewrites "^X.Y.Z" to "~=X.Y.Z" before parsing).
		return v[0] == c.ver[0] && v[1] == c.ver[1] && v[2] >= c.ver[2]
	default:
		return false
	}
}

var specOperators = []string{"==", "!=", ">=", "<=", "~=", ">", "<"}

// parseSpecifier parses a comma-separated set of PEP440-style clauses. A
// bare "X.Y.Z" (no leading operator) is treated as "==X.Y.Z" (spec §4.1); a
// leading "^X.Y.Z" is rewritten to "~=X.Y.Z" first.
func parseSpecifier(spec string) ([]clause, error) {
	spec = strings.TrimSpace(spec)
	if spec == "" {
		return nil, fmt.Errorf("version specification cannot be empty")
	}

	if strings.HasPrefix(spec, "^") {
		spec = "~=" + spec[1:]
	} else if isBareVersionStart(spec) {
		spec = "==" + spec
	}

	var clauses []clause

	for _, part := range strings.Split(spec, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}

		op, rest := splitOperator(part)
		if op == "" {
			return nil, fmt.Errorf("version specification %q is not a valid PEP440 specifier", spec)
		}

		ver, err := parseSemver(rest)
		if err != nil {
			return nil, fmt.Errorf("version specification %q is not a valid PEP440 specifier", spec)
		}

		clauses = append(clauses, clause{op: op, ver: ver})
	}

	if len(clauses) == 0 {
		return nil, fmt.Errorf("version specification %q is not a valid PEP440 specifier", spec)
	}

	return clauses, nil
}

func isBareVersionStart(s string) bool {
	return len(s) > 0 && (s[0] == 'v' || (s[0] >= '0' && s[0] <= '9'))
}

func splitOperator(part string) (op, rest string) {
	for _, o := range specOperators {
		if strings.HasPrefix(part, o) {
			return o, strings.TrimSpace(part[len(o):])
		}
	}

	return "", part
}

// satisfies reports whether compilerVersion (an "X.Y.Z" string) is
// compatible with the given PEP440-style specifier string.
func satisfies(spec string, compilerVersion string) (bool, error) {
	clauses, err := parseSpecifier(spec)
	if err != nil {
		return false, err
	}

	cv, err := parseSemver(compilerVersion)
	if err != nil {
		return false, err
	}

	for _, c := range clauses {
		if !c.matches(cv) {
			return false, nil
		}
	}

	return true, nil
}

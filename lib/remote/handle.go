// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package remote

import (
	"fmt"
	"strings"
)

// FullHandle scopes cache traffic to an account and project.
type FullHandle struct {
	Account string
	Project string
}

// ParseFullHandle parses "account/project".
func ParseFullHandle(value string) (FullHandle, error) {
	account, project, found := strings.Cut(value, "/")
	if !found || account == "" || project == "" || strings.Contains(project, "/") {
		return FullHandle{}, fmt.Errorf("invalid full handle %q: expected account/project", value)
	}
	return FullHandle{Account: account, Project: project}, nil
}

func (h FullHandle) String() string {
	return h.Account + "/" + h.Project
}

// SPDX-License-Identifier: MPL-2.0

package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
)

// ErrPluginRepoURL is the sentinel error wrapped by PluginRepoURLError.
var ErrPluginRepoURL = errors.New("cannot derive plugin name from repository URL")

// PluginRepoURLError is returned when a plugin repository URL does not yield
// a usable plugin name.
type PluginRepoURLError struct {
	URL string
}

// Error implements the error interface.
func (e *PluginRepoURLError) Error() string {
	return fmt.Sprintf("cannot derive plugin name from repository URL %q", e.URL)
}

// Unwrap returns ErrPluginRepoURL so callers can use errors.Is for programmatic detection.
func (e *PluginRepoURLError) Unwrap() error { return ErrPluginRepoURL }

// PluginNameFromRepo derives the plugin name from a plugin repository URL:
// the URL path with the leading slash and a trailing ".git" suffix stripped.
// For https://github.com/acme/plugin-x.git the name is "acme/plugin-x".
// A URL without a host or with an empty path is rejected rather than
// guessed at.
func PluginNameFromRepo(rawURL string) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", &PluginRepoURLError{URL: rawURL}
	}

	name := strings.Trim(strings.TrimSuffix(u.Path, ".git"), "/")
	if u.Host == "" || name == "" {
		return "", &PluginRepoURLError{URL: rawURL}
	}

	return name, nil
}

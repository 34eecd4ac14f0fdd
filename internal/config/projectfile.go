// SPDX-License-Identifier: MPL-2.0

package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/pelletier/go-toml/v2"
)

// ErrProjectFile is the sentinel error wrapped by ProjectFileError.
var ErrProjectFile = errors.New("unreadable project configuration file")

// ProjectFileError is returned when the project configuration file exists
// but cannot be read or parsed.
type ProjectFileError struct {
	Path string
	Err  error
}

// Error implements the error interface.
func (e *ProjectFileError) Error() string {
	return fmt.Sprintf("project configuration file %s: %v", e.Path, e.Err)
}

// Unwrap returns ErrProjectFile so callers can use errors.Is for programmatic detection.
func (e *ProjectFileError) Unwrap() error { return ErrProjectFile }

// ProjectImage reads the provisioner_image field from the project
// configuration file at path. A missing file or a file without the field is
// not an error: the field is simply reported as unset. The file is parsed as
// structured key/value assignments; unrelated keys are ignored.
func ProjectImage(path string) (string, bool, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return "", false, nil
	}
	if err != nil {
		return "", false, &ProjectFileError{Path: path, Err: err}
	}

	var fields struct {
		ProvisionerImage string `toml:"provisioner_image"`
	}
	if err := toml.Unmarshal(data, &fields); err != nil {
		return "", false, &ProjectFileError{Path: path, Err: err}
	}

	if fields.ProvisionerImage == "" {
		return "", false, nil
	}
	return fields.ProvisionerImage, true, nil
}

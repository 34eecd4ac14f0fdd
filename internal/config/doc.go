// SPDX-License-Identifier: MPL-2.0

// Package config resolves the effective kn configuration for one invocation.
//
// Resolution order, lowest to highest precedence: built-in defaults, the
// project configuration file's provisioner image field, KN_* environment
// variables, a preset bundle, explicit command-line flags. A later source
// overwrites an earlier one only when it supplies a non-empty value.
package config

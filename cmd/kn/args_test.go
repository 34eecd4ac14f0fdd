// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"reflect"
	"testing"
)

func TestSplitArgs(t *testing.T) {
	tests := []struct {
		name      string
		args      []string
		wantFlags []string
		wantRest  []string
	}{
		{
			name:      "no arguments",
			args:      nil,
			wantFlags: nil,
			wantRest:  nil,
		},
		{
			name:      "bare subcommand",
			args:      []string{"apply"},
			wantFlags: nil,
			wantRest:  []string{"apply"},
		},
		{
			name:      "leading flags before subcommand",
			args:      []string{"-b", "feature/obs", "-i", "kubenow/provisioners:dev", "apply"},
			wantFlags: []string{"-b", "feature/obs", "-i", "kubenow/provisioners:dev"},
			wantRest:  []string{"apply"},
		},
		{
			name:      "rb shorthand rewritten to long form",
			args:      []string{"-rb", "devel", "apply"},
			wantFlags: []string{"--plugin-repo-branch", "devel"},
			wantRest:  []string{"apply"},
		},
		{
			name:      "rb shorthand with equals value",
			args:      []string{"-rb=devel", "apply"},
			wantFlags: []string{"--plugin-repo-branch=devel"},
			wantRest:  []string{"apply"},
		},
		{
			name:      "tool flags after subcommand are opaque",
			args:      []string{"-b", "master", "kubectl", "get", "pods", "-o", "wide"},
			wantFlags: []string{"-b", "master"},
			wantRest:  []string{"kubectl", "get", "pods", "-o", "wide"},
		},
		{
			name:      "boolean verbose flag consumes no value",
			args:      []string{"-v", "version"},
			wantFlags: []string{"-v"},
			wantRest:  []string{"version"},
		},
		{
			name:      "equals form keeps value attached",
			args:      []string{"--branch=obs", "apply"},
			wantFlags: []string{"--branch=obs"},
			wantRest:  []string{"apply"},
		},
		{
			name:      "double dash terminates the flag region",
			args:      []string{"-b", "master", "--", "bash", "-c", "ls"},
			wantFlags: []string{"-b", "master"},
			wantRest:  []string{"bash", "-c", "ls"},
		},
		{
			name:      "help is handed through untouched",
			args:      []string{"--help"},
			wantFlags: nil,
			wantRest:  []string{"--help"},
		},
		{
			name:      "unknown flag stays in the flag region for pflag to reject",
			args:      []string{"--bogus", "apply"},
			wantFlags: []string{"--bogus"},
			wantRest:  []string{"apply"},
		},
		{
			name:      "same flag repeated keeps both occurrences",
			args:      []string{"-b", "a", "-b", "b", "apply"},
			wantFlags: []string{"-b", "a", "-b", "b"},
			wantRest:  []string{"apply"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gotFlags, gotRest := splitArgs(tt.args)
			if !reflect.DeepEqual(gotFlags, tt.wantFlags) {
				t.Errorf("flags: expected %v, got %v", tt.wantFlags, gotFlags)
			}
			if !reflect.DeepEqual(gotRest, tt.wantRest) {
				t.Errorf("rest: expected %v, got %v", tt.wantRest, gotRest)
			}
		})
	}
}

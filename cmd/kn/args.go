// SPDX-License-Identifier: MPL-2.0

package cmd

import "strings"

// leadingValueFlags maps each recognized option flag token to whether it
// consumes the following token as its value. Tokens not listed here are
// passed through for pflag to reject.
var leadingValueFlags = map[string]bool{
	"-p": true, "--preset": true,
	"-i": true, "--docker-image": true,
	"-b": true, "--branch": true,
	"-r": true, "--plugin-repo": true,
	"-rb": true, "--plugin-repo-branch": true,
	"-v": false, "--verbose": false,
}

// splitArgs separates the leading option flags from the subcommand and its
// pass-through arguments. Scanning stops at the first token that does not
// begin with a dash; that token is the subcommand and everything after it is
// opaque. The -rb shorthand is rewritten to --plugin-repo-branch here, since
// pflag shorthands are single characters.
//
// Help and version requests terminate the leading region too so Cobra can
// handle them itself.
func splitArgs(args []string) (flags, rest []string) {
	for i := 0; i < len(args); i++ {
		tok := args[i]

		if tok == "--" {
			return flags, args[i+1:]
		}
		if !strings.HasPrefix(tok, "-") {
			return flags, args[i:]
		}

		name, value, hasValue := strings.Cut(tok, "=")
		if name == "-h" || name == "--help" || name == "--version" {
			return flags, args[i:]
		}
		if name == "-rb" {
			name = "--plugin-repo-branch"
		}

		if hasValue {
			flags = append(flags, name+"="+value)
			continue
		}

		flags = append(flags, name)
		if leadingValueFlags[name] && i+1 < len(args) {
			i++
			flags = append(flags, args[i])
		}
	}
	return flags, nil
}

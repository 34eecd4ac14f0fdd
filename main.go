// SPDX-License-Identifier: MPL-2.0

package main

import cmd "github.com/kubenow/kn/cmd/kn"

func main() {
	cmd.Execute()
}

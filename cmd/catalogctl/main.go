// Command catalogctl queries the gem inventory from a terminal. It drives the
// same catalog controller as the web grids, so filters, paging and sorting
// behave exactly as they do in the admin table.
package main

import (
	"os"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

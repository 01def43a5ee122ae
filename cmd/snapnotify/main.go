// snapnotify detects new screenshots on the clipboard or in the screenshots
// folder and announces each one exactly once.
package main

import (
	"os"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

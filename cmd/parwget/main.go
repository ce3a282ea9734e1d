// Command parwget is a resumable, segmented HTTP(S) downloader with adaptive
// parallelism and recursive same-host mirroring.
package main

import (
	"os"

	"github.com/kbarnes-io/parwget/internal/cli"
)

var version = "dev"

func main() {
	os.Exit(cli.Execute(version))
}

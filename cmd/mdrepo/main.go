// Command mdrepo administers a metadata repository: contexts, entries,
// lists, access control and quotas over an RDF statement store.
package main

import (
	"fmt"
	"os"

	"github.com/roach88/mdrepo/internal/cli"
)

func main() {
	err := cli.NewRootCommand().Execute()
	if err != nil {
		fmt.Fprintln(os.Stderr, "mdrepo:", err)
	}
	os.Exit(cli.GetExitCode(err))
}

package verflag

import (
	"fmt"
	"os"

	"github.com/spf13/pflag"
	"opcbridge/pkg/version"
)

var versionFlag = false

func AddFlags(fs *pflag.FlagSet) {
	fs.BoolVar(&versionFlag, "version", versionFlag, "Print version information and quit")
}

// PrintAndExitIfRequested checks the --version flag and, if set, prints the
// version and exits.
func PrintAndExitIfRequested() {
	if versionFlag {
		fmt.Printf("opcbridge %s\n", version.Get())
		os.Exit(0)
	}
}

// import-service is the regatta schedule import backend.
//
// Usage:
//
//	import-service serve
//	import-service migrate
//	import-service stage --file schedule.yaml [--kind schedule|documents] [--addr host:port]
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

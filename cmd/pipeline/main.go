// Command pipeline runs the daily e-commerce pipeline: ingest the Olist
// files into the staging schema, then run and test the dbt project. Each
// phase is retried a fixed number of times with a fixed delay.
package main

import (
	"fmt"
	"os"

	"ecomstaging/internal/config"
)

func main() {
	if err := config.LoadDotEnv(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	os.Exit(execute(newRootCmd(os.Getenv), os.Args[1:]))
}

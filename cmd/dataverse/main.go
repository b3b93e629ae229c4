// Copyright 2025 Magnus Pierre
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


// Command dataverse adds custom columns and scenarios to tabular data sets
// and evaluates formulas against them.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
)

const usage = `dataverse adds formula columns and perturbation scenarios to data sets.

Usage:
  dataverse apply -profile p.yaml -in Sales=sales.csv [-in Name=path ...] [-out bundle.zip] [-format zip|csv|parquet|json]
  dataverse validate [-columns A,B] "expression"
  dataverse repl -in data.csv [-seed 42] [-rows 10]

Run "dataverse <command> -h" for the flags of a command.
`

var errUsage = errors.New("unknown command")

func main() {
	log.SetFlags(0)
	log.SetPrefix("dataverse: ")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	err := run(ctx, os.Args[1:], os.Stdin, os.Stdout)
	stop()
	switch {
	case err == nil, errors.Is(err, flag.ErrHelp):
	case errors.Is(err, errUsage):
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	default:
		log.Print(err)
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string, stdin io.Reader, stdout io.Writer) error {
	if len(args) == 0 {
		return errUsage
	}
	switch args[0] {
	case "apply":
		return runApply(ctx, args[1:], stdout)
	case "validate":
		return runValidate(args[1:], stdout)
	case "repl":
		return runREPL(ctx, args[1:], stdin, stdout)
	case "help", "-h", "-help", "--help":
		fmt.Fprint(stdout, usage)
		return nil
	}
	return fmt.Errorf("%w %q", errUsage, args[0])
}

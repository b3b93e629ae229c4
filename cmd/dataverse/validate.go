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


package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"strings"

	"github.com/magpierre/dataverse/formula"
)

var errRejected = errors.New("expression rejected")

func runValidate(args []string, stdout io.Writer) error {
	fs := flag.NewFlagSet("validate", flag.ContinueOnError)
	fs.SetOutput(stdout)
	columns := fs.String("columns", "", "comma-separated column names the expression may use")
	if err := fs.Parse(args); err != nil {
		return err
	}
	expr := strings.Join(fs.Args(), " ")
	if strings.TrimSpace(expr) == "" {
		return fmt.Errorf("validate: missing expression")
	}

	var cols []string
	for _, c := range strings.Split(*columns, ",") {
		if c = strings.TrimSpace(c); c != "" {
			cols = append(cols, c)
		}
	}

	err := formula.Validate(expr, cols)
	if err == nil {
		fmt.Fprintln(stdout, "ok")
		return nil
	}
	fmt.Fprintf(stdout, "rejected: %v\n", err)
	var rej *formula.RejectionError
	if errors.As(err, &rej) && rej.Offset >= 0 && rej.Offset <= len(expr) {
		fmt.Fprintf(stdout, "  %s\n  %s^\n", expr, strings.Repeat(" ", len([]rune(expr[:rej.Offset]))))
	}
	return errRejected
}

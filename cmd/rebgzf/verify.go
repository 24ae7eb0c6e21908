// Copyright 2020 Cosmos Nicolaou. All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

package main

import (
	"context"
	"fmt"
	"os"

	"github.com/nh13/rebgzf/internal/verify"
)

type verifyFlags struct {
	CommonFlags
}

func runVerify(ctx context.Context, values interface{}, args []string) error {
	f, err := os.Open(args[0])
	if err != nil {
		return err
	}
	defer f.Close()

	report := verify.Walk(f)
	fmt.Printf("%s: %d blocks, %d uncompressed bytes\n",
		args[0], report.BlockCount, report.TotalUncompressedSize)

	return report.Errs.Err()
}

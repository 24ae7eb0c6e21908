// Copyright 2020 Cosmos Nicolaou. All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

package main

import (
	"context"
	"fmt"
	"os"

	"github.com/nh13/rebgzf/internal/bgzf"
)

type detectFlags struct {
	CommonFlags
	Strict bool `subcmd:"strict,false,'walk every block header instead of only the first'"`
}

func runDetect(ctx context.Context, values interface{}, args []string) error {
	cl := values.(*detectFlags)

	f, err := os.Open(args[0])
	if err != nil {
		return err
	}
	defer f.Close()

	if !cl.Strict {
		ok, err := bgzf.IsBGZF(f)
		if err != nil {
			return err
		}
		fmt.Println(ok)
		return nil
	}

	v, err := bgzf.ValidateStrict(f)
	if err != nil {
		return err
	}
	fmt.Printf("%v (%d blocks, %d uncompressed bytes)\n",
		v.IsValidBGZF, v.BlockCount, v.TotalUncompressedSize)
	return nil
}

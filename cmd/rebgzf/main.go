// Copyright 2020 Cosmos Nicolaou. All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

// Command rebgzf converts gzip files into BGZF (Blocked GZip Format)
// and inspects BGZF files, without needing to fully decompress and
// recompress the underlying data.
package main

import (
	"context"

	"cloudeng.io/cmdutil/subcmd"
)

// CommonFlags are shared by every subcommand.
type CommonFlags struct {
	Verbose bool `subcmd:"verbose,false,verbose debug/trace information"`
}

var cmdSet *subcmd.CommandSet

func init() {
	transcodeCmd := subcmd.NewCommand("transcode",
		subcmd.MustRegisterFlagStruct(&transcodeFlags{}, nil, nil),
		runTranscode, subcmd.ExactlyNumArguments(1))
	transcodeCmd.Document(`convert a gzip file to BGZF (Blocked GZip Format). ` +
		`Reads from the named file, writes to --output or stdout.`)

	verifyCmd := subcmd.NewCommand("verify",
		subcmd.MustRegisterFlagStruct(&verifyFlags{}, nil, nil),
		runVerify, subcmd.ExactlyNumArguments(1))
	verifyCmd.Document(`walk a BGZF file block by block, decompressing and ` +
		`checking each block's CRC32 and size without stopping at the first bad block.`)

	detectCmd := subcmd.NewCommand("detect",
		subcmd.MustRegisterFlagStruct(&detectFlags{}, nil, nil),
		runDetect, subcmd.ExactlyNumArguments(1))
	detectCmd.Document(`report whether a file is already valid BGZF.`)

	cmdSet = subcmd.NewCommandSet(transcodeCmd, verifyCmd, detectCmd)
	cmdSet.Document(`convert gzip streams to BGZF and inspect BGZF files.`)
}

func main() {
	cmdSet.MustDispatch(context.Background())
}

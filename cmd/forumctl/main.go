// forumctl is an operator tool for the pairent forum table.
//
// # Commands
//
//	forumctl list --sort popular --limit 10
//	forumctl search "teething"
//	forumctl get <qid>
//	forumctl delete <qid>
//	forumctl reconcile <qid> [--reply <rid>]
//	forumctl prune-saves <uid>
//	forumctl items <partition> [--prefix SK] [--index NAME]
//	forumctl whoami
//
// Configuration is read from the nearest pairent.yaml and PAIRENT_*
// variables. Output is one JSON document per line.
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := newRootCmd(newApp(os.Stdout, os.Stderr)).Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "forumctl: %v\n", err)
		os.Exit(1)
	}
}

package main

import (
	"os"

	"github.com/sqldiff/sqldiff/util"
)

var version = "dev"

func main() {
	util.InitSlog()
	os.Exit(run(os.Args[1:]))
}

package main

import (
	"log"

	"github.com/sjzar/chatview/cmd/chatview"
)

func main() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)
	chatview.Execute()
}

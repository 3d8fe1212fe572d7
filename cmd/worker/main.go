package main

import (
	"log"
	"os"
)

func main() {
	if len(os.Args) < 2 {
		log.Fatal("usage: worker recount")
	}

	switch os.Args[1] {
	case "recount":
		if err := RunRecount(os.Args[2:]); err != nil {
			log.Fatalf("recount: %v", err)
		}
	default:
		log.Fatalf("unknown command: %s", os.Args[1])
	}
}

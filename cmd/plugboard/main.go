package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/plugboard/plugboard/pkg/plugboard"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := plugboard.Main(ctx, os.Args[1:]); err != nil {
		log.Fatal(err)
	}
}

package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/FranksOps/listcrawl/cmd"
	"github.com/FranksOps/listcrawl/internal/listing"
)

func main() {
	if err := cmd.Execute(context.Background()); err != nil {
		if errors.Is(err, listing.ErrInvalidConfig) {
			fmt.Fprintf(os.Stderr, "invalid configuration:\n%v\n", err)
		} else {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		}
		os.Exit(1)
	}
}

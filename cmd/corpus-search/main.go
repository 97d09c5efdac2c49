package main

import (
	"os"

	"github.com/Adithya-Monish-Kumar-K/corpus-search/cmd/corpus-search/cmd"
	apperrors "github.com/Adithya-Monish-Kumar-K/corpus-search/pkg/errors"
)

func main() {
	os.Exit(apperrors.ExitCode(cmd.Execute()))
}

// Build-time tool that downloads the all-mpnet-base-v2 model to
// infrastructure/provider/models/ so binaries built with -tags embed_model
// carry it.
//
// Usage: go run ./tools/download-model [dest]
package main

import (
	"fmt"
	"os"

	"github.com/helixml/vidchat/infrastructure/provider"
)

func main() {
	dest := "infrastructure/provider/models"
	if len(os.Args) > 1 {
		dest = os.Args[1]
	}

	fmt.Printf("Downloading %s to %s...\n", provider.LocalModelRepository, dest)

	modelPath, err := provider.DownloadLocalModel(dest)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	fmt.Printf("Model downloaded to %s\n", modelPath)
}

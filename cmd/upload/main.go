// Command upload sends files to a running relay, which announces each one
// to every connected chat client.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/Tyrowin/relaychat/internal/uploader"
)

func main() {
	serverURL := flag.String("server", "http://localhost:5000", "relay base URL")
	timeout := flag.Duration("timeout", 60*time.Second, "per-file upload timeout")
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "usage: %s [flags] file...\n", os.Args[0])
		flag.PrintDefaults()
	}
	flag.Parse()

	if flag.NArg() == 0 {
		flag.Usage()
		os.Exit(2)
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))
	client := uploader.New(*serverURL, *timeout)

	failed := 0
	for _, path := range flag.Args() {
		stored, err := client.UploadFile(context.Background(), path)
		if err != nil {
			logger.Error("upload failed", "file", path, "error", err)
			failed++
			continue
		}
		logger.Info("uploaded", "file", path, "stored_as", stored)
	}

	if failed > 0 {
		os.Exit(1)
	}
}

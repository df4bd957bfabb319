// Command ocrfill uploads license and plate photos to the admin recognize
// endpoint and fills a JSON form draft with the recognized values.
//
//	ocrfill --server http://localhost:8000 --auth-token $TOKEN \
//	    --front front.jpg --plate plate.jpg --form draft.json --out filled.json
package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

type options struct {
	server    string
	endpoint  string
	authToken string
	front     string
	back      string
	plate     string
	formPath  string
	outPath   string
}

func newRootCmd() *cobra.Command {
	opts := &options{}
	cmd := &cobra.Command{
		Use:           "ocrfill",
		Short:         "Recognize driving license and plate photos into an inspection form",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd.Context(), opts, cmd.OutOrStdout(), cmd.ErrOrStderr())
		},
	}

	f := cmd.Flags()
	f.StringVar(&opts.server, "server", envOr("OCRFILL_SERVER", "http://localhost:8000"), "admin site base URL")
	f.StringVar(&opts.endpoint, "endpoint", "", "recognize endpoint path (default the record editor endpoint)")
	f.StringVar(&opts.authToken, "auth-token", os.Getenv("OCRFILL_TOKEN"), "bearer token of an OCR-enabled account")
	f.StringVar(&opts.front, "front", "", "license front page image")
	f.StringVar(&opts.back, "back", "", "license back page image")
	f.StringVar(&opts.plate, "plate", "", "plate photo")
	f.StringVar(&opts.formPath, "form", "", "JSON object with the current form values")
	f.StringVar(&opts.outPath, "out", "", "write the filled form here instead of stdout")
	return cmd
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func main() {
	_ = godotenv.Load()
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "ocrfill:", err)
		os.Exit(1)
	}
}

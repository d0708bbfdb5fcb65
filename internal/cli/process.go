package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/raphaelgruber/contractflow/internal/app"
	"github.com/spf13/cobra"
)

var (
	processSender  string
	processSubject string
)

var processCmd = &cobra.Command{
	Use:   "process <file.pdf>",
	Short: "Run one contract through the pipeline",
	Long: `Run a contract PDF through extraction, validation, routing and
persistence, and print the decision.

The file is copied into the upload directory first; the original is left
untouched.

Examples:
  contractflow process ./acme-msa.pdf
  contractflow process ./acme-msa.pdf --sender legal@acme.com --subject "MSA renewal"`,
	Args: cobra.ExactArgs(1),
	RunE: runProcess,
}

func init() {
	processCmd.Flags().StringVar(&processSender, "sender", "cli@localhost", "sender recorded with the contract")
	processCmd.Flags().StringVar(&processSubject, "subject", "", "subject recorded with the contract (default: file name)")
}

func runProcess(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	a, err := app.New(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := a.Close(closeCtx); err != nil {
			fmt.Fprintf(os.Stderr, "Warning: %v\n", err)
		}
	}()

	subject := processSubject
	if subject == "" {
		subject = filepath.Base(args[0])
	}

	path, err := copyToUploadDir(args[0], cfg.UploadDir)
	if err != nil {
		return err
	}

	result, err := a.Pipeline.Run(ctx, uuid.NewString(), processSender, subject, path)
	if err != nil {
		return fmt.Errorf("process %s: %w", args[0], err)
	}

	fmt.Fprintln(cmd.OutOrStdout(), renderResult(defaultTheme, result))
	return nil
}

// copyToUploadDir copies src to <uuid>.pdf under dir. The pipeline deletes
// its input, so it never sees the caller's file.
func copyToUploadDir(src, dir string) (string, error) {
	in, err := os.Open(src)
	if err != nil {
		return "", fmt.Errorf("open %s: %w", src, err)
	}
	defer in.Close()

	if err := os.MkdirAll(dir, 0o750); err != nil {
		return "", fmt.Errorf("create upload dir: %w", err)
	}
	dst := filepath.Join(dir, uuid.NewString()+".pdf")
	out, err := os.OpenFile(dst, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o600)
	if err != nil {
		return "", fmt.Errorf("create %s: %w", dst, err)
	}

	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		os.Remove(dst)
		return "", fmt.Errorf("copy %s: %w", src, err)
	}
	if err := out.Close(); err != nil {
		os.Remove(dst)
		return "", fmt.Errorf("write %s: %w", dst, err)
	}
	return dst, nil
}

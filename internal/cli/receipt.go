package cli

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/raniamart/storefront/internal/logger"
	"github.com/raniamart/storefront/internal/receipt"
)

// ReceiptOptions holds flags for the receipt render command.
type ReceiptOptions struct {
	*RootOptions
	Input  string
	OutDir string
	Format string
}

// NewReceiptCommand creates the receipt command group.
func NewReceiptCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "receipt",
		Short: "Work with checkout receipts",
	}
	cmd.AddCommand(newReceiptRenderCommand(&ReceiptOptions{RootOptions: rootOpts}))
	return cmd
}

func newReceiptRenderCommand(opts *ReceiptOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "render",
		Short: "Render a saved checkout confirmation into a receipt document",
		Long: `Render reads the JSON body the RaniaMart API returned for a checkout and writes the
receipt document. Rendering the same confirmation again gives the same bytes.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runReceiptRender(opts, cmd)
		},
	}

	cmd.Flags().StringVarP(&opts.Input, "in", "i", "-", "checkout confirmation JSON, - for stdin")
	cmd.Flags().StringVarP(&opts.OutDir, "out", "o", ".", "directory to write the document to")
	cmd.Flags().StringVarP(&opts.Format, "format", "f", "pdf", "document format (pdf|txt)")

	return cmd
}

func runReceiptRender(opts *ReceiptOptions, cmd *cobra.Command) error {
	format, err := receipt.ParseFormat(opts.Format)
	if err != nil {
		return err
	}

	var raw []byte
	if opts.Input == "-" {
		raw, err = io.ReadAll(cmd.InOrStdin())
	} else {
		raw, err = os.ReadFile(opts.Input)
	}
	if err != nil {
		return fmt.Errorf("reading confirmation: %w", err)
	}

	rec, err := receipt.Parse(raw)
	if err != nil {
		return err
	}
	doc, err := receipt.NewGenerator(logger.Base()).Render(rec, format)
	if err != nil {
		return err
	}

	if err := os.MkdirAll(opts.OutDir, 0o755); err != nil {
		return fmt.Errorf("creating output dir: %w", err)
	}
	path := filepath.Join(opts.OutDir, doc.Name)
	if err := os.WriteFile(path, doc.Data, 0o644); err != nil {
		return fmt.Errorf("writing receipt: %w", err)
	}

	fmt.Fprintln(cmd.OutOrStdout(), path)
	return nil
}

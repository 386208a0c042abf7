package main

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"github.com/yuanying/pdf2epub/internal/epub"
)

func newInspectCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "inspect <book.epub>",
		Short: "Validate an EPUB produced by pdf2epub and print its summary",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := epub.Open(args[0])
			if err != nil {
				return fmt.Errorf("failed to open EPUB: %w", err)
			}
			defer r.Close()

			s, err := r.Inspect()
			if err != nil {
				return fmt.Errorf("failed to inspect EPUB: %w", err)
			}
			printSummary(cmd.OutOrStdout(), s)
			return nil
		},
	}
}

func printSummary(w io.Writer, s *epub.Summary) {
	fmt.Fprintf(w, "Title:      %s\n", s.Title)
	fmt.Fprintf(w, "Identifier: %s\n", s.Identifier)
	fmt.Fprintf(w, "Date:       %s\n", s.Date)
	fmt.Fprintf(w, "Pages:      %d\n", len(s.Images))
	fmt.Fprintf(w, "Entries:    %d\n", len(s.Entries))
	for _, name := range s.Entries {
		fmt.Fprintf(w, "  %s\n", name)
	}
	if len(s.PageRefs) != len(s.Images) {
		fmt.Fprintf(w, "warning: index.html references %d pages, manifest lists %d\n", len(s.PageRefs), len(s.Images))
	}
}

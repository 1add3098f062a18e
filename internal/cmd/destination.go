package cmd

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"slices"
	"strings"

	"github.com/spf13/cobra"

	"github.com/insightdeck/insightdeck/internal/output"
)

// destination is where a command writes its rendered result: a file when
// path is set, the command's stdout otherwise.
type destination struct {
	format output.Format
	path   string
	stdout io.Writer
}

// addOutputFlags registers --output-format, --out and --out-dir.
func addOutputFlags(cmd *cobra.Command, formats ...output.Format) {
	names := make([]string, len(formats))
	for i, f := range formats {
		names[i] = string(f)
	}
	cmd.Flags().String("output-format", string(output.FormatTable), "Output format: "+strings.Join(names, "|"))
	cmd.Flags().String("out", "", "Write output to a file (default stdout)")
	cmd.Flags().String("out-dir", "", "Write output to a directory, named after the request")
}

// resolveDestination reads the output flags. With --out-dir the file is
// named <stem>.<ext> inside that directory.
func resolveDestination(cmd *cobra.Command, stem string, allowed ...output.Format) (destination, error) {
	rawFormat, _ := cmd.Flags().GetString("output-format")
	out, _ := cmd.Flags().GetString("out")
	outDir, _ := cmd.Flags().GetString("out-dir")

	format, err := output.ParseFormat(rawFormat)
	if err != nil {
		return destination{}, err
	}
	if len(allowed) > 0 && !slices.Contains(allowed, format) {
		return destination{}, fmt.Errorf("unsupported output format: %s", format)
	}

	out, outDir = strings.TrimSpace(out), strings.TrimSpace(outDir)
	if out != "" && outDir != "" {
		return destination{}, fmt.Errorf("--out and --out-dir are mutually exclusive")
	}
	if out == "-" {
		out = ""
	}
	if outDir != "" {
		out = filepath.Join(outDir, stem+"."+extensionFor(format))
	}

	return destination{format: format, path: out, stdout: cmd.OutOrStdout()}, nil
}

func (d destination) write(rendered string) error {
	if !strings.HasSuffix(rendered, "\n") {
		rendered += "\n"
	}
	if d.path == "" {
		w := d.stdout
		if w == nil {
			w = os.Stdout
		}
		_, err := io.WriteString(w, rendered)
		return err
	}

	// #nosec G301 -- output directories are user-chosen
	if err := os.MkdirAll(filepath.Dir(d.path), 0755); err != nil {
		return fmt.Errorf("create output directory: %w", err)
	}
	// #nosec G306 -- reports are not secrets
	if err := os.WriteFile(d.path, []byte(rendered), 0644); err != nil {
		return fmt.Errorf("write %s: %w", d.path, err)
	}
	return nil
}

func extensionFor(format output.Format) string {
	switch format {
	case output.FormatJSON:
		return "json"
	case output.FormatMarkdown:
		return "md"
	default:
		return "txt"
	}
}

var nonFilename = regexp.MustCompile(`[^a-z0-9._-]+`)

func sanitizeFilename(value string) string {
	clean := nonFilename.ReplaceAllString(strings.ToLower(strings.TrimSpace(value)), "-")
	clean = strings.Trim(clean, "-.")
	if clean == "" {
		return "output"
	}
	return clean
}

package main

import (
	"embed"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/nao1215/neardup/internal/config"
)

//go:embed templates/neardup.yaml
var configTemplate embed.FS

// templatePath is the path of the configuration template in configTemplate.
const templatePath = "templates/neardup.yaml"

// NewInitCmd creates the init command.
func NewInitCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write a commented neardup configuration file",
		Long: `Init writes a configuration file holding every setting with its default
value and a short explanation. Flags given to 'neardup run' still override
the file.

Examples:
  # Create .neardup in the current directory
  neardup init

  # Create the file somewhere else
  neardup init -o configs/dedup.yaml

  # Replace an existing file
  neardup init -f

  # Print the template instead of writing a file
  neardup init --stdout > my.yaml`,
		Args: cobra.NoArgs,
		RunE: runInitCmd,
	}

	cmd.Flags().StringP("output", "o", config.DefaultConfigFile,
		"Path of the configuration file to create")
	cmd.Flags().BoolP("force", "f", false,
		"Replace the file if it already exists")
	cmd.Flags().Bool("stdout", false,
		"Print the template to stdout instead of writing a file")

	return cmd
}

// runInitCmd executes the init command.
func runInitCmd(cmd *cobra.Command, _ []string) error {
	flags := cmd.Flags()
	outputPath, err := flags.GetString("output")
	if err != nil {
		return err
	}
	force, err := flags.GetBool("force")
	if err != nil {
		return err
	}
	toStdout, err := flags.GetBool("stdout")
	if err != nil {
		return err
	}

	content, err := configTemplate.ReadFile(templatePath)
	if err != nil {
		return fmt.Errorf("failed to read config template: %w", err)
	}

	out := cmd.OutOrStdout()
	if toStdout {
		_, err := out.Write(content)
		return err
	}

	if err := writeConfigTemplate(outputPath, content, force); err != nil {
		return err
	}
	printInitHints(out, outputPath)
	return nil
}

// writeConfigTemplate writes content to path, creating parent directories.
// An existing file is only replaced when force is set.
func writeConfigTemplate(path string, content []byte, force bool) error {
	if !force {
		_, err := os.Stat(path)
		if err == nil {
			return fmt.Errorf("configuration file already exists: %s (use -f to overwrite)", path)
		}
		if !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("failed to check %s: %w", path, err)
		}
	}

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0750); err != nil {
			return fmt.Errorf("failed to create directory: %w", err)
		}
	}
	if err := os.WriteFile(path, content, 0600); err != nil {
		return fmt.Errorf("failed to write configuration file: %w", err)
	}
	return nil
}

func printInitHints(out io.Writer, path string) {
	fmt.Fprintf(out, "Created configuration file: %s\n\n", path)
	fmt.Fprintln(out, "Settings worth tuning first:")
	fmt.Fprintln(out, "  num_hashes, num_bands   precision of the near-duplicate search")
	fmt.Fprintln(out, "  jaccard_threshold       how similar two documents must be")
	fmt.Fprintln(out, "  stages                  add \"quality\" to drop low-quality text")
	if path != config.DefaultConfigFile {
		fmt.Fprintf(out, "\nPass it to a run with: neardup run -c %s ...\n", path)
	}
}

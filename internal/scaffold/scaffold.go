package scaffold

import (
	"bytes"
	"embed"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"text/template"

	"github.com/grovetools/contextlang/pkg/config"
	"github.com/sirupsen/logrus"
)

//go:embed all:templates
var templatesFS embed.FS

const ExampleFileName = "contextlang_example.md"

// InitOptions controls what Init writes.
type InitOptions struct {
	Provider string
	Model    string
	Example  bool
}

// Init scaffolds a contextlang configuration in dir. It never overwrites an
// existing configuration.
func Init(dir string, opts InitOptions, logger *logrus.Logger) error {
	if opts.Provider == "" {
		opts.Provider = config.DefaultProvider
	}

	configDest := filepath.Join(dir, config.ConfigFileName)
	if _, err := os.Stat(configDest); err == nil {
		return fmt.Errorf("contextlang configuration already exists at %s", configDest)
	}

	rendered, err := renderTemplate("templates/contextlang.yml", opts)
	if err != nil {
		return err
	}
	if err := os.WriteFile(configDest, rendered, 0644); err != nil {
		return fmt.Errorf("failed to write file %s: %w", configDest, err)
	}
	logger.Infof("Created configuration file: %s", config.ConfigFileName)

	if opts.Example {
		exampleDest := filepath.Join(dir, ExampleFileName)
		if _, err := os.Stat(exampleDest); err == nil {
			logger.Warnf("%s already exists, leaving it untouched", ExampleFileName)
		} else if err := copyFileFromFS("templates/example.md", exampleDest); err != nil {
			return err
		} else {
			logger.Infof("Created example file: %s", ExampleFileName)
		}
	}

	if err := ensureGitignored(dir, "Context_Logs/"); err != nil {
		return err
	}

	logger.Info("contextlang initialized.")
	logger.Info("  Next steps: 1. Export an API key or edit " + config.ConfigFileName + ".")
	logger.Info("              2. Run 'contextlang parse' to check your directives.")
	logger.Info("              3. Run 'contextlang run' to generate code.")
	return nil
}

func renderTemplate(src string, data any) ([]byte, error) {
	content, err := templatesFS.ReadFile(src)
	if err != nil {
		return nil, fmt.Errorf("failed to read embedded file %s: %w", src, err)
	}
	tmpl, err := template.New(filepath.Base(src)).Parse(string(content))
	if err != nil {
		return nil, fmt.Errorf("failed to parse template %s: %w", src, err)
	}
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return nil, fmt.Errorf("failed to render template %s: %w", src, err)
	}
	return buf.Bytes(), nil
}

func copyFileFromFS(src, dest string) error {
	content, err := templatesFS.ReadFile(src)
	if err != nil {
		return fmt.Errorf("failed to read embedded file %s: %w", src, err)
	}
	if err := os.WriteFile(dest, content, 0644); err != nil {
		return fmt.Errorf("failed to write file %s: %w", dest, err)
	}
	return nil
}

// ensureGitignored appends entry to an existing .gitignore that lacks it.
func ensureGitignored(dir, entry string) error {
	path := filepath.Join(dir, ".gitignore")
	content, err := os.ReadFile(path)
	if err != nil {
		return nil
	}
	for _, line := range strings.Split(string(content), "\n") {
		if strings.TrimSpace(line) == entry {
			return nil
		}
	}
	if len(content) > 0 && !bytes.HasSuffix(content, []byte("\n")) {
		content = append(content, '\n')
	}
	content = append(content, []byte(entry+"\n")...)
	if err := os.WriteFile(path, content, 0644); err != nil {
		return fmt.Errorf("failed to update %s: %w", path, err)
	}
	return nil
}

package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"

	"github.com/sirupsen/logrus"
)

// Environment passed to the external program.
const (
	PromptNameEnv   = "CONTEXTLANG_PROMPT_NAME"
	SystemPromptEnv = "CONTEXTLANG_SYSTEM_PROMPT"
)

// Command runs an external program per prompt. The prompt is written to its
// stdin and its stdout is taken as the envelope. Output that is not a JSON
// object is treated as the code itself.
type Command struct {
	argv   []string
	system string
	logger *logrus.Logger
}

func NewCommand(argv []string, systemTemplate string, logger *logrus.Logger) *Command {
	return &Command{argv: argv, system: systemTemplate, logger: logger}
}

func (c *Command) Generate(ctx context.Context, prompt, promptName string) (string, error) {
	if len(c.argv) == 0 {
		return "", errors.New("no command configured")
	}

	cmd := exec.CommandContext(ctx, c.argv[0], c.argv[1:]...)
	cmd.Stdin = strings.NewReader(prompt)
	cmd.Env = append(os.Environ(),
		PromptNameEnv+"="+promptName,
		SystemPromptEnv+"="+SystemPrompt(c.system, promptName),
	)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	c.logger.Debugf("Running %s for prompt %s", c.argv[0], promptName)
	if err := cmd.Run(); err != nil {
		return "", fmt.Errorf("%s failed: %w\nOutput: %s", c.argv[0], err, strings.TrimSpace(stderr.String()))
	}

	response := StripFences(stdout.String())
	var probe map[string]json.RawMessage
	if err := json.Unmarshal([]byte(response), &probe); err != nil || probe == nil {
		return Envelope(response), nil
	}
	return response, nil
}

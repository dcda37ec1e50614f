package generation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"quill/internal/config"
	"quill/internal/logging"
	"quill/internal/services"
)

// CommandGenerator runs a configured external command per artifact kind.
// Templates may reference {brief} and {output}; the output path is chosen by
// the generator under the artifact directory.
type CommandGenerator struct {
	commands    map[string]string
	artifactDir string
	timeout     time.Duration
	logger      *slog.Logger
}

// NewCommandGenerator builds a generator from the [generation] config section.
func NewCommandGenerator(cfg *config.Config, logger *slog.Logger) *CommandGenerator {
	return &CommandGenerator{
		commands:    cfg.Generation.Commands,
		artifactDir: cfg.Paths.ArtifactDir,
		timeout:     cfg.GenerationTimeout(),
		logger:      logging.NewComponentLogger(logger, "generation"),
	}
}

// Generate runs the command configured for kind and returns the output path.
func (g *CommandGenerator) Generate(ctx context.Context, kind, brief string) (string, error) {
	template, ok := g.commands[kind]
	if !ok {
		return "", services.Wrap(services.ErrValidation, "generation", "generate",
			fmt.Sprintf("no command configured for kind %q", kind), nil)
	}

	output := filepath.Join(g.artifactDir, fmt.Sprintf("%s-%s", uuid.NewString(), kind))
	args := buildArgs(template, brief, output)
	if len(args) == 0 {
		return "", services.Wrap(services.ErrConfiguration, "generation", "generate",
			fmt.Sprintf("empty command template for kind %q", kind), nil)
	}

	runCtx := ctx
	if g.timeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, g.timeout)
		defer cancel()
	}

	g.logger.Info("running generator command",
		logging.String("kind", kind),
		logging.String("command", args[0]),
	)

	cmd := exec.CommandContext(runCtx, args[0], args[1:]...)
	combined, err := cmd.CombinedOutput()
	if err != nil {
		return "", classifyCommandError(kind, combined, err)
	}
	if _, err := os.Stat(output); err != nil {
		return "", services.Wrap(services.ErrTransient, "generation", "generate",
			fmt.Sprintf("command for kind %q produced no output at %s", kind, output), err)
	}
	return output, nil
}

func buildArgs(template, brief, output string) []string {
	fields := strings.Fields(template)
	args := make([]string, 0, len(fields))
	for _, field := range fields {
		field = strings.ReplaceAll(field, "{brief}", brief)
		field = strings.ReplaceAll(field, "{output}", output)
		args = append(args, field)
	}
	return args
}

func classifyCommandError(kind string, combined []byte, err error) error {
	if errors.Is(err, exec.ErrNotFound) {
		return services.Wrap(services.ErrConfiguration, "generation", "generate",
			fmt.Sprintf("command for kind %q not found", kind), err)
	}
	detail := strings.TrimSpace(string(combined))
	if len(detail) > 200 {
		detail = detail[:200]
	}
	msg := fmt.Sprintf("command for kind %q failed", kind)
	if detail != "" {
		msg = fmt.Sprintf("%s: %s", msg, detail)
	}
	return services.Wrap(services.ErrTransient, "generation", "generate", msg, err)
}

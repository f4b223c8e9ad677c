package config

import (
	"fmt"
	"strconv"

	"github.com/manifoldco/promptui"
)

// RunWizard runs an interactive configuration wizard and returns the
// resulting Config. It also saves the config to the given path.
func RunWizard(path string) (*Config, error) {
	fmt.Println("Welcome to docuvec! Let's configure your installation.")
	fmt.Println()

	cfg := DefaultConfig()

	// 1. Provider selection.
	providerPrompt := promptui.Select{
		Label: "Select AI provider",
		Items: []string{"google", "openai"},
	}
	_, providerStr, err := providerPrompt.Run()
	if err != nil {
		return nil, fmt.Errorf("provider selection: %w", err)
	}
	cfg.AI.Provider = ProviderType(providerStr)
	switch cfg.AI.Provider {
	case ProviderOpenAI:
		cfg.AI.Model = "gpt-4o-mini"
		cfg.AI.EmbeddingModel = "text-embedding-3-small"
		cfg.AI.EmbeddingDimensions = 1536
	}

	fmt.Printf("API keys are read from %s; the config file never stores them.\n\n",
		APIKeyEnvVar(cfg.AI.Provider))

	// 2. HTTP port.
	portPrompt := promptui.Prompt{
		Label:   "HTTP port",
		Default: strconv.Itoa(cfg.Server.Port),
		Validate: func(s string) error {
			n, err := strconv.Atoi(s)
			if err != nil || n < 1 || n > 65535 {
				return fmt.Errorf("must be a port number")
			}
			return nil
		},
	}
	portStr, err := portPrompt.Run()
	if err != nil {
		return nil, fmt.Errorf("port: %w", err)
	}
	cfg.Server.Port, _ = strconv.Atoi(portStr)

	// 3. Data directory.
	dataPrompt := promptui.Prompt{
		Label:   "Data directory (database, vector index, stored files)",
		Default: cfg.DataDir,
	}
	dataDir, err := dataPrompt.Run()
	if err != nil {
		return nil, fmt.Errorf("data dir: %w", err)
	}
	cfg.DataDir = dataDir
	cfg.Storage.Root = dataDir + "/objects"

	// 4. OCR endpoint.
	ocrPrompt := promptui.Prompt{
		Label:   "OCR engine endpoint",
		Default: cfg.OCR.Endpoint,
	}
	endpoint, err := ocrPrompt.Run()
	if err != nil {
		return nil, fmt.Errorf("ocr endpoint: %w", err)
	}
	cfg.OCR.Endpoint = endpoint

	// 5. OCR language.
	langPrompt := promptui.Prompt{
		Label:   "OCR language hint",
		Default: cfg.OCR.Language,
	}
	lang, err := langPrompt.Run()
	if err != nil {
		return nil, fmt.Errorf("ocr language: %w", err)
	}
	cfg.OCR.Language = lang

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if err := cfg.Save(path); err != nil {
		return nil, err
	}

	fmt.Printf("\nConfiguration written to %s\n", path)
	return cfg, nil
}

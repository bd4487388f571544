// Package setup registers the lite MCP server with desktop MCP clients.
package setup

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
)

// ServerName is the key the lite server is registered under
const ServerName = "snpedia-variants"

// BinaryName is the lite MCP server executable
const BinaryName = "snpedia-mcp-lite"

// ClientConfig is the desktop client configuration file structure.
// Unknown top-level keys are preserved on save.
type ClientConfig struct {
	MCPServers map[string]MCPServerConfig `json:"mcpServers"`

	extra map[string]json.RawMessage
}

// MCPServerConfig represents a single MCP server configuration.
type MCPServerConfig struct {
	Command string            `json:"command"`
	Args    []string          `json:"args,omitempty"`
	Env     map[string]string `json:"env,omitempty"`
}

// Options controls how the server entry is written.
type Options struct {
	ConfigPath string // defaults to DefaultConfigPath()
	BinaryPath string // defaults to a lookup of BinaryName
	DataDir    string // exported as SNPEDIA_DATA_DIR when set
}

// Status describes the current registration.
type Status struct {
	ConfigPath string   `json:"config_path"`
	Configured bool     `json:"configured"`
	BinaryPath string   `json:"binary_path,omitempty"`
	DataDir    string   `json:"data_dir,omitempty"`
	Issues     []string `json:"issues,omitempty"`
}

// DefaultConfigPath returns the desktop client config location for this OS.
func DefaultConfigPath() (string, error) {
	var configDir string

	switch runtime.GOOS {
	case "darwin":
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("failed to get home directory: %w", err)
		}
		configDir = filepath.Join(home, "Library", "Application Support", "Claude")
	case "linux":
		if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
			configDir = filepath.Join(xdg, "Claude")
			break
		}
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("failed to get home directory: %w", err)
		}
		configDir = filepath.Join(home, ".config", "Claude")
	case "windows":
		appData := os.Getenv("APPDATA")
		if appData == "" {
			return "", errors.New("APPDATA environment variable not set")
		}
		configDir = filepath.Join(appData, "Claude")
	default:
		return "", fmt.Errorf("unsupported operating system: %s", runtime.GOOS)
	}

	return filepath.Join(configDir, "claude_desktop_config.json"), nil
}

// LoadClientConfig reads the config file. A missing file yields an empty config.
func LoadClientConfig(path string) (*ClientConfig, error) {
	cfg := &ClientConfig{MCPServers: make(map[string]MCPServerConfig)}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	if err := json.Unmarshal(data, &cfg.extra); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}
	if raw, ok := cfg.extra["mcpServers"]; ok {
		if err := json.Unmarshal(raw, &cfg.MCPServers); err != nil {
			return nil, fmt.Errorf("failed to parse mcpServers: %w", err)
		}
		delete(cfg.extra, "mcpServers")
	}
	if cfg.MCPServers == nil {
		cfg.MCPServers = make(map[string]MCPServerConfig)
	}

	return cfg, nil
}

// SaveClientConfig writes the config file, creating its directory.
func SaveClientConfig(path string, cfg *ClientConfig) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	out := make(map[string]any, len(cfg.extra)+1)
	for k, v := range cfg.extra {
		out[k] = v
	}
	out["mcpServers"] = cfg.MCPServers

	data, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// Configure adds or replaces the lite server entry and returns the path written.
func Configure(opts Options) (string, error) {
	configPath, err := resolveConfigPath(opts.ConfigPath)
	if err != nil {
		return "", err
	}

	cfg, err := LoadClientConfig(configPath)
	if err != nil {
		return "", err
	}

	binaryPath := opts.BinaryPath
	if binaryPath == "" {
		if binaryPath, err = FindBinary(); err != nil {
			return "", fmt.Errorf("could not find server binary: %w", err)
		}
	}

	entry := MCPServerConfig{Command: binaryPath}
	if opts.DataDir != "" {
		entry.Env = map[string]string{"SNPEDIA_DATA_DIR": opts.DataDir}
	}
	cfg.MCPServers[ServerName] = entry

	if err := SaveClientConfig(configPath, cfg); err != nil {
		return "", err
	}
	return configPath, nil
}

// Remove deletes the lite server entry. It reports whether an entry existed.
func Remove(configPath string) (bool, error) {
	configPath, err := resolveConfigPath(configPath)
	if err != nil {
		return false, err
	}
	cfg, err := LoadClientConfig(configPath)
	if err != nil {
		return false, err
	}
	if _, ok := cfg.MCPServers[ServerName]; !ok {
		return false, nil
	}
	delete(cfg.MCPServers, ServerName)
	return true, SaveClientConfig(configPath, cfg)
}

// GetStatus inspects the registration and the files it points at.
func GetStatus(configPath string) (*Status, error) {
	configPath, err := resolveConfigPath(configPath)
	if err != nil {
		return nil, err
	}
	status := &Status{ConfigPath: configPath}

	cfg, err := LoadClientConfig(configPath)
	if err != nil {
		return nil, err
	}

	entry, ok := cfg.MCPServers[ServerName]
	if !ok {
		status.Issues = append(status.Issues, "server is not registered")
		return status, nil
	}

	status.Configured = true
	status.BinaryPath = entry.Command
	status.DataDir = entry.Env["SNPEDIA_DATA_DIR"]

	info, err := os.Stat(entry.Command)
	switch {
	case err != nil:
		status.Issues = append(status.Issues, fmt.Sprintf("server binary not found: %s", entry.Command))
	case info.Mode()&0111 == 0:
		status.Issues = append(status.Issues, fmt.Sprintf("server binary is not executable: %s", entry.Command))
	}

	return status, nil
}

// FindBinary looks for the lite server on PATH and in common install locations.
func FindBinary() (string, error) {
	if path, err := exec.LookPath(BinaryName); err == nil {
		return path, nil
	}

	home, _ := os.UserHomeDir()
	locations := []string{
		"./" + BinaryName,
		"./bin/" + BinaryName,
		filepath.Join(home, ".local", "bin", BinaryName),
		"/usr/local/bin/" + BinaryName,
	}
	if exe, err := os.Executable(); err == nil {
		locations = append([]string{filepath.Join(filepath.Dir(exe), BinaryName)}, locations...)
	}

	for _, loc := range locations {
		if _, err := os.Stat(loc); err == nil {
			if abs, err := filepath.Abs(loc); err == nil {
				return abs, nil
			}
			return loc, nil
		}
	}

	return "", fmt.Errorf("binary %q not found in common locations", BinaryName)
}

func resolveConfigPath(path string) (string, error) {
	if path != "" {
		return path, nil
	}
	return DefaultConfigPath()
}

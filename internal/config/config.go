// Package config loads the WindFlow orchestrator's configuration, adapted
// from internal/config/config.go's viper-plus-YAML-plus-env layering and
// its AES-CBC/PBKDF2 sensitive-field encryption scheme. The PaaS-era
// sections (backend API client, git checkout, Traefik ingress, admin panel
// sync, firewall/network-policy bookkeeping) have no home in SPEC_FULL.md
// and are replaced by sections for the orchestrator, executors, scanner,
// and WebSocket server instead; see DESIGN.md.
package config

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/viper"
	"golang.org/x/crypto/pbkdf2"
)

// Config is the root configuration for the cmd/agent composition root.
type Config struct {
	Orchestrator OrchestratorConfig `yaml:"orchestrator"`
	Docker       DockerConfig       `yaml:"docker"`
	Compose      ComposeConfig      `yaml:"compose"`
	Scanner      ScannerConfig      `yaml:"scanner"`
	WebSocket    WebSocketConfig    `yaml:"websocket"`
	Security     SecurityConfig     `yaml:"security"`
	Logging      LoggingConfig      `yaml:"logging"`
}

// OrchestratorConfig holds the retry policy and recovery-sweeper windows
// from §4.H/§4.I.
type OrchestratorConfig struct {
	DataDir            string        `yaml:"data_dir"`
	MaxRetries         int           `yaml:"max_retries"`
	InitialRetryDelay  time.Duration `yaml:"initial_retry_delay"`
	MaxRetryDelay      time.Duration `yaml:"max_retry_delay"`
	SweepInterval      time.Duration `yaml:"sweep_interval"`
	StaleAfter         time.Duration `yaml:"stale_after"`
	TimeoutAfter       time.Duration `yaml:"timeout_after"`
}

// DockerConfig configures the Docker Executor (§4.B).
type DockerConfig struct {
	Binary         string        `yaml:"binary"`
	CommandTimeout time.Duration `yaml:"command_timeout"`
	StopTimeout    time.Duration `yaml:"stop_timeout"`
}

// ComposeConfig configures the Compose Executor (§4.C).
type ComposeConfig struct {
	Binary        string        `yaml:"binary"`
	ProjectDir    string        `yaml:"project_dir"`
	DeployTimeout time.Duration `yaml:"deploy_timeout"`
	DownTimeout   time.Duration `yaml:"down_timeout"`
}

// ScannerConfig configures the Capability Scanner (§4.D).
type ScannerConfig struct {
	SSHTimeout    time.Duration `yaml:"ssh_timeout"`
	ProbeTimeout  time.Duration `yaml:"probe_timeout"`
	DockerSocket  string        `yaml:"docker_socket"`
	LibvirtSocket string        `yaml:"libvirt_socket"`
}

// WebSocketConfig configures the WebSocket Session Handler (§4.J).
type WebSocketConfig struct {
	ListenAddr  string        `yaml:"listen_addr"`
	AuthTimeout time.Duration `yaml:"auth_timeout"`
}

// SecurityConfig contains the encryption-at-rest settings reused from the
// teacher, scoped down to what the orchestrator actually stores at rest:
// rendered variable snapshots (which may contain generated secrets, §4.A)
// and session tokens.
type SecurityConfig struct {
	EncryptionKey     string `yaml:"encryption_key"`
	EncryptionKeyFile string `yaml:"encryption_key_file"`
	AuditLogEnabled   bool   `yaml:"audit_log_enabled"`
	AuditLogPath      string `yaml:"audit_log_path"`
}

// LoggingConfig contains application log output settings, independent of
// the per-deployment audit trail.
type LoggingConfig struct {
	Level      string `yaml:"level"`
	Format     string `yaml:"format"`
	Output     string `yaml:"output"`
	LogFile    string `yaml:"log_file"`
	MaxSize    int    `yaml:"max_size"`
	MaxBackups int    `yaml:"max_backups"`
	MaxAge     int    `yaml:"max_age"`
	Compress   bool   `yaml:"compress"`
}

func defaults() *Config {
	return &Config{
		Orchestrator: OrchestratorConfig{
			DataDir:           "/var/lib/windflow",
			MaxRetries:        3,
			InitialRetryDelay: 60 * time.Second,
			MaxRetryDelay:     600 * time.Second,
			SweepInterval:     2 * time.Minute,
			StaleAfter:        2 * time.Minute,
			TimeoutAfter:      60 * time.Minute,
		},
		Docker: DockerConfig{
			Binary:         "docker",
			CommandTimeout: 30 * time.Second,
			StopTimeout:    10 * time.Second,
		},
		Compose: ComposeConfig{
			Binary:        "docker",
			ProjectDir:    "/var/lib/windflow/compose",
			DeployTimeout: 300 * time.Second,
			DownTimeout:   120 * time.Second,
		},
		Scanner: ScannerConfig{
			SSHTimeout:    15 * time.Second,
			ProbeTimeout:  10 * time.Second,
			DockerSocket:  "/var/run/docker.sock",
			LibvirtSocket: "/var/run/libvirt/libvirt-sock",
		},
		WebSocket: WebSocketConfig{
			ListenAddr:  ":8090",
			AuthTimeout: 30 * time.Second,
		},
		Security: SecurityConfig{
			AuditLogEnabled: true,
			AuditLogPath:    "/var/log/windflow/audit.log",
		},
		Logging: LoggingConfig{
			Level:      "info",
			Format:     "json",
			Output:     "stdout",
			LogFile:    "/var/log/windflow/agent.log",
			MaxSize:    100,
			MaxBackups: 10,
			MaxAge:     30,
			Compress:   true,
		},
	}
}

// Load reads configuration from configPath, creating a default file on
// first run, and decrypts any sensitive fields the operator has encrypted
// at rest with Encrypt.
func Load(configPath string) (*Config, error) {
	config := defaults()

	v := viper.New()
	v.SetConfigFile(configPath)
	v.SetConfigType("yaml")
	v.SetEnvPrefix("WINDFLOW")
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok || errors.Is(err, os.ErrNotExist) {
			if err := createDefaultConfig(configPath); err != nil {
				return nil, fmt.Errorf("failed to create default config: %w", err)
			}
			return config, nil
		}
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	if err := v.Unmarshal(config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := validateConfig(config); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	if err := decryptSensitiveData(config); err != nil {
		return nil, fmt.Errorf("failed to decrypt sensitive data: %w", err)
	}

	return config, nil
}

func createDefaultConfig(configPath string) error {
	dir := filepath.Dir(configPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	defaultConfig := `# WindFlow orchestrator configuration

orchestrator:
  data_dir: "/var/lib/windflow"
  max_retries: 3
  initial_retry_delay: "60s"
  max_retry_delay: "600s"
  sweep_interval: "2m"
  stale_after: "2m"
  timeout_after: "60m"

docker:
  binary: "docker"
  command_timeout: "30s"
  stop_timeout: "10s"

compose:
  binary: "docker"
  project_dir: "/var/lib/windflow/compose"
  deploy_timeout: "300s"
  down_timeout: "120s"

scanner:
  ssh_timeout: "15s"
  probe_timeout: "10s"
  docker_socket: "/var/run/docker.sock"
  libvirt_socket: "/var/run/libvirt/libvirt-sock"

websocket:
  listen_addr: ":8090"
  auth_timeout: "30s"

security:
  encryption_key_file: "/var/lib/windflow/encryption.key"
  audit_log_enabled: true
  audit_log_path: "/var/log/windflow/audit.log"

logging:
  level: "info"
  format: "json"
  output: "stdout"
  log_file: "/var/log/windflow/agent.log"
  max_size: 100
  max_backups: 10
  max_age: 30
  compress: true
`

	if err := os.WriteFile(configPath, []byte(defaultConfig), 0600); err != nil {
		return fmt.Errorf("failed to write default config: %w", err)
	}

	return nil
}

func validateConfig(config *Config) error {
	if config.Orchestrator.MaxRetries < 0 {
		return errors.New("orchestrator.max_retries must be >= 0")
	}
	if config.Orchestrator.DataDir == "" {
		return errors.New("orchestrator.data_dir is required")
	}
	if config.WebSocket.ListenAddr == "" {
		return errors.New("websocket.listen_addr is required")
	}
	return nil
}

// decryptSensitiveData decrypts any `encrypted:`-prefixed fields. Only the
// encryption key itself is sensitive at the config layer today (rendered
// secrets live in the store, not the config file), but the hook is kept
// general so an operator can encrypt-at-rest any future field the same way.
func decryptSensitiveData(config *Config) error {
	key, err := loadEncryptionKey(config.Security.EncryptionKeyFile, config.Security.EncryptionKey)
	if err != nil {
		return fmt.Errorf("failed to load encryption key: %w", err)
	}
	if isEncrypted(config.Security.EncryptionKey) {
		decrypted, err := decrypt(config.Security.EncryptionKey, key)
		if err != nil {
			return fmt.Errorf("failed to decrypt encryption key: %w", err)
		}
		config.Security.EncryptionKey = decrypted
	}
	return nil
}

// EncryptionKey derives the AES-256 key the composition root hands to the
// store's at-rest encryption (internal/store's FileDeployments) from the
// configured key/key-file, the same derivation used for config-file
// sensitive-field encryption.
func EncryptionKey(cfg *Config) ([]byte, error) {
	return loadEncryptionKey(cfg.Security.EncryptionKeyFile, cfg.Security.EncryptionKey)
}

// DeriveKey derives an AES-256 key from a passphrase using the same PBKDF2
// parameters as the config file's sensitive-field encryption, exported for
// other at-rest encryption consumers (internal/store and its tests).
func DeriveKey(passphrase string) []byte {
	return deriveKey(passphrase)
}

// Decrypt reverses Encrypt; values without the "encrypted:" prefix are
// returned unchanged, mirroring the config loader's own tolerant decoding.
func Decrypt(value string, key []byte) (string, error) {
	return decrypt(value, key)
}

func loadEncryptionKey(keyFile, keyValue string) ([]byte, error) {
	if keyFile != "" {
		if keyData, err := os.ReadFile(keyFile); err == nil {
			return deriveKey(string(keyData)), nil
		}
	}
	if keyValue != "" {
		return deriveKey(keyValue), nil
	}
	return deriveKey("windflow-default-encryption-key"), nil
}

func deriveKey(password string) []byte {
	salt := []byte("windflow-salt")
	return pbkdf2.Key([]byte(password), salt, 100000, 32, sha256.New)
}

func isEncrypted(value string) bool {
	return len(value) > 10 && value[:10] == "encrypted:"
}

func decrypt(encryptedValue string, key []byte) (string, error) {
	if !isEncrypted(encryptedValue) {
		return encryptedValue, nil
	}

	ciphertext, err := base64.StdEncoding.DecodeString(encryptedValue[10:])
	if err != nil {
		return "", fmt.Errorf("failed to decode encrypted value: %w", err)
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return "", fmt.Errorf("failed to create cipher: %w", err)
	}

	if len(ciphertext) < aes.BlockSize {
		return "", errors.New("ciphertext too short")
	}

	iv := ciphertext[:aes.BlockSize]
	ciphertext = ciphertext[aes.BlockSize:]

	mode := cipher.NewCBCDecrypter(block, iv)
	mode.CryptBlocks(ciphertext, ciphertext)

	plaintext := removePadding(ciphertext)
	return string(plaintext), nil
}

// Encrypt encrypts a value for storage in the config file (operator
// tooling, not called from the hot path).
func Encrypt(plaintext string, key []byte) (string, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return "", fmt.Errorf("failed to create cipher: %w", err)
	}

	paddedPlaintext := addPadding([]byte(plaintext), aes.BlockSize)

	iv := make([]byte, aes.BlockSize)
	if _, err := io.ReadFull(rand.Reader, iv); err != nil {
		return "", fmt.Errorf("failed to generate IV: %w", err)
	}

	ciphertext := make([]byte, len(paddedPlaintext))
	mode := cipher.NewCBCEncrypter(block, iv)
	mode.CryptBlocks(ciphertext, paddedPlaintext)

	result := append(iv, ciphertext...)
	encoded := base64.StdEncoding.EncodeToString(result)
	return "encrypted:" + encoded, nil
}

func addPadding(data []byte, blockSize int) []byte {
	padding := blockSize - len(data)%blockSize
	padtext := make([]byte, padding)
	for i := range padtext {
		padtext[i] = byte(padding)
	}
	return append(data, padtext...)
}

func removePadding(data []byte) []byte {
	if len(data) == 0 {
		return data
	}
	padding := int(data[len(data)-1])
	if padding > len(data) {
		return data
	}
	return data[:len(data)-padding]
}

// LoadDefault loads configuration from the default location, creating it
// if necessary.
func LoadDefault() (*Config, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("failed to get home directory: %w", err)
	}

	locations := []string{
		"./.windflow.yaml",
		filepath.Join(homeDir, ".windflow.yaml"),
		"/etc/windflow/config.yaml",
	}

	for _, loc := range locations {
		if _, err := os.Stat(loc); err == nil {
			return Load(loc)
		}
	}

	return Load(filepath.Join(homeDir, ".windflow.yaml"))
}

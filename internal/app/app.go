// Package app wires configuration, storage, crypto, and the proxy core into
// a running application. It is the shared composition root for cmd/keyrelayd
// and for tests that need a fully wired stack.
package app

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/keyrelay/keyrelay/internal/clients/oauth"
	"github.com/keyrelay/keyrelay/internal/common"
	"github.com/keyrelay/keyrelay/internal/crypto"
	"github.com/keyrelay/keyrelay/internal/interfaces"
	"github.com/keyrelay/keyrelay/internal/proxy"
	"github.com/keyrelay/keyrelay/internal/storage"
)

// App holds all initialized components.
type App struct {
	Config      *common.Config
	Logger      *common.Logger
	Storage     interfaces.StorageManager
	Encryptor   *crypto.Encryptor
	Dispatcher  *proxy.Dispatcher
	StartupTime time.Time
}

// getBinaryDir returns the directory containing the executable.
func getBinaryDir() string {
	exe, err := os.Executable()
	if err != nil {
		return "."
	}
	return filepath.Dir(exe)
}

// NewApp loads configuration and initializes storage, encryption, and the
// proxy dispatcher. configPath may be empty, in which case KEYRELAY_CONFIG
// and then a keyrelay.toml next to the binary are tried.
func NewApp(configPath string) (*App, error) {
	startupStart := time.Now()

	binDir := getBinaryDir()

	if configPath == "" {
		configPath = os.Getenv("KEYRELAY_CONFIG")
	}
	if configPath == "" {
		configPath = filepath.Join(binDir, "keyrelay.toml")
		if _, err := os.Stat(configPath); os.IsNotExist(err) {
			configPath = "config/keyrelay.toml" // fallback for development
		}
	}

	config, err := common.LoadConfig(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	// Resolve relative storage path to binary directory
	if config.Storage.Path != "" && !filepath.IsAbs(config.Storage.Path) {
		config.Storage.Path = filepath.Join(binDir, config.Storage.Path)
	}

	logger := common.NewLoggerFromConfig(config.Logging)

	if missing := config.ValidateRequired(); len(missing) > 0 {
		if config.IsProduction() {
			return nil, fmt.Errorf("missing required settings: %s", strings.Join(missing, ", "))
		}
		logger.Warn().
			Strs("missing", missing).
			Msg("Running with incomplete security config - acceptable in development only")
	}

	encryptor, err := newEncryptor(config, logger)
	if err != nil {
		return nil, err
	}

	storageManager, err := storage.NewManager(logger, config, encryptor)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}

	upstreamTimeout := config.Proxy.GetUpstreamTimeout()
	tokenClient := oauth.NewClient(
		oauth.WithLogger(logger),
		oauth.WithTimeout(upstreamTimeout),
	)
	dispatcher := proxy.NewDispatcher(storageManager, tokenClient, logger, upstreamTimeout)

	a := &App{
		Config:      config,
		Logger:      logger,
		Storage:     storageManager,
		Encryptor:   encryptor,
		Dispatcher:  dispatcher,
		StartupTime: startupStart,
	}

	logger.Info().Dur("startup", time.Since(startupStart)).Msg("App initialized")

	return a, nil
}

// newEncryptor builds the secret encryptor from config. Outside production a
// missing key falls back to a derived development key so the server still
// starts; production requires real key material (enforced above).
func newEncryptor(config *common.Config, logger *common.Logger) (*crypto.Encryptor, error) {
	encryptor, err := crypto.NewEncryptorFromConfig(config.Security)
	if err == nil {
		return encryptor, nil
	}
	if config.IsProduction() {
		return nil, fmt.Errorf("failed to initialize encryption: %w", err)
	}

	logger.Warn().Err(err).Msg("Using development encryption key - stored secrets are NOT safe")
	key, derr := crypto.DeriveKey("keyrelay-dev-only", "keyrelay")
	if derr != nil {
		return nil, derr
	}
	return crypto.NewEncryptor(key)
}

// Close releases all resources held by the App.
func (a *App) Close() {
	if a.Storage != nil {
		a.Storage.Close()
		a.Storage = nil
	}
}

package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/spf13/cobra"

	"fileconv/internal/config"
	"fileconv/internal/credentials"
	"fileconv/internal/history"
	"fileconv/internal/jobs"
	"fileconv/internal/logging"
	"fileconv/internal/services"
	"fileconv/internal/session"
)

type commandContext struct {
	configFlag *string
	apiURLFlag *string

	configOnce sync.Once
	config     *config.Config
	configErr  error

	loggerOnce sync.Once
	logger     *slog.Logger

	managerOnce sync.Once
	manager     *session.Manager
}

func newCommandContext(configFlag, apiURLFlag *string) *commandContext {
	return &commandContext{
		configFlag: configFlag,
		apiURLFlag: apiURLFlag,
	}
}

func (c *commandContext) ensureConfig() (*config.Config, error) {
	c.configOnce.Do(func() {
		var path string
		if c.configFlag != nil {
			path = strings.TrimSpace(*c.configFlag)
		}
		cfg, _, _, err := config.Load(path)
		if err != nil {
			c.configErr = err
			return
		}
		if c.apiURLFlag != nil {
			if override := strings.TrimSpace(*c.apiURLFlag); override != "" {
				if err := config.ValidateBaseURL(override); err != nil {
					c.configErr = fmt.Errorf("--api-url: %w", err)
					return
				}
				cfg.API.BaseURL = strings.TrimRight(override, "/")
			}
		}
		if err := cfg.EnsureDirectories(); err != nil {
			c.configErr = err
			return
		}
		c.config = cfg
	})
	return c.config, c.configErr
}

func (c *commandContext) configValue() *config.Config {
	cfg, _ := c.ensureConfig()
	return cfg
}

func (c *commandContext) loggerValue() *slog.Logger {
	c.loggerOnce.Do(func() {
		logger, err := logging.NewFromConfig(c.configValue())
		if err != nil {
			logger = logging.NewNop()
		}
		c.logger = logger
	})
	return c.logger
}

// sessionManager returns the process-wide manager backed by the credential
// file. It does not contact the service.
func (c *commandContext) sessionManager() (*session.Manager, error) {
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, err
	}
	c.managerOnce.Do(func() {
		logger := c.loggerValue()
		c.manager = session.New(
			credentials.NewFileStore(cfg.CredentialPath(), logger),
			session.WithBaseURL(cfg.API.BaseURL),
			session.WithRequestTimeout(cfg.RequestTimeout()),
			session.WithLogger(logger),
		)
	})
	return c.manager, nil
}

// storedCredential decodes the persisted credential without contacting the
// service.
func (c *commandContext) storedCredential() (session.CredentialInfo, bool) {
	cfg, err := c.ensureConfig()
	if err != nil {
		return session.CredentialInfo{}, false
	}
	credential, ok := credentials.NewFileStore(cfg.CredentialPath(), c.loggerValue()).Load()
	if !ok {
		return session.CredentialInfo{}, false
	}
	return session.ParseCredential(credential)
}

// requireSession restores the stored credential and fails unless it is
// confirmed by the service.
func (c *commandContext) requireSession(ctx context.Context) (*session.Manager, error) {
	manager, err := c.sessionManager()
	if err != nil {
		return nil, err
	}
	snap, err := manager.Initialize(ctx)
	if err != nil {
		if errors.Is(err, services.ErrAuthorization) || errors.Is(err, services.ErrSessionEstablishment) {
			return nil, errNotLoggedIn
		}
		return nil, err
	}
	if !snap.LoggedIn() {
		return nil, errNotLoggedIn
	}
	return manager, nil
}

// openHistory returns the job ledger, or nil when history is disabled.
func (c *commandContext) openHistory() (*history.Store, error) {
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, err
	}
	if !cfg.Jobs.HistoryEnabled {
		return nil, nil
	}
	store, err := history.Open(cfg.HistoryPath(), c.loggerValue())
	if err != nil {
		return nil, fmt.Errorf("open job history: %w", err)
	}
	return store, nil
}

func (c *commandContext) jobsClient(manager *session.Manager, store *history.Store) *jobs.Client {
	opts := jobs.OptionsFromConfig(c.configValue())
	opts.Logger = c.loggerValue()
	if store != nil {
		opts.Recorder = store
	}
	return jobs.NewClient(manager, opts)
}

// withJobs runs fn with an authenticated jobs client and the ledger, which
// may be nil.
func (c *commandContext) withJobs(ctx context.Context, fn func(*jobs.Client, *history.Store) error) error {
	manager, err := c.requireSession(ctx)
	if err != nil {
		return err
	}
	store, err := c.openHistory()
	if err != nil {
		return err
	}
	if store != nil {
		defer store.Close()
	}
	return fn(c.jobsClient(manager, store), store)
}

func shouldSkipConfig(cmd *cobra.Command) bool {
	for c := cmd; c != nil; c = c.Parent() {
		if c.Annotations != nil && c.Annotations["skipConfigLoad"] == "true" {
			return true
		}
	}
	return false
}

func yesNo(value bool) string {
	if value {
		return "yes"
	}
	return "no"
}

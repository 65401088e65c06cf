package cmd

import (
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/redis/go-redis/v9"

	"github.com/nibzard/mdtasks/internal/cas"
	"github.com/nibzard/mdtasks/internal/config"
	"github.com/nibzard/mdtasks/internal/logging"
	"github.com/nibzard/mdtasks/internal/persist"
	"github.com/nibzard/mdtasks/internal/service"
	"github.com/nibzard/mdtasks/internal/session"
	"github.com/nibzard/mdtasks/internal/store"
	"github.com/nibzard/mdtasks/internal/store/azuretable"
	"github.com/nibzard/mdtasks/internal/store/github"
	"github.com/nibzard/mdtasks/internal/store/redisstore"
	"github.com/nibzard/mdtasks/internal/webhook"
)

// app holds what a command invocation builds from configuration.
type app struct {
	cfg     *config.Config
	sources *config.ConfigWithSources
	logger  *log.Logger
	stdout  io.Writer
	stderr  io.Writer

	runLog  *logging.RunLogger
	redis   *redis.Client
	github  *github.Client
	closers []func() error
}

// setupLogger builds the console logger, teed into a per-run file when
// log_file is enabled.
func (a *app) setupLogger(document string) error {
	w := a.stderr
	if a.cfg.LogFile {
		runLog, err := logging.NewRunLogger(a.cfg.LogDir, document)
		if err != nil {
			return fmt.Errorf("creating run log: %w", err)
		}
		a.runLog = runLog
		a.closers = append(a.closers, runLog.Close)
		w = io.MultiWriter(a.stderr, runLog.Writer())
	}
	a.logger = logging.NewFromConfig(w, a.cfg.LogLevel, a.cfg.LogFormat, a.cfg.LogTimestamps, a.cfg.LogCaller)
	return nil
}

func (a *app) close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil && a.logger != nil {
			a.logger.Warn("close failed", "err", err)
		}
	}
	a.closers = nil
}

// documentIdentity names the task document the configured store holds.
func documentIdentity(cfg *config.Config) (store.Identity, error) {
	if cfg.Store == config.StoreGitHub {
		loc, err := github.ParseBlobURL(cfg.GitHubPath)
		if err != nil {
			return store.Identity{}, err
		}
		return loc.Identity(), nil
	}
	name := filepath.Base(cfg.FilePath)
	if name == "." || name == string(filepath.Separator) {
		name = config.DefaultFilePath
	}
	return store.Identity{Path: name}, nil
}

// openStore builds the document store selected by cfg.Store.
func (a *app) openStore(ctx context.Context) (store.Store, store.Identity, error) {
	id, err := documentIdentity(a.cfg)
	if err != nil {
		return nil, store.Identity{}, err
	}

	switch a.cfg.Store {
	case config.StoreGitHub:
		loc, _ := github.ParseBlobURL(a.cfg.GitHubPath)
		client := github.New(ctx, a.cfg.GitHubToken, loc.Owner, loc.Repo, github.WithBaseURL(a.cfg.GitHubAPIURL))
		a.github = client
		return client, id, nil
	case config.StoreFile:
		return store.NewFile(filepath.Dir(a.cfg.FilePath)), id, nil
	case config.StoreMemory:
		return store.NewMemory(), id, nil
	case config.StoreRedis:
		client, err := a.redisClient()
		if err != nil {
			return nil, store.Identity{}, err
		}
		return redisstore.New(client, a.cfg.RedisKeyPrefix), id, nil
	case config.StoreAzureTable:
		s, err := azuretable.NewFromConnectionString(ctx, a.cfg.AzureConnectionString, a.cfg.AzureTable)
		if err != nil {
			return nil, store.Identity{}, fmt.Errorf("azure table store: %w", err)
		}
		return s, id, nil
	}
	return nil, store.Identity{}, fmt.Errorf("unknown store %q", a.cfg.Store)
}

// redisClient returns the shared client, connecting on first use.
func (a *app) redisClient() (*redis.Client, error) {
	if a.redis != nil {
		return a.redis, nil
	}
	opts, err := redisOptions(a.cfg.RedisAddr)
	if err != nil {
		return nil, err
	}
	a.redis = redis.NewClient(opts)
	a.closers = append(a.closers, a.redis.Close)
	return a.redis, nil
}

// redisOptions accepts a redis:// URL or an Azure style
// "host:port,password=...,ssl=True" connection string.
func redisOptions(conn string) (*redis.Options, error) {
	if opts, err := redis.ParseURL(conn); err == nil {
		return opts, nil
	}
	parts := strings.Split(conn, ",")
	if strings.TrimSpace(parts[0]) == "" {
		return nil, fmt.Errorf("invalid redis address %q", conn)
	}
	opts := &redis.Options{Addr: strings.TrimSpace(parts[0])}
	for _, p := range parts[1:] {
		kv := strings.SplitN(p, "=", 2)
		if len(kv) != 2 {
			continue
		}
		switch strings.ToLower(strings.TrimSpace(kv[0])) {
		case "password":
			opts.Password = kv[1]
		case "ssl":
			if strings.EqualFold(strings.TrimSpace(kv[1]), "true") {
				opts.TLSConfig = &tls.Config{}
			}
		}
	}
	return opts, nil
}

// newService wires store, coordinator and session store into a service.
func (a *app) newService(ctx context.Context) (*service.Service, store.Identity, error) {
	st, id, err := a.openStore(ctx)
	if err != nil {
		return nil, store.Identity{}, err
	}

	policy := cas.DefaultPolicy(store.IsConflict)
	policy.MaxAttempts = a.cfg.MaxAttempts
	policy.Backoff = cas.LinearBackoff(a.cfg.Backoff())
	coord := persist.New(st, id,
		persist.WithPolicy(policy),
		persist.WithLogger(a.logger),
		persist.WithDefaultTimezone(a.cfg.Timezone),
	)

	sessions, err := a.sessionStore()
	if err != nil {
		return nil, store.Identity{}, err
	}
	svc := service.New(coord,
		service.WithSessions(sessions),
		service.WithLogger(a.logger),
	)
	return svc, id, nil
}

func (a *app) sessionStore() (session.Store, error) {
	ttl, err := a.cfg.SessionTTLDuration()
	if err != nil {
		return nil, err
	}
	if a.cfg.SessionStore == config.StoreRedis {
		client, err := a.redisClient()
		if err != nil {
			return nil, err
		}
		return session.NewRedis(client, a.cfg.RedisKeyPrefix, ttl), nil
	}
	return session.NewMemory(ttl), nil
}

// newWebhook builds the push handler. It needs the GitHub store, since
// commit contents are read back through the contents API.
func (a *app) newWebhook(ctx context.Context, id store.Identity) (*webhook.Handler, error) {
	if a.github == nil {
		a.logger.Warn("webhook disabled: store is not github", "store", a.cfg.Store)
		return nil, nil
	}
	notifiers := webhook.Multi{webhook.NewLogNotifier(a.logger)}
	if a.cfg.AzureQueue != "" {
		if a.cfg.AzureConnectionString == "" {
			return nil, fmt.Errorf("azure_queue requires azure_connection_string")
		}
		q, err := webhook.NewQueueNotifierFromConnectionString(ctx, a.cfg.AzureConnectionString, a.cfg.AzureQueue)
		if err != nil {
			return nil, fmt.Errorf("notification queue: %w", err)
		}
		notifiers = append(notifiers, q)
	}
	return webhook.NewHandler(a.github, id.Path, id.Ref, notifiers, a.logger), nil
}

func defaultApp() *app {
	return &app{stdout: os.Stdout, stderr: os.Stderr}
}

package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"jamati/internal/config"
	"jamati/internal/i18n"
	"jamati/internal/kvstore"
	"jamati/internal/lecture"
	appLog "jamati/internal/log"
	"jamati/internal/notify"
	"jamati/internal/persisted"
	"jamati/internal/web"
)

// app is the wired set of components shared by every command.
type app struct {
	cfg         *config.Config
	kv          kvstore.Store
	lectures    *lecture.Store
	language    *persisted.Value[i18n.Language]
	resolver    *i18n.Resolver
	summaryTime *persisted.Value[string]
	permission  *persisted.Value[notify.Permission]
	scheduler   *notify.Scheduler
}

// openApp loads config, opens the store and builds the components. The
// translation dictionaries are not loaded; call loadTranslations.
func openApp(opts *rootOptions) (*app, error) {
	cfg, err := config.Load(opts.configPath)
	if err != nil {
		return nil, fmt.Errorf("load config %s: %w", opts.configPath, err)
	}
	if opts.logLevel != "" {
		cfg.LogLevel = opts.logLevel
	}
	if opts.dataPath != "" {
		cfg.DataPath = opts.dataPath
	}
	appLog.SetLevel(appLog.ParseLevel(cfg.LogLevel))

	if err := os.MkdirAll(filepath.Dir(cfg.DataPath), 0o755); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}
	kv, err := kvstore.OpenSQLite(cfg.DataPath)
	if err != nil {
		return nil, err
	}

	a := &app{cfg: cfg, kv: kv}
	a.lectures = lecture.NewStore(kv)
	a.language = persisted.New(kv, i18n.StorageKey, defaultLanguage(cfg.DefaultLanguage))
	a.resolver = i18n.NewResolver(a.language)
	a.summaryTime = notify.NewSummaryTimeValue(kv)
	a.permission = notify.NewPermissionValue(kv)
	a.scheduler = notify.NewScheduler(
		a.lectures,
		a.summaryTime,
		a.permission,
		notify.New(cfg.Notifier),
		a.resolver,
		notify.WithLocation(cfg.Location()),
	)

	appLog.Debug("effective config",
		"listen", cfg.Listen,
		"timezone", cfg.Timezone,
		"data_path", cfg.DataPath,
		"notifier", cfg.Notifier.Kind,
		"locales_url", cfg.LocalesURL,
		"locales_dir", cfg.LocalesDir,
	)
	return a, nil
}

// defaultLanguage resolves the configured default. "auto" matches the POSIX
// locale in LANG ("ar_SA.UTF-8") against the supported languages.
func defaultLanguage(setting string) i18n.Language {
	if setting == config.LanguageAuto {
		locale, _, _ := strings.Cut(os.Getenv("LANG"), ".")
		return i18n.Match(strings.ReplaceAll(locale, "_", "-"))
	}
	l, err := i18n.ParseLanguage(setting)
	if err != nil {
		appLog.Warn("unsupported default language; using en", "default_language", setting)
		return i18n.English
	}
	return l
}

// translationSource picks the dictionary source: URL, then directory, then
// the embedded defaults.
func (a *app) translationSource() i18n.Source {
	switch {
	case a.cfg.LocalesURL != "":
		return i18n.NewHTTPSource(a.cfg.LocalesURL, a.cfg.LocalesCacheDir)
	case a.cfg.LocalesDir != "":
		return i18n.Dir(a.cfg.LocalesDir)
	default:
		return i18n.Embedded()
	}
}

func (a *app) loadTranslations(ctx context.Context) {
	a.resolver.Load(ctx, a.translationSource())
}

func (a *app) server(opts ...web.Option) *web.Server {
	return web.NewServer(web.Deps{
		Config:      a.cfg,
		Lectures:    a.lectures,
		Resolver:    a.resolver,
		SummaryTime: a.summaryTime,
		Scheduler:   a.scheduler,
	}, opts...)
}

func (a *app) Close() {
	a.scheduler.Stop()
	a.lectures.Close()
	a.language.Close()
	a.summaryTime.Close()
	a.permission.Close()
	if err := a.kv.Close(); err != nil {
		appLog.Error("failed to close store", err)
	}
}

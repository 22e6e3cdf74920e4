package main

import (
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/Tchoumis/Projet-scripting-securise-v1/internal/adapters/archive"
	"github.com/Tchoumis/Projet-scripting-securise-v1/internal/adapters/detection"
	"github.com/Tchoumis/Projet-scripting-securise-v1/internal/adapters/input"
	"github.com/Tchoumis/Projet-scripting-securise-v1/internal/adapters/output"
	"github.com/Tchoumis/Projet-scripting-securise-v1/internal/adapters/storage"
	"github.com/Tchoumis/Projet-scripting-securise-v1/internal/app"
	"github.com/Tchoumis/Projet-scripting-securise-v1/internal/ports"
)

// components holds everything built from one Config. Close releases it in
// reverse order of construction.
type components struct {
	cfg      app.Config
	parser   *input.AuthLogParser
	detector *detection.FailureDetector
	store    *storage.EventStore
	bans     *storage.BoltBanState
	alerter  *output.Fanout
	metrics  *output.PrometheusMetrics
	health   *output.HealthChecker
	observer ports.PipelineObserver
	pipeline *app.Pipeline
	poller   *app.BanStatusPoller
	closers  []func() error
}

type buildOptions struct {
	// withBans opens the ban-state database, which takes an exclusive lock.
	withBans bool
	// stdoutAlerts also prints alerts as JSON on stdout.
	stdoutAlerts bool
}

func build(cfg app.Config, opts buildOptions) (*components, error) {
	c := &components{cfg: cfg}
	ok := false
	defer func() {
		if !ok {
			c.Close()
		}
	}()

	c.metrics = output.NewPrometheusMetrics("authwatch")
	c.health = output.NewHealthChecker(time.Now)
	c.observer = output.TeeObserver{c.metrics, c.health}

	deny, err := input.CompileDenylist(cfg.Denylist)
	if err != nil {
		return nil, err
	}
	c.parser = input.NewAuthLogParser(input.WithDenylist(deny))
	c.detector = detection.NewFailureDetector(cfg.DetectThreshold)

	index, err := storage.OpenSQLiteSink(cfg.IndexPath)
	if err != nil {
		return nil, err
	}
	c.store = storage.NewEventStore(index, storage.NewJSONSnapshot(cfg.SnapshotPath), cfg.CacheSize)
	c.closers = append(c.closers, c.store.Close)

	alerters, err := c.buildAlerters(opts.stdoutAlerts)
	if err != nil {
		return nil, err
	}
	c.alerter = output.NewFanout(c.observer, alerters...)
	c.closers = append(c.closers, c.alerter.Close)

	runner := input.ExecRunner{}
	live := input.NewFileSource(cfg.LogPath)
	var detectSource ports.LineSource = live
	if cfg.DetectSource == app.DetectSourceJournal {
		detectSource = input.NewJournalSource(runner, cfg.JournalUnit)
	}

	c.pipeline = app.NewPipeline(app.PipelineDeps{
		Source:       live,
		Parser:       c.parser,
		Store:        c.store,
		Errors:       input.NewFileErrorSink(cfg.ErrorsPath),
		DetectSource: detectSource,
		Detector:     c.detector,
		Alerter:      c.alerter,
		Rotator: archive.NewLogRotator(archive.RotatorConfig{
			LogPath:    cfg.LogPath,
			ArchiveDir: cfg.ArchiveDir,
			MaxBytes:   cfg.RotateMaxBytes,
		}, time.Now),
		Backuper: archive.NewBackuper(cfg.BackupFiles, cfg.ArchiveDir, time.Now),
		Observer: c.observer,
	})

	if opts.withBans && cfg.Bans.Enabled {
		c.bans, err = storage.OpenBoltBanState(cfg.Bans.StatePath)
		if err != nil {
			return nil, err
		}
		c.closers = append(c.closers, c.bans.Close)

		provider := input.NewFail2banProvider(input.Fail2banConfig{
			Command: cfg.Bans.Command,
			Jail:    cfg.Bans.Jail,
			Timeout: cfg.Bans.Timeout,
		}, runner)
		c.health.WatchBreaker(provider.Name(), provider.BreakerState)
		c.poller = app.NewBanStatusPoller(app.BanPollerDeps{
			Provider:     provider,
			Parse:        detection.ParseBanStatus,
			State:        c.bans,
			Store:        c.store,
			Alerter:      c.alerter,
			Observer:     c.observer,
			AlertOnClear: cfg.Bans.AlertOnClear,
			Location:     cfg.Location,
		})
	}

	ok = true
	return c, nil
}

func (c *components) buildAlerters(stdout bool) ([]ports.Alerter, error) {
	var alerters []ports.Alerter

	mailer := output.NewMailDispatcher(output.MailConfig{
		Host:       c.cfg.SMTP.Host,
		Port:       c.cfg.SMTP.Port,
		User:       c.cfg.SMTP.User,
		Password:   c.cfg.SMTP.Password,
		From:       c.cfg.SMTP.From,
		To:         c.cfg.AdminEmail,
		RequireTLS: c.cfg.SMTP.RequireTLS,
	})
	if mailer.Enabled() {
		alerters = append(alerters, mailer)
	} else {
		log.Warn().Msg("smtp.host not set, alerts will not be mailed")
	}

	if c.cfg.JournalPath != "" {
		journal, err := output.NewJSONAlerter(output.JSONAlerterConfig{FilePath: c.cfg.JournalPath})
		if err != nil {
			return nil, fmt.Errorf("open alert journal: %w", err)
		}
		alerters = append(alerters, journal)
	}

	if stdout || len(alerters) == 0 {
		console, err := output.NewJSONAlerter(output.JSONAlerterConfig{Stdout: true, Pretty: true})
		if err != nil {
			return nil, err
		}
		alerters = append(alerters, console)
	}
	return alerters, nil
}

func (c *components) Close() error {
	var errs []error
	for i := len(c.closers) - 1; i >= 0; i-- {
		if err := c.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	c.closers = nil
	return errors.Join(errs...)
}

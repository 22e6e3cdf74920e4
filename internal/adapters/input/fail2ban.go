package input

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/Tchoumis/Projet-scripting-securise-v1/internal/domain"
)

type Fail2banConfig struct {
	// Command is the client binary, normally "fail2ban-client".
	Command string
	Jail    string
	// Timeout bounds a single status call.
	Timeout time.Duration

	// FailureThreshold consecutive failures open the breaker; while open,
	// calls fail fast for OpenTimeout.
	FailureThreshold uint32
	OpenTimeout      time.Duration
}

func DefaultFail2banConfig() Fail2banConfig {
	return Fail2banConfig{
		Command:          "fail2ban-client",
		Jail:             "sshd",
		Timeout:          10 * time.Second,
		FailureThreshold: 3,
		OpenTimeout:      time.Minute,
	}
}

// Fail2banProvider queries "fail2ban-client status <jail>".
type Fail2banProvider struct {
	cfg     Fail2banConfig
	runner  CommandRunner
	breaker *gobreaker.CircuitBreaker[string]
}

func NewFail2banProvider(cfg Fail2banConfig, runner CommandRunner) *Fail2banProvider {
	def := DefaultFail2banConfig()
	if cfg.Command == "" {
		cfg.Command = def.Command
	}
	if cfg.Jail == "" {
		cfg.Jail = def.Jail
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = def.Timeout
	}
	if cfg.FailureThreshold == 0 {
		cfg.FailureThreshold = def.FailureThreshold
	}
	if cfg.OpenTimeout <= 0 {
		cfg.OpenTimeout = def.OpenTimeout
	}
	if runner == nil {
		runner = ExecRunner{}
	}

	p := &Fail2banProvider{cfg: cfg, runner: runner}
	p.breaker = gobreaker.NewCircuitBreaker[string](gobreaker.Settings{
		Name:        "fail2ban:" + cfg.Jail,
		MaxRequests: 1,
		Timeout:     cfg.OpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= cfg.FailureThreshold
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Warn().
				Str("breaker", name).
				Str("from", from.String()).
				Str("to", to.String()).
				Msg("Ban provider circuit breaker state changed")
		},
	})
	return p
}

func (p *Fail2banProvider) Name() string { return "fail2ban" }

// Status returns the raw status text for the jail. Failures, including a
// fast-fail from an open breaker, are *domain.ProviderError.
func (p *Fail2banProvider) Status(ctx context.Context) (string, error) {
	out, err := p.breaker.Execute(func() (string, error) {
		callCtx, cancel := context.WithTimeout(ctx, p.cfg.Timeout)
		defer cancel()

		res, err := p.runner.Run(callCtx, p.cfg.Command, "status", p.cfg.Jail)
		if err != nil {
			return "", err
		}
		if res.ExitCode != 0 {
			return "", fmt.Errorf("%s exited with status %d: %s",
				p.cfg.Command, res.ExitCode, strings.TrimSpace(res.Stderr))
		}
		return res.Stdout, nil
	})
	if err != nil {
		return "", &domain.ProviderError{Provider: p.Name(), Err: err}
	}
	return out, nil
}

// BreakerState exposes the breaker state for health reporting.
func (p *Fail2banProvider) BreakerState() string {
	return p.breaker.State().String()
}

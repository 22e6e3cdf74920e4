package input

import (
	"context"
	"errors"
	"testing"
	"time"

	gobreaker "github.com/sony/gobreaker/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Tchoumis/Projet-scripting-securise-v1/internal/domain"
)

const sampleStatus = `Status for the jail: sshd
|- Filter
|  |- Currently failed:	2
|  |- Total failed:	17
|  ` + "`" + `- File list:	/var/log/auth.log
` + "`" + `- Actions
   |- Currently banned:	1
   |- Total banned:	4
   ` + "`" + `- Banned IP list:	1.2.3.4
`

func TestFail2banProviderStatus(t *testing.T) {
	runner := &fakeRunner{result: CommandResult{Stdout: sampleStatus}}
	p := NewFail2banProvider(Fail2banConfig{Jail: "sshd"}, runner)

	out, err := p.Status(context.Background())
	require.NoError(t, err)
	assert.Equal(t, sampleStatus, out)
	assert.Equal(t, [][]string{{"fail2ban-client", "status", "sshd"}}, runner.calls)
}

func TestFail2banProviderFailures(t *testing.T) {
	tests := []struct {
		name   string
		runner *fakeRunner
	}{
		{"not installed", &fakeRunner{err: errors.New("executable file not found")}},
		{"non-zero exit", &fakeRunner{result: CommandResult{ExitCode: 255, Stderr: "Failed to access socket path"}}},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			p := NewFail2banProvider(Fail2banConfig{}, tc.runner)
			_, err := p.Status(context.Background())

			var pe *domain.ProviderError
			require.ErrorAs(t, err, &pe)
			assert.Equal(t, "fail2ban", pe.Provider)
		})
	}
}

func TestFail2banProviderBreakerOpens(t *testing.T) {
	runner := &fakeRunner{err: errors.New("socket unavailable")}
	p := NewFail2banProvider(Fail2banConfig{FailureThreshold: 2, OpenTimeout: time.Hour}, runner)

	for i := 0; i < 2; i++ {
		_, err := p.Status(context.Background())
		require.Error(t, err)
	}
	assert.Equal(t, "open", p.BreakerState())

	_, err := p.Status(context.Background())
	assert.ErrorIs(t, err, gobreaker.ErrOpenState)
	assert.Len(t, runner.calls, 2, "open breaker must not invoke the command")
}

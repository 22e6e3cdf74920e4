package detection

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Tchoumis/Projet-scripting-securise-v1/internal/domain"
)

func TestParseBanStatus(t *testing.T) {
	tests := []struct {
		name    string
		text    string
		want    []string
		wantErr error
	}{
		{
			name: "fail2ban tree output",
			text: "Status for the jail: sshd\n|- Actions\n   |- Currently banned:\t2\n   `- Banned IP list:\t1.2.3.4 5.6.7.8\n",
			want: []string{"1.2.3.4", "5.6.7.8"},
		},
		{name: "comma separated", text: "Banned IP list: 5.6.7.8, 1.2.3.4", want: []string{"1.2.3.4", "5.6.7.8"}},
		{name: "empty list", text: "`- Banned IP list:\t\n", want: nil},
		{name: "none marker", text: "Banned IP list: none", want: nil},
		{name: "french none marker", text: "Banned IP list: Aucune", want: nil},
		{name: "dash", text: "Banned IP list: -", want: nil},
		{name: "missing marker", text: "ERROR  NOK: ('sshd',)\nSorry but the jail 'sshd' does not exist", wantErr: domain.ErrNoBanMarker},
		{name: "empty output", text: "", wantErr: domain.ErrNoBanMarker},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			set, err := ParseBanStatus(tc.text)
			if tc.wantErr != nil {
				assert.ErrorIs(t, err, tc.wantErr)
				return
			}
			require.NoError(t, err)
			if tc.want == nil {
				assert.True(t, set.Empty())
				return
			}
			assert.Equal(t, tc.want, set.Addrs())
		})
	}
}

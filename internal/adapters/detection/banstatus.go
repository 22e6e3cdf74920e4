package detection

import (
	"strings"

	"github.com/Tchoumis/Projet-scripting-securise-v1/internal/domain"
)

// BanListMarker introduces the address list in fail2ban status output.
const BanListMarker = "Banned IP list:"

var noneMarkers = map[string]struct{}{
	"none":   {},
	"aucune": {},
	"-":      {},
}

// ParseBanStatus extracts the banned addresses from a status report. The
// list follows the marker on the same line, separated by commas and/or
// whitespace. An empty list or a none-marker is the empty set. A report
// without the marker is domain.ErrNoBanMarker.
func ParseBanStatus(text string) (domain.BanSet, error) {
	for line := range strings.Lines(text) {
		_, rest, ok := strings.Cut(line, BanListMarker)
		if !ok {
			continue
		}
		rest = strings.TrimSpace(rest)
		if _, none := noneMarkers[strings.ToLower(rest)]; none || rest == "" {
			return domain.BanSet{}, nil
		}
		fields := strings.FieldsFunc(rest, func(r rune) bool {
			return r == ',' || r == ' ' || r == '\t'
		})
		return domain.NewBanSet(fields...), nil
	}
	return domain.BanSet{}, domain.ErrNoBanMarker
}

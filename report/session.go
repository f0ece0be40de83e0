package report

import (
	"time"

	"github.com/araddon/dateparse"
)

// SessionDate interprets a session label such as 20220101 as the acquisition
// date. Labels that are not an 8 digit date give ok == false.
func SessionDate(session string) (date time.Time, ok bool) {
	if len(session) != 8 {
		return time.Time{}, false
	}
	for _, r := range session {
		if r < '0' || r > '9' {
			return time.Time{}, false
		}
	}

	res, err := dateparse.ParseAny(session)
	if err != nil {
		return time.Time{}, false
	}

	return res, true
}

package site

import (
	"fmt"
	"time"
	_ "time/tzdata"
)

var ptMonths = [...]string{"jan", "fev", "mar", "abr", "mai", "jun", "jul", "ago", "set", "out", "nov", "dez"}

// FormatDate formats t as "dd MMM yyyy" with Portuguese month
// abbreviations, e.g. "15 mar 2021". A nil date formats as "".
func FormatDate(t *time.Time) string {
	if t == nil {
		return ""
	}
	local := t.In(Location)
	return fmt.Sprintf("%02d %s %d", local.Day(), ptMonths[local.Month()-1], local.Year())
}

// Location is the time zone dates are displayed in.
var Location = loadLocation("America/Sao_Paulo")

func loadLocation(name string) *time.Location {
	loc, err := time.LoadLocation(name)
	if err != nil {
		return time.UTC
	}
	return loc
}

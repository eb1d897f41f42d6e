package utils

import (
	"strings"
	"sync"
	"time"

	"github.com/scmhub/calendar"

	"stock-search-service/src/logger"
)

// -----------------------------------------------------------------------------

// TradingCalendar wraps a scmhub/calendar exchange calendar with a simple
// Mon-Fri 09:30-16:00 New York fallback for unknown MICs.
type TradingCalendar struct {
	Calendar *calendar.Calendar
	Fallback bool
	Timezone *time.Location
}

// -----------------------------------------------------------------------------

// micForSymbol maps a ticker suffix to an ISO 10383 MIC code.
func micForSymbol(symbol string) string {
	switch {
	case strings.HasSuffix(symbol, ".L"):
		return "xlon"
	case strings.HasSuffix(symbol, ".PA"):
		return "xpar"
	case strings.HasSuffix(symbol, ".DE"), strings.HasSuffix(symbol, ".F"):
		return "xfra"
	case strings.HasSuffix(symbol, ".AS"):
		return "xams"
	case strings.HasSuffix(symbol, ".MI"):
		return "xmil"
	case strings.HasSuffix(symbol, ".SW"):
		return "xswx"
	case strings.HasSuffix(symbol, ".TO"):
		return "xtse"
	case strings.HasSuffix(symbol, ".T"):
		return "xtks"
	case strings.HasSuffix(symbol, ".HK"):
		return "xhkg"
	case strings.HasSuffix(symbol, ".AX"):
		return "xasx"
	default:
		return "xnys"
	}
}

// -----------------------------------------------------------------------------

func GetCalendar(symbol string, log *logger.Logger) *TradingCalendar {
	mic := micForSymbol(symbol)

	cal := calendar.GetCalendar(mic)
	if cal == nil {
		cal = calendar.GetCalendar("xnys")
	}

	if cal == nil {
		if log != nil {
			log.Warning("Failed to load calendar for MIC '%s', using Mon-Fri 09:30-16:00 NY fallback", mic)
		}
		nyLoc, _ := time.LoadLocation("America/New_York")
		if nyLoc == nil {
			nyLoc = time.UTC
		}
		return &TradingCalendar{Fallback: true, Timezone: nyLoc}
	}

	return &TradingCalendar{Calendar: cal, Timezone: cal.Loc}
}

// -----------------------------------------------------------------------------

// IsOpen checks whether the market is open at t.
func (tc *TradingCalendar) IsOpen(t time.Time) bool {
	if tc.Timezone != nil {
		t = t.In(tc.Timezone)
	}

	if tc.Fallback {
		weekday := t.Weekday()
		if weekday == time.Saturday || weekday == time.Sunday {
			return false
		}
		hour, minute := t.Hour(), t.Minute()
		return (hour > 9 || (hour == 9 && minute >= 30)) && hour < 16
	}

	return tc.Calendar.IsOpen(t)
}

// -----------------------------------------------------------------------------

// TTLPolicy scales cache TTLs by market state: a quote cannot move while its
// exchange is closed, so write-backs get a longer lifetime off-hours.
type TTLPolicy struct {
	ClosedFactor int

	calendars map[string]*TradingCalendar
	mu        sync.Mutex
	logger    *logger.Logger
	now       func() time.Time
}

// -----------------------------------------------------------------------------

func NewTTLPolicy(closedFactor int, log *logger.Logger) *TTLPolicy {
	if closedFactor < 1 {
		closedFactor = 1
	}
	return &TTLPolicy{
		ClosedFactor: closedFactor,
		calendars:    make(map[string]*TradingCalendar),
		logger:       log,
		now:          time.Now,
	}
}

// -----------------------------------------------------------------------------

// TTLFor returns the TTL to use when caching symbol with the given base TTL.
func (p *TTLPolicy) TTLFor(symbol string, base time.Duration) time.Duration {
	if p.calendarFor(symbol).IsOpen(p.now()) {
		return base
	}
	return base * time.Duration(p.ClosedFactor)
}

// -----------------------------------------------------------------------------

// calendarFor caches one calendar per MIC, not per symbol.
func (p *TTLPolicy) calendarFor(symbol string) *TradingCalendar {
	mic := micForSymbol(symbol)

	p.mu.Lock()
	defer p.mu.Unlock()

	if cal, ok := p.calendars[mic]; ok {
		return cal
	}
	cal := GetCalendar(symbol, p.logger)
	p.calendars[mic] = cal
	return cal
}

package calendar

import (
	"fmt"
	"os"
	"sort"
	"time"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"

	"github.com/warp/worktrack/core"
)

// =============================================================================
// SLOVAK PUBLIC HOLIDAYS
// =============================================================================

type fixedHoliday struct {
	month time.Month
	day   int
	name  string
}

var slovakFixed = []fixedHoliday{
	{time.January, 1, "Deň vzniku Slovenskej republiky"},
	{time.January, 6, "Zjavenie Pána"},
	{time.May, 1, "Sviatok práce"},
	{time.May, 8, "Deň víťazstva nad fašizmom"},
	{time.July, 5, "Sviatok svätého Cyrila a Metoda"},
	{time.August, 29, "Výročie SNP"},
	{time.September, 1, "Deň Ústavy Slovenskej republiky"},
	{time.September, 15, "Sedembolestná Panna Mária"},
	{time.November, 1, "Sviatok všetkých svätých"},
	{time.November, 17, "Deň boja za slobodu a demokraciu"},
	{time.December, 24, "Štedrý deň"},
	{time.December, 25, "Prvý sviatok vianočný"},
	{time.December, 26, "Druhý sviatok vianočný"},
}

// Slovak computes Slovak public holidays: fixed dates plus Good Friday and
// Easter Monday. Every holiday stands for Hours expected hours.
type Slovak struct {
	Hours decimal.Decimal
}

func NewSlovak(hours decimal.Decimal) Slovak {
	return Slovak{Hours: hours}
}

func (s Slovak) Holidays(year int) []core.Holiday {
	out := make([]core.Holiday, 0, len(slovakFixed)+2)
	for _, f := range slovakFixed {
		out = append(out, core.Holiday{Date: core.NewDate(year, f.month, f.day), Name: f.name, Hours: s.hours()})
	}
	easter := EasterSunday(year)
	out = append(out,
		core.Holiday{Date: easter.AddDays(-2), Name: "Veľký piatok", Hours: s.hours()},
		core.Holiday{Date: easter.AddDays(1), Name: "Veľkonočný pondelok", Hours: s.hours()},
	)
	sortHolidays(out)
	return out
}

func (s Slovak) Lookup(d core.Date) (core.Holiday, bool) {
	return lookup(s.Holidays(d.Year()), d)
}

func (s Slovak) hours() decimal.Decimal {
	if s.Hours.IsZero() {
		return core.DefaultStandardWorkHours
	}
	return s.Hours
}

// EasterSunday uses the anonymous Gregorian algorithm.
func EasterSunday(year int) core.Date {
	a := year % 19
	b := year / 100
	c := year % 100
	d := b / 4
	e := b % 4
	f := (b + 8) / 25
	g := (b - f + 1) / 3
	h := (19*a + b - d - g + 15) % 30
	i := c / 4
	k := c % 4
	l := (32 + 2*e + 2*i - h - k) % 7
	m := (a + 11*h + 22*l) / 451
	month := (h + l - 7*m + 114) / 31
	day := (h+l-7*m+114)%31 + 1
	return core.NewDate(year, time.Month(month), day)
}

// =============================================================================
// STATIC LIST
// =============================================================================

// Static is an explicit holiday list, typically loaded from a file.
type Static struct {
	byDate map[core.Date]core.Holiday
}

func NewStatic(holidays ...core.Holiday) *Static {
	s := &Static{byDate: make(map[core.Date]core.Holiday, len(holidays))}
	for _, h := range holidays {
		s.byDate[h.Date] = h
	}
	return s
}

func (s *Static) Holidays(year int) []core.Holiday {
	var out []core.Holiday
	for d, h := range s.byDate {
		if d.Year() == year {
			out = append(out, h)
		}
	}
	sortHolidays(out)
	return out
}

func (s *Static) Lookup(d core.Date) (core.Holiday, bool) {
	h, ok := s.byDate[d]
	return h, ok
}

type holidayFile struct {
	Holidays []struct {
		Date  string   `yaml:"date"`
		Name  string   `yaml:"name"`
		Hours *float64 `yaml:"hours"`
	} `yaml:"holidays"`
}

// ParseYAML reads a document of the form
//
//	holidays:
//	  - date: 2025-12-31
//	    name: Company day
//	    hours: 7
//
// Hours defaults to defaultHours.
func ParseYAML(data []byte, defaultHours decimal.Decimal) (*Static, error) {
	var f holidayFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse holidays: %w", err)
	}
	holidays := make([]core.Holiday, 0, len(f.Holidays))
	for i, raw := range f.Holidays {
		d, err := core.ParseDateField(fmt.Sprintf("holidays[%d].date", i), raw.Date)
		if err != nil {
			return nil, err
		}
		h := core.Holiday{Date: d, Name: raw.Name, Hours: defaultHours}
		if raw.Hours != nil {
			h.Hours = decimal.NewFromFloat(*raw.Hours)
		}
		holidays = append(holidays, h)
	}
	return NewStatic(holidays...), nil
}

// LoadYAML reads a holiday file from disk.
func LoadYAML(path string, defaultHours decimal.Decimal) (*Static, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read holidays file: %w", err)
	}
	return ParseYAML(data, defaultHours)
}

// =============================================================================
// MERGE
// =============================================================================

// Merged unions several sources. On a date present in more than one, the
// first source wins.
type Merged []core.HolidayCalendar

func Merge(sources ...core.HolidayCalendar) Merged {
	return Merged(sources)
}

func (m Merged) Holidays(year int) []core.Holiday {
	seen := make(map[core.Date]bool)
	var out []core.Holiday
	for _, src := range m {
		for _, h := range src.Holidays(year) {
			if seen[h.Date] {
				continue
			}
			seen[h.Date] = true
			out = append(out, h)
		}
	}
	sortHolidays(out)
	return out
}

func (m Merged) Lookup(d core.Date) (core.Holiday, bool) {
	for _, src := range m {
		if h, ok := src.Lookup(d); ok {
			return h, true
		}
	}
	return core.Holiday{}, false
}

// ForCountry returns the computed calendar for a country code. An empty
// code or "none" means no holidays.
func ForCountry(code string, hours decimal.Decimal) (core.HolidayCalendar, error) {
	switch code {
	case "sk", "SK":
		return NewSlovak(hours), nil
	case "", "none":
		return core.NoHolidays{}, nil
	}
	return nil, core.Invalid("holiday_country", "unsupported country %q", code)
}

func lookup(holidays []core.Holiday, d core.Date) (core.Holiday, bool) {
	for _, h := range holidays {
		if h.Date.Equal(d) {
			return h, true
		}
	}
	return core.Holiday{}, false
}

func sortHolidays(hs []core.Holiday) {
	sort.Slice(hs, func(i, j int) bool { return hs[i].Date.Before(hs[j].Date) })
}

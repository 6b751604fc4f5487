package value

import (
	"fmt"
	"strconv"
	"strings"
)

// Microsecond unit constants, ported from datetime.h.
const (
	UsecPerSec  int64 = 1_000_000
	UsecPerMin  int64 = 60 * UsecPerSec
	UsecPerHour int64 = 3600 * UsecPerSec
	UsecPerDay  int64 = 86400 * UsecPerSec
)

// PGEpochUnix is 2000-01-01 expressed as a Unix timestamp in seconds.
const PGEpochUnix int64 = 946684800

// Sentinel values signalling an unparseable literal.
const (
	DateInvalid      int32 = -1 << 31
	TimestampInvalid int64 = -1 << 63
	TimeInvalid      int64 = -1 << 63
)

func isDigit(b byte) bool { return b >= '0' && b <= '9' }

// DaysToYMD converts PG-epoch days to a Gregorian (year, month, day),
// using the same Julian day algorithm as the original engine's
// days_to_ymd (PostgreSQL's j2date).
func DaysToYMD(days int32) (y, m, d int) {
	jd := int64(days) + 2451545
	l := jd + 68569
	n := 4 * l / 146097
	l = l - (146097*n+3)/4
	i := 4000 * (l + 1) / 1461001
	l = l - 1461*i/4 + 31
	jj := 80 * l / 2447
	dd := l - 2447*jj/80
	l = jj / 11
	mm := jj + 2 - 12*l
	yy := 100*(n-49) + i + l
	return int(yy), int(mm), int(dd)
}

// YMDToDays converts a Gregorian date to PG-epoch days.
func YMDToDays(y, m, d int) int32 {
	a := (14 - m) / 12
	yy := y + 4800 - a
	mm := m + 12*a - 3
	jd := int64(d) + (153*int64(mm)+2)/5 + 365*int64(yy) + int64(yy)/4 - int64(yy)/100 + int64(yy)/400 - 32045
	return int32(jd - 2451545)
}

func isLeapYear(y int) bool { return (y%4 == 0 && y%100 != 0) || y%400 == 0 }

func daysInMonth(y, m int) int {
	dim := [...]int{31, 28, 31, 30, 31, 30, 31, 31, 30, 31, 30, 31}
	if m < 1 || m > 12 {
		return 30
	}
	if m == 2 && isLeapYear(y) {
		return 29
	}
	return dim[m-1]
}

func parseDigitsN(s string, n int) (int, string, bool) {
	if len(s) < n {
		return 0, s, false
	}
	val := 0
	for i := 0; i < n; i++ {
		if !isDigit(s[i]) {
			return 0, s, false
		}
		val = val*10 + int(s[i]-'0')
	}
	return val, s[n:], true
}

// DateFromStr parses "YYYY-MM-DD" (optionally negative-year) into
// PG-epoch days, returning DateInvalid on malformed input.
func DateFromStr(s string) int32 {
	s = strings.TrimSpace(s)
	p := s
	neg := false
	if strings.HasPrefix(p, "-") {
		neg = true
		p = p[1:]
	}
	i := 0
	for i < len(p) && isDigit(p[i]) {
		i++
	}
	if i == 0 || i >= len(p) || p[i] != '-' {
		return DateInvalid
	}
	y, _ := strconv.Atoi(p[:i])
	p = p[i+1:]
	m, p, ok := parseDigitsN(p, 2)
	if !ok || len(p) == 0 || p[0] != '-' {
		return DateInvalid
	}
	p = p[1:]
	d, _, ok := parseDigitsN(p, 2)
	if !ok {
		return DateInvalid
	}
	if neg {
		y = -y
	}
	if m < 1 || m > 12 || d < 1 || d > 31 {
		return DateInvalid
	}
	return YMDToDays(y, m, d)
}

// TimestampFromStr parses "YYYY-MM-DD[ HH:MM:SS]" into PG-epoch
// microseconds.
func TimestampFromStr(s string) int64 {
	s = strings.TrimSpace(s)
	days := DateFromStr(s)
	if days == DateInvalid {
		return TimestampInvalid
	}

	rest := s
	if strings.HasPrefix(rest, "-") {
		rest = rest[1:]
	}
	i := 0
	for i < len(rest) && isDigit(rest[i]) {
		i++
	}
	rest = rest[i:]
	if strings.HasPrefix(rest, "-") {
		rest = rest[1:]
	}
	if len(rest) >= 2 {
		rest = rest[2:]
	}
	if strings.HasPrefix(rest, "-") {
		rest = rest[1:]
	}
	if len(rest) >= 2 {
		rest = rest[2:]
	}

	var hh, mm, ss int
	if len(rest) > 0 && (rest[0] == ' ' || rest[0] == 'T' || rest[0] == 't') {
		rest = rest[1:]
		h, r, ok := parseDigitsN(rest, 2)
		if !ok {
			return int64(days) * UsecPerDay
		}
		hh = h
		rest = r
		if strings.HasPrefix(rest, ":") {
			rest = rest[1:]
			mi, r2, ok := parseDigitsN(rest, 2)
			if ok {
				mm = mi
				rest = r2
			}
			if strings.HasPrefix(rest, ":") {
				rest = rest[1:]
				sc, _, ok := parseDigitsN(rest, 2)
				if ok {
					ss = sc
				}
			}
		}
	}

	return int64(days)*UsecPerDay + int64(hh)*UsecPerHour + int64(mm)*UsecPerMin + int64(ss)*UsecPerSec
}

// TimeFromStr parses "HH:MM[:SS]" into microseconds since midnight.
func TimeFromStr(s string) int64 {
	s = strings.TrimSpace(s)
	hh, rest, ok := parseDigitsN(s, 2)
	if !ok || !strings.HasPrefix(rest, ":") {
		return TimeInvalid
	}
	rest = rest[1:]
	mm, rest, ok := parseDigitsN(rest, 2)
	if !ok {
		return TimeInvalid
	}
	ss := 0
	if strings.HasPrefix(rest, ":") {
		if v, _, ok := parseDigitsN(rest[1:], 2); ok {
			ss = v
		}
	}
	return int64(hh)*UsecPerHour + int64(mm)*UsecPerMin + int64(ss)*UsecPerSec
}

// IntervalFromStr parses a PostgreSQL-style interval literal such as
// "1 year 2 mons 3 days 04:05:06" into an Ivl. Unrecognized tokens are
// skipped, matching the original engine's lenient tokenizer.
func IntervalFromStr(s string) Ivl {
	var iv Ivl
	fields := tokenizeInterval(s)
	for i := 0; i < len(fields); i++ {
		f := fields[i]
		if hh, mm, ss, neg, ok := f.hms(); ok {
			t := int64(hh)*UsecPerHour + int64(mm)*UsecPerMin + int64(ss)*UsecPerSec
			if neg {
				t = -t
			}
			iv.Micros += t
			continue
		}
		// a bare number takes the unit word that follows it ("3" "days")
		if _, err := strconv.ParseFloat(string(f), 64); err == nil && i+1 < len(fields) {
			if c := fields[i+1][0] | 0x20; c >= 'a' && c <= 'z' {
				i++
				f += fields[i]
			}
		}
		if v, unit, ok := f.numberUnit(); ok {
			applyIntervalUnit(&iv, v, unit)
		}
	}
	return iv
}

type intervalToken string

func tokenizeInterval(s string) []intervalToken {
	var toks []intervalToken
	var cur strings.Builder
	flush := func() {
		if cur.Len() > 0 {
			toks = append(toks, intervalToken(cur.String()))
			cur.Reset()
		}
	}
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c == ' ' {
			flush()
			continue
		}
		cur.WriteByte(c)
	}
	flush()
	// tokens are returned unchanged; IntervalFromStr joins a bare number
	// with the unit word after it
	var merged []intervalToken
	for i := 0; i < len(toks); i++ {
		merged = append(merged, toks[i])
	}
	return merged
}

func (t intervalToken) hms() (hh, mm, ss int, neg bool, ok bool) {
	s := string(t)
	if strings.HasPrefix(s, "-") {
		neg = true
		s = s[1:]
	}
	parts := strings.Split(s, ":")
	if len(parts) < 2 {
		return 0, 0, 0, false, false
	}
	for _, p := range parts {
		if len(p) != 2 || !isDigit(p[0]) || !isDigit(p[1]) {
			return 0, 0, 0, false, false
		}
	}
	h, _ := strconv.Atoi(parts[0])
	m, _ := strconv.Atoi(parts[1])
	sec := 0
	if len(parts) >= 3 {
		sec, _ = strconv.Atoi(parts[2])
	}
	return h, m, sec, neg, true
}

func (t intervalToken) numberUnit() (float64, string, bool) {
	s := string(t)
	i := 0
	if i < len(s) && (s[i] == '-' || s[i] == '+') {
		i++
	}
	start := i
	for i < len(s) && (isDigit(s[i]) || s[i] == '.') {
		i++
	}
	if i == start {
		return 0, "", false
	}
	numStr := s[:i]
	unit := strings.ToLower(s[i:])
	if unit == "" {
		return 0, "", false
	}
	v, err := strconv.ParseFloat(numStr, 64)
	if err != nil {
		return 0, "", false
	}
	return v, unit, true
}

func applyIntervalUnit(iv *Ivl, val float64, unit string) {
	switch {
	case strings.HasPrefix(unit, "year"):
		iv.Months += int32(val * 12)
	case strings.HasPrefix(unit, "mon"):
		iv.Months += int32(val)
	case strings.HasPrefix(unit, "day"):
		iv.Days += int32(val)
	case strings.HasPrefix(unit, "hour"):
		iv.Micros += int64(val * float64(UsecPerHour))
	case strings.HasPrefix(unit, "min"):
		iv.Micros += int64(val * float64(UsecPerMin))
	case strings.HasPrefix(unit, "sec"):
		iv.Micros += int64(val * float64(UsecPerSec))
	default:
		iv.Micros += int64(val * float64(UsecPerSec))
	}
}

// DateToStr formats PG-epoch days as "YYYY-MM-DD".
func DateToStr(days int32) string {
	y, m, d := DaysToYMD(days)
	if y < 0 {
		return fmt.Sprintf("-%04d-%02d-%02d", -y, m, d)
	}
	return fmt.Sprintf("%04d-%02d-%02d", y, m, d)
}

func splitDaysTime(usec int64) (days int32, timeUsec int64) {
	if usec >= 0 {
		days = int32(usec / UsecPerDay)
		timeUsec = usec % UsecPerDay
	} else {
		days = int32((usec - UsecPerDay + 1) / UsecPerDay)
		timeUsec = usec - int64(days)*UsecPerDay
	}
	return
}

func formatTimestamp(usec int64, tzSuffix string) string {
	days, timeUsec := splitDaysTime(usec)
	y, mo, d := DaysToYMD(days)
	hh := timeUsec / UsecPerHour
	timeUsec %= UsecPerHour
	mm := timeUsec / UsecPerMin
	timeUsec %= UsecPerMin
	ss := timeUsec / UsecPerSec
	sign := ""
	yy := y
	if y < 0 {
		sign = "-"
		yy = -y
	}
	return fmt.Sprintf("%s%04d-%02d-%02d %02d:%02d:%02d%s", sign, yy, mo, d, hh, mm, ss, tzSuffix)
}

// TimestampToStr formats PG-epoch microseconds as "YYYY-MM-DD HH:MM:SS".
func TimestampToStr(usec int64) string { return formatTimestamp(usec, "") }

// TimestampTZToStr is identical to TimestampToStr but appends the UTC
// offset, since the engine keeps all timestamptz values normalized to UTC.
func TimestampTZToStr(usec int64) string { return formatTimestamp(usec, "+00") }

// TimeToStr formats microseconds-since-midnight as "HH:MM:SS".
func TimeToStr(usec int64) string {
	if usec < 0 {
		usec = 0
	}
	hh := usec / UsecPerHour
	usec %= UsecPerHour
	mm := usec / UsecPerMin
	usec %= UsecPerMin
	ss := usec / UsecPerSec
	return fmt.Sprintf("%02d:%02d:%02d", hh, mm, ss)
}

// IntervalToStr renders an Ivl the way PostgreSQL's default IntervalStyle
// does: "N year(s) N mon(s) N day(s) HH:MM:SS", omitting zero components.
func IntervalToStr(iv Ivl) string {
	months, days, usec := iv.Months, iv.Days, iv.Micros

	if days > 0 && usec < 0 {
		days--
		usec += UsecPerDay
	} else if days < 0 && usec > 0 {
		days++
		usec -= UsecPerDay
	}

	negTime := false
	if usec < 0 {
		negTime = true
		usec = -usec
	}

	years := months / 12
	months = months % 12
	if months < 0 && years > 0 {
		years--
		months += 12
	}
	if months > 0 && years < 0 {
		years++
		months -= 12
	}

	var parts []string
	if years != 0 {
		parts = append(parts, pluralize(int(years), "year"))
	}
	if months != 0 {
		parts = append(parts, pluralize(int(months), "mon"))
	}
	if days != 0 {
		parts = append(parts, pluralize(int(days), "day"))
	}

	totalSec := usec / UsecPerSec
	hh := totalSec / 3600
	mm := (totalSec % 3600) / 60
	ss := totalSec % 60

	wrote := len(parts) > 0
	if hh != 0 || mm != 0 || ss != 0 {
		nparts := boolToInt(hh != 0) + boolToInt(mm != 0) + boolToInt(ss != 0)
		if nparts == 1 && !wrote {
			switch {
			case hh != 0:
				parts = append(parts, pluralize(int(negate(hh, negTime)), "hour"))
			case mm != 0:
				parts = append(parts, pluralize(int(negate(mm, negTime)), "minute"))
			default:
				parts = append(parts, pluralize(int(negate(ss, negTime)), "sec"))
			}
		} else {
			sign := ""
			if negTime {
				sign = "-"
			}
			parts = append(parts, fmt.Sprintf("%s%02d:%02d:%02d", sign, hh, mm, ss))
		}
	} else if !wrote {
		parts = append(parts, "00:00:00")
	}

	return strings.Join(parts, " ")
}

func negate(v int64, neg bool) int64 {
	if neg {
		return -v
	}
	return v
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func pluralize(n int, unit string) string {
	suffix := "s"
	if n == 1 || n == -1 {
		suffix = ""
	}
	return fmt.Sprintf("%d %s%s", n, unit, suffix)
}

// DateExtract returns the numeric value of a date field, matching
// date_extract's field set (year/month/day/quarter/epoch/dow/doy/week).
func DateExtract(days int32, field string) float64 {
	y, m, d := DaysToYMD(days)
	switch strings.ToLower(field) {
	case "year":
		return float64(y)
	case "month":
		return float64(m)
	case "day":
		return float64(d)
	case "quarter":
		return float64((m-1)/3 + 1)
	case "epoch":
		return float64(days)*86400.0 + float64(PGEpochUnix)
	case "dow":
		dow := ((int(days) % 7) + 6) % 7
		return float64(dow)
	case "doy":
		jan1 := YMDToDays(y, 1, 1)
		return float64(days - jan1 + 1)
	case "week":
		jan1 := YMDToDays(y, 1, 1)
		return float64((days-jan1)/7 + 1)
	}
	return 0
}

// TimestampExtract returns the numeric value of a timestamp field,
// delegating date-level fields to DateExtract.
func TimestampExtract(usec int64, field string) float64 {
	days, timeUsec := splitDaysTime(usec)
	switch strings.ToLower(field) {
	case "hour":
		return float64(timeUsec / UsecPerHour)
	case "minute":
		return float64((timeUsec % UsecPerHour) / UsecPerMin)
	case "second":
		return float64((timeUsec % UsecPerMin) / UsecPerSec)
	case "epoch":
		return float64(usec)/float64(UsecPerSec) + float64(PGEpochUnix)
	}
	return DateExtract(days, field)
}

// DateTruncDays truncates a date to the named field boundary.
func DateTruncDays(days int32, field string) int32 {
	y, m, _ := DaysToYMD(days)
	switch strings.ToLower(field) {
	case "year":
		return YMDToDays(y, 1, 1)
	case "quarter":
		qm := ((m-1)/3)*3 + 1
		return YMDToDays(y, qm, 1)
	case "month":
		return YMDToDays(y, m, 1)
	case "week":
		dow := ((int(days) % 7) + 6) % 7
		monOffset := dow - 1
		if dow == 0 {
			monOffset = 6
		}
		return days - int32(monOffset)
	}
	return days
}

// TimestampTruncUsec truncates a timestamp to the named field boundary.
func TimestampTruncUsec(usec int64, field string) int64 {
	floorMod := func(usec, unit int64) int64 {
		if usec >= 0 {
			return usec - usec%unit
		}
		return usec - ((usec%unit)+unit)%unit
	}
	switch strings.ToLower(field) {
	case "hour":
		return floorMod(usec, UsecPerHour)
	case "minute":
		return floorMod(usec, UsecPerMin)
	case "second":
		return floorMod(usec, UsecPerSec)
	case "day":
		return floorMod(usec, UsecPerDay)
	}
	days, _ := splitDaysTime(usec)
	td := DateTruncDays(days, field)
	return int64(td) * UsecPerDay
}

func addMonthsToDate(y, m, d int, addMonths int32) int32 {
	totalMonths := y*12 + (m - 1) + int(addMonths)
	ny := totalMonths / 12
	nm := totalMonths%12 + 1
	if nm <= 0 {
		nm += 12
		ny--
	}
	maxD := daysInMonth(ny, nm)
	if d > maxD {
		d = maxD
	}
	return YMDToDays(ny, nm, d)
}

// DateAddInterval applies a calendar-aware interval add to a date: months
// shift the calendar month (clamping day-of-month), days and any sub-day
// remainder of the interval add whole days.
func DateAddInterval(days int32, iv Ivl) int32 {
	if iv.Months != 0 {
		y, m, d := DaysToYMD(days)
		days = addMonthsToDate(y, m, d, iv.Months)
	}
	days += iv.Days
	if iv.Micros != 0 {
		days += int32(iv.Micros / UsecPerDay)
	}
	return days
}

// TimestampAddInterval applies a calendar-aware interval add to a
// timestamp.
func TimestampAddInterval(usec int64, iv Ivl) int64 {
	if iv.Months != 0 {
		days, timePart := splitDaysTime(usec)
		y, m, d := DaysToYMD(days)
		days = addMonthsToDate(y, m, d, iv.Months)
		usec = int64(days)*UsecPerDay + timePart
	}
	usec += int64(iv.Days) * UsecPerDay
	usec += iv.Micros
	return usec
}

package reconcile

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/calmcompass/places-cli/internal/model"
)

// yelpDays maps Yelp's day index (0 = Monday) to canonical day names.
var yelpDays = []string{
	"monday", "tuesday", "wednesday", "thursday", "friday", "saturday", "sunday",
}

// yelpHours converts Yelp's hours structure to the shared weekly schedule.
// Yelp reports open blocks as {"day": 0, "start": "1000", "end": "2200"}.
func yelpHours(p map[string]any) model.WeeklyHours {
	blocks := list(p, "hours")
	if len(blocks) == 0 {
		return nil
	}
	regular, ok := blocks[0].(map[string]any)
	if !ok {
		return nil
	}

	hours := model.WeeklyHours{}
	for _, raw := range list(regular, "open") {
		span, ok := raw.(map[string]any)
		if !ok {
			continue
		}
		dayIdx, ok := num(span, "day")
		if !ok || int(dayIdx) < 0 || int(dayIdx) >= len(yelpDays) {
			continue
		}
		start := yelpClock(str(span, "start"))
		end := yelpClock(str(span, "end"))
		if start == "" || end == "" {
			continue
		}
		day := yelpDays[int(dayIdx)]
		hours[day] = append(hours[day], start+"-"+end)
	}
	if len(hours) == 0 {
		return nil
	}
	return hours
}

// yelpClock converts "1000" to "10:00".
func yelpClock(s string) string {
	if len(s) != 4 {
		return ""
	}
	if _, err := strconv.Atoi(s); err != nil {
		return ""
	}
	return s[:2] + ":" + s[2:]
}

// googleHours converts Google's weekday_text lines ("Monday: 10:00 AM – 10:00 PM")
// to the shared weekly schedule.
func googleHours(p map[string]any) model.WeeklyHours {
	oh := obj(p, "opening_hours")
	if oh == nil {
		return nil
	}
	lines := list(oh, "weekday_text")
	if len(lines) == 0 {
		return nil
	}

	hours := model.WeeklyHours{}
	for _, raw := range lines {
		line, ok := raw.(string)
		if !ok {
			continue
		}
		day, spans := parseWeekdayText(line)
		if day == "" || len(spans) == 0 {
			continue
		}
		hours[day] = spans
	}
	if len(hours) == 0 {
		return nil
	}
	return hours
}

// parseWeekdayText splits one weekday_text line into a canonical day name and
// its "HH:MM-HH:MM" spans. Google uses narrow no-break spaces and en dashes.
func parseWeekdayText(line string) (string, []string) {
	line = strings.NewReplacer("\u202f", " ", "\u00a0", " ", "\u2009", " ", "–", "-").Replace(line)

	day, rest, found := strings.Cut(line, ":")
	if !found {
		return "", nil
	}
	day = strings.ToLower(strings.TrimSpace(day))
	rest = strings.TrimSpace(rest)

	valid := false
	for _, d := range yelpDays {
		if day == d {
			valid = true
			break
		}
	}
	if !valid {
		return "", nil
	}

	if strings.EqualFold(rest, "closed") {
		return day, nil
	}
	if strings.EqualFold(rest, "open 24 hours") {
		return day, []string{"00:00-24:00"}
	}

	var spans []string
	for _, part := range strings.Split(rest, ",") {
		open, close, found := strings.Cut(part, "-")
		if !found {
			continue
		}
		o := clock12to24(strings.TrimSpace(open))
		c := clock12to24(strings.TrimSpace(close))
		if o == "" || c == "" {
			continue
		}
		spans = append(spans, o+"-"+c)
	}
	return day, spans
}

// clock12to24 converts "10:00 AM" or "9:30 PM" to 24-hour "HH:MM".
func clock12to24(s string) string {
	s = strings.ToUpper(strings.TrimSpace(s))

	var meridiem string
	switch {
	case strings.HasSuffix(s, "AM"):
		meridiem = "AM"
	case strings.HasSuffix(s, "PM"):
		meridiem = "PM"
	default:
		// Already 24-hour.
		if _, _, ok := splitClock(s); ok {
			return s
		}
		return ""
	}
	s = strings.TrimSpace(strings.TrimSuffix(s, meridiem))

	h, m, ok := splitClock(s)
	if !ok {
		return ""
	}
	if meridiem == "PM" && h < 12 {
		h += 12
	}
	if meridiem == "AM" && h == 12 {
		h = 0
	}
	return fmt.Sprintf("%02d:%02d", h, m)
}

func splitClock(s string) (int, int, bool) {
	hh, mm, found := strings.Cut(s, ":")
	if !found {
		mm = "00"
	}
	h, err := strconv.Atoi(strings.TrimSpace(hh))
	if err != nil || h < 0 || h > 24 {
		return 0, 0, false
	}
	m, err := strconv.Atoi(strings.TrimSpace(mm))
	if err != nil || m < 0 || m > 59 {
		return 0, 0, false
	}
	return h, m, true
}

package service

import (
	"strings"
	"time"

	"github.com/smallbiznis/settlekit/internal/revenue/domain"
	"github.com/smallbiznis/settlekit/pkg/errs"
)

// monthThresholdDays is the widest window still bucketed by day.
const monthThresholdDays = 90

type window struct {
	start    time.Time
	end      time.Time
	stream   domain.Stream
	currency string
}

// resolveWindow turns a query into a UTC half-open window. Presets count today
// as a whole day; custom ranges include both the start and end days.
func resolveWindow(q domain.Query, now time.Time, defaultCurrency string) (window, error) {
	w := window{stream: q.Stream}

	switch q.Stream {
	case "", domain.StreamResourceSale, domain.StreamSubscription, domain.StreamAdPayment:
	default:
		return window{}, errs.Validation("stream", domain.ErrInvalidStream)
	}

	currency := strings.ToUpper(strings.TrimSpace(q.Currency))
	if currency == "" {
		currency = strings.ToUpper(strings.TrimSpace(defaultCurrency))
	}
	if len(currency) != 3 {
		return window{}, errs.Validation("currency", domain.ErrInvalidCurrency)
	}
	w.currency = currency

	if q.Preset != "" {
		start, end, err := presetRange(q.Preset, now)
		if err != nil {
			return window{}, err
		}
		w.start, w.end = start, end
		return w, nil
	}

	if q.Start.IsZero() || q.End.IsZero() {
		return window{}, errs.Validation("start", domain.ErrInvalidRange)
	}
	start := truncateToDay(q.Start.UTC())
	end := truncateToDay(q.End.UTC()).AddDate(0, 0, 1)
	if !start.Before(end) {
		return window{}, errs.Validation("end", domain.ErrInvalidRange)
	}
	w.start, w.end = start, end
	return w, nil
}

func presetRange(p domain.Preset, now time.Time) (time.Time, time.Time, error) {
	today := truncateToDay(now.UTC())
	tomorrow := today.AddDate(0, 0, 1)
	month := truncateToMonth(today)

	switch p {
	case domain.PresetToday:
		return today, tomorrow, nil
	case domain.PresetYesterday:
		return today.AddDate(0, 0, -1), today, nil
	case domain.PresetLast7Days:
		return today.AddDate(0, 0, -6), tomorrow, nil
	case domain.PresetLast30Days:
		return today.AddDate(0, 0, -29), tomorrow, nil
	case domain.PresetLast90Days:
		return today.AddDate(0, 0, -89), tomorrow, nil
	case domain.PresetThisMonth:
		return month, tomorrow, nil
	case domain.PresetLastMonth:
		return month.AddDate(0, -1, 0), month, nil
	case domain.PresetThisYear:
		return time.Date(today.Year(), time.January, 1, 0, 0, 0, 0, time.UTC), tomorrow, nil
	case domain.PresetLast12Months:
		return month.AddDate(0, -11, 0), tomorrow, nil
	default:
		return time.Time{}, time.Time{}, errs.Validation("preset", domain.ErrInvalidPreset)
	}
}

// granularityFor picks month buckets once the window is wider than 90 days
// unless the caller asked for one explicitly.
func granularityFor(requested domain.Granularity, w window) (domain.Granularity, error) {
	switch requested {
	case domain.GranularityDay, domain.GranularityMonth:
		return requested, nil
	case "":
		if w.days() > monthThresholdDays {
			return domain.GranularityMonth, nil
		}
		return domain.GranularityDay, nil
	default:
		return "", errs.Validation("granularity", domain.ErrInvalidGranularity)
	}
}

func (w window) days() int {
	return int(w.end.Sub(w.start).Hours() / 24)
}

func (w window) includes(stream string) bool {
	return w.stream == "" || string(w.stream) == stream
}

func bucketStart(t time.Time, g domain.Granularity) time.Time {
	if g == domain.GranularityMonth {
		return truncateToMonth(t.UTC())
	}
	return truncateToDay(t.UTC())
}

func nextBucket(t time.Time, g domain.Granularity) time.Time {
	if g == domain.GranularityMonth {
		return truncateToMonth(t).AddDate(0, 1, 0)
	}
	return truncateToDay(t).AddDate(0, 0, 1)
}

func periodLabel(t time.Time, g domain.Granularity) string {
	if g == domain.GranularityMonth {
		return t.Format("2006-01")
	}
	return t.Format("2006-01-02")
}

// emptyBuckets returns one zero point per calendar unit that starts before end.
func emptyBuckets(start, end time.Time, g domain.Granularity) []domain.TimeSeriesPoint {
	var points []domain.TimeSeriesPoint
	for b := bucketStart(start, g); b.Before(end); b = nextBucket(b, g) {
		points = append(points, domain.TimeSeriesPoint{Period: periodLabel(b, g), Start: b})
	}
	return points
}

func truncateToDay(value time.Time) time.Time {
	return time.Date(value.Year(), value.Month(), value.Day(), 0, 0, 0, 0, time.UTC)
}

func truncateToMonth(value time.Time) time.Time {
	return time.Date(value.Year(), value.Month(), 1, 0, 0, 0, 0, time.UTC)
}

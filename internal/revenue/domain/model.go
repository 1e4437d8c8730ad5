package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/settlekit/pkg/db/pagination"
)

type Granularity string

const (
	GranularityDay   Granularity = "day"
	GranularityMonth Granularity = "month"
)

// Preset names a range relative to today in UTC.
type Preset string

const (
	PresetToday        Preset = "today"
	PresetYesterday    Preset = "yesterday"
	PresetLast7Days    Preset = "last_7_days"
	PresetLast30Days   Preset = "last_30_days"
	PresetLast90Days   Preset = "last_90_days"
	PresetThisMonth    Preset = "this_month"
	PresetLastMonth    Preset = "last_month"
	PresetThisYear     Preset = "this_year"
	PresetLast12Months Preset = "last_12_months"
)

type Stream string

const (
	StreamResourceSale Stream = "resource_sale"
	StreamSubscription Stream = "subscription"
	StreamAdPayment    Stream = "ad_payment"
)

type EntityType string

const (
	EntitySeller EntityType = "seller"
	EntitySchool EntityType = "school"
)

// Query selects a half-open window [Start, End). A Preset wins over Start/End.
type Query struct {
	Preset      Preset      `form:"preset" json:"preset,omitempty"`
	Start       time.Time   `form:"start" time_format:"2006-01-02" time_utc:"1" json:"start,omitempty"`
	End         time.Time   `form:"end" time_format:"2006-01-02" time_utc:"1" json:"end,omitempty"`
	Stream      Stream      `form:"stream" json:"stream,omitempty"`
	Currency    string      `form:"currency" json:"currency,omitempty"`
	Granularity Granularity `form:"granularity" json:"granularity,omitempty"`
}

type Total struct {
	Amount int64 `json:"amount"`
	Count  int64 `json:"count"`
}

func (t *Total) add(amount, count int64) {
	t.Amount += amount
	t.Count += count
}

type SubscriptionTotals struct {
	Teacher Total `json:"teacher"`
	School  Total `json:"school"`
	Total   Total `json:"total"`
}

// Coverage reports how much of the requested window was scanned before the
// aggregation deadline.
type Coverage struct {
	Start      time.Time `json:"start"`
	End        time.Time `json:"end"`
	Partial    bool      `json:"partial"`
	CoveredEnd time.Time `json:"covered_end"`
}

type Overview struct {
	Currency      string             `json:"currency"`
	ResourceSales Total              `json:"resource_sales"`
	Subscriptions SubscriptionTotals `json:"subscriptions"`
	AdPayments    Total              `json:"ad_payments"`
	Total         Total              `json:"total"`
	Coverage
}

// Add folds one daily total into the stream it belongs to.
func (o *Overview) Add(d DailyTotal) {
	switch d.SourceType {
	case string(StreamResourceSale):
		o.ResourceSales.add(d.Amount, d.Count)
	case string(StreamSubscription):
		if d.Audience == AudienceSchool {
			o.Subscriptions.School.add(d.Amount, d.Count)
		} else {
			o.Subscriptions.Teacher.add(d.Amount, d.Count)
		}
		o.Subscriptions.Total.add(d.Amount, d.Count)
	case string(StreamAdPayment):
		o.AdPayments.add(d.Amount, d.Count)
	default:
		return
	}
	o.Total.add(d.Amount, d.Count)
}

type TimeSeriesPoint struct {
	Period              string    `json:"period"`
	Start               time.Time `json:"start"`
	ResourceSales       int64     `json:"resource_sales"`
	SubscriptionTeacher int64     `json:"subscription_teacher"`
	SubscriptionSchool  int64     `json:"subscription_school"`
	AdPayments          int64     `json:"ad_payments"`
	Total               int64     `json:"total"`
}

func (p *TimeSeriesPoint) Add(d DailyTotal) {
	switch d.SourceType {
	case string(StreamResourceSale):
		p.ResourceSales += d.Amount
	case string(StreamSubscription):
		if d.Audience == AudienceSchool {
			p.SubscriptionSchool += d.Amount
		} else {
			p.SubscriptionTeacher += d.Amount
		}
	case string(StreamAdPayment):
		p.AdPayments += d.Amount
	default:
		return
	}
	p.Total += d.Amount
}

type TimeSeries struct {
	Currency    string            `json:"currency"`
	Granularity Granularity       `json:"granularity"`
	Points      []TimeSeriesPoint `json:"points"`
	Coverage
}

type MRR struct {
	Currency      string `json:"currency"`
	Total         int64  `json:"total"`
	Teacher       int64  `json:"teacher"`
	School        int64  `json:"school"`
	Subscriptions int64  `json:"subscriptions"`
}

type Churn struct {
	Month         string  `json:"month"`
	ActiveAtStart int64   `json:"active_at_start"`
	Cancelled     int64   `json:"cancelled"`
	RatePercent   float64 `json:"rate_percent"`
}

type BreakdownQuery struct {
	Query
	EntityType EntityType `form:"entity_type" json:"entity_type"`
	pagination.Page
}

type BreakdownRow struct {
	EntityID snowflake.ID `json:"entity_id,string"`
	Name     string       `json:"name,omitempty"`
	Count    int64        `json:"count"`
	Gross    int64        `json:"gross"`
	Revenue  int64        `json:"revenue"`
	Earnings int64        `json:"earnings"`
	// BelowMinimumPayout is set on seller rows whose earnings in the window
	// do not reach the currency's minimum payout.
	BelowMinimumPayout bool `json:"below_minimum_payout"`
}

type Breakdown struct {
	Currency   string              `json:"currency"`
	EntityType EntityType          `json:"entity_type"`
	Rows       []BreakdownRow      `json:"rows"`
	PageInfo   pagination.PageInfo `json:"page_info"`
	Coverage
}

// DayLayout is the format of DailyTotal.Day.
const DayLayout = "2006-01-02"

// DailyTotal is the platform commission of completed settlements summed per
// UTC day, stream and audience.
type DailyTotal struct {
	Day        string `gorm:"column:day"`
	SourceType string `gorm:"column:source_type"`
	Audience   string `gorm:"column:audience"`
	Amount     int64  `gorm:"column:amount"`
	Count      int64  `gorm:"column:cnt"`
}

// Date is Day as midnight UTC.
func (d DailyTotal) Date() (time.Time, error) {
	return time.ParseInLocation(DayLayout, d.Day, time.UTC)
}

// EntityTotal is one seller's or school's sums inside a window.
type EntityTotal struct {
	EntityID snowflake.ID `gorm:"column:entity_id"`
	Count    int64        `gorm:"column:cnt"`
	Gross    int64        `gorm:"column:gross"`
	Revenue  int64        `gorm:"column:revenue"`
	Earnings int64        `gorm:"column:earnings"`
}

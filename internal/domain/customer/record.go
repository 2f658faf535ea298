// Package customer turns a pseudonymized customer profile, its purchase
// history and engagement metrics into a normalized FeatureVector, detects
// advisory behaviour patterns and assigns exactly one market segment.
package customer

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
)

// ─────────────────────────────────────────────────────────────────────────────
// Inputs
// ─────────────────────────────────────────────────────────────────────────────

// Record is a pseudonymized customer profile.  Every field is optional; a nil
// pointer or empty string means "not supplied".
type Record struct {
	CustomerID   string `json:"customer_id,omitempty"`
	CustomerName string `json:"customer_name,omitempty"`
	// CustomerType is enterprise, sme or consumer.
	CustomerType string `json:"customer_type,omitempty"`

	Age          *float64 `json:"age,omitempty"`
	AgeGroup     string   `json:"age_group,omitempty"`
	Location     string   `json:"location,omitempty"`
	AccountType  string   `json:"account_type,omitempty"`
	TenureMonths *float64 `json:"tenure_months,omitempty"`

	MonthlySpend *decimal.Decimal `json:"monthly_spend,omitempty"`
	DataUsageGB  *float64         `json:"data_usage_gb,omitempty"`
	VoiceMinutes *float64         `json:"voice_minutes,omitempty"`
	SMSCount     *int             `json:"sms_count,omitempty"`
	RoamingUsage *float64         `json:"roaming_usage,omitempty"`

	AnnualRevenue           *decimal.Decimal `json:"annual_revenue,omitempty"`
	EmployeeCount           *int             `json:"employee_count,omitempty"`
	Industry                string           `json:"industry,omitempty"`
	UrgencyIndicators       StringList       `json:"urgency_indicators,omitempty"`
	PainPoints              StringList       `json:"pain_points,omitempty"`
	CompetitorMentions      StringList       `json:"competitor_mentions,omitempty"`
	DecisionMakerIdentified *bool            `json:"decision_maker_identified,omitempty"`
	BudgetConfirmed         *bool            `json:"budget_confirmed,omitempty"`

	// Warnings collects MalformedValue diagnostics raised while decoding.
	Warnings []Warning `json:"-"`
}

// Purchase is one entry of a customer's purchase history.
type Purchase struct {
	Amount            *decimal.Decimal `json:"amount,omitempty"`
	Category          string           `json:"category,omitempty"`
	Date              string           `json:"date,omitempty"`
	ContractLength    *int             `json:"contract_length,omitempty"`
	SatisfactionScore *float64         `json:"satisfaction_score,omitempty"`

	Warnings []Warning `json:"-"`
}

// Engagement carries optional engagement metrics.
type Engagement struct {
	SatisfactionScore   *float64 `json:"satisfaction_score,omitempty"`
	AppUsageHours       *float64 `json:"app_usage_hours,omitempty"`
	ServiceInteractions *int     `json:"service_interactions,omitempty"`
	ComplaintCount      *int     `json:"complaint_count,omitempty"`
	PromotionResponses  *int     `json:"promotion_responses,omitempty"`
	PromotionOffers     *int     `json:"promotion_offers,omitempty"`

	Warnings []Warning `json:"-"`
}

// IsEmpty reports whether no engagement metric was supplied.  A nil
// Engagement is empty.
func (e *Engagement) IsEmpty() bool {
	if e == nil {
		return true
	}
	return e.SatisfactionScore == nil && e.AppUsageHours == nil && e.ServiceInteractions == nil &&
		e.ComplaintCount == nil && e.PromotionResponses == nil && e.PromotionOffers == nil
}

// MarketContext carries optional contextual flags used by urgency scoring.
type MarketContext struct {
	ContractRenewalSeason     bool `json:"contract_renewal_season"`
	CompetitiveCampaignActive bool `json:"competitive_campaign_active"`
}

// Input bundles everything known about one customer.
type Input struct {
	Record     Record      `json:"record"`
	History    []Purchase  `json:"purchase_history,omitempty"`
	Engagement *Engagement `json:"engagement,omitempty"`
	// CurrentProductIDs lists catalog products the customer already holds.
	CurrentProductIDs []string `json:"current_product_ids,omitempty"`
}

// ─────────────────────────────────────────────────────────────────────────────
// Record signals
// ─────────────────────────────────────────────────────────────────────────────

// RenewalSignal reports whether an urgency indicator names a contract renewal.
func (r Record) RenewalSignal() bool {
	for _, s := range r.UrgencyIndicators {
		if strings.Contains(strings.ToLower(s), "renewal") {
			return true
		}
	}
	return false
}

// CompetitorInterest reports whether the customer mentioned any competitor.
func (r Record) CompetitorInterest() bool {
	for _, s := range r.CompetitorMentions {
		if strings.TrimSpace(s) != "" {
			return true
		}
	}
	return false
}

// MergeContext returns the market context to score this record with.  The
// renewal flag is raised by a renewal urgency indicator even when mc is nil.
// mc itself is never modified.
func (r Record) MergeContext(mc *MarketContext) *MarketContext {
	if !r.RenewalSignal() {
		return mc
	}
	out := MarketContext{ContractRenewalSeason: true}
	if mc != nil {
		out.CompetitiveCampaignActive = mc.CompetitiveCampaignActive
	}
	return &out
}

// DisplayName returns CustomerName, or "Unknown" when absent.
func (r Record) DisplayName() string {
	if r.CustomerName == "" {
		return "Unknown"
	}
	return r.CustomerName
}

// ─────────────────────────────────────────────────────────────────────────────
// Warning
// ─────────────────────────────────────────────────────────────────────────────

// Warning is a field-level MalformedValue diagnostic.  The field falls back to
// its default and processing continues.
type Warning struct {
	Field  string `json:"field"`
	Value  string `json:"value,omitempty"`
	Reason string `json:"reason"`
}

func (w Warning) String() string {
	if w.Value == "" {
		return fmt.Sprintf("%s: %s", w.Field, w.Reason)
	}
	return fmt.Sprintf("%s=%s: %s", w.Field, w.Value, w.Reason)
}

func malformed(field string, v interface{}, reason string) Warning {
	return Warning{Field: field, Value: fmt.Sprintf("%v", v), Reason: reason}
}

// ─────────────────────────────────────────────────────────────────────────────
// StringList
// ─────────────────────────────────────────────────────────────────────────────

// StringList decodes from either a JSON array of strings or a single string.
type StringList []string

// UnmarshalJSON implements json.Unmarshaler.
func (l *StringList) UnmarshalJSON(b []byte) error {
	var many []string
	if err := json.Unmarshal(b, &many); err == nil {
		*l = many
		return nil
	}
	var one string
	if err := json.Unmarshal(b, &one); err != nil {
		return fmt.Errorf("customer: expected string or string array: %w", err)
	}
	if strings.TrimSpace(one) == "" {
		*l = nil
		return nil
	}
	*l = StringList{one}
	return nil
}

// ─────────────────────────────────────────────────────────────────────────────
// Loose map decoding
// ─────────────────────────────────────────────────────────────────────────────

// RecordFromMap decodes the loosely keyed record form.  Unknown keys are
// ignored; wrongly typed values are dropped and recorded in Record.Warnings.
// monthly_spend falls back to current_monthly_spend.
func RecordFromMap(m map[string]interface{}) Record {
	var r Record
	d := mapDecoder{m: m}

	r.CustomerID = d.str("customer_id")
	r.CustomerName = d.str("customer_name")
	if r.CustomerName == "" {
		r.CustomerName = d.str("name")
	}
	r.CustomerType = d.str("customer_type")

	// age may be a number or a pre-bucketed label.
	if v, ok := m["age"]; ok && v != nil {
		if s, isStr := v.(string); isStr {
			r.AgeGroup = s
		} else if f, ok := toFloat(v); ok {
			r.Age = &f
		} else {
			d.warn(malformed("age", v, "expected number or label"))
		}
	}
	if r.AgeGroup == "" {
		r.AgeGroup = d.str("age_group")
	}

	r.Location = d.str("location")
	r.AccountType = d.str("account_type")
	r.TenureMonths = d.float("tenure_months")

	r.MonthlySpend = d.money("monthly_spend")
	if r.MonthlySpend == nil {
		r.MonthlySpend = d.money("current_monthly_spend")
	}
	r.DataUsageGB = d.float("data_usage_gb")
	r.VoiceMinutes = d.float("voice_minutes")
	r.SMSCount = d.int("sms_count")
	r.RoamingUsage = d.float("roaming_usage")

	r.AnnualRevenue = d.money("annual_revenue")
	r.EmployeeCount = d.int("employee_count")
	r.Industry = d.str("industry")
	r.UrgencyIndicators = d.list("urgency_indicators")
	r.PainPoints = d.list("pain_points")
	r.CompetitorMentions = d.list("competitor_mentions")
	r.DecisionMakerIdentified = d.bool("decision_maker_identified")
	r.BudgetConfirmed = d.bool("budget_confirmed")

	r.Warnings = d.warnings
	return r
}

// PurchasesFromMaps decodes a loosely keyed purchase history.  Each purchase
// keeps its own warnings; all of them are also returned in order.
func PurchasesFromMaps(rows []map[string]interface{}) ([]Purchase, []Warning) {
	out := make([]Purchase, 0, len(rows))
	var warnings []Warning
	for i, m := range rows {
		p := purchaseFromMap(m, fmt.Sprintf("purchase_history[%d].", i))
		out = append(out, p)
		warnings = append(warnings, p.Warnings...)
	}
	return out, warnings
}

func purchaseFromMap(m map[string]interface{}, prefix string) Purchase {
	d := mapDecoder{m: m, prefix: prefix}
	p := Purchase{
		Amount:            d.money("amount"),
		Category:          d.str("category"),
		Date:              d.str("date"),
		ContractLength:    d.int("contract_length"),
		SatisfactionScore: d.float("satisfaction_score"),
	}
	p.Warnings = d.warnings
	return p
}

// EngagementFromMap decodes a loosely keyed engagement record.  A nil or empty
// map yields nil.
func EngagementFromMap(m map[string]interface{}) *Engagement {
	if len(m) == 0 {
		return nil
	}
	d := mapDecoder{m: m, prefix: "engagement."}
	e := &Engagement{
		SatisfactionScore:   d.float("satisfaction_score"),
		AppUsageHours:       d.float("app_usage_hours"),
		ServiceInteractions: d.int("service_interactions"),
		ComplaintCount:      d.int("complaint_count"),
		PromotionResponses:  d.int("promotion_responses"),
		PromotionOffers:     d.int("promotion_offers"),
	}
	e.Warnings = d.warnings
	return e
}

// ─────────────────────────────────────────────────────────────────────────────
// JSON decoding
// ─────────────────────────────────────────────────────────────────────────────

// UnmarshalJSON decodes a customer leniently.  Wrongly typed fields fall back
// to their defaults with a warning, and so do parts of the wrong shape (a
// record that is not an object, a history that is not an array).  It never
// fails, so one bad customer cannot reject the batch it arrived in.
func (in *Input) UnmarshalJSON(b []byte) error {
	var out Input
	var extra []Warning

	var parts map[string]json.RawMessage
	if err := json.Unmarshal(b, &parts); err != nil {
		extra = append(extra, shapeWarning("customer", b, "expected object"))
	}

	if raw, ok := parts["record"]; ok {
		m, err := decodeObject(raw)
		if err != nil {
			extra = append(extra, shapeWarning("record", raw, "expected object"))
		}
		out.Record = RecordFromMap(m)
	}

	if raw, ok := parts["purchase_history"]; ok {
		var rows []json.RawMessage
		if err := json.Unmarshal(raw, &rows); err != nil {
			extra = append(extra, shapeWarning("purchase_history", raw, "expected array"))
		}
		for i, row := range rows {
			field := fmt.Sprintf("purchase_history[%d]", i)
			m, err := decodeObject(row)
			if err != nil {
				extra = append(extra, shapeWarning(field, row, "expected object"))
				continue
			}
			out.History = append(out.History, purchaseFromMap(m, field+"."))
		}
	}

	if raw, ok := parts["engagement"]; ok {
		m, err := decodeObject(raw)
		if err != nil {
			extra = append(extra, shapeWarning("engagement", raw, "expected object"))
		}
		out.Engagement = EngagementFromMap(m)
	}

	if raw, ok := parts["current_product_ids"]; ok {
		var ids StringList
		if err := json.Unmarshal(raw, &ids); err != nil {
			extra = append(extra, shapeWarning("current_product_ids", raw, "expected string array"))
		}
		out.CurrentProductIDs = ids
	}

	out.Record.Warnings = append(out.Record.Warnings, extra...)
	*in = out
	return nil
}

// UnmarshalJSON decodes a record through RecordFromMap.  Only a document that
// is not an object is an error.
func (r *Record) UnmarshalJSON(b []byte) error {
	m, err := decodeObject(b)
	if err != nil {
		return fmt.Errorf("customer: record: %w", err)
	}
	*r = RecordFromMap(m)
	return nil
}

// UnmarshalJSON decodes one purchase leniently.
func (p *Purchase) UnmarshalJSON(b []byte) error {
	m, err := decodeObject(b)
	if err != nil {
		return fmt.Errorf("customer: purchase: %w", err)
	}
	*p = purchaseFromMap(m, "purchase.")
	return nil
}

// UnmarshalJSON decodes engagement metrics leniently.
func (e *Engagement) UnmarshalJSON(b []byte) error {
	m, err := decodeObject(b)
	if err != nil {
		return fmt.Errorf("customer: engagement: %w", err)
	}
	if eng := EngagementFromMap(m); eng != nil {
		*e = *eng
	} else {
		*e = Engagement{}
	}
	return nil
}

// decodeObject decodes a JSON object keeping numbers as json.Number so money
// survives without float rounding.  null yields a nil map.
func decodeObject(b []byte) (map[string]interface{}, error) {
	dec := json.NewDecoder(bytes.NewReader(b))
	dec.UseNumber()
	var m map[string]interface{}
	if err := dec.Decode(&m); err != nil {
		return nil, err
	}
	return m, nil
}

const maxWarningValue = 40

func shapeWarning(field string, raw []byte, reason string) Warning {
	v := string(bytes.TrimSpace(raw))
	if len(v) > maxWarningValue {
		v = v[:maxWarningValue] + "..."
	}
	return Warning{Field: field, Value: v, Reason: reason}
}

type mapDecoder struct {
	m        map[string]interface{}
	prefix   string
	warnings []Warning
}

func (d *mapDecoder) warn(w Warning) {
	w.Field = d.prefix + w.Field
	d.warnings = append(d.warnings, w)
}

func (d *mapDecoder) str(key string) string {
	v, ok := d.m[key]
	if !ok || v == nil {
		return ""
	}
	switch t := v.(type) {
	case string:
		return t
	case fmt.Stringer:
		return t.String()
	default:
		if f, ok := toFloat(v); ok {
			return strconv.FormatFloat(f, 'f', -1, 64)
		}
		d.warn(malformed(key, v, "expected string"))
		return ""
	}
}

func (d *mapDecoder) float(key string) *float64 {
	v, ok := d.m[key]
	if !ok || v == nil {
		return nil
	}
	f, ok := toFloat(v)
	if !ok {
		d.warn(malformed(key, v, "expected number"))
		return nil
	}
	return &f
}

func (d *mapDecoder) int(key string) *int {
	f := d.float(key)
	if f == nil {
		return nil
	}
	n := int(math.Trunc(*f))
	return &n
}

func (d *mapDecoder) money(key string) *decimal.Decimal {
	v, ok := d.m[key]
	if !ok || v == nil {
		return nil
	}
	switch t := v.(type) {
	case decimal.Decimal:
		return &t
	case string:
		// decimal.Decimal marshals as a quoted string.
		dec, err := decimal.NewFromString(strings.TrimSpace(t))
		if err != nil {
			d.warn(malformed(key, v, "expected number"))
			return nil
		}
		return &dec
	case json.Number:
		dec, err := decimal.NewFromString(t.String())
		if err != nil {
			d.warn(malformed(key, v, "expected number"))
			return nil
		}
		return &dec
	}
	f, ok := toFloat(v)
	if !ok {
		d.warn(malformed(key, v, "expected number"))
		return nil
	}
	dec := decimal.NewFromFloat(f)
	return &dec
}

func (d *mapDecoder) bool(key string) *bool {
	v, ok := d.m[key]
	if !ok || v == nil {
		return nil
	}
	b, isBool := v.(bool)
	if !isBool {
		d.warn(malformed(key, v, "expected boolean"))
		return nil
	}
	return &b
}

func (d *mapDecoder) list(key string) StringList {
	v, ok := d.m[key]
	if !ok || v == nil {
		return nil
	}
	switch t := v.(type) {
	case string:
		if strings.TrimSpace(t) == "" {
			return nil
		}
		return StringList{t}
	case []string:
		return StringList(t)
	case []interface{}:
		out := make(StringList, 0, len(t))
		for _, item := range t {
			s, isStr := item.(string)
			if !isStr {
				d.warn(malformed(key, item, "expected string element"))
				continue
			}
			out = append(out, s)
		}
		return out
	default:
		d.warn(malformed(key, v, "expected string or list"))
		return nil
	}
}

// toFloat accepts every Go numeric kind plus json.Number.  Strings and NaN are
// rejected.
func toFloat(v interface{}) (float64, bool) {
	var f float64
	switch t := v.(type) {
	case float64:
		f = t
	case float32:
		f = float64(t)
	case int:
		f = float64(t)
	case int8:
		f = float64(t)
	case int16:
		f = float64(t)
	case int32:
		f = float64(t)
	case int64:
		f = float64(t)
	case uint:
		f = float64(t)
	case uint8:
		f = float64(t)
	case uint16:
		f = float64(t)
	case uint32:
		f = float64(t)
	case uint64:
		f = float64(t)
	case json.Number:
		parsed, err := t.Float64()
		if err != nil {
			return 0, false
		}
		f = parsed
	default:
		return 0, false
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

package customer

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecordFromMap_TypedValues(t *testing.T) {
	rec := RecordFromMap(map[string]interface{}{
		"customer_id":               "CUST_002",
		"name":                      "SME Solutions Ltd",
		"customer_type":             "sme",
		"age":                       41,
		"location":                  "Kowloon Bay",
		"tenure_months":             3.0,
		"current_monthly_spend":     8500,
		"data_usage_gb":             json.Number("12.5"),
		"sms_count":                 int64(40),
		"employee_count":            25,
		"industry":                  "Retail",
		"urgency_indicators":        []interface{}{"Contract renewal in 60 days"},
		"pain_points":               []string{"Network coverage"},
		"competitor_mentions":       "CSL",
		"decision_maker_identified": true,
		"budget_confirmed":          false,
		"unknown_key":               "ignored",
	})

	assert.Empty(t, rec.Warnings)
	assert.Equal(t, "CUST_002", rec.CustomerID)
	assert.Equal(t, "SME Solutions Ltd", rec.CustomerName)
	assert.Equal(t, "sme", rec.CustomerType)
	require.NotNil(t, rec.Age)
	assert.Equal(t, 41.0, *rec.Age)
	require.NotNil(t, rec.MonthlySpend)
	assert.Equal(t, "8500", rec.MonthlySpend.String())
	require.NotNil(t, rec.DataUsageGB)
	assert.Equal(t, 12.5, *rec.DataUsageGB)
	assert.Equal(t, 40, *rec.SMSCount)
	assert.Equal(t, StringList{"CSL"}, rec.CompetitorMentions)
	assert.Equal(t, StringList{"Network coverage"}, rec.PainPoints)
	assert.True(t, *rec.DecisionMakerIdentified)
	assert.False(t, *rec.BudgetConfirmed)
	assert.True(t, rec.RenewalSignal())
	assert.True(t, rec.CompetitorInterest())
}

func TestRecordFromMap_AgeLabelAndWarnings(t *testing.T) {
	rec := RecordFromMap(map[string]interface{}{
		"age":                "25-34",
		"monthly_spend":      "a lot",
		"voice_minutes":      map[string]int{"x": 1},
		"budget_confirmed":   "yes",
		"urgency_indicators": []interface{}{"ok", 7},
	})

	assert.Nil(t, rec.Age)
	assert.Equal(t, "25-34", rec.AgeGroup)
	assert.Nil(t, rec.MonthlySpend)
	assert.Nil(t, rec.VoiceMinutes)
	assert.Nil(t, rec.BudgetConfirmed)
	assert.Equal(t, StringList{"ok"}, rec.UrgencyIndicators)

	fields := make([]string, 0, len(rec.Warnings))
	for _, w := range rec.Warnings {
		fields = append(fields, w.Field)
	}
	assert.ElementsMatch(t, []string{"monthly_spend", "voice_minutes", "budget_confirmed", "urgency_indicators"}, fields)
}

func TestRecord_DisplayNameAndSignals(t *testing.T) {
	assert.Equal(t, "Unknown", Record{}.DisplayName())
	assert.Equal(t, "Acme", Record{CustomerName: "Acme"}.DisplayName())

	assert.False(t, Record{}.RenewalSignal())
	assert.False(t, Record{CompetitorMentions: StringList{"  "}}.CompetitorInterest())
}

func TestRecord_MergeContext(t *testing.T) {
	plain := Record{}
	mc := &MarketContext{CompetitiveCampaignActive: true}
	assert.Same(t, mc, plain.MergeContext(mc))
	assert.Nil(t, plain.MergeContext(nil))

	renewal := Record{UrgencyIndicators: StringList{"Contract RENEWAL due"}}
	got := renewal.MergeContext(mc)
	require.NotNil(t, got)
	assert.True(t, got.ContractRenewalSeason)
	assert.True(t, got.CompetitiveCampaignActive)
	assert.False(t, mc.ContractRenewalSeason, "input context must not change")

	got = renewal.MergeContext(nil)
	assert.True(t, got.ContractRenewalSeason)
	assert.False(t, got.CompetitiveCampaignActive)
}

func TestStringList_UnmarshalJSON(t *testing.T) {
	var rec Record
	err := json.Unmarshal([]byte(`{"competitor_mentions":"SmarTone","pain_points":["cost","coverage"],"urgency_indicators":""}`), &rec)
	require.NoError(t, err)
	assert.Equal(t, StringList{"SmarTone"}, rec.CompetitorMentions)
	assert.Equal(t, StringList{"cost", "coverage"}, rec.PainPoints)
	assert.Nil(t, rec.UrgencyIndicators)

	err = json.Unmarshal([]byte(`{"pain_points":42}`), &rec)
	require.NoError(t, err)
	assert.Nil(t, rec.PainPoints)
	require.Len(t, rec.Warnings, 1)
	assert.Equal(t, "pain_points", rec.Warnings[0].Field)

	assert.Error(t, json.Unmarshal([]byte(`[1]`), &rec))
}

func TestInput_UnmarshalJSON_Lenient(t *testing.T) {
	var in Input
	err := json.Unmarshal([]byte(`{
		"record": {"customer_id": "C-1", "monthly_spend": "1234.56", "tenure_months": "28"},
		"purchase_history": [{"amount": 100}, "oops", {"amount": true}],
		"engagement": 7,
		"current_product_ids": "FIVE_G_PREMIUM"
	}`), &in)
	require.NoError(t, err)

	assert.Equal(t, "C-1", in.Record.CustomerID)
	require.NotNil(t, in.Record.MonthlySpend)
	assert.Equal(t, "1234.56", in.Record.MonthlySpend.String())
	assert.Nil(t, in.Record.TenureMonths)
	assert.Nil(t, in.Engagement)
	assert.Equal(t, []string{"FIVE_G_PREMIUM"}, in.CurrentProductIDs)

	require.Len(t, in.History, 2)
	assert.Equal(t, "100", in.History[0].Amount.String())
	assert.Nil(t, in.History[1].Amount)
	require.Len(t, in.History[1].Warnings, 1)
	assert.Equal(t, "purchase_history[2].amount", in.History[1].Warnings[0].Field)

	fields := make([]string, 0, len(in.Record.Warnings))
	for _, w := range in.Record.Warnings {
		fields = append(fields, w.Field)
	}
	assert.ElementsMatch(t, []string{"tenure_months", "purchase_history[1]", "engagement"}, fields)

	var odd Input
	require.NoError(t, json.Unmarshal([]byte(`42`), &odd))
	require.Len(t, odd.Record.Warnings, 1)
	assert.Equal(t, "customer", odd.Record.Warnings[0].Field)

	v := NewExtractor(DefaultMarketParams(), nil).Extract(in.Record, in.History, in.Engagement)
	assert.Len(t, v.Warnings, 4)
}

func TestPurchasesAndEngagementFromMaps(t *testing.T) {
	history, warnings := PurchasesFromMaps([]map[string]interface{}{
		{"amount": 120.5, "category": "plan", "date": "2024-03-01", "contract_length": 24},
		{"amount": "bad"},
	})
	require.Len(t, history, 2)
	assert.Equal(t, "120.5", history[0].Amount.String())
	assert.Equal(t, 24, *history[0].ContractLength)
	assert.Nil(t, history[1].Amount)
	require.Len(t, warnings, 1)
	assert.Equal(t, "purchase_history[1].amount", warnings[0].Field)

	assert.Nil(t, EngagementFromMap(nil))
	eng := EngagementFromMap(map[string]interface{}{"satisfaction_score": 7.5, "complaint_count": 2})
	require.NotNil(t, eng)
	assert.False(t, eng.IsEmpty())
	assert.Equal(t, 7.5, *eng.SatisfactionScore)
	assert.Equal(t, 2, *eng.ComplaintCount)
	assert.True(t, (&Engagement{}).IsEmpty())
}

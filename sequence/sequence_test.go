package sequence

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/hazyhaar/eriflow/browser"
	"github.com/hazyhaar/eriflow/browser/browsertest"
	"github.com/hazyhaar/eriflow/interact"
	"github.com/hazyhaar/eriflow/locator"
	"github.com/hazyhaar/eriflow/record"
	"github.com/hazyhaar/eriflow/run"
)

var sample = record.InputRecord{
	Code:            "12345",
	Location:        "Dallas, TX",
	Revenue:         1000000,
	Industry:        "Retail",
	ExperienceYears: record.Years(5),
	Statistic:       record.Mean,
}

func formPage(t *testing.T, skip ...string) *browsertest.Page {
	t.Helper()
	tab := locator.Default()
	page := browsertest.NewPage("https://online.erieri.com/")
	omit := map[string]bool{}
	for _, s := range skip {
		omit[s] = true
	}
	for _, name := range FullOrder {
		if name == locator.SelectCodeType || omit[name] {
			continue
		}
		sel, err := tab.Get(name)
		require.NoError(t, err)
		page.Add(sel.Expr, &browsertest.Element{})
	}
	return page
}

func fastConfig() Config {
	return Config{
		Timing:       interact.Timing{ElementTimeout: 20 * time.Millisecond, OptionTimeout: 5 * time.Millisecond},
		ReadyTimeout: 50 * time.Millisecond,
	}
}

type captured struct{ labels []string }

func (c *captured) Capture(_ context.Context, _ browser.Page, label string) error {
	c.labels = append(c.labels, label)
	return nil
}

func TestOrder(t *testing.T) {
	require.Len(t, Order(run.Full), 9)
	abbr := Order(run.Abbreviated)
	require.Len(t, abbr, 8)
	require.Equal(t, locator.OpenForm, abbr[0])
	require.NotContains(t, abbr, locator.Navigate, "abbreviated sequence must not navigate")
}

func TestSteps_Values(t *testing.T) {
	s := New(fastConfig())
	byName := map[string]interact.Step{}
	for _, st := range s.Steps(sample, run.Full) {
		byName[st.Name] = st
	}
	require.Equal(t, "1,000,000", byName[locator.TypeRevenue].Value)

	code := byName[locator.TypeCode]
	require.Equal(t, "12345", code.Value)
	require.Equal(t, interact.Type, code.Kind)

	sel := byName[locator.SelectCodeType]
	require.Equal(t, interact.KeyboardSelect, sel.Kind)
	require.Equal(t, "ERI Code", sel.Option)
	require.Empty(t, sel.Locator)

	loc := byName[locator.TypeLocation]
	require.Equal(t, interact.TypeAndSubmit, loc.Kind)
	require.Equal(t, "Dallas, TX", loc.Value)
}

func TestRun_AllStepsPass(t *testing.T) {
	page := formPage(t)
	out := New(fastConfig()).Run(context.Background(), run.RunContext{Record: sample, Variant: run.Full, Page: page})
	require.Equal(t, run.Success, out.Kind, "outcome: %+v", out)
	require.Equal(t, 9, page.Count("stable"), "checkpoints")
}

func TestRun_AbbreviatedSkipsNavigate(t *testing.T) {
	page := formPage(t, locator.Navigate)
	out := New(fastConfig()).Run(context.Background(), run.RunContext{Record: sample, Variant: run.Abbreviated, Page: page})
	require.Equal(t, run.Success, out.Kind, "outcome: %+v", out)
	require.Equal(t, 8, page.Count("stable"), "checkpoints")
}

func TestRun_FirstFailureAborts(t *testing.T) {
	page := formPage(t, locator.TypeIndustry)
	diag := &captured{}
	cfg := fastConfig()
	cfg.Diag = diag

	out := New(cfg).Run(context.Background(), run.RunContext{BatchID: "b1", Index: 2, Record: sample, Variant: run.Full, Page: page})
	require.Equal(t, run.StepFailure, out.Kind)
	require.Equal(t, locator.TypeIndustry, out.Step)
	require.Equal(t, "not found in time", out.Reason)
	require.True(t, errors.Is(out.Err(), run.ErrStep), "step failure should map to ErrStep")

	rev, _ := locator.Default().Get(locator.TypeRevenue)
	require.Zero(t, page.Count("click:"+rev.Expr), "steps after the failure must not run")
	require.Equal(t, []string{"b1_003_type_industry"}, diag.labels)
}

func TestRun_CheckpointTimeout(t *testing.T) {
	page := formPage(t)
	page.StableErr = context.DeadlineExceeded

	out := New(fastConfig()).Run(context.Background(), run.RunContext{Record: sample, Variant: run.Full, Page: page})
	require.Equal(t, run.StepFailure, out.Kind)
	require.Equal(t, locator.Navigate, out.Step)
	require.Equal(t, ReasonUnstable, out.Reason)
}

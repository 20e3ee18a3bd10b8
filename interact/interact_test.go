package interact

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/hazyhaar/eriflow/browser"
	"github.com/hazyhaar/eriflow/browser/browsertest"
	"github.com/hazyhaar/eriflow/locator"
)

func newExec(page *browsertest.Page) *Executor {
	return New(page, Config{
		Locators: locator.Default(),
		Timing:   Timing{ElementTimeout: 20 * time.Millisecond, OptionTimeout: 10 * time.Millisecond},
	})
}

func expr(t *testing.T, key string) string {
	t.Helper()
	sel, err := locator.Default().Get(key)
	require.NoError(t, err)
	return sel.Expr
}

func TestPerform_ClickDirect(t *testing.T) {
	page := browsertest.NewPage("https://online.erieri.com/")
	x := expr(t, locator.OpenForm)
	page.Add(x, &browsertest.Element{})

	res := newExec(page).Perform(context.Background(), Step{Name: "open_form", Locator: locator.OpenForm, Kind: Click})
	require.True(t, res.OK, "result: %+v", res)
	require.Equal(t, 1, page.Count("click:"+x), "log: %v", page.Log())
	require.Zero(t, page.Count("script-click:"+x), "script click must not run when the direct click works")
	require.Equal(t, 1, page.Count("scroll:"+x), "element should be scrolled into view")
}

func TestPerform_ClickFallsBackToScript(t *testing.T) {
	page := browsertest.NewPage("")
	x := expr(t, locator.ConfirmCode)
	page.Add(x, &browsertest.Element{ClickErr: fmt.Errorf("%w: covered", browser.ErrNotInteractable)})

	res := newExec(page).Perform(context.Background(), Step{Name: "confirm_code", Locator: locator.ConfirmCode, Kind: Click})
	require.True(t, res.OK, "result: %+v", res)
	require.Equal(t, 1, page.Count("script-click:"+x), "log: %v", page.Log())
}

func TestPerform_ClickOtherErrorFails(t *testing.T) {
	page := browsertest.NewPage("")
	x := expr(t, locator.ConfirmCode)
	page.Add(x, &browsertest.Element{ClickErr: errors.New("detached")})

	res := newExec(page).Perform(context.Background(), Step{Name: "confirm_code", Locator: locator.ConfirmCode, Kind: Click})
	require.False(t, res.OK)
	require.Contains(t, res.Reason, "detached")
	require.Zero(t, page.Count("script-click:"+x), "script click is only for non-interactable elements")
}

func TestPerform_NotFoundInTime(t *testing.T) {
	page := browsertest.NewPage("")
	res := newExec(page).Perform(context.Background(), Step{Name: "open_form", Locator: locator.OpenForm, Kind: Click})
	require.False(t, res.OK)
	require.Equal(t, "not found in time", res.Reason)
}

func TestPerform_NotInteractableTimesOut(t *testing.T) {
	page := browsertest.NewPage("")
	page.Add(expr(t, locator.OpenForm), &browsertest.Element{NotInteractable: true})
	res := newExec(page).Perform(context.Background(), Step{Name: "open_form", Locator: locator.OpenForm, Kind: Click})
	require.False(t, res.OK)
	require.Equal(t, "not found in time", res.Reason)
}

func TestPerform_TypeAndSubmit_ClearsStickyValue(t *testing.T) {
	page := browsertest.NewPage("")
	x := expr(t, locator.TypeLocation)
	field := &browsertest.Element{InputValue: "old", Sticky: true}
	page.Add(x, field)

	res := newExec(page).Perform(context.Background(), Step{
		Name: "type_location", Locator: locator.TypeLocation, Kind: TypeAndSubmit, Value: "Dallas, TX",
	})
	require.True(t, res.OK, "result: %+v", res)
	require.Equal(t, len("old")+5, page.Count("key:backspace"), "backspaces")
	require.Len(t, page.Entries("text:"), len("Dallas, TX"), "typed runes")
	require.Equal(t, 1, page.Count("key:enter"), "TypeAndSubmit must press Enter")
	require.Equal(t, "Dallas, TX", field.InputValue)
}

func TestPerform_TypeWithoutSubmit(t *testing.T) {
	page := browsertest.NewPage("")
	field := &browsertest.Element{InputValue: "prev"}
	page.Add(expr(t, locator.TypeCode), field)

	res := newExec(page).Perform(context.Background(), Step{Name: "type_code", Locator: locator.TypeCode, Kind: Type, Value: "12345"})
	require.True(t, res.OK, "result: %+v", res)
	require.Zero(t, page.Count("key:enter"), "Type must not press Enter")
	require.Zero(t, page.Count("key:backspace"), "select-all + delete cleared the field; no backspace expected")
	require.Equal(t, "12345", field.InputValue)
}

func TestPerform_TypeDismissesOverlay(t *testing.T) {
	page := browsertest.NewPage("")
	page.Add("#mask", &browsertest.Element{})
	page.Add(expr(t, locator.TypeIndustry), &browsertest.Element{})

	res := newExec(page).Perform(context.Background(), Step{Name: "type_industry", Locator: locator.TypeIndustry, Kind: TypeAndSubmit, Value: "Retail"})
	require.True(t, res.OK, "result: %+v", res)
	want := "exec:" + HideScript(browser.ParseSelector("#mask"))
	require.Equal(t, 1, page.Count(want), "overlay not hidden, log: %v", page.Log())
}

func TestPerform_KeyboardSelectByText(t *testing.T) {
	page := browsertest.NewPage("")
	opt, err := locator.Default().Option("ERI Code")
	require.NoError(t, err)
	page.Add(opt.Expr, &browsertest.Element{TextValue: "ERI Code"})

	res := newExec(page).Perform(context.Background(), Step{Name: "select_code_type", Kind: KeyboardSelect, Option: "ERI Code"})
	require.True(t, res.OK, "result: %+v", res)
	require.Equal(t, 1, page.Count("click:"+opt.Expr), "option not clicked, log: %v", page.Log())
	require.Zero(t, page.Count("key:down"), "ordinal fallback must not run when the option is found")
}

func TestPerform_KeyboardSelectOrdinalFallback(t *testing.T) {
	page := browsertest.NewPage("")
	res := newExec(page).Perform(context.Background(), Step{Name: "select_code_type", Kind: KeyboardSelect, Option: "ERI Code"})
	require.True(t, res.OK, "result: %+v", res)
	require.Equal(t, []string{"key:down", "key:down", "key:down", "key:enter"}, page.Entries("key:"))
}

func TestPerform_RecoversPanic(t *testing.T) {
	page := browsertest.NewPage("")
	page.Add(expr(t, locator.OpenForm), &browsertest.Element{OnClick: func(*browsertest.Page) { panic("boom") }})

	res := newExec(page).Perform(context.Background(), Step{Name: "open_form", Locator: locator.OpenForm, Kind: Click})
	require.False(t, res.OK)
	require.Contains(t, res.Reason, "boom")
}

func TestPerform_CancelledContext(t *testing.T) {
	page := browsertest.NewPage("")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	res := newExec(page).Perform(ctx, Step{Name: "open_form", Locator: locator.OpenForm, Kind: Click})
	require.False(t, res.OK, "cancelled context must fail the step")
}

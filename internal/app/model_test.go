package app

import (
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/verte-zerg/worldboard/internal/api"
	"github.com/verte-zerg/worldboard/internal/dashboard"
	"github.com/verte-zerg/worldboard/internal/demo"
	"github.com/verte-zerg/worldboard/internal/model"
	"github.com/verte-zerg/worldboard/internal/session"
	"github.com/verte-zerg/worldboard/internal/store"
)

type testApp struct {
	m      *Model
	sess   *session.Session
	st     *store.Store
	client *api.Client
}

func testConfig() model.Config {
	return model.Config{
		TestCredentials: model.Credentials{Username: demo.TestUsername, Password: demo.TestPassword},
		ShowTestButton:  true,
	}
}

func newTestApp(t *testing.T, cfg model.Config, wrap func(http.Handler) http.Handler) *testApp {
	t.Helper()
	rows := demo.NewGenerator(1).Generate([]string{"Brazil", "Chad", "United States"}, 2000, 2005, 0)
	var handler http.Handler = demo.NewServer(rows).Handler("/api")
	if wrap != nil {
		handler = wrap(handler)
	}
	ts := httptest.NewServer(handler)
	t.Cleanup(ts.Close)

	st, err := store.Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() {
		if err := st.Close(); err != nil {
			t.Fatalf("close store: %v", err)
		}
	})
	sess, err := session.Open(context.Background(), st)
	if err != nil {
		t.Fatalf("open session: %v", err)
	}
	client := api.New(ts.URL+"/api", sess)
	m := NewModel(cfg, sess, client)
	m.Update(tea.WindowSizeMsg{Width: 120, Height: 40})
	return &testApp{m: m, sess: sess, st: st, client: client}
}

// run executes cmd and feeds every resulting message back into the model
// until the chain settles.
func run(t *testing.T, m *Model, cmd tea.Cmd) {
	t.Helper()
	for i := 0; cmd != nil; i++ {
		if i > 50 {
			t.Fatalf("command chain did not settle")
		}
		msg := cmd()
		if _, ok := msg.(tea.QuitMsg); ok {
			return
		}
		_, cmd = m.Update(msg)
	}
}

func press(t *testing.T, m *Model, msg tea.KeyMsg) {
	t.Helper()
	_, cmd := m.Update(msg)
	run(t, m, cmd)
}

func typeText(t *testing.T, m *Model, s string) {
	t.Helper()
	press(t, m, tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)})
}

func key(k tea.KeyType) tea.KeyMsg {
	return tea.KeyMsg{Type: k}
}

func runeKey(s string) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func loginAs(t *testing.T, m *Model, username, password string) {
	t.Helper()
	typeText(t, m, username)
	press(t, m, key(tea.KeyTab))
	typeText(t, m, password)
	press(t, m, key(tea.KeyEnter))
}

func TestLoginFlowOpensDashboard(t *testing.T) {
	app := newTestApp(t, testConfig(), nil)
	m := app.m
	run(t, m, m.Init())
	if m.Route() != RouteLogin {
		t.Fatalf("expected login route without token, got %s", m.Route())
	}

	loginAs(t, m, demo.TestUsername, demo.TestPassword)
	if m.Route() != RouteDashboard {
		t.Fatalf("expected dashboard after login, got %s (err=%q)", m.Route(), m.login.errMsg)
	}
	stored, ok, err := app.st.Get(context.Background(), session.StorageKey)
	if err != nil || !ok || stored == "" {
		t.Fatalf("expected persisted token, got %q ok=%v err=%v", stored, ok, err)
	}

	sel := m.board.ctrl.Selection()
	want := []string{"Brazil", "United States"}
	if len(sel.Countries) != len(want) || sel.Countries[0] != want[0] || sel.Countries[1] != want[1] {
		t.Fatalf("unexpected default countries: %v", sel.Countries)
	}
	if sel.StartYear != 2000 || sel.EndYear != 2005 {
		t.Fatalf("unexpected default years: %d-%d", sel.StartYear, sel.EndYear)
	}
	if state := m.board.ctrl.State(); state != dashboard.StateReady {
		t.Fatalf("expected ready state, got %s", state)
	}
	if m.board.ctrl.Charts().Empty() {
		t.Fatalf("expected non-empty charts")
	}
	view := m.View()
	if !strings.Contains(view, "Trend") || !strings.Contains(view, "United States") {
		t.Fatalf("dashboard view missing expected content:\n%s", view)
	}
}

func TestLoginRejectsBlankFields(t *testing.T) {
	app := newTestApp(t, testConfig(), nil)
	m := app.m
	run(t, m, m.Init())
	typeText(t, m, demo.TestUsername)
	_, cmd := m.Update(key(tea.KeyEnter))
	if cmd != nil {
		t.Fatalf("expected no request for blank password")
	}
	if m.login.errMsg != msgBlankFields {
		t.Fatalf("unexpected error message %q", m.login.errMsg)
	}
}

func TestWhitespaceCredentialsReachBackend(t *testing.T) {
	cfg := testConfig()
	cfg.StartRoute = string(RouteLogin)
	app := newTestApp(t, cfg, nil)
	m := app.m
	run(t, m, m.Init())
	loginAs(t, m, " ", " ")
	if m.login.errMsg != msgInvalidCredentials {
		t.Fatalf("expected the backend to reject whitespace credentials, got %q", m.login.errMsg)
	}
	if m.Route() != RouteLogin {
		t.Fatalf("expected to stay on login, got %s", m.Route())
	}
}

func TestLoginHelpListsEscape(t *testing.T) {
	cfg := testConfig()
	cfg.StartRoute = string(RouteLogin)
	cfg.ShowTestButton = false
	app := newTestApp(t, cfg, nil)
	m := app.m
	run(t, m, m.Init())
	if !strings.Contains(m.View(), "esc: quit") {
		t.Fatalf("login help should list esc:\n%s", m.View())
	}
	_, cmd := m.Update(key(tea.KeyEsc))
	if cmd == nil {
		t.Fatalf("expected quit command")
	}
	if _, ok := cmd().(tea.QuitMsg); !ok {
		t.Fatalf("expected quit message")
	}
}

func TestFailedLoginKeepsExistingToken(t *testing.T) {
	cfg := testConfig()
	cfg.StartRoute = string(RouteLogin)
	app := newTestApp(t, cfg, nil)
	if err := app.sess.Set(context.Background(), "old-token"); err != nil {
		t.Fatalf("set token: %v", err)
	}
	m := app.m
	run(t, m, m.Init())
	if m.Route() != RouteLogin {
		t.Fatalf("expected login route, got %s", m.Route())
	}

	loginAs(t, m, demo.TestUsername, "wrong")
	if m.Route() != RouteLogin {
		t.Fatalf("expected to stay on login, got %s", m.Route())
	}
	if m.login.errMsg != msgInvalidCredentials {
		t.Fatalf("unexpected error message %q", m.login.errMsg)
	}
	if app.sess.Token() != "old-token" {
		t.Fatalf("expected token to survive failed login, got %q", app.sess.Token())
	}
}

func TestTestCredentialsShortcut(t *testing.T) {
	app := newTestApp(t, testConfig(), nil)
	m := app.m
	run(t, m, m.Init())
	press(t, m, key(tea.KeyCtrlT))
	if m.Route() != RouteDashboard {
		t.Fatalf("expected dashboard after shortcut, got %s", m.Route())
	}
}

func TestTestCredentialsShortcutDisabled(t *testing.T) {
	cfg := testConfig()
	cfg.ShowTestButton = false
	app := newTestApp(t, cfg, nil)
	m := app.m
	run(t, m, m.Init())
	press(t, m, key(tea.KeyCtrlT))
	if m.Route() != RouteLogin {
		t.Fatalf("expected login route, got %s", m.Route())
	}
	if m.login.credentials().Username != "" {
		t.Fatalf("expected inputs to stay empty")
	}
}

func TestStoredTokenOpensDashboard(t *testing.T) {
	app := newTestApp(t, testConfig(), nil)
	token, err := app.client.Authenticate(context.Background(), demo.TestUsername, demo.TestPassword)
	if err != nil {
		t.Fatalf("authenticate: %v", err)
	}
	if err := app.sess.Set(context.Background(), token); err != nil {
		t.Fatalf("set token: %v", err)
	}
	m := app.m
	run(t, m, m.Init())
	if m.Route() != RouteDashboard {
		t.Fatalf("expected dashboard, got %s", m.Route())
	}
	if state := m.board.ctrl.State(); state != dashboard.StateReady {
		t.Fatalf("expected ready state, got %s", state)
	}
}

func TestLogoutClearsTokenAndRedirects(t *testing.T) {
	app := newTestApp(t, testConfig(), nil)
	m := app.m
	run(t, m, m.Init())
	loginAs(t, m, demo.TestUsername, demo.TestPassword)
	if m.Route() != RouteDashboard {
		t.Fatalf("expected dashboard, got %s", m.Route())
	}

	press(t, m, runeKey("x"))
	if m.Route() != RouteLogin {
		t.Fatalf("expected login after logout, got %s", m.Route())
	}
	if m.board != nil {
		t.Fatalf("expected dashboard to be torn down")
	}
	if _, ok, err := app.st.Get(context.Background(), session.StorageKey); err != nil || ok {
		t.Fatalf("expected stored token removed, ok=%v err=%v", ok, err)
	}
	run(t, m, m.Navigate(string(RouteDashboard)))
	if m.Route() != RouteLogin {
		t.Fatalf("expected redirect to login, got %s", m.Route())
	}
}

func TestDeselectingEveryCountryShowsEmpty(t *testing.T) {
	app := newTestApp(t, testConfig(), nil)
	m := app.m
	run(t, m, m.Init())
	press(t, m, key(tea.KeyCtrlT))

	// Options are Brazil, Chad, United States; Brazil and United States start selected.
	press(t, m, key(tea.KeySpace))
	press(t, m, key(tea.KeyDown))
	press(t, m, key(tea.KeyDown))
	press(t, m, key(tea.KeySpace))

	if sel := m.board.ctrl.Selection(); len(sel.Countries) != 0 {
		t.Fatalf("expected empty selection, got %v", sel.Countries)
	}
	if state := m.board.ctrl.State(); state != dashboard.StateEmpty {
		t.Fatalf("expected empty state, got %s", state)
	}
	if !strings.Contains(m.View(), "No data for the current selection.") {
		t.Fatalf("expected empty message in view")
	}
}

func TestToggleAddsCountryInClickOrder(t *testing.T) {
	app := newTestApp(t, testConfig(), nil)
	m := app.m
	run(t, m, m.Init())
	press(t, m, key(tea.KeyCtrlT))

	press(t, m, key(tea.KeyDown))
	press(t, m, key(tea.KeySpace))
	sel := m.board.ctrl.Selection()
	if len(sel.Countries) != 3 || sel.Countries[2] != "Chad" {
		t.Fatalf("expected Chad appended, got %v", sel.Countries)
	}
	for _, row := range m.board.ctrl.Rows() {
		if !sel.Contains(row.Country) {
			t.Fatalf("unexpected row for %s", row.Country)
		}
	}
}

func TestYearSelectRefetches(t *testing.T) {
	app := newTestApp(t, testConfig(), nil)
	m := app.m
	run(t, m, m.Init())
	press(t, m, key(tea.KeyCtrlT))

	press(t, m, key(tea.KeyTab))
	press(t, m, key(tea.KeyRight))
	press(t, m, key(tea.KeyTab))
	press(t, m, key(tea.KeyLeft))

	sel := m.board.ctrl.Selection()
	if sel.StartYear != 2001 || sel.EndYear != 2004 {
		t.Fatalf("unexpected years %d-%d", sel.StartYear, sel.EndYear)
	}
	rows := m.board.ctrl.Rows()
	if len(rows) == 0 {
		t.Fatalf("expected rows")
	}
	for _, row := range rows {
		if row.Year < 2001 || row.Year > 2004 {
			t.Fatalf("row outside selection: %+v", row)
		}
	}
}

func TestStaleResultIsDiscarded(t *testing.T) {
	app := newTestApp(t, testConfig(), nil)
	m := app.m
	run(t, m, m.Init())
	press(t, m, key(tea.KeyCtrlT))

	b := m.board
	old, err := b.ctrl.ApplySelection(b.ctx, model.Selection{Countries: []string{"Chad"}, StartYear: 2000, EndYear: 2005})
	if err != nil {
		t.Fatalf("apply: %v", err)
	}
	latest, err := b.ctrl.ApplySelection(b.ctx, model.Selection{Countries: []string{"Brazil"}, StartYear: 2000, EndYear: 2005})
	if err != nil {
		t.Fatalf("apply: %v", err)
	}
	m.Update(dataMsg{board: b, res: latest.Wait()})
	m.Update(dataMsg{board: b, res: old.Wait()})

	rows := b.ctrl.Rows()
	if len(rows) == 0 {
		t.Fatalf("expected rows for the latest selection")
	}
	for _, row := range rows {
		if row.Country != "Brazil" {
			t.Fatalf("stale row leaked into state: %+v", row)
		}
	}
}

func TestRetryAfterOptionsFailure(t *testing.T) {
	var failing atomic.Bool
	failing.Store(true)
	wrap := func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if failing.Load() && strings.HasSuffix(r.URL.Path, "/filter-options/") {
				http.Error(w, "boom", http.StatusInternalServerError)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
	app := newTestApp(t, testConfig(), wrap)
	m := app.m
	run(t, m, m.Init())
	press(t, m, key(tea.KeyCtrlT))

	if m.board.optionsLoaded {
		t.Fatalf("expected options load to fail")
	}
	if m.board.errMsg == "" {
		t.Fatalf("expected error message")
	}
	if opts := m.board.ctrl.FilterOptions(); len(opts.Countries) != 0 {
		t.Fatalf("expected empty widgets, got %v", opts.Countries)
	}

	failing.Store(false)
	press(t, m, runeKey("r"))
	if !m.board.optionsLoaded {
		t.Fatalf("expected options after retry")
	}
	if state := m.board.ctrl.State(); state != dashboard.StateReady {
		t.Fatalf("expected ready state, got %s", state)
	}
}

func TestChartTabs(t *testing.T) {
	app := newTestApp(t, testConfig(), nil)
	m := app.m
	run(t, m, m.Init())
	press(t, m, key(tea.KeyCtrlT))

	press(t, m, key(tea.KeyShiftTab))
	if m.board.focus != focusCharts {
		t.Fatalf("expected chart focus, got %d", m.board.focus)
	}
	press(t, m, key(tea.KeyRight))
	if m.board.activeChart != chartComparison {
		t.Fatalf("expected comparison tab")
	}
	content := m.board.chartContent(100)
	if !strings.Contains(content, comparisonTitle) || !strings.Contains(content, "Average") {
		t.Fatalf("comparison content missing expected text:\n%s", content)
	}
}

func TestQuitKeys(t *testing.T) {
	app := newTestApp(t, testConfig(), nil)
	m := app.m
	run(t, m, m.Init())
	_, cmd := m.Update(key(tea.KeyCtrlC))
	if cmd == nil {
		t.Fatalf("expected quit command")
	}
	if _, ok := cmd().(tea.QuitMsg); !ok {
		t.Fatalf("expected quit message")
	}
}

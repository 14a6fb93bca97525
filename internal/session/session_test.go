package session

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/smartmarks/smartmarks/internal/report"
	"github.com/smartmarks/smartmarks/internal/results"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type nopBackend struct{}

func (nopBackend) Results(context.Context, string) ([]results.Result, error) { return nil, nil }
func (nopBackend) RetryImage(context.Context, string, string) (results.Patch, error) {
	return results.Patch{}, nil
}

func newTestStore(t *testing.T) (*Store, *time.Time) {
	t.Helper()
	now := time.Date(2025, 1, 1, 8, 0, 0, 0, time.UTC)
	st := NewStore(Config{TTL: time.Hour, Backend: nopBackend{}})
	st.now = func() time.Time { return now }
	return st, &now
}

func TestStore_NewDefaults(t *testing.T) {
	st, _ := newTestStore(t)
	s := st.New()

	assert.Equal(t, "en", s.Language())
	assert.Equal(t, ThemeDark, s.Theme())
	assert.False(t, s.LoggedIn())
	require.NotNil(t, s.Results)
	assert.False(t, s.Results.Snapshot().Loaded)
	assert.Equal(t, 1, st.Len())
}

func TestStore_GetExpires(t *testing.T) {
	st, now := newTestStore(t)
	s := st.New()

	*now = now.Add(30 * time.Minute)
	got, ok := st.Get(s.ID)
	require.True(t, ok)
	assert.Same(t, s, got)

	// Get refreshed lastSeen, so another 59 minutes is still fine.
	*now = now.Add(59 * time.Minute)
	_, ok = st.Get(s.ID)
	assert.True(t, ok)

	*now = now.Add(61 * time.Minute)
	_, ok = st.Get(s.ID)
	assert.False(t, ok)
	assert.Equal(t, 0, st.Len())

	_, ok = st.Get("not-a-uuid")
	assert.False(t, ok)
}

func TestStore_Sweep(t *testing.T) {
	st, now := newTestStore(t)
	old := st.New()
	*now = now.Add(50 * time.Minute)
	fresh := st.New()
	*now = now.Add(20 * time.Minute)

	assert.Equal(t, 1, st.Sweep())
	_, ok := st.Get(old.ID)
	assert.False(t, ok)
	_, ok = st.Get(fresh.ID)
	assert.True(t, ok)
}

func TestStore_Run(t *testing.T) {
	st, _ := newTestStore(t)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- st.Run(ctx, 10*time.Millisecond) }()
	cancel()
	assert.NoError(t, <-done)
}

func TestStore_Load(t *testing.T) {
	st := NewStore(Config{Secure: true, Backend: nopBackend{}})

	rec := httptest.NewRecorder()
	s := st.Load(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 1)
	c := cookies[0]
	assert.Equal(t, CookieName, c.Name)
	assert.Equal(t, s.ID, c.Value)
	assert.True(t, c.HttpOnly)
	assert.True(t, c.Secure)
	assert.Equal(t, http.SameSiteLaxMode, c.SameSite)

	// Same cookie, same session, no new cookie.
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(&http.Cookie{Name: CookieName, Value: s.ID})
	rec = httptest.NewRecorder()
	assert.Same(t, s, st.Load(rec, req))
	assert.Empty(t, rec.Result().Cookies())

	// Unknown cookie gets a fresh session.
	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(&http.Cookie{Name: CookieName, Value: "00000000-0000-0000-0000-000000000000"})
	rec = httptest.NewRecorder()
	assert.NotEqual(t, s.ID, st.Load(rec, req).ID)
	assert.Len(t, rec.Result().Cookies(), 1)
}

func TestSession_LoginLogout(t *testing.T) {
	st, _ := newTestStore(t)
	s := st.New()

	s.Login("teacher@example.com", "tok")
	s.SetStudent(Student{Name: "Ada", Class: "5b", Subject: "English"})
	s.SetPDF(&report.Info{Name: "r.pdf", Pages: 2})
	s.SetLanguage("de")
	s.Results.Replace([]results.Result{{Image: "a.jpg"}})
	assert.True(t, s.LoggedIn())
	assert.Equal(t, "teacher@example.com", s.Email())

	s.Logout()
	assert.False(t, s.LoggedIn())
	assert.Empty(t, s.Email())
	assert.Equal(t, Student{}, s.Student())
	assert.Nil(t, s.PDF())
	assert.False(t, s.Results.Snapshot().Loaded)
	assert.Equal(t, "de", s.Language(), "preferences survive logout")
}

func TestSession_ToggleTheme(t *testing.T) {
	st, _ := newTestStore(t)
	s := st.New()
	assert.Equal(t, ThemeLight, s.ToggleTheme())
	assert.Equal(t, ThemeDark, s.ToggleTheme())
}

func TestSession_Flashes(t *testing.T) {
	st, _ := newTestStore(t)
	s := st.New()
	s.AddFlash(FlashError, "Retry failed!")
	s.AddFlash(FlashSuccess, "ok")

	assert.Equal(t, []Flash{{Kind: FlashError, Message: "Retry failed!"}, {Kind: FlashSuccess, Message: "ok"}}, s.Flashes())
	assert.Empty(t, s.Flashes(), "flashes are shown once")
}

func TestSession_ConcurrentAccess(t *testing.T) {
	st, _ := newTestStore(t)
	s := st.New()

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.ToggleTheme()
			s.AddFlash(FlashSuccess, "x")
			_ = s.Token()
			_, _ = st.Get(s.ID)
		}()
	}
	wg.Wait()
	assert.Len(t, s.Flashes(), 20)
}

func TestContext(t *testing.T) {
	st, _ := newTestStore(t)
	s := st.New()
	ctx := WithSession(context.Background(), s)
	assert.Same(t, s, From(ctx))
	assert.Nil(t, From(context.Background()))
}

func TestStore_ForToken(t *testing.T) {
	st, now := newTestStore(t)

	a := st.ForToken("tok-a")
	assert.True(t, a.LoggedIn())
	assert.Equal(t, "tok-a", a.Token())
	assert.Same(t, a, st.ForToken("tok-a"), "same token maps to the same session")
	assert.NotSame(t, a, st.ForToken("tok-b"))
	assert.Equal(t, 2, st.Len())

	*now = now.Add(2 * time.Hour)
	fresh := st.ForToken("tok-a")
	assert.NotSame(t, a, fresh, "expired token session is replaced")
	assert.Equal(t, a.ID, fresh.ID)
}

func TestStore_ForTokenEvictsLeastRecentlyUsed(t *testing.T) {
	now := time.Date(2025, 1, 1, 8, 0, 0, 0, time.UTC)
	st := NewStore(Config{TTL: time.Hour, Backend: nopBackend{}, MaxTokenSessions: 2})
	st.now = func() time.Time { return now }

	browser := st.New()
	a := st.ForToken("tok-a")
	now = now.Add(time.Minute)
	b := st.ForToken("tok-b")
	now = now.Add(time.Minute)
	assert.Same(t, a, st.ForToken("tok-a"), "lookup marks tok-a as used")

	now = now.Add(time.Minute)
	c := st.ForToken("tok-c")
	assert.Equal(t, 3, st.Len(), "browser session plus the two newest tokens")

	_, ok := st.Get(b.ID)
	assert.False(t, ok, "least recently used token session is evicted")
	_, ok = st.Get(browser.ID)
	assert.True(t, ok, "cookie sessions do not count against the cap")
	assert.Same(t, a, st.ForToken("tok-a"))
	assert.Same(t, c, st.ForToken("tok-c"))
}

func TestStore_ForTokenDelete(t *testing.T) {
	st, _ := newTestStore(t)
	s := st.ForToken("rejected")
	st.Delete(s.ID)
	assert.Equal(t, 0, st.Len())
	assert.NotSame(t, s, st.ForToken("rejected"))
}

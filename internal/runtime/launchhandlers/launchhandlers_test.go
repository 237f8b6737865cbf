package launchhandlers

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/drblury/reportflow/internal/runtime/cluster"
	"github.com/drblury/reportflow/internal/runtime/delegating"
	"github.com/drblury/reportflow/internal/runtime/events"
	"github.com/drblury/reportflow/internal/runtime/multicaster"
	"github.com/drblury/reportflow/internal/runtime/projectconfig"
)

type staticProjects map[int64]Project

func (s staticProjects) Project(_ context.Context, id int64) (Project, error) {
	p, ok := s[id]
	if !ok {
		return Project{}, errors.New("project not found")
	}
	return p, nil
}

type staticUsers struct {
	logins map[int64]string
	emails map[string]string
}

func (u staticUsers) LoginByID(_ context.Context, id int64) (string, error) {
	login, ok := u.logins[id]
	if !ok {
		return "", errors.New("user not found")
	}
	return login, nil
}

func (u staticUsers) EmailByLogin(_ context.Context, login string) (string, bool) {
	email, ok := u.emails[login]
	return email, ok
}

type recordingMailer struct {
	sent []Notification
	err  error
}

func (m *recordingMailer) SendLaunchFinished(_ context.Context, n Notification) error {
	m.sent = append(m.sent, n)
	return m.err
}

var users = staticUsers{
	logins: map[int64]string{1: "superadmin"},
	emails: map[string]string{"superadmin": "admin@example.com", "jdoe": "jdoe@example.com"},
}

func finishedLaunch(stats events.LaunchStatistics) events.LaunchFinished {
	return events.LaunchFinished{
		LaunchID:   5,
		Project:    7,
		Name:       "nightly",
		UserID:     1,
		BaseURL:    "http://rp.local/",
		Statistics: stats,
	}
}

func TestNotificationRunnerSkipsWhenDisabled(t *testing.T) {
	mailer := &recordingMailer{}
	r := NotificationRunner{Mailer: mailer}
	require.NoError(t, r.Handle(context.Background(), finishedLaunch(events.LaunchStatistics{}), map[string]string{
		projectconfig.AttrNotificationsEnabled: "false",
	}))
	assert.Empty(t, mailer.sent)
}

func TestNotificationRunnerSendsMatchingCases(t *testing.T) {
	mailer := &recordingMailer{}
	r := NotificationRunner{
		Projects: staticProjects{7: {Name: "default_personal", SenderCases: []SenderCase{
			{Enabled: true, SendCase: SendAlways, Recipients: []string{OwnerRecipient, "jdoe", "jdoe@example.com", "ghost"}},
			{Enabled: true, SendCase: SendMore50, Recipients: []string{"qa@example.com"}},
			{Enabled: false, SendCase: SendAlways, Recipients: []string{"off@example.com"}},
			{Enabled: true, SendCase: SendAlways, LaunchNames: []string{"smoke"}, Recipients: []string{"smoke@example.com"}},
		}}},
		Users:  users,
		Mailer: mailer,
	}
	ev := finishedLaunch(events.LaunchStatistics{Total: 10, ProductBug: 2})

	require.NoError(t, r.Handle(context.Background(), ev, map[string]string{projectconfig.AttrNotificationsEnabled: "true"}))

	require.Len(t, mailer.sent, 1)
	assert.Equal(t, []string{"admin@example.com", "jdoe@example.com"}, mailer.sent[0].Recipients)
	assert.Equal(t, "http://rp.local/ui/#default_personal", mailer.sent[0].LaunchURL)
}

func TestNotificationRunnerContinuesAfterSendFailure(t *testing.T) {
	mailer := &recordingMailer{err: errors.New("smtp down")}
	r := NotificationRunner{
		Projects: staticProjects{7: {Name: "p", SenderCases: []SenderCase{
			{Enabled: true, SendCase: SendAlways, Recipients: []string{"a@example.com"}},
			{Enabled: true, SendCase: SendToInvestigate, Recipients: []string{"b@example.com"}},
		}}},
		Users:  users,
		Mailer: mailer,
	}
	ev := finishedLaunch(events.LaunchStatistics{Total: 3, ToInvestigate: 1})
	require.NoError(t, r.Handle(context.Background(), ev, map[string]string{projectconfig.AttrNotificationsEnabled: "true"}))
	assert.Len(t, mailer.sent, 2)
}

func TestNotificationRunnerReportsLookupFailure(t *testing.T) {
	r := NotificationRunner{Projects: staticProjects{}, Users: users, Mailer: &recordingMailer{}}
	err := r.Handle(context.Background(), finishedLaunch(events.LaunchStatistics{}), map[string]string{projectconfig.AttrNotificationsEnabled: "true"})
	assert.Error(t, err)
}

func TestSenderCaseThresholds(t *testing.T) {
	ev := finishedLaunch(events.LaunchStatistics{Total: 10, AutomationBug: 3})
	assert.True(t, SenderCase{Enabled: true, SendCase: SendFailed}.Matches(ev))
	assert.True(t, SenderCase{Enabled: true, SendCase: SendMore20}.Matches(ev))
	assert.False(t, SenderCase{Enabled: true, SendCase: SendMore50}.Matches(ev))
	assert.False(t, SenderCase{Enabled: true, SendCase: SendToInvestigate}.Matches(ev))
	assert.False(t, SenderCase{Enabled: true, SendCase: "NEVER"}.Matches(ev))
}

type fakeAnalyzer struct {
	present bool
	calls   []string
	items   []int64
}

func (a *fakeAnalyzer) HasAnalyzers() bool { return a.present }

func (a *fakeAnalyzer) IndexLaunchLogs(context.Context, events.LaunchFinished, projectconfig.AnalyzerConfig) (int64, error) {
	a.calls = append(a.calls, "index-launch")
	return 5, nil
}

func (a *fakeAnalyzer) CollectToInvestigate(context.Context, int64, int64) ([]int64, error) {
	a.calls = append(a.calls, "collect")
	return []int64{1, 2}, nil
}

func (a *fakeAnalyzer) RunAnalyzers(_ context.Context, _ int64, itemIDs []int64, _ projectconfig.AnalyzerConfig) error {
	a.calls = append(a.calls, "analyze")
	a.items = itemIDs
	return nil
}

func (a *fakeAnalyzer) IndexItemsLogs(context.Context, int64, int64, []int64, projectconfig.AnalyzerConfig) error {
	a.calls = append(a.calls, "index-items")
	return nil
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []events.Event
}

func (p *recordingPublisher) Publish(_ context.Context, ev events.Event) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, ev)
}

func TestAutoAnalysisRunnerAnalyzesWhenEnabled(t *testing.T) {
	analyzer := &fakeAnalyzer{present: true}
	pub := &recordingPublisher{}
	r := AutoAnalysisRunner{Analyzer: analyzer, Publisher: pub}

	require.NoError(t, r.Handle(context.Background(), finishedLaunch(events.LaunchStatistics{}), map[string]string{
		projectconfig.AttrAutoAnalyzerEnabled: "true",
	}))
	assert.Equal(t, []string{"index-launch", "collect", "analyze", "index-items"}, analyzer.calls)
	assert.Equal(t, []int64{1, 2}, analyzer.items)
	assert.Equal(t, []events.Event{events.AnalysisFinished{LaunchID: 5, Project: 7, BaseURL: "http://rp.local/"}}, pub.events)
}

func TestAutoAnalysisRunnerOnlyIndexesWhenDisabled(t *testing.T) {
	analyzer := &fakeAnalyzer{present: true}
	pub := &recordingPublisher{}
	r := AutoAnalysisRunner{Analyzer: analyzer, Publisher: pub}

	require.NoError(t, r.Handle(context.Background(), finishedLaunch(events.LaunchStatistics{}), map[string]string{
		projectconfig.AttrAutoAnalyzerEnabled: "false",
	}))
	assert.Equal(t, []string{"index-launch"}, analyzer.calls)
	assert.Len(t, pub.events, 1)
}

func TestAutoAnalysisRunnerSkipsWithoutAnalyzers(t *testing.T) {
	analyzer := &fakeAnalyzer{}
	pub := &recordingPublisher{}
	r := AutoAnalysisRunner{Analyzer: analyzer, Publisher: pub}
	require.NoError(t, r.Handle(context.Background(), finishedLaunch(events.LaunchStatistics{}), nil))
	assert.Empty(t, analyzer.calls)
	assert.Empty(t, pub.events)
}

type recordingGenerator struct {
	configs []cluster.GenerateConfig
}

func (g *recordingGenerator) Generate(_ context.Context, cfg cluster.GenerateConfig) error {
	g.configs = append(g.configs, cfg)
	return nil
}

func TestUniqueErrorRunner(t *testing.T) {
	gen := &recordingGenerator{}
	r := UniqueErrorRunner{Generator: gen}
	ev := events.AnalysisFinished{LaunchID: 5, Project: 7}

	require.NoError(t, r.Handle(context.Background(), ev, map[string]string{}))
	assert.Empty(t, gen.configs)

	require.NoError(t, r.Handle(context.Background(), ev, map[string]string{
		projectconfig.AttrAutoUniqueErrorEnabled:   "true",
		projectconfig.AttrUniqueErrorRemoveNumbers: "true",
	}))
	require.Len(t, gen.configs, 1)
	assert.Equal(t, cluster.EntityContext{LaunchID: 5, ProjectID: 7}, gen.configs[0].EntityContext)
	assert.True(t, gen.configs[0].CleanNumbers)
	assert.False(t, gen.configs[0].ForUpdate)
}

// A finished launch flows through the multicaster into the analysis runner,
// whose AnalysisFinished event reaches the unique error runner.
func TestLaunchFinishedChain(t *testing.T) {
	provider := projectconfig.StaticProvider{7: {
		projectconfig.AttrAutoAnalyzerEnabled:    "true",
		projectconfig.AttrAutoUniqueErrorEnabled: "true",
	}}
	sink := &multicaster.RecordingErrorHandler{}
	b := multicaster.NewBuilder(multicaster.WithErrorHandler(sink))
	var m *multicaster.Multicaster
	publisher := publisherFunc(func(ctx context.Context, ev events.Event) { m.Publish(ctx, ev) })

	analyzer := &fakeAnalyzer{present: true}
	gen := &recordingGenerator{}
	launchSub, err := delegating.NewSubscriber("launch-finished", provider, []delegating.ConfigurableHandler[events.LaunchFinished]{
		NotificationRunner{},
		AutoAnalysisRunner{Analyzer: analyzer, Publisher: publisher},
	}, delegating.WithErrorHandler(sink))
	require.NoError(t, err)
	analysisSub, err := delegating.NewSubscriber("analysis-finished", provider, []delegating.ConfigurableHandler[events.AnalysisFinished]{
		UniqueErrorRunner{Generator: gen},
	}, delegating.WithErrorHandler(sink))
	require.NoError(t, err)
	require.NoError(t, multicaster.Subscribe[events.LaunchFinished](b, launchSub))
	require.NoError(t, multicaster.Subscribe[events.AnalysisFinished](b, analysisSub))
	m = b.Build()

	m.Publish(context.Background(), finishedLaunch(events.LaunchStatistics{}))

	assert.Empty(t, sink.Records())
	assert.Contains(t, analyzer.calls, "analyze")
	require.Len(t, gen.configs, 1)
	assert.Equal(t, int64(5), gen.configs[0].EntityContext.LaunchID)
}

type publisherFunc func(ctx context.Context, ev events.Event)

func (f publisherFunc) Publish(ctx context.Context, ev events.Event) { f(ctx, ev) }

// Package launchhandlers holds the configurable handlers that react to
// finished launches.
package launchhandlers

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"github.com/drblury/reportflow/internal/runtime/events"
	loggingpkg "github.com/drblury/reportflow/internal/runtime/logging"
	"github.com/drblury/reportflow/internal/runtime/projectconfig"
)

// SendCase decides which finished launches trigger a notification.
type SendCase string

const (
	SendAlways        SendCase = "ALWAYS"
	SendFailed        SendCase = "FAILED"
	SendToInvestigate SendCase = "TO_INVESTIGATE"
	SendMore10        SendCase = "MORE_10"
	SendMore20        SendCase = "MORE_20"
	SendMore50        SendCase = "MORE_50"
)

// OwnerRecipient stands for the user who started the launch.
const OwnerRecipient = "OWNER"

// SenderCase is one notification rule of a project.
type SenderCase struct {
	Enabled     bool
	SendCase    SendCase
	LaunchNames []string
	Recipients  []string
}

// Matches reports whether the rule applies to the launch.
func (c SenderCase) Matches(ev events.LaunchFinished) bool {
	if !c.Enabled {
		return false
	}
	if len(c.LaunchNames) > 0 && !slices.Contains(c.LaunchNames, ev.Name) {
		return false
	}
	stats := ev.Statistics
	switch c.SendCase {
	case SendAlways:
		return true
	case SendFailed:
		return stats.FailureRate() > 0
	case SendToInvestigate:
		return stats.ToInvestigate > 0
	case SendMore10:
		return stats.FailureRate() > 0.1
	case SendMore20:
		return stats.FailureRate() > 0.2
	case SendMore50:
		return stats.FailureRate() > 0.5
	default:
		return false
	}
}

// Notification is one email about a finished launch.
type Notification struct {
	Recipients  []string
	LaunchURL   string
	ProjectName string
	Launch      events.LaunchFinished
}

// Project is the part of a project the notification runner reads.
type Project struct {
	Name        string
	SenderCases []SenderCase
}

// ProjectLookup loads notification rules.
type ProjectLookup interface {
	Project(ctx context.Context, projectID int64) (Project, error)
}

// UserDirectory resolves logins to email addresses.
type UserDirectory interface {
	LoginByID(ctx context.Context, userID int64) (string, error)
	EmailByLogin(ctx context.Context, login string) (string, bool)
}

// Mailer delivers notifications. A nil Mailer means the project has no
// notification integration.
type Mailer interface {
	SendLaunchFinished(ctx context.Context, n Notification) error
}

// NotificationRunner emails launch results when the project enables
// notifications.
type NotificationRunner struct {
	Projects ProjectLookup
	Users    UserDirectory
	Mailer   Mailer
	Logger   loggingpkg.ServiceLogger
}

func (NotificationRunner) Name() string { return "launch-notification" }

// Handle sends one notification per matching sender case. Failed sends are
// logged and do not stop the remaining cases.
func (r NotificationRunner) Handle(ctx context.Context, ev events.LaunchFinished, config map[string]string) error {
	log := loggingpkg.OrNop(r.Logger)
	if !projectconfig.Bool(config, projectconfig.AttrNotificationsEnabled) {
		return nil
	}
	if r.Mailer == nil {
		log.Info("No notification integration for project", loggingpkg.LogFields{"project_id": ev.Project})
		return nil
	}

	project, err := r.Projects.Project(ctx, ev.Project)
	if err != nil {
		return fmt.Errorf("load project %d: %w", ev.Project, err)
	}
	owner, err := r.Users.LoginByID(ctx, ev.UserID)
	if err != nil {
		return fmt.Errorf("load launch owner %d: %w", ev.UserID, err)
	}

	for _, sc := range project.SenderCases {
		if !sc.Matches(ev) {
			continue
		}
		n := Notification{
			Recipients:  r.recipients(ctx, owner, sc.Recipients),
			LaunchURL:   fmt.Sprintf("%s/ui/#%s", strings.TrimSuffix(ev.BaseURL, "/"), project.Name),
			ProjectName: project.Name,
			Launch:      ev,
		}
		if len(n.Recipients) == 0 {
			continue
		}
		if err := r.Mailer.SendLaunchFinished(ctx, n); err != nil {
			log.Error("Unable to send launch notification", err, loggingpkg.LogFields{
				"launch_id":  ev.LaunchID,
				"project_id": ev.Project,
			})
		}
	}
	return nil
}

func (r NotificationRunner) recipients(ctx context.Context, owner string, configured []string) []string {
	out := make([]string, 0, len(configured))
	for _, rcpt := range configured {
		if !strings.Contains(rcpt, "@") {
			login := rcpt
			if rcpt == OwnerRecipient {
				login = owner
			}
			email, ok := r.Users.EmailByLogin(ctx, login)
			if !ok {
				continue
			}
			rcpt = email
		}
		if !slices.Contains(out, rcpt) {
			out = append(out, rcpt)
		}
	}
	return out
}

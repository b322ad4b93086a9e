package services

import (
	"fmt"
	htmltemplate "html/template"
	"strings"
	texttemplate "text/template"
)

type notificationContent struct {
	Recipient Recipient
	Data      NotificationData
}

var notificationSubjects = map[NotificationKind]string{
	KindMinutes:    "Minutes: %s",
	KindInvitation: "You're invited to join %s",
	KindReminder:   "Reminder: %s is coming up",
}

var plainTemplates = map[NotificationKind]string{
	KindMinutes: `Hello {{.Recipient.Name}},

Here are the minutes for "{{.Data.MeetingTitle}}" ({{.Data.GroupName}}):

{{.Data.Minutes}}

Sent by {{.Data.HostName}}.
`,
	KindInvitation: `Hello {{.Recipient.Name}},

{{.Data.HostName}} invited you to join the group "{{.Data.GroupName}}".
Log in to accept or decline the invitation.
`,
	KindReminder: `Hello {{.Recipient.Name}},

Your meeting "{{.Data.MeetingTitle}}" ({{.Data.GroupName}}) is scheduled for {{.Data.ScheduledAt}}.
`,
}

var htmlTemplates = map[NotificationKind]string{
	KindMinutes: `<p>Hello {{.Recipient.Name}},</p>
<p>Here are the minutes for <strong>{{.Data.MeetingTitle}}</strong> ({{.Data.GroupName}}):</p>
<pre>{{.Data.Minutes}}</pre>
<p>Sent by {{.Data.HostName}}.</p>`,
	KindInvitation: `<p>Hello {{.Recipient.Name}},</p>
<p>{{.Data.HostName}} invited you to join the group <strong>{{.Data.GroupName}}</strong>.</p>
<p>Log in to accept or decline the invitation.</p>`,
	KindReminder: `<p>Hello {{.Recipient.Name}},</p>
<p>Your meeting <strong>{{.Data.MeetingTitle}}</strong> ({{.Data.GroupName}}) is scheduled for {{.Data.ScheduledAt}}.</p>`,
}

func renderNotification(kind NotificationKind, data NotificationData, recipient Recipient) (subject, plain, html string, err error) {
	subjectFormat, ok := notificationSubjects[kind]
	if !ok {
		return "", "", "", fmt.Errorf("unknown notification kind %q", kind)
	}

	subjectArg := data.MeetingTitle
	if kind == KindInvitation {
		subjectArg = data.GroupName
	}
	subject = fmt.Sprintf(subjectFormat, subjectArg)

	content := notificationContent{Recipient: recipient, Data: data}

	plainTmpl, err := texttemplate.New(string(kind)).Parse(plainTemplates[kind])
	if err != nil {
		return "", "", "", err
	}
	var plainBuf strings.Builder
	if err := plainTmpl.Execute(&plainBuf, content); err != nil {
		return "", "", "", err
	}

	htmlTmpl, err := htmltemplate.New(string(kind)).Parse(htmlTemplates[kind])
	if err != nil {
		return "", "", "", err
	}
	var htmlBuf strings.Builder
	if err := htmlTmpl.Execute(&htmlBuf, content); err != nil {
		return "", "", "", err
	}

	return subject, plainBuf.String(), htmlBuf.String(), nil
}

package email

const (
	subjectWelcome              = "Thanks for your interest"
	subjectScheduleReminder     = "Let's find a time to talk"
	subjectScheduleReminderLast = "Still want to chat?"
	subjectMeetingTomorrow      = "Reminder: your meeting is tomorrow"
	subjectMeetingSoon          = "Reminder: your meeting starts soon"
	subjectZoomLinkMissing      = "Action needed: meeting without Zoom link"
	subjectFollowUp             = "Following up"
)

package notify

import (
	"fmt"
	"time"

	"github.com/nhle/tracker/internal/model"
)

func actorName(u model.UserProfile) string {
	switch {
	case u.Name != "":
		return u.Name
	case u.ID != "":
		return u.ID
	}
	return "Someone"
}

func subjectName(u *model.UserProfile) string {
	if u == nil {
		return "a user"
	}
	return actorName(*u)
}

// render builds the title and message for ev.
func render(ev Event) (title, message string) {
	actor := actorName(ev.Actor)
	task := ev.Task.Title

	switch ev.Type {
	case model.NotifyTaskAssigned:
		if ev.Subject == nil {
			return "New task", fmt.Sprintf("%s assigned you to %q", actor, task)
		}
		return "Assignee added",
			fmt.Sprintf("%s added %s to %q", actor, subjectName(ev.Subject), task)
	case model.NotifyTaskUnassigned:
		return "Assignee removed",
			fmt.Sprintf("%s removed %s from %q", actor, subjectName(ev.Subject), task)
	case model.NotifyCommentAdded:
		return "New comment",
			fmt.Sprintf("%s commented on %q", actor, task)
	case model.NotifyCommentEdited:
		return "Comment edited",
			fmt.Sprintf("%s edited a comment on %q", actor, task)
	case model.NotifyTaskUpdated:
		msg := fmt.Sprintf("%s updated %q", actor, task)
		if ev.Detail != "" {
			msg += ": " + ev.Detail
		}
		return "Task updated", msg
	case model.NotifyTaskOverdue:
		return "Task overdue",
			fmt.Sprintf("%q was due %s", task, ev.Task.DueDate.Format(time.DateOnly))
	}
	return "Task activity", fmt.Sprintf("%s changed %q", actor, task)
}

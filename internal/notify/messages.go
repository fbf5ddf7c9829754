package notify

import (
	"fmt"

	"alert-service/internal/models"
)

func describeLocation(loc models.Location) string {
	if loc.Address != "" {
		return fmt.Sprintf("%.5f, %.5f (%s)", loc.Latitude, loc.Longitude, loc.Address)
	}
	return fmt.Sprintf("%.5f, %.5f", loc.Latitude, loc.Longitude)
}

func requesterName(alert models.Alert) string {
	if alert.RequesterName != "" {
		return alert.RequesterName
	}
	return alert.RequesterID
}

func alertSMSBody(alert models.Alert) string {
	return fmt.Sprintf("EMERGENCY: %s has raised a %s alert at %s (%s). Alert %s",
		requesterName(alert),
		alert.Priority,
		describeLocation(alert.Location),
		alert.CreatedAt.Format("15:04 Jan 2"),
		alert.ID,
	)
}

func alertEmailSubject(alert models.Alert) string {
	return fmt.Sprintf("Emergency alert from %s", requesterName(alert))
}

func alertEmailBody(alert models.Alert) string {
	body := fmt.Sprintf(
		"%s has raised an emergency alert.\n\nPriority: %s\nLocation: %s\nTime: %s\nAlert ID: %s\n",
		requesterName(alert),
		alert.Priority,
		describeLocation(alert.Location),
		alert.CreatedAt.Format("2006-01-02 15:04:05 MST"),
		alert.ID,
	)
	if alert.Description != "" {
		body += fmt.Sprintf("\nDetails: %s\n", alert.Description)
	}
	return body
}

func resolvedSMSBody(alert models.Alert) string {
	return fmt.Sprintf("UPDATE: the emergency alert raised by %s has been resolved. Alert %s",
		requesterName(alert), alert.ID)
}

func resolvedEmailSubject(alert models.Alert) string {
	return fmt.Sprintf("Emergency alert from %s resolved", requesterName(alert))
}

func resolvedEmailBody(alert models.Alert) string {
	body := fmt.Sprintf(
		"The emergency alert raised by %s has been resolved.\n\nAlert ID: %s\n",
		requesterName(alert), alert.ID)
	if alert.ResolvedAt != nil {
		body += fmt.Sprintf("Resolved at: %s\n", alert.ResolvedAt.Format("2006-01-02 15:04:05 MST"))
	}
	if alert.ResolutionNotes != "" {
		body += fmt.Sprintf("Notes: %s\n", alert.ResolutionNotes)
	}
	return body
}

func opsBody(alert models.Alert) string {
	return fmt.Sprintf("*%s alert* from %s\nLocation: %s\nAlert `%s`",
		alert.Priority, requesterName(alert), describeLocation(alert.Location), alert.ID)
}

package controllers

import (
	"net/http"

	"github.com/emlakofis/emlak-backend/api/validators"
	"github.com/emlakofis/emlak-backend/internal/notifications"
	"github.com/emlakofis/emlak-backend/pkg/logger"
)

// ListNotifications pages through the caller's inbox, newest first.
func ListNotifications(svc notifications.Service, logg *logger.Logger) http.HandlerFunc {
	return serve(logg, http.StatusOK, func(r *http.Request) (any, error) {
		personnelID, err := personnelFromRequest(r)
		if err != nil {
			return nil, err
		}
		limit, cursor, err := pageQuery(r)
		if err != nil {
			return nil, err
		}
		unread, err := validators.ParseQueryBool(r, "unreadOnly")
		if err != nil {
			return nil, err
		}
		return svc.List(r.Context(), notifications.ListParams{
			RecipientID: personnelID,
			Limit:       limit,
			Cursor:      cursor,
			UnreadOnly:  unread,
		})
	})
}

func MarkNotificationRead(svc notifications.Service, logg *logger.Logger) http.HandlerFunc {
	return serve(logg, http.StatusOK, func(r *http.Request) (any, error) {
		personnelID, err := personnelFromRequest(r)
		if err != nil {
			return nil, err
		}
		notificationID, err := validators.ParseUUIDParam(r, "notificationId")
		if err != nil {
			return nil, err
		}
		if err := svc.MarkRead(r.Context(), personnelID, notificationID); err != nil {
			return nil, err
		}
		return map[string]bool{"read": true}, nil
	})
}

func MarkAllNotificationsRead(svc notifications.Service, logg *logger.Logger) http.HandlerFunc {
	return serve(logg, http.StatusOK, func(r *http.Request) (any, error) {
		personnelID, err := personnelFromRequest(r)
		if err != nil {
			return nil, err
		}
		updated, err := svc.MarkAllRead(r.Context(), personnelID)
		if err != nil {
			return nil, err
		}
		return map[string]int64{"updated": updated}, nil
	})
}

package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/alturos-health/scheduling/internal/notification"
)

func listNotificationsHandler(store notification.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, ok := callerIdentity(w, r)
		if !ok {
			return
		}

		limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
		offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))
		if limit <= 0 || limit > 100 {
			limit = 20
		}
		if offset < 0 {
			offset = 0
		}

		items, err := store.ListForRecipient(r.Context(), actor.UserID, limit, offset)
		if err != nil {
			handleNotificationError(w, err)
			return
		}
		if items == nil {
			items = []notification.Notification{}
		}
		writeJSON(w, http.StatusOK, items)
	}
}

func markNotificationReadHandler(store notification.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, ok := callerIdentity(w, r)
		if !ok {
			return
		}

		id, err := uuid.Parse(chi.URLParam(r, "id"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_notification_id", "id must be a valid UUID")
			return
		}

		if err := store.MarkRead(r.Context(), actor.UserID, id); err != nil {
			handleNotificationError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"message": "notification marked as read"})
	}
}

func markAllNotificationsReadHandler(store notification.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, ok := callerIdentity(w, r)
		if !ok {
			return
		}

		updated, err := store.MarkAllRead(r.Context(), actor.UserID)
		if err != nil {
			handleNotificationError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"message": "all notifications marked as read", "updated": updated})
	}
}

func unreadCountHandler(store notification.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, ok := callerIdentity(w, r)
		if !ok {
			return
		}

		count, err := store.UnreadCount(r.Context(), actor.UserID)
		if err != nil {
			handleNotificationError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]int64{"count": count})
	}
}

func deleteNotificationHandler(store notification.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, ok := callerIdentity(w, r)
		if !ok {
			return
		}

		id, err := uuid.Parse(chi.URLParam(r, "id"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_notification_id", "id must be a valid UUID")
			return
		}

		if err := store.Delete(r.Context(), actor.UserID, id); err != nil {
			handleNotificationError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func getPreferencesHandler(store notification.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, ok := callerIdentity(w, r)
		if !ok {
			return
		}

		prefs, err := store.GetPreferences(r.Context(), actor.UserID)
		if err != nil {
			handleNotificationError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, prefs)
	}
}

func updatePreferencesHandler(store notification.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, ok := callerIdentity(w, r)
		if !ok {
			return
		}

		var req PreferencesRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
			return
		}

		prefs := notification.Preferences{
			UserID:         actor.UserID,
			RemindersEmail: req.RemindersEmail,
			RemindersSMS:   req.RemindersSMS,
			RemindersPush:  req.RemindersPush,
			ResultsEmail:   req.ResultsEmail,
			ResultsSMS:     req.ResultsSMS,
			ResultsPush:    req.ResultsPush,
		}
		if err := store.UpsertPreferences(r.Context(), &prefs); err != nil {
			handleNotificationError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, prefs)
	}
}

func handleNotificationError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, notification.ErrNotFound):
		writeError(w, http.StatusNotFound, "notification_not_found", err.Error())
	default:
		writeError(w, http.StatusInternalServerError, "internal_error", err.Error())
	}
}
